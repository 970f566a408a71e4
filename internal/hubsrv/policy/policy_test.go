package policy

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

func grantReturning(ok bool) GrantCheck {
	return func(ctx context.Context) (bool, apperrors.Error) { return ok, nil }
}

func TestAllows(t *testing.T) {
	ctx := context.Background()
	manager := Actor{UserID: uuid.New(), CanManageResources: true}
	member := Actor{UserID: uuid.New()}

	ok, err := Allows(ctx, manager, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allows(ctx, member, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Allows(ctx, member, grantReturning(true))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allows(ctx, member, grantReturning(false))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowsAny(t *testing.T) {
	ctx := context.Background()
	member := Actor{UserID: uuid.New()}

	ok, err := AllowsAny(ctx, member, grantReturning(false), grantReturning(true))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AllowsAny(ctx, member, grantReturning(false), grantReturning(false))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AllowsAny(ctx, member)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowsAnyStopsOnError(t *testing.T) {
	ctx := context.Background()
	member := Actor{UserID: uuid.New()}
	boom := apperrors.New("grant lookup failed").SetStatusCode(http.StatusInternalServerError)
	called := false

	ok, err := AllowsAny(ctx, member,
		func(ctx context.Context) (bool, apperrors.Error) { return false, boom },
		func(ctx context.Context) (bool, apperrors.Error) { called = true; return true, nil },
	)
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{UserID: uuid.New(), CanManageResources: true}
	ctx := WithActor(context.Background(), actor)
	got, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, actor, got)

	_, ok = ActorFrom(context.Background())
	assert.False(t, ok)
}
