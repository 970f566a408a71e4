package introductions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerhub/makerhub/internal/hubsrv/policy"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/store/memory"
)

// testClock hands out strictly increasing timestamps so history ordering is
// deterministic.
func testClock() func() time.Time {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	s := memory.New()
	r := NewRegistry(s)
	r.Now = testClock()
	return r, s
}

func seedResource(t *testing.T, s *memory.Store, groupID *uuid.UUID) uuid.UUID {
	t.Helper()
	r := &store.Resource{Name: "laser cutter", GroupID: groupID}
	require.NoError(t, s.CreateResource(context.Background(), r))
	return r.ID
}

func seedGroup(t *testing.T, s *memory.Store) uuid.UUID {
	t.Helper()
	g := &store.ResourceGroup{Name: "3d printers"}
	require.NoError(t, s.CreateGroup(context.Background(), g))
	return g.ID
}

var (
	manager = policy.Actor{UserID: uuid.New(), CanManageResources: true}
)

func TestAddIntroducerRequiresManagePermission(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)
	user := uuid.New()

	_, err := reg.AddIntroducer(ctx, store.ResourceScope(resourceID), policy.Actor{UserID: uuid.New()}, user)
	require.Error(t, err)
	assert.True(t, err.Is(ErrNotAuthorized))

	intr, err := reg.AddIntroducer(ctx, store.ResourceScope(resourceID), manager, user)
	require.NoError(t, err)
	assert.Equal(t, user, intr.UserID)

	introducers, err := reg.ListIntroducers(ctx, store.ResourceScope(resourceID))
	require.NoError(t, err)
	require.Len(t, introducers, 1)

	require.NoError(t, reg.RemoveIntroducer(ctx, store.ResourceScope(resourceID), manager, user))
	introducers, err = reg.ListIntroducers(ctx, store.ResourceScope(resourceID))
	require.NoError(t, err)
	assert.Empty(t, introducers)
}

func TestAddIntroducerUnknownScope(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	_, err := reg.AddIntroducer(ctx, store.ResourceScope(uuid.New()), manager, uuid.New())
	require.Error(t, err)
	assert.True(t, err.Is(store.ErrNotFound))
}

func TestGrantIntroduction(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)
	tutor := policy.Actor{UserID: uuid.New()}
	receiver := uuid.New()

	// The tutor has no introducer grant yet.
	_, err := reg.GrantIntroduction(ctx, resourceID, tutor, receiver)
	require.Error(t, err)
	assert.True(t, err.Is(ErrNotIntroducer))

	_, err = reg.AddIntroducer(ctx, store.ResourceScope(resourceID), manager, tutor.UserID)
	require.NoError(t, err)

	intro, err := reg.GrantIntroduction(ctx, resourceID, tutor, receiver)
	require.NoError(t, err)
	assert.Equal(t, receiver, intro.ReceiverUserID)
	assert.Equal(t, tutor.UserID, intro.TutorUserID)
	require.NotNil(t, intro.CompletedAt)

	ok, aerr := reg.HasValidIntroduction(ctx, resourceID, receiver)
	require.NoError(t, aerr)
	assert.True(t, ok)

	// A second grant for the same receiver is rejected.
	_, err = reg.GrantIntroduction(ctx, resourceID, tutor, receiver)
	require.Error(t, err)
	assert.True(t, err.Is(ErrAlreadyCompleted))
}

func TestGrantIntroductionUnknownResource(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	_, err := reg.GrantIntroduction(ctx, uuid.New(), manager, uuid.New())
	require.Error(t, err)
	assert.True(t, err.Is(store.ErrNotFound))
}

func TestManagerCanGrantWithoutIntroducerRole(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)
	receiver := uuid.New()

	_, err := reg.GrantIntroduction(ctx, resourceID, manager, receiver)
	require.NoError(t, err)

	ok, aerr := reg.HasValidIntroduction(ctx, resourceID, receiver)
	require.NoError(t, aerr)
	assert.True(t, ok)
}

func TestRevokeUnrevokeCycle(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)
	receiver := uuid.New()

	intro, err := reg.GrantIntroduction(ctx, resourceID, manager, receiver)
	require.NoError(t, err)

	// Revoke flips validity off.
	require.NoError(t, reg.Revoke(ctx, intro.ID, manager, "safety violation"))
	ok, aerr := reg.HasValidIntroduction(ctx, resourceID, receiver)
	require.NoError(t, aerr)
	assert.False(t, ok)

	// Double revoke is rejected.
	err = reg.Revoke(ctx, intro.ID, manager, "again")
	require.Error(t, err)
	assert.True(t, err.Is(ErrAlreadyRevoked))

	// Unrevoke restores validity.
	require.NoError(t, reg.Unrevoke(ctx, intro.ID, manager, "retraining done"))
	ok, aerr = reg.HasValidIntroduction(ctx, resourceID, receiver)
	require.NoError(t, aerr)
	assert.True(t, ok)

	// Unrevoking a non-revoked introduction is rejected.
	err = reg.Unrevoke(ctx, intro.ID, manager, "noop")
	require.Error(t, err)
	assert.True(t, err.Is(ErrNotRevoked))

	// History keeps every action, oldest first.
	items, aerr := reg.History(ctx, intro.ID)
	require.NoError(t, aerr)
	require.Len(t, items, 2)
	assert.Equal(t, store.ActionRevoke, items[0].Action)
	assert.Equal(t, "safety violation", items[0].Comment)
	assert.Equal(t, store.ActionUnrevoke, items[1].Action)
}

func TestRevokeRequiresScopeAuthority(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)
	intro, err := reg.GrantIntroduction(ctx, resourceID, manager, uuid.New())
	require.NoError(t, err)

	stranger := policy.Actor{UserID: uuid.New()}
	err = reg.Revoke(ctx, intro.ID, stranger, "")
	require.Error(t, err)
	assert.True(t, err.Is(ErrNotAuthorized))

	// A resource introducer may revoke on that resource.
	tutor := policy.Actor{UserID: uuid.New()}
	_, aerr := reg.AddIntroducer(ctx, store.ResourceScope(resourceID), manager, tutor.UserID)
	require.NoError(t, aerr)
	require.NoError(t, reg.Revoke(ctx, intro.ID, tutor, "introducer revoke"))
}

func TestGroupIntroductions(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	groupID := seedGroup(t, s)
	tutor := policy.Actor{UserID: uuid.New()}
	receiver := uuid.New()

	_, err := reg.AddIntroducer(ctx, store.GroupScope(groupID), manager, tutor.UserID)
	require.NoError(t, err)

	ok, err := reg.CanGiveGroupIntroductions(ctx, groupID, tutor)
	require.NoError(t, err)
	assert.True(t, ok)

	intro, err := reg.GrantGroupIntroduction(ctx, groupID, tutor, receiver)
	require.NoError(t, err)
	assert.Equal(t, store.ScopeGroup, intro.Scope.Kind)

	ok, err = reg.HasValidGroupIntroduction(ctx, groupID, receiver)
	require.NoError(t, err)
	assert.True(t, ok)

	// Group revokes follow the same double-revoke guard as resources.
	require.NoError(t, reg.Revoke(ctx, intro.ID, tutor, ""))
	rerr := reg.Revoke(ctx, intro.ID, tutor, "")
	require.Error(t, rerr)
	assert.True(t, rerr.Is(ErrAlreadyRevoked))

	ok, err = reg.HasValidGroupIntroduction(ctx, groupID, receiver)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasValidIntroductionNoRecord(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)

	ok, err := reg.HasValidIntroduction(ctx, resourceID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListIntroductions(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)
	resourceID := seedResource(t, s, nil)

	for i := 0; i < 3; i++ {
		_, err := reg.GrantIntroduction(ctx, resourceID, manager, uuid.New())
		require.NoError(t, err)
	}
	intros, err := reg.ListIntroductions(ctx, store.ResourceScope(resourceID))
	require.NoError(t, err)
	assert.Len(t, intros, 3)
}
