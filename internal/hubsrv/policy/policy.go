// Package policy holds the shared authorization model. Every capability in
// the service follows the same shape: the global manage-resources permission
// satisfies it, otherwise a scope-specific grant check decides. Centralizing
// that here keeps the pattern out of the individual services.
package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

// Actor is the authenticated caller as asserted by the fronting auth layer.
type Actor struct {
	UserID uuid.UUID
	// CanManageResources is the global administrative permission.
	CanManageResources bool
}

// GrantCheck reports whether the actor holds a scope-specific grant.
type GrantCheck func(ctx context.Context) (bool, apperrors.Error)

// Allows reports whether the actor satisfies a capability: the global manage
// permission always does; otherwise the grant check decides. A nil grant
// means the capability is manage-only.
func Allows(ctx context.Context, actor Actor, grant GrantCheck) (bool, apperrors.Error) {
	if actor.CanManageResources {
		return true, nil
	}
	if grant == nil {
		return false, nil
	}
	return grant(ctx)
}

// AllowsAny reports whether the actor satisfies any of the given grant
// checks. Checks run in order and stop at the first success or error.
func AllowsAny(ctx context.Context, actor Actor, grants ...GrantCheck) (bool, apperrors.Error) {
	if actor.CanManageResources {
		return true, nil
	}
	for _, grant := range grants {
		if grant == nil {
			continue
		}
		ok, err := grant(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
