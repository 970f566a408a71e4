// Package introductions tracks who may operate a resource: introducer grants,
// completed introductions, and the append-only revoke/unrevoke history that
// determines whether an introduction is currently valid.
package introductions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/policy"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

// Store is the slice of the persistence surface the registry needs.
type Store interface {
	store.IntroductionStore
	store.ResourceStore
}

type Registry struct {
	store Store
	// Now is the time source; overridden in tests.
	Now func() time.Time
}

func NewRegistry(s Store) *Registry {
	return &Registry{store: s, Now: time.Now}
}

// CanGiveIntroductions reports whether the actor may certify users on the
// resource: either the global manage permission or a resource-level
// introducer grant.
func (r *Registry) CanGiveIntroductions(ctx context.Context, resourceID uuid.UUID, actor policy.Actor) (bool, apperrors.Error) {
	return policy.Allows(ctx, actor, func(ctx context.Context) (bool, apperrors.Error) {
		return r.store.IsIntroducer(ctx, store.ResourceScope(resourceID), actor.UserID)
	})
}

// CanGiveGroupIntroductions is the group-scope analogue of
// CanGiveIntroductions.
func (r *Registry) CanGiveGroupIntroductions(ctx context.Context, groupID uuid.UUID, actor policy.Actor) (bool, apperrors.Error) {
	return policy.Allows(ctx, actor, func(ctx context.Context) (bool, apperrors.Error) {
		return r.store.IsIntroducer(ctx, store.GroupScope(groupID), actor.UserID)
	})
}

// HasValidIntroduction reports whether the user holds a completed,
// not-currently-revoked introduction for the resource.
func (r *Registry) HasValidIntroduction(ctx context.Context, resourceID uuid.UUID, userID uuid.UUID) (bool, apperrors.Error) {
	return r.hasValid(ctx, store.ResourceScope(resourceID), userID)
}

func (r *Registry) HasValidGroupIntroduction(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) (bool, apperrors.Error) {
	return r.hasValid(ctx, store.GroupScope(groupID), userID)
}

func (r *Registry) hasValid(ctx context.Context, scope store.Scope, userID uuid.UUID) (bool, apperrors.Error) {
	intro, err := r.store.FindIntroduction(ctx, scope, userID)
	if err != nil {
		if err.Is(store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if intro.CompletedAt == nil {
		return false, nil
	}
	revoked, err := r.isRevoked(ctx, intro.ID)
	if err != nil {
		return false, err
	}
	return !revoked, nil
}

func (r *Registry) isRevoked(ctx context.Context, introductionID uuid.UUID) (bool, apperrors.Error) {
	items, err := r.store.ListHistory(ctx, introductionID)
	if err != nil {
		return false, err
	}
	action, ok := LatestAction(items)
	return ok && action == store.ActionRevoke, nil
}

// GrantIntroduction certifies receiver on the resource. The tutor must be
// able to give introductions there.
func (r *Registry) GrantIntroduction(ctx context.Context, resourceID uuid.UUID, tutor policy.Actor, receiverUserID uuid.UUID) (*store.Introduction, apperrors.Error) {
	if _, err := r.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	ok, err := r.CanGiveIntroductions(ctx, resourceID, tutor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotIntroducer
	}
	return r.grant(ctx, store.ResourceScope(resourceID), tutor.UserID, receiverUserID)
}

func (r *Registry) GrantGroupIntroduction(ctx context.Context, groupID uuid.UUID, tutor policy.Actor, receiverUserID uuid.UUID) (*store.Introduction, apperrors.Error) {
	if _, err := r.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	ok, err := r.CanGiveGroupIntroductions(ctx, groupID, tutor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotIntroducer
	}
	return r.grant(ctx, store.GroupScope(groupID), tutor.UserID, receiverUserID)
}

func (r *Registry) grant(ctx context.Context, scope store.Scope, tutorUserID, receiverUserID uuid.UUID) (*store.Introduction, apperrors.Error) {
	now := r.Now().UTC()
	intro := &store.Introduction{
		Scope:          scope,
		ReceiverUserID: receiverUserID,
		TutorUserID:    tutorUserID,
		CompletedAt:    &now,
	}
	if err := r.store.InsertIntroduction(ctx, intro); err != nil {
		if err.Is(store.ErrAlreadyExists) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}
	return intro, nil
}

// Revoke appends a REVOKE history item. Revoking an already-revoked
// introduction is rejected in both resource and group scope.
func (r *Registry) Revoke(ctx context.Context, introductionID uuid.UUID, actor policy.Actor, comment string) apperrors.Error {
	return r.appendAction(ctx, introductionID, actor, comment, store.ActionRevoke)
}

// Unrevoke appends an UNREVOKE history item; rejected when the introduction
// is not currently revoked.
func (r *Registry) Unrevoke(ctx context.Context, introductionID uuid.UUID, actor policy.Actor, comment string) apperrors.Error {
	return r.appendAction(ctx, introductionID, actor, comment, store.ActionUnrevoke)
}

func (r *Registry) appendAction(ctx context.Context, introductionID uuid.UUID, actor policy.Actor, comment string, action store.HistoryAction) apperrors.Error {
	intro, err := r.store.GetIntroduction(ctx, introductionID)
	if err != nil {
		return err
	}
	ok, err := r.canGiveInScope(ctx, intro.Scope, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	revoked, err := r.isRevoked(ctx, introductionID)
	if err != nil {
		return err
	}
	if action == store.ActionRevoke && revoked {
		return ErrAlreadyRevoked
	}
	if action == store.ActionUnrevoke && !revoked {
		return ErrNotRevoked
	}
	return r.store.AppendHistory(ctx, &store.IntroductionHistoryItem{
		IntroductionID:    introductionID,
		Action:            action,
		PerformedByUserID: actor.UserID,
		Comment:           comment,
		CreatedAt:         r.Now().UTC(),
	})
}

func (r *Registry) canGiveInScope(ctx context.Context, scope store.Scope, actor policy.Actor) (bool, apperrors.Error) {
	if scope.Kind == store.ScopeGroup {
		return r.CanGiveGroupIntroductions(ctx, scope.ID, actor)
	}
	return r.CanGiveIntroductions(ctx, scope.ID, actor)
}

// AddIntroducer grants the introducer role. Manage permission only.
func (r *Registry) AddIntroducer(ctx context.Context, scope store.Scope, actor policy.Actor, userID uuid.UUID) (*store.Introducer, apperrors.Error) {
	ok, err := policy.Allows(ctx, actor, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthorized
	}
	if err := r.scopeExists(ctx, scope); err != nil {
		return nil, err
	}
	intr := &store.Introducer{
		Scope:     scope,
		UserID:    userID,
		GrantedAt: r.Now().UTC(),
	}
	if err := r.store.AddIntroducer(ctx, intr); err != nil {
		return nil, err
	}
	return intr, nil
}

// RemoveIntroducer revokes the introducer role. Manage permission only.
func (r *Registry) RemoveIntroducer(ctx context.Context, scope store.Scope, actor policy.Actor, userID uuid.UUID) apperrors.Error {
	ok, err := policy.Allows(ctx, actor, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return r.store.RemoveIntroducer(ctx, scope, userID)
}

func (r *Registry) ListIntroducers(ctx context.Context, scope store.Scope) ([]store.Introducer, apperrors.Error) {
	if err := r.scopeExists(ctx, scope); err != nil {
		return nil, err
	}
	return r.store.ListIntroducers(ctx, scope)
}

func (r *Registry) ListIntroductions(ctx context.Context, scope store.Scope) ([]store.Introduction, apperrors.Error) {
	if err := r.scopeExists(ctx, scope); err != nil {
		return nil, err
	}
	return r.store.ListIntroductions(ctx, scope)
}

func (r *Registry) History(ctx context.Context, introductionID uuid.UUID) ([]store.IntroductionHistoryItem, apperrors.Error) {
	if _, err := r.store.GetIntroduction(ctx, introductionID); err != nil {
		return nil, err
	}
	return r.store.ListHistory(ctx, introductionID)
}

func (r *Registry) scopeExists(ctx context.Context, scope store.Scope) apperrors.Error {
	if scope.Kind == store.ScopeGroup {
		_, err := r.store.GetGroup(ctx, scope.ID)
		return err
	}
	_, err := r.store.GetResource(ctx, scope.ID)
	return err
}
