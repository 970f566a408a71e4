// Package usage enforces the per-resource session state machine: a resource
// is either idle or held by exactly one open session. Session starts are
// gated on the introduction registry; lifecycle transitions are published on
// the event bus for the notification dispatchers.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/policy"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

// Store is the slice of the persistence surface the tracker needs.
type Store interface {
	store.SessionStore
	store.ResourceStore
}

// Authorizer answers whether a user may operate a resource. Satisfied by
// introductions.Registry.
type Authorizer interface {
	HasValidIntroduction(ctx context.Context, resourceID uuid.UUID, userID uuid.UUID) (bool, apperrors.Error)
	HasValidGroupIntroduction(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) (bool, apperrors.Error)
	CanGiveIntroductions(ctx context.Context, resourceID uuid.UUID, actor policy.Actor) (bool, apperrors.Error)
}

type StartRequest struct {
	Notes string
	// ForceTakeOver ends a displaced active session before starting a new
	// one. The caller still needs start authorization.
	ForceTakeOver bool
	// EstimatedDurationMinutes is advisory only; it is recorded in the start
	// notes and does not bound the session.
	EstimatedDurationMinutes int
}

type EndRequest struct {
	Notes string
}

type Tracker struct {
	store Store
	auth  Authorizer
	bus   *events.Bus
	// Now is the time source; overridden in tests.
	Now func() time.Time
}

func NewTracker(s Store, auth Authorizer, bus *events.Bus) *Tracker {
	return &Tracker{store: s, auth: auth, bus: bus, Now: time.Now}
}

// StartSession moves the resource from idle to active for the actor.
// Authorization requires any of: the manage permission, a valid resource- or
// group-scope introduction, or introducer capability on the resource.
func (t *Tracker) StartSession(ctx context.Context, resourceID uuid.UUID, actor policy.Actor, req StartRequest) (*store.UsageSession, apperrors.Error) {
	resource, err := t.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	ok, err := t.mayUse(ctx, resource, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIntroductionRequired
	}

	if req.ForceTakeOver {
		if err := t.displaceActive(ctx, resourceID, actor); err != nil {
			return nil, err
		}
	}

	notes := req.Notes
	if req.EstimatedDurationMinutes > 0 {
		notes = fmt.Sprintf("%s [estimated duration: %d min]", notes, req.EstimatedDurationMinutes)
	}
	sess := &store.UsageSession{
		ResourceID: resourceID,
		UserID:     actor.UserID,
		StartTime:  t.Now().UTC(),
		StartNotes: notes,
	}
	// The store enforces the single-active-session invariant atomically; a
	// concurrent start surfaces here as ErrActiveSessionExists.
	if err := t.store.InsertSession(ctx, sess); err != nil {
		if err.Is(store.ErrActiveSessionExists) {
			return nil, ErrSessionActive
		}
		return nil, err
	}

	t.bus.Publish(events.UsageEvent{
		Kind:       events.UsageStarted,
		ResourceID: resourceID,
		StartTime:  sess.StartTime,
	})
	return sess, nil
}

func (t *Tracker) mayUse(ctx context.Context, resource *store.Resource, actor policy.Actor) (bool, apperrors.Error) {
	grants := []policy.GrantCheck{
		func(ctx context.Context) (bool, apperrors.Error) {
			return t.auth.HasValidIntroduction(ctx, resource.ID, actor.UserID)
		},
		func(ctx context.Context) (bool, apperrors.Error) {
			// Introducers may use the resource without a formal introduction
			// record of their own.
			return t.auth.CanGiveIntroductions(ctx, resource.ID, actor)
		},
	}
	if resource.GroupID != nil {
		groupID := *resource.GroupID
		grants = append(grants, func(ctx context.Context) (bool, apperrors.Error) {
			return t.auth.HasValidGroupIntroduction(ctx, groupID, actor.UserID)
		})
	}
	return policy.AllowsAny(ctx, actor, grants...)
}

// displaceActive ends the current session, if any, on behalf of a takeover.
func (t *Tracker) displaceActive(ctx context.Context, resourceID uuid.UUID, actor policy.Actor) apperrors.Error {
	active, err := t.store.GetActiveSession(ctx, resourceID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	endTime := t.Now().UTC()
	notes := fmt.Sprintf("session taken over by user %s", actor.UserID)
	if err := t.store.CloseSession(ctx, active.ID, endTime, notes); err != nil {
		if err.Is(store.ErrNotFound) {
			// Ended concurrently; nothing left to displace.
			return nil
		}
		return err
	}
	log.Ctx(ctx).Info().
		Str("resource_id", resourceID.String()).
		Str("displaced_user_id", active.UserID.String()).
		Msg("active session displaced by takeover")
	t.bus.Publish(events.UsageEvent{
		Kind:       events.UsageEnded,
		ResourceID: resourceID,
		StartTime:  active.StartTime,
		EndTime:    endTime,
	})
	return nil
}

// EndSession closes the active session. Only the session owner or a
// manage-permission holder may end it.
func (t *Tracker) EndSession(ctx context.Context, resourceID uuid.UUID, actor policy.Actor, req EndRequest) (*store.UsageSession, apperrors.Error) {
	active, err := t.store.GetActiveSession(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveSession
	}
	if active.UserID != actor.UserID && !actor.CanManageResources {
		return nil, ErrNotSessionOwner
	}

	endTime := t.Now().UTC()
	if err := t.store.CloseSession(ctx, active.ID, endTime, req.Notes); err != nil {
		if err.Is(store.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	active.EndTime = &endTime
	active.EndNotes = req.Notes

	t.bus.Publish(events.UsageEvent{
		Kind:       events.UsageEnded,
		ResourceID: resourceID,
		StartTime:  active.StartTime,
		EndTime:    endTime,
	})
	return active, nil
}

// GetActiveSession returns the open session for the resource, or nil when
// idle.
func (t *Tracker) GetActiveSession(ctx context.Context, resourceID uuid.UUID) (*store.UsageSession, apperrors.Error) {
	if _, err := t.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return t.store.GetActiveSession(ctx, resourceID)
}

// History returns a page of the resource's sessions, newest first.
func (t *Tracker) History(ctx context.Context, resourceID uuid.UUID, page, limit int, userID *uuid.UUID) ([]store.UsageSession, int64, apperrors.Error) {
	if _, err := t.store.GetResource(ctx, resourceID); err != nil {
		return nil, 0, err
	}
	return t.store.ListSessions(ctx, resourceID, store.SessionFilter{
		UserID: userID,
		Page:   page,
		Limit:  limit,
	})
}
