// Package store defines the persistence contract for the service. Two
// implementations exist: postgres (production) and memory (tests and DSN-less
// dev mode). Both enforce the single-active-session invariant atomically in
// InsertSession; callers must not rely on check-then-insert.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

// SessionFilter narrows usage-history queries. Page is 1-based.
type SessionFilter struct {
	UserID *uuid.UUID
	Page   int
	Limit  int
}

type ResourceStore interface {
	CreateResource(ctx context.Context, r *Resource) apperrors.Error
	GetResource(ctx context.Context, id uuid.UUID) (*Resource, apperrors.Error)
	UpdateResource(ctx context.Context, r *Resource) apperrors.Error
	// DeleteResource cascades to the resource's sessions, introducers,
	// introductions and notification configs.
	DeleteResource(ctx context.Context, id uuid.UUID) apperrors.Error
	ListResources(ctx context.Context, page, limit int) ([]Resource, apperrors.Error)

	CreateGroup(ctx context.Context, g *ResourceGroup) apperrors.Error
	GetGroup(ctx context.Context, id uuid.UUID) (*ResourceGroup, apperrors.Error)
	DeleteGroup(ctx context.Context, id uuid.UUID) apperrors.Error
	ListGroups(ctx context.Context) ([]ResourceGroup, apperrors.Error)
}

type SessionStore interface {
	// InsertSession atomically inserts an open session. Returns
	// ErrActiveSessionExists when the resource already has an open session.
	InsertSession(ctx context.Context, s *UsageSession) apperrors.Error
	// CloseSession sets end time and notes on the identified session if it is
	// still open. Returns ErrNotFound when the session is absent or already
	// closed.
	CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time, endNotes string) apperrors.Error
	// GetActiveSession returns the open session for the resource, or
	// (nil, nil) when the resource is idle.
	GetActiveSession(ctx context.Context, resourceID uuid.UUID) (*UsageSession, apperrors.Error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*UsageSession, apperrors.Error)
	// ListSessions returns a page of sessions for the resource ordered by
	// start time descending, plus the total row count for the filter.
	ListSessions(ctx context.Context, resourceID uuid.UUID, filter SessionFilter) ([]UsageSession, int64, apperrors.Error)
}

type IntroductionStore interface {
	AddIntroducer(ctx context.Context, i *Introducer) apperrors.Error
	RemoveIntroducer(ctx context.Context, scope Scope, userID uuid.UUID) apperrors.Error
	IsIntroducer(ctx context.Context, scope Scope, userID uuid.UUID) (bool, apperrors.Error)
	ListIntroducers(ctx context.Context, scope Scope) ([]Introducer, apperrors.Error)

	// InsertIntroduction returns ErrAlreadyExists when the receiver already
	// has an introduction in the scope.
	InsertIntroduction(ctx context.Context, i *Introduction) apperrors.Error
	GetIntroduction(ctx context.Context, id uuid.UUID) (*Introduction, apperrors.Error)
	FindIntroduction(ctx context.Context, scope Scope, receiverUserID uuid.UUID) (*Introduction, apperrors.Error)
	ListIntroductions(ctx context.Context, scope Scope) ([]Introduction, apperrors.Error)

	AppendHistory(ctx context.Context, item *IntroductionHistoryItem) apperrors.Error
	// ListHistory returns history items ordered by creation time ascending.
	ListHistory(ctx context.Context, introductionID uuid.UUID) ([]IntroductionHistoryItem, apperrors.Error)
}

type NotificationConfigStore interface {
	UpsertMQTTConfig(ctx context.Context, c *MQTTConfig) apperrors.Error
	GetMQTTConfig(ctx context.Context, resourceID uuid.UUID) (*MQTTConfig, apperrors.Error)
	DeleteMQTTConfig(ctx context.Context, resourceID uuid.UUID) apperrors.Error

	CreateWebhookConfig(ctx context.Context, c *WebhookConfig) apperrors.Error
	GetWebhookConfig(ctx context.Context, id uuid.UUID) (*WebhookConfig, apperrors.Error)
	ListWebhookConfigs(ctx context.Context, resourceID uuid.UUID) ([]WebhookConfig, apperrors.Error)
	UpdateWebhookConfig(ctx context.Context, c *WebhookConfig) apperrors.Error
	DeleteWebhookConfig(ctx context.Context, id uuid.UUID) apperrors.Error
}

// Store is the full persistence surface the service wires at startup.
type Store interface {
	ResourceStore
	SessionStore
	IntroductionStore
	NotificationConfigStore
	Close() error
}
