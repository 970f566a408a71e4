package store

import (
	"time"

	"github.com/google/uuid"
)

// ScopeKind distinguishes resource-level from group-level grants.
type ScopeKind string

const (
	ScopeResource ScopeKind = "resource"
	ScopeGroup    ScopeKind = "group"
)

// Scope identifies the target of an introducer grant or introduction.
type Scope struct {
	Kind ScopeKind
	ID   uuid.UUID
}

func ResourceScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeResource, ID: id}
}

func GroupScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeGroup, ID: id}
}

type Resource struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	GroupID     *uuid.UUID `db:"group_id" json:"groupId,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

type ResourceGroup struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UsageSession is one time-bounded claim of exclusive use of a resource.
// At most one session per resource may have a nil EndTime.
type UsageSession struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ResourceID uuid.UUID  `db:"resource_id" json:"resourceId"`
	UserID     uuid.UUID  `db:"user_id" json:"userId"`
	StartTime  time.Time  `db:"start_time" json:"startTime"`
	EndTime    *time.Time `db:"end_time" json:"endTime,omitempty"`
	StartNotes string     `db:"start_notes" json:"startNotes"`
	EndNotes   string     `db:"end_notes" json:"endNotes"`
}

// UsageInMinutes returns the elapsed whole minutes of a closed session, or -1
// while the session is still active.
func (s *UsageSession) UsageInMinutes() int {
	if s.EndTime == nil {
		return -1
	}
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}

// Introducer grants a user permission to certify others on a resource or
// group. One grant per (scope, user).
type Introducer struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Scope     Scope     `json:"-"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	GrantedAt time.Time `db:"granted_at" json:"grantedAt"`
}

// Introduction records that ReceiverUserID was certified by TutorUserID on a
// resource or group. One introduction per (scope, receiver).
type Introduction struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Scope          Scope      `json:"-"`
	ReceiverUserID uuid.UUID  `db:"receiver_user_id" json:"receiverUserId"`
	TutorUserID    uuid.UUID  `db:"tutor_user_id" json:"tutorUserId"`
	CompletedAt    *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

type HistoryAction string

const (
	ActionRevoke   HistoryAction = "REVOKE"
	ActionUnrevoke HistoryAction = "UNREVOKE"
)

// IntroductionHistoryItem is an append-only record of a revoke or unrevoke
// against an introduction. The introduction row itself is never mutated; the
// current revoked state is derived from the latest item.
type IntroductionHistoryItem struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	IntroductionID    uuid.UUID     `db:"introduction_id" json:"introductionId"`
	Action            HistoryAction `db:"action" json:"action"`
	PerformedByUserID uuid.UUID     `db:"performed_by_user_id" json:"performedByUserId"`
	Comment           string        `db:"comment" json:"comment"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
}

// MQTTConfig is the per-resource MQTT notification target. At most one per
// resource.
type MQTTConfig struct {
	ResourceID        uuid.UUID `db:"resource_id" json:"resourceId"`
	Host              string    `db:"host" json:"host"`
	Port              int       `db:"port" json:"port"`
	Username          string    `db:"username" json:"username,omitempty"`
	Password          string    `db:"password" json:"-"`
	ClientID          string    `db:"client_id" json:"clientId,omitempty"`
	TopicTemplate     string    `db:"topic_template" json:"topicTemplate"`
	InUseTemplate     string    `db:"in_use_template" json:"inUseTemplate"`
	NotInUseTemplate  string    `db:"not_in_use_template" json:"notInUseTemplate"`
	RetryEnabled      bool      `db:"retry_enabled" json:"retryEnabled"`
	MaxRetries        int       `db:"max_retries" json:"maxRetries"`
	RetryDelaySeconds int       `db:"retry_delay_seconds" json:"retryDelaySeconds"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// WebhookConfig is a per-resource HTTP notification target. A resource may
// have any number of webhooks.
type WebhookConfig struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ResourceID        uuid.UUID `db:"resource_id" json:"resourceId"`
	Name              string    `db:"name" json:"name"`
	URL               string    `db:"url" json:"url"`
	Method            string    `db:"method" json:"method"`
	Headers           string    `db:"headers" json:"headers"` // JSON object of header name -> value template
	InUseTemplate     string    `db:"in_use_template" json:"inUseTemplate"`
	NotInUseTemplate  string    `db:"not_in_use_template" json:"notInUseTemplate"`
	Active            bool      `db:"active" json:"active"`
	RetryEnabled      bool      `db:"retry_enabled" json:"retryEnabled"`
	MaxRetries        int       `db:"max_retries" json:"maxRetries"`
	RetryDelaySeconds int       `db:"retry_delay_seconds" json:"retryDelaySeconds"`
	SigningSecret     string    `db:"signing_secret" json:"-"`
	SignatureHeader   string    `db:"signature_header" json:"signatureHeader,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
