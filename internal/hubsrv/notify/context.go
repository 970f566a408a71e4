package notify

import (
	"context"
	"time"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

// Event labels as seen by notification templates.
const (
	eventInUse    = "in_use"
	eventNotInUse = "not_in_use"
)

// Store is the slice of the persistence surface the dispatchers need.
type Store interface {
	store.NotificationConfigStore
	store.ResourceStore
}

// renderContext builds the template context for a usage event:
// {id, name, description, timestamp, event}.
func renderContext(ctx context.Context, s Store, ev events.UsageEvent) (map[string]interface{}, apperrors.Error) {
	resource, err := s.GetResource(ctx, ev.ResourceID)
	if err != nil {
		return nil, err
	}
	timestamp := ev.StartTime
	label := eventInUse
	if ev.Kind == events.UsageEnded {
		timestamp = ev.EndTime
		label = eventNotInUse
	}
	return map[string]interface{}{
		"id":          resource.ID.String(),
		"name":        resource.Name,
		"description": resource.Description,
		"timestamp":   timestamp.UTC().Format(time.RFC3339),
		"event":       label,
	}, nil
}

// templateFor picks the configured message template for the event kind.
func templateFor(kind events.Kind, inUse, notInUse string) string {
	if kind == events.UsageEnded {
		return notInUse
	}
	return inUse
}

// retryBudget maps a config's retry policy onto queue item fields.
// maxAttempts zero disables retries entirely.
func retryBudget(enabled bool, maxRetries, delaySeconds int) (maxAttempts int, delay time.Duration) {
	if enabled {
		maxAttempts = maxRetries
	}
	delay = time.Duration(delaySeconds) * time.Second
	if delay <= 0 {
		delay = DefaultTickInterval
	}
	return maxAttempts, delay
}
