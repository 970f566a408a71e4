package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/store/memory"
	"github.com/makerhub/makerhub/internal/hubsrv/template"
)

type capturedRequest struct {
	method string
	header http.Header
	body   string
}

// captureServer records every request and answers with the given status.
func captureServer(status int) (*httptest.Server, func() []capturedRequest) {
	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{method: r.Method, header: r.Header.Clone(), body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedRequest, len(reqs))
		copy(out, reqs)
		return out
	}
}

func newWebhookFixture(t *testing.T) (*WebhookDispatcher, *memory.Store, uuid.UUID) {
	t.Helper()
	s := memory.New()
	r := &store.Resource{Name: "Printer A", Description: "FDM printer"}
	require.NoError(t, s.CreateResource(context.Background(), r))
	d := NewWebhookDispatcher(s, template.NewRenderer(), events.NewBus(), time.Second)
	d.Now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return d, s, r.ID
}

func seedWebhook(t *testing.T, s *memory.Store, cfg store.WebhookConfig) store.WebhookConfig {
	t.Helper()
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.InUseTemplate == "" {
		cfg.InUseTemplate = `{"resource":"{{name}}","event":"{{event}}"}`
	}
	if cfg.NotInUseTemplate == "" {
		cfg.NotInUseTemplate = `{"resource":"{{name}}","event":"{{event}}"}`
	}
	require.NoError(t, s.CreateWebhookConfig(context.Background(), &cfg))
	return cfg
}

func TestWebhookDelivery(t *testing.T) {
	srv, requests := captureServer(http.StatusOK)
	defer srv.Close()

	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID:      resourceID,
		URL:             srv.URL,
		Active:          true,
		Headers:         `{"X-Token":"abc"}`,
		SigningSecret:   "s3cret",
		SignatureHeader: "X-Signature",
	})

	d.HandleEvent(events.UsageEvent{
		Kind:       events.UsageStarted,
		ResourceID: resourceID,
		StartTime:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	require.Equal(t, 1, d.Queue().Len())

	d.Queue().Tick(context.Background(), time.Now())
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, `{"resource":"Printer A","event":"in_use"}`, reqs[0].body)
	assert.Equal(t, "abc", reqs[0].header.Get("X-Token"))
	assert.Equal(t, "application/json", reqs[0].header.Get("Content-Type"))

	timestamp := reqs[0].header.Get(TimestampHeader)
	require.NotEmpty(t, timestamp)
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, d.Now().UnixMilli(), ms)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte(timestamp + "." + reqs[0].body))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), reqs[0].header.Get("X-Signature"))
}

func TestWebhookUsesNotInUseTemplateOnEnd(t *testing.T) {
	srv, requests := captureServer(http.StatusOK)
	defer srv.Close()

	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID:       resourceID,
		URL:              srv.URL,
		Active:           true,
		InUseTemplate:    "started",
		NotInUseTemplate: "stopped at {{timestamp}}",
	})

	end := time.Date(2026, 8, 1, 13, 30, 0, 0, time.UTC)
	d.HandleEvent(events.UsageEvent{
		Kind:       events.UsageEnded,
		ResourceID: resourceID,
		StartTime:  end.Add(-time.Hour),
		EndTime:    end,
	})
	d.Queue().Tick(context.Background(), time.Now())

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "stopped at 2026-08-01T13:30:00Z", reqs[0].body)
}

func TestWebhookInactiveConfigSkipped(t *testing.T) {
	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID: resourceID,
		URL:        "http://localhost:1/never",
		Active:     false,
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	assert.Equal(t, 0, d.Queue().Len())
}

func TestWebhookMalformedHeadersDegradeToNone(t *testing.T) {
	srv, requests := captureServer(http.StatusOK)
	defer srv.Close()

	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID: resourceID,
		URL:        srv.URL,
		Active:     true,
		Headers:    `{not json`,
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	d.Queue().Tick(context.Background(), time.Now())

	reqs := requests()
	require.Len(t, reqs, 1)
	// Delivery still happens, just without the configured headers.
	assert.Empty(t, reqs[0].header.Get("X-Token"))
}

func TestWebhookNon2xxIsRetried(t *testing.T) {
	srv, requests := captureServer(http.StatusBadGateway)
	defer srv.Close()

	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID:        resourceID,
		URL:               srv.URL,
		Active:            true,
		RetryEnabled:      true,
		MaxRetries:        3,
		RetryDelaySeconds: 1,
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.Queue().Tick(context.Background(), now)
	assert.Len(t, requests(), 1)
	assert.Equal(t, 1, d.Queue().Len())

	d.Queue().Tick(context.Background(), now.Add(time.Minute))
	d.Queue().Tick(context.Background(), now.Add(2*time.Minute))
	assert.Len(t, requests(), 3)
	// Budget spent, item dropped.
	assert.Equal(t, 0, d.Queue().Len())
}

func TestWebhookRenderedURL(t *testing.T) {
	srv, requests := captureServer(http.StatusOK)
	defer srv.Close()

	d, s, resourceID := newWebhookFixture(t)
	seedWebhook(t, s, store.WebhookConfig{
		ResourceID: resourceID,
		URL:        srv.URL + "/hooks/{{id}}",
		Active:     true,
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	d.Queue().Tick(context.Background(), time.Now())
	require.Len(t, requests(), 1)
}

func TestTestWebhook(t *testing.T) {
	srv, requests := captureServer(http.StatusOK)
	defer srv.Close()

	d, _, resourceID := newWebhookFixture(t)
	cfg := &store.WebhookConfig{
		ResourceID:       resourceID,
		URL:              srv.URL,
		Method:           http.MethodPost,
		Active:           true,
		InUseTemplate:    `{"event":"{{event}}"}`,
		NotInUseTemplate: `{"event":"{{event}}"}`,
	}
	require.NoError(t, d.TestWebhook(context.Background(), cfg))
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, `{"event":"test"}`, reqs[0].body)
}

func TestTestWebhookFailure(t *testing.T) {
	srv, _ := captureServer(http.StatusInternalServerError)
	defer srv.Close()

	d, _, resourceID := newWebhookFixture(t)
	cfg := &store.WebhookConfig{
		ResourceID:       resourceID,
		URL:              srv.URL,
		Method:           http.MethodPost,
		InUseTemplate:    "x",
		NotInUseTemplate: "x",
	}
	assert.Error(t, d.TestWebhook(context.Background(), cfg))
}
