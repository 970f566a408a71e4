package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/template"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const webhookTimeout = 10 * time.Second

// TimestampHeader carries the delivery timestamp; when a signing secret is
// configured the signature covers "timestamp.body".
const TimestampHeader = "X-Webhook-Timestamp"

// WebhookDispatcher turns usage events into queued HTTP deliveries.
type WebhookDispatcher struct {
	store    Store
	renderer *template.Renderer
	queue    *Queue
	client   *http.Client
	// Now is the time source; overridden in tests.
	Now func() time.Time
}

func NewWebhookDispatcher(s Store, renderer *template.Renderer, bus *events.Bus, interval time.Duration) *WebhookDispatcher {
	d := &WebhookDispatcher{
		store:    s,
		renderer: renderer,
		queue:    NewQueue("webhook", interval),
		client:   &http.Client{Timeout: webhookTimeout},
		Now:      time.Now,
	}
	bus.Subscribe(d.HandleEvent)
	return d
}

// Queue exposes the delivery queue for the Run loop and for tests.
func (d *WebhookDispatcher) Queue() *Queue {
	return d.queue
}

// HandleEvent enqueues one delivery per active webhook config of the
// resource. Failures here are logged and never propagate to the caller that
// triggered the event.
func (d *WebhookDispatcher) HandleEvent(ev events.UsageEvent) {
	ctx := log.Logger.WithContext(context.Background())
	configs, err := d.store.ListWebhookConfigs(ctx, ev.ResourceID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("resource_id", ev.ResourceID.String()).
			Msg("unable to load webhook configs")
		return
	}
	if len(configs) == 0 {
		return
	}
	renderCtx, aerr := renderContext(ctx, d.store, ev)
	if aerr != nil {
		log.Ctx(ctx).Error().Err(aerr).Str("resource_id", ev.ResourceID.String()).
			Msg("unable to build webhook context")
		return
	}
	for i := range configs {
		cfg := configs[i]
		if !cfg.Active {
			continue
		}
		sender, buildErr := d.buildSender(ctx, &cfg, ev.Kind, renderCtx)
		if buildErr != nil {
			log.Ctx(ctx).Error().Err(buildErr).Str("webhook_id", cfg.ID.String()).
				Msg("unable to render webhook notification")
			continue
		}
		maxAttempts, delay := retryBudget(cfg.RetryEnabled, cfg.MaxRetries, cfg.RetryDelaySeconds)
		d.queue.Enqueue(&Item{
			ResourceID:  ev.ResourceID,
			Sender:      sender,
			MaxAttempts: maxAttempts,
			RetryDelay:  delay,
		})
	}
}

func (d *WebhookDispatcher) buildSender(ctx context.Context, cfg *store.WebhookConfig, kind events.Kind, renderCtx map[string]interface{}) (*webhookSender, error) {
	body, err := d.renderer.Render(templateFor(kind, cfg.InUseTemplate, cfg.NotInUseTemplate), renderCtx)
	if err != nil {
		return nil, err
	}
	url := cfg.URL
	if template.HasMarkers(url) {
		if url, err = d.renderer.Render(url, renderCtx); err != nil {
			return nil, err
		}
	}
	headers := d.renderHeaders(ctx, cfg, renderCtx)
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	return &webhookSender{
		url:       url,
		method:    method,
		headers:   headers,
		body:      body,
		secret:    cfg.SigningSecret,
		sigHeader: cfg.SignatureHeader,
		client:    d.client,
		now:       d.Now,
	}, nil
}

// renderHeaders parses the config's header JSON and renders each value
// independently. Malformed JSON degrades to empty headers rather than
// failing the notification.
func (d *WebhookDispatcher) renderHeaders(ctx context.Context, cfg *store.WebhookConfig, renderCtx map[string]interface{}) map[string]string {
	headers := map[string]string{}
	if strings.TrimSpace(cfg.Headers) == "" {
		return headers
	}
	var raw map[string]string
	if err := json.UnmarshalFromString(cfg.Headers, &raw); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("webhook_id", cfg.ID.String()).
			Msg("malformed webhook header JSON, sending without headers")
		return headers
	}
	for name, value := range raw {
		rendered, err := d.renderer.Render(value, renderCtx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("webhook_id", cfg.ID.String()).
				Str("header", name).Msg("unable to render header value, skipping")
			continue
		}
		headers[name] = rendered
	}
	return headers
}

// TestWebhook performs a single synchronous delivery attempt outside the
// queue, for configuration validation.
func (d *WebhookDispatcher) TestWebhook(ctx context.Context, cfg *store.WebhookConfig) error {
	renderCtx := map[string]interface{}{
		"id":          cfg.ResourceID.String(),
		"name":        "connection test",
		"description": "",
		"timestamp":   d.Now().UTC().Format(time.RFC3339),
		"event":       "test",
	}
	sender, err := d.buildSender(ctx, cfg, events.UsageStarted, renderCtx)
	if err != nil {
		return fmt.Errorf("unable to render webhook: %w", err)
	}
	if err := sender.Send(ctx); err != nil {
		return fmt.Errorf("webhook test failed: %w", err)
	}
	return nil
}

type webhookSender struct {
	url       string
	method    string
	headers   map[string]string
	body      string
	secret    string
	sigHeader string
	client    *http.Client
	now       func() time.Time
}

func (s *webhookSender) Describe() string {
	return s.method + " " + s.url
}

func (s *webhookSender) Send(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, s.method, s.url, strings.NewReader(s.body))
	if err != nil {
		return err
	}
	for name, value := range s.headers {
		req.Header.Set(name, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	req.Header.Set(TimestampHeader, timestamp)
	if s.secret != "" && s.sigHeader != "" {
		req.Header.Set(s.sigHeader, sign(s.secret, timestamp, s.body))
	}
	rsp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", rsp.Status)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of "timestamp.body".
func sign(secret, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + body))
	return hex.EncodeToString(mac.Sum(nil))
}
