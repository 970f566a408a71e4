package notify

import (
	"context"
	"errors"
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

type publishedMsg struct {
	broker  Broker
	topic   string
	payload string
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	sendErr   error
	checkErr  error
}

func (p *fakePublisher) Publish(ctx context.Context, b Broker, topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.published = append(p.published, publishedMsg{broker: b, topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) Check(ctx context.Context, b Broker) error {
	return p.checkErr
}

func (p *fakePublisher) messages() []publishedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMsg, len(p.published))
	copy(out, p.published)
	return out
}

func newMQTTFixture(t *testing.T) (*MQTTDispatcher, *fakePublisher, *memory.Store, uuid.UUID) {
	t.Helper()
	s := memory.New()
	r := &store.Resource{Name: "Laser", Description: "CO2 laser"}
	require.NoError(t, s.CreateResource(context.Background(), r))
	pub := &fakePublisher{}
	d := NewMQTTDispatcher(s, template.NewRenderer(), events.NewBus(), pub, time.Second)
	return d, pub, s, r.ID
}

func seedMQTTConfig(t *testing.T, s *memory.Store, cfg store.MQTTConfig) {
	t.Helper()
	if cfg.Host == "" {
		cfg.Host = "broker.local"
	}
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.TopicTemplate == "" {
		cfg.TopicTemplate = "makerspace/status"
	}
	if cfg.InUseTemplate == "" {
		cfg.InUseTemplate = "{{name}} is {{event}}"
	}
	if cfg.NotInUseTemplate == "" {
		cfg.NotInUseTemplate = "{{name}} is {{event}}"
	}
	require.NoError(t, s.UpsertMQTTConfig(context.Background(), &cfg))
}

func TestMQTTDeliveryNoConfigIsNoop(t *testing.T) {
	d, _, _, resourceID := newMQTTFixture(t)
	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	assert.Equal(t, 0, d.Queue().Len())
}

func TestMQTTDelivery(t *testing.T) {
	d, pub, s, resourceID := newMQTTFixture(t)
	seedMQTTConfig(t, s, store.MQTTConfig{ResourceID: resourceID, Username: "svc"})

	d.HandleEvent(events.UsageEvent{
		Kind:       events.UsageStarted,
		ResourceID: resourceID,
		StartTime:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	require.Equal(t, 1, d.Queue().Len())

	d.Queue().Tick(context.Background(), time.Now())
	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "makerspace/status", msgs[0].topic)
	assert.Equal(t, "Laser is in_use", msgs[0].payload)
	assert.Equal(t, "broker.local", msgs[0].broker.Host)
	assert.Equal(t, 1883, msgs[0].broker.Port)
	assert.Equal(t, "svc", msgs[0].broker.Username)
}

func TestMQTTTopicTemplateRendered(t *testing.T) {
	d, pub, s, resourceID := newMQTTFixture(t)
	seedMQTTConfig(t, s, store.MQTTConfig{
		ResourceID:    resourceID,
		TopicTemplate: "makerspace/{{id}}/status",
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	d.Queue().Tick(context.Background(), time.Now())

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "makerspace/"+resourceID.String()+"/status", msgs[0].topic)
}

func TestMQTTNotInUseTemplateOnEnd(t *testing.T) {
	d, pub, s, resourceID := newMQTTFixture(t)
	seedMQTTConfig(t, s, store.MQTTConfig{
		ResourceID:       resourceID,
		InUseTemplate:    "on",
		NotInUseTemplate: "off",
	})

	d.HandleEvent(events.UsageEvent{Kind: events.UsageEnded, ResourceID: resourceID, EndTime: time.Now()})
	d.Queue().Tick(context.Background(), time.Now())

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "off", msgs[0].payload)
}

func TestMQTTPublishFailureRetried(t *testing.T) {
	d, pub, s, resourceID := newMQTTFixture(t)
	seedMQTTConfig(t, s, store.MQTTConfig{
		ResourceID:        resourceID,
		RetryEnabled:      true,
		MaxRetries:        2,
		RetryDelaySeconds: 1,
	})
	pub.sendErr = errors.New("broker unreachable")

	d.HandleEvent(events.UsageEvent{Kind: events.UsageStarted, ResourceID: resourceID})
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.Queue().Tick(context.Background(), now)
	assert.Equal(t, 1, d.Queue().Len())

	d.Queue().Tick(context.Background(), now.Add(time.Minute))
	assert.Equal(t, 0, d.Queue().Len())
}

func TestMQTTTestConnection(t *testing.T) {
	d, pub, _, resourceID := newMQTTFixture(t)
	cfg := &store.MQTTConfig{ResourceID: resourceID, Host: "broker.local", Port: 1883}

	require.NoError(t, d.TestConnection(context.Background(), cfg))

	pub.checkErr = errors.New("connection refused")
	err := d.TestConnection(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt connection test failed")
}
