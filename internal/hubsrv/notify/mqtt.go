package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/hubsrv/events"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/template"
)

const mqttConnectTimeout = 10 * time.Second

// Broker identifies one MQTT server endpoint.
type Broker struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

func (b Broker) key() string {
	return fmt.Sprintf("%s:%d/%s", b.Host, b.Port, b.Username)
}

func (b Broker) addr() string {
	return fmt.Sprintf("tcp://%s:%d", b.Host, b.Port)
}

// Publisher publishes to a broker and can probe connectivity. Satisfied by
// ConnManager; tests substitute a fake.
type Publisher interface {
	Publish(ctx context.Context, b Broker, topic, payload string) error
	// Check makes one throwaway connect attempt, bypassing the persistent
	// client cache.
	Check(ctx context.Context, b Broker) error
}

// ConnManager keeps one persistent, auto-reconnecting client per broker.
// Clients are created lazily on first publish; concurrent first publishers
// share a single in-flight connect attempt.
type ConnManager struct {
	mu      sync.Mutex
	clients map[string]*clientConn
	// newClient is the client factory; a test seam.
	newClient func(opts *pahomqtt.ClientOptions) pahomqtt.Client
}

type clientConn struct {
	client pahomqtt.Client
	ready  chan struct{}
	err    error
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		clients:   make(map[string]*clientConn),
		newClient: pahomqtt.NewClient,
	}
}

func (m *ConnManager) Publish(ctx context.Context, b Broker, topic, payload string) error {
	cc := m.connFor(b)
	select {
	case <-cc.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if cc.err != nil {
		// Drop the failed entry so a later attempt reconnects.
		m.evict(b.key(), cc)
		return cc.err
	}
	if !cc.client.IsConnected() {
		return errors.New("mqtt server disconnected")
	}
	token := cc.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttConnectTimeout) {
		return errors.New("mqtt publish timed out")
	}
	return token.Error()
}

// connFor returns the connection entry for the broker, starting a connect
// attempt if none exists. Only one connect per broker is ever in flight.
func (m *ConnManager) connFor(b Broker) *clientConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cc, ok := m.clients[b.key()]; ok {
		return cc
	}
	cc := &clientConn{ready: make(chan struct{})}
	m.clients[b.key()] = cc
	go m.connect(b, cc)
	return cc
}

func (m *ConnManager) connect(b Broker, cc *clientConn) {
	defer close(cc.ready)
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.addr()).
		SetUsername(b.Username).
		SetPassword(b.Password).
		SetClientID(b.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	client := m.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		cc.err = errors.New("mqtt connect timed out")
		return
	}
	if err := token.Error(); err != nil {
		cc.err = err
		return
	}
	cc.client = client
}

func (m *ConnManager) evict(key string, cc *clientConn) {
	m.mu.Lock()
	if current, ok := m.clients[key]; ok && current == cc {
		delete(m.clients, key)
	}
	m.mu.Unlock()
}

// Check connects with a fresh client and disconnects immediately.
func (m *ConnManager) Check(ctx context.Context, b Broker) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.addr()).
		SetUsername(b.Username).
		SetPassword(b.Password).
		SetClientID(b.ClientID).
		SetConnectTimeout(mqttConnectTimeout)
	client := m.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	client.Disconnect(250)
	return nil
}

// Close disconnects all clients.
func (m *ConnManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, cc := range m.clients {
		select {
		case <-cc.ready:
			if cc.client != nil {
				cc.client.Disconnect(250)
			}
		default:
		}
		delete(m.clients, key)
	}
}

// MQTTDispatcher turns usage events into queued MQTT publishes.
type MQTTDispatcher struct {
	store     Store
	renderer  *template.Renderer
	queue     *Queue
	publisher Publisher
}

func NewMQTTDispatcher(s Store, renderer *template.Renderer, bus *events.Bus, publisher Publisher, interval time.Duration) *MQTTDispatcher {
	d := &MQTTDispatcher{
		store:     s,
		renderer:  renderer,
		queue:     NewQueue("mqtt", interval),
		publisher: publisher,
	}
	bus.Subscribe(d.HandleEvent)
	return d
}

// Queue exposes the delivery queue for the Run loop and for tests.
func (d *MQTTDispatcher) Queue() *Queue {
	return d.queue
}

func (d *MQTTDispatcher) HandleEvent(ev events.UsageEvent) {
	ctx := log.Logger.WithContext(context.Background())
	cfg, err := d.store.GetMQTTConfig(ctx, ev.ResourceID)
	if err != nil {
		if !err.Is(store.ErrNotFound) {
			log.Ctx(ctx).Error().Err(err).Str("resource_id", ev.ResourceID.String()).
				Msg("unable to load mqtt config")
		}
		return
	}
	renderCtx, aerr := renderContext(ctx, d.store, ev)
	if aerr != nil {
		log.Ctx(ctx).Error().Err(aerr).Str("resource_id", ev.ResourceID.String()).
			Msg("unable to build mqtt context")
		return
	}
	sender, buildErr := d.buildSender(cfg, ev.Kind, renderCtx)
	if buildErr != nil {
		log.Ctx(ctx).Error().Err(buildErr).Str("resource_id", ev.ResourceID.String()).
			Msg("unable to render mqtt notification")
		return
	}
	maxAttempts, delay := retryBudget(cfg.RetryEnabled, cfg.MaxRetries, cfg.RetryDelaySeconds)
	d.queue.Enqueue(&Item{
		ResourceID:  ev.ResourceID,
		Sender:      sender,
		MaxAttempts: maxAttempts,
		RetryDelay:  delay,
	})
}

func (d *MQTTDispatcher) buildSender(cfg *store.MQTTConfig, kind events.Kind, renderCtx map[string]interface{}) (*mqttSender, error) {
	payload, err := d.renderer.Render(templateFor(kind, cfg.InUseTemplate, cfg.NotInUseTemplate), renderCtx)
	if err != nil {
		return nil, err
	}
	topic := cfg.TopicTemplate
	if template.HasMarkers(topic) {
		if topic, err = d.renderer.Render(topic, renderCtx); err != nil {
			return nil, err
		}
	}
	return &mqttSender{
		publisher: d.publisher,
		broker: Broker{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			ClientID: cfg.ClientID,
		},
		topic:   topic,
		payload: payload,
	}, nil
}

// TestConnection performs a single synchronous connect attempt outside the
// queue, for configuration validation.
func (d *MQTTDispatcher) TestConnection(ctx context.Context, cfg *store.MQTTConfig) error {
	b := Broker{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		ClientID: cfg.ClientID,
	}
	if err := d.publisher.Check(ctx, b); err != nil {
		return fmt.Errorf("mqtt connection test failed: %w", err)
	}
	return nil
}

type mqttSender struct {
	publisher Publisher
	broker    Broker
	topic     string
	payload   string
}

func (s *mqttSender) Describe() string {
	return s.broker.addr() + " " + s.topic
}

func (s *mqttSender) Send(ctx context.Context) error {
	return s.publisher.Publish(ctx, s.broker, s.topic, s.payload)
}
