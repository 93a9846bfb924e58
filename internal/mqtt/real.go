package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/button-sensor/internal/events"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Format      string
	BufferSize  int
	Logger      *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	eventsTopic string
	systemTopic string
	format      string
	logger      *slog.Logger

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
	now           func() time.Time
}

// NewRealPublisher creates a publisher connected to the configured broker.
// If the broker is not reachable yet, the publisher is still returned and
// messages are buffered until paho's retry loop connects.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt broker not set")
	}
	p := newPublisher(nil, o)

	willPayload, err := EncodeSystemPayload(p.format, events.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.systemTopic, willPayload, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.logger.Warn("mqtt broker not reachable yet, buffering", "broker", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(client paho.Client, o Options) *RealPublisher {
	prefix := o.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	size := o.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RealPublisher{
		client:      client,
		eventsTopic: EventsTopic(prefix),
		systemTopic: SystemTopic(prefix),
		format:      o.Format,
		logger:      logger,
		buf:         newRingBuffer(size, logger),
		now:         time.Now,
	}
}

// onConnect replays buffered messages and, on reconnects, announces the
// recovery on the system topic. paho runs it on its own goroutine.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	first := !p.connectedOnce
	p.connectedOnce = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if first {
		p.logger.Info("mqtt connected")
	} else {
		p.logger.Info("mqtt reconnected", "replaying", len(pending))
		payload, err := EncodeSystemPayload(p.format, events.SystemEvent{
			Timestamp: p.now(),
			Event:     "RECONNECTED",
		})
		if err == nil {
			c.Publish(p.systemTopic, 1, true, payload)
		}
	}

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event events.Event) error {
	payload, err := EncodePayload(p.format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.eventsTopic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event events.SystemEvent) error {
	payload, err := EncodeSystemPayload(p.format, event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.push(m)
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.buf.push(m)
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
