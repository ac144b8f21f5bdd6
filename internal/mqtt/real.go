package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/firebot/firebot/internal/logic"
)

const (
	qosEvents = 0
	qosSystem = 1

	systemTimeout     = 5 * time.Second
	writeTimeout      = time.Second
	closeTimeout      = time.Second
	disconnectQuiesce = 1000 // milliseconds
)

var errSystemTimeout = errors.New("publish system timeout")

// RealPublisher publishes to an actual MQTT broker.
// Robot events are handed to a drain goroutine through a bounded queue so the
// caller never waits on the network. Messages published while the connection
// is down are held in a ring buffer and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client
	log    zerolog.Logger
	now    func() time.Time

	queue chan bufferedMsg
	done  chan struct{}

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one successful connection
	closed    bool
	overrun   bool // queue overflow already logged
}

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background. It never blocks on the network.
func NewRealPublisher(o Options, log zerolog.Logger) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: empty broker address")
	}
	p := newPublisher(o.BufferSize, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "CONNECTION_LOST",
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
		SetWriteTimeout(writeTimeout).
		SetBinaryWill(TopicSystem, will, qosSystem, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.attach(paho.NewClient(opts))
	p.client.Connect()
	p.log.Info().Str("broker", o.Broker).Str("client_id", o.ClientID).Msg("connecting")
	return p, nil
}

func newPublisher(bufferSize int, log zerolog.Logger) *RealPublisher {
	buf := newRingBuffer(bufferSize)
	return &RealPublisher{
		log:   log.With().Str("component", "mqtt").Logger(),
		now:   time.Now,
		queue: make(chan bufferedMsg, buf.capacity),
		done:  make(chan struct{}),
		buf:   buf,
	}
}

// attach sets the client and starts the drain goroutine.
func (p *RealPublisher) attach(c paho.Client) {
	p.client = c
	go p.drain()
}

func (p *RealPublisher) drain() {
	defer close(p.done)
	for m := range p.queue {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// onConnect replays buffered messages and announces reconnections.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	reconnected := p.connected
	p.connected = true
	p.mu.Unlock()

	if reconnected {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(TopicSystem, qosSystem, false, payload)
		}
	}
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.log.Info().Int("replayed", len(pending)).Msg("connected")
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// buffer stores m for replay. Caller holds p.mu.
func (p *RealPublisher) buffer(m bufferedMsg) {
	if p.buf.push(m) {
		p.log.Warn().Int("capacity", p.buf.capacity).Msg("buffer full, dropping oldest")
	}
}

// Publish queues a robot event for the broker. It never blocks: when the
// queue is full the event is dropped.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	m := bufferedMsg{topic: Topic, payload: payload, qos: qosEvents}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		p.buffer(m)
		return nil
	}
	select {
	case p.queue <- m:
		p.overrun = false
	default:
		if !p.overrun {
			p.overrun = true
			p.log.Warn().Str("event", string(event.Type)).Msg("publish queue full, dropping event")
		}
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
// It waits a bounded time for delivery when connected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if !p.client.IsConnectionOpen() {
		p.buffer(bufferedMsg{topic: TopicSystem, payload: payload, qos: qosSystem, retained: event.Retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(TopicSystem, qosSystem, event.Retained, payload)
	if !token.WaitTimeout(systemTimeout) {
		return errSystemTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close drains queued events for a bounded time and disconnects.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	undelivered := p.buf.len()
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(closeTimeout):
		p.log.Warn().Int("queued", len(p.queue)).Msg("publish queue not drained")
	}
	p.client.Disconnect(disconnectQuiesce)
	if undelivered > 0 {
		p.log.Warn().Int("dropped", undelivered).Msg("closing with undelivered messages")
	}
	return nil
}
