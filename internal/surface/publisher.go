package surface

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jpalmerr/watchboard/internal/ids"
	"github.com/jpalmerr/watchboard/internal/jsoncodec"
)

const (
	// DefaultTopic is the topic used when [PublisherConfig.Topic] is empty.
	DefaultTopic = "watchboard.handles"
	// DefaultBuffer is the queue length used when [PublisherConfig.Buffer]
	// is not positive.
	DefaultBuffer = 256
)

// Metadata keys set on published messages.
const (
	MetaEvent    = "event"
	MetaHandle   = "handle_id"
	MetaIdentity = "identity"
)

// PublisherConfig configures a [Publisher].
type PublisherConfig struct {
	Topic string
	// Updates controls whether text updates are published; created and
	// disposed notifications always are.
	Updates bool
	// Buffer bounds the notifications waiting for the broker.
	Buffer int
	Logger *slog.Logger
}

// Publisher sends notifications to a watermill publisher as JSON messages.
// Messages are handed to the broker on a separate goroutine, so a slow
// broker never stalls the update loop: when the queue is full the
// notification is logged and dropped. Publish failures are logged and
// dropped too.
type Publisher struct {
	pub     message.Publisher
	topic   string
	updates bool
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	queue   chan *message.Message
	done    chan struct{}
	dropped atomic.Int64
}

// NewPublisher wraps pub and starts the goroutine feeding it. Call
// [Publisher.Close] to stop it.
func NewPublisher(pub message.Publisher, cfg PublisherConfig) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Publisher{
		pub:     pub,
		topic:   cfg.Topic,
		updates: cfg.Updates,
		logger:  cfg.Logger,
		queue:   make(chan *message.Message, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) HandleCreated(s Snapshot) { p.publish(EventCreated, s) }

func (p *Publisher) HandleUpdated(s Snapshot) {
	if p.updates {
		p.publish(EventUpdated, s)
	}
}

func (p *Publisher) HandleDisposed(s Snapshot) { p.publish(EventDisposed, s) }

func (p *Publisher) publish(event string, s Snapshot) {
	payload, err := jsoncodec.Marshal(s)
	if err != nil {
		p.logger.Error("failed to encode handle notification", "error", err, "handle", s.ID)
		return
	}

	msg := message.NewMessage(ids.New(), payload)
	msg.Metadata.Set(MetaEvent, event)
	msg.Metadata.Set(MetaHandle, s.ID)
	msg.Metadata.Set(MetaIdentity, s.Identity)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.logger.Warn("handle notification dropped, publisher queue full",
			"topic", p.topic,
			"event", event,
			"handle", s.ID,
		)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		if err := p.pub.Publish(p.topic, msg); err != nil {
			p.logger.Warn("failed to publish handle notification",
				"error", err,
				"topic", p.topic,
				"event", msg.Metadata.Get(MetaEvent),
				"handle", msg.Metadata.Get(MetaHandle),
			)
		}
	}
}

// Dropped returns the number of notifications discarded on a full queue.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting notifications and waits until the queued ones
// have been handed to the broker or ctx is done. Notifications arriving
// after Close are discarded. The wrapped publisher is not closed.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
