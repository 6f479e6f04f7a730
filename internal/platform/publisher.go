// Package platform delivers snapshot deltas to the entity platform.
//
// The engine itself never talks to the outside world: it returns a
// SnapshotDelta and this package fans it out. Delivery is fire-and-forget
// through a buffered notifier so a slow consumer can never hold up the
// upload path or any per-vehicle lock.
package platform

import (
	"context"
	"log/slog"

	"github.com/obddrive/obdd/internal/engine"
)

// Publisher realizes entities from a snapshot delta. Implementations own
// their error handling: a failed publish is logged, never propagated back
// into the upload path.
type Publisher interface {
	Publish(ctx context.Context, delta engine.SnapshotDelta)
}

// DefaultBuffer is the notifier queue depth. At one upload per second per
// vehicle this covers a multi-minute consumer stall before drops begin.
const DefaultBuffer = 256

// Notifier decouples the upload path from publishers with a buffered
// queue and a single delivery goroutine. When the queue is full the delta
// is dropped with a warning: the next upload supersedes it anyway, since
// deltas carry last-value state rather than history.
type Notifier struct {
	publishers []Publisher
	ch         chan engine.SnapshotDelta
}

// NewNotifier creates a notifier over the given publishers.
func NewNotifier(buffer int, publishers ...Publisher) *Notifier {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Notifier{
		publishers: publishers,
		ch:         make(chan engine.SnapshotDelta, buffer),
	}
}

// Start runs the delivery loop until the context is cancelled.
// Call it once, on its own goroutine.
func (n *Notifier) Start(ctx context.Context) {
	slog.Info("snapshot notifier started", "publishers", len(n.publishers), "buffer", cap(n.ch))
	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot notifier stopped")
			return
		case delta := <-n.ch:
			for _, p := range n.publishers {
				p.Publish(ctx, delta)
			}
		}
	}
}

// Notify enqueues a delta without blocking.
func (n *Notifier) Notify(delta engine.SnapshotDelta) {
	select {
	case n.ch <- delta:
	default:
		slog.Warn("snapshot notifier queue full, delta dropped",
			"vehicle", delta.VehicleKey,
			"upload_id", delta.UploadID,
		)
	}
}

// LogPublisher writes snapshot deltas to the structured log. It is always
// active and doubles as the reference Publisher implementation.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, delta engine.SnapshotDelta) {
	logger := slog.Default().With(
		"vehicle", delta.VehicleKey,
		"upload_id", delta.UploadID,
	)

	if delta.VehicleCreated {
		logger.Info("vehicle created", "name", delta.Name)
	}
	for _, key := range delta.CreatedChannels {
		logger.Info("channel created", "channel", key)
	}
	if delta.PositionCreated {
		logger.Info("position tracker created")
	}

	logger.Debug("snapshot applied",
		"channels", len(delta.Channels),
		"position", delta.Position != nil,
	)
}
