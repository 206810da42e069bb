package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

// AdaptiveRanker is the subset of ranker.AdaptiveRanker the collector
// forwards live feedback into, so weight adaptation observes events as
// they arrive rather than only on the next offline Window read.
type AdaptiveRanker interface {
	RecordFeedback(event model.FeedbackEvent)
}

// Collector is the Feedback Collector: it persists every event to the
// append-only Store and, if an AdaptiveRanker is attached, forwards it
// there synchronously.
type Collector struct {
	store  *Store
	ranker AdaptiveRanker
	logger *slog.Logger
}

// Option configures a Collector at construction time.
type Option func(*Collector)

// WithAdaptiveRanker attaches a ranker to receive a live copy of every
// recorded event.
func WithAdaptiveRanker(r AdaptiveRanker) Option {
	return func(c *Collector) { c.ranker = r }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollector wraps store with the live-forwarding behavior described
// above.
func NewCollector(store *Store, opts ...Option) *Collector {
	c := &Collector{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record persists event and forwards it to the attached adaptive ranker,
// if any. Persistence failures are logged (never panic a caller mid
// request) and returned so a caller with stronger durability
// requirements can react.
func (c *Collector) Record(ctx context.Context, event model.FeedbackEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := c.store.Record(ctx, event); err != nil {
		c.logger.Error("feedback_record_failed", slog.String("error", err.Error()), slog.String("kind", string(event.Kind)))
		return err
	}

	if c.ranker != nil {
		c.ranker.RecordFeedback(event)
	}
	return nil
}

// Window returns every event recorded at or after since.
func (c *Collector) Window(ctx context.Context, since time.Time) ([]model.FeedbackEvent, error) {
	return c.store.Window(ctx, since)
}

// Close releases the underlying store.
func (c *Collector) Close() error {
	return c.store.Close()
}
