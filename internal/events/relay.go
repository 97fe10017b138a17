package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RelayConfig controls outbox polling.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay publishes pending outbox events. Delivery is at least once: a batch
// is marked sent only after Kafka acknowledged it.
type Relay struct {
	outbox  Outbox
	writer  Writer
	metrics *Metrics
	cfg     RelayConfig
}

// NewRelay creates a Relay.
func NewRelay(outbox Outbox, writer Writer, metrics *Metrics, cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{outbox: outbox, writer: writer, metrics: metrics, cfg: cfg}
}

// Run polls until ctx is cancelled. Batch failures are logged and retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("outbox")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Drain full batches without waiting for the next tick.
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn("Relay batch failed", zap.Error(err))
				break
			}
			if n < r.cfg.BatchSize {
				break
			}
		}
	}
}

// Flush publishes one batch of pending events and returns its size.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.outbox.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		r.metrics.Failures.Inc()
		return 0, errors.Wrap(err, "fetch pending")
	}
	r.metrics.Pending.Set(float64(len(records)))
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(records))
	ids := make([]int64, len(records))
	for i, rec := range records {
		msgs[i] = kafka.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(rec.EventID)},
			},
		}
		ids[i] = rec.ID
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		r.metrics.Failures.Inc()
		return 0, errors.Wrap(err, "publish")
	}
	if err := r.outbox.MarkSent(ctx, ids); err != nil {
		r.metrics.Failures.Inc()
		return 0, errors.Wrap(err, "mark sent")
	}

	for _, rec := range records {
		r.metrics.Published.WithLabelValues(rec.Topic).Inc()
	}
	return len(records), nil
}
