package natsintake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/stocklog/internal/intake"
)

// DefaultSubject is the subject batches are consumed from.
const DefaultSubject = "stocklog.units"

// Applier applies one batch as a processing unit.
type Applier interface {
	Apply(ctx context.Context, b intake.Batch) (intake.Summary, error)
}

// Consumer feeds NATS messages to an Applier.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - Stop(): safe from any goroutine
type Consumer struct {
	conn    Conn
	subject string
	applier Applier
	queue   *messageQueue
	logger  *slog.Logger
}

// New creates a Consumer. An empty subject uses DefaultSubject and a nil
// logger uses slog.Default().
func New(conn Conn, subject string, applier Applier, logger *slog.Logger) *Consumer {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:    conn,
		subject: subject,
		applier: applier,
		queue:   newMessageQueue(),
		logger:  logger,
	}
}

// Run subscribes and applies messages until ctx is done or Stop is called.
//
// A message that cannot be decoded or applied is logged and dropped;
// processing continues with the next one.
func (c *Consumer) Run(ctx context.Context) error {
	unsubscribe, err := c.conn.Subscribe(c.subject, func(m Message) {
		if !c.queue.Enqueue(m) {
			c.logger.Warn("message dropped: consumer stopped", "subject", m.Subject)
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", "subject", c.subject, "error", err)
		}
	}()

	c.logger.Info("nats intake starting", "subject", c.subject)
	for {
		if m, ok := c.queue.TryDequeue(); ok {
			if err := c.process(ctx, m); err != nil {
				c.logger.Error("message processing failed",
					"subject", m.Subject,
					"bytes", len(m.Data),
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("nats intake stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()
		case _, ok := <-c.queue.Wait():
			if !ok && c.queue.Len() == 0 {
				// Closed by Stop and drained.
				c.logger.Info("nats intake stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, which makes Run return once it is drained.
func (c *Consumer) Stop() {
	c.queue.Close()
}

func (c *Consumer) process(ctx context.Context, m Message) error {
	batch, err := intake.DecodeBytes(m.Data, intake.FormatJSON)
	if err != nil {
		return err
	}

	sum, err := c.applier.Apply(ctx, batch)
	if err != nil {
		return err
	}

	if m.Reply == "" {
		return nil
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.conn.Publish(m.Reply, data); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}
