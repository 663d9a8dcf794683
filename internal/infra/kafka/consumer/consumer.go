package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/openconv/convertor/internal/config"
)

// launchHandler defines the interface for handling launch commands.
type launchHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// Consumer represents the worker-group Kafka consumer along with its
// configuration and the handler that processes launch commands.
type Consumer struct {
	Client        *wbfkafka.Consumer
	launchHandler launchHandler
	cfg           *config.Kafka
	strategy      retry.Strategy
}

// New creates a new Consumer.
// - cfg: Kafka configuration struct
// - s: retry strategy
// - lh: handler for processing launch commands
func New(
	cfg *config.Kafka,
	s retry.Strategy,
	lh launchHandler,
) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return &Consumer{
		Client:        consumer,
		launchHandler: lh,
		cfg:           cfg,
		strategy:      s,
	}
}

// Consume continuously fetches messages from Kafka, processes them using
// the handler, and commits offsets after the handler accepts them. The
// handler never blocks on conversion work, so delivery throughput is not
// gated by handler latency. It stops gracefully on context cancellation.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)

		if err != nil {
			// Log error and retry after a short backoff.
			zlog.Logger.Err(err).Msg("failed to fetch message")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// Hand the command to the launch handler. Delivery is
		// at-least-once: a rejected message is not committed and will
		// be redelivered.
		if err := c.launchHandler.Handle(ctx, msg); err != nil {
			zlog.Logger.Err(err).
				Str("message", string(msg.Value)).
				Msg("failed to handle launch command")
			continue
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
		}

		zlog.Logger.Info().
			Int64("offset", msg.Offset).
			Str("message", string(msg.Value)).
			Msg("launch command accepted")
	}
}
