package producer

import (
	"context"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/openconv/convertor/internal/config"
)

// Producer represents a Kafka producer bound to the control topic.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Send publishes a raw key/value message on the control topic,
// retrying per the configured strategy.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.Client.SendWithRetry(ctx, p.strategy, key, value)
}
