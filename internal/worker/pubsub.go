package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	Client           *pubsub.Client
	SubscriptionName string
	Processor        *Processor

	// MaxOutstandingMessages bounds concurrent deliveries.
	// Default: 10
	MaxOutstandingMessages int

	Logger zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler on an existing client.
func NewPubSubHandler(cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.MaxOutstandingMessages <= 0 {
		cfg.MaxOutstandingMessages = 10
	}

	subscriber := cfg.Client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           cfg.Client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if err := h.processor.Handle(ctx, msg.Data); err != nil {
		if !Retryable(err) {
			logger.Warn().Err(err).Msg("dropping unprocessable message")
			msg.Ack() // Redelivery cannot fix it
			return
		}
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}

// PubSubPublisher publishes job results to a topic.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a result publisher for topicID.
func NewPubSubPublisher(client *pubsub.Client, topicID string, logger zerolog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		publisher: client.Publisher(topicID),
		logger:    logger,
	}
}

// Publish sends a result and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	attrs := map[string]string{"job_type": result.JobType}
	if result.JobID != "" {
		attrs["job_id"] = result.JobID
	}

	id, err := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return err
	}

	p.logger.Debug().Str("result_id", id).Str("job_type", result.JobType).Msg("result published")
	return nil
}

// Stop flushes pending results.
func (p *PubSubPublisher) Stop() {
	p.publisher.Stop()
}
