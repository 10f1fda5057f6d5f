package notifications

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

type pushHandler interface {
	Push(ctx context.Context, raw []byte, fallbackID string) (Delivery, error)
}

// outcome is what the consumer tells Pub/Sub about one message.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRedeliver
)

// Consumer feeds Pub/Sub push fan-out into the local inbox. The message id
// doubles as the delivery id when the payload carries none.
type Consumer struct {
	handler      pushHandler
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(handler pushHandler, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	switch {
	case handler == nil:
		return nil, errors.New("push handler required")
	case subscription == nil:
		return nil, errors.New("push subscription required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{handler: handler, subscription: subscription, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeRedeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process acks everything except failures worth retrying; a malformed push
// would fail the same way on every redelivery.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	ctx = c.logg.WithField(ctx, "message_id", msg.ID)

	delivery, err := c.handler.Push(ctx, msg.Data, msg.ID)
	switch {
	case err != nil:
		c.logg.Error(c.logg.WithField(ctx, "retryable", pkgerrors.IsRetryable(err)), "push delivery failed", err)
		if pkgerrors.IsRetryable(err) {
			return outcomeRedeliver
		}
	case delivery.Duplicate:
		c.logg.Info(ctx, "push already delivered")
	default:
		c.logg.Info(c.logg.WithField(ctx, "notification_id", delivery.Presentation.ID), "push delivered")
	}
	return outcomeAck
}
