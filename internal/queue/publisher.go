// Package queue provides SQS-based message producers for dispatching
// marketplace events to downstream fulfilment workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"kisaanconnect/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// eventTypeOrderPlaced is the event_type message attribute for order events,
// letting consumers filter without decoding the body.
const eventTypeOrderPlaced = "order_placed"

// OrderEventPublisher sends OrderPlacedEvent messages to the fulfilment
// queue. Publishing is best-effort from the caller's perspective: the market
// service logs failures and keeps the order.
type OrderEventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewOrderEventPublisher creates a publisher for the given queue URL.
func NewOrderEventPublisher(client SQSSender, queueURL string, logger *slog.Logger) *OrderEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderEventPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishOrderPlaced serializes the event to JSON and dispatches it.
func (p *OrderEventPublisher) PublishOrderPlaced(ctx context.Context, event *types.OrderPlacedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal OrderPlacedEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventTypeOrderPlaced),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send OrderPlacedEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "order event published",
		"queue_url", p.queueURL,
		"order_id", event.OrderID,
		"trace_id", event.TraceID,
		"item_count", event.ItemCount,
	)

	return nil
}
