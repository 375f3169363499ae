package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisaanconnect/internal/types"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func testEvent() *types.OrderPlacedEvent {
	return &types.OrderPlacedEvent{
		TraceID:     "trace-1",
		OrderID:     101,
		ConsumerID:  7,
		TotalAmount: 181,
		ItemCount:   2,
		Status:      types.OrderStatusPending,
		PlacedAt:    time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishOrderPlaced_Success(t *testing.T) {
	client := &mockSQS{}
	pub := NewOrderEventPublisher(client, "https://sqs.example/orders", slog.New(slog.DiscardHandler))

	err := pub.PublishOrderPlaced(context.Background(), testEvent())
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "https://sqs.example/orders", *input.QueueUrl)

	attr, ok := input.MessageAttributes["event_type"]
	require.True(t, ok)
	assert.Equal(t, "order_placed", *attr.StringValue)

	var decoded types.OrderPlacedEvent
	require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &decoded))
	assert.Equal(t, int64(101), decoded.OrderID)
	assert.Equal(t, "trace-1", decoded.TraceID)
	assert.Equal(t, types.OrderStatusPending, decoded.Status)
}

func TestPublishOrderPlaced_SendFailure(t *testing.T) {
	client := &mockSQS{err: errors.New("sqs unreachable")}
	pub := NewOrderEventPublisher(client, "https://sqs.example/orders", slog.New(slog.DiscardHandler))

	err := pub.PublishOrderPlaced(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqs unreachable")
}
