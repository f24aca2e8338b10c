package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

const eventSource = "graphitti.versioning"

// Publisher emits lifecycle events to an EventBridge bus. Consumers wire
// their own rules and targets; this side only publishes.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends one event with the given detail payload
func (p *Publisher) Publish(ctx context.Context, eventType string, detail interface{}) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventBusName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(eventType),
				Detail:       aws.String(string(payload)),
				Time:         aws.Time(time.Now()),
			},
		},
	}

	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish event to EventBridge: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Event entry rejected",
					zap.String("eventType", eventType),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("event %s failed to publish", eventType)
	}

	p.logger.Debug("Event published",
		zap.String("eventType", eventType),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

// NopPublisher discards events. Used when event publication is disabled.
type NopPublisher struct{}

// Publish drops the event
func (NopPublisher) Publish(ctx context.Context, eventType string, detail interface{}) error {
	return nil
}
