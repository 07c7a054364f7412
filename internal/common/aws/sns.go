package aws

import (
	"context"
	"encoding/json"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/logger"
)

// Publisher is the slice of the SNS API the event publisher needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

// RunEvent summarises one pipeline run. It never carries prompt text or
// detected values.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Mode         string    `json:"mode"`
	PostType     string    `json:"post_type"`
	Status       string    `json:"status"`
	PiiCount     int       `json:"pii_count"`
	References   int       `json:"references"`
	FilterFields int       `json:"filter_fields"`
	Results      int       `json:"results"`
	DurationMs   int64     `json:"duration_ms"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RunEventPublisher sends run events to an SNS topic.
type RunEventPublisher struct {
	client   Publisher
	topicARN string
	logger   logger.Logger
}

func NewRunEventPublisher(client Publisher, topicARN string, log logger.Logger) *RunEventPublisher {
	return &RunEventPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.With(map[string]interface{}{"component": "run_events"}),
	}
}

func (p *RunEventPublisher) Publish(ctx context.Context, event RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {DataType: awssdk.String("String"), StringValue: awssdk.String(event.Status)},
			"mode":   {DataType: awssdk.String("String"), StringValue: awssdk.String(event.Mode)},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}

	p.logger.Debug("run event published", map[string]interface{}{
		"runId":     event.RunID,
		"messageId": awssdk.ToString(out.MessageId),
	})
	return nil
}
