package aws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/common/logger"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("m-1")}, nil
}

func TestRunEventPublisher_Publish(t *testing.T) {
	client := &fakePublisher{}
	p := NewRunEventPublisher(client, "arn:aws:sns:us-east-1:123:filter-runs", logger.NewTestLogger(t))

	event := RunEvent{
		RunID:      "run-1",
		Mode:       "connections",
		PostType:   "contacts",
		Status:     "success",
		PiiCount:   1,
		Results:    3,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.NotNil(t, client.input)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:filter-runs", awssdk.ToString(client.input.TopicArn))
	assert.Equal(t, "success", awssdk.ToString(client.input.MessageAttributes["status"].StringValue))

	var decoded RunEvent
	require.NoError(t, json.Unmarshal([]byte(awssdk.ToString(client.input.Message)), &decoded))
	assert.Equal(t, event, decoded)
}

func TestRunEventPublisher_Error(t *testing.T) {
	p := NewRunEventPublisher(&fakePublisher{err: stderrors.New("throttled")}, "arn", logger.NewNoOpLogger())

	err := p.Publish(context.Background(), RunEvent{RunID: "run-1"})
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, se.Code)
}
