package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

// SQSSink publishes events to a single queue. Consumers route on the
// EventType message attribute.
type SQSSink struct {
	svc      sqsiface.SQSAPI
	queueURL string
}

func NewSQSSink(region, endpoint, queueURL string) (*SQSSink, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("NewSQSSink: %w", err)
	}

	svc := sqs.New(sess)

	// Local stacks (localstack, elasticmq) expose SQS on a custom endpoint.
	if endpoint != "" {
		svc.Endpoint = endpoint
	}

	return &SQSSink{svc: svc, queueURL: queueURL}, nil
}

func newSQSSinkWithClient(svc sqsiface.SQSAPI, queueURL string) *SQSSink {
	return &SQSSink{svc: svc, queueURL: queueURL}
}

func (s *SQSSink) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("Send: marshal: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			"EventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(e.EventType)),
			},
			"Source": {
				DataType:    aws.String("String"),
				StringValue: aws.String(e.Source),
			},
		},
	}
	if e.CorrelationID != "" {
		input.MessageAttributes["CorrelationID"] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(e.CorrelationID),
		}
	}

	result, err := s.svc.SendMessageWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}

	logging.FromContext(ctx).Debug("event sent to queue",
		"event_type", e.EventType,
		"event_id", e.EventID,
		"message_id", aws.StringValue(result.MessageId),
	)
	return nil
}
