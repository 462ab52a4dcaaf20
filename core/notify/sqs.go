package notify

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/logger"
)

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS sends notifications to an AWS SQS queue
type SQS struct {
	client   sqsClient
	queueURL string
}

// NewSQS returns a notifier sending to queueURL with the default AWS configuration of region
func NewSQS(ctx context.Context, region, queueURL string) (*SQS, error) {
	if queueURL == "" {
		return nil, errors.New("sqs notifier needs a queue url")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SQS{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// Notify implements core.Notifier
func (s *SQS) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	attributes := map[string]types.MessageAttributeValue{
		"resource":  {DataType: aws.String("String"), StringValue: aws.String(resource)},
		"operation": {DataType: aws.String("String"), StringValue: aws.String(string(operation))},
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		attributes["requestID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(requestID)}
	}
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(payload)),
		MessageAttributes: attributes,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 5102: cannot send %s notification for %s", operation, resource)
	}
}
