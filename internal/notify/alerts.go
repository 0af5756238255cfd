// internal/notify/alerts.go
package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonaws "referralbridge/internal/common/aws"
	"referralbridge/internal/common/logger"
)

// Alerter pushes operator alerts for conditions that need a human, above all
// the paid-but-unrecorded case.
type Alerter interface {
	CriticalAlert(ctx context.Context, subject, message string) error
}

// SNSAlerter publishes alerts to an SNS topic.
type SNSAlerter struct {
	client   *commonaws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSAlerter(client *commonaws.SNSClient, topicARN string, log logger.Logger) *SNSAlerter {
	return &SNSAlerter{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "alerts"}),
	}
}

func (a *SNSAlerter) CriticalAlert(ctx context.Context, subject, message string) error {
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		a.logger.Error("alert publish failed", map[string]interface{}{
			"subject": subject,
			"error":   err,
		})
		return err
	}
	return nil
}
