// Package sns delivers push messages to SNS platform application endpoints.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/infrastructure/push"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender publishes to an endpoint ARN. The delivery address stored for a
// recipient is the ARN itself.
type Sender struct {
	client publisher
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Push.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, clientOpts...)}, nil
}

func (s *Sender) Name() string { return "sns" }

func (s *Sender) Send(ctx context.Context, msg domain.PushMessage) error {
	body, err := buildMessage(msg)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(msg.Address),
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	})
	if err == nil {
		return nil
	}

	var disabled *types.EndpointDisabledException
	var invalid *types.InvalidParameterException
	var notFound *types.NotFoundException
	if errors.As(err, &disabled) || errors.As(err, &invalid) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", push.ErrInvalidAddress, err)
	}
	return fmt.Errorf("sns publish: %w", err)
}

// buildMessage renders the per-platform JSON document SNS expects when
// MessageStructure is "json". Each platform value is itself a JSON string.
func buildMessage(msg domain.PushMessage) (string, error) {
	gcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         msg.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}

	aps := map[string]any{
		"aps": map[string]any{
			"alert": map[string]string{"title": msg.Title, "body": msg.Body},
			"sound": "default",
		},
	}
	for k, v := range msg.Data {
		if k != "aps" {
			aps[k] = v
		}
	}
	apns, err := json.Marshal(aps)
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}

	doc, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}
