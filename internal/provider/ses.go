package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/marketing-engine/internal/config"
)

// SESProvider delivers mail through AWS SES using the SDK v2.
type SESProvider struct {
	client *sesv2.Client
	region string
}

// NewSESProvider builds an SES client from static credentials.
func NewSESProvider(ctx context.Context, cfg appconfig.SESConfig) (*SESProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESProvider{
		client: sesv2.NewFromConfig(awsCfg),
		region: cfg.Region,
	}, nil
}

func (p *SESProvider) Name() string { return "ses" }

// Send delivers a single email through SES.
func (p *SESProvider) Send(ctx context.Context, msg Message) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.Text != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.CampaignID != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID),
		})
	}
	if msg.AutomationID != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name: aws.String("automation_id"), Value: aws.String(msg.AutomationID),
		})
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		// SES SDK errors are overwhelmingly transient at this layer
		// (throttling, connectivity); address-level rejects come back
		// asynchronously as bounces.
		return "", &Error{Provider: "ses", Retryable: true, Err: err}
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return messageID, nil
}
