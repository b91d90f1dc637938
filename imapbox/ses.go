package imapbox

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries     = 3
	baseRetryDelay = 1 * time.Second
)

// SESConfig holds the settings for SESSender.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string // overrides the From envelope when set
}

// SendEmailAPI is the SES v2 operation SESSender uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends replies as raw messages through AWS SES v2.
type SESSender struct {
	sender    string
	client    SendEmailAPI
	baseDelay time.Duration
}

// NewSESSender loads AWS configuration, preferring static keys when both are set.
func NewSESSender(ctx context.Context, cfg SESConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESSenderWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewSESSenderWithClient creates a SESSender around an existing client.
func NewSESSenderWithClient(sender string, client SendEmailAPI) *SESSender {
	return &SESSender{sender: sender, client: client, baseDelay: baseRetryDelay}
}

func (s *SESSender) Name() string { return "ses" }

// Send delivers raw, retrying transient failures with exponential backoff.
func (s *SESSender) Send(ctx context.Context, from string, to []string, raw []byte) (string, error) {
	if s.sender != "" {
		from = s.sender
	}
	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{ToAddresses: to},
		Content:     &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	}
	if from != "" {
		input.FromEmailAddress = aws.String(from)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().Int("attempt", attempt).Int("max_retries", maxRetries).Msg("SES: retrying request")
			if err := sleepWithContext(ctx, backoffDelay(s.baseDelay, attempt)); err != nil {
				return "", fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		out, err := s.client.SendEmail(ctx, input)
		if err == nil {
			id := aws.ToString(out.MessageId)
			log.Info().Str("ses_id", id).Msg("SES: message sent")
			return id, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("SES: API error")
	}
	return "", fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
