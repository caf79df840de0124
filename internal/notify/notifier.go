// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	awsclients "freight-match-engine/internal/common/aws"
	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/models"
)

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// TopicPublisher publishes a message to an SNS topic.
type TopicPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// PremiumNotifier tells dispatchers about fresh premium-tier suggestions via
// SES email and an SNS topic. Every call is best-effort; delivery failures
// are logged and swallowed so they never fail a match run. Implements
// matching.SuggestionNotifier.
type PremiumNotifier struct {
	cfg    config.NotificationConfig
	email  EmailSender
	topic  TopicPublisher
	logger logger.Logger
}

func NewPremiumNotifier(cfg config.NotificationConfig, email EmailSender, topic TopicPublisher, log logger.Logger) *PremiumNotifier {
	return &PremiumNotifier{cfg: cfg, email: email, topic: topic, logger: log}
}

// NewPremiumNotifierFromConfig builds the notifier with real AWS clients.
// Channels that are disabled in config get no client at all.
func NewPremiumNotifierFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*PremiumNotifier, error) {
	var email EmailSender
	var topic TopicPublisher

	if cfg.Email.Enabled {
		client, err := awsclients.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = client
	}
	if cfg.SMS.Enabled {
		client, err := awsclients.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		topic = client
	}
	return NewPremiumNotifier(cfg, email, topic, log), nil
}

// NotifyPremiumSuggestions announces the premium suggestions for one freight
// offer. Non-premium matches in the slice are ignored.
func (n *PremiumNotifier) NotifyPremiumSuggestions(ctx context.Context, freight *models.FreightOffer, matches []*models.MatchResult) {
	premium := make([]*models.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Tier == models.TierPremium {
			premium = append(premium, m)
		}
	}
	if len(premium) == 0 {
		return
	}

	subject := fmt.Sprintf("%d premium match(es) for freight %s", len(premium), freight.ID)
	body := buildBody(freight, premium)

	if n.email != nil && n.cfg.Email.Enabled {
		n.sendEmail(ctx, subject, body)
	}
	if n.topic != nil && n.cfg.SMS.Enabled {
		n.publishTopic(ctx, subject, freight, premium)
	}
}

func (n *PremiumNotifier) sendEmail(ctx context.Context, subject, body string) {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.Email.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		n.logger.WithError(err).Warn("premium suggestion email failed", nil)
	}
}

func (n *PremiumNotifier) publishTopic(ctx context.Context, subject string, freight *models.FreightOffer, premium []*models.MatchResult) {
	_, err := n.topic.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.SMS.TopicArn),
		Subject:  aws.String(subject),
		Message: aws.String(fmt.Sprintf("Freight %s (%s -> %s): %d premium suggestion(s), top score %.1f",
			freight.ID, freight.OriginCountry, freight.DestinationCountry,
			len(premium), premium[0].AIScore)),
	})
	if err != nil {
		n.logger.WithError(err).Warn("premium suggestion topic publish failed", nil)
	}
}

func buildBody(freight *models.FreightOffer, premium []*models.MatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Freight offer %s (%s, %s -> %s, %s) has new premium suggestions:\n\n",
		freight.ID, freight.CompanyID,
		freight.OriginCountry, freight.DestinationCountry,
		freight.LoadingDate.Format("2006-01-02"))
	for _, m := range premium {
		fmt.Fprintf(&b, "  vehicle %s  score %.1f  (model v%d)\n", m.VehicleOfferID, m.AIScore, m.ModelVersion)
	}
	return b.String()
}
