package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"carecoins/internal/validation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"
)

// sesAPI is the part of the SES client used to send mail
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	enabled   bool
	log       logrus.FieldLogger
}

// NewEmailService creates a new email service. It is disabled when fromEmail is empty.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, log logrus.FieldLogger) (*EmailService, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if fromEmail == "" {
		log.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	log.WithFields(logrus.Fields{"region": awsRegion, "from": fromEmail}).Debug("Initializing email service with AWS SES")

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithFields(logrus.Fields{"region": awsRegion, "from": fromEmail}).Info("Email service enabled")

	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, log), nil
}

func newEmailService(client sesAPI, fromEmail, fromName string, log logrus.FieldLogger) *EmailService {
	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		log:       log,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendFamilyWelcome tells the creator of a family how others can join it
func (s *EmailService) SendFamilyWelcome(ctx context.Context, toEmail, toName, familyName, pin string) error {
	if !s.enabled {
		s.log.WithField("to", toEmail).Debug("Skipping email send (service disabled): family welcome")
		return nil
	}
	if err := validation.ValidateEmail(toEmail); err != nil {
		return fmt.Errorf("cannot send welcome email: %w", err)
	}

	subject := fmt.Sprintf("Welcome to CareCoins, %s!", familyName)
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2e9e6b; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.pin { font-size: 28px; letter-spacing: 8px; text-align: center; font-weight: bold; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s is ready</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>Your family has been created and this month's care coins have been calculated.</p>
			<p>Other family members can join from the app with this PIN:</p>
			<p class="pin">%s</p>
			<p>Keep the PIN private. Anyone who has it can join your family.</p>
		</div>
		<div class="footer">
			<p>This is an automated email from CareCoins. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(familyName), html.EscapeString(toName), html.EscapeString(pin))

	textBody := fmt.Sprintf(`Hi %s,

Your family "%s" has been created and this month's care coins have been calculated.

Other family members can join from the app with this PIN: %s

Keep the PIN private. Anyone who has it can join your family.

---
This is an automated email from CareCoins. Please do not reply.
`, toName, familyName, pin)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{strings.TrimSpace(toEmail)},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	entry := s.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject})
	if result != nil && result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("Email sent successfully")
	return nil
}
