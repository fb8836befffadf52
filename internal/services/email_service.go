package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/pkg/breaker"
	"github.com/BradenHooton/chefguard/pkg/logger"
)

const (
	lockoutSubject       = "Security Alert: Account Temporarily Locked"
	passwordResetSubject = "Reset Your Password"

	templateLockout       = "lockout"
	templatePasswordReset = "password_reset"
)

// EmailService sends the transactional security emails
type EmailService interface {
	// SendLockoutNotification returns the provider message id
	SendLockoutNotification(ctx context.Context, notification models.LockoutNotification) (string, error)
	SendPasswordReset(ctx context.Context, email, resetLink string) (string, error)
}

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   sesAPI
	fromAddress string
	breaker     breaker.CircuitBreaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, m *metrics.Metrics, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESEmailService(ses.NewFromConfig(cfg), fromAddress, m, logger), nil
}

func newSESEmailService(client sesAPI, fromAddress string, m *metrics.Metrics, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		breaker:     breaker.New("ses", 30*time.Second, 5),
		metrics:     m,
		logger:      logger,
	}
}

type lockoutEmailData struct {
	AttemptLabel   string
	LockoutMinutes int
}

type resetEmailData struct {
	ResetLink string
}

// SendLockoutNotification tells the account owner that sign-in or sign-up is temporarily locked
func (s *AWSSESEmailService) SendLockoutNotification(ctx context.Context, notification models.LockoutNotification) (string, error) {
	data := lockoutEmailData{
		AttemptLabel:   notification.AttemptType.Label(),
		LockoutMinutes: notification.LockoutMinutes,
	}

	htmlBody, textBody, err := render(lockoutHTML, lockoutText, data)
	if err != nil {
		return "", err
	}

	return s.send(ctx, templateLockout, notification.Email, lockoutSubject, htmlBody, textBody)
}

// SendPasswordReset delivers a recovery link
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, resetLink string) (string, error) {
	htmlBody, textBody, err := render(resetHTML, resetText, resetEmailData{ResetLink: resetLink})
	if err != nil {
		return "", err
	}

	return s.send(ctx, templatePasswordReset, email, passwordResetSubject, htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, template, to, subject, htmlBody, textBody string) (string, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	var messageID string
	err := s.breaker.Execute(func() error {
		result, err := s.sesClient.SendEmail(ctx, input)
		if err != nil {
			return err
		}
		messageID = aws.ToString(result.MessageId)
		return nil
	})
	if err != nil {
		s.metrics.EmailSent(template, "failed")
		s.logger.Error("failed to send email via SES",
			slog.String("template", template),
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	s.metrics.EmailSent(template, "sent")
	s.logger.Info("email sent",
		slog.String("template", template),
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", messageID))

	return messageID, nil
}

func render(html *htmltemplate.Template, text *texttemplate.Template, data any) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", html.Name(), err)
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", text.Name(), err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

const emailStyle = `
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f9fafb; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #fff; border-radius: 8px; }
        .header { padding: 20px; text-align: center; }
        .content { padding: 20px 0; }
        .button { display: inline-block; background-color: #b8860b; color: white; padding: 14px 32px; text-decoration: none; border-radius: 8px; font-weight: 600; }
        .footer { color: #9ca3af; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #e5e7eb; text-align: center; }
        .warning { background-color: #fef3c7; padding: 16px; border-left: 4px solid #f59e0b; margin: 10px 0; }
        .note { background-color: #f3f4f6; padding: 16px; border-radius: 8px; }`

var lockoutHTML = htmltemplate.Must(htmltemplate.New("lockout.html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Account Temporarily Locked</h1>
        </div>
        <div class="content">
            <p>We detected multiple failed {{.AttemptLabel}} attempts on your account. For your security, we've temporarily locked access.</p>
            <div class="warning">
                <strong>Your account will be unlocked in {{.LockoutMinutes}} minutes.</strong>
            </div>
            <p>If this was you, please wait and try again later. If you've forgotten your password, you can reset it from the login page.</p>
            <p><strong>If this wasn't you</strong>, someone may be trying to access your account. We recommend:</p>
            <ul>
                <li>Changing your password immediately once access is restored</li>
                <li>Using a strong, unique password</li>
                <li>Reviewing any recent account activity</li>
            </ul>
        </div>
        <div class="footer">
            <p>This is an automated security notification. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`))

var lockoutText = texttemplate.Must(texttemplate.New("lockout.txt").Parse(`Account Temporarily Locked

We detected multiple failed {{.AttemptLabel}} attempts on your account. For your security, we've temporarily locked access.

Your account will be unlocked in {{.LockoutMinutes}} minutes.

If this was you, please wait and try again later. If you've forgotten your password, you can reset it from the login page.

If this wasn't you, someone may be trying to access your account. We recommend:
- Changing your password immediately once access is restored
- Using a strong, unique password
- Reviewing any recent account activity

This is an automated security notification. Please do not reply to this email.
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("password_reset.html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Reset Your Password</h1>
        </div>
        <div class="content">
            <p>We received a request to reset your password. Click the button below to create a new password.</p>
            <p style="text-align: center;"><a href="{{.ResetLink}}" class="button">Reset Password</a></p>
            <p style="text-align: center;">This link will expire in 1 hour.</p>
            <div class="note">
                If you didn't request a password reset, you can safely ignore this email. Your password won't be changed.
            </div>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("password_reset.txt").Parse(`Reset Your Password

We received a request to reset your password. Open the link below to create a new password:

{{.ResetLink}}

This link will expire in 1 hour.

If you didn't request a password reset, you can safely ignore this email. Your password won't be changed.

This is an automated message. Please do not reply to this email.
`))
