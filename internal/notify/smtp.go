package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string `json:"server" env:"HRPULL_SMTP_SERVER"`
	Port         int    `json:"port" env:"HRPULL_SMTP_PORT"`
	EmailAddress string `json:"email_address" env:"HRPULL_SMTP_EMAIL_ADDRESS"`
	Password     string `json:"password" env:"HRPULL_SMTP_PASSWORD"`
	// FromName is shown in front of the address, "Hiring Committee <hr@...>".
	FromName string `json:"from_name" env:"HRPULL_SMTP_FROM_NAME"`
}

func (c SmtpConfig) From() string {
	if c.FromName == "" {
		return c.EmailAddress
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.EmailAddress)
}

func (c SmtpConfig) Validate() error {
	if c.Server == "" || c.Port == 0 || c.EmailAddress == "" {
		return fmt.Errorf("smtp server, port and email address must be configured")
	}
	return nil
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, mail *email.Email) error
}

type SmtpSender struct {
	config SmtpConfig
}

func NewSmtpSender(config SmtpConfig) SmtpSender {
	return SmtpSender{config: config}
}

func (s SmtpSender) Send(ctx context.Context, mail *email.Email) error {
	_, span := tracer.Start(ctx, "SmtpSender.Send")
	defer span.End()

	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", s.config.EmailAddress, s.config.Password, s.config.Server),
	)
	// local relays and test servers often do not do auth
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
