package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/pribylovaa/auth-service/internal/config"
)

// SMTP — Mailer поверх go-mail. Соединение открывается на каждое письмо.
type SMTP struct {
	client *gomail.Client
	from   string
}

// NewSMTP создаёт SMTP-клиент. Аутентификация включается, если задан Username.
func NewSMTP(cfg config.SMTPConfig, from string) (*SMTP, error) {
	const op = "mail.NewSMTP"

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}

	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTP{client: client, from: from}, nil
}

// Send отправляет письмо; дедлайн берётся из ctx.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	const op = "mail.SMTP.Send"

	m, err := s.build(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SMTP) build(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)

	return m, nil
}

var _ Mailer = (*SMTP)(nil)
