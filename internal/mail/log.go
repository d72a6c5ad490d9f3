package mail

import (
	"context"
	"log/slog"

	"github.com/pribylovaa/auth-service/internal/pkg/redact"
)

// Log — Mailer для локального запуска без SMTP: письмо пишется в лог.
// Тело письма содержит одноразовый код и логируется только при withBody.
type Log struct {
	lg       *slog.Logger
	withBody bool
}

// NewLog создаёт лог-почтальона.
func NewLog(lg *slog.Logger, withBody bool) *Log {
	return &Log{lg: lg, withBody: withBody}
}

// Send пишет письмо в лог.
func (l *Log) Send(ctx context.Context, msg Message) error {
	attrs := []any{
		slog.String("to", redact.Email(msg.To)),
		slog.String("subject", msg.Subject),
	}

	if l.withBody {
		attrs = append(attrs, slog.String("text", msg.Text))
	} else {
		attrs = append(attrs, slog.String("text", redact.Code()))
	}

	l.lg.InfoContext(ctx, "mail_sent", attrs...)

	return nil
}

var _ Mailer = (*Log)(nil)
