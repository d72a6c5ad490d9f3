// mail отправляет служебные письма: подтверждение email и сброс пароля.
package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Message — исходящее письмо. Отправитель задаётся реализацией Mailer.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage собирает письмо с кодом подтверждения email.
func VerificationMessage(to string, userID uuid.UUID, code string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email",
		Text:    fmt.Sprintf("verification code: %s. Id: %s", code, userID),
	}
}

// PasswordResetMessage собирает письмо с кодом сброса пароля.
func PasswordResetMessage(to string, userID uuid.UUID, code string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Password reset code: %s. Id %s", code, userID),
	}
}
