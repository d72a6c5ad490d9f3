// codegen выпускает одноразовые коды для подтверждения email и сброса пароля.
package codegen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLength — длина кода по умолчанию (~126 бит энтропии на URL-safe алфавите).
const DefaultLength = 21

// Generator выпускает непредсказуемые URL-safe коды.
type Generator interface {
	Generate() (string, error)
}

// NanoID — Generator на основе crypto/rand и алфавита [A-Za-z0-9_-].
type NanoID struct {
	length int
}

// NewNanoID создаёт генератор; length <= 0 означает DefaultLength.
func NewNanoID(length int) *NanoID {
	if length <= 0 {
		length = DefaultLength
	}

	return &NanoID{length: length}
}

// Generate возвращает новый код.
func (g *NanoID) Generate() (string, error) {
	const op = "codegen.NanoID.Generate"

	code, err := gonanoid.New(g.length)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return code, nil
}

var _ Generator = (*NanoID)(nil)
