// redact маскирует персональные данные и секреты перед записью в лог.
package redact

import "strings"

// codePlaceholder подставляется вместо одноразовых кодов.
const codePlaceholder = "[REDACTED_CODE]"

// Email оставляет домен и первые две руны локальной части:
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
//	"no-at"              -> "***"
//
// Строка без ровно одного '@' маскируется целиком.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	if lr := []rune(local); len(lr) > 2 {
		return string(lr[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Code возвращает заглушку для кодов подтверждения и сброса пароля.
func Code() string { return codePlaceholder }
