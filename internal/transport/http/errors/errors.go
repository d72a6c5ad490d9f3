// errors стандартизирует ответы об ошибках HTTP API.
//
// Формат: {"error":{"code","message","request_id"}}.
// Code — короткий стабильный код для машиночитаемой обработки,
// Message — безопасное человекочитаемое описание без деталей внутренних ошибок.
// Маппинг доменных ошибок на статусы живёт в хендлерах: один и тот же
// service-sentinel в разных сценариях даёт разные ответы.
package errors

import (
	"encoding/json"
	"net/http"
)

// Стабильные коды ошибок.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "permission_denied"
	CodeNotFound        = "not_found"
	CodeAlreadyExists   = "already_exists"
	CodeUnverified      = "unverified"
	CodeAlreadyVerified = "already_verified"
	CodeInvalidCode     = "invalid_code"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// APIError — единый формат ошибки для клиента.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Write пишет ошибку с заданным статусом и добавляет request_id из X-Request-Id.
func Write(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := ErrorResponse{Error: APIError{Code: code, Message: message}}

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Internal пишет 500/internal без деталей.
func Internal(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
}
