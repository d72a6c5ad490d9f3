package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite_WithRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	rr := httptest.NewRecorder()

	Write(rr, req, http.StatusConflict, CodeAlreadyExists, "Account already exists")

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, CodeAlreadyExists, got.Error.Code)
	require.Equal(t, "Account already exists", got.Error.Message)
	require.Equal(t, "rid-1", got.Error.RequestID)
}

func TestInternal_NoRequestID(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	Internal(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "request_id")

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, CodeInternal, got.Error.Code)
}
