package json

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteResponse(w, 201, map[string]string{"ok": "yes"})
	require.NoError(t, err)

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, 400, "validation", "email is required")

	assert.Equal(t, 400, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Error)
	assert.Equal(t, "email is required", resp.Message)
	assert.Nil(t, resp.Detail)
}

func TestWriteErrorDetail(t *testing.T) {
	w := httptest.NewRecorder()

	detail := json.RawMessage(`{"error_code":"invalid_credentials","msg":"Invalid login"}`)
	WriteErrorDetail(w, 400, "auth_failed", detail)

	assert.Equal(t, 400, w.Code)
	assert.JSONEq(t,
		`{"error":"auth_failed","detail":{"error_code":"invalid_credentials","msg":"Invalid login"}}`,
		w.Body.String())
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnauthorized(w, "invalid token")

	assert.Equal(t, 401, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}
