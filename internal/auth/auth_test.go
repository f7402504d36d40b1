package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameoftrades/engine/internal/model"
)

func TestIssueAndVerifyToken(t *testing.T) {
	svc := NewService("opkey", "signing-secret")

	token, err := svc.IssueToken("opkey")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, svc.Verify(token))
}

func TestIssueToken_WrongKey(t *testing.T) {
	svc := NewService("opkey", "signing-secret")

	_, err := svc.IssueToken("wrong")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewService("opkey", "secret-a")
	verifier := NewService("opkey", "secret-b")

	token, err := issuer.IssueToken("opkey")
	require.NoError(t, err)

	assert.ErrorIs(t, verifier.Verify(token), model.ErrUnauthorized)
}

func TestVerify_Garbage(t *testing.T) {
	svc := NewService("opkey", "signing-secret")

	assert.ErrorIs(t, svc.Verify("not.a.token"), model.ErrUnauthorized)
}

func TestHandleLogin(t *testing.T) {
	svc := NewService("opkey", "signing-secret")

	body, _ := json.Marshal(LoginRequest{Key: "opkey"})
	req := httptest.NewRequest("POST", "/api/v1/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	svc.HandleLogin(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NoError(t, svc.Verify(resp["token"]))
}

func TestHandleLogin_BadKey(t *testing.T) {
	svc := NewService("opkey", "signing-secret")

	body, _ := json.Marshal(LoginRequest{Key: "guess"})
	req := httptest.NewRequest("POST", "/api/v1/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	svc.HandleLogin(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware(t *testing.T) {
	svc := NewService("opkey", "signing-secret")
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// No credential → 401.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/admin/round/start", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header → 401.
	req := httptest.NewRequest("POST", "/admin/round/start", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token → passes through.
	token, err := svc.IssueToken("opkey")
	require.NoError(t, err)
	req = httptest.NewRequest("POST", "/admin/round/start", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
