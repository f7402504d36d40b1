// Package auth secures the operator control surface. Operators exchange a
// shared key for a short-lived JWT; every other admin route requires the
// token as a Bearer credential.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gameoftrades/engine/internal/model"
)

// Service issues and verifies operator tokens.
type Service struct {
	operatorKey string
	secret      []byte
	ttl         time.Duration
}

// NewService creates an auth service with the configured operator key and
// JWT signing secret.
func NewService(operatorKey, secret string) *Service {
	return &Service{
		operatorKey: operatorKey,
		secret:      []byte(secret),
		ttl:         24 * time.Hour,
	}
}

// IssueToken validates the operator key and returns a signed HS256 JWT.
func (s *Service) IssueToken(key string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.operatorKey)) != 1 {
		return "", model.ErrUnauthorized
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "operator",
		"exp":  time.Now().Add(s.ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

// Verify parses the token and checks the operator role.
func (s *Service) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return model.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != "operator" {
		return model.ErrUnauthorized
	}
	return nil
}

// LoginRequest is the JSON body for POST /admin/login.
type LoginRequest struct {
	Key string `json:"key"`
}

// HandleLogin handles POST /api/v1/admin/login.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.IssueToken(req.Key)
	if err != nil {
		writeJSONError(w, "invalid operator key", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Middleware rejects requests without a valid operator Bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.Verify(token) != nil {
			writeJSONError(w, "operator token required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
