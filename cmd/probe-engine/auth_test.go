package main

import (
	"context"
	"crypto"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/18F/hmacauth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHmacAuth(secret []byte) hmacauth.HmacAuth {
	return hmacauth.NewHmacAuth(crypto.SHA256, secret, "GAP-Signature", []string{"X-Forwarded-User"})
}

func TestAuthMiddleware(t *testing.T) {
	hmacSecret := []byte("test-secret-key")
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	hmacAuth := newTestHmacAuth(hmacSecret)

	t.Run("non-mutating requests pass through", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
			t.Run(method, func(t *testing.T) {
				handlerCalled := false
				nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					handlerCalled = true
					w.WriteHeader(http.StatusOK)
				})

				middleware := authMiddleware(nextHandler, logger, hmacAuth)
				req := httptest.NewRequest(method, "/test", nil)
				w := httptest.NewRecorder()

				middleware.ServeHTTP(w, req)

				assert.True(t, handlerCalled, "handler should be called for non-mutating requests")
				assert.Equal(t, http.StatusOK, w.Code)
			})
		}
	})

	t.Run("mutating requests without authentication fail", func(t *testing.T) {
		tests := []struct {
			name            string
			userHeader      string
			signatureHeader string
			expectedBody    string
		}{
			{
				name:            "missing X-Forwarded-User header",
				signatureHeader: "some-signature",
				expectedBody:    "Missing X-Forwarded-User header\n",
			},
			{
				name:         "missing GAP-Signature header",
				userHeader:   "test-user",
				expectedBody: "Missing GAP-Signature header\n",
			},
			{
				name:            "invalid signature format",
				userHeader:      "test-user",
				signatureHeader: "garbage",
				expectedBody:    "Invalid signature format\n",
			},
			{
				name:            "mismatched signature",
				userHeader:      "test-user",
				signatureHeader: "sha256 deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
				expectedBody:    "Invalid signature\n",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				os.Unsetenv("DEV_MODE")

				handlerCalled := false
				nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					handlerCalled = true
				})

				middleware := authMiddleware(nextHandler, logger, hmacAuth)
				req := httptest.NewRequest(http.MethodPost, "/test", nil)
				if tt.userHeader != "" {
					req.Header.Set("X-Forwarded-User", tt.userHeader)
				}
				if tt.signatureHeader != "" {
					req.Header.Set("GAP-Signature", tt.signatureHeader)
				}

				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)

				assert.False(t, handlerCalled, "handler should not be called when authentication fails")
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Equal(t, tt.expectedBody, w.Body.String())
			})
		}
	})

	t.Run("valid authentication succeeds", func(t *testing.T) {
		os.Unsetenv("DEV_MODE")

		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			t.Run(method, func(t *testing.T) {
				var receivedUser string
				handlerCalled := false
				nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					handlerCalled = true
					user, ok := GetUserFromContext(r.Context())
					require.True(t, ok, "user should be in context")
					receivedUser = user
					w.WriteHeader(http.StatusOK)
				})

				middleware := authMiddleware(nextHandler, logger, hmacAuth)
				req := httptest.NewRequest(method, "/test", nil)
				req.Header.Set("X-Forwarded-User", "test-user")
				hmacAuth.SignRequest(req)

				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)

				assert.True(t, handlerCalled, "handler should be called with valid authentication")
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, "test-user", receivedUser)
			})
		}
	})

	t.Run("DEV_MODE bypasses signature validation", func(t *testing.T) {
		os.Setenv("DEV_MODE", "1")
		defer os.Unsetenv("DEV_MODE")

		tests := []struct {
			name         string
			userHeader   string
			expectedUser string
		}{
			{name: "with user header", userHeader: "custom-user", expectedUser: "custom-user"},
			{name: "without user header", expectedUser: "developer"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var receivedUser string
				nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					user, ok := GetUserFromContext(r.Context())
					require.True(t, ok)
					receivedUser = user
					w.WriteHeader(http.StatusOK)
				})

				middleware := authMiddleware(nextHandler, logger, hmacAuth)
				req := httptest.NewRequest(http.MethodPost, "/test", nil)
				if tt.userHeader != "" {
					req.Header.Set("X-Forwarded-User", tt.userHeader)
				}

				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)

				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, tt.expectedUser, receivedUser)
			})
		}
	})
}

func TestGetUserFromContext(t *testing.T) {
	t.Run("user in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), userContextKey, "test-user")
		user, ok := GetUserFromContext(ctx)

		assert.True(t, ok)
		assert.Equal(t, "test-user", user)
	})

	t.Run("user not in context", func(t *testing.T) {
		user, ok := GetUserFromContext(context.Background())

		assert.False(t, ok)
		assert.Empty(t, user)
	})
}
