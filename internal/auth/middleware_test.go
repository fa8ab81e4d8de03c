package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockKeyStore struct {
	keys map[string]*KeyMetadata
	err  error
}

func (m *mockKeyStore) Lookup(_ context.Context, keyHash string) (*KeyMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.keys[keyHash], nil
}

func serve(t *testing.T, store KeyStore, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	handler := Middleware(store)(next)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "test-req")
	handler.ServeHTTP(w, req)
	return w
}

func mustNotCall(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	store := &mockKeyStore{keys: map[string]*KeyMetadata{}}
	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"unknown key", "Bearer qr-prod-invalidkey123", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, store, tt.header, mustNotCall(t))
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestMiddleware_StoreError(t *testing.T) {
	w := serve(t, &mockKeyStore{err: errors.New("db down")}, "Bearer qr-prod-whatever", mustNotCall(t))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestMiddleware_ValidKey(t *testing.T) {
	rawKey := "qr-prod-testkey12345678901234567890ab"
	store := &mockKeyStore{
		keys: map[string]*KeyMetadata{
			HashKey(rawKey): {
				ID:           "key-uuid-123",
				Name:         "docs-bot",
				Owner:        "platform",
				AllowedTools: []string{"calculator", "direct_responder"},
				RPMLimit:     30,
				ExpiresAt:    time.Now().Add(24 * time.Hour),
			},
		},
	}

	var got *Caller
	w := serve(t, store, "Bearer "+rawKey, func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromContext(r.Context())
		if !ok {
			t.Error("expected caller in context")
			return
		}
		got = c
		w.WriteHeader(http.StatusOK)
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got == nil || got.KeyID != "key-uuid-123" || got.Owner != "platform" || got.RPMLimit != 30 {
		t.Errorf("unexpected caller %+v", got)
	}
}
