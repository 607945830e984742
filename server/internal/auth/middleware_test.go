package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func call(t *testing.T, h http.Handler, header, value string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		key    string
		header string
		send   string
		want   int
	}{
		{"mode none passes through", "none", "secret", "x-api-key", "", http.StatusNoContent},
		{"empty key passes through", "apikey", "", "x-api-key", "", http.StatusNoContent},
		{"correct key", "apikey", "secret", "x-api-key", "secret", http.StatusNoContent},
		{"wrong key", "apikey", "secret", "x-api-key", "nope", http.StatusUnauthorized},
		{"missing header", "apikey", "secret", "x-api-key", "", http.StatusUnauthorized},
		{"custom header", "apikey", "tok", "x-brew-token", "tok", http.StatusNoContent},
		{"bearer prefix", "apikey", "tok", "Authorization", "Bearer tok", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKey(tc.mode, tc.header, tc.key)(okHandler)
			if got := call(t, h, tc.header, tc.send); got != tc.want {
				t.Errorf("status: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAPIKey_UnauthorizedBody(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if body := rec.Body.String(); body != "{\"error\":\"invalid api key\"}\n" {
		t.Errorf("body: got %q", body)
	}
}
