package mcp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	admcp "github.com/Strob0t/AgentDeck/internal/adapter/mcp"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		apiKey string
		header string
		value  string
		want   int
	}{
		{name: "disabled without key", apiKey: "", want: http.StatusOK},
		{name: "bearer token accepted", apiKey: "s3cret", header: "Authorization", value: "Bearer s3cret", want: http.StatusOK},
		{name: "api key header accepted", apiKey: "s3cret", header: "X-API-Key", value: "s3cret", want: http.StatusOK},
		{name: "missing credentials", apiKey: "s3cret", want: http.StatusUnauthorized},
		{name: "wrong bearer token", apiKey: "s3cret", header: "Authorization", value: "Bearer nope", want: http.StatusForbidden},
		{name: "wrong api key", apiKey: "s3cret", header: "X-API-Key", value: "nope", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			admcp.AuthMiddleware(tt.apiKey, ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
