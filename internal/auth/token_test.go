package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name   string
		cookie *string
		header string
		want   string
	}{
		{name: "bearer header", header: "Bearer header_token", want: "header_token"},
		{name: "scheme is case-insensitive", header: "bearer  header_token ", want: "header_token"},
		{name: "header wins over cookie", cookie: ptr("cookie_token"), header: "Bearer header_token", want: "header_token"},
		{name: "cookie fallback", cookie: ptr("cookie_token"), want: "cookie_token"},
		{name: "empty bearer falls back to cookie", cookie: ptr("cookie_token"), header: "Bearer ", want: "cookie_token"},
		{name: "basic scheme ignored", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: *tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractAccessToken(req))
		})
	}
}

func ptr(s string) *string { return &s }
