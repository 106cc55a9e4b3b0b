package echoapi

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func Test_ipExtractor(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		want    string
	}{
		{name: "no proxy", remote: "203.0.113.9:4000", xff: "198.51.100.7", want: "203.0.113.9"},
		{name: "private peer is not trusted by default", remote: "10.0.0.2:4000", xff: "198.51.100.7", want: "10.0.0.2"},
		{name: "trusted proxy", trusted: []string{"10.0.0.0/8"}, remote: "10.0.0.2:4000", xff: "198.51.100.7", want: "198.51.100.7"},
		{name: "untrusted peer", trusted: []string{"10.0.0.0/8"}, remote: "203.0.113.9:4000", xff: "198.51.100.7", want: "203.0.113.9"},
		{name: "bad cidr is skipped", trusted: []string{"nope"}, remote: "10.0.0.2:4000", xff: "198.51.100.7", want: "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set(echo.HeaderXForwardedFor, tt.xff)
			req.Header.Set(echo.HeaderXRealIP, tt.xff)
			assert.Equal(t, tt.want, ipExtractor(tt.trusted)(req))
		})
	}
}
