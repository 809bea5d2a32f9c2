package util

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func contextWithAuthorization(header string) *gin.Context {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest("GET", "/", nil)
	if header != "" {
		ctx.Request.Header.Set("Authorization", header)
	}
	return ctx
}

func TestReadBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer", "Bearer abc.def", "abc.def", nil},
		{"lower case type", "bearer abc", "abc", nil},
		{"missing header", "", "", ErrNoAuthorizationHeader},
		{"no token", "Bearer", "", ErrMalformedAuthorization},
		{"blank token", "Bearer   ", "", ErrMalformedAuthorization},
		{"refresh type", "Refresh abc", "", ErrUnexpectedTokenType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBearerToken(contextWithAuthorization(tt.header))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadBearerToken() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadRefreshToken(t *testing.T) {
	got, err := ReadRefreshToken(contextWithAuthorization("Refresh r-token"))
	if err != nil || got != "r-token" {
		t.Errorf("ReadRefreshToken() = %q, %v", got, err)
	}

	if _, err := ReadRefreshToken(contextWithAuthorization("Bearer r-token")); !errors.Is(err, ErrUnexpectedTokenType) {
		t.Errorf("ReadRefreshToken() with bearer error = %v, want ErrUnexpectedTokenType", err)
	}
}
