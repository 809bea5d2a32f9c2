package util

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	TokenTypeBearer  = "BEARER"
	TokenTypeRefresh = "REFRESH"
)

var (
	ErrNoAuthorizationHeader  = errors.New("no authorization header specified")
	ErrMalformedAuthorization = errors.New("authorization header must be \"<type> <token>\"")
	ErrUnexpectedTokenType    = errors.New("unexpected authorization token type")
)

// ReadAuthorizationHeader splits "<type> <token>" and upper-cases the type.
func ReadAuthorizationHeader(ctx *gin.Context) (string, string, error) {
	header := strings.TrimSpace(ctx.GetHeader("Authorization"))
	if header == "" {
		return "", "", ErrNoAuthorizationHeader
	}

	tokenType, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", "", ErrMalformedAuthorization
	}

	return strings.ToUpper(tokenType), token, nil
}

func readTokenOfType(ctx *gin.Context, want string) (string, error) {
	tokenType, token, err := ReadAuthorizationHeader(ctx)
	if err != nil {
		return "", err
	}
	if tokenType != want {
		return "", ErrUnexpectedTokenType
	}
	return token, nil
}

func ReadBearerToken(ctx *gin.Context) (string, error) {
	return readTokenOfType(ctx, TokenTypeBearer)
}

func ReadRefreshToken(ctx *gin.Context) (string, error) {
	return readTokenOfType(ctx, TokenTypeRefresh)
}
