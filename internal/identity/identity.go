// Package identity resolves bearer tokens issued by the external identity provider.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken is returned when a token cannot be resolved to a principal
var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is an authenticated caller
type Principal struct {
	ID       string
	Email    string
	FullName string
}

// Provider resolves an access token to a principal
type Provider interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, token string) (*Principal, error)

// Resolve calls f
func (f ProviderFunc) Resolve(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
