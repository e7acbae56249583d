package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// supabaseClaims mirrors the access tokens minted by Supabase Auth
type supabaseClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 access tokens locally with the project's JWT secret
type JWTVerifier struct {
	secret   []byte
	audience string
}

// NewJWTVerifier creates a verifier. An empty audience skips the audience check.
func NewJWTVerifier(secret, audience string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), audience: audience}
}

// Resolve validates the token signature and expiry and returns its subject
func (v *JWTVerifier) Resolve(ctx context.Context, token string) (*Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}
	parser := jwt.NewParser(options...)

	claims := &supabaseClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role == "anon" {
		return nil, fmt.Errorf("%w: anonymous key is not a user session", ErrInvalidToken)
	}

	return &Principal{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: metadataName(claims.UserMetadata),
	}, nil
}

func metadataName(metadata map[string]interface{}) string {
	for _, key := range []string{"full_name", "name"} {
		if name, ok := metadata[key].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return ""
}
