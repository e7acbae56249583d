package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// SupabaseClient resolves tokens by asking Supabase Auth for the token's user
type SupabaseClient struct {
	authURL    string
	anonKey    string
	httpClient *http.Client
}

// NewSupabaseClient creates a client for the project at baseURL
func NewSupabaseClient(baseURL, anonKey string) *SupabaseClient {
	return &SupabaseClient{
		authURL:    strings.TrimRight(baseURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the base HTTP client
func (c *SupabaseClient) WithHTTPClient(client *http.Client) *SupabaseClient {
	c.httpClient = client
	return c
}

// Resolve calls GET /auth/v1/user with the caller's token
func (c *SupabaseClient) Resolve(ctx context.Context, token string) (*Principal, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read identity response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, errorMessage(body))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, errorMessage(body))
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("identity provider returned malformed JSON")
	}

	user := gjson.ParseBytes(body)
	id := user.Get("id").String()
	if id == "" {
		return nil, fmt.Errorf("%w: no user in response", ErrInvalidToken)
	}

	name := user.Get("user_metadata.full_name").String()
	if name == "" {
		name = user.Get("user_metadata.name").String()
	}

	return &Principal{
		ID:       id,
		Email:    user.Get("email").String(),
		FullName: strings.TrimSpace(name),
	}, nil
}

// errorMessage extracts the first populated error field of a Supabase error body
func errorMessage(body []byte) string {
	for _, path := range []string{"msg", "message", "error_description", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return strings.TrimSpace(string(body))
}
