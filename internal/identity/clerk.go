package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
)

const defaultClerkAPIURL = "https://api.clerk.com/v1"

// ClerkClient is a Store backed by the Clerk backend API.
// Coins live in each user's unsafe_metadata.
type ClerkClient struct {
	httpClient *http.Client
	secretKey  string

	// Overridable for testing.
	baseURL string
}

// NewClerkClient creates a Clerk client. An empty baseURL uses the public API.
func NewClerkClient(secretKey, baseURL string) (*ClerkClient, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("clerk secret key is required")
	}
	if baseURL == "" {
		baseURL = defaultClerkAPIURL
	}
	return &ClerkClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

type clerkUser struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	UnsafeMetadata map[string]any `json:"unsafe_metadata"`
}

func (u clerkUser) toUser() *User {
	md := u.UnsafeMetadata
	if md == nil {
		md = map[string]any{}
	}
	return &User{ID: u.ID, Username: u.Username, Metadata: md}
}

// GetUser fetches a user by id.
func (c *ClerkClient) GetUser(ctx context.Context, id string) (*User, error) {
	var u clerkUser
	status, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u)
	if status == http.StatusNotFound {
		return nil, apperr.NotFound("user_not_found", fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		return nil, apperr.Upstream("identity_store", "fetching user", err)
	}
	return u.toUser(), nil
}

// FindByUsername returns the first user whose username matches exactly.
func (c *ClerkClient) FindByUsername(ctx context.Context, username string) (*User, error) {
	params := url.Values{"username": {username}, "limit": {"1"}}

	var users []clerkUser
	if _, err := c.do(ctx, http.MethodGet, "/users?"+params.Encode(), nil, &users); err != nil {
		return nil, apperr.Upstream("identity_store", "searching users", err)
	}
	if len(users) == 0 {
		return nil, apperr.NotFound("user_not_found", fmt.Sprintf("user %q not found", username))
	}
	return users[0].toUser(), nil
}

// UpdateMetadata writes the user's unsafe_metadata.
func (c *ClerkClient) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	body := map[string]any{"unsafe_metadata": metadata}
	status, err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/metadata", body, nil)
	if status == http.StatusNotFound {
		return apperr.NotFound("user_not_found", fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		return apperr.Upstream("identity_store", "updating metadata", err)
	}
	return nil
}

// do sends a request and decodes a 2xx JSON response into out.
// It returns the HTTP status whenever a response was received.
func (c *ClerkClient) do(ctx context.Context, method, path string, body, out any) (status int, err error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
