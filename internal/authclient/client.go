// Package authclient calls the hosted identity service to resolve the user
// behind a bearer token.
package authclient

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"auramind/pkg/domain"
)

// Client calls the identity service over HTTP.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient constructs an identity service client. anonKey is the service's
// public API key, sent alongside the user's token.
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Me validates the bearer token against the identity service and returns
// the current user.
func (c *Client) Me(token string) (domain.User, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.anonKey != "" {
		req.Header.Set("Apikey", c.anonKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return domain.User{}, &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.User{}, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, &APIError{Status: http.StatusUnauthorized, Message: "empty user id"}
	}
	return user, nil
}

// APIError represents an identity service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
