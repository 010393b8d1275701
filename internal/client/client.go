package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/securewatch/securewatch/internal/dispatch"
)

var (
	// ErrUnauthorized matches any 401 StatusError
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse is returned when a 2xx body cannot be understood
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client represents an HTTP client for the remote authentication service
type Client struct {
	baseURL    string
	httpClient *http.Client
	dispatcher *dispatch.Dispatcher
}

// New creates a new API client. Requests are built by dispatcher, so they
// carry whatever credential is stored at the time of the call.
func New(baseURL string, dispatcher *dispatch.Dispatcher) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dispatcher: dispatcher,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UserDetail represents user information returned by the service
type UserDetail struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns Name, falling back to "first last"
func (u UserDetail) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthResult is the outcome of a successful login or registration
type AuthResult struct {
	Token        string
	RefreshToken string
	User         UserDetail
}

type authPayload struct {
	AccessToken  string      `json:"access_token"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         *UserDetail `json:"user"`
}

// authEnvelope accepts both {"data": {...}} and bare payloads
type authEnvelope struct {
	Message string       `json:"message"`
	Data    *authPayload `json:"data"`
	authPayload
}

// Login authenticates the user and returns the issued token
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/login", LoginRequest{
		Email:    email,
		Password: password,
	})
}

// Register creates an account and returns the issued token
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResult, error) {
	var env authEnvelope
	if err := c.do(ctx, http.MethodPost, path, body, &env); err != nil {
		return nil, err
	}

	payload := env.authPayload
	if env.Data != nil {
		payload = *env.Data
	}

	token := payload.AccessToken
	if token == "" {
		token = payload.Token
	}
	if token == "" || payload.User == nil {
		return nil, fmt.Errorf("%w: missing token or user", ErrMalformedResponse)
	}

	return &AuthResult{
		Token:        token,
		RefreshToken: payload.RefreshToken,
		User:         *payload.User,
	}, nil
}

// CurrentUser fetches the profile of the user owning the stored token
func (c *Client) CurrentUser(ctx context.Context) (*UserDetail, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &raw); err != nil {
		return nil, err
	}

	// The service replies {"user": {...}}; older deployments send the bare user
	var wrapped struct {
		User json.RawMessage `json:"user"`
		Data json.RawMessage `json:"data"`
	}
	body := raw
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		switch {
		case len(wrapped.User) > 0:
			body = wrapped.User
		case len(wrapped.Data) > 0:
			body = wrapped.Data
		}
	}

	var user UserDetail
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformedResponse)
	}

	return &user, nil
}

// do sends a JSON request through the dispatcher and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := c.dispatcher.NewRequest(ctx, method, c.baseURL+path, body, http.Header{
		"Accept": {"application/json"},
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, err)
	}

	return nil
}

// errorMessage extracts {"message"} or {"error"} from an error body,
// falling back to the raw text
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
