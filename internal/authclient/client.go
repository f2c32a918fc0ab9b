// Package authclient calls the remote identity service over HTTP.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"truthguard/pkg/domain"
)

// Client calls the identity endpoints of the TruthGuard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an identity service error response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string { return e.Detail }

// NewClient constructs an identity service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user,omitempty"`
}

// Login exchanges credentials for a token and user record. The endpoint is
// OAuth2-form-shaped: the email travels as the username field.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	form := url.Values{
		"username": {email},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.User{}, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp authResponse
	if err := c.do(req, &resp); err != nil {
		return domain.User{}, "", err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return domain.User{}, "", errors.New("login response missing token or user")
	}
	return *resp.User, resp.AccessToken, nil
}

// Register creates a new identity and returns the issued token and user.
func (c *Client) Register(ctx context.Context, email, password, name string) (domain.User, string, error) {
	payload := map[string]string{"email": email, "password": password, "name": name}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", payload, &resp); err != nil {
		return domain.User{}, "", err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return domain.User{}, "", errors.New("registration response missing token or user")
	}
	return *resp.User, resp.AccessToken, nil
}

// Refresh exchanges the current credential for a renewed token.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", token, nil, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("refresh response missing token")
	}
	return resp.AccessToken, nil
}

// RequestPasswordReset asks the service to mail a reset token. The response
// is deliberately generic regardless of whether the email exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/request-password-reset", "", payload, nil)
}

// ResetPassword redeems a reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "new_password": newPassword}
	return c.doJSON(ctx, http.MethodPost, "/auth/reset-password", "", payload, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Detail: decodeErrorDetail(resp)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeErrorDetail extracts the structured failure message. The service
// answers FastAPI-style {"detail": ...}; older deployments used "message".
func decodeErrorDetail(resp *http.Response) string {
	var errResp struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	for _, msg := range []string{errResp.Detail, errResp.Message, errResp.Error} {
		if msg != "" {
			return msg
		}
	}
	return resp.Status
}
