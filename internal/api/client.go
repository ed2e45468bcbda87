package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"casetrack/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "CASETRACK_HTTP_TIMEOUT"
	sessionTokenEnvKey = "CASETRACK_SESSION_TOKEN"
)

// Client is a simple HTTP client for the casetrack API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient creates a new API client. A session token may be preloaded via
// the environment; Login replaces it.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		token:   strings.TrimSpace(os.Getenv(sessionTokenEnvKey)),
	}
}

// HasSessionToken reports whether the client already carries a session
// token.
func (c *Client) HasSessionToken() bool {
	return c != nil && c.token != ""
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// GetInfo fetches server build and storage details.
func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/api/info", nil, &resp)
	return resp, err
}

// Login authenticates with the fixed-identity gate and keeps the returned
// session token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(AuthLoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "casetrack_session" && cookie.Value != "" {
			c.token = cookie.Value
		}
	}
	if c.token == "" {
		return fmt.Errorf("login succeeded but no session token was returned")
	}
	return nil
}

// ListCases returns all cases, newest first.
func (c *Client) ListCases(ctx context.Context) ([]models.Case, error) {
	var resp []models.Case
	err := c.do(ctx, http.MethodGet, "/api/cases", nil, &resp)
	return resp, err
}

// GetCase returns one case by id.
func (c *Client) GetCase(ctx context.Context, id string) (models.Case, error) {
	var resp models.Case
	err := c.do(ctx, http.MethodGet, "/api/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteCase removes one case and its attachment blobs.
func (c *Client) DeleteCase(ctx context.Context, id string) (DeleteCaseResponse, error) {
	var resp DeleteCaseResponse
	err := c.do(ctx, http.MethodDelete, "/api/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: resp.Status}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.token == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
