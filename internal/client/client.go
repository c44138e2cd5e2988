// Package client talks to a running cabinet server over its JSON API. It
// carries the bearer token of a session and fetches a CSRF token before
// every state-changing request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cabinetdiet/cabinet/internal/csrf"
	"github.com/cabinetdiet/cabinet/internal/model"
)

// DefaultTimeout bounds one request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client is an API client bound to one server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the server at baseURL (e.g. http://localhost:3001).
// httpClient may be nil; a client without a cookie jar gets one, since the
// CSRF secret travels in a cookie.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c := *httpClient
		c.Jar = jar
		httpClient = &c
	}
	return &Client{baseURL: u.String(), token: token, httpClient: httpClient}, nil
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token in use.
func (c *Client) Token() string { return c.token }

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) { c.token = token }

// --------------------------------------------------------------------------
// System
// --------------------------------------------------------------------------

func (c *Client) Health(ctx context.Context) (*model.HealthResponse, error) {
	var resp model.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CSRFToken fetches a fresh token; the secret cookie is kept in the jar.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	var resp model.CSRFTokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/csrf-token", nil, &resp); err != nil {
		return "", err
	}
	return resp.CSRFToken, nil
}

// OpenAPI returns the raw OpenAPI document served by the server.
func (c *Client) OpenAPI(ctx context.Context) (json.RawMessage, error) {
	var doc json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/openapi.json", nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// --------------------------------------------------------------------------
// Auth
// --------------------------------------------------------------------------

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *Client) Verify(ctx context.Context) (*model.VerifyResponse, error) {
	var resp model.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	return c.mutate(ctx, http.MethodPost, "/api/auth/change-password", req, nil)
}

// --------------------------------------------------------------------------
// Posts
// --------------------------------------------------------------------------

// ListOptions filters ListPosts. Zero values apply no filter.
type ListOptions struct {
	Category string
	Featured bool
	Limit    int
}

func (c *Client) ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Featured {
		q.Set("featured", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	if err := c.do(ctx, http.MethodGet, "/api/posts/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) PostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/slug/"+url.PathEscape(slug), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Post(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, http.MethodGet, postPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	var p model.Post
	if err := c.mutate(ctx, http.MethodPost, "/api/posts", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePost(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	var p model.Post
	if err := c.mutate(ctx, http.MethodPut, postPath(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.mutate(ctx, http.MethodDelete, postPath(id), nil, nil)
}

// ResetPosts restores the seed collection and returns it.
func (c *Client) ResetPosts(ctx context.Context) ([]model.Post, error) {
	var resp model.ResetResponse
	if err := c.mutate(ctx, http.MethodPost, "/api/posts/reset", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

func postPath(id int64) string {
	return "/api/posts/" + strconv.FormatInt(id, 10)
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// mutate fetches a CSRF token and sends the request with it.
func (c *Client) mutate(ctx context.Context, method, path string, body, dest interface{}) error {
	token, err := c.CSRFToken(ctx)
	if err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	return c.send(ctx, method, path, body, dest, http.Header{csrf.HeaderName: {token}})
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	return c.send(ctx, method, path, body, dest, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body, dest interface{}, header http.Header) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb model.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
