// Package remote implements the typed client for the duty roster backend. It
// is a thin wrapper over the REST surface: it attaches bearer credentials,
// maps transport and status failures onto the duty error taxonomy, and decodes
// the backend's response envelope.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/metrics"
)

// TokenSource supplies the bearer token for authenticated calls and tears the
// session down when the backend reports the token is no longer accepted.
type TokenSource interface {
	Token() (string, bool)
	Invalidate(ctx context.Context)
}

// Client is the typed wrapper over the schedule backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// New constructs a Client for the given base URL. A nil http.Client gets a
// default with the supplied timeout applied.
func New(baseURL string, httpc *http.Client, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		tokens:  tokens,
		logger:  logger,
	}
}

// LoginParams carries the credentials submitted to the login endpoint.
type LoginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        duty.User `json:"user"`
}

// RegisterParams carries the fields for a self-service registration.
type RegisterParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// RegistrationStatus reports whether the backend accepts public registrations.
type RegistrationStatus struct {
	PublicRegistrationEnabled bool `json:"public_registration_enabled"`
	AdminOnlyRegistration     bool `json:"admin_only_registration"`
}

// HealthStatus is the backend's public health payload.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// envelope is the backend's optional {success, message, data} wrapper. Some
// endpoints return bare payloads instead, so Data may be empty while the body
// still carries the value.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login authenticates against the backend. It requires no session and does
// not store the token; that is the session manager's job. Invalid credentials
// and an unreachable remote both surface as ErrUnauthorized, matching the
// entry-point policy that a failed login leaves the user unauthenticated.
func (c *Client) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, callOptions{
		operation: "login",
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      params,
		out:       &result,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: login rejected: %v", duty.ErrUnauthorized, err)
	}
	if result.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("%w: login response carried no token", duty.ErrUnauthorized)
	}
	return result, nil
}

// Register creates a new account through the public registration endpoint.
func (c *Client) Register(ctx context.Context, params RegisterParams) (duty.User, error) {
	var user duty.User
	err := c.do(ctx, callOptions{
		operation: "register",
		method:    http.MethodPost,
		path:      "/api/auth/register",
		body:      params,
		out:       &user,
	})
	return user, err
}

// Me fetches the account record of the authenticated user.
func (c *Client) Me(ctx context.Context) (duty.User, error) {
	var user duty.User
	err := c.do(ctx, callOptions{
		operation:     "me",
		method:        http.MethodGet,
		path:          "/api/auth/me",
		authenticated: true,
		out:           &user,
	})
	return user, err
}

// RegistrationStatus reports whether public registration is open.
func (c *Client) RegistrationStatus(ctx context.Context) (RegistrationStatus, error) {
	var status RegistrationStatus
	err := c.do(ctx, callOptions{
		operation: "registration_status",
		method:    http.MethodGet,
		path:      "/api/auth/registration-status",
		out:       &status,
	})
	return status, err
}

// Health probes the backend's public health endpoint.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.do(ctx, callOptions{
		operation: "health",
		method:    http.MethodGet,
		path:      "/health",
		out:       &status,
	})
	return status, err
}

// Create stores a new assignment under its date key.
func (c *Client) Create(ctx context.Context, assignment duty.Assignment) (duty.Assignment, error) {
	var created duty.Assignment
	err := c.do(ctx, callOptions{
		operation:     "create",
		method:        http.MethodPost,
		path:          "/api/schedule",
		authenticated: true,
		body:          assignment,
		out:           &created,
	})
	return created, err
}

// Update replaces the employee fields of the assignment stored for date.
func (c *Client) Update(ctx context.Context, date string, input duty.AssignmentInput) (duty.Assignment, error) {
	payload := struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}{Name: input.EmployeeName, Phone: input.Phone}

	var updated duty.Assignment
	err := c.do(ctx, callOptions{
		operation:     "update",
		method:        http.MethodPut,
		path:          "/api/schedule/" + url.PathEscape(date),
		authenticated: true,
		body:          payload,
		out:           &updated,
	})
	return updated, err
}

// Delete removes the assignment stored for date.
func (c *Client) Delete(ctx context.Context, date string) error {
	return c.do(ctx, callOptions{
		operation:     "delete",
		method:        http.MethodDelete,
		path:          "/api/schedule/" + url.PathEscape(date),
		authenticated: true,
	})
}

// Get fetches the assignment stored for date. ErrNotFound is returned when no
// assignment exists.
func (c *Client) Get(ctx context.Context, date string) (duty.Assignment, error) {
	var assignment duty.Assignment
	err := c.do(ctx, callOptions{
		operation:     "get",
		method:        http.MethodGet,
		path:          "/api/schedule/" + url.PathEscape(date),
		authenticated: true,
		out:           &assignment,
	})
	return assignment, err
}

// GetAll fetches the full date-keyed schedule.
func (c *Client) GetAll(ctx context.Context) (duty.Schedule, error) {
	schedule := make(duty.Schedule)
	err := c.do(ctx, callOptions{
		operation:     "get_all",
		method:        http.MethodGet,
		path:          "/api/schedules",
		authenticated: true,
		out:           &schedule,
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

type callOptions struct {
	operation     string
	method        string
	path          string
	authenticated bool
	body          any
	out           any
}

func (c *Client) do(ctx context.Context, opts callOptions) (err error) {
	logger := logging.Component(ctx, c.logger, "RemoteClient", opts.operation, "path", opts.path)
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(opts.operation, outcomeLabel(err), time.Since(start))
		if err != nil {
			logger.WarnContext(ctx, "remote call failed", "error", err, "error_kind", duty.ErrorKind(err))
		}
	}()

	var bearer string
	if opts.authenticated {
		token, ok := c.token()
		if !ok {
			return fmt.Errorf("%w: no active session", duty.ErrUnauthorized)
		}
		bearer = token
	}

	var reader io.Reader
	if opts.body != nil {
		encoded, merr := json.Marshal(opts.body)
		if merr != nil {
			return fmt.Errorf("failed to encode request body: %w", merr)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method, c.baseURL+opts.path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", duty.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", duty.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The sole path by which a token the session manager still believes in
		// is discovered to be dead.
		c.invalidate(ctx)
		return fmt.Errorf("%w: remote rejected token", duty.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return duty.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &duty.RemoteError{Status: resp.StatusCode, Message: remoteMessage(raw)}
	}

	if opts.out == nil {
		return nil
	}
	return decodePayload(raw, opts.out)
}

func (c *Client) token() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	return c.tokens.Token()
}

func (c *Client) invalidate(ctx context.Context) {
	if c.tokens != nil {
		c.tokens.Invalidate(ctx)
	}
}

// decodePayload unwraps the backend's {success, message, data} envelope when
// present and otherwise decodes the body directly, mirroring the backend's two
// response shapes.
func decodePayload(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Success != nil || len(env.Data) > 0) {
		if len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func remoteMessage(raw []byte) string {
	var env struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Detail
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := duty.ErrorKind(err); kind != "unexpected" {
		return kind
	}
	return "error"
}
