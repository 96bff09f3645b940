// Package api is the HTTP client for the membership API.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/metrics"
	"github.com/mudamudi/mmdesk/internal/session"
	"github.com/mudamudi/mmdesk/internal/version"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	// maxResponseBody is the maximum response body size to read (1 MB).
	maxResponseBody = 1 << 20

	pathLogin       = "/api/auth/login"
	pathVerify      = "/api/auth/verify"
	pathRefresh     = "/api/auth/refresh"
	pathPermissions = "/api/user/permissions"

	// HeaderRequestID carries the per-request correlation ID.
	HeaderRequestID = "X-Request-ID"
)

// ErrBaseURLRequired is returned by NewClient for an empty or relative base URL.
var ErrBaseURLRequired = &deskerr.DeskError{
	Code:     "API_BASE_URL_REQUIRED",
	Message:  "an absolute API base URL is required",
	ExitCode: deskerr.ExitInput,
}

// envelope is the common response shape of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Valid   bool            `json:"valid"`
	Data    json.RawMessage `json:"data"`
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceType string `json:"device_type"`
	DeviceInfo string `json:"device_info"`
}

type loginData struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *session.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshData struct {
	AccessToken string        `json:"access_token"`
	User        *session.User `json:"user"`
}

type permissionsData struct {
	Permissions     session.Permissions `json:"permissions"`
	AccessibleAreas *session.Areas      `json:"accessible_areas"`
}

// Client talks to the membership API. It satisfies session.API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	logger      *config.Logger
	userAgent   string
}

var _ session.API = (*Client)(nil)

// ClientOptions configures the client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Timeout overrides DefaultTimeout when HTTPClient is nil.
	Timeout time.Duration
	// RateLimits sets the token bucket of each endpoint. Endpoints left out
	// use DefaultRateLimit.
	RateLimits map[metrics.Endpoint]config.RateLimit
	// Metrics overrides metrics.Global.
	Metrics *metrics.Metrics
	// Logger receives request traces.
	Logger *config.Logger
	// UserAgent overrides version.UserAgent().
	UserAgent string
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts *ClientOptions) (*Client, error) {
	baseURL = config.CleanURL(baseURL)
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, deskerr.WithDetails(ErrBaseURLRequired, map[string]string{"url": baseURL})
	}

	if opts == nil {
		opts = &ClientOptions{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		rateLimiter: NewRateLimiter(opts.RateLimits),
		metrics:     metrics.Global,
		logger:      config.NullLogger(),
		userAgent:   version.UserAgent(),
	}

	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	}
	if opts.Metrics != nil {
		c.metrics = opts.Metrics
	}
	if opts.Logger != nil {
		c.logger = opts.Logger
	}
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}

	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimit reports the token bucket applied to endpoint.
func (c *Client) RateLimit(endpoint metrics.Endpoint) (config.RateLimit, bool) {
	return c.rateLimiter.Limit(endpoint)
}

// Login exchanges credentials for a token pair. A rejection carries the
// server's message, or "login failed" when it sent none.
func (c *Client) Login(ctx context.Context, username, password string, device session.Device) (*session.LoginResult, error) {
	resp, err := c.do(ctx, metrics.EndpointLogin, http.MethodPost, pathLogin, "", loginRequest{
		Username:   username,
		Password:   password,
		DeviceType: device.Type,
		DeviceInfo: device.Info,
	})
	if err != nil {
		return nil, err
	}

	env, err := resp.envelope("login failed")
	if err != nil {
		return nil, err
	}

	var data loginData
	if err := resp.decodeData(env, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" || data.RefreshToken == "" || data.User == nil {
		return nil, malformed(resp, "login response missing tokens or user")
	}

	return &session.LoginResult{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		User:         data.User,
	}, nil
}

// Verify reports whether accessToken is accepted. A non-200 status is a plain
// "not valid"; only transport and decoding problems are errors.
func (c *Client) Verify(ctx context.Context, accessToken string) (bool, error) {
	resp, err := c.do(ctx, metrics.EndpointVerify, http.MethodGet, pathVerify, accessToken, nil)
	if err != nil {
		return false, err
	}
	if resp.status != http.StatusOK {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return false, malformed(resp, err.Error())
	}
	return env.Valid, nil
}

// Refresh mints a new access token from refreshToken.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.RefreshResult, error) {
	resp, err := c.do(ctx, metrics.EndpointRefresh, http.MethodPost, pathRefresh, "", refreshRequest{
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, err
	}

	env, err := resp.envelope("token refresh failed")
	if err != nil {
		return nil, err
	}

	var data refreshData
	if err := resp.decodeData(env, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" || data.User == nil {
		return nil, malformed(resp, "refresh response missing access token or user")
	}

	return &session.RefreshResult{AccessToken: data.AccessToken, User: data.User}, nil
}

// Permissions fetches the menu flags and assigned areas of the token's user.
func (c *Client) Permissions(ctx context.Context, accessToken string) (*session.PermissionSet, error) {
	resp, err := c.do(ctx, metrics.EndpointPermissions, http.MethodGet, pathPermissions, accessToken, nil)
	if err != nil {
		return nil, err
	}

	env, err := resp.envelope("loading permissions failed")
	if err != nil {
		return nil, err
	}

	var data permissionsData
	if err := resp.decodeData(env, &data); err != nil {
		return nil, err
	}
	if data.Permissions == nil || data.AccessibleAreas == nil {
		return nil, malformed(resp, "permissions response missing permissions or accessible_areas")
	}

	return &session.PermissionSet{
		Permissions:     data.Permissions,
		AccessibleAreas: *data.AccessibleAreas,
	}, nil
}

// response is a fully read HTTP response.
type response struct {
	endpoint  metrics.Endpoint
	status    int
	body      []byte
	requestID string
}

// envelope decodes the body and turns any unsuccessful outcome into an error.
func (r *response) envelope(fallback string) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(r.body, &env); err != nil {
		return nil, malformed(r, err.Error())
	}

	if r.status != http.StatusOK || !env.Success {
		return nil, deskerr.WithDetails(deskerr.Rejected(env.Error, fallback), map[string]string{
			"endpoint":   string(r.endpoint),
			"status":     strconv.Itoa(r.status),
			"request_id": r.requestID,
		})
	}

	return &env, nil
}

func (r *response) decodeData(env *envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return malformed(r, "response has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return malformed(r, err.Error())
	}
	return nil
}

func malformed(r *response, reason string) error {
	return deskerr.WithDetails(deskerr.ErrMalformedResponse, map[string]string{
		"endpoint":   string(r.endpoint),
		"status":     strconv.Itoa(r.status),
		"reason":     truncate(reason, 256),
		"request_id": r.requestID,
	})
}

// do sends one request and reads its body. Only transport failures are
// returned as errors; HTTP status handling is left to the caller.
func (c *Client) do(ctx context.Context, endpoint metrics.Endpoint, method, path, bearer string, payload any) (*response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	resp, err := c.send(ctx, endpoint, method, path, bearer, payload, requestID)

	var recordErr error
	if err != nil {
		recordErr = err
	} else if resp.status != http.StatusOK {
		recordErr = fmt.Errorf("status %d", resp.status)
	}
	c.metrics.RecordAPICall(endpoint, time.Since(start), recordErr)

	attrs := []slog.Attr{
		slog.String("endpoint", string(endpoint)),
		slog.String("method", method),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		c.logger.ErrorAttrs("api request failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}
	c.logger.DebugAttrs("api request", append(attrs, slog.Int("status", resp.status))...)

	return resp, nil
}

func (c *Client) send(ctx context.Context, endpoint metrics.Endpoint, method, path, bearer string, payload any, requestID string) (*response, error) {
	if err := c.rateLimiter.Wait(ctx, endpoint); err != nil {
		return nil, classifyTransport(ctx, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL is built from configured base URL
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	return &response{
		endpoint:  endpoint,
		status:    resp.StatusCode,
		body:      data,
		requestID: requestID,
	}, nil
}

// classifyTransport maps a transport failure onto the timeout or
// connection error kinds. A request whose context ran out of time is a
// timeout whatever the transport reported.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return deskerr.WithCause(deskerr.ErrNetworkTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return deskerr.WithCause(deskerr.ErrNetworkTimeout, err)
	}
	return deskerr.WithCause(deskerr.ErrConnectionFailure, err)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
