// Package http implements the dispatcher every API call funnels through:
// token resolution, client-side rate limiting, retries, error
// classification, and audit emission.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// TokenManager supplies and replaces tokens for one org.
type TokenManager interface {
	// GetToken returns a valid token, refreshing an expired one first.
	GetToken(ctx context.Context) (*sfapi.Token, error)
	// ForceRefresh replaces a token the server rejected with 401.
	ForceRefresh(ctx context.Context, rejected *sfapi.Token) (*sfapi.Token, error)
}

// RateLimiter grants send slots. Acquire is called once per logical call;
// retries inside the dispatcher do not re-acquire.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// Static errors for err113 compliance.
var (
	ErrNoInstanceURL = errors.New("token carries no instance URL")
)

// Request represents an API request.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// RawBody bypasses JSON encoding; ContentType labels it.
	RawBody     []byte
	ContentType string

	// Operation names the logical call for audit entries; empty derives
	// a name from the method and path.
	Operation string
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client dispatches requests against an org's instance URL.
type Client struct {
	tokenManager TokenManager
	rateLimiter  RateLimiter
	retryClient  *retryablehttp.Client
	interceptors *sfapi.InterceptorChain
	audit        sfapi.AuditRecorder
	logger       sfapi.Logger
	orgAlias     string
	userAgent    string
	debug        bool
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger sfapi.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig adjusts the retry ladder for 429 and 5xx responses.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryClient.RetryMax = maxRetries
		c.retryClient.RetryWaitMin = waitMin
		c.retryClient.RetryWaitMax = waitMax
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRateLimiter installs the per-org send pacing.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *Client) {
		c.rateLimiter = limiter
	}
}

// WithAudit installs the audit recorder.
func WithAudit(recorder sfapi.AuditRecorder) Option {
	return func(c *Client) {
		c.audit = recorder
	}
}

// WithOrgAlias names the org in audit entries and auth errors.
func WithOrgAlias(alias string) Option {
	return func(c *Client) {
		c.orgAlias = alias
	}
}

// WithInterceptors installs the request/response interceptor chain.
func WithInterceptors(chain *sfapi.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithHTTPClient replaces the underlying transport, e.g. for custom TLS.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient = httpClient
	}
}

// NewClient creates a dispatcher around a token manager.
func NewClient(tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	retryClient.Logger = nil
	retryClient.CheckRetry = retryPolicy
	// Keep the final 429/5xx response instead of swallowing it, so it can
	// be classified.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		tokenManager: tokenManager,
		retryClient:  retryClient,
		userAgent:    "sfapi/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// retryPolicy retries connection failures, 429, and 5xx. Everything else,
// 401 included, is settled outside the ladder.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return true, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}

	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}

	return false, nil
}

// Do executes a request: resolve token, take one rate-limit slot, send with
// the retry ladder, refresh-and-resend once on 401, classify the outcome,
// and record one audit entry either way.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	resp, err := c.dispatch(ctx, req)

	c.recordAudit(req, start, err)

	return resp, err
}

func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	if err := c.runRequestInterceptors(ctx, req, body); err != nil {
		return nil, err
	}

	if c.rateLimiter != nil {
		err = c.rateLimiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, req, token, body, contentType)
	if err != nil {
		return nil, err
	}

	// One refresh and resend settles an invalid token; a second 401 means
	// the credentials themselves no longer work.
	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		token, err = c.tokenManager.ForceRefresh(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = c.send(ctx, req, token, body, contentType)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			classified := &sfapi.AuthenticationError{
				OrgAlias: c.orgAlias,
				Response: sfapi.ParseResponseError(resp.StatusCode, resp.Body),
			}

			c.runResponseInterceptors(ctx, req, resp, classified)

			return resp, classified
		}
	}

	classified := c.classify(resp)
	c.runResponseInterceptors(ctx, req, resp, classified)

	if classified != nil {
		return resp, classified
	}

	return resp, nil
}

// resolveToken fetches the org token that carries both the credential and
// the instance URL requests are addressed to.
func (c *Client) resolveToken(ctx context.Context) (*sfapi.Token, error) {
	if c.tokenManager == nil {
		return nil, nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	return token, nil
}

// encodeBody renders the request body and picks its content type.
func encodeBody(req *Request) ([]byte, string, error) {
	if req.RawBody != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		return req.RawBody, contentType, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	return body, "application/json", nil
}

// send performs one pass through the retry ladder.
func (c *Client) send(ctx context.Context, req *Request, token *sfapi.Token, body []byte, contentType string) (*Response, error) {
	fullURL, err := c.buildURL(req, token)
	if err != nil {
		return nil, err
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if token != nil {
		httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	start := time.Now()

	httpResp, err := c.retryClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      req.Method,
			"url":         fullURL,
			"status_code": httpResp.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

// buildURL joins the instance URL with the request path and query.
func (c *Client) buildURL(req *Request, token *sfapi.Token) (string, error) {
	if token == nil || token.InstanceURL == "" {
		return "", ErrNoInstanceURL
	}

	fullURL := strings.TrimSuffix(token.InstanceURL, "/") + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	return fullURL, nil
}

// classify maps a settled response onto the error taxonomy.
func (c *Client) classify(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respErr := sfapi.ParseResponseError(resp.StatusCode, resp.Body)
	first := respErr.First()

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &sfapi.ValidationError{
			Message:   first.Message,
			ErrorCode: codeOrDefault(first.ErrorCode, sfapi.ErrorCodeValidation),
			Fields:    first.Fields,
		}

	case http.StatusUnauthorized:
		return &sfapi.AuthenticationError{OrgAlias: c.orgAlias, Response: respErr}

	case http.StatusNotFound:
		return &sfapi.NotFoundError{
			Message:   first.Message,
			ErrorCode: codeOrDefault(first.ErrorCode, sfapi.ErrorCodeNotFound),
		}

	case http.StatusTooManyRequests:
		return &sfapi.RateLimitError{
			Message:    first.Message,
			RetryAfter: retryAfterSeconds(resp.Headers),
		}

	default:
		return &sfapi.SalesforceError{
			Message:    first.Message,
			ErrorCode:  codeOrDefault(first.ErrorCode, sfapi.ErrorCodeUnknown),
			StatusCode: resp.StatusCode,
		}
	}
}

func codeOrDefault(code, fallback string) string {
	if code == "" || code == sfapi.ErrorCodeUnknown {
		return fallback
	}

	return code
}

// retryAfterSeconds parses the Retry-After header, zero when absent.
func retryAfterSeconds(headers http.Header) int {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return seconds
}

// runRequestInterceptors feeds the outbound request through the chain.
// Header mutations are copied back onto the request.
func (c *Client) runRequestInterceptors(ctx context.Context, req *Request, body []byte) error {
	if c.interceptors == nil {
		return nil
	}

	intercepted := &sfapi.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: make(http.Header),
		Body:    body,
	}

	for key, value := range req.Headers {
		intercepted.Headers.Set(key, value)
	}

	err := c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return err
	}

	if len(intercepted.Headers) > 0 {
		if req.Headers == nil {
			req.Headers = make(map[string]string, len(intercepted.Headers))
		}

		for key := range intercepted.Headers {
			req.Headers[key] = intercepted.Headers.Get(key)
		}
	}

	return nil
}

// runResponseInterceptors feeds the settled response through the chain.
// Interceptor failures here are logged, not surfaced: the call already has
// its outcome.
func (c *Client) runResponseInterceptors(ctx context.Context, req *Request, resp *Response, classified error) {
	if c.interceptors == nil {
		return
	}

	intercepted := &sfapi.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Error:      classified,
	}

	err := c.interceptors.ExecuteResponseInterceptors(ctx, &sfapi.Request{
		Method: req.Method,
		Path:   req.Path,
	}, intercepted)
	if err != nil && c.logger != nil {
		c.logger.Warn("response interceptor failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// recordAudit emits one entry per logical call.
func (c *Client) recordAudit(req *Request, start time.Time, err error) {
	if c.audit == nil {
		return
	}

	outcome := constants.OutcomeSuccess
	if err != nil {
		outcome = constants.OutcomeError
	}

	c.audit.Record(sfapi.AuditLogEntry{
		Timestamp: start,
		OrgAlias:  c.orgAlias,
		Operation: c.operationName(req),
		Outcome:   outcome,
		Duration:  time.Since(start),
	})
}

func (c *Client) operationName(req *Request) string {
	if req.Operation != "" {
		return req.Operation
	}

	return req.Method + " " + req.Path
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// PutRaw performs a PUT request with a pre-encoded body, e.g. CSV chunks.
func (c *Client) PutRaw(ctx context.Context, path, contentType string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, RawBody: body, ContentType: contentType})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}
