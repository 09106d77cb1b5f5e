// Package client assembles per-org runtimes and the resource clients behind
// the public sfapi.Client surface.
package client

import (
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	"github.com/fivetwenty-io/sfapi/internal/constants"
	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/internal/ratelimit"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Client implements the sfapi.Client interface.
type Client struct {
	registry  *Registry
	audit     sfapi.AuditRecorder
	ownsAudit bool
	logger    sfapi.Logger
}

// New creates a multi-org client from the configuration.
func New(config *sfapi.Config) (*Client, error) {
	if config == nil {
		return nil, sfapi.ErrConfigRequired
	}

	audit, ownsAudit, err := buildAuditRecorder(config)
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(config, audit)
	if err != nil {
		if ownsAudit {
			closeAudit(audit)
		}

		return nil, err
	}

	return &Client{
		registry:  registry,
		audit:     audit,
		ownsAudit: ownsAudit,
		logger:    config.Logger,
	}, nil
}

// Org implements sfapi.Client.Org.
func (c *Client) Org(alias string) (sfapi.OrgClient, error) {
	return c.registry.Resolve(alias)
}

// DefaultOrg implements sfapi.Client.DefaultOrg.
func (c *Client) DefaultOrg() (sfapi.OrgClient, error) {
	return c.registry.Resolve("")
}

// Orgs implements sfapi.Client.Orgs.
func (c *Client) Orgs() []string {
	return c.registry.Aliases()
}

// Close implements sfapi.Client.Close. Only recorders built by this client
// are closed; a caller-provided recorder stays open.
func (c *Client) Close() error {
	if !c.ownsAudit {
		return nil
	}

	return closeAudit(c.audit)
}

// Registry exposes the org registry for callers inside this module.
func (c *Client) Registry() *Registry {
	return c.registry
}

// buildAuditRecorder picks the audit recorder: a caller-provided one, one
// built from declarative sink config, or the logger-backed default.
func buildAuditRecorder(config *sfapi.Config) (sfapi.AuditRecorder, bool, error) {
	if config.Audit != nil {
		return config.Audit, false, nil
	}

	if config.AuditSinks != nil {
		sinks := *config.AuditSinks
		if sinks.Logger == nil {
			sinks.Logger = config.Logger
		}

		recorder, err := sfapi.NewAuditRecorderFromConfig(&sinks)
		if err != nil {
			return nil, false, fmt.Errorf("building audit recorder: %w", err)
		}

		return recorder, true, nil
	}

	return sfapi.NewLoggerAuditRecorder(config.Logger), false, nil
}

func closeAudit(audit sfapi.AuditRecorder) error {
	closer, ok := audit.(interface{ Close() error })
	if !ok {
		return nil
	}

	err := closer.Close()
	if err != nil {
		return fmt.Errorf("closing audit recorder: %w", err)
	}

	return nil
}

// OrgRuntime is one org's assembled stack: auth manager, limiter,
// dispatcher, and the resource clients bound to them. It implements
// sfapi.OrgClient.
type OrgRuntime struct {
	alias      string
	apiVersion string
	manager    *auth.Manager
	limiter    *ratelimit.Limiter
	httpClient *internalhttp.Client

	// Resource clients
	query     *QueryClient
	sobjects  *SObjectsClient
	bulk      *BulkClient
	tooling   *ToolingClient
	analytics *AnalyticsClient
	limits    *LimitsClient
}

func newOrgRuntime(org sfapi.OrgConfig, config *sfapi.Config, audit sfapi.AuditRecorder, httpClient *nethttp.Client) (*OrgRuntime, error) {
	if org.Credentials == nil {
		return nil, fmt.Errorf("org %q: %w", org.Alias, sfapi.ErrCredentialsRequired)
	}

	provider, err := auth.NewProvider(org.Credentials, org.Domain, httpClient)
	if err != nil {
		return nil, fmt.Errorf("org %q: %w", org.Alias, err)
	}

	rateConfig := org.RateLimit
	if rateConfig == nil {
		rateConfig = config.RateLimit
	}

	if rateConfig != nil {
		err = rateConfig.Validate()
		if err != nil {
			return nil, fmt.Errorf("org %q: %w", org.Alias, err)
		}
	}

	limiter := ratelimit.New(rateConfig)
	manager := auth.NewManager(provider)

	runtime := &OrgRuntime{
		alias:      org.Alias,
		apiVersion: normalizeAPIVersion(org.APIVersion),
		manager:    manager,
		limiter:    limiter,
	}

	httpOpts := []internalhttp.Option{
		internalhttp.WithOrgAlias(org.Alias),
		internalhttp.WithRateLimiter(limiter),
		internalhttp.WithAudit(audit),
		internalhttp.WithHTTPClient(httpClient),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, internalhttp.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, internalhttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, internalhttp.WithUserAgent(config.UserAgent))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, internalhttp.WithInterceptors(config.Interceptors))
	}

	if config.RetryMax > 0 {
		retryWaitMin := config.RetryWaitMin
		if retryWaitMin <= 0 {
			retryWaitMin = constants.DefaultRetryWaitMin
		}

		retryWaitMax := config.RetryWaitMax
		if retryWaitMax <= 0 {
			retryWaitMax = constants.DefaultRetryWaitMax
		}

		httpOpts = append(httpOpts, internalhttp.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	runtime.httpClient = internalhttp.NewClient(manager, httpOpts...)
	runtime.initializeResourceClients(config.Logger)

	return runtime, nil
}

// initializeResourceClients initializes all resource-specific clients.
func (o *OrgRuntime) initializeResourceClients(logger sfapi.Logger) {
	basePath := apiBasePath(o.apiVersion)

	o.query = NewQueryClient(o.httpClient, basePath)
	o.sobjects = NewSObjectsClient(o.httpClient, basePath)
	o.bulk = NewBulkClient(o.httpClient, basePath, logger)
	o.tooling = NewToolingClient(o.httpClient, basePath)
	o.analytics = NewAnalyticsClient(o.httpClient, basePath)
	o.limits = NewLimitsClient(o.httpClient, basePath)
}

// Alias implements sfapi.OrgClient.Alias.
func (o *OrgRuntime) Alias() string {
	return o.alias
}

// APIVersion returns the REST API version this runtime addresses.
func (o *OrgRuntime) APIVersion() string {
	return o.apiVersion
}

// Query implements sfapi.OrgClient.Query.
func (o *OrgRuntime) Query() sfapi.QueryClient {
	return o.query
}

// SObjects implements sfapi.OrgClient.SObjects.
func (o *OrgRuntime) SObjects() sfapi.SObjectsClient {
	return o.sobjects
}

// Bulk implements sfapi.OrgClient.Bulk.
func (o *OrgRuntime) Bulk() sfapi.BulkClient {
	return o.bulk
}

// Tooling implements sfapi.OrgClient.Tooling.
func (o *OrgRuntime) Tooling() sfapi.ToolingClient {
	return o.tooling
}

// Analytics implements sfapi.OrgClient.Analytics.
func (o *OrgRuntime) Analytics() sfapi.AnalyticsClient {
	return o.analytics
}

// Limits implements sfapi.OrgClient.Limits.
func (o *OrgRuntime) Limits() sfapi.LimitsClient {
	return o.limits
}

// TokenManager exposes the org's token manager for direct use, e.g. to warm
// the token before a batch of work.
func (o *OrgRuntime) TokenManager() *auth.Manager {
	return o.manager
}

// buildHTTPClient constructs the underlying transport shared by the token
// endpoint and the dispatcher. Disabling TLS verification is refused unless
// SFAPI_DEV_MODE says this is a development environment.
func buildHTTPClient(config *sfapi.Config) (*nethttp.Client, error) {
	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	httpClient := &nethttp.Client{Timeout: timeout}

	if config.SkipTLSVerify {
		devMode := os.Getenv("SFAPI_DEV_MODE")
		if devMode != "true" && devMode != "1" {
			return nil, constants.ErrSkipTLSOnlyInDev
		}

		httpClient.Transport = &nethttp.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // gated by SFAPI_DEV_MODE above
		}
	}

	return httpClient, nil
}

// normalizeAPIVersion defaults the version and strips a leading "v" so both
// "59.0" and "v59.0" address the same API.
func normalizeAPIVersion(version string) string {
	if version == "" {
		return constants.DefaultAPIVersion
	}

	return strings.TrimPrefix(version, "v")
}

// apiBasePath is the REST prefix every org-scoped path hangs off.
func apiBasePath(version string) string {
	return "/services/data/v" + version
}
