package client

import (
	"fmt"
	"sort"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Registry maps org aliases to their assembled runtimes. Registration
// happens once at construction; lookups never mutate, so reads need no lock.
// Resolving the same alias always returns the same runtime: token and
// rate-limit state are shared by everyone using that org.
type Registry struct {
	orgs         map[string]*OrgRuntime
	aliases      []string
	defaultAlias string
}

// NewRegistry builds one runtime per configured org.
func NewRegistry(config *sfapi.Config, audit sfapi.AuditRecorder) (*Registry, error) {
	if config == nil {
		return nil, sfapi.ErrConfigRequired
	}

	if len(config.Orgs) == 0 {
		return nil, sfapi.ErrNoOrgsConfigured
	}

	registry := &Registry{
		orgs:    make(map[string]*OrgRuntime, len(config.Orgs)),
		aliases: make([]string, 0, len(config.Orgs)),
	}

	// One transport for all orgs; token exchanges and API calls share its
	// connection pool.
	httpClient, err := buildHTTPClient(config)
	if err != nil {
		return nil, err
	}

	for _, org := range config.Orgs {
		if org.Alias == "" {
			return nil, constants.ErrOrgAliasRequired
		}

		if _, exists := registry.orgs[org.Alias]; exists {
			return nil, fmt.Errorf("%w: %q", sfapi.ErrDuplicateOrgAlias, org.Alias)
		}

		runtime, err := newOrgRuntime(org, config, audit, httpClient)
		if err != nil {
			return nil, err
		}

		registry.orgs[org.Alias] = runtime
		registry.aliases = append(registry.aliases, org.Alias)
	}

	sort.Strings(registry.aliases)

	registry.defaultAlias = config.DefaultOrg
	if registry.defaultAlias == "" {
		registry.defaultAlias = config.Orgs[0].Alias
	}

	if _, ok := registry.orgs[registry.defaultAlias]; !ok {
		return nil, &sfapi.UnknownOrgError{Alias: registry.defaultAlias}
	}

	return registry, nil
}

// Resolve returns the runtime for alias. An empty alias selects the default
// org.
func (r *Registry) Resolve(alias string) (*OrgRuntime, error) {
	if alias == "" {
		alias = r.defaultAlias
	}

	runtime, ok := r.orgs[alias]
	if !ok {
		return nil, &sfapi.UnknownOrgError{Alias: alias}
	}

	return runtime, nil
}

// Aliases returns the registered aliases in sorted order.
func (r *Registry) Aliases() []string {
	aliases := make([]string, len(r.aliases))
	copy(aliases, r.aliases)

	return aliases
}

// DefaultAlias returns the alias resolved for an empty alias argument.
func (r *Registry) DefaultAlias() string {
	return r.defaultAlias
}
