package constants

import "errors"

// Registry errors.
var (
	ErrOrgAliasRequired = errors.New("org alias is required")
)

// Development-mode gating errors.
var (
	ErrSkipTLSOnlyInDev = errors.New("skipping TLS verification is only allowed in development environments (set SFAPI_DEV_MODE=true)")
)
