// Package sfapi provides types, interfaces, and helpers for working with the
// Salesforce REST, Bulk 2.0, Tooling, and Analytics APIs.
//
// # Overview
//
// The sfapi package defines the domain types (e.g., Token, QueryResult,
// BulkJobInfo, ObjectDescribe) and the interfaces for API-surface clients
// (e.g., QueryClient, SObjectsClient, BulkClient). A concrete implementation
// of these clients is provided by the sfclient package, which wires
// configuration, transport, authentication, rate limiting, and multi-org
// routing. Most consumers should import sfclient to construct a client and
// then interact with the client interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/sfapi/pkg/sfapi"
//	  "github.com/fivetwenty-io/sfapi/pkg/sfclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := sfclient.New(&sfapi.Config{
//	    Orgs: []sfapi.OrgConfig{{
//	      Alias:  "production",
//	      Domain: "login",
//	      Credentials: &sfapi.UsernamePasswordCredentials{
//	        Username:      "user@example.com",
//	        Password:      "secret",
//	        SecurityToken: "token",
//	      },
//	    }},
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  org, err := cli.DefaultOrg()
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := org.Query().Execute(ctx, "SELECT Id, Name FROM Account LIMIT 10")
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// # Multi-org routing
//
// A single Client can hold any number of org configurations, each with its
// own credentials, token lifecycle, and rate limiter. Org(alias) returns the
// same OrgClient for every call with the same alias, so concurrent callers
// share one token cache and one rate limiter per org.
//
// # Errors
//
// API errors are represented by a small taxonomy: AuthenticationError,
// RateLimitError, ValidationError, NotFoundError, SalesforceError,
// BulkOperationError, ApexExecutionError, and UnknownOrgError. Helpers such
// as IsNotFound, IsUnauthorized, and IsRateLimited make it easy to branch on
// common cases.
//
// # Interceptors and auditing
//
// The package includes generic building blocks such as request/response
// interceptors (for logging and custom headers) and the AuditRecorder
// abstraction, which receives one entry per completed or failed call. The
// sfclient package composes these pieces for a sensible default client;
// applications with advanced needs can also use these primitives directly.
package sfapi
