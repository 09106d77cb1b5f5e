// Package sfclient provides the primary entry point for constructing a
// Salesforce API client that implements the sfapi.Client interface.
//
// It layers configuration, HTTP transport, authentication, rate limiting,
// and auditing on top of the resource interfaces and types defined in the
// sfapi package. Most applications should import sfclient to build a client,
// then use the returned sfapi.Client to resolve org-scoped clients and their
// resources, for example Query(), SObjects(), Bulk(), etc.
//
// Quick start
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
//
//	  // Minimal: one org with username/password credentials.
//	  cli, err := sfclient.NewWithPassword("login", "user@example.com", "secret")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or several orgs with different flows:
//	  cli, err = sfclient.New(&sfapi.Config{
//	    Orgs: []sfapi.OrgConfig{
//	      {
//	        Alias:  "production",
//	        Domain: "acme.my.salesforce.com",
//	        Credentials: &sfapi.JWTBearerCredentials{
//	          ClientID:   "connected-app-id",
//	          Username:   "integration@acme.com",
//	          PrivateKey: pemKey,
//	        },
//	      },
//	      {
//	        Alias:  "sandbox",
//	        Domain: "test",
//	        Credentials: &sfapi.UsernamePasswordCredentials{
//	          Username: "it@acme.com.sandbox",
//	          Password: "secret",
//	        },
//	      },
//	    },
//	    DefaultOrg: "production",
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  // Resolve an org and use its resource clients.
//	  org, err := cli.Org("production")
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := org.Query().Execute(ctx, "SELECT Id, Name FROM Account LIMIT 10")
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// Tokens are obtained lazily: construction performs no network calls, and
// the first request on each org runs that org's credential flow.
//
// # TLS and development mode
//
// For local development, you can set Config.SkipTLSVerify=true. This is gated
// by the environment variable SFAPI_DEV_MODE to avoid accidental insecure
// usage in production environments.
//
// # Helpers
//
// The package also provides convenience constructors NewWithCredentials,
// NewWithPassword, NewWithJWT, and NewWithRefreshToken that wrap New with a
// single-org configuration.
package sfclient
