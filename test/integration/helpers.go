//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/fivetwenty-io/sfapi/pkg/sfclient"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	Domain        string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	Verbose       bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		Domain:        os.Getenv("SFAPI_INTEGRATION_DOMAIN"),
		Username:      os.Getenv("SFAPI_INTEGRATION_USERNAME"),
		Password:      os.Getenv("SFAPI_INTEGRATION_PASSWORD"),
		SecurityToken: os.Getenv("SFAPI_INTEGRATION_SECURITY_TOKEN"),
		ClientID:      os.Getenv("SFAPI_INTEGRATION_CLIENT_ID"),
		ClientSecret:  os.Getenv("SFAPI_INTEGRATION_CLIENT_SECRET"),
		Verbose:       os.Getenv("SFAPI_INTEGRATION_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips the test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	if config.Domain == "" {
		t.Skip("SFAPI_INTEGRATION_DOMAIN not set, skipping integration test")
	}

	if config.Username == "" || config.Password == "" {
		t.Skip("SFAPI_INTEGRATION_USERNAME or SFAPI_INTEGRATION_PASSWORD not set, skipping integration test")
	}
}

// NewTestClient builds a client for the org the environment describes
func NewTestClient(config *TestConfig, t *testing.T) sfapi.Client {
	creds := &sfapi.UsernamePasswordCredentials{
		Username:      config.Username,
		Password:      config.Password,
		SecurityToken: config.SecurityToken,
		ClientID:      config.ClientID,
		ClientSecret:  config.ClientSecret,
	}

	client, err := sfclient.NewWithCredentials(config.Domain, creds)
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}

	t.Cleanup(func() {
		if err := client.Close(); err != nil && config.Verbose {
			t.Logf("client close warning: %v", err)
		}
	})

	return client
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().Unix())
}

// CleanupRecord attempts to delete a test record, logging failures
// instead of failing the test so later cleanups still run.
func CleanupRecord(t *testing.T, org sfapi.OrgClient, objectType, recordID string) {
	if recordID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := org.SObjects().Delete(ctx, objectType, recordID); err != nil {
		t.Logf("cleanup warning for %s %s: %v", objectType, recordID, err)
	}
}
