package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/fivetwenty-io/sfapi/pkg/sfclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration resolved from the config file, the
// SALESFORCE_* environment, and flags. It never carries tokens.
type Config struct {
	// DefaultOrg is the alias used when --org is not given.
	DefaultOrg string `json:"default_org,omitempty" yaml:"default_org,omitempty" mapstructure:"default_org"`
	// Output is the default output format.
	Output string `json:"output,omitempty" yaml:"output,omitempty" mapstructure:"output"`
	// Orgs lists the configured orgs.
	Orgs []OrgEntry `json:"orgs,omitempty" yaml:"orgs,omitempty" mapstructure:"orgs"`
}

// OrgEntry is one configured org. The populated credential fields select
// the auth flow: a private key file selects the JWT bearer flow, a refresh
// token or authorization code selects the web server flow, and a username
// with password selects the username-password flow.
type OrgEntry struct {
	Alias          string `json:"alias"                      yaml:"alias"                      mapstructure:"alias"`
	Domain         string `json:"domain"                     yaml:"domain"                     mapstructure:"domain"`
	APIVersion     string `json:"api_version,omitempty"      yaml:"api_version,omitempty"      mapstructure:"api_version"`
	Username       string `json:"username,omitempty"         yaml:"username,omitempty"         mapstructure:"username"`
	Password       string `json:"password,omitempty"         yaml:"password,omitempty"         mapstructure:"password"`
	SecurityToken  string `json:"security_token,omitempty"   yaml:"security_token,omitempty"   mapstructure:"security_token"`
	ClientID       string `json:"client_id,omitempty"        yaml:"client_id,omitempty"        mapstructure:"client_id"`
	ClientSecret   string `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"    mapstructure:"client_secret"`
	PrivateKeyFile string `json:"private_key_file,omitempty" yaml:"private_key_file,omitempty" mapstructure:"private_key_file"`
	RefreshToken   string `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"    mapstructure:"refresh_token"`
	AuthCode       string `json:"auth_code,omitempty"        yaml:"auth_code,omitempty"        mapstructure:"auth_code"`
	RedirectURI    string `json:"redirect_uri,omitempty"     yaml:"redirect_uri,omitempty"     mapstructure:"redirect_uri"`
}

// authFlow names the flow the entry's credential fields select.
func (e OrgEntry) authFlow() string {
	switch {
	case e.PrivateKeyFile != "":
		return "jwt"
	case e.RefreshToken != "" || e.AuthCode != "":
		return "web_server"
	case e.Username != "":
		return "password"
	default:
		return NotAvailable
	}
}

// masked returns a copy of the entry with secret fields replaced so it is
// safe to print.
func (e OrgEntry) masked() OrgEntry {
	if e.Password != "" {
		e.Password = Masked
	}

	if e.SecurityToken != "" {
		e.SecurityToken = Masked
	}

	if e.ClientSecret != "" {
		e.ClientSecret = Masked
	}

	if e.RefreshToken != "" {
		e.RefreshToken = Masked
	}

	if e.AuthCode != "" {
		e.AuthCode = Masked
	}

	return e
}

// masked returns a printable copy of the config with secrets replaced.
func (c *Config) masked() *Config {
	copied := &Config{
		DefaultOrg: c.DefaultOrg,
		Output:     c.Output,
		Orgs:       make([]OrgEntry, 0, len(c.Orgs)),
	}

	for _, entry := range c.Orgs {
		copied.Orgs = append(copied.Orgs, entry.masked())
	}

	return copied
}

// defaultAlias resolves the alias used when --org is not given.
func (c *Config) defaultAlias() string {
	if c.DefaultOrg != "" {
		return c.DefaultOrg
	}

	if len(c.Orgs) > 0 {
		return c.Orgs[0].Alias
	}

	return ""
}

// configFilePath resolves the config file in use, or the default location
// when none was found.
func configFilePath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return filepath.Join(home, ".sfapi", "config.yml"), nil
}

// loadConfigFile reads the config file as written. Environment overlays are
// a read-time concern and never appear in the returned config, so saving it
// back cannot copy secrets from the environment into the file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func saveConfigFile(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// updateConfigFile loads the config file, applies mutate, and writes the
// result back. The message returned by mutate describes the applied change.
func updateConfigFile(mutate func(config *Config) (string, error)) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	config, err := loadConfigFile(path)
	if err != nil {
		return err
	}

	message, err := mutate(config)
	if err != nil {
		return err
	}

	if err := saveConfigFile(path, config); err != nil {
		return err
	}

	fmt.Println(message)

	return nil
}

// loadConfig resolves the CLI configuration from viper. Per-org
// SALESFORCE_{ALIAS}_* variables override config file values. When no orgs
// are configured it synthesizes one from the SALESFORCE_* environment so
// the CLI works without a config file.
func loadConfig() *Config {
	config := &Config{
		DefaultOrg: viper.GetString("default_org"),
		Output:     viper.GetString("output"),
	}

	_ = viper.UnmarshalKey("orgs", &config.Orgs)

	for i := range config.Orgs {
		config.Orgs[i] = applyEnvOverrides(config.Orgs[i])
	}

	if len(config.Orgs) == 0 {
		if entry, ok := orgFromEnvironment(); ok {
			config.Orgs = append(config.Orgs, entry)
		}
	}

	return config
}

// applyEnvOverrides overlays SALESFORCE_{ALIAS}_* variables onto the entry
// so secrets can stay out of the config file.
func applyEnvOverrides(entry OrgEntry) OrgEntry {
	if entry.Alias == "" {
		return entry
	}

	prefix := "SALESFORCE_" + strings.ToUpper(strings.ReplaceAll(entry.Alias, "-", "_")) + "_"

	override := func(field *string, suffix string) {
		if value := os.Getenv(prefix + suffix); value != "" {
			*field = value
		}
	}

	override(&entry.Domain, "DOMAIN")
	override(&entry.Username, "USERNAME")
	override(&entry.Password, "PASSWORD")
	override(&entry.SecurityToken, "SECURITY_TOKEN")
	override(&entry.ClientID, "CLIENT_ID")
	override(&entry.ClientSecret, "CLIENT_SECRET")
	override(&entry.PrivateKeyFile, "PRIVATE_KEY_FILE")
	override(&entry.RefreshToken, "REFRESH_TOKEN")

	return entry
}

// orgFromEnvironment builds a single org from SALESFORCE_* variables. The
// env org is used only when the config file defines no orgs.
func orgFromEnvironment() (OrgEntry, bool) {
	entry := OrgEntry{
		Alias:          sfclient.DefaultOrgAlias,
		Domain:         viper.GetString("domain"),
		APIVersion:     viper.GetString("api_version"),
		Username:       viper.GetString("username"),
		Password:       viper.GetString("password"),
		SecurityToken:  viper.GetString("security_token"),
		ClientID:       viper.GetString("client_id"),
		ClientSecret:   viper.GetString("client_secret"),
		PrivateKeyFile: viper.GetString("private_key_file"),
		RefreshToken:   viper.GetString("refresh_token"),
	}

	if entry.Username == "" && entry.PrivateKeyFile == "" && entry.RefreshToken == "" {
		return OrgEntry{}, false
	}

	return entry, true
}

// buildClientConfig maps the CLI configuration onto the client config.
func buildClientConfig(config *Config) (*sfapi.Config, error) {
	if len(config.Orgs) == 0 {
		return nil, ErrNoOrgsConfigured
	}

	clientConfig := &sfapi.Config{
		DefaultOrg: config.DefaultOrg,
	}

	if viper.GetBool("verbose") {
		clientConfig.Logger = sfapi.NewStdLogger(log.New(os.Stderr, "", 0))
		clientConfig.Debug = true
	}

	for _, entry := range config.Orgs {
		org, err := buildOrgConfig(entry)
		if err != nil {
			return nil, err
		}

		clientConfig.Orgs = append(clientConfig.Orgs, org)
	}

	return clientConfig, nil
}

func buildOrgConfig(entry OrgEntry) (sfapi.OrgConfig, error) {
	credentials, err := credentialsFor(entry)
	if err != nil {
		return sfapi.OrgConfig{}, err
	}

	return sfapi.OrgConfig{
		Alias:       entry.Alias,
		Domain:      entry.Domain,
		APIVersion:  entry.APIVersion,
		Credentials: credentials,
	}, nil
}

// credentialsFor selects the auth flow from the entry's populated fields.
func credentialsFor(entry OrgEntry) (sfapi.Credentials, error) {
	switch {
	case entry.PrivateKeyFile != "":
		key, err := os.ReadFile(entry.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key for org %q: %w", entry.Alias, err)
		}

		return &sfapi.JWTBearerCredentials{
			ClientID:   entry.ClientID,
			Username:   entry.Username,
			PrivateKey: key,
		}, nil
	case entry.RefreshToken != "" || entry.AuthCode != "":
		return &sfapi.WebServerCredentials{
			ClientID:     entry.ClientID,
			ClientSecret: entry.ClientSecret,
			RedirectURI:  entry.RedirectURI,
			AuthCode:     entry.AuthCode,
			RefreshToken: entry.RefreshToken,
		}, nil
	case entry.Username != "":
		return &sfapi.UsernamePasswordCredentials{
			Username:      entry.Username,
			Password:      entry.Password,
			SecurityToken: entry.SecurityToken,
			ClientID:      entry.ClientID,
			ClientSecret:  entry.ClientSecret,
		}, nil
	default:
		return nil, fmt.Errorf("org %q: %w", entry.Alias, ErrOrgCredentialsMissing)
	}
}

// CreateClient builds a multi-org client from the resolved configuration.
func CreateClient() (sfapi.Client, error) {
	return createClientFromConfig(loadConfig())
}

func createClientFromConfig(config *Config) (sfapi.Client, error) {
	clientConfig, err := buildClientConfig(config)
	if err != nil {
		return nil, err
	}

	client, err := sfclient.New(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// withOrg resolves the org selected by --org, runs fn against it, and
// closes the client afterwards. An empty --org selects the default org.
func withOrg(fn func(ctx context.Context, org sfapi.OrgClient) error) error {
	client, err := CreateClient()
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	org, err := client.Org(viper.GetString("org"))
	if err != nil {
		return err
	}

	return fn(context.Background(), org)
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect CLI configuration",
		Long:  "Inspect the resolved CLI configuration and the config file in use",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long:  "Display the configuration after merging the config file and environment. Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig().masked()

			return renderOutput(config, renderConfigTable)
		},
	}
}

func renderConfigTable(config *Config) error {
	if len(config.Orgs) == 0 {
		_, _ = os.Stdout.WriteString("No orgs configured\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Alias", "Domain", "API Version", "Auth Flow", "Username", "Default")

	for _, org := range config.Orgs {
		marker := ""
		if org.Alias == config.defaultAlias() {
			marker = Yes
		}

		_ = table.Append(org.Alias, org.Domain, valueOrNA(org.APIVersion),
			org.authFlow(), valueOrNA(org.Username), marker)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Long:  "Print the config file in use, or the default location when none was found",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}

			fmt.Println(path)

			return nil
		},
	}
}
