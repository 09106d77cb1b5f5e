package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewOrgsCommand creates the orgs command group. Running it without a
// subcommand lists the configured orgs.
func NewOrgsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"org"},
		Short:   "Manage configured orgs",
		Long:    "List the orgs configured in the config file and environment, and add, remove, or pick the default entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return outputOrgs(loadConfig())
		},
	}

	cmd.AddCommand(newOrgsAddCommand())
	cmd.AddCommand(newOrgsRemoveCommand())
	cmd.AddCommand(newOrgsDefaultCommand())

	return cmd
}

func newOrgsAddCommand() *cobra.Command {
	var (
		entry       OrgEntry
		makeDefault bool
	)

	cmd := &cobra.Command{
		Use:   "add ALIAS DOMAIN",
		Short: "Add an org to the config file",
		Long: `Add an org entry to the config file.

Credential flags are optional: fields left empty can be supplied at run time
through SALESFORCE_{ALIAS}_* environment variables. Tokens are never written
to the config file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry.Alias = args[0]
			entry.Domain = normalizeConfigDomain(args[1])

			return updateConfigFile(func(config *Config) (string, error) {
				return addOrgEntry(config, entry, makeDefault)
			})
		},
	}

	cmd.Flags().StringVar(&entry.APIVersion, "api-version", "", "REST API version, e.g. 60.0")
	cmd.Flags().StringVar(&entry.Username, "username", "", "username for the password flow")
	cmd.Flags().StringVar(&entry.Password, "password", "", "password for the password flow")
	cmd.Flags().StringVar(&entry.SecurityToken, "security-token", "", "security token appended to the password")
	cmd.Flags().StringVar(&entry.ClientID, "client-id", "", "connected app consumer key")
	cmd.Flags().StringVar(&entry.ClientSecret, "client-secret", "", "connected app consumer secret")
	cmd.Flags().StringVar(&entry.PrivateKeyFile, "private-key-file", "", "PEM private key file for the JWT bearer flow")
	cmd.Flags().StringVar(&entry.RefreshToken, "refresh-token", "", "refresh token for the web server flow")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "set the org as the default")

	return cmd
}

func newOrgsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ALIAS",
		Aliases: []string{"delete"},
		Short:   "Remove an org from the config file",
		Long:    "Remove an org entry from the config file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfigFile(func(config *Config) (string, error) {
				return removeOrgEntry(config, args[0])
			})
		},
	}
}

func newOrgsDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default ALIAS",
		Short: "Set the default org",
		Long:  "Set the org used when --org is not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfigFile(func(config *Config) (string, error) {
				return setDefaultOrg(config, args[0])
			})
		},
	}
}

// normalizeConfigDomain strips a scheme and trailing slash so the stored
// domain matches what the client constructors expect.
func normalizeConfigDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")

	return strings.TrimSuffix(domain, "/")
}

// addOrgEntry appends the entry, making it the default when requested or
// when it is the only org.
func addOrgEntry(config *Config, entry OrgEntry, makeDefault bool) (string, error) {
	for _, existing := range config.Orgs {
		if existing.Alias == entry.Alias {
			return "", fmt.Errorf("org %q: %w", entry.Alias, ErrOrgAlreadyConfigured)
		}
	}

	config.Orgs = append(config.Orgs, entry)

	if makeDefault || len(config.Orgs) == 1 {
		config.DefaultOrg = entry.Alias

		return fmt.Sprintf("Org %q added and set as the default org", entry.Alias), nil
	}

	return fmt.Sprintf("Org %q added", entry.Alias), nil
}

// removeOrgEntry deletes the entry and moves the default to the first
// remaining org when the removed org was the default.
func removeOrgEntry(config *Config, alias string) (string, error) {
	index := -1

	for i, existing := range config.Orgs {
		if existing.Alias == alias {
			index = i

			break
		}
	}

	if index == -1 {
		return "", fmt.Errorf("org %q: %w", alias, ErrOrgNotConfigured)
	}

	config.Orgs = append(config.Orgs[:index], config.Orgs[index+1:]...)

	if config.DefaultOrg != alias {
		return fmt.Sprintf("Org %q removed", alias), nil
	}

	if len(config.Orgs) == 0 {
		config.DefaultOrg = ""

		return fmt.Sprintf("Org %q removed; no orgs remaining", alias), nil
	}

	config.DefaultOrg = config.Orgs[0].Alias

	return fmt.Sprintf("Org %q removed; the default org is now %q", alias, config.DefaultOrg), nil
}

// setDefaultOrg marks an existing org as the default.
func setDefaultOrg(config *Config, alias string) (string, error) {
	for _, existing := range config.Orgs {
		if existing.Alias == alias {
			config.DefaultOrg = alias

			return fmt.Sprintf("Org %q is now the default org", alias), nil
		}
	}

	return "", fmt.Errorf("org %q: %w", alias, ErrOrgNotConfigured)
}

func outputOrgs(config *Config) error {
	masked := config.masked()

	return renderOutput(masked.Orgs, func(orgs []OrgEntry) error {
		if len(orgs) == 0 {
			_, _ = os.Stdout.WriteString("No orgs configured\n")

			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Alias", "Domain", "API Version", "Auth Flow", "Default")

		for _, org := range orgs {
			marker := ""
			if org.Alias == config.defaultAlias() {
				marker = Yes
			}

			_ = table.Append(org.Alias, org.Domain, valueOrNA(org.APIVersion), org.authFlow(), marker)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	})
}
