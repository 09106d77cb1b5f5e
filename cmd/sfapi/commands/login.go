package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/fivetwenty-io/sfapi/pkg/sfclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		domain       string
		username     string
		password     string
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify org credentials",
		Long: `Verify that credentials for an org are valid by obtaining a token.

With configured orgs the command checks the org selected by --org. Without
configured orgs it prompts for username-password credentials. Nothing is
written to disk; tokens live only in memory for the duration of the command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if len(config.Orgs) > 0 && username == "" {
				return verifyConfiguredOrg()
			}

			// Username/password flow
			if username == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Username: ")
				username, _ = reader.ReadString('\n')
				username = strings.TrimSpace(username)
			}

			if username == "" {
				return sfapi.ErrUsernamePasswordRequired
			}

			if password == "" {
				fmt.Print("Password: ")
				bytePassword, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = string(bytePassword)
				fmt.Println()
			}

			securityToken := ""
			if viper.GetString("security_token") != "" {
				securityToken = viper.GetString("security_token")
			} else {
				fmt.Print("Security token (press enter to skip): ")
				byteToken, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read security token: %w", err)
				}
				securityToken = string(byteToken)
				fmt.Println()
			}

			return verifyPasswordCredentials(domain, &sfapi.UsernamePasswordCredentials{
				Username:      username,
				Password:      password,
				SecurityToken: securityToken,
				ClientID:      clientID,
				ClientSecret:  clientSecret,
			})
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "login", "login domain (login, test, or a full My Domain host)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username to authenticate as")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "connected app consumer key")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "connected app consumer secret")

	return cmd
}

// verifyConfiguredOrg obtains a token for the selected configured org by
// calling the limits endpoint.
func verifyConfiguredOrg() error {
	return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
		_, err := org.Limits().Get(ctx)
		if err != nil {
			return fmt.Errorf("credential check for org %q failed: %w", org.Alias(), err)
		}

		fmt.Printf("Successfully authenticated to org %q\n", org.Alias())

		return nil
	})
}

// verifyPasswordCredentials checks one-off credentials without touching the
// config file.
func verifyPasswordCredentials(domain string, creds *sfapi.UsernamePasswordCredentials) error {
	client, err := sfclient.NewWithCredentials(domain, creds)
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	org, err := client.DefaultOrg()
	if err != nil {
		return err
	}

	ctx := context.Background()

	_, err = org.Limits().Get(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Printf("Successfully authenticated %s to %s\n", creds.Username, domain)
	fmt.Println("Credentials were not saved; run 'sfapi orgs add' to keep using this org.")

	return nil
}
