package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/spf13/cobra"
)

// NewApexCommand creates the apex command group.
func NewApexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apex",
		Short: "Run anonymous Apex",
		Long:  "Execute anonymous Apex blocks through the Tooling API",
	}

	cmd.AddCommand(newApexRunCommand())

	return cmd
}

func newApexRunCommand() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "run [APEX]",
		Short: "Execute anonymous Apex",
		Long:  "Execute an anonymous Apex block passed as an argument or read from --file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := resolveApexBody(args, filePath)
			if err != nil {
				return err
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := org.Tooling().ExecuteAnonymous(ctx, body)
				if err != nil {
					var apexErr *sfapi.ApexExecutionError
					if errors.As(err, &apexErr) {
						printApexFailure(apexErr)
					}

					return err
				}

				return renderOutput(result, func(result *sfapi.ApexResult) error {
					fmt.Println("Apex executed successfully")

					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to a file containing the Apex block")

	return cmd
}

func resolveApexBody(args []string, filePath string) (string, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read Apex file: %w", err)
		}

		return string(data), nil
	}

	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}

	return "", ErrApexBodyRequired
}

func printApexFailure(apexErr *sfapi.ApexExecutionError) {
	if apexErr.CompileError != "" {
		fmt.Fprintf(os.Stderr, "Compile error at line %d: %s\n", apexErr.Line, apexErr.CompileError)

		return
	}

	fmt.Fprintf(os.Stderr, "Runtime error at line %d: %s\n", apexErr.Line, apexErr.RuntimeError)
}
