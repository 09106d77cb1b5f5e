package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var (
		includeDeleted bool
		allPages       bool
	)

	cmd := &cobra.Command{
		Use:   "query SOQL",
		Short: "Run a SOQL query",
		Long: `Run a SOQL query against the selected org.

By default only the first page of results is returned; use --all-pages to
follow nextRecordsUrl until the result set is complete.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			soql := strings.TrimSpace(args[0])
			if soql == "" {
				return ErrQueryRequired
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := runQuery(ctx, org.Query(), soql, includeDeleted, allPages)
				if err != nil {
					return err
				}

				return outputQueryResult(result)
			})
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "include deleted and archived records (queryAll)")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "follow pagination until all records are fetched")

	return cmd
}

// runQuery executes the query and optionally drains the remaining pages.
func runQuery(ctx context.Context, query sfapi.QueryClient, soql string,
	includeDeleted, allPages bool,
) (*sfapi.QueryResult, error) {
	execute := query.Execute
	if includeDeleted {
		execute = query.ExecuteAll
	}

	result, err := execute(ctx, soql)
	if err != nil {
		return nil, err
	}

	if !allPages {
		return result, nil
	}

	records := result.Records

	for !result.Done && result.NextRecordsURL != "" {
		result, err = query.More(ctx, result.NextRecordsURL)
		if err != nil {
			return nil, err
		}

		records = append(records, result.Records...)
	}

	return &sfapi.QueryResult{
		TotalSize: result.TotalSize,
		Done:      true,
		Records:   records,
	}, nil
}

func outputQueryResult(result *sfapi.QueryResult) error {
	return renderOutput(result, func(result *sfapi.QueryResult) error {
		err := renderRecordsTable(result.Records, "No records found")
		if err != nil {
			return err
		}

		if !result.Done {
			fmt.Printf("\nShowing %d of %d records. Re-run with --all-pages to fetch the rest.\n",
				len(result.Records), result.TotalSize)
		}

		return nil
	})
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search SOSL",
		Short: "Run a SOSL search",
		Long:  `Run a SOSL search against the selected org, e.g. "FIND {Acme} IN NAME FIELDS RETURNING Account(Id, Name)".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sosl := strings.TrimSpace(args[0])
			if sosl == "" {
				return ErrSearchRequired
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := org.Query().Search(ctx, sosl)
				if err != nil {
					return err
				}

				return renderOutput(result, func(result *sfapi.SearchResult) error {
					return renderRecordsTable(result.SearchRecords, "No records matched")
				})
			})
		},
	}
}
