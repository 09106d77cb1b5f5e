package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewReportsCommand creates the reports command group.
func NewReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Work with analytics reports",
		Long:    "List recently viewed reports and run reports synchronously",
	}

	cmd.AddCommand(newReportsListCommand())
	cmd.AddCommand(newReportsRunCommand())

	return cmd
}

func newReportsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reports",
		Long:  "List the org's recently viewed reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				reports, err := org.Analytics().ListReports(ctx)
				if err != nil {
					return err
				}

				return renderOutput(reports, renderReportsTable)
			})
		},
	}
}

func renderReportsTable(reports []sfapi.ReportSummary) error {
	if len(reports) == 0 {
		_, _ = os.Stdout.WriteString("No reports found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name")

	for _, report := range reports {
		_ = table.Append(report.ID, report.Name)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newReportsRunCommand() *cobra.Command {
	var filtersJSON string

	cmd := &cobra.Command{
		Use:   "run REPORT_ID",
		Short: "Run a report",
		Long:  "Run a report synchronously, optionally overriding report metadata with a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters map[string]interface{}

			if filtersJSON != "" {
				err := json.Unmarshal([]byte(filtersJSON), &filters)
				if err != nil {
					return fmt.Errorf("failed to parse filters JSON: %w", err)
				}
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				results, err := org.Analytics().RunReport(ctx, args[0], filters)
				if err != nil {
					return err
				}

				return renderOutput(results, renderReportResults)
			})
		},
	}

	cmd.Flags().StringVar(&filtersJSON, "filters", "", "report metadata overrides as a JSON object")

	return cmd
}

// renderReportResults prints the run summary and the raw fact map. The fact
// map shape varies per report format, so it is shown as indented JSON.
func renderReportResults(results *sfapi.ReportResults) error {
	fmt.Printf("All data: %t  Detail rows: %t\n", results.AllData, results.HasDetailRows)

	if len(results.FactMap) == 0 {
		return nil
	}

	var factMap interface{}

	err := json.Unmarshal(results.FactMap, &factMap)
	if err != nil {
		return fmt.Errorf("failed to parse report fact map: %w", err)
	}

	pretty, err := json.MarshalIndent(factMap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format report fact map: %w", err)
	}

	fmt.Println(string(pretty))

	return nil
}
