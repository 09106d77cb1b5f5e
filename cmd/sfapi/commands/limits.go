package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewLimitsCommand creates the limits command.
func NewLimitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show org limits",
		Long:  "Display the org's limits with current consumption",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				limits, err := org.Limits().Get(ctx)
				if err != nil {
					return err
				}

				return renderOutput(limits, renderLimitsTable)
			})
		},
	}
}

func renderLimitsTable(limits sfapi.Limits) error {
	if len(limits) == 0 {
		_, _ = os.Stdout.WriteString("No limits returned\n")

		return nil
	}

	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}

	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Limit", "Max", "Remaining", "Used")

	for _, name := range names {
		limit := limits[name]
		_ = table.Append(name, strconv.Itoa(limit.Max), strconv.Itoa(limit.Remaining), percentUsed(limit))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func percentUsed(limit sfapi.Limit) string {
	if limit.Max <= 0 {
		return NotAvailable
	}

	used := limit.Max - limit.Remaining

	return fmt.Sprintf("%d%%", used*100/limit.Max)
}
