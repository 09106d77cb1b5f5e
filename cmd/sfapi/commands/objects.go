package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewObjectsCommand creates the objects command.
func NewObjectsCommand() *cobra.Command {
	var customOnly bool

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List org objects",
		Long:  "List the objects available in the org (global describe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				describe, err := org.SObjects().DescribeGlobal(ctx)
				if err != nil {
					return err
				}

				objects := describe.SObjects
				if customOnly {
					objects = filterCustomObjects(objects)
				}

				return renderOutput(objects, renderGlobalObjectsTable)
			})
		},
	}

	cmd.Flags().BoolVar(&customOnly, "custom", false, "only list custom objects")

	return cmd
}

func filterCustomObjects(objects []sfapi.GlobalSObject) []sfapi.GlobalSObject {
	var custom []sfapi.GlobalSObject

	for _, object := range objects {
		if object.Custom {
			custom = append(custom, object)
		}
	}

	return custom
}

func renderGlobalObjectsTable(objects []sfapi.GlobalSObject) error {
	if len(objects) == 0 {
		_, _ = os.Stdout.WriteString("No objects found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Label", "Key Prefix", "Custom", "Queryable")

	for _, object := range objects {
		_ = table.Append(object.Name, object.Label, valueOrNA(object.KeyPrefix),
			strconv.FormatBool(object.Custom), strconv.FormatBool(object.Queryable))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
