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

// NewSObjectCommand creates the sobject command group.
func NewSObjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sobject",
		Aliases: []string{"record", "so"},
		Short:   "Work with SObject records",
		Long:    "Create, read, update, and delete records, and inspect object metadata",
	}

	cmd.AddCommand(newSObjectGetCommand())
	cmd.AddCommand(newSObjectCreateCommand())
	cmd.AddCommand(newSObjectUpdateCommand())
	cmd.AddCommand(newSObjectDeleteCommand())
	cmd.AddCommand(newSObjectDescribeCommand())

	return cmd
}

func newSObjectGetCommand() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "get OBJECT RECORD_ID",
		Short: "Get a record",
		Long:  "Fetch a record by ID, optionally restricted to specific fields",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				record, err := org.SObjects().Get(ctx, args[0], args[1], fields...)
				if err != nil {
					return err
				}

				return renderOutput(record, renderRecordDetail)
			})
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", nil, "comma-separated fields to return")

	return cmd
}

func newSObjectCreateCommand() *cobra.Command {
	var (
		dataFlag string
		fileFlag string
	)

	cmd := &cobra.Command{
		Use:   "create OBJECT",
		Short: "Create a record",
		Long:  "Create a record from inline JSON (--data) or a JSON file (--file)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := resolveRecordInput(dataFlag, fileFlag)
			if err != nil {
				return err
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := org.SObjects().Create(ctx, args[0], record)
				if err != nil {
					return err
				}

				return renderOutput(result, func(result *sfapi.SaveResult) error {
					fmt.Printf("Created %s %s\n", args[0], result.ID)

					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&dataFlag, "data", "d", "", "record as a JSON object")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "path to a JSON file containing the record")

	return cmd
}

func newSObjectUpdateCommand() *cobra.Command {
	var (
		dataFlag string
		fileFlag string
	)

	cmd := &cobra.Command{
		Use:   "update OBJECT RECORD_ID",
		Short: "Update a record",
		Long:  "Apply a partial update from inline JSON (--data) or a JSON file (--file)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := resolveRecordInput(dataFlag, fileFlag)
			if err != nil {
				return err
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				err := org.SObjects().Update(ctx, args[0], args[1], record)
				if err != nil {
					return err
				}

				fmt.Printf("Updated %s %s\n", args[0], args[1])

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dataFlag, "data", "d", "", "changed fields as a JSON object")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "path to a JSON file containing the changed fields")

	return cmd
}

func newSObjectDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete OBJECT RECORD_ID",
		Short: "Delete a record",
		Long:  "Delete a record by ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				err := org.SObjects().Delete(ctx, args[0], args[1])
				if err != nil {
					return err
				}

				fmt.Printf("Deleted %s %s\n", args[0], args[1])

				return nil
			})
		},
	}
}

func newSObjectDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe OBJECT",
		Short: "Describe an object",
		Long:  "Display object metadata including its field definitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				describe, err := org.SObjects().Describe(ctx, args[0])
				if err != nil {
					return err
				}

				return renderOutput(describe, renderObjectDescribe)
			})
		},
	}
}

func renderObjectDescribe(describe *sfapi.ObjectDescribe) error {
	fmt.Printf("%s (%s)\n", describe.Name, describe.Label)
	fmt.Printf("Key prefix: %s  Custom: %t  Queryable: %t\n\n",
		valueOrNA(describe.KeyPrefix), describe.Custom, describe.Queryable)

	if len(describe.Fields) == 0 {
		_, _ = os.Stdout.WriteString("No fields returned\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Label", "Type", "Length", "Nillable", "Custom")

	for _, field := range describe.Fields {
		_ = table.Append(field.Name, field.Label, field.Type,
			strconv.Itoa(field.Length), strconv.FormatBool(field.Nillable), strconv.FormatBool(field.Custom))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
