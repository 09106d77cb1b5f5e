package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewBulkCommand creates the bulk command group.
func NewBulkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Work with Bulk API 2.0 ingest jobs",
		Long:  "Load records through Bulk API 2.0 ingest jobs and inspect running jobs",
	}

	cmd.AddCommand(newBulkRunCommand())
	cmd.AddCommand(newBulkInsertCommand())
	cmd.AddCommand(newBulkStatusCommand())
	cmd.AddCommand(newBulkAbortCommand())

	return cmd
}

func newBulkInsertCommand() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "insert OBJECT",
		Short: "Insert records in bulk",
		Long:  "Insert records from a CSV or JSON file with default job settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecordsFile(filePath)
			if err != nil {
				return err
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := org.Bulk().Insert(ctx, args[0], records)
				if err != nil {
					return err
				}

				return outputBulkResult(result)
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to a CSV or JSON records file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newBulkRunCommand() *cobra.Command {
	var (
		filePath     string
		operation    string
		externalID   string
		batchSize    int
		pollInterval time.Duration
		maxPolls     int
	)

	cmd := &cobra.Command{
		Use:   "run OBJECT",
		Short: "Run a bulk ingest job",
		Long: `Load records from a CSV or JSON file through a Bulk API 2.0 ingest job.

The command uploads the records, waits for the job to reach a terminal
state, and reports per-record results in input order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecordsFile(filePath)
			if err != nil {
				return err
			}

			opts := &sfapi.BulkOptions{
				BatchSize:       batchSize,
				PollInterval:    pollInterval,
				MaxPolls:        maxPolls,
				ExternalIDField: externalID,
			}

			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				result, err := org.Bulk().Run(ctx, args[0], sfapi.BulkOperation(operation), records, opts)
				if err != nil {
					return err
				}

				return outputBulkResult(result)
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to a CSV or JSON records file (required)")
	cmd.Flags().StringVar(&operation, "operation", string(sfapi.BulkOperationInsert), "ingest operation (insert, update, upsert, delete)")
	cmd.Flags().StringVar(&externalID, "external-id", "", "external ID field for upsert jobs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per uploaded batch (default 200)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "delay between job status checks (default 2s)")
	cmd.Flags().IntVar(&maxPolls, "max-polls", 0, "maximum job status checks (default 150)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func outputBulkResult(result *sfapi.BulkJobResult) error {
	return renderOutput(result, func(result *sfapi.BulkJobResult) error {
		fmt.Printf("Job %s finished in state %s: %d processed, %d failed\n",
			result.JobID, result.State, result.RecordsProcessed, result.RecordsFailed)

		failures := failedRecords(result.Records)
		if len(failures) == 0 {
			return nil
		}

		fmt.Println()

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Index", "Error")

		for _, record := range failures {
			_ = table.Append(strconv.Itoa(record.Index), record.Error)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	})
}

func failedRecords(records []sfapi.BulkRecordResult) []sfapi.BulkRecordResult {
	var failed []sfapi.BulkRecordResult

	for _, record := range records {
		if !record.Success {
			failed = append(failed, record)
		}
	}

	return failed
}

func newBulkStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show bulk job status",
		Long:  "Fetch the current state of a bulk ingest job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				job, err := org.Bulk().GetJob(ctx, args[0])
				if err != nil {
					return err
				}

				return renderOutput(job, renderBulkJobTable)
			})
		},
	}
}

func renderBulkJobTable(job *sfapi.BulkJobInfo) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	_ = table.Append("ID", job.ID)
	_ = table.Append("Object", job.Object)
	_ = table.Append("Operation", string(job.Operation))
	_ = table.Append("State", string(job.State))
	_ = table.Append("Records Processed", strconv.Itoa(job.NumberRecordsProcessed))
	_ = table.Append("Records Failed", strconv.Itoa(job.NumberRecordsFailed))

	if job.StateMessage != "" {
		_ = table.Append("State Message", job.StateMessage)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newBulkAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abort JOB_ID",
		Short: "Abort a bulk job",
		Long:  "Ask Salesforce to abort a queued or running bulk ingest job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(func(ctx context.Context, org sfapi.OrgClient) error {
				err := org.Bulk().Abort(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Printf("Aborted job %s\n", args[0])

				return nil
			})
		},
	}
}
