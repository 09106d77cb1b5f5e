package client

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedBulkOperation = errors.New("unsupported bulk operation")
)

// BulkClient implements sfapi.BulkClient: it drives a Bulk API 2.0 ingest
// job through create, CSV upload, close, poll, and result collection.
type BulkClient struct {
	httpClient *internalhttp.Client
	basePath   string
	logger     sfapi.Logger
}

// NewBulkClient creates a new bulk client.
func NewBulkClient(httpClient *internalhttp.Client, basePath string, logger sfapi.Logger) *BulkClient {
	return &BulkClient{
		httpClient: httpClient,
		basePath:   basePath,
		logger:     logger,
	}
}

// bulkJobRequest is the job creation payload.
type bulkJobRequest struct {
	Object              string              `json:"object"`
	Operation           sfapi.BulkOperation `json:"operation"`
	ExternalIDFieldName string              `json:"externalIdFieldName,omitempty"`
}

// Run implements sfapi.BulkClient.Run.
func (c *BulkClient) Run(ctx context.Context, objectType string, operation sfapi.BulkOperation,
	records []map[string]interface{}, opts *sfapi.BulkOptions,
) (*sfapi.BulkJobResult, error) {
	if objectType == "" {
		return nil, ErrObjectTypeRequired
	}

	if len(records) == 0 {
		return nil, sfapi.ErrNoRecords
	}

	options := normalizeBulkOptions(opts)

	err := validateBulkOperation(operation, options)
	if err != nil {
		return nil, err
	}

	job, err := c.createJob(ctx, objectType, operation, options)
	if err != nil {
		return nil, err
	}

	batches := batchRecords(records, options.BatchSize)
	c.logInfo("bulk job created", map[string]interface{}{
		"job_id":    job.ID,
		"object":    objectType,
		"operation": string(operation),
		"records":   len(records),
		"batches":   len(batches),
	})

	err = c.uploadBatches(ctx, job.ID, batches)
	if err != nil {
		c.abortBestEffort(ctx, job.ID)

		return nil, err
	}

	err = c.closeJob(ctx, job.ID)
	if err != nil {
		c.abortBestEffort(ctx, job.ID)

		return nil, err
	}

	final, err := c.waitForCompletion(ctx, job.ID, options)
	if err != nil {
		return nil, err
	}

	if final.State == sfapi.BulkJobStateComplete {
		recordResults, err := c.collectResults(ctx, job.ID, records)
		if err != nil {
			return nil, err
		}

		return &sfapi.BulkJobResult{
			JobID:            job.ID,
			State:            final.State,
			RecordsProcessed: final.NumberRecordsProcessed,
			RecordsFailed:    final.NumberRecordsFailed,
			Records:          recordResults,
		}, nil
	}

	// The poller only hands back terminal states, so anything else is
	// Failed or Aborted; the remote stateMessage says why.
	reason := sfapi.BulkFailureFailed
	if final.State == sfapi.BulkJobStateAborted {
		reason = sfapi.BulkFailureAborted
	}

	return nil, &sfapi.BulkOperationError{
		Reason:  reason,
		JobID:   job.ID,
		Message: final.StateMessage,
	}
}

// Insert implements sfapi.BulkClient.Insert.
func (c *BulkClient) Insert(ctx context.Context, objectType string, records []map[string]interface{}) (*sfapi.BulkJobResult, error) {
	return c.Run(ctx, objectType, sfapi.BulkOperationInsert, records, nil)
}

// GetJob implements sfapi.BulkClient.GetJob.
func (c *BulkClient) GetJob(ctx context.Context, jobID string) (*sfapi.BulkJobInfo, error) {
	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.jobPath(jobID),
		Operation: "bulk_get_job",
	})
	if err != nil {
		return nil, fmt.Errorf("getting bulk job %s: %w", jobID, err)
	}

	var job sfapi.BulkJobInfo

	err = json.Unmarshal(resp.Body, &job)
	if err != nil {
		return nil, fmt.Errorf("parsing bulk job: %w", err)
	}

	return &job, nil
}

// Abort implements sfapi.BulkClient.Abort.
func (c *BulkClient) Abort(ctx context.Context, jobID string) error {
	_, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "PATCH",
		Path:      c.jobPath(jobID),
		Body:      map[string]string{"state": string(sfapi.BulkJobStateAborted)},
		Operation: "bulk_abort",
	})
	if err != nil {
		return fmt.Errorf("aborting bulk job %s: %w", jobID, err)
	}

	return nil
}

func (c *BulkClient) createJob(ctx context.Context, objectType string, operation sfapi.BulkOperation,
	options *sfapi.BulkOptions,
) (*sfapi.BulkJobInfo, error) {
	request := bulkJobRequest{
		Object:    objectType,
		Operation: operation,
	}
	if operation == sfapi.BulkOperationUpsert {
		request.ExternalIDFieldName = options.ExternalIDField
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "POST",
		Path:      c.basePath + "/jobs/ingest",
		Body:      request,
		Operation: "bulk_create_job",
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk job: %w", err)
	}

	var job sfapi.BulkJobInfo

	err = json.Unmarshal(resp.Body, &job)
	if err != nil {
		return nil, fmt.Errorf("parsing bulk job: %w", err)
	}

	return &job, nil
}

func (c *BulkClient) uploadBatches(ctx context.Context, jobID string, batches [][]map[string]interface{}) error {
	for i, batch := range batches {
		csvData, err := recordsToCSV(batch)
		if err != nil {
			return fmt.Errorf("serializing batch %d of %d: %w", i+1, len(batches), err)
		}

		_, err = c.httpClient.Do(ctx, &internalhttp.Request{
			Method:      "PUT",
			Path:        c.jobPath(jobID) + "/batches",
			RawBody:     csvData,
			ContentType: "text/csv",
			Operation:   "bulk_upload_batch",
		})
		if err != nil {
			return fmt.Errorf("uploading batch %d of %d: %w", i+1, len(batches), err)
		}
	}

	return nil
}

func (c *BulkClient) closeJob(ctx context.Context, jobID string) error {
	_, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "PATCH",
		Path:      c.jobPath(jobID),
		Body:      map[string]string{"state": string(sfapi.BulkJobStateUploadComplete)},
		Operation: "bulk_close_job",
	})
	if err != nil {
		return fmt.Errorf("closing bulk job %s: %w", jobID, err)
	}

	return nil
}

// waitForCompletion polls the job until it reaches a terminal state. The
// first check runs immediately; the ceiling counts status checks, not wall
// clock. A job that outlives the ceiling is left running remotely.
func (c *BulkClient) waitForCompletion(ctx context.Context, jobID string, options *sfapi.BulkOptions) (*sfapi.BulkJobInfo, error) {
	ticker := time.NewTicker(options.PollInterval)
	defer ticker.Stop()

	for poll := 0; poll < options.MaxPolls; poll++ {
		if poll > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("waiting for bulk job %s: %w", jobID, ctx.Err())
			case <-ticker.C:
			}
		}

		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if job.State.Terminal() {
			return job, nil
		}
	}

	return nil, &sfapi.BulkOperationError{
		Reason:  sfapi.BulkFailureTimeout,
		JobID:   jobID,
		Message: fmt.Sprintf("no terminal state after %d status checks", options.MaxPolls),
	}
}

// collectResults fetches the per-record result CSVs and aligns them with the
// submitted records.
func (c *BulkClient) collectResults(ctx context.Context, jobID string, records []map[string]interface{}) ([]sfapi.BulkRecordResult, error) {
	successes, err := c.fetchResultRows(ctx, jobID, "successfulResults")
	if err != nil {
		return nil, err
	}

	failures, err := c.fetchResultRows(ctx, jobID, "failedResults")
	if err != nil {
		return nil, err
	}

	return matchResults(records, successes, failures), nil
}

func (c *BulkClient) fetchResultRows(ctx context.Context, jobID, segment string) ([]map[string]string, error) {
	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.jobPath(jobID) + "/" + segment,
		Operation: "bulk_results",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s for bulk job %s: %w", segment, jobID, err)
	}

	rows, err := parseResultCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s for bulk job %s: %w", segment, jobID, err)
	}

	return rows, nil
}

// abortBestEffort tries to abort a job whose upload or close failed. The
// attempt survives cancellation of the caller's context; failures are only
// logged.
func (c *BulkClient) abortBestEffort(ctx context.Context, jobID string) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShortHTTPTimeout)
	defer cancel()

	err := c.Abort(abortCtx, jobID)
	if err != nil {
		c.logWarn("failed to abort bulk job", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
}

func (c *BulkClient) jobPath(jobID string) string {
	return c.basePath + "/jobs/ingest/" + jobID
}

func (c *BulkClient) logInfo(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, fields)
	}
}

func (c *BulkClient) logWarn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}

func normalizeBulkOptions(opts *sfapi.BulkOptions) *sfapi.BulkOptions {
	options := sfapi.BulkOptions{}
	if opts != nil {
		options = *opts
	}

	if options.BatchSize <= 0 {
		options.BatchSize = constants.DefaultBatchSize
	}

	if options.PollInterval <= 0 {
		options.PollInterval = constants.DefaultPollInterval
	}

	if options.MaxPolls <= 0 {
		options.MaxPolls = constants.DefaultMaxPolls
	}

	return &options
}

func validateBulkOperation(operation sfapi.BulkOperation, options *sfapi.BulkOptions) error {
	switch operation {
	case sfapi.BulkOperationInsert, sfapi.BulkOperationUpdate, sfapi.BulkOperationDelete:
		return nil
	case sfapi.BulkOperationUpsert:
		if options.ExternalIDField == "" {
			return sfapi.ErrExternalIDFieldRequired
		}

		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedBulkOperation, operation)
}

// batchRecords splits records into chunks of at most size records each.
func batchRecords(records []map[string]interface{}, size int) [][]map[string]interface{} {
	batches := make([][]map[string]interface{}, 0, (len(records)+size-1)/size)

	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end])
	}

	return batches
}

// recordsToCSV serializes one batch. The header is the sorted union of the
// batch's field names; records missing a field get an empty cell.
func recordsToCSV(records []map[string]interface{}) ([]byte, error) {
	header := unionHeader(records)

	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)

	err := writer.Write(header)
	if err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	row := make([]string, len(header))

	for _, record := range records {
		for i, field := range header {
			row[i] = csvValue(record[field])
		}

		err = writer.Write(row)
		if err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	writer.Flush()

	err = writer.Error()
	if err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}

	return buf.Bytes(), nil
}

func unionHeader(records []map[string]interface{}) []string {
	seen := make(map[string]struct{})

	var header []string

	for _, record := range records {
		for field := range record {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}

				header = append(header, field)
			}
		}
	}

	sort.Strings(header)

	return header
}

// csvValue renders one field. Nil becomes an empty cell; maps and slices are
// JSON-encoded so round-tripping through the result CSV stays lossless.
func csvValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(encoded)
	}
}

// parseResultCSV reads a result document into rows keyed by column name.
func parseResultCSV(body []byte) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading result CSV: %w", err)
	}

	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)

	for _, row := range rows[1:] {
		entry := make(map[string]string, len(header))

		for i, name := range header {
			if i < len(row) {
				entry[name] = row[i]
			}
		}

		out = append(out, entry)
	}

	return out, nil
}

// matchResults aligns result rows with the submitted records. Result rows
// echo the uploaded fields back, so each row is matched to the first
// still-unclaimed record with the same field values; duplicates resolve in
// input order. Rows that match nothing fill the remaining slots in observed
// order.
func matchResults(records []map[string]interface{}, successes, failures []map[string]string) []sfapi.BulkRecordResult {
	queues := make(map[string][]int, len(records))
	for i, record := range records {
		sig := recordSignature(record)
		queues[sig] = append(queues[sig], i)
	}

	results := make([]sfapi.BulkRecordResult, len(records))
	assigned := make([]bool, len(records))

	var orphans []sfapi.BulkRecordResult

	assign := func(sig string, result sfapi.BulkRecordResult) {
		queue := queues[sig]
		if len(queue) == 0 {
			orphans = append(orphans, result)

			return
		}

		idx := queue[0]
		queues[sig] = queue[1:]

		result.Index = idx
		results[idx] = result
		assigned[idx] = true
	}

	for _, row := range successes {
		assign(rowSignature(row), sfapi.BulkRecordResult{
			Success:   true,
			CreatedID: row["sf__Id"],
		})
	}

	for _, row := range failures {
		assign(rowSignature(row), sfapi.BulkRecordResult{
			Success: false,
			Error:   row["sf__Error"],
		})
	}

	next := 0

	for _, orphan := range orphans {
		for next < len(records) && assigned[next] {
			next++
		}

		if next >= len(records) {
			break
		}

		orphan.Index = next
		results[next] = orphan
		assigned[next] = true
	}

	for i := range results {
		if !assigned[i] {
			results[i] = sfapi.BulkRecordResult{
				Index:   i,
				Success: false,
				Error:   "no result returned for record",
			}
		}
	}

	return results
}

// recordSignature fingerprints a record by its non-empty field values. Empty
// values are skipped on both sides so batch headers padding absent fields
// with empty cells do not break the match.
func recordSignature(record map[string]interface{}) string {
	parts := make([]string, 0, len(record))

	for field, value := range record {
		rendered := csvValue(value)
		if rendered == "" {
			continue
		}

		parts = append(parts, field+"="+rendered)
	}

	sort.Strings(parts)

	return strings.Join(parts, "\x1f")
}

func rowSignature(row map[string]string) string {
	parts := make([]string, 0, len(row))

	for field, value := range row {
		if strings.HasPrefix(field, "sf__") || value == "" {
			continue
		}

		parts = append(parts, field+"="+value)
	}

	sort.Strings(parts)

	return strings.Join(parts, "\x1f")
}
