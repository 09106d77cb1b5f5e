package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// fakeBulkServer plays the Bulk API 2.0 side of an ingest job: create,
// batch upload, close, polling, and result documents.
type fakeBulkServer struct {
	mu             sync.Mutex
	jobID          string
	state          sfapi.BulkJobState
	stateMessage   string
	createRequest  map[string]interface{}
	batches        []string
	polls          int
	pollsUntilDone int
	doneState      sfapi.BulkJobState
	processed      int
	failed         int
	successCSV     string
	failedCSV      string
	abortCalls     int
	failUpload     bool
}

func newFakeBulkServer(jobID string) *fakeBulkServer {
	return &fakeBulkServer{jobID: jobID, doneState: sfapi.BulkJobStateComplete}
}

func (f *fakeBulkServer) handler() http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := request.URL.Path

		switch {
		case request.Method == http.MethodPost && strings.HasSuffix(path, "/jobs/ingest"):
			var create map[string]interface{}

			_ = json.NewDecoder(request.Body).Decode(&create)
			f.createRequest = create
			f.state = sfapi.BulkJobStateOpen
			f.writeJob(writer)
		case request.Method == http.MethodPut && strings.HasSuffix(path, "/batches"):
			if f.failUpload {
				writer.WriteHeader(http.StatusBadRequest)
				_, _ = writer.Write([]byte(`[{"message": "InvalidBatch : field list mismatch", "errorCode": "INVALIDJOB"}]`))

				return
			}

			body, _ := io.ReadAll(request.Body)
			f.batches = append(f.batches, string(body))
			writer.WriteHeader(http.StatusCreated)
		case request.Method == http.MethodPatch:
			var change map[string]string

			_ = json.NewDecoder(request.Body).Decode(&change)

			switch sfapi.BulkJobState(change["state"]) {
			case sfapi.BulkJobStateAborted:
				f.abortCalls++
				f.state = sfapi.BulkJobStateAborted
			case sfapi.BulkJobStateUploadComplete:
				f.state = sfapi.BulkJobStateUploadComplete
			case sfapi.BulkJobStateCreated, sfapi.BulkJobStateOpen,
				sfapi.BulkJobStateInProgress, sfapi.BulkJobStateComplete,
				sfapi.BulkJobStateFailed:
			}

			f.writeJob(writer)
		case request.Method == http.MethodGet && strings.HasSuffix(path, "/successfulResults"):
			writer.Header().Set("Content-Type", "text/csv")
			_, _ = writer.Write([]byte(f.successCSV))
		case request.Method == http.MethodGet && strings.HasSuffix(path, "/failedResults"):
			writer.Header().Set("Content-Type", "text/csv")
			_, _ = writer.Write([]byte(f.failedCSV))
		case request.Method == http.MethodGet:
			f.polls++
			if f.pollsUntilDone > 0 && f.polls >= f.pollsUntilDone {
				f.state = f.doneState
			}

			f.writeJob(writer)
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeBulkServer) writeJob(writer http.ResponseWriter) {
	info := sfapi.BulkJobInfo{
		ID:        f.jobID,
		Object:    "Account",
		Operation: sfapi.BulkOperationInsert,
		State:     f.state,
	}
	if f.state.Terminal() {
		info.StateMessage = f.stateMessage
		info.NumberRecordsProcessed = f.processed
		info.NumberRecordsFailed = f.failed
	}

	_ = json.NewEncoder(writer).Encode(info)
}

func (f *fakeBulkServer) uploadedBatches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.batches...)
}

func (f *fakeBulkServer) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.polls
}

func (f *fakeBulkServer) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.abortCalls
}

func (f *fakeBulkServer) createPayload() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.createRequest
}

func newBulkClientForTest(serverURL string) *BulkClient {
	return NewBulkClient(newTestDispatcher(serverURL), testBasePath(), nil)
}

func TestBulkClient_Insert(t *testing.T) {
	t.Parallel()

	fake := newFakeBulkServer("750xx001")
	fake.pollsUntilDone = 1
	fake.processed = 2
	fake.successCSV = "sf__Id,sf__Created,Name\n" +
		"001xx0000000001,true,Acme\n" +
		"001xx0000000002,true,Globex\n"
	fake.failedCSV = "sf__Id,sf__Error,Name\n"

	server := httptest.NewServer(fake.handler())
	defer server.Close()

	bulk := newBulkClientForTest(server.URL)

	result, err := bulk.Insert(context.Background(), "Account", []map[string]interface{}{
		{"Name": "Acme"},
		{"Name": "Globex"},
	})
	require.NoError(t, err)

	assert.Equal(t, "750xx001", result.JobID)
	assert.Equal(t, sfapi.BulkJobStateComplete, result.State)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, 0, result.RecordsFailed)

	payload := fake.createPayload()
	assert.Equal(t, "Account", payload["object"])
	assert.Equal(t, "insert", payload["operation"])
	assert.NotContains(t, payload, "externalIdFieldName")

	batches := fake.uploadedBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, "Name\nAcme\nGlobex\n", batches[0])

	require.Len(t, result.Records, 2)
	assert.Equal(t, sfapi.BulkRecordResult{Index: 0, Success: true, CreatedID: "001xx0000000001"}, result.Records[0])
	assert.Equal(t, sfapi.BulkRecordResult{Index: 1, Success: true, CreatedID: "001xx0000000002"}, result.Records[1])

	assert.Equal(t, 1, fake.pollCount())
	assert.Zero(t, fake.abortCount())
}

func TestBulkClient_Run(t *testing.T) {
	t.Parallel()
	t.Run("splits large loads into batches of at most the batch size", func(t *testing.T) {
		t.Parallel()

		const recordCount = 450

		records := make([]map[string]interface{}, 0, recordCount)
		for i := 0; i < recordCount; i++ {
			records = append(records, map[string]interface{}{"Name": fmt.Sprintf("Account %03d", i)})
		}

		// Result rows arrive in reverse order; alignment must come from
		// the echoed field values, not response position.
		var successCSV strings.Builder

		successCSV.WriteString("sf__Id,sf__Created,Name\n")

		for i := recordCount - 1; i >= 0; i-- {
			fmt.Fprintf(&successCSV, "001xx%04d,true,Account %03d\n", i, i)
		}

		fake := newFakeBulkServer("750xx450")
		fake.pollsUntilDone = 1
		fake.processed = recordCount
		fake.successCSV = successCSV.String()
		fake.failedCSV = "sf__Id,sf__Error,Name\n"

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		result, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert, records, nil)
		require.NoError(t, err)

		batches := fake.uploadedBatches()
		require.Len(t, batches, 3)
		assert.Equal(t, 201, strings.Count(batches[0], "\n"))
		assert.Equal(t, 201, strings.Count(batches[1], "\n"))
		assert.Equal(t, 51, strings.Count(batches[2], "\n"))

		require.Len(t, result.Records, recordCount)

		for i, record := range result.Records {
			assert.True(t, record.Success)
			assert.Equal(t, i, record.Index)
			assert.Equal(t, fmt.Sprintf("001xx%04d", i), record.CreatedID)
		}
	})

	t.Run("matches shuffled results back to input order", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx002")
		fake.pollsUntilDone = 1
		fake.processed = 4
		fake.failed = 2
		fake.successCSV = "Name,Site,sf__Id,sf__Created\n" +
			"Globex,,001xx0000000002,true\n" +
			"Acme,HQ,001xx0000000001,true\n"
		fake.failedCSV = "sf__Id,sf__Error,Name,Site\n" +
			",STORAGE_LIMIT_EXCEEDED:storage limit exceeded:--,Initech,\n" +
			",DUPLICATE_VALUE:duplicate value found:--,Acme,HQ\n"

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		result, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert, []map[string]interface{}{
			{"Name": "Acme", "Site": "HQ"},
			{"Name": "Globex"},
			{"Name": "Acme", "Site": "HQ"},
			{"Name": "Initech"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 4)

		assert.True(t, result.Records[0].Success)
		assert.Equal(t, "001xx0000000001", result.Records[0].CreatedID)
		assert.True(t, result.Records[1].Success)
		assert.Equal(t, "001xx0000000002", result.Records[1].CreatedID)
		assert.False(t, result.Records[2].Success)
		assert.Contains(t, result.Records[2].Error, "DUPLICATE_VALUE")
		assert.False(t, result.Records[3].Success)
		assert.Contains(t, result.Records[3].Error, "STORAGE_LIMIT_EXCEEDED")

		assert.Equal(t, 4, result.RecordsProcessed)
		assert.Equal(t, 2, result.RecordsFailed)
	})

	t.Run("polls until the job reaches a terminal state", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx007")
		fake.pollsUntilDone = 3
		fake.processed = 1
		fake.successCSV = "sf__Id,sf__Created,Name\n001xx0000000008,true,Acme\n"
		fake.failedCSV = "sf__Id,sf__Error,Name\n"

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		result, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert,
			[]map[string]interface{}{{"Name": "Acme"}},
			&sfapi.BulkOptions{PollInterval: 5 * time.Millisecond, MaxPolls: 10})
		require.NoError(t, err)

		assert.Equal(t, sfapi.BulkJobStateComplete, result.State)
		assert.Equal(t, 3, fake.pollCount())
	})

	t.Run("surfaces job failure with the remote state message", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx003")
		fake.pollsUntilDone = 1
		fake.doneState = sfapi.BulkJobStateFailed
		fake.stateMessage = "InvalidBatch : records rejected"

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		_, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert,
			[]map[string]interface{}{{"Name": "Acme"}}, nil)
		require.Error(t, err)

		bulkErr := &sfapi.BulkOperationError{}
		require.ErrorAs(t, err, &bulkErr)
		assert.Equal(t, sfapi.BulkFailureFailed, bulkErr.Reason)
		assert.Equal(t, "750xx003", bulkErr.JobID)
		assert.Equal(t, "InvalidBatch : records rejected", bulkErr.Message)

		assert.Zero(t, fake.abortCount())
	})

	t.Run("aborts the job when an upload fails", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx004")
		fake.failUpload = true

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		_, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert,
			[]map[string]interface{}{{"Name": "Acme"}}, nil)
		require.Error(t, err)

		validationErr := &sfapi.ValidationError{}
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, 1, fake.abortCount())
	})

	t.Run("times out after the configured number of status checks", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx005")

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		_, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert,
			[]map[string]interface{}{{"Name": "Acme"}},
			&sfapi.BulkOptions{PollInterval: 10 * time.Millisecond, MaxPolls: 3})
		require.Error(t, err)

		bulkErr := &sfapi.BulkOperationError{}
		require.ErrorAs(t, err, &bulkErr)
		assert.Equal(t, sfapi.BulkFailureTimeout, bulkErr.Reason)
		assert.Contains(t, bulkErr.Message, "3 status checks")

		// A timed-out job stays running remotely.
		assert.Equal(t, 3, fake.pollCount())
		assert.Zero(t, fake.abortCount())
	})

	t.Run("requires an external id field for upsert", func(t *testing.T) {
		t.Parallel()

		bulk := newBulkClientForTest("http://unused")

		_, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationUpsert,
			[]map[string]interface{}{{"Name": "Acme"}}, nil)
		require.ErrorIs(t, err, sfapi.ErrExternalIDFieldRequired)
	})

	t.Run("carries the external id field on job creation", func(t *testing.T) {
		t.Parallel()

		fake := newFakeBulkServer("750xx006")
		fake.pollsUntilDone = 1
		fake.processed = 1
		fake.successCSV = "sf__Id,sf__Created,External_Id__c\n001xx0000000007,false,EXT-1\n"
		fake.failedCSV = ""

		server := httptest.NewServer(fake.handler())
		defer server.Close()

		bulk := newBulkClientForTest(server.URL)

		result, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperationUpsert,
			[]map[string]interface{}{{"External_Id__c": "EXT-1"}},
			&sfapi.BulkOptions{ExternalIDField: "External_Id__c"})
		require.NoError(t, err)

		payload := fake.createPayload()
		assert.Equal(t, "upsert", payload["operation"])
		assert.Equal(t, "External_Id__c", payload["externalIdFieldName"])

		require.Len(t, result.Records, 1)
		assert.True(t, result.Records[0].Success)
	})

	t.Run("rejects unsupported operations", func(t *testing.T) {
		t.Parallel()

		bulk := newBulkClientForTest("http://unused")

		_, err := bulk.Run(context.Background(), "Account", sfapi.BulkOperation("merge"),
			[]map[string]interface{}{{"Name": "Acme"}}, nil)
		require.ErrorIs(t, err, ErrUnsupportedBulkOperation)
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		bulk := newBulkClientForTest("http://unused")

		_, err := bulk.Run(context.Background(), "", sfapi.BulkOperationInsert,
			[]map[string]interface{}{{"Name": "Acme"}}, nil)
		require.ErrorIs(t, err, ErrObjectTypeRequired)

		_, err = bulk.Run(context.Background(), "Account", sfapi.BulkOperationInsert, nil, nil)
		require.ErrorIs(t, err, sfapi.ErrNoRecords)
	})
}

func TestBulkClient_GetJob(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, testBasePath()+"/jobs/ingest/750xx010", request.URL.Path)

		_ = json.NewEncoder(writer).Encode(sfapi.BulkJobInfo{
			ID:                     "750xx010",
			Object:                 "Contact",
			Operation:              sfapi.BulkOperationUpdate,
			State:                  sfapi.BulkJobStateInProgress,
			NumberRecordsProcessed: 120,
		})
	}))
	defer server.Close()

	bulk := newBulkClientForTest(server.URL)

	job, err := bulk.GetJob(context.Background(), "750xx010")
	require.NoError(t, err)
	assert.Equal(t, sfapi.BulkJobStateInProgress, job.State)
	assert.Equal(t, 120, job.NumberRecordsProcessed)
}

func TestBulkClient_Abort(t *testing.T) {
	t.Parallel()

	fake := newFakeBulkServer("750xx011")

	server := httptest.NewServer(fake.handler())
	defer server.Close()

	bulk := newBulkClientForTest(server.URL)

	err := bulk.Abort(context.Background(), "750xx011")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.abortCount())
}

func TestBatchRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		records   int
		size      int
		wantSizes []int
	}{
		{name: "exact multiple", records: 400, size: 200, wantSizes: []int{200, 200}},
		{name: "remainder batch", records: 450, size: 200, wantSizes: []int{200, 200, 50}},
		{name: "single partial batch", records: 5, size: 200, wantSizes: []int{5}},
		{name: "one record per batch", records: 3, size: 1, wantSizes: []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records := make([]map[string]interface{}, tt.records)
			for i := range records {
				records[i] = map[string]interface{}{"N": i}
			}

			batches := batchRecords(records, tt.size)
			require.Len(t, batches, len(tt.wantSizes))

			for i, want := range tt.wantSizes {
				assert.Len(t, batches[i], want)
			}
		})
	}
}

func TestRecordsToCSV(t *testing.T) {
	t.Parallel()
	t.Run("header is the sorted union of fields", func(t *testing.T) {
		t.Parallel()

		data, err := recordsToCSV([]map[string]interface{}{
			{"Name": "Acme"},
			{"City": "Paris"},
		})
		require.NoError(t, err)
		assert.Equal(t, "City,Name\n,Acme\nParis,\n", string(data))
	})

	t.Run("quotes values containing separators", func(t *testing.T) {
		t.Parallel()

		data, err := recordsToCSV([]map[string]interface{}{
			{"Name": "Acme, Inc."},
		})
		require.NoError(t, err)
		assert.Equal(t, "Name\n\"Acme, Inc.\"\n", string(data))
	})
}

func TestCSVValue(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "nil", value: nil, want: ""},
		{name: "string", value: "Acme", want: "Acme"},
		{name: "bool", value: true, want: "true"},
		{name: "int", value: 42, want: "42"},
		{name: "int64", value: int64(9000000000), want: "9000000000"},
		{name: "float", value: 2.5, want: "2.5"},
		{name: "time", value: stamp, want: "2024-06-01T12:30:00Z"},
		{name: "map encodes as JSON", value: map[string]interface{}{"a": 1}, want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, csvValue(tt.value))
		})
	}
}

func TestParseResultCSV(t *testing.T) {
	t.Parallel()
	t.Run("keys rows by header", func(t *testing.T) {
		t.Parallel()

		rows, err := parseResultCSV([]byte("sf__Id,sf__Created,Name\n001xx,true,\"Acme, Inc.\"\n"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "001xx", rows[0]["sf__Id"])
		assert.Equal(t, "Acme, Inc.", rows[0]["Name"])
	})

	t.Run("header-only document yields no rows", func(t *testing.T) {
		t.Parallel()

		rows, err := parseResultCSV([]byte("sf__Id,sf__Error,Name\n"))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("empty document yields no rows", func(t *testing.T) {
		t.Parallel()

		rows, err := parseResultCSV(nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMatchResults(t *testing.T) {
	t.Parallel()
	t.Run("duplicate records resolve in input order", func(t *testing.T) {
		t.Parallel()

		records := []map[string]interface{}{
			{"Name": "Acme"},
			{"Name": "Acme"},
		}
		successes := []map[string]string{
			{"sf__Id": "001xxFIRST", "Name": "Acme"},
			{"sf__Id": "001xxSECOND", "Name": "Acme"},
		}

		results := matchResults(records, successes, nil)
		require.Len(t, results, 2)
		assert.Equal(t, "001xxFIRST", results[0].CreatedID)
		assert.Equal(t, "001xxSECOND", results[1].CreatedID)
	})

	t.Run("unmatched rows fill unclaimed slots in order", func(t *testing.T) {
		t.Parallel()

		records := []map[string]interface{}{
			{"Name": "Acme"},
			{"Name": "Globex"},
		}
		// The server normalized both names, so neither row matches a
		// signature; positional fallback keeps the count honest.
		successes := []map[string]string{
			{"sf__Id": "001xxA", "Name": "ACME"},
			{"sf__Id": "001xxB", "Name": "GLOBEX"},
		}

		results := matchResults(records, successes, nil)
		require.Len(t, results, 2)
		assert.Equal(t, "001xxA", results[0].CreatedID)
		assert.Equal(t, 0, results[0].Index)
		assert.Equal(t, "001xxB", results[1].CreatedID)
	})

	t.Run("records with no result row are marked failed", func(t *testing.T) {
		t.Parallel()

		records := []map[string]interface{}{
			{"Name": "Acme"},
			{"Name": "Globex"},
		}
		successes := []map[string]string{
			{"sf__Id": "001xxA", "Name": "Acme"},
		}

		results := matchResults(records, successes, nil)
		require.Len(t, results, 2)
		assert.True(t, results[0].Success)
		assert.False(t, results[1].Success)
		assert.Equal(t, "no result returned for record", results[1].Error)
	})

	t.Run("empty fields do not break the match", func(t *testing.T) {
		t.Parallel()

		// Batch headers pad absent fields with empty cells; the echoed
		// row carries Site="" while the record never had one.
		records := []map[string]interface{}{
			{"Name": "Acme"},
		}
		successes := []map[string]string{
			{"sf__Id": "001xxA", "Name": "Acme", "Site": ""},
		}

		results := matchResults(records, successes, nil)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.Equal(t, "001xxA", results[0].CreatedID)
	})
}
