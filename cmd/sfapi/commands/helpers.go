package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	// Output formats.
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"

	// JSON formatting.
	defaultJSONIndent = 2

	// Common values.
	Yes    = "yes"
	Masked = "***"

	// recordAttributesKey is the envelope Salesforce adds to every queried
	// record; it carries no field data.
	recordAttributesKey = "attributes"
)

// Common static errors used throughout the commands package.
var (
	ErrNoOrgsConfigured       = errors.New("no orgs configured; add orgs to ~/.sfapi/config.yml or set SALESFORCE_USERNAME and SALESFORCE_PASSWORD")
	ErrOrgCredentialsMissing  = errors.New("no credentials configured; set username/password, a private key file, or a refresh token")
	ErrOrgAlreadyConfigured   = errors.New("an org with this alias is already configured")
	ErrOrgNotConfigured       = errors.New("no org with this alias is configured")
	ErrQueryRequired          = errors.New("a SOQL query is required")
	ErrSearchRequired         = errors.New("a SOSL search is required")
	ErrRecordDataRequired     = errors.New("record data is required; use --data or --file")
	ErrDataAndFileExclusive   = errors.New("--data and --file are mutually exclusive")
	ErrUnsupportedRecordsFile = errors.New("records file must be .json or .csv")
	ErrNoRecordsInFile        = errors.New("records file contains no records")
	ErrApexBodyRequired       = errors.New("an Apex body is required; pass it as an argument or use --file")
)

// StandardJSONRenderer creates a standard JSON encoder.
func StandardJSONRenderer[T any](data T) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer creates a standard YAML encoder.
func StandardYAMLRenderer[T any](data T) error {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(defaultJSONIndent)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return nil
}

// renderOutput dispatches on the configured output format, falling back to
// the provided table renderer.
func renderOutput[T any](data T, tableRenderer func(T) error) error {
	switch viper.GetString("output") {
	case OutputFormatJSON:
		return StandardJSONRenderer(data)
	case OutputFormatYAML:
		return StandardYAMLRenderer(data)
	default:
		return tableRenderer(data)
	}
}

// renderRecordsTable renders query-style records as a table whose columns
// are the union of the record fields.
func renderRecordsTable(records []map[string]interface{}, emptyMessage string) error {
	if len(records) == 0 {
		_, _ = os.Stdout.WriteString(emptyMessage + "\n")

		return nil
	}

	columns := recordColumns(records)

	table := tablewriter.NewWriter(os.Stdout)

	header := make([]interface{}, len(columns))
	for i, column := range columns {
		header[i] = column
	}

	table.Header(header...)

	for _, record := range records {
		row := make([]interface{}, len(columns))
		for i, column := range columns {
			row[i] = formatCellValue(record[column])
		}

		_ = table.Append(row...)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderRecordDetail renders a single record as a field/value table.
func renderRecordDetail(record map[string]interface{}) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	for _, field := range recordColumns([]map[string]interface{}{record}) {
		_ = table.Append(field, formatCellValue(record[field]))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// recordColumns returns the union of field names across records, sorted,
// with Id pulled to the front. The attributes envelope is dropped.
func recordColumns(records []map[string]interface{}) []string {
	seen := make(map[string]bool)

	var columns []string

	for _, record := range records {
		for key := range record {
			if key == recordAttributesKey || seen[key] {
				continue
			}

			seen[key] = true

			columns = append(columns, key)
		}
	}

	sort.Strings(columns)

	for i, column := range columns {
		if column == "Id" {
			copy(columns[1:i+1], columns[:i])
			columns[0] = "Id"

			break
		}
	}

	return columns
}

// formatCellValue renders a record field value for table output. Nested
// objects and lists are shown as compact JSON.
func formatCellValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}

// valueOrNA substitutes N/A for empty strings in table cells.
func valueOrNA(value string) string {
	if value == "" {
		return NotAvailable
	}

	return value
}

// readRecordsFile loads records from a JSON array or CSV file, keyed by
// file extension. CSV values are carried as strings.
func readRecordsFile(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSONRecords(data)
	case ".csv":
		return parseCSVRecords(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRecordsFile, path)
	}
}

func parseJSONRecords(data []byte) ([]map[string]interface{}, error) {
	var records []map[string]interface{}

	err := json.Unmarshal(data, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON records: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoRecordsInFile
	}

	return records, nil
}

func parseCSVRecords(data []byte) ([]map[string]interface{}, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV records: %w", err)
	}

	if len(rows) < 2 {
		return nil, ErrNoRecordsInFile
	}

	header := rows[0]
	records := make([]map[string]interface{}, 0, len(rows)-1)

	for _, row := range rows[1:] {
		record := make(map[string]interface{}, len(header))

		for i, column := range header {
			if i < len(row) {
				record[column] = row[i]
			}
		}

		records = append(records, record)
	}

	return records, nil
}

// resolveRecordInput returns the record given by --data or --file. The two
// flags are mutually exclusive.
func resolveRecordInput(dataFlag, fileFlag string) (map[string]interface{}, error) {
	switch {
	case dataFlag != "" && fileFlag != "":
		return nil, ErrDataAndFileExclusive
	case dataFlag != "":
		return parseRecordJSON([]byte(dataFlag))
	case fileFlag != "":
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to read record file: %w", err)
		}

		return parseRecordJSON(data)
	default:
		return nil, ErrRecordDataRequired
	}
}

func parseRecordJSON(data []byte) (map[string]interface{}, error) {
	var record map[string]interface{}

	err := json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record JSON: %w", err)
	}

	if len(record) == 0 {
		return nil, ErrRecordDataRequired
	}

	return record, nil
}
