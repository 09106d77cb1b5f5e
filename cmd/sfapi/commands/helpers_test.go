package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCellValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "nil", value: nil, expected: ""},
		{name: "string", value: "Acme", expected: "Acme"},
		{name: "bool", value: true, expected: "true"},
		{name: "whole float", value: float64(42), expected: "42"},
		{name: "fractional float", value: 2.5, expected: "2.5"},
		{name: "nested object", value: map[string]interface{}{"City": "Paris"}, expected: `{"City":"Paris"}`},
		{name: "list", value: []interface{}{"a", "b"}, expected: `["a","b"]`},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, formatCellValue(testCase.value))
		})
	}
}

func TestRecordColumns(t *testing.T) {
	t.Parallel()

	t.Run("unions fields and drops the attributes envelope", func(t *testing.T) {
		t.Parallel()

		records := []map[string]interface{}{
			{
				recordAttributesKey: map[string]interface{}{"type": "Account"},
				"Name":              "Acme",
				"Amount":            100.0,
			},
			{"Id": "001xx0000000001AAA", "Name": "Globex", "Site": "HQ"},
		}

		assert.Equal(t, []string{"Id", "Amount", "Name", "Site"}, recordColumns(records))
	})

	t.Run("sorts fields when no Id is present", func(t *testing.T) {
		t.Parallel()

		records := []map[string]interface{}{
			{"Site": "HQ", "Name": "Acme"},
		}

		assert.Equal(t, []string{"Name", "Site"}, recordColumns(records))
	})
}

func TestReadRecordsFile(t *testing.T) {
	t.Parallel()

	t.Run("reads a JSON array", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"Name":"Acme","Employees":12},{"Name":"Globex"}]`), 0o600))

		records, err := readRecordsFile(path)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Acme", records[0]["Name"])
		assert.Equal(t, float64(12), records[0]["Employees"])
	})

	t.Run("reads a CSV file with a header row", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "records.csv")
		require.NoError(t, os.WriteFile(path, []byte("Name,Site\nAcme,HQ\nGlobex,Branch\n"), 0o600))

		records, err := readRecordsFile(path)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Acme", records[0]["Name"])
		assert.Equal(t, "Branch", records[1]["Site"])
	})

	t.Run("rejects other extensions", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "records.txt")
		require.NoError(t, os.WriteFile(path, []byte("Name\nAcme\n"), 0o600))

		_, err := readRecordsFile(path)
		require.ErrorIs(t, err, ErrUnsupportedRecordsFile)
	})

	t.Run("rejects a header-only CSV", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "records.csv")
		require.NoError(t, os.WriteFile(path, []byte("Name,Site\n"), 0o600))

		_, err := readRecordsFile(path)
		require.ErrorIs(t, err, ErrNoRecordsInFile)
	})

	t.Run("rejects an empty JSON array", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

		_, err := readRecordsFile(path)
		require.ErrorIs(t, err, ErrNoRecordsInFile)
	})

	t.Run("reports a missing file", func(t *testing.T) {
		t.Parallel()

		_, err := readRecordsFile(filepath.Join(t.TempDir(), "absent.json"))
		require.ErrorContains(t, err, "failed to read records file")
	})
}

func TestResolveRecordInput(t *testing.T) {
	t.Parallel()

	t.Run("parses inline JSON", func(t *testing.T) {
		t.Parallel()

		record, err := resolveRecordInput(`{"Name":"Acme"}`, "")
		require.NoError(t, err)
		assert.Equal(t, "Acme", record["Name"])
	})

	t.Run("reads a JSON file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "record.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Name":"Globex"}`), 0o600))

		record, err := resolveRecordInput("", path)
		require.NoError(t, err)
		assert.Equal(t, "Globex", record["Name"])
	})

	t.Run("rejects both flags at once", func(t *testing.T) {
		t.Parallel()

		_, err := resolveRecordInput(`{"Name":"Acme"}`, "record.json")
		require.ErrorIs(t, err, ErrDataAndFileExclusive)
	})

	t.Run("requires one of the flags", func(t *testing.T) {
		t.Parallel()

		_, err := resolveRecordInput("", "")
		require.ErrorIs(t, err, ErrRecordDataRequired)
	})

	t.Run("rejects an empty object", func(t *testing.T) {
		t.Parallel()

		_, err := resolveRecordInput(`{}`, "")
		require.ErrorIs(t, err, ErrRecordDataRequired)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()

		_, err := resolveRecordInput(`{"Name":`, "")
		require.ErrorContains(t, err, "failed to parse record JSON")
	})
}

func TestValueOrNA(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NotAvailable, valueOrNA(""))
	assert.Equal(t, "59.0", valueOrNA("59.0"))
}
