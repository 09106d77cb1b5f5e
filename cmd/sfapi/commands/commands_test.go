package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func TestNewSObjectCommand(t *testing.T) {
	t.Parallel()

	cmd := NewSObjectCommand()
	assert.Equal(t, "sobject", cmd.Use)
	assert.Contains(t, cmd.Aliases, "record")

	for _, name := range []string{"get", "create", "update", "delete", "describe"} {
		assert.NotNil(t, findSubcommand(cmd, name), "missing subcommand %s", name)
	}

	get := findSubcommand(cmd, "get")
	assert.NotNil(t, get.Flags().Lookup("fields"))

	create := findSubcommand(cmd, "create")
	assert.NotNil(t, create.Flags().Lookup("data"))
	assert.NotNil(t, create.Flags().Lookup("file"))
}

func TestNewBulkCommand(t *testing.T) {
	t.Parallel()

	cmd := NewBulkCommand()
	assert.Equal(t, "bulk", cmd.Use)

	for _, name := range []string{"run", "insert", "status", "abort"} {
		assert.NotNil(t, findSubcommand(cmd, name), "missing subcommand %s", name)
	}

	run := findSubcommand(cmd, "run")
	for _, flag := range []string{"file", "operation", "external-id", "batch-size", "poll-interval", "max-polls"} {
		assert.NotNil(t, run.Flags().Lookup(flag), "missing flag %s", flag)
	}

	assert.Equal(t, string(sfapi.BulkOperationInsert), run.Flags().Lookup("operation").DefValue)
}

func TestNewApexCommand(t *testing.T) {
	t.Parallel()

	cmd := NewApexCommand()
	assert.Equal(t, "apex", cmd.Use)

	run := findSubcommand(cmd, "run")
	require.NotNil(t, run)
	assert.NotNil(t, run.Flags().Lookup("file"))
}

func TestNewReportsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewReportsCommand()
	assert.Equal(t, "reports", cmd.Use)
	assert.Contains(t, cmd.Aliases, "report")

	assert.NotNil(t, findSubcommand(cmd, "list"))

	run := findSubcommand(cmd, "run")
	require.NotNil(t, run)
	assert.NotNil(t, run.Flags().Lookup("filters"))
}

func TestNewLimitsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewLimitsCommand()
	assert.Equal(t, "limits", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestNewObjectsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewObjectsCommand()
	assert.Equal(t, "objects", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("custom"))
}

func TestNewOrgsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewOrgsCommand()
	assert.Equal(t, "orgs", cmd.Use)
	assert.Contains(t, cmd.Aliases, "org")
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"add", "remove", "default"} {
		assert.NotNil(t, findSubcommand(cmd, name), "missing subcommand %s", name)
	}

	add := findSubcommand(cmd, "add")
	for _, flag := range []string{"username", "password", "private-key-file", "refresh-token", "default"} {
		assert.NotNil(t, add.Flags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestNewConfigCommand(t *testing.T) {
	t.Parallel()

	cmd := NewConfigCommand()
	assert.Equal(t, "config", cmd.Use)
	assert.NotNil(t, findSubcommand(cmd, "show"))
	assert.NotNil(t, findSubcommand(cmd, "path"))
}

func TestNewLoginCommand(t *testing.T) {
	t.Parallel()

	cmd := NewLoginCommand()
	assert.Equal(t, "login", cmd.Use)

	for _, flag := range []string{"domain", "username", "password", "client-id", "client-secret"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}

	assert.Equal(t, "login", cmd.Flags().Lookup("domain").DefValue)
}

func TestNewVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCommand("1.2.3", "abc123", "2026-01-02")
	assert.Equal(t, "version", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestResolveApexBody(t *testing.T) {
	t.Parallel()

	t.Run("uses the argument", func(t *testing.T) {
		t.Parallel()

		body, err := resolveApexBody([]string{"System.debug('hi');"}, "")
		require.NoError(t, err)
		assert.Equal(t, "System.debug('hi');", body)
	})

	t.Run("prefers the file when given", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "script.apex")
		require.NoError(t, os.WriteFile(path, []byte("Integer i = 0;"), 0o600))

		body, err := resolveApexBody(nil, path)
		require.NoError(t, err)
		assert.Equal(t, "Integer i = 0;", body)
	})

	t.Run("requires a body", func(t *testing.T) {
		t.Parallel()

		_, err := resolveApexBody(nil, "")
		require.ErrorIs(t, err, ErrApexBodyRequired)
	})
}

func TestFailedRecords(t *testing.T) {
	t.Parallel()

	records := []sfapi.BulkRecordResult{
		{Index: 0, Success: true, CreatedID: "001xx0000000001AAA"},
		{Index: 1, Success: false, Error: "DUPLICATE_VALUE"},
		{Index: 2, Success: true, CreatedID: "001xx0000000002AAA"},
		{Index: 3, Success: false, Error: "STORAGE_LIMIT_EXCEEDED"},
	}

	failed := failedRecords(records)
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].Index)
	assert.Equal(t, 3, failed[1].Index)
}

func TestPercentUsed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2%", percentUsed(sfapi.Limit{Max: 100000, Remaining: 97234}))
	assert.Equal(t, "100%", percentUsed(sfapi.Limit{Max: 10, Remaining: 0}))
	assert.Equal(t, NotAvailable, percentUsed(sfapi.Limit{}))
}

func TestFilterCustomObjects(t *testing.T) {
	t.Parallel()

	objects := []sfapi.GlobalSObject{
		{Name: "Account"},
		{Name: "Invoice__c", Custom: true},
	}

	custom := filterCustomObjects(objects)
	require.Len(t, custom, 1)
	assert.Equal(t, "Invoice__c", custom[0].Name)
}
