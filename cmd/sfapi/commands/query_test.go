package commands

import (
	"context"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagingQueryClient fakes a query client with canned pages keyed by their
// nextRecordsUrl.
type pagingQueryClient struct {
	first          *sfapi.QueryResult
	pages          map[string]*sfapi.QueryResult
	executedAll    bool
	executedSOQL   string
	moreCalls      []string
	searchedSOSL   string
	searchResponse *sfapi.SearchResult
}

func (c *pagingQueryClient) Execute(_ context.Context, query string) (*sfapi.QueryResult, error) {
	c.executedSOQL = query

	return c.first, nil
}

func (c *pagingQueryClient) ExecuteAll(_ context.Context, query string) (*sfapi.QueryResult, error) {
	c.executedAll = true
	c.executedSOQL = query

	return c.first, nil
}

func (c *pagingQueryClient) More(_ context.Context, nextRecordsURL string) (*sfapi.QueryResult, error) {
	c.moreCalls = append(c.moreCalls, nextRecordsURL)

	return c.pages[nextRecordsURL], nil
}

func (c *pagingQueryClient) Search(_ context.Context, search string) (*sfapi.SearchResult, error) {
	c.searchedSOSL = search

	return c.searchResponse, nil
}

func queryPage(names []string, next string) *sfapi.QueryResult {
	records := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		records = append(records, map[string]interface{}{"Name": name})
	}

	return &sfapi.QueryResult{
		TotalSize:      5,
		Done:           next == "",
		NextRecordsURL: next,
		Records:        records,
	}
}

func TestRunQuery(t *testing.T) {
	t.Parallel()

	t.Run("returns the first page by default", func(t *testing.T) {
		t.Parallel()

		fake := &pagingQueryClient{first: queryPage([]string{"Acme", "Globex"}, "/next-1")}

		result, err := runQuery(context.Background(), fake, "SELECT Name FROM Account", false, false)
		require.NoError(t, err)

		assert.False(t, result.Done)
		assert.Len(t, result.Records, 2)
		assert.Empty(t, fake.moreCalls)
		assert.Equal(t, "SELECT Name FROM Account", fake.executedSOQL)
	})

	t.Run("follows pagination with all pages", func(t *testing.T) {
		t.Parallel()

		fake := &pagingQueryClient{
			first: queryPage([]string{"Acme", "Globex"}, "/next-1"),
			pages: map[string]*sfapi.QueryResult{
				"/next-1": queryPage([]string{"Initech", "Umbrella"}, "/next-2"),
				"/next-2": queryPage([]string{"Hooli"}, ""),
			},
		}

		result, err := runQuery(context.Background(), fake, "SELECT Name FROM Account", false, true)
		require.NoError(t, err)

		assert.True(t, result.Done)
		assert.Equal(t, 5, result.TotalSize)
		require.Len(t, result.Records, 5)
		assert.Equal(t, "Hooli", result.Records[4]["Name"])
		assert.Equal(t, []string{"/next-1", "/next-2"}, fake.moreCalls)
	})

	t.Run("routes include deleted to queryAll", func(t *testing.T) {
		t.Parallel()

		fake := &pagingQueryClient{first: queryPage([]string{"Acme"}, "")}

		_, err := runQuery(context.Background(), fake, "SELECT Name FROM Account", true, false)
		require.NoError(t, err)

		assert.True(t, fake.executedAll)
	})
}

func TestNewQueryCommand(t *testing.T) {
	t.Parallel()

	cmd := NewQueryCommand()
	assert.Equal(t, "query SOQL", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)
	assert.NotNil(t, cmd.Flags().Lookup("include-deleted"))
	assert.NotNil(t, cmd.Flags().Lookup("all-pages"))
}

func TestNewSearchCommand(t *testing.T) {
	t.Parallel()

	cmd := NewSearchCommand()
	assert.Equal(t, "search SOSL", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
