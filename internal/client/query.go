package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Static errors for err113 compliance.
var (
	ErrEmptyQuery             = errors.New("query must not be empty")
	ErrEmptySearch            = errors.New("search must not be empty")
	ErrNextRecordsURLRequired = errors.New("next records URL is required")
)

// QueryClient implements sfapi.QueryClient.
type QueryClient struct {
	httpClient *internalhttp.Client
	basePath   string
}

// NewQueryClient creates a new query client.
func NewQueryClient(httpClient *internalhttp.Client, basePath string) *QueryClient {
	return &QueryClient{
		httpClient: httpClient,
		basePath:   basePath,
	}
}

// Execute implements sfapi.QueryClient.Execute.
func (c *QueryClient) Execute(ctx context.Context, query string) (*sfapi.QueryResult, error) {
	return c.run(ctx, "/query", query, "query")
}

// ExecuteAll implements sfapi.QueryClient.ExecuteAll. It includes deleted
// and archived rows.
func (c *QueryClient) ExecuteAll(ctx context.Context, query string) (*sfapi.QueryResult, error) {
	return c.run(ctx, "/queryAll", query, "query_all")
}

func (c *QueryClient) run(ctx context.Context, endpoint, query, operation string) (*sfapi.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + endpoint,
		Query:     url.Values{"q": []string{query}},
		Operation: operation,
	})
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	var result sfapi.QueryResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing query response: %w", err)
	}

	return &result, nil
}

// More implements sfapi.QueryClient.More. Salesforce reports the next page
// as a bare path; an absolute URL is accepted too and reduced to its path.
func (c *QueryClient) More(ctx context.Context, nextRecordsURL string) (*sfapi.QueryResult, error) {
	if nextRecordsURL == "" {
		return nil, ErrNextRecordsURLRequired
	}

	path := nextRecordsURL

	if strings.Contains(nextRecordsURL, "://") {
		parsed, err := url.Parse(nextRecordsURL)
		if err != nil {
			return nil, fmt.Errorf("parsing next records URL: %w", err)
		}

		path = parsed.Path
		if parsed.RawQuery != "" {
			path += "?" + parsed.RawQuery
		}
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      path,
		Operation: "query_more",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching next query page: %w", err)
	}

	var result sfapi.QueryResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing query response: %w", err)
	}

	return &result, nil
}

// Search implements sfapi.QueryClient.Search.
func (c *QueryClient) Search(ctx context.Context, search string) (*sfapi.SearchResult, error) {
	if strings.TrimSpace(search) == "" {
		return nil, ErrEmptySearch
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/search",
		Query:     url.Values{"q": []string{search}},
		Operation: "search",
	})
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}

	var result sfapi.SearchResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	return &result, nil
}
