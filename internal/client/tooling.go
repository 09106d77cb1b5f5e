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
	ErrEmptyApexBody = errors.New("apex body must not be empty")
)

// ToolingClient implements sfapi.ToolingClient.
type ToolingClient struct {
	httpClient *internalhttp.Client
	basePath   string
}

// NewToolingClient creates a new tooling client.
func NewToolingClient(httpClient *internalhttp.Client, basePath string) *ToolingClient {
	return &ToolingClient{
		httpClient: httpClient,
		basePath:   basePath,
	}
}

// ExecuteAnonymous implements sfapi.ToolingClient.ExecuteAnonymous. On a
// compile or runtime failure the result is returned alongside an
// *sfapi.ApexExecutionError so callers can inspect the full outcome.
func (c *ToolingClient) ExecuteAnonymous(ctx context.Context, apexBody string) (*sfapi.ApexResult, error) {
	if strings.TrimSpace(apexBody) == "" {
		return nil, ErrEmptyApexBody
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/tooling/executeAnonymous",
		Query:     url.Values{"anonymousBody": []string{apexBody}},
		Operation: "execute_anonymous",
	})
	if err != nil {
		return nil, fmt.Errorf("executing anonymous apex: %w", err)
	}

	var result sfapi.ApexResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing apex result: %w", err)
	}

	if !result.Compiled {
		return &result, &sfapi.ApexExecutionError{
			CompileError: result.CompileProblem,
			Line:         result.Line,
		}
	}

	if !result.Success {
		return &result, &sfapi.ApexExecutionError{
			RuntimeError: result.ExceptionMessage,
			Line:         result.Line,
		}
	}

	return &result, nil
}
