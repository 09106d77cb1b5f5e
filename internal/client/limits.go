package client

import (
	"context"
	"encoding/json"
	"fmt"

	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// LimitsClient implements sfapi.LimitsClient.
type LimitsClient struct {
	httpClient *internalhttp.Client
	basePath   string
}

// NewLimitsClient creates a new limits client.
func NewLimitsClient(httpClient *internalhttp.Client, basePath string) *LimitsClient {
	return &LimitsClient{
		httpClient: httpClient,
		basePath:   basePath,
	}
}

// Get implements sfapi.LimitsClient.Get.
func (c *LimitsClient) Get(ctx context.Context) (sfapi.Limits, error) {
	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/limits",
		Operation: "limits",
	})
	if err != nil {
		return nil, fmt.Errorf("getting limits: %w", err)
	}

	var limits sfapi.Limits

	err = json.Unmarshal(resp.Body, &limits)
	if err != nil {
		return nil, fmt.Errorf("parsing limits: %w", err)
	}

	return limits, nil
}
