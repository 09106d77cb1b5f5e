package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Static errors for err113 compliance.
var (
	ErrReportIDRequired = errors.New("report ID is required")
)

// AnalyticsClient implements sfapi.AnalyticsClient.
type AnalyticsClient struct {
	httpClient *internalhttp.Client
	basePath   string
}

// NewAnalyticsClient creates a new analytics client.
func NewAnalyticsClient(httpClient *internalhttp.Client, basePath string) *AnalyticsClient {
	return &AnalyticsClient{
		httpClient: httpClient,
		basePath:   basePath,
	}
}

// ListReports implements sfapi.AnalyticsClient.ListReports. Salesforce
// returns the caller's recently viewed reports.
func (c *AnalyticsClient) ListReports(ctx context.Context) ([]sfapi.ReportSummary, error) {
	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/analytics/reports",
		Operation: "list_reports",
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	var reports []sfapi.ReportSummary

	err = json.Unmarshal(resp.Body, &reports)
	if err != nil {
		return nil, fmt.Errorf("parsing reports listing: %w", err)
	}

	return reports, nil
}

// RunReport implements sfapi.AnalyticsClient.RunReport. Filters, when
// given, override the saved report metadata for this run only.
func (c *AnalyticsClient) RunReport(ctx context.Context, reportID string, filters map[string]interface{}) (*sfapi.ReportResults, error) {
	if reportID == "" {
		return nil, ErrReportIDRequired
	}

	var body interface{}
	if len(filters) > 0 {
		body = map[string]interface{}{"reportMetadata": filters}
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "POST",
		Path:      c.basePath + "/analytics/reports/" + reportID,
		Body:      body,
		Operation: "run_report",
	})
	if err != nil {
		return nil, fmt.Errorf("running report %s: %w", reportID, err)
	}

	var results sfapi.ReportResults

	err = json.Unmarshal(resp.Body, &results)
	if err != nil {
		return nil, fmt.Errorf("parsing report results: %w", err)
	}

	return &results, nil
}
