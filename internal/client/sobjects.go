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
	ErrObjectTypeRequired = errors.New("object type is required")
	ErrRecordIDRequired   = errors.New("record ID is required")
	ErrEmptyRecord        = errors.New("record must carry at least one field")
)

// SObjectsClient implements sfapi.SObjectsClient.
type SObjectsClient struct {
	httpClient *internalhttp.Client
	basePath   string
}

// NewSObjectsClient creates a new sobjects client.
func NewSObjectsClient(httpClient *internalhttp.Client, basePath string) *SObjectsClient {
	return &SObjectsClient{
		httpClient: httpClient,
		basePath:   basePath,
	}
}

// Get implements sfapi.SObjectsClient.Get. With no fields listed the whole
// record comes back.
func (c *SObjectsClient) Get(ctx context.Context, objectType, recordID string, fields ...string) (map[string]interface{}, error) {
	err := validateRecordRef(objectType, recordID)
	if err != nil {
		return nil, err
	}

	var query url.Values
	if len(fields) > 0 {
		query = url.Values{"fields": []string{strings.Join(fields, ",")}}
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.recordPath(objectType, recordID),
		Query:     query,
		Operation: "get_record",
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s record: %w", objectType, err)
	}

	var record map[string]interface{}

	err = json.Unmarshal(resp.Body, &record)
	if err != nil {
		return nil, fmt.Errorf("parsing %s record: %w", objectType, err)
	}

	return record, nil
}

// Create implements sfapi.SObjectsClient.Create.
func (c *SObjectsClient) Create(ctx context.Context, objectType string, record map[string]interface{}) (*sfapi.SaveResult, error) {
	if objectType == "" {
		return nil, ErrObjectTypeRequired
	}

	if len(record) == 0 {
		return nil, ErrEmptyRecord
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "POST",
		Path:      c.basePath + "/sobjects/" + objectType,
		Body:      record,
		Operation: "create_record",
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", objectType, err)
	}

	var result sfapi.SaveResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing create response: %w", err)
	}

	return &result, nil
}

// Update implements sfapi.SObjectsClient.Update. Salesforce answers a
// successful update with 204 and no body.
func (c *SObjectsClient) Update(ctx context.Context, objectType, recordID string, record map[string]interface{}) error {
	err := validateRecordRef(objectType, recordID)
	if err != nil {
		return err
	}

	if len(record) == 0 {
		return ErrEmptyRecord
	}

	_, err = c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "PATCH",
		Path:      c.recordPath(objectType, recordID),
		Body:      record,
		Operation: "update_record",
	})
	if err != nil {
		return fmt.Errorf("updating %s record: %w", objectType, err)
	}

	return nil
}

// Delete implements sfapi.SObjectsClient.Delete.
func (c *SObjectsClient) Delete(ctx context.Context, objectType, recordID string) error {
	err := validateRecordRef(objectType, recordID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "DELETE",
		Path:      c.recordPath(objectType, recordID),
		Operation: "delete_record",
	})
	if err != nil {
		return fmt.Errorf("deleting %s record: %w", objectType, err)
	}

	return nil
}

// Describe implements sfapi.SObjectsClient.Describe.
func (c *SObjectsClient) Describe(ctx context.Context, objectType string) (*sfapi.ObjectDescribe, error) {
	if objectType == "" {
		return nil, ErrObjectTypeRequired
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/sobjects/" + objectType + "/describe",
		Operation: "describe",
	})
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", objectType, err)
	}

	var describe sfapi.ObjectDescribe

	err = json.Unmarshal(resp.Body, &describe)
	if err != nil {
		return nil, fmt.Errorf("parsing describe response: %w", err)
	}

	return &describe, nil
}

// DescribeGlobal implements sfapi.SObjectsClient.DescribeGlobal.
func (c *SObjectsClient) DescribeGlobal(ctx context.Context) (*sfapi.GlobalDescribe, error) {
	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:    "GET",
		Path:      c.basePath + "/sobjects",
		Operation: "describe_global",
	})
	if err != nil {
		return nil, fmt.Errorf("describing global objects: %w", err)
	}

	var describe sfapi.GlobalDescribe

	err = json.Unmarshal(resp.Body, &describe)
	if err != nil {
		return nil, fmt.Errorf("parsing global describe response: %w", err)
	}

	return &describe, nil
}

func (c *SObjectsClient) recordPath(objectType, recordID string) string {
	return c.basePath + "/sobjects/" + objectType + "/" + recordID
}

func validateRecordRef(objectType, recordID string) error {
	if objectType == "" {
		return ErrObjectTypeRequired
	}

	if recordID == "" {
		return ErrRecordIDRequired
	}

	return nil
}
