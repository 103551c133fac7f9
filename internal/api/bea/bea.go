// Package bea is a client for the Bureau of Economic Analysis data API.
package bea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Name identifies the API family in config and guard snapshots.
const Name = "bea"

// URL is the single BEA endpoint; the Method param selects the operation.
const URL = "https://apps.bea.gov/api/data"

// DefaultCacheTTL is how long successful responses are reused.
const DefaultCacheTTL = 24 * time.Hour

// ErrMissingAPIKey is returned when no BEA API key is configured.
var ErrMissingAPIKey = errors.New("no BEA API key found; set credentials.bea_api_key or BEA_API_KEY")

// DefaultLimits are BEA's published per-user limits.
func DefaultLimits() []ratelimit.Spec {
	return []ratelimit.Spec{
		ratelimit.Requests(90, time.Minute),
		ratelimit.Errors(20, time.Minute),
		ratelimit.Bytes(90e6, time.Minute),
	}
}

// IgnoredParams never split the response cache.
func IgnoredParams() []string {
	return []string{"ResultFormat", "UserID"}
}

// APIError is an error payload BEA returns with a 200 status.
type APIError struct {
	Code        json.Number `json:"APIErrorCode"`
	Description string      `json:"APIErrorDescription"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("BEA API error %s", e.Code)
	}
	return fmt.Sprintf("BEA API error %s: %s", e.Code, e.Description)
}

// Getter fetches one BEA request; *httpx.Guard satisfies it.
type Getter interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Client issues BEA requests through a guarded getter.
type Client struct {
	getter  Getter
	apiKey  string
	baseURL string
}

// New returns a client for apiKey. An empty key fails every call with
// ErrMissingAPIKey.
func New(getter Getter, apiKey string) *Client {
	return &Client{getter: getter, apiKey: strings.TrimSpace(apiKey), baseURL: URL}
}

// WithBaseURL points the client at another endpoint.
func (c *Client) WithBaseURL(base string) *Client {
	clone := *c
	clone.baseURL = base
	return &clone
}

// Dataset describes one BEA dataset.
type Dataset struct {
	Name        string `json:"DatasetName"`
	Description string `json:"DatasetDescription"`
}

// Parameter describes one dataset parameter.
type Parameter struct {
	Name          string `json:"ParameterName"`
	DataType      string `json:"ParameterDataType"`
	Description   string `json:"ParameterDescription"`
	IsRequired    string `json:"ParameterIsRequiredFlag"`
	DefaultValue  string `json:"ParameterDefaultValue"`
	MultipleValue string `json:"MultipleAcceptedFlag"`
	AllValue      string `json:"AllValue"`
}

// Record is one row of a GetData or GetParameterValues result.
type Record map[string]any

// GetDatasetList lists the datasets the API serves.
func (c *Client) GetDatasetList(ctx context.Context) ([]Dataset, error) {
	results, err := c.get(ctx, url.Values{"Method": {"GetDatasetList"}})
	if err != nil {
		return nil, err
	}
	var datasets []Dataset
	if err := decodeField(results, "Dataset", &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// GetParameterList lists a dataset's parameters.
func (c *Client) GetParameterList(ctx context.Context, dataset string) ([]Parameter, error) {
	results, err := c.get(ctx, url.Values{
		"Method":      {"GetParameterList"},
		"DatasetName": {dataset},
	})
	if err != nil {
		return nil, err
	}
	var params []Parameter
	if err := decodeField(results, "Parameter", &params); err != nil {
		return nil, err
	}
	return params, nil
}

// GetParameterValues lists the accepted values of a dataset parameter.
func (c *Client) GetParameterValues(ctx context.Context, dataset, parameter string) ([]Record, error) {
	results, err := c.get(ctx, url.Values{
		"Method":        {"GetParameterValues"},
		"DatasetName":   {dataset},
		"ParameterName": {parameter},
	})
	if err != nil {
		return nil, err
	}
	var values []Record
	if err := decodeField(results, "ParamValue", &values); err != nil {
		return nil, err
	}
	return values, nil
}

// GetData fetches dataset rows. Parameter values that are lists are joined
// with commas, the way BEA expects them.
func (c *Client) GetData(ctx context.Context, dataset string, params map[string][]string) ([]Record, error) {
	query := url.Values{
		"Method":      {"GetData"},
		"DatasetName": {dataset},
	}
	for name, values := range params {
		if len(values) == 0 {
			continue
		}
		query.Set(name, strings.Join(values, ","))
	}

	results, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}
	var rows []Record
	if err := decodeField(results, "Data", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type envelope struct {
	BEAAPI struct {
		Error   *APIError       `json:"Error"`
		Results json.RawMessage `json:"Results"`
	} `json:"BEAAPI"`
}

// get performs the request and returns BEAAPI.Results as raw fields.
func (c *Client) get(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	params.Set("UserID", c.apiKey)
	params.Set("ResultFormat", "JSON")

	resp, err := c.getter.Do(ctx, httpx.Request{URL: c.baseURL, Params: params})
	if err != nil {
		return nil, fmt.Errorf("bea %s: %w", params.Get("Method"), err)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, err
	}

	var body envelope
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.BEAAPI.Error != nil {
		return nil, body.BEAAPI.Error
	}

	results := map[string]json.RawMessage{}
	if len(body.BEAAPI.Results) > 0 {
		// GdpByIndustry and InputOutput wrap their results in a one-element list.
		raw := body.BEAAPI.Results
		if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
			var list []json.RawMessage
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode bea results: %w", err)
			}
			if len(list) == 0 {
				return results, nil
			}
			raw = list[0]
		}
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, fmt.Errorf("decode bea results: %w", err)
		}
	}

	if rawErr, ok := results["Error"]; ok {
		apiErr := &APIError{}
		if err := json.Unmarshal(rawErr, apiErr); err != nil {
			return nil, fmt.Errorf("decode bea error: %w", err)
		}
		return nil, apiErr
	}
	return results, nil
}

func decodeField(results map[string]json.RawMessage, field string, v any) error {
	raw, ok := results[field]
	if !ok {
		return fmt.Errorf("bea results missing %q", field)
	}
	// Single-element results come back as an object rather than a list.
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "{") {
		raw = json.RawMessage("[" + trimmed + "]")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode bea %s: %w", field, err)
	}
	return nil
}
