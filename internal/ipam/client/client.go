package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Client represents the API client for the IPAM service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDevelopment("client")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

// Allocate requests a new paired allocation.
func (c *Client) Allocate(ctx context.Context, req *api.AllocateRequest, dryRun bool) (*api.AllocationInfo, error) {
	path := "/allocate"
	if dryRun {
		path += "?dry_run=true"
	}
	return do[api.AllocationInfo](ctx, c, http.MethodPost, path, req)
}

// ListAllocations fetches one page of allocations, optionally filtered by VPC.
func (c *Client) ListAllocations(ctx context.Context, limit, offset int, vpc string) (*api.AllocationsListResponse, error) {
	path := fmt.Sprintf("/allocations?limit=%d&offset=%d", limit, offset)
	if vpc != "" {
		path += "&vpc=" + vpc
	}
	return do[api.AllocationsListResponse](ctx, c, http.MethodGet, path, nil)
}

// Calculate previews the sizing for a host count or prefix length.
func (c *Client) Calculate(ctx context.Context, hosts, prefixLength *int) (*api.CalculateResponse, error) {
	var path string
	switch {
	case hosts != nil:
		path = fmt.Sprintf("/calculate?hosts=%d", *hosts)
	case prefixLength != nil:
		path = fmt.Sprintf("/calculate?prefix_length=%d", *prefixLength)
	default:
		return nil, fmt.Errorf("either hosts or prefix length must be set")
	}
	return do[api.CalculateResponse](ctx, c, http.MethodGet, path, nil)
}

// Move re-parents an allocation to another VPC.
func (c *Client) Move(ctx context.Context, allocationID, newVPCName string) error {
	_, err := do[map[string]string](ctx, c, http.MethodPut,
		"/allocations/"+allocationID, &api.MoveRequest{NewVPCName: newVPCName})
	return err
}

// Delete removes an allocation.
func (c *Client) Delete(ctx context.Context, allocationID string) (*api.DeleteResponse, error) {
	return do[api.DeleteResponse](ctx, c, http.MethodDelete, "/allocations/"+allocationID, nil)
}

// CreateVPC registers a VPC explicitly.
func (c *Client) CreateVPC(ctx context.Context, name string) (*api.VPCResponse, error) {
	return do[api.VPCResponse](ctx, c, http.MethodPost, "/vpcs", &api.CreateVPCRequest{Name: name})
}

// DeleteVPC deletes a VPC and all its allocations.
func (c *Client) DeleteVPC(ctx context.Context, name string) (*api.DeleteVPCResponse, error) {
	return do[api.DeleteVPCResponse](ctx, c, http.MethodDelete, "/vpcs/"+name, nil)
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	return do[api.HealthResponse](ctx, c, http.MethodGet, "/healthz", nil)
}

// do performs one request and decodes the standard response envelope.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug("making API request", "method", method, "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope api.Response[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	if !envelope.Success {
		if envelope.Error == nil {
			return nil, fmt.Errorf("API returned success=false without error details")
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
			RequestID:  envelope.Error.RequestID,
		}
	}

	return &envelope.Data, nil
}
