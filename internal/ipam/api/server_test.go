package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/db"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"

	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()

	_, store := db.NewTestDB(t)
	logger := applogger.New(applogger.Config{Level: applogger.LevelError, Format: applogger.FormatJSON})

	coordinator := engine.NewCoordinator(
		engine.NewAllocator(engine.PrimaryPool()),
		engine.NewAllocator(engine.CGNATPool()),
		logger.Unwrap())
	ledger := engine.NewLedger(coordinator, db.NewLedgerRepository(store), nil, logger.Unwrap())

	srv := NewServer(ServerConfig{
		Address:     "127.0.0.1:0",
		CORSOrigins: []string{"*"},
		APIKey:      apiKey,
		Version:     "test",
	}, ledger, store, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var envelope api.Response[T]
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.True(t, envelope.Success, "expected success envelope, got: %s", raw)
	return envelope.Data
}

func decodeError(t *testing.T, raw []byte) *api.ErrorInfo {
	t.Helper()
	var envelope api.Response[any]
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func intPtr(v int) *int { return &v }

func TestAllocateEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
		VPC:   "vpc-a",
		Hosts: intPtr(100),
		Labels: api.Labels{
			Environment: "dev",
			Region:      "us-east-1",
		},
	}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	info := decodeData[api.AllocationInfo](t, raw)

	assert.NotEmpty(t, info.AllocationID)
	assert.Equal(t, "vpc-a", info.VPC)
	assert.Equal(t, "10.0.0.0/25", info.PrimaryCIDR)
	assert.Equal(t, "100.64.0.0/20", info.CGNATCIDR)
	assert.Equal(t, 128, info.PrimarySubnetSize)
	assert.Equal(t, 123, info.UsablePrimary)
	assert.Equal(t, "dev", info.Labels.Environment)
	assert.False(t, info.DryRun)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, resp.Header.Get("X-Request-Id"), info.RequestID)
}

func TestAllocateIgnoresClientRequestID(t *testing.T) {
	ts := newTestServer(t, "")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
		VPC:   "vpc-a",
		Hosts: intPtr(10),
	}, map[string]string{"X-Request-Id": "client-chosen-id"})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEqual(t, "client-chosen-id", resp.Header.Get("X-Request-Id"))
}

func TestAllocateValidation(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name     string
		body     api.AllocateRequest
		wantCode string
	}{
		{name: "neither sizing field", body: api.AllocateRequest{VPC: "v"}, wantCode: "validation_error"},
		{name: "both sizing fields", body: api.AllocateRequest{VPC: "v", Hosts: intPtr(10), PrefixLength: intPtr(24)}, wantCode: "validation_error"},
		{name: "missing vpc", body: api.AllocateRequest{Hosts: intPtr(10)}, wantCode: "validation_error"},
		{name: "hosts out of range", body: api.AllocateRequest{VPC: "v", Hosts: intPtr(5000)}, wantCode: "host_count_out_of_range"},
		{name: "prefix out of range", body: api.AllocateRequest{VPC: "v", PrefixLength: intPtr(19)}, wantCode: "prefix_out_of_range"},
		{name: "bad label", body: api.AllocateRequest{VPC: "v", Hosts: intPtr(10), Labels: api.Labels{Environment: "qa"}}, wantCode: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, raw).Code)
		})
	}
}

func TestAllocateDryRun(t *testing.T) {
	ts := newTestServer(t, "")

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate?dry_run=true", api.AllocateRequest{
		VPC:   "vpc-a",
		Hosts: intPtr(100),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	preview := decodeData[api.AllocationInfo](t, raw)
	assert.True(t, preview.DryRun)
	assert.Empty(t, preview.AllocationID)
	assert.Equal(t, "10.0.0.0/25", preview.PrimaryCIDR)

	// nothing was committed
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/allocations", nil, nil)
	list := decodeData[api.AllocationsListResponse](t, raw)
	assert.Zero(t, list.TotalCount)
}

func TestListAllocationsPaginationAndFilter(t *testing.T) {
	ts := newTestServer(t, "")

	for i := 0; i < 3; i++ {
		vpc := "vpc-a"
		if i == 2 {
			vpc = "vpc-b"
		}
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
			VPC:   vpc,
			Hosts: intPtr(10),
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	_, raw := doJSON(t, http.MethodGet, ts.URL+"/allocations?limit=2", nil, nil)
	list := decodeData[api.AllocationsListResponse](t, raw)
	assert.Equal(t, 3, list.TotalCount)
	assert.Len(t, list.Items, 2)

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/allocations?limit=2&offset=2", nil, nil)
	list = decodeData[api.AllocationsListResponse](t, raw)
	assert.Len(t, list.Items, 1)

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/allocations?vpc=vpc-b", nil, nil)
	list = decodeData[api.AllocationsListResponse](t, raw)
	assert.Equal(t, 1, list.TotalCount)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "vpc-b", list.Items[0].VPC)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/allocations?limit=500", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveAllocation(t *testing.T) {
	ts := newTestServer(t, "")

	_, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
		VPC:   "vpc-a",
		Hosts: intPtr(10),
	}, nil)
	created := decodeData[api.AllocationInfo](t, raw)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/allocations/"+created.AllocationID,
		api.MoveRequest{NewVPCName: "vpc-b"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/allocations?vpc=vpc-b", nil, nil)
	list := decodeData[api.AllocationsListResponse](t, raw)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.PrimaryCIDR, list.Items[0].PrimaryCIDR)

	resp, raw = doJSON(t, http.MethodPut, ts.URL+"/allocations/no-such-id",
		api.MoveRequest{NewVPCName: "vpc-c"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "allocation_not_found", decodeError(t, raw).Code)
}

func TestDeleteAllocation(t *testing.T) {
	ts := newTestServer(t, "")

	_, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
		VPC:   "vpc-a",
		Hosts: intPtr(10),
	}, nil)
	created := decodeData[api.AllocationInfo](t, raw)

	resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/allocations/"+created.AllocationID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeData[api.DeleteResponse](t, raw)
	assert.True(t, deleted.Deleted)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/allocations/"+created.AllocationID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVPCEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/vpcs", api.CreateVPCRequest{Name: "vpc-a"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp, _ = doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
			VPC:   "vpc-a",
			Hosts: intPtr(10),
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/vpcs/vpc-a", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeData[api.DeleteVPCResponse](t, raw)
	assert.True(t, result.Deleted)
	assert.Equal(t, 2, result.DeletedCount)

	resp, raw = doJSON(t, http.MethodDelete, ts.URL+"/vpcs/vpc-a", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "vpc_not_found", decodeError(t, raw).Code)
}

func TestCalculateEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	_, raw := doJSON(t, http.MethodGet, ts.URL+"/calculate?hosts=500", nil, nil)
	result := decodeData[api.CalculateResponse](t, raw)
	assert.Equal(t, 23, result.PrimaryPrefix)
	assert.Equal(t, 18, result.CGNATPrefix)
	assert.Equal(t, 507, result.UsablePrimary)

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/calculate?prefix_length=24", nil, nil)
	result = decodeData[api.CalculateResponse](t, raw)
	assert.Equal(t, 24, result.PrimaryPrefix)
	assert.Equal(t, 19, result.CGNATPrefix)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/calculate", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/calculate?hosts=1&prefix_length=24", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPoolExhaustionReturns503(t *testing.T) {
	ts := newTestServer(t, "")

	// 16 /20 allocations drain the whole primary /16
	for i := 0; i < 16; i++ {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
			VPC:          fmt.Sprintf("vpc-%d", i),
			PrefixLength: intPtr(20),
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/allocate", api.AllocateRequest{
		VPC:   "vpc-overflow",
		Hosts: intPtr(10),
	}, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "pool_exhausted", decodeError(t, raw).Code)
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t, "secret-key")

	// health probes skip auth
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/allocations", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, raw).Code)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/allocations", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/allocations", nil, map[string]string{"X-API-Key": "secret-key"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeData[api.HealthResponse](t, raw)
	assert.Equal(t, "healthy", health.Status)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decodeData[api.HealthResponse](t, raw)
	assert.Equal(t, "ready", ready.Status)
}
