package api

import "time"

// Response is the standard API response wrapper
type Response[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains detailed error information
type ErrorInfo struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Labels are optional tags attached to an allocation.
type Labels struct {
	Environment string `json:"environment,omitempty"`
	Region      string `json:"region,omitempty"`
}

// AllocateRequest asks for a new paired allocation. Exactly one of Hosts or
// PrefixLength must be set.
type AllocateRequest struct {
	VPC          string `json:"vpc"`
	Hosts        *int   `json:"hosts,omitempty"`
	PrefixLength *int   `json:"prefix_length,omitempty"`
	Labels       Labels `json:"labels,omitempty"`
}

// AllocationInfo describes one allocation in API responses.
type AllocationInfo struct {
	AllocationID      string    `json:"allocation_id,omitempty"`
	VPC               string    `json:"vpc"`
	PrimaryCIDR       string    `json:"primary_cidr"`
	CGNATCIDR         string    `json:"cgnat_cidr"`
	PrimarySubnetSize int       `json:"primary_subnet_size"`
	CGNATSubnetSize   int       `json:"cgnat_subnet_size"`
	UsablePrimary     int       `json:"usable_primary"`
	UsableCGNAT       int       `json:"usable_cgnat"`
	RequestedHosts    *int      `json:"requested_hosts,omitempty"`
	RequestedPrefix   *int      `json:"requested_prefix,omitempty"`
	Labels            Labels    `json:"labels,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	DryRun            bool      `json:"dry_run,omitempty"`
}

// AllocationsListResponse is a paginated allocation listing.
type AllocationsListResponse struct {
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
	Items      []AllocationInfo `json:"items"`
}

// MoveRequest re-parents an allocation to another VPC.
type MoveRequest struct {
	NewVPCName string `json:"new_vpc_name"`
}

// CreateVPCRequest registers a VPC explicitly.
type CreateVPCRequest struct {
	Name string `json:"name"`
}

// VPCResponse confirms a VPC registration.
type VPCResponse struct {
	Name string `json:"name"`
}

// DeleteResponse confirms an allocation deletion.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteVPCResponse confirms a cascading VPC deletion.
type DeleteVPCResponse struct {
	Deleted      bool   `json:"deleted"`
	Name         string `json:"name"`
	DeletedCount int    `json:"deleted_count"`
}

// CalculateResponse is a pure sizing preview: no state is consulted or
// modified.
type CalculateResponse struct {
	RequestedHosts  *int `json:"requested_hosts,omitempty"`
	RequestedPrefix *int `json:"requested_prefix,omitempty"`
	PrimaryPrefix   int  `json:"primary_prefix"`
	CGNATPrefix     int  `json:"cgnat_prefix"`
	UsablePrimary   int  `json:"usable_primary"`
	UsableCGNAT     int  `json:"usable_cgnat"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
