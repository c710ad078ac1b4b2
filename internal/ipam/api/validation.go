package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ParseJSONRequest decodes a JSON request body into target, rejecting
// unknown fields.
func ParseJSONRequest(r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return apperrors.NewAPIError(apperrors.ErrCodeValidation,
			fmt.Sprintf("invalid request body: %v", err), err)
	}
	return nil
}

// ValidateAllocateRequest checks the sizing fields of an allocate request.
// The engine revalidates ranges; this catches shape errors early so callers
// get a clear message without touching the ledger.
func ValidateAllocateRequest(req *api.AllocateRequest) error {
	if req.VPC == "" {
		return apperrors.NewAPIError(apperrors.ErrCodeValidation, "vpc is required", nil)
	}

	switch {
	case req.Hosts == nil && req.PrefixLength == nil:
		return apperrors.NewAPIError(apperrors.ErrCodeValidation,
			"must specify either hosts or prefix_length", nil)
	case req.Hosts != nil && req.PrefixLength != nil:
		return apperrors.NewAPIError(apperrors.ErrCodeValidation,
			"specify either hosts or prefix_length, not both", nil)
	}

	return nil
}

// ListParams are the parsed pagination and filter options of GET /allocations.
type ListParams struct {
	Limit  int
	Offset int
	VPC    string
}

// ParseListParams reads limit, offset and vpc from the query string.
func ParseListParams(r *http.Request) (ListParams, error) {
	params := ListParams{Limit: defaultListLimit, VPC: r.URL.Query().Get("vpc")}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return ListParams{}, apperrors.NewAPIError(apperrors.ErrCodeValidation,
				fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit), nil)
		}
		params.Limit = limit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return ListParams{}, apperrors.NewAPIError(apperrors.ErrCodeValidation,
				"offset must be a non-negative integer", nil)
		}
		params.Offset = offset
	}

	return params, nil
}

// ParseSizingQuery reads hosts or prefix_length from the query string for
// GET /calculate.
func ParseSizingQuery(r *http.Request) (hosts, prefixLength *int, err error) {
	rawHosts := r.URL.Query().Get("hosts")
	rawPrefix := r.URL.Query().Get("prefix_length")

	switch {
	case rawHosts == "" && rawPrefix == "":
		return nil, nil, apperrors.NewAPIError(apperrors.ErrCodeValidation,
			"must specify either hosts or prefix_length", nil)
	case rawHosts != "" && rawPrefix != "":
		return nil, nil, apperrors.NewAPIError(apperrors.ErrCodeValidation,
			"specify either hosts or prefix_length, not both", nil)
	case rawHosts != "":
		v, convErr := strconv.Atoi(rawHosts)
		if convErr != nil {
			return nil, nil, apperrors.NewAPIError(apperrors.ErrCodeValidation,
				"hosts must be an integer", convErr)
		}
		return &v, nil, nil
	default:
		v, convErr := strconv.Atoi(rawPrefix)
		if convErr != nil {
			return nil, nil, apperrors.NewAPIError(apperrors.ErrCodeValidation,
				"prefix_length must be an integer", convErr)
		}
		return nil, &v, nil
	}
}
