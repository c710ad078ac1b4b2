package engine

import "errors"

// Sentinel errors for the allocation engine. Public operations surface these
// wrapped in DomainErrors so callers can match with errors.Is while the API
// layer maps on stable codes.
var (
	ErrHostCountOutOfRange = errors.New("host count out of range")
	ErrPrefixOutOfRange    = errors.New("prefix length out of range")
	ErrPoolExhausted       = errors.New("pool exhausted")
	ErrPoolHalted          = errors.New("pool halted after invariant violation")
	ErrInvalidRelease      = errors.New("release of a block that is not allocated")
	ErrAllocationNotFound  = errors.New("allocation not found")
	ErrVPCNotFound         = errors.New("vpc not found")
)
