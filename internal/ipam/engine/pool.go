package engine

import (
	"fmt"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// Pool is the static configuration of one address pool: its full span and the
// range of block prefix lengths it may hand out. Immutable after construction.
type Pool struct {
	Name           string
	Network        Block
	MinBlockPrefix int
	MaxBlockPrefix int
}

// NewPool builds a pool from CIDR notation and validates its block bounds.
func NewPool(name, cidr string, minBlockPrefix, maxBlockPrefix int) (Pool, error) {
	network, err := ParseBlock(cidr)
	if err != nil {
		return Pool{}, err
	}

	if minBlockPrefix < network.Prefix || minBlockPrefix > maxBlockPrefix || maxBlockPrefix > 30 {
		return Pool{}, apperrors.NewPoolError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("pool %s: block prefix bounds /%d../%d are invalid for span %s", name, minBlockPrefix, maxBlockPrefix, cidr), nil)
	}

	return Pool{
		Name:           name,
		Network:        network,
		MinBlockPrefix: minBlockPrefix,
		MaxBlockPrefix: maxBlockPrefix,
	}, nil
}

// PrimaryPool returns the fixed primary pool: 10.0.0.0/16 handing out /20../26.
func PrimaryPool() Pool {
	return Pool{
		Name:           "primary",
		Network:        MustParseBlock("10.0.0.0/16"),
		MinBlockPrefix: MinPrimaryPrefix,
		MaxBlockPrefix: MaxPrimaryPrefix,
	}
}

// CGNATPool returns the fixed CGNAT pool: 100.64.0.0/10 handing out /15../21.
func CGNATPool() Pool {
	return Pool{
		Name:           "cgnat",
		Network:        MustParseBlock("100.64.0.0/10"),
		MinBlockPrefix: MinCGNATPrefix,
		MaxBlockPrefix: MaxCGNATPrefix,
	}
}

// Contains reports whether the block lies entirely within the pool's span.
func (p Pool) Contains(b Block) bool {
	return p.Network.Contains(b)
}
