package engine

import (
	"fmt"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// Sizing policy constants. A primary block is always paired with a CGNAT block
// five prefix bits larger (32x the addresses), and every block reserves five
// addresses for network, broadcast, gateway, DNS and spare.
const (
	MinPrimaryPrefix = 20
	MaxPrimaryPrefix = 26
	MinCGNATPrefix   = 15
	MaxCGNATPrefix   = 21
	CGNATOffset      = 5
	PolicyReserve    = 5

	// MinHosts/MaxHosts bound host-count requests; MaxHosts is the usable
	// capacity of the largest primary block (/20).
	MinHosts = 1
	MaxHosts = 4091
)

// Sizing is the resolved pair of prefix lengths for one allocation.
type Sizing struct {
	PrimaryPrefix int
	CGNATPrefix   int
}

// UsableIPs returns the host capacity of a block with the given prefix length.
func UsableIPs(prefix int) int {
	return (1 << (32 - prefix)) - PolicyReserve
}

// ResolveHosts maps a requested host count to the smallest primary prefix
// whose usable capacity covers it, plus the paired CGNAT prefix.
func ResolveHosts(hosts int) (Sizing, error) {
	if hosts < MinHosts || hosts > MaxHosts {
		return Sizing{}, apperrors.NewSizingError(apperrors.ErrCodeHostCountOutOfRange,
			fmt.Sprintf("hosts must be between %d and %d", MinHosts, MaxHosts),
			ErrHostCountOutOfRange).WithMetadata("hosts", hosts)
	}

	for prefix := MaxPrimaryPrefix; prefix >= MinPrimaryPrefix; prefix-- {
		if UsableIPs(prefix) >= hosts {
			return newSizing(prefix)
		}
	}

	// hosts <= MaxHosts always fits a /20
	return Sizing{}, apperrors.NewSizingError(apperrors.ErrCodeHostCountOutOfRange,
		fmt.Sprintf("no primary prefix can satisfy %d hosts", hosts), ErrHostCountOutOfRange)
}

// ResolvePrefix validates an explicit primary prefix request and derives the
// paired CGNAT prefix.
func ResolvePrefix(prefix int) (Sizing, error) {
	if prefix < MinPrimaryPrefix || prefix > MaxPrimaryPrefix {
		return Sizing{}, apperrors.NewSizingError(apperrors.ErrCodePrefixOutOfRange,
			fmt.Sprintf("prefix_length must be between /%d and /%d", MinPrimaryPrefix, MaxPrimaryPrefix),
			ErrPrefixOutOfRange).WithMetadata("prefix_length", prefix)
	}
	return newSizing(prefix)
}

func newSizing(primary int) (Sizing, error) {
	cgnat := primary - CGNATOffset

	// primary in [20,26] puts cgnat in [15,21] by construction; anything else
	// is a bug in the caller, not a user input error
	if cgnat < MinCGNATPrefix || cgnat > MaxCGNATPrefix {
		return Sizing{}, apperrors.NewSystemError(apperrors.ErrCodeInternal,
			fmt.Sprintf("derived CGNAT prefix /%d outside [/%d, /%d]", cgnat, MinCGNATPrefix, MaxCGNATPrefix), false, nil)
	}

	return Sizing{PrimaryPrefix: primary, CGNATPrefix: cgnat}, nil
}
