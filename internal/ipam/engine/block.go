package engine

import (
	"fmt"
	"net"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// Block is a naturally aligned IPv4 CIDR identified by value: base address and
// prefix length. Two blocks of this family are either disjoint or one fully
// contains the other, which is what makes buddy split/merge work.
type Block struct {
	Base   uint32
	Prefix int
}

// NewBlock creates a Block, normalizing the base to its network address.
func NewBlock(base uint32, prefix int) Block {
	return Block{Base: base & prefixMask(prefix), Prefix: prefix}
}

// ParseBlock parses CIDR notation into a Block. The address must be the
// aligned network address of the range.
func ParseBlock(cidr string) (Block, error) {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return Block{}, apperrors.NewPoolError(apperrors.ErrCodeInvalidCIDR, fmt.Sprintf("invalid CIDR notation %q", cidr), err)
	}

	v4 := ip.To4()
	if v4 == nil {
		return Block{}, apperrors.NewPoolError(apperrors.ErrCodeInvalidCIDR, fmt.Sprintf("%q is not an IPv4 CIDR", cidr), nil)
	}
	if !ip.Equal(network.IP) {
		return Block{}, apperrors.NewPoolError(apperrors.ErrCodeInvalidCIDR, fmt.Sprintf("%q is not aligned to its mask", cidr), nil)
	}

	prefix, _ := network.Mask.Size()
	return Block{Base: uint32FromIP(v4), Prefix: prefix}, nil
}

// MustParseBlock is ParseBlock for static pool definitions and tests.
func MustParseBlock(cidr string) Block {
	b, err := ParseBlock(cidr)
	if err != nil {
		panic(err)
	}
	return b
}

// Size returns the number of addresses the block spans.
func (b Block) Size() uint32 {
	return 1 << (32 - b.Prefix)
}

// UsableIPs returns the address count minus the policy reserve.
func (b Block) UsableIPs() int {
	return int(b.Size()) - PolicyReserve
}

// Buddy returns the other half of the block's immediate parent range.
func (b Block) Buddy() Block {
	return Block{Base: b.Base ^ b.Size(), Prefix: b.Prefix}
}

// Parent returns the aligned range one prefix bit up that contains this block.
func (b Block) Parent() Block {
	return Block{Base: b.Base &^ b.Size(), Prefix: b.Prefix - 1}
}

// Contains reports whether o falls entirely within b.
func (b Block) Contains(o Block) bool {
	return b.Prefix <= o.Prefix && o.Base&prefixMask(b.Prefix) == b.Base
}

// Overlaps reports whether the two blocks share any addresses.
func (b Block) Overlaps(o Block) bool {
	return b.Contains(o) || o.Contains(b)
}

// String renders the block in CIDR notation, e.g. "10.0.0.0/24".
func (b Block) String() string {
	return fmt.Sprintf("%s/%d", ipFromUint32(b.Base), b.Prefix)
}

func prefixMask(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefix)
}

func ipFromUint32(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func uint32FromIP(ip net.IP) uint32 {
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
