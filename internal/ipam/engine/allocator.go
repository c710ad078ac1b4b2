package engine

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
)

// Allocator owns the free/allocated state of a single pool. The free set is
// kept as a buddy decomposition: disjoint, aligned blocks, with no two free
// buddies ever left unmerged. All mutation happens under a single mutex so at
// most one Reserve or Release commits at a time.
type Allocator struct {
	mu     sync.Mutex
	pool   Pool
	free   map[int]map[uint32]struct{}
	taken  map[Block]struct{}
	halted bool
}

// NewAllocator creates an allocator with the pool's full span free.
func NewAllocator(pool Pool) *Allocator {
	free := make(map[int]map[uint32]struct{})
	free[pool.Network.Prefix] = map[uint32]struct{}{pool.Network.Base: {}}

	return &Allocator{
		pool:  pool,
		free:  free,
		taken: make(map[Block]struct{}),
	}
}

// Pool returns the allocator's static pool configuration.
func (a *Allocator) Pool() Pool {
	return a.pool
}

// Halted reports whether the allocator has stopped after detecting free-set
// corruption. A halted allocator rejects all further mutation.
func (a *Allocator) Halted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halted
}

// Reserve carves out a block of the requested prefix length. It picks the
// smallest free block that fits, lowest base address first, and buddy-splits
// it down to the exact size. Fails fast with ErrPoolExhausted when no free
// block is large enough; there is no queueing.
func (a *Allocator) Reserve(prefix int) (Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return Block{}, a.haltedErr()
	}
	if prefix < a.pool.MinBlockPrefix || prefix > a.pool.MaxBlockPrefix {
		return Block{}, apperrors.NewPoolError(apperrors.ErrCodePrefixOutOfRange,
			fmt.Sprintf("pool %s only hands out /%d../%d blocks, requested /%d", a.pool.Name, a.pool.MinBlockPrefix, a.pool.MaxBlockPrefix, prefix),
			ErrPrefixOutOfRange)
	}

	// Best fit: walk from the exact size up to the pool span; the first
	// non-empty bucket holds the smallest sufficient blocks.
	for q := prefix; q >= a.pool.Network.Prefix; q-- {
		bases := a.free[q]
		if len(bases) == 0 {
			continue
		}

		base, ok := lowestBase(bases)
		if !ok {
			continue
		}

		a.removeFree(Block{Base: base, Prefix: q})
		block := a.splitTo(Block{Base: base, Prefix: q}, prefix)
		a.taken[block] = struct{}{}
		return block, nil
	}

	return Block{}, apperrors.NewPoolError(apperrors.ErrCodePoolExhausted,
		fmt.Sprintf("no free /%d block in pool %s (%s)", prefix, a.pool.Name, a.pool.Network),
		ErrPoolExhausted).WithMetadata("pool", a.pool.Name).WithMetadata("prefix", prefix)
}

// Release returns a reserved block to the free set and merges buddies upward
// until the buddy is missing or the pool span is reached. Releasing a block
// that is not allocated indicates free-set corruption: the allocator halts
// rather than risk handing out overlapping space.
func (a *Allocator) Release(block Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return a.haltedErr()
	}

	if _, ok := a.taken[block]; !ok {
		a.halted = true
		return apperrors.NewPoolError(apperrors.ErrCodeInvalidRelease,
			fmt.Sprintf("block %s is not allocated in pool %s; halting pool", block, a.pool.Name),
			ErrInvalidRelease).WithMetadata("pool", a.pool.Name).WithMetadata("block", block.String())
	}

	delete(a.taken, block)
	a.coalesce(block)
	return nil
}

// Occupy carves a specific block out of the free set, splitting whatever free
// ancestor contains it. Used to rebuild allocator state from the set of live
// allocations at startup.
func (a *Allocator) Occupy(block Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return a.haltedErr()
	}
	if !a.pool.Contains(block) {
		return apperrors.NewPoolError(apperrors.ErrCodeInvalidCIDR,
			fmt.Sprintf("block %s lies outside pool %s (%s)", block, a.pool.Name, a.pool.Network), nil)
	}

	for q := block.Prefix; q >= a.pool.Network.Prefix; q-- {
		ancestor := Block{Base: block.Base & prefixMask(q), Prefix: q}
		if _, ok := a.free[q][ancestor.Base]; !ok {
			continue
		}

		a.removeFree(ancestor)
		a.splitAround(ancestor, block)
		a.taken[block] = struct{}{}
		return nil
	}

	return apperrors.NewPoolError(apperrors.ErrCodePoolExhausted,
		fmt.Sprintf("block %s is not free in pool %s", block, a.pool.Name),
		ErrPoolExhausted).WithMetadata("pool", a.pool.Name).WithMetadata("block", block.String())
}

// Snapshot returns the free set as a sorted slice of blocks.
func (a *Allocator) Snapshot() []Block {
	a.mu.Lock()
	defer a.mu.Unlock()

	var blocks []Block
	for prefix, bases := range a.free {
		for base := range bases {
			blocks = append(blocks, Block{Base: base, Prefix: prefix})
		}
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Base != blocks[j].Base {
			return blocks[i].Base < blocks[j].Base
		}
		return blocks[i].Prefix < blocks[j].Prefix
	})

	return blocks
}

// splitTo halves the block until it reaches the target prefix, keeping the
// low half and freeing each high-half sibling.
func (a *Allocator) splitTo(block Block, prefix int) Block {
	for block.Prefix < prefix {
		low := Block{Base: block.Base, Prefix: block.Prefix + 1}
		a.insertFree(low.Buddy())
		block = low
	}
	return block
}

// splitAround halves the ancestor until only the target remains allocated,
// freeing every sibling half that does not contain the target.
func (a *Allocator) splitAround(ancestor, target Block) {
	for ancestor.Prefix < target.Prefix {
		low := Block{Base: ancestor.Base, Prefix: ancestor.Prefix + 1}
		high := low.Buddy()

		if low.Contains(target) {
			a.insertFree(high)
			ancestor = low
		} else {
			a.insertFree(low)
			ancestor = high
		}
	}
}

// coalesce inserts the block into the free set, merging with its buddy
// repeatedly while the buddy is also free.
func (a *Allocator) coalesce(block Block) {
	for block.Prefix > a.pool.Network.Prefix {
		buddy := block.Buddy()
		if _, ok := a.free[buddy.Prefix][buddy.Base]; !ok {
			break
		}
		a.removeFree(buddy)
		block = block.Parent()
	}
	a.insertFree(block)
}

func (a *Allocator) insertFree(block Block) {
	bases := a.free[block.Prefix]
	if bases == nil {
		bases = make(map[uint32]struct{})
		a.free[block.Prefix] = bases
	}
	bases[block.Base] = struct{}{}
}

func (a *Allocator) removeFree(block Block) {
	delete(a.free[block.Prefix], block.Base)
}

func (a *Allocator) haltedErr() error {
	return apperrors.NewPoolError(apperrors.ErrCodePoolHalted,
		fmt.Sprintf("pool %s is halted after an invariant violation", a.pool.Name),
		ErrPoolHalted).WithMetadata("pool", a.pool.Name)
}

func lowestBase(bases map[uint32]struct{}) (uint32, bool) {
	var min uint32
	found := false
	for base := range bases {
		if !found || base < min {
			min = base
			found = true
		}
	}
	return min, found
}
