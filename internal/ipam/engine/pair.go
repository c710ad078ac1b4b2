package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Coordinator reserves a primary block and its paired CGNAT block as one
// atomic unit: both reservations succeed or the primary one is rolled back
// before the failure is reported. No caller ever observes a half-paired
// allocation.
type Coordinator struct {
	primary *Allocator
	cgnat   *Allocator
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator over the two pool allocators.
func NewCoordinator(primary, cgnat *Allocator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		primary: primary,
		cgnat:   cgnat,
		logger:  logger,
	}
}

// Allocate reserves a paired (primary, CGNAT) block set for the resolved
// sizing. If the CGNAT reservation fails the primary block is released
// synchronously, so the primary pool is unchanged when an error returns.
func (c *Coordinator) Allocate(ctx context.Context, sizing Sizing) (Block, Block, error) {
	primary, err := c.primary.Reserve(sizing.PrimaryPrefix)
	if err != nil {
		return Block{}, Block{}, err
	}

	cgnat, err := c.cgnat.Reserve(sizing.CGNATPrefix)
	if err != nil {
		if rbErr := c.primary.Release(primary); rbErr != nil {
			// rollback failure means the primary free set is corrupt; the
			// allocator has already halted itself
			c.logger.ErrorContext(ctx, "failed to roll back primary reservation",
				slog.String("primary", primary.String()),
				slog.String("error", rbErr.Error()))
			return Block{}, Block{}, fmt.Errorf("cgnat reservation failed and primary rollback failed: %w", rbErr)
		}
		return Block{}, Block{}, err
	}

	c.logger.DebugContext(ctx, "reserved paired blocks",
		slog.String("primary", primary.String()),
		slog.String("cgnat", cgnat.String()))

	return primary, cgnat, nil
}

// Deallocate releases both blocks of an allocation, primary first. The ledger
// guarantees this is called at most once per allocation.
func (c *Coordinator) Deallocate(ctx context.Context, primary, cgnat Block) error {
	if err := c.primary.Release(primary); err != nil {
		return err
	}
	if err := c.cgnat.Release(cgnat); err != nil {
		return err
	}

	c.logger.DebugContext(ctx, "released paired blocks",
		slog.String("primary", primary.String()),
		slog.String("cgnat", cgnat.String()))

	return nil
}

// Restore marks a persisted pair as allocated during startup recovery.
func (c *Coordinator) Restore(primary, cgnat Block) error {
	if err := c.primary.Occupy(primary); err != nil {
		return err
	}
	return c.cgnat.Occupy(cgnat)
}
