package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// Audit event names published by the ledger on mutating operations.
const (
	EventAllocationCreated = "allocation.created"
	EventAllocationMoved   = "allocation.moved"
	EventAllocationDeleted = "allocation.deleted"
	EventVPCDeleted        = "vpc.deleted"
)

// Labels are optional operator-supplied tags on an allocation.
type Labels struct {
	Environment string `json:"environment,omitempty"`
	Region      string `json:"region,omitempty"`
}

// Validate checks label values against the fixed vocabulary.
func (l Labels) Validate() error {
	switch l.Environment {
	case "", "dev", "stage", "prod":
	default:
		return apperrors.NewLedgerError(apperrors.ErrCodeValidation,
			fmt.Sprintf("environment must be one of dev, stage, prod; got %q", l.Environment), nil)
	}

	if l.Region != "" && strings.TrimSpace(l.Region) == "" {
		return apperrors.NewLedgerError(apperrors.ErrCodeValidation, "region cannot be blank", nil)
	}

	return nil
}

// CreateRequest carries the sizing input for a new allocation: exactly one of
// Hosts or PrefixLength must be set.
type CreateRequest struct {
	Hosts        *int
	PrefixLength *int
	Labels       Labels
}

func (r CreateRequest) resolve() (Sizing, error) {
	switch {
	case r.Hosts != nil && r.PrefixLength != nil:
		return Sizing{}, apperrors.NewLedgerError(apperrors.ErrCodeValidation,
			"specify either hosts or prefix_length, not both", nil)
	case r.Hosts != nil:
		return ResolveHosts(*r.Hosts)
	case r.PrefixLength != nil:
		return ResolvePrefix(*r.PrefixLength)
	default:
		return Sizing{}, apperrors.NewLedgerError(apperrors.ErrCodeValidation,
			"must specify either hosts or prefix_length", nil)
	}
}

// Allocation is one live VPC binding: a primary block and its paired CGNAT
// block. Blocks never change after creation; only the owning VPC may move.
type Allocation struct {
	ID              string
	VPC             string
	Primary         Block
	CGNAT           Block
	RequestedHosts  *int
	RequestedPrefix *int
	Labels          Labels
	RequestID       string
	CreatedAt       time.Time
}

func (a *Allocation) clone() *Allocation {
	cp := *a
	if a.RequestedHosts != nil {
		v := *a.RequestedHosts
		cp.RequestedHosts = &v
	}
	if a.RequestedPrefix != nil {
		v := *a.RequestedPrefix
		cp.RequestedPrefix = &v
	}
	return &cp
}

// VPCRecord is a persisted VPC row.
type VPCRecord struct {
	ID   int64
	Name string
}

// AllocationRecord is the persisted form of an Allocation.
type AllocationRecord struct {
	ID              string
	VPCID           int64
	VPCName         string
	PrimaryCIDR     string
	CGNATCIDR       string
	RequestedHosts  *int
	RequestedPrefix *int
	Labels          Labels
	RequestID       string
	CreatedAt       time.Time
}

// Repository persists VPC and allocation rows on behalf of the ledger.
type Repository interface {
	EnsureVPC(ctx context.Context, name string) (int64, error)
	DeleteVPC(ctx context.Context, id int64) error
	InsertAllocation(ctx context.Context, rec AllocationRecord) error
	UpdateAllocationVPC(ctx context.Context, id string, vpcID int64) error
	DeleteAllocation(ctx context.Context, id string) error
	LoadState(ctx context.Context) ([]VPCRecord, []AllocationRecord, error)
}

// EventSink receives audit events for mutating ledger operations. Publishing
// is fire-and-forget; failures must not affect the operation.
type EventSink interface {
	Publish(ctx context.Context, name string, fields map[string]any)
}

// Ledger is the durable record of VPC to (primary, CGNAT) bindings. It owns
// the in-memory registry, drives the pairing coordinator, and writes through
// to the repository. A single mutex serializes all mutating operations, which
// also gives same-allocation Move/Delete a total order.
type Ledger struct {
	mu          sync.Mutex
	coordinator *Coordinator
	repo        Repository
	events      EventSink
	logger      *slog.Logger

	allocations map[string]*Allocation
	vpcs        map[string]int64
}

// NewLedger creates a ledger over the coordinator and repository. The event
// sink may be nil.
func NewLedger(coordinator *Coordinator, repo Repository, events EventSink, logger *slog.Logger) *Ledger {
	return &Ledger{
		coordinator: coordinator,
		repo:        repo,
		events:      events,
		logger:      logger,
		allocations: make(map[string]*Allocation),
		vpcs:        make(map[string]int64),
	}
}

// Restore rebuilds the registry and both pools' free sets from the persisted
// live allocations. The free set is a deterministic function of pool bounds
// minus live blocks, so no allocator state needs to be stored.
func (l *Ledger) Restore(ctx context.Context) error {
	vpcs, allocs, err := l.repo.LoadState(ctx)
	if err != nil {
		return apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to load ledger state", true, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range vpcs {
		l.vpcs[v.Name] = v.ID
	}

	for _, rec := range allocs {
		primary, err := ParseBlock(rec.PrimaryCIDR)
		if err != nil {
			return fmt.Errorf("allocation %s: %w", rec.ID, err)
		}
		cgnat, err := ParseBlock(rec.CGNATCIDR)
		if err != nil {
			return fmt.Errorf("allocation %s: %w", rec.ID, err)
		}

		if err := l.coordinator.Restore(primary, cgnat); err != nil {
			return fmt.Errorf("allocation %s: %w", rec.ID, err)
		}

		l.allocations[rec.ID] = &Allocation{
			ID:              rec.ID,
			VPC:             rec.VPCName,
			Primary:         primary,
			CGNAT:           cgnat,
			RequestedHosts:  rec.RequestedHosts,
			RequestedPrefix: rec.RequestedPrefix,
			Labels:          rec.Labels,
			RequestID:       rec.RequestID,
			CreatedAt:       rec.CreatedAt,
		}
	}

	l.logger.InfoContext(ctx, "ledger state restored",
		slog.Int("vpcs", len(l.vpcs)),
		slog.Int("allocations", len(l.allocations)))

	return nil
}

// Create sizes, reserves and persists a new paired allocation for the named
// VPC, creating the VPC if it does not exist yet.
func (l *Ledger) Create(ctx context.Context, vpcName string, req CreateRequest) (*Allocation, error) {
	if err := validateVPCName(vpcName); err != nil {
		return nil, err
	}
	if err := req.Labels.Validate(); err != nil {
		return nil, err
	}

	sizing, err := req.resolve()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	vpcID, err := l.ensureVPCLocked(ctx, vpcName)
	if err != nil {
		return nil, err
	}

	primary, cgnat, err := l.coordinator.Allocate(ctx, sizing)
	if err != nil {
		return nil, err
	}

	alloc := &Allocation{
		ID:              uuid.NewString(),
		VPC:             vpcName,
		Primary:         primary,
		CGNAT:           cgnat,
		RequestedHosts:  req.Hosts,
		RequestedPrefix: req.PrefixLength,
		Labels:          req.Labels,
		RequestID:       applogger.GetRequestID(ctx),
		CreatedAt:       time.Now().UTC(),
	}

	if err := l.repo.InsertAllocation(ctx, recordOf(alloc, vpcID)); err != nil {
		// the row never existed, so hand both blocks back
		if rbErr := l.coordinator.Deallocate(ctx, primary, cgnat); rbErr != nil {
			l.logger.ErrorContext(ctx, "failed to roll back reservation after persist failure",
				slog.String("allocation_id", alloc.ID),
				slog.String("error", rbErr.Error()))
		}
		return nil, apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to persist allocation", true, err)
	}

	l.allocations[alloc.ID] = alloc

	l.publish(ctx, EventAllocationCreated, map[string]any{
		"allocation_id": alloc.ID,
		"vpc":           alloc.VPC,
		"primary_cidr":  alloc.Primary.String(),
		"cgnat_cidr":    alloc.CGNAT.String(),
	})

	l.logger.InfoContext(ctx, "allocation created",
		slog.String("allocation_id", alloc.ID),
		slog.String("vpc", alloc.VPC),
		slog.String("primary", alloc.Primary.String()),
		slog.String("cgnat", alloc.CGNAT.String()))

	return alloc.clone(), nil
}

// DryRun performs sizing and a non-committing availability probe, returning
// the blocks that would be handed out. Nothing is persisted and the free sets
// are left exactly as found.
func (l *Ledger) DryRun(ctx context.Context, vpcName string, req CreateRequest) (*Allocation, error) {
	if err := validateVPCName(vpcName); err != nil {
		return nil, err
	}
	if err := req.Labels.Validate(); err != nil {
		return nil, err
	}

	sizing, err := req.resolve()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	primary, cgnat, err := l.coordinator.Allocate(ctx, sizing)
	if err != nil {
		return nil, err
	}
	if err := l.coordinator.Deallocate(ctx, primary, cgnat); err != nil {
		return nil, err
	}

	return &Allocation{
		VPC:             vpcName,
		Primary:         primary,
		CGNAT:           cgnat,
		RequestedHosts:  req.Hosts,
		RequestedPrefix: req.PrefixLength,
		Labels:          req.Labels,
		RequestID:       applogger.GetRequestID(ctx),
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// List returns a snapshot of all live allocations, ordered by VPC name then
// primary base address. The ordering is stable within a call.
func (l *Ledger) List(ctx context.Context) []*Allocation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Allocation, 0, len(l.allocations))
	for _, a := range l.allocations {
		out = append(out, a.clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].VPC != out[j].VPC {
			return out[i].VPC < out[j].VPC
		}
		return out[i].Primary.Base < out[j].Primary.Base
	})

	return out
}

// Move re-parents an allocation to another VPC, creating the target VPC if
// needed. Blocks are untouched.
func (l *Ledger) Move(ctx context.Context, allocationID, newVPCName string) error {
	if err := validateVPCName(newVPCName); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	alloc, ok := l.allocations[allocationID]
	if !ok {
		return notFoundErr(allocationID)
	}

	vpcID, err := l.ensureVPCLocked(ctx, newVPCName)
	if err != nil {
		return err
	}

	if err := l.repo.UpdateAllocationVPC(ctx, allocationID, vpcID); err != nil {
		return apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to re-parent allocation", true, err)
	}

	oldVPC := alloc.VPC
	alloc.VPC = newVPCName

	l.publish(ctx, EventAllocationMoved, map[string]any{
		"allocation_id": allocationID,
		"old_vpc":       oldVPC,
		"new_vpc":       newVPCName,
	})

	l.logger.InfoContext(ctx, "allocation moved",
		slog.String("allocation_id", allocationID),
		slog.String("old_vpc", oldVPC),
		slog.String("new_vpc", newVPCName))

	return nil
}

// Delete removes an allocation and returns both its blocks to their pools.
func (l *Ledger) Delete(ctx context.Context, allocationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.deleteLocked(ctx, allocationID)
}

// DeleteVPC cascades over every allocation owned by the VPC, deletes each one
// (returning its blocks), then removes the VPC itself. A VPC with zero
// allocations can still be deleted; an unknown name is an error.
func (l *Ledger) DeleteVPC(ctx context.Context, vpcName string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vpcID, ok := l.vpcs[vpcName]
	if !ok {
		return 0, apperrors.NewLedgerError(apperrors.ErrCodeVPCNotFound,
			fmt.Sprintf("vpc %q not found", vpcName), ErrVPCNotFound).WithMetadata("vpc", vpcName)
	}

	var ids []string
	for id, a := range l.allocations {
		if a.VPC == vpcName {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := l.deleteLocked(ctx, id); err != nil {
			return 0, err
		}
	}

	if err := l.repo.DeleteVPC(ctx, vpcID); err != nil {
		return 0, apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to delete vpc", true, err)
	}
	delete(l.vpcs, vpcName)

	l.publish(ctx, EventVPCDeleted, map[string]any{
		"vpc":           vpcName,
		"deleted_count": len(ids),
	})

	l.logger.InfoContext(ctx, "vpc deleted",
		slog.String("vpc", vpcName),
		slog.Int("deleted_count", len(ids)))

	return len(ids), nil
}

// CreateVPC registers a VPC explicitly. Idempotent.
func (l *Ledger) CreateVPC(ctx context.Context, vpcName string) error {
	if err := validateVPCName(vpcName); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.ensureVPCLocked(ctx, vpcName)
	return err
}

func (l *Ledger) deleteLocked(ctx context.Context, allocationID string) error {
	alloc, ok := l.allocations[allocationID]
	if !ok {
		return notFoundErr(allocationID)
	}

	if err := l.repo.DeleteAllocation(ctx, allocationID); err != nil {
		return apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to delete allocation", true, err)
	}

	if err := l.coordinator.Deallocate(ctx, alloc.Primary, alloc.CGNAT); err != nil {
		// free-set corruption; the affected pool has halted itself
		l.logger.ErrorContext(ctx, "failed to release blocks for deleted allocation",
			slog.String("allocation_id", allocationID),
			slog.String("error", err.Error()))
		return err
	}

	delete(l.allocations, allocationID)

	l.publish(ctx, EventAllocationDeleted, map[string]any{
		"allocation_id": allocationID,
		"vpc":           alloc.VPC,
		"primary_cidr":  alloc.Primary.String(),
		"cgnat_cidr":    alloc.CGNAT.String(),
	})

	l.logger.InfoContext(ctx, "allocation deleted",
		slog.String("allocation_id", allocationID),
		slog.String("vpc", alloc.VPC))

	return nil
}

func (l *Ledger) ensureVPCLocked(ctx context.Context, name string) (int64, error) {
	if id, ok := l.vpcs[name]; ok {
		return id, nil
	}

	id, err := l.repo.EnsureVPC(ctx, name)
	if err != nil {
		return 0, apperrors.NewDatabaseError(apperrors.ErrCodeDatabase, "failed to create vpc", true, err)
	}

	l.vpcs[name] = id
	return id, nil
}

func (l *Ledger) publish(ctx context.Context, name string, fields map[string]any) {
	if l.events == nil {
		return
	}
	l.events.Publish(ctx, name, fields)
}

func recordOf(a *Allocation, vpcID int64) AllocationRecord {
	return AllocationRecord{
		ID:              a.ID,
		VPCID:           vpcID,
		VPCName:         a.VPC,
		PrimaryCIDR:     a.Primary.String(),
		CGNATCIDR:       a.CGNAT.String(),
		RequestedHosts:  a.RequestedHosts,
		RequestedPrefix: a.RequestedPrefix,
		Labels:          a.Labels,
		RequestID:       a.RequestID,
		CreatedAt:       a.CreatedAt,
	}
}

func notFoundErr(allocationID string) error {
	return apperrors.NewLedgerError(apperrors.ErrCodeAllocationNotFound,
		fmt.Sprintf("allocation %q not found", allocationID),
		ErrAllocationNotFound).WithMetadata("allocation_id", allocationID)
}

func validateVPCName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewLedgerError(apperrors.ErrCodeValidation, "vpc name cannot be empty", nil)
	}
	if len(name) > 255 {
		return apperrors.NewLedgerError(apperrors.ErrCodeValidation, "vpc name too long (max 255 characters)", nil)
	}
	return nil
}
