package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
)

// LedgerRepository adapts the Store to the engine's Repository interface,
// translating between engine records and SQL rows.
type LedgerRepository struct {
	store Store
}

// NewLedgerRepository wraps the store for use by the ledger.
func NewLedgerRepository(store Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

var _ engine.Repository = (*LedgerRepository)(nil)

func (r *LedgerRepository) EnsureVPC(ctx context.Context, name string) (int64, error) {
	vpc, err := r.store.CreateVpc(ctx, name)
	if err != nil {
		return 0, err
	}
	return vpc.ID, nil
}

func (r *LedgerRepository) DeleteVPC(ctx context.Context, id int64) error {
	return r.store.DeleteVpc(ctx, id)
}

func (r *LedgerRepository) InsertAllocation(ctx context.Context, rec engine.AllocationRecord) error {
	labels, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	return r.store.CreateAllocation(ctx, CreateAllocationParams{
		ID:              rec.ID,
		VpcID:           rec.VPCID,
		PrimaryCidr:     rec.PrimaryCIDR,
		CgnatCidr:       rec.CGNATCIDR,
		RequestedHosts:  nullableInt(rec.RequestedHosts),
		RequestedPrefix: nullableInt(rec.RequestedPrefix),
		Labels:          string(labels),
		RequestID:       rec.RequestID,
		CreatedAt:       rec.CreatedAt,
	})
}

func (r *LedgerRepository) UpdateAllocationVPC(ctx context.Context, id string, vpcID int64) error {
	return r.store.UpdateAllocationVpc(ctx, UpdateAllocationVpcParams{ID: id, VpcID: vpcID})
}

func (r *LedgerRepository) DeleteAllocation(ctx context.Context, id string) error {
	return r.store.DeleteAllocation(ctx, id)
}

func (r *LedgerRepository) LoadState(ctx context.Context) ([]engine.VPCRecord, []engine.AllocationRecord, error) {
	vpcs, err := r.store.ListVpcs(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.store.ListAllocations(ctx)
	if err != nil {
		return nil, nil, err
	}

	vpcRecords := make([]engine.VPCRecord, 0, len(vpcs))
	for _, v := range vpcs {
		vpcRecords = append(vpcRecords, engine.VPCRecord{ID: v.ID, Name: v.Name})
	}

	allocRecords := make([]engine.AllocationRecord, 0, len(rows))
	for _, row := range rows {
		var labels engine.Labels
		if row.Labels != "" {
			if err := json.Unmarshal([]byte(row.Labels), &labels); err != nil {
				return nil, nil, fmt.Errorf("allocation %s: failed to decode labels: %w", row.ID, err)
			}
		}

		allocRecords = append(allocRecords, engine.AllocationRecord{
			ID:              row.ID,
			VPCID:           row.VpcID,
			VPCName:         row.VpcName,
			PrimaryCIDR:     row.PrimaryCidr,
			CGNATCIDR:       row.CgnatCidr,
			RequestedHosts:  intFromNullable(row.RequestedHosts),
			RequestedPrefix: intFromNullable(row.RequestedPrefix),
			Labels:          labels,
			RequestID:       row.RequestID,
			CreatedAt:       row.CreatedAt,
		})
	}

	return vpcRecords, allocRecords, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNullable(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
