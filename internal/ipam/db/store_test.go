package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestNewStoreSchema(t *testing.T) {
	db, store := NewTestDB(t)

	if store == nil {
		t.Fatal("expected store to be non-nil")
	}

	for _, table := range []string{"vpcs", "allocations"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema: %v", err)
		}
		if count != 1 {
			t.Errorf("expected table %q to exist", table)
		}
	}

	// Setup is idempotent
	if err := store.(*SQLStore).Setup(context.Background()); err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}
}

func TestCreateVpcIdempotent(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	first, err := store.CreateVpc(ctx, "vpc-a")
	if err != nil {
		t.Fatalf("CreateVpc failed: %v", err)
	}
	if first.Name != "vpc-a" {
		t.Errorf("expected name vpc-a, got %s", first.Name)
	}

	second, err := store.CreateVpc(ctx, "vpc-a")
	if err != nil {
		t.Fatalf("second CreateVpc failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same id %d, got %d", first.ID, second.ID)
	}
}

func TestCreateAndGetAllocation(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpc, err := store.CreateVpc(ctx, "vpc-a")
	if err != nil {
		t.Fatalf("CreateVpc failed: %v", err)
	}

	params := CreateAllocationParams{
		ID:             "alloc-1",
		VpcID:          vpc.ID,
		PrimaryCidr:    "10.0.0.0/25",
		CgnatCidr:      "100.64.0.0/20",
		RequestedHosts: sql.NullInt64{Int64: 100, Valid: true},
		Labels:         `{"environment":"dev"}`,
		RequestID:      "req-1",
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateAllocation(ctx, params); err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	got, err := store.GetAllocation(ctx, "alloc-1")
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if got.VpcName != "vpc-a" {
		t.Errorf("expected vpc name vpc-a, got %s", got.VpcName)
	}
	if got.PrimaryCidr != params.PrimaryCidr {
		t.Errorf("expected primary %s, got %s", params.PrimaryCidr, got.PrimaryCidr)
	}
	if !got.RequestedHosts.Valid || got.RequestedHosts.Int64 != 100 {
		t.Errorf("expected requested_hosts 100, got %+v", got.RequestedHosts)
	}
	if got.RequestedPrefix.Valid {
		t.Errorf("expected requested_prefix NULL, got %+v", got.RequestedPrefix)
	}
}

func TestUniqueCidrConstraint(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpc, err := store.CreateVpc(ctx, "vpc-a")
	if err != nil {
		t.Fatalf("CreateVpc failed: %v", err)
	}

	base := CreateAllocationParams{
		VpcID:       vpc.ID,
		PrimaryCidr: "10.0.0.0/25",
		CgnatCidr:   "100.64.0.0/20",
		Labels:      "{}",
		CreatedAt:   time.Now().UTC(),
	}

	first := base
	first.ID = "alloc-1"
	if err := store.CreateAllocation(ctx, first); err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	dup := base
	dup.ID = "alloc-2"
	if err := store.CreateAllocation(ctx, dup); err == nil {
		t.Error("expected duplicate primary_cidr to be rejected")
	}
}

func TestUpdateAllocationVpc(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpcA, _ := store.CreateVpc(ctx, "vpc-a")
	vpcB, _ := store.CreateVpc(ctx, "vpc-b")

	err := store.CreateAllocation(ctx, CreateAllocationParams{
		ID:          "alloc-1",
		VpcID:       vpcA.ID,
		PrimaryCidr: "10.0.0.0/25",
		CgnatCidr:   "100.64.0.0/20",
		Labels:      "{}",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	err = store.UpdateAllocationVpc(ctx, UpdateAllocationVpcParams{ID: "alloc-1", VpcID: vpcB.ID})
	if err != nil {
		t.Fatalf("UpdateAllocationVpc failed: %v", err)
	}

	got, err := store.GetAllocation(ctx, "alloc-1")
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if got.VpcName != "vpc-b" {
		t.Errorf("expected vpc-b after move, got %s", got.VpcName)
	}

	err = store.UpdateAllocationVpc(ctx, UpdateAllocationVpcParams{ID: "missing", VpcID: vpcB.ID})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for missing allocation, got %v", err)
	}
}

func TestDeleteAllocation(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpc, _ := store.CreateVpc(ctx, "vpc-a")
	err := store.CreateAllocation(ctx, CreateAllocationParams{
		ID:          "alloc-1",
		VpcID:       vpc.ID,
		PrimaryCidr: "10.0.0.0/25",
		CgnatCidr:   "100.64.0.0/20",
		Labels:      "{}",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	if err := store.DeleteAllocation(ctx, "alloc-1"); err != nil {
		t.Fatalf("DeleteAllocation failed: %v", err)
	}

	_, err = store.GetAllocation(ctx, "alloc-1")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows after delete, got %v", err)
	}

	if err := store.DeleteAllocation(ctx, "alloc-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for second delete, got %v", err)
	}
}

func TestListAllocationsOrdering(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpcB, _ := store.CreateVpc(ctx, "vpc-b")
	vpcA, _ := store.CreateVpc(ctx, "vpc-a")

	rows := []CreateAllocationParams{
		{ID: "a1", VpcID: vpcB.ID, PrimaryCidr: "10.0.0.0/25", CgnatCidr: "100.64.0.0/20"},
		{ID: "a2", VpcID: vpcA.ID, PrimaryCidr: "10.0.2.0/23", CgnatCidr: "100.66.0.0/18"},
	}
	for _, p := range rows {
		p.Labels = "{}"
		p.CreatedAt = time.Now().UTC()
		if err := store.CreateAllocation(ctx, p); err != nil {
			t.Fatalf("CreateAllocation %s failed: %v", p.ID, err)
		}
	}

	list, err := store.ListAllocations(ctx)
	if err != nil {
		t.Fatalf("ListAllocations failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(list))
	}
	if list[0].VpcName != "vpc-a" || list[1].VpcName != "vpc-b" {
		t.Errorf("expected vpc-name ordering, got %s then %s", list[0].VpcName, list[1].VpcName)
	}
}

func TestExecTxRollsBack(t *testing.T) {
	_, store := NewTestDB(t)
	ctx := context.Background()

	vpc, _ := store.CreateVpc(ctx, "vpc-a")

	err := store.ExecTx(ctx, func(q *Queries) error {
		if err := q.CreateAllocation(ctx, CreateAllocationParams{
			ID:          "alloc-1",
			VpcID:       vpc.ID,
			PrimaryCidr: "10.0.0.0/25",
			CgnatCidr:   "100.64.0.0/20",
			Labels:      "{}",
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	if err == nil {
		t.Fatal("expected ExecTx to return the callback error")
	}

	if _, err := store.GetAllocation(ctx, "alloc-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected rollback to discard the row, got %v", err)
	}
}
