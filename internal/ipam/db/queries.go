package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query methods run
// inside and outside transactions.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the prepared query methods over a DBTX.
type Queries struct {
	db DBTX
}

// New creates Queries over the given connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Vpc is a row of the vpcs table.
type Vpc struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Allocation is a row of the allocations table joined with its VPC name.
type Allocation struct {
	ID              string
	VpcID           int64
	VpcName         string
	PrimaryCidr     string
	CgnatCidr       string
	RequestedHosts  sql.NullInt64
	RequestedPrefix sql.NullInt64
	Labels          string
	RequestID       string
	CreatedAt       time.Time
}

// Querier defines all query methods, implemented by Queries and embedded in
// the Store interface.
type Querier interface {
	CreateVpc(ctx context.Context, name string) (Vpc, error)
	GetVpcByName(ctx context.Context, name string) (Vpc, error)
	ListVpcs(ctx context.Context) ([]Vpc, error)
	DeleteVpc(ctx context.Context, id int64) error
	CreateAllocation(ctx context.Context, arg CreateAllocationParams) error
	GetAllocation(ctx context.Context, id string) (Allocation, error)
	ListAllocations(ctx context.Context) ([]Allocation, error)
	UpdateAllocationVpc(ctx context.Context, arg UpdateAllocationVpcParams) error
	DeleteAllocation(ctx context.Context, id string) error
}

var _ Querier = (*Queries)(nil)

const createVpc = `
INSERT INTO vpcs (name) VALUES (?)
ON CONFLICT(name) DO NOTHING
`

// CreateVpc inserts the VPC if missing and returns its row either way.
func (q *Queries) CreateVpc(ctx context.Context, name string) (Vpc, error) {
	if _, err := q.db.ExecContext(ctx, createVpc, name); err != nil {
		return Vpc{}, err
	}
	return q.GetVpcByName(ctx, name)
}

const getVpcByName = `
SELECT id, name, created_at FROM vpcs WHERE name = ?
`

func (q *Queries) GetVpcByName(ctx context.Context, name string) (Vpc, error) {
	row := q.db.QueryRowContext(ctx, getVpcByName, name)
	var v Vpc
	err := row.Scan(&v.ID, &v.Name, &v.CreatedAt)
	return v, err
}

const listVpcs = `
SELECT id, name, created_at FROM vpcs ORDER BY name
`

func (q *Queries) ListVpcs(ctx context.Context) ([]Vpc, error) {
	rows, err := q.db.QueryContext(ctx, listVpcs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Vpc
	for rows.Next() {
		var v Vpc
		if err := rows.Scan(&v.ID, &v.Name, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const deleteVpc = `
DELETE FROM vpcs WHERE id = ?
`

func (q *Queries) DeleteVpc(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteVpc, id)
	return err
}

// CreateAllocationParams holds the columns of a new allocation row.
type CreateAllocationParams struct {
	ID              string
	VpcID           int64
	PrimaryCidr     string
	CgnatCidr       string
	RequestedHosts  sql.NullInt64
	RequestedPrefix sql.NullInt64
	Labels          string
	RequestID       string
	CreatedAt       time.Time
}

const createAllocation = `
INSERT INTO allocations (
    id, vpc_id, primary_cidr, cgnat_cidr,
    requested_hosts, requested_prefix, labels, request_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateAllocation(ctx context.Context, arg CreateAllocationParams) error {
	_, err := q.db.ExecContext(ctx, createAllocation,
		arg.ID, arg.VpcID, arg.PrimaryCidr, arg.CgnatCidr,
		arg.RequestedHosts, arg.RequestedPrefix, arg.Labels, arg.RequestID, arg.CreatedAt)
	return err
}

const getAllocation = `
SELECT a.id, a.vpc_id, v.name, a.primary_cidr, a.cgnat_cidr,
       a.requested_hosts, a.requested_prefix, a.labels, a.request_id, a.created_at
FROM allocations a
JOIN vpcs v ON v.id = a.vpc_id
WHERE a.id = ?
`

func (q *Queries) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	row := q.db.QueryRowContext(ctx, getAllocation, id)
	var a Allocation
	err := row.Scan(&a.ID, &a.VpcID, &a.VpcName, &a.PrimaryCidr, &a.CgnatCidr,
		&a.RequestedHosts, &a.RequestedPrefix, &a.Labels, &a.RequestID, &a.CreatedAt)
	return a, err
}

const listAllocations = `
SELECT a.id, a.vpc_id, v.name, a.primary_cidr, a.cgnat_cidr,
       a.requested_hosts, a.requested_prefix, a.labels, a.request_id, a.created_at
FROM allocations a
JOIN vpcs v ON v.id = a.vpc_id
ORDER BY v.name, a.primary_cidr
`

func (q *Queries) ListAllocations(ctx context.Context) ([]Allocation, error) {
	rows, err := q.db.QueryContext(ctx, listAllocations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.VpcID, &a.VpcName, &a.PrimaryCidr, &a.CgnatCidr,
			&a.RequestedHosts, &a.RequestedPrefix, &a.Labels, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// UpdateAllocationVpcParams re-parents one allocation row.
type UpdateAllocationVpcParams struct {
	ID    string
	VpcID int64
}

const updateAllocationVpc = `
UPDATE allocations SET vpc_id = ? WHERE id = ?
`

func (q *Queries) UpdateAllocationVpc(ctx context.Context, arg UpdateAllocationVpcParams) error {
	res, err := q.db.ExecContext(ctx, updateAllocationVpc, arg.VpcID, arg.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const deleteAllocation = `
DELETE FROM allocations WHERE id = ?
`

func (q *Queries) DeleteAllocation(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteAllocation, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
