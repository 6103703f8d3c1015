package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/model"
)

var (
	// ErrPoolNotFound is returned when no pool is stored under an address.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrPoolExists is returned when creating a pool whose address is taken.
	ErrPoolExists = errors.New("pool already exists")
	// ErrPoolConflict is returned by Save when the stored pool no longer
	// matches the record the caller read.
	ErrPoolConflict = errors.New("pool changed since it was read")
)

// PoolStore persists pool records. Create and Save write the pool together
// with the ledger record describing the change, and either both land or
// neither does. Save replaces prev with next only while the stored record
// still matches prev.
type PoolStore interface {
	Get(ctx context.Context, addr common.Address) (model.Pool, error)
	List(ctx context.Context) ([]model.Pool, error)
	Create(ctx context.Context, pool model.Pool, op model.Operation) error
	Save(ctx context.Context, prev, next model.Pool, op model.Operation) error
}

// SameState reports whether two records of a pool hold the same reserves,
// share supply, lock flag and authority.
func SameState(a, b model.Pool) bool {
	if a.Address != b.Address ||
		a.BalanceX != b.BalanceX ||
		a.BalanceY != b.BalanceY ||
		a.TotalShares != b.TotalShares ||
		a.Locked != b.Locked {
		return false
	}
	if a.Authority == nil || b.Authority == nil {
		return a.Authority == nil && b.Authority == nil
	}
	return *a.Authority == *b.Authority
}

// Ledger is an append-only sink of pool operations.
type Ledger interface {
	Append(ctx context.Context, ops []model.Operation) error
}

// OperationSource reads ledger records with fromTs <= Timestamp < toTs,
// ordered by timestamp.
type OperationSource interface {
	ReadOperations(ctx context.Context, fromTs, toTs uint64) ([]model.Operation, error)
}
