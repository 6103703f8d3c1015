package pool

import (
	"errors"

	"ammEngine/internal/storage"
)

var (
	ErrPoolLocked       = errors.New("pool is locked")
	ErrOfferExpired     = errors.New("offer has expired")
	ErrInvalidAuthority = errors.New("actor is not the update authority")
	// ErrNoAuthoritySet means the pool config can never change after creation.
	ErrNoAuthoritySet = errors.New("pool has no update authority")
	ErrIdenticalMints = errors.New("mint x and mint y are identical")

	ErrPoolNotFound = storage.ErrPoolNotFound
	ErrPoolExists   = storage.ErrPoolExists
	ErrPoolConflict = storage.ErrPoolConflict
)
