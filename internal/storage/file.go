package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/model"
)

// FileStore keeps pools in memory and mirrors them to a JSON state file.
// An empty path keeps everything in memory. Operations are forwarded to the
// ledger when one is set.
//
// With a path, every call takes an advisory lock next to the state file and
// reloads it first, so several processes can share one file.
type FileStore struct {
	path   string
	ledger Ledger

	mu    sync.Mutex
	pools map[common.Address]model.Pool
}

type fileState struct {
	Pools     []model.Pool `json:"pools"`
	UpdatedAt string       `json:"updated_at"`
}

// NewMemoryStore returns a FileStore that never touches disk.
func NewMemoryStore(ledger Ledger) *FileStore {
	return &FileStore{ledger: ledger, pools: make(map[common.Address]model.Pool)}
}

// OpenFileStore loads the state file at path, if present.
func OpenFileStore(path string, ledger Ledger) (*FileStore, error) {
	s := &FileStore{path: path, ledger: ledger, pools: make(map[common.Address]model.Pool)}
	if path == "" {
		return s, nil
	}
	if stat, err := os.Stat(path); err == nil && stat.IsDir() {
		return nil, fmt.Errorf("state path is a directory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.withFileLocked(false, func() error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, addr common.Address) (model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p model.Pool
	err := s.withFileLocked(false, func() error {
		var ok bool
		if p, ok = s.pools[addr]; !ok {
			return fmt.Errorf("%s: %w", addr.Hex(), ErrPoolNotFound)
		}
		return nil
	})
	if err != nil {
		return model.Pool{}, err
	}
	return p, nil
}

func (s *FileStore) List(ctx context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Pool
	err := s.withFileLocked(false, func() error {
		out = s.sortedLocked()
		return nil
	})
	return out, err
}

func (s *FileStore) Create(ctx context.Context, pool model.Pool, op model.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFileLocked(true, func() error {
		if _, ok := s.pools[pool.Address]; ok {
			return fmt.Errorf("%s: %w", pool.Address.Hex(), ErrPoolExists)
		}
		return s.commitLocked(ctx, pool, op, nil)
	})
}

func (s *FileStore) Save(ctx context.Context, prev, next model.Pool, op model.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFileLocked(true, func() error {
		cur, ok := s.pools[next.Address]
		if !ok {
			return fmt.Errorf("%s: %w", next.Address.Hex(), ErrPoolNotFound)
		}
		if !SameState(cur, prev) {
			return fmt.Errorf("%s: %w", next.Address.Hex(), ErrPoolConflict)
		}
		return s.commitLocked(ctx, next, op, &cur)
	})
}

// withFileLocked runs fn holding the state file lock, after reloading the
// file. Without a path it just runs fn.
func (s *FileStore) withFileLocked(exclusive bool, fn func() error) error {
	if s.path == "" {
		return fn()
	}
	if err := ensureDir(s.path); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	release, err := lockFile(s.path+".lock", exclusive)
	if err != nil {
		return err
	}
	defer release()

	if err := s.reloadLocked(); err != nil {
		return err
	}
	return fn()
}

func (s *FileStore) reloadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.pools = make(map[common.Address]model.Pool)
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse state file: %w", err)
	}
	pools := make(map[common.Address]model.Pool, len(st.Pools))
	for _, p := range st.Pools {
		pools[p.Address] = p
	}
	s.pools = pools
	return nil
}

// commitLocked applies pool, flushes the state file and appends op. When
// either write fails the previous record is put back, on disk as well.
func (s *FileStore) commitLocked(ctx context.Context, pool model.Pool, op model.Operation, prev *model.Pool) error {
	s.pools[pool.Address] = pool
	if err := s.flushLocked(); err != nil {
		s.restoreLocked(pool.Address, prev)
		return err
	}
	if s.ledger == nil {
		return nil
	}
	if err := s.ledger.Append(ctx, []model.Operation{op}); err != nil {
		err = fmt.Errorf("append ledger: %w", err)
		s.restoreLocked(pool.Address, prev)
		if ferr := s.flushLocked(); ferr != nil {
			return errors.Join(err, fmt.Errorf("restore state: %w", ferr))
		}
		return err
	}
	return nil
}

func (s *FileStore) restoreLocked(addr common.Address, prev *model.Pool) {
	if prev != nil {
		s.pools[addr] = *prev
	} else {
		delete(s.pools, addr)
	}
}

func (s *FileStore) flushLocked() error {
	if s.path == "" {
		return nil
	}
	if err := ensureDir(s.path); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	st := fileState{
		Pools:     s.sortedLocked(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStore) sortedLocked() []model.Pool {
	out := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Seed < out[j].Seed
	})
	return out
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
