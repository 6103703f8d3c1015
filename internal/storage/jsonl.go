package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ammEngine/internal/model"
)

// JsonlLedger appends operations to a JSONL file.
type JsonlLedger struct {
	path string
	mu   sync.Mutex
}

func NewJsonlLedger(path string) *JsonlLedger {
	return &JsonlLedger{path: path}
}

// Append writes a batch of operations as JSON lines.
func (l *JsonlLedger) Append(ctx context.Context, ops []model.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, op := range ops {
		line, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("marshal operation: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write operation: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return file.Sync()
}

// ReadOperations scans the ledger for records inside [fromTs, toTs).
// A missing ledger reads as empty.
func (l *JsonlLedger) ReadOperations(ctx context.Context, fromTs, toTs uint64) ([]model.Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	var out []model.Operation
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", lineNo, err)
		}
		if op.Timestamp < fromTs || op.Timestamp >= toTs {
			continue
		}
		out = append(out, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}
