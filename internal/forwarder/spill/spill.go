// Package spill persists batches that have exhausted the sender's in-memory
// retry budget to a local directory, so they survive process restarts and
// can be inspected or replayed later. Grounded on the file-per-entry
// persistence model of pkg/buffer/disk_buffer.go, trimmed from that file's
// rotating multi-entry segment files down to one file per give-up batch —
// spec.md §4.7 only asks for "batches... written as individual serialized
// files", not a segmented WAL.
package spill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rask-log-stack/pkg/logentry"
)

// Store writes give-up batches under Dir as "<created-unix-nano>-<batch-id>.json".
// The batch ID keeps each name unique; the cleaner orders files by their
// modification time, not by name.
type Store struct {
	Dir string
}

// New ensures Dir exists and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spill directory %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

// spilledBatch is the on-disk envelope: the batch itself plus the moment it
// was spilled, so a future replay tool can reason about staleness.
type spilledBatch struct {
	SpilledAt time.Time               `json:"spilled_at"`
	Batch     *logentry.Batch         `json:"batch"`
}

// Write persists batch to disk. The file is written to a temp name first and
// renamed into place, so a crash mid-write never leaves a half-written file
// for the cleaner or a replay tool to trip over.
func (s *Store) Write(batch *logentry.Batch) (string, error) {
	payload := spilledBatch{SpilledAt: time.Now().UTC(), Batch: batch}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal spilled batch %s: %w", batch.ID, err)
	}

	name := fmt.Sprintf("%020d-%s.json", time.Now().UnixNano(), batch.ID)
	finalPath := filepath.Join(s.Dir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write spill file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename spill file %s: %w", tmpPath, err)
	}
	return finalPath, nil
}

// Read loads a spilled batch back from path, for a replay tool or test.
func Read(path string) (*logentry.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spill file %s: %w", path, err)
	}
	var payload spilledBatch
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal spill file %s: %w", path, err)
	}
	return payload.Batch, nil
}
