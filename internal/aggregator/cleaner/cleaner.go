// Package cleaner periodically sweeps the aggregator's JSON-fallback
// directory, deleting the oldest files once the directory exceeds its byte
// budget while always retaining the single newest file. Grounded directly
// on rask-log-aggregator's log_exporter/disk_cleaner.rs and, for the Go
// sweep-loop idiom, pkg/cleanup/disk_manager.go — structurally the same
// sweep as internal/forwarder/spill.Cleaner, kept as a separate type since
// the two clean unrelated directories for unrelated reasons (give-up spill
// vs sink-unavailable fallback) and evolve independently.
package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner sweeps Dir, keeping its total size at or under MaxTotalBytes.
type Cleaner struct {
	Dir           string
	MaxTotalBytes int64
	Interval      time.Duration
	Logger        *logrus.Logger
}

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// Sweep deletes oldest-first until the directory is within budget, always
// retaining the newest file.
func (c *Cleaner) Sweep() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return err
	}

	files := make([]fileInfo, 0, len(entries))
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(c.Dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}

	if total <= c.MaxTotalBytes || len(files) <= 1 {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for i := 0; i < len(files)-1 && total > c.MaxTotalBytes; i++ {
		f := files[i]
		if err := os.Remove(f.path); err != nil {
			if c.Logger != nil {
				c.Logger.WithError(err).WithField("path", f.path).Warn("fallback cleaner: failed to remove file")
			}
			continue
		}
		total -= f.size
	}
	return nil
}

// Run loops Sweep on Interval until ctx is canceled.
func (c *Cleaner) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sweep(); err != nil && c.Logger != nil {
				c.Logger.WithError(err).Warn("fallback cleaner: sweep failed")
			}
		}
	}
}
