package spill

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner periodically sweeps a spill directory, deleting the oldest files
// until the directory's total size is at or under MaxTotalBytes, always
// retaining the single newest file regardless of budget (spec.md §4.7,
// testable property §8-7). Grounded on the oldest-first/size-capped sweep
// of pkg/cleanup/disk_manager.go's cleanupBySize, simplified to a single
// directory and a single byte budget — this cleaner has no age or
// file-count policy to juggle alongside the size one.
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

// Sweep performs one cleanup pass: list files, sort oldest-first, delete
// from the front until the running total is within budget or only the
// newest file remains. An error deleting one file is logged and the sweep
// continues (spec.md §4.7: "errors deleting one file never abort the
// sweep").
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

	// Never remove the last (newest) file, even if that leaves the
	// directory over budget.
	for i := 0; i < len(files)-1 && total > c.MaxTotalBytes; i++ {
		f := files[i]
		if err := os.Remove(f.path); err != nil {
			if c.Logger != nil {
				c.Logger.WithError(err).WithField("path", f.path).Warn("spill cleaner: failed to remove file")
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
				c.Logger.WithError(err).Warn("spill cleaner: sweep failed")
			}
		}
	}
}
