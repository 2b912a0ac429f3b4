// Package reader owns one managed read-loop per container, tailing its
// json-file log on disk and emitting logentry.RawFrame for each line.
// Grounded on internal/monitors/docker_log_discovery.go's LogPath discovery
// (the json-file driver writes one Docker-envelope JSON object per line,
// which is exactly what parser.ParseDockerEnvelope expects) and on the
// context-checked-before-blocking-read cancellation idiom of
// pkg/docker/context_reader.go, adapted from wrapping an HTTP stream's
// io.Reader to wrapping the poll loop around a tailed os.File — there is no
// blocking kernel read to interrupt here, only a sleep between polls, so
// checking ctx.Err() at the top of the loop is sufficient.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"rask-log-stack/pkg/logentry"
)

// PollInterval is how often the reader checks for new bytes once it has
// caught up to the end of the file.
const PollInterval = 200 * time.Millisecond

// Reader tails a single container's json-file log.
type Reader struct {
	ContainerID string
	Path        string
	logger      *logrus.Logger
}

// New builds a Reader for the json-file log at path.
func New(containerID, path string, logger *logrus.Logger) *Reader {
	return &Reader{ContainerID: containerID, Path: path, logger: logger}
}

// Run tails the file from its current end and sends one RawFrame per line
// on out until ctx is canceled or the file becomes permanently unreadable.
// It never blocks past PollInterval, so cancellation is observed promptly.
func (r *Reader) Run(ctx context.Context, out chan<- logentry.RawFrame) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", r.Path, err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log file %s: %w", r.Path, err)
	}

	reader := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			frame := logentry.RawFrame{
				Bytes:     trimNewline(line),
				Stream:    logentry.StreamStdout,
				Timestamp: time.Now().UTC(),
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return nil
			}
		}

		if err == io.EOF {
			select {
			case <-time.After(PollInterval):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if err != nil {
			if r.logger != nil {
				r.logger.WithError(err).WithField("container_id", r.ContainerID).Warn("reader: read error, stopping tail")
			}
			return fmt.Errorf("read log file %s: %w", r.Path, err)
		}
	}
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
