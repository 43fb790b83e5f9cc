// Package sink persists reduced payloads as a flat byte file.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNothingReceived is returned by Read when no payload has been written yet.
var ErrNothingReceived = errors.New("sink: no data received yet")

// Sink is a destination for reduced payloads.
type Sink interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) ([]byte, error)
	Name() string
}

// FileSink writes the payload to a single file, replacing it atomically.
// Writes are serialized; the last completed Write wins.
type FileSink struct {
	Path   string
	Logger zerolog.Logger

	mu sync.Mutex
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string, logger zerolog.Logger) *FileSink {
	return &FileSink{Path: path, Logger: logger}
}

// Name returns the sink path.
func (s *FileSink) Name() string {
	return s.Path
}

// Write replaces the sink file with data. The new content is written to a
// temporary file, synced, then renamed over the destination.
func (s *FileSink) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.CreateTemp(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	tmp := file.Name()
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sink: write %s: %w", s.Path, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sink: sync %s: %w", s.Path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sink: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sink: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sink: %w", err)
	}
	s.Logger.Debug().Str("sink", s.Path).Int("bytes", len(data)).Msg("payload written")
	return nil
}

// Read returns the current sink content.
func (s *FileSink) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNothingReceived
		}
		return nil, fmt.Errorf("sink: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("sink: read %s: %w", s.Path, err)
	}
	return data, nil
}

// Reset truncates the sink to an empty file.
func (s *FileSink) Reset(ctx context.Context) error {
	return s.Write(ctx, nil)
}
