// Package ops runs offline checks over payload files and reports on the
// sink and send ledger.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/clock"
	"github.com/kk-code-lab/chunkchain/internal/meta"
	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

const maxErrorSample = 5

// Report summarizes an ops run.
type Report struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Mode         string    `json:"mode"`
	Source       string    `json:"source,omitempty"`
	Target       string    `json:"target,omitempty"`
	Chunks       int       `json:"chunks"`
	Bytes        int64     `json:"bytes"`
	Errors       int       `json:"errors"`
	ErrorSample  []string  `json:"error_sample,omitempty"`
	BadLinks     []int     `json:"bad_links,omitempty"`
	TargetChunks int       `json:"target_chunks,omitempty"`
	SinkBytes    int64     `json:"sink_bytes,omitempty"`
	Sends        int       `json:"sends,omitempty"`
	Damaged      int       `json:"damaged,omitempty"`
}

// OK reports whether the run found no errors.
func (r *Report) OK() bool {
	return r != nil && r.Errors == 0
}

func (r *Report) addError(err error) {
	r.Errors++
	if len(r.ErrorSample) < maxErrorSample {
		r.ErrorSample = append(r.ErrorSample, err.Error())
	}
}

// Runner carries the clock used to stamp reports.
type Runner struct {
	Clock clock.Clock
}

func (r Runner) now() time.Time {
	if r.Clock == nil {
		return clock.RealClock{}.Now()
	}
	return r.Clock.Now()
}

// Verify builds a chain from the file at path and checks its links.
func (r Runner) Verify(ctx context.Context, path string, size int) (*Report, error) {
	report := &Report{Mode: "verify", Source: path, StartedAt: r.now()}
	list, err := loadList(ctx, path, size)
	if err != nil {
		return nil, err
	}
	report.Chunks = list.Len()
	report.Bytes = list.Size()
	if err := list.Verify(); err != nil {
		var ce *chain.CorruptionError
		if errors.As(err, &ce) {
			report.BadLinks = append(report.BadLinks, ce.Index)
		}
		report.addError(err)
	}
	report.FinishedAt = r.now()
	return report, nil
}

// Scrub checks a received copy against the chain built from the source.
// Every link of the source attests to the successor chunk, so each chunk
// of the target except the first is compared with the checksum its
// predecessor carries. All bad links are reported, not just the first.
func (r Runner) Scrub(ctx context.Context, sourcePath, targetPath string, size int) (*Report, error) {
	report := &Report{Mode: "scrub", Source: sourcePath, Target: targetPath, StartedAt: r.now()}
	source, err := loadList(ctx, sourcePath, size)
	if err != nil {
		return nil, err
	}
	links := source.Links()
	report.Chunks = len(links)
	report.Bytes = source.Size()

	splitter, err := chunk.NewFixedSplitter(size)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(targetPath)
	if err != nil {
		return nil, fmt.Errorf("ops: scrub: %w", err)
	}
	defer file.Close()

	err = splitter.Split(file, func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.TargetChunks++
		if c.Index == 0 || c.Index > len(links) {
			return nil
		}
		if want := links[c.Index-1].NextSum; want != c.Sum {
			report.BadLinks = append(report.BadLinks, c.Index-1)
			report.addError(&chain.CorruptionError{Index: c.Index - 1, Want: want, Got: c.Sum})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ops: scrub: %w", err)
	}
	if report.TargetChunks != report.Chunks {
		report.addError(fmt.Errorf("chunk count mismatch source=%d target=%d", report.Chunks, report.TargetChunks))
	}
	report.FinishedAt = r.now()
	return report, nil
}

// Status reports the sink size and, when a ledger is given, its counts.
func (r Runner) Status(ctx context.Context, sinkPath string, store *meta.Store) (*Report, error) {
	report := &Report{Mode: "status", Target: sinkPath, StartedAt: r.now()}
	info, err := os.Stat(sinkPath)
	switch {
	case err == nil:
		report.SinkBytes = info.Size()
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if store != nil {
		sends, err := store.ListSends(ctx, 0)
		if err != nil {
			return nil, err
		}
		report.Sends = len(sends)
		damaged, err := store.CountDamaged(ctx)
		if err != nil {
			return nil, err
		}
		report.Damaged = damaged
	}
	report.FinishedAt = r.now()
	return report, nil
}

func loadList(ctx context.Context, path string, size int) (*chain.List, error) {
	splitter, err := chunk.NewFixedSplitter(size)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}
	defer file.Close()
	list := chain.New()
	err = splitter.Split(file, func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		list.Append(c.Data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ops: read %s: %w", path, err)
	}
	return list, nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Format renders the report as a single key=value line.
func Format(report *Report) string {
	if report == nil {
		return ""
	}
	line := fmt.Sprintf("mode=%s chunks=%d bytes=%d errors=%d", report.Mode, report.Chunks, report.Bytes, report.Errors)
	switch report.Mode {
	case "scrub":
		line += fmt.Sprintf(" target_chunks=%d", report.TargetChunks)
	case "status":
		line = fmt.Sprintf("mode=status sink_bytes=%d sends=%d damaged=%d", report.SinkBytes, report.Sends, report.Damaged)
	}
	if len(report.BadLinks) > 0 {
		line += fmt.Sprintf(" bad_links=%v", report.BadLinks)
	}
	return line
}
