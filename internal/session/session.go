// Package session drives one chunked list on behalf of an interactive
// front end: loading payloads, listing chunks, sending the reduced payload
// to a sink, deleting selected chunks and running integrity checks.
//
// All list access goes through the session mutex. Sends snapshot the
// reduced payload under the lock and perform I/O outside it.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/meta"
	"github.com/kk-code-lab/chunkchain/internal/metrics"
	"github.com/kk-code-lab/chunkchain/internal/sink"
	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

var (
	ErrEmptyList   = errors.New("session: no data in linked list")
	ErrEmptyWord   = errors.New("session: no word entered")
	ErrNoSelection = errors.New("session: no items selected")
	ErrBadIndex    = errors.New("session: chunk index out of range")
)

// Options configures a Session. Sink is required; Ledger and Metrics are
// optional.
type Options struct {
	ChunkSize    int
	Sink         sink.Sink
	Ledger       *meta.Store
	Metrics      *metrics.SessionMetrics
	Logger       zerolog.Logger
	VerifyOnLoad bool
}

// Session owns one chain.List.
type Session struct {
	mu     sync.Mutex
	list   *chain.List
	source string
	opts   Options
	log    zerolog.Logger
}

// New validates opts and returns a session holding an empty list.
func New(opts Options) (*Session, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", chunk.ErrInvalidArgument, opts.ChunkSize)
	}
	if opts.Sink == nil {
		return nil, errors.New("session: sink required")
	}
	return &Session{
		list: chain.New(),
		opts: opts,
		log:  opts.Logger.With().Str("component", "session").Logger(),
	}, nil
}

// LoadResult summarizes a freshly built list.
type LoadResult struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	Bytes  int64  `json:"bytes"`
}

// Load reads the file at path, splits it and replaces the session list.
func (s *Session) Load(ctx context.Context, path string) (LoadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("session: load: %w", err)
	}
	defer file.Close()
	return s.LoadReader(ctx, path, file)
}

// LoadReader streams r through a fixed-size splitter into a fresh list.
// The session list is only replaced once the whole stream was read.
func (s *Session) LoadReader(ctx context.Context, name string, r io.Reader) (LoadResult, error) {
	splitter, err := chunk.NewFixedSplitter(s.opts.ChunkSize)
	if err != nil {
		return LoadResult{}, err
	}
	list := chain.New()
	err = splitter.Split(r, func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		list.Append(c.Data)
		return nil
	})
	if err != nil {
		return LoadResult{}, fmt.Errorf("session: load %s: %w", name, err)
	}
	return s.replace(ctx, name, list)
}

// LoadBytes splits payload in memory and replaces the session list.
func (s *Session) LoadBytes(ctx context.Context, name string, payload []byte) (LoadResult, error) {
	chunks, err := chunk.Split(payload, s.opts.ChunkSize)
	if err != nil {
		return LoadResult{}, err
	}
	return s.replace(ctx, name, chain.FromChunks(chunks))
}

// LoadWord replaces the session list with one chunk per character of word.
func (s *Session) LoadWord(ctx context.Context, word string) (LoadResult, error) {
	if word == "" {
		return LoadResult{}, ErrEmptyWord
	}
	return s.replace(ctx, "word", chain.FromWord(word))
}

func (s *Session) replace(ctx context.Context, name string, list *chain.List) (LoadResult, error) {
	s.mu.Lock()
	s.list = list
	s.source = name
	res := LoadResult{Source: name, Chunks: list.Len(), Bytes: list.Size()}
	s.observeLocked()
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ChunksAppended.Add(float64(res.Chunks))
	}
	s.log.Info().Str("source", name).Int("chunks", res.Chunks).Int64("bytes", res.Bytes).Msg("list loaded")
	if s.opts.VerifyOnLoad {
		if err := s.Verify(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Entry is one chunk as shown to the user.
type Entry struct {
	Index   int    `json:"index"`
	Offset  int64  `json:"offset"`
	Len     int    `json:"len"`
	Text    string `json:"text"`
	NextSum string `json:"next_sum,omitempty"`
}

// Entries lists the current chunks head to tail.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	chunks := s.list.Chunks()
	links := s.list.Links()
	s.mu.Unlock()

	spans := chunk.Spans(chunks)
	out := make([]Entry, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, Entry{
			Index:   i,
			Offset:  spans[i].Offset,
			Len:     len(c),
			Text:    DisplayText(c),
			NextSum: links[i].NextSum,
		})
	}
	return out
}

// Chunks returns a copy of the current chunk sequence.
func (s *Session) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Snapshot()
}

// Source names where the current list came from.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// IsEmpty reports whether the session list is empty.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.IsEmpty()
}

// Len returns the number of chunks in the session list.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Len()
}

// Verify checks the chain links of the session list. Failures wrap
// chain.ErrDataCorruption and are never repaired.
func (s *Session) Verify(ctx context.Context) error {
	s.mu.Lock()
	err := s.list.Verify()
	n := s.list.Len()
	source := s.source
	s.mu.Unlock()

	badLink := -1
	var ce *chain.CorruptionError
	if errors.As(err, &ce) {
		badLink = ce.Index
	}
	if m := s.opts.Metrics; m != nil {
		m.IntegrityChecks.Inc()
		if err != nil {
			m.IntegrityFailures.Inc()
		}
	}
	if s.opts.Ledger != nil {
		if _, lerr := s.opts.Ledger.RecordVerification(ctx, source, n, badLink); lerr != nil {
			s.log.Warn().Err(lerr).Msg("failed to record verification")
		}
	}
	if err != nil {
		s.log.Error().Err(err).Int("index", badLink).Str("source", source).Msg("integrity check failed")
		return err
	}
	s.log.Debug().Int("chunks", n).Msg("integrity check passed")
	return nil
}

func (s *Session) observeLocked() {
	s.opts.Metrics.SetList(s.list.Len(), s.list.Size())
}

// DisplayText decodes b as UTF-8 for display, dropping invalid bytes.
func DisplayText(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// ParseValue turns user input into a chunk value. Input of the form
// hex:<digits> is decoded as hex; anything else is taken as UTF-8 text.
func ParseValue(in string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(in, "hex:"); ok {
		v, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chunk.ErrInvalidArgument, err)
		}
		return v, nil
	}
	return []byte(in), nil
}

// Tamper overwrites the chunk at index without fixing its predecessor's
// checksum, so the next Verify reports the damaged link.
func (s *Session) Tamper(index int, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.list.Overwrite(index, value) {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	s.log.Warn().Int("index", index).Msg("chunk overwritten without relinking")
	return nil
}
