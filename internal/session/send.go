package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/meta"
	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

// SendResult describes a payload written to the sink.
type SendResult struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Sink   string `json:"sink"`
	Chunks int    `json:"chunks"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// SendOutcome is delivered by SendAsync.
type SendOutcome struct {
	Result SendResult
	Err    error
}

type payload struct {
	data   []byte
	chunks int
}

func (s *Session) snapshot() (payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list.IsEmpty() {
		return payload{}, ErrEmptyList
	}
	return payload{data: chain.Reduce(s.list), chunks: s.list.Len()}, nil
}

// Send reduces the list and writes the payload to the sink.
func (s *Session) Send(ctx context.Context) (SendResult, error) {
	p, err := s.snapshot()
	if err != nil {
		return SendResult{}, err
	}
	return s.deliver(ctx, meta.ActionSend, p)
}

// SendAsync snapshots the payload now and writes it from a background
// goroutine. The channel receives exactly one outcome and is then closed.
func (s *Session) SendAsync(ctx context.Context) <-chan SendOutcome {
	out := make(chan SendOutcome, 1)
	p, err := s.snapshot()
	if err != nil {
		out <- SendOutcome{Err: err}
		close(out)
		return out
	}
	go func() {
		defer close(out)
		res, err := s.deliver(ctx, meta.ActionSend, p)
		out <- SendOutcome{Result: res, Err: err}
	}()
	return out
}

func (s *Session) deliver(ctx context.Context, action string, p payload) (SendResult, error) {
	res := SendResult{
		Action: action,
		Sink:   s.opts.Sink.Name(),
		Chunks: p.chunks,
		Bytes:  int64(len(p.data)),
		SHA256: chunk.Digest(p.data),
		BLAKE3: chunk.Fingerprint(p.data),
	}
	if err := s.opts.Sink.Write(ctx, p.data); err != nil {
		s.log.Error().Err(err).Str("sink", res.Sink).Msg("failed to send data")
		return SendResult{}, fmt.Errorf("session: send: %w", err)
	}
	if m := s.opts.Metrics; m != nil {
		m.Sends.Inc()
		m.BytesSent.Add(float64(res.Bytes))
	}
	if s.opts.Ledger != nil {
		rec, err := s.opts.Ledger.RecordSend(ctx, meta.Send{
			Action: action,
			Sink:   res.Sink,
			Size:   res.Bytes,
			Chunks: res.Chunks,
			SHA256: res.SHA256,
			BLAKE3: res.BLAKE3,
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to record send")
		} else {
			res.ID = rec.ID
		}
	}
	s.log.Info().Str("action", action).Str("sink", res.Sink).Int("chunks", res.Chunks).Int64("bytes", res.Bytes).Msg("data sent")
	return res, nil
}

// Received is the current sink content.
type Received struct {
	Sink  string `json:"sink"`
	Data  []byte `json:"-"`
	Text  string `json:"text"`
	Bytes int    `json:"bytes"`
	// Matches is set when the ledger knows the last payload sent to the
	// sink; it reports whether the sink still holds that payload.
	Matches *bool `json:"matches_last_send,omitempty"`
}

// Receive reads back the sink content.
func (s *Session) Receive(ctx context.Context) (Received, error) {
	data, err := s.opts.Sink.Read(ctx)
	if err != nil {
		return Received{}, err
	}
	rec := Received{
		Sink:  s.opts.Sink.Name(),
		Data:  data,
		Text:  DisplayText(data),
		Bytes: len(data),
	}
	if s.opts.Ledger != nil {
		last, err := s.opts.Ledger.LastSend(ctx, rec.Sink)
		switch {
		case err == nil:
			ok := last.BLAKE3 == chunk.Fingerprint(data)
			rec.Matches = &ok
		case errors.Is(err, meta.ErrNotFound):
		default:
			s.log.Warn().Err(err).Msg("failed to read ledger")
		}
	}
	return rec, nil
}

// History lists recorded sends, newest first. It returns nil without a ledger.
func (s *Session) History(ctx context.Context, limit int) ([]meta.Send, error) {
	if s.opts.Ledger == nil {
		return nil, nil
	}
	return s.opts.Ledger.ListSends(ctx, limit)
}
