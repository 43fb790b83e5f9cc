package session

import (
	"context"
	"fmt"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/meta"
)

// DeleteResult reports what a delete-selected action did.
type DeleteResult struct {
	Requested int        `json:"requested"`
	Removed   int        `json:"removed"`
	Missed    [][]byte   `json:"-"`
	Send      SendResult `json:"send"`
}

// DeleteSelected deletes each value (first match, by content) and then
// writes the edited payload to the sink. The rewritten sink reflects the
// gaps left by removed chunks.
func (s *Session) DeleteSelected(ctx context.Context, values [][]byte) (DeleteResult, error) {
	if len(values) == 0 {
		return DeleteResult{}, ErrNoSelection
	}
	res := DeleteResult{Requested: len(values)}

	s.mu.Lock()
	for _, v := range values {
		hit := s.list.Delete(v)
		s.opts.Metrics.ObserveDelete(hit)
		if hit {
			res.Removed++
		} else {
			res.Missed = append(res.Missed, v)
		}
	}
	p := payload{data: chain.Reduce(s.list), chunks: s.list.Len()}
	s.observeLocked()
	s.mu.Unlock()

	s.log.Info().Int("requested", res.Requested).Int("removed", res.Removed).Msg("chunks deleted")
	send, err := s.deliver(ctx, meta.ActionDelete, p)
	if err != nil {
		return res, err
	}
	res.Send = send
	return res, nil
}

// DeleteIndices resolves the chunks at the given positions to their values
// and deletes those values. Repeated positions count once. Duplicated chunk
// contents are removed in head-to-tail order, matching how a selection of
// equal entries behaves.
func (s *Session) DeleteIndices(ctx context.Context, indices []int) (DeleteResult, error) {
	if len(indices) == 0 {
		return DeleteResult{}, ErrNoSelection
	}
	chunks := s.Chunks()
	seen := make(map[int]struct{}, len(indices))
	values := make([][]byte, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(chunks) {
			return DeleteResult{}, fmt.Errorf("%w: %d", ErrBadIndex, i)
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		values = append(values, chunks[i])
	}
	return s.DeleteSelected(ctx, values)
}
