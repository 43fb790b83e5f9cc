package chain

import (
	"errors"
	"fmt"

	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

// ErrDataCorruption is matched by every error returned from Verify.
var ErrDataCorruption = errors.New("chain: data corruption detected")

// CorruptionError names the link that failed verification. Index is the
// position, counted from the head, of the node holding the bad checksum.
type CorruptionError struct {
	Index int
	Want  string
	Got   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("chain: data corruption detected at link %d (stored=%s actual=%s)", e.Index, short(e.Want), short(e.Got))
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrDataCorruption
}

// Verify recomputes the digest of every successor and compares it with
// the checksum stored by its predecessor. It stops at the first mismatch.
func (l *List) Verify() error {
	i := 0
	for cur := l.head; cur != nil && cur.next != nil; cur = cur.next {
		actual := chunk.Digest(cur.next.data)
		if cur.nextSum != actual {
			return &CorruptionError{Index: i, Want: cur.nextSum, Got: actual}
		}
		i++
	}
	return nil
}

func short(sum string) string {
	if sum == "" {
		return "<absent>"
	}
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
