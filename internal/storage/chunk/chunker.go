package chunk

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the default chunk size (2 MiB).
const DefaultSize = 2 << 20

// ErrInvalidArgument reports a chunk size that is zero or negative.
var ErrInvalidArgument = errors.New("chunk: invalid argument")

// Chunk is a unit produced by the chunker.
type Chunk struct {
	Index int
	Span  Span
	Sum   string
	Data  []byte
}

// Split partitions payload into consecutive chunks of size bytes; the last
// chunk holds the remainder. Returned chunks do not alias payload.
func Split(payload []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, size)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, Count(len(payload), size))
	for off := 0; off < len(payload); off += size {
		end := off + size
		if end > len(payload) {
			end = len(payload)
		}
		data := make([]byte, end-off)
		copy(data, payload[off:end])
		out = append(out, data)
	}
	return out, nil
}

// Count returns how many chunks Split produces for n bytes.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Splitter streams chunks to a callback.
type Splitter interface {
	Split(r io.Reader, fn func(Chunk) error) error
}

// FixedSplitter splits streams into fixed-size chunks.
type FixedSplitter struct {
	Size int
}

// NewFixedSplitter creates a fixed-size splitter.
func NewFixedSplitter(size int) (*FixedSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, size)
	}
	return &FixedSplitter{Size: size}, nil
}

// Split streams chunks to the callback; the final chunk may be smaller.
func (s *FixedSplitter) Split(r io.Reader, fn func(Chunk) error) error {
	if s.Size <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, s.Size)
	}
	buf := make([]byte, s.Size)
	index := 0
	var offset int64
	for {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		if n == 0 {
			return nil
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		chunk := Chunk{
			Index: index,
			Span:  Span{Offset: offset, Len: int64(n)},
			Sum:   Digest(data),
			Data:  data,
		}
		if err := fn(chunk); err != nil {
			return err
		}
		index++
		offset += int64(n)
		if err == io.ErrUnexpectedEOF {
			return nil
		}
	}
}
