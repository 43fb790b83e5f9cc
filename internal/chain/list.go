package chain

import (
	"bytes"
	"io"

	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

type node struct {
	data    []byte
	nextSum string // digest of next.data, empty on the tail
	next    *node
}

// List is a chunked list whose links carry successor checksums.
type List struct {
	head *node
}

// New returns an empty list.
func New() *List {
	return &List{}
}

// FromChunks builds a list by appending chunks in order.
func FromChunks(chunks [][]byte) *List {
	l := New()
	for _, c := range chunks {
		l.Append(c)
	}
	return l
}

// FromWord builds a list holding one UTF-8 encoded character per chunk.
func FromWord(word string) *List {
	l := New()
	for _, r := range word {
		l.Append([]byte(string(r)))
	}
	return l
}

// Append adds data as the new tail and links the previous tail to it.
// The list keeps its own copy of data.
func (l *List) Append(data []byte) {
	n := &node{data: bytes.Clone(data)}
	if n.data == nil {
		n.data = []byte{}
	}
	if l.head == nil {
		l.head = n
		return
	}
	cur := l.head
	for cur.next != nil {
		cur = cur.next
	}
	cur.next = n
	cur.nextSum = chunk.Digest(n.data)
}

// Delete removes the first node whose chunk equals value and reports
// whether a node was removed. A miss leaves the list untouched.
func (l *List) Delete(value []byte) bool {
	if l.head == nil {
		return false
	}
	if bytes.Equal(l.head.data, value) {
		l.head = l.head.next
		return true
	}
	cur := l.head
	for cur.next != nil && !bytes.Equal(cur.next.data, value) {
		cur = cur.next
	}
	if cur.next == nil {
		return false
	}
	cur.next = cur.next.next
	if cur.next != nil {
		cur.nextSum = chunk.Digest(cur.next.data)
	} else {
		cur.nextSum = ""
	}
	return true
}

// Chunks returns copies of the chunk contents from head to tail.
func (l *List) Chunks() [][]byte {
	var out [][]byte
	for cur := l.head; cur != nil; cur = cur.next {
		out = append(out, bytes.Clone(cur.data))
	}
	return out
}

// Snapshot returns an immutable copy of the chunk sequence that can be
// handed to another goroutine while the list keeps changing.
func (l *List) Snapshot() [][]byte {
	return l.Chunks()
}

// IsEmpty reports whether the list has no nodes.
func (l *List) IsEmpty() bool {
	return l.head == nil
}

// Len returns the number of nodes.
func (l *List) Len() int {
	n := 0
	for cur := l.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Size returns the total number of payload bytes held by the list.
func (l *List) Size() int64 {
	var n int64
	for cur := l.head; cur != nil; cur = cur.next {
		n += int64(len(cur.data))
	}
	return n
}

// Link describes one node as seen from outside the list.
type Link struct {
	Index   int
	Len     int
	NextSum string
}

// Links returns a description of every node from head to tail. The tail
// has an empty NextSum.
func (l *List) Links() []Link {
	var out []Link
	i := 0
	for cur := l.head; cur != nil; cur = cur.next {
		out = append(out, Link{Index: i, Len: len(cur.data), NextSum: cur.nextSum})
		i++
	}
	return out
}

// Reduce concatenates the chunks of l in order. An empty list yields an
// empty, non-nil slice.
func Reduce(l *List) []byte {
	out := make([]byte, 0, l.Size())
	for cur := l.head; cur != nil; cur = cur.next {
		out = append(out, cur.data...)
	}
	return out
}

// WriteTo streams the reduced payload to w.
func (l *List) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for cur := l.head; cur != nil; cur = cur.next {
		n, err := w.Write(cur.data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
