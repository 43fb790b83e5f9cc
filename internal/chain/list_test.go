package chain

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

// requireLinked checks that every stored checksum matches the successor
// and that the tail carries none.
func requireLinked(t *testing.T, l *List) {
	t.Helper()
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.next == nil {
			require.Empty(t, cur.nextSum, "tail checksum must be absent")
			continue
		}
		require.Equal(t, chunk.Digest(cur.next.data), cur.nextSum)
	}
}

func build(t *testing.T, payload string, size int) *List {
	t.Helper()
	chunks, err := chunk.Split([]byte(payload), size)
	require.NoError(t, err)
	return FromChunks(chunks)
}

func TestEmptyList(t *testing.T) {
	l := New()
	assert.True(t, l.IsEmpty())
	assert.Empty(t, l.Chunks())
	assert.Equal(t, 0, l.Len())
	assert.NotNil(t, Reduce(l))
	assert.Empty(t, Reduce(l))
	assert.False(t, l.Delete([]byte("x")))
	assert.NoError(t, l.Verify())
	assert.True(t, l.IsEmpty())
}

func TestSplitExampleLinks(t *testing.T) {
	l := build(t, "ABCDE", 2)

	links := l.Links()
	require.Len(t, links, 3)
	assert.Equal(t, chunk.Digest([]byte("CD")), links[0].NextSum)
	assert.Equal(t, chunk.Digest([]byte("E")), links[1].NextSum)
	assert.Empty(t, links[2].NextSum)
	assert.Equal(t, []byte("ABCDE"), Reduce(l))
	assert.NoError(t, l.Verify())
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, size := range []int{1, 2, 3, 7, 64, 1000} {
		for _, n := range []int{0, 1, 5, 63, 64, 65, 999} {
			payload := make([]byte, n)
			rng.Read(payload)
			chunks, err := chunk.Split(payload, size)
			require.NoError(t, err)
			l := FromChunks(chunks)
			assert.Equal(t, chunk.Count(n, size), l.Len(), "size=%d n=%d", size, n)
			assert.True(t, bytes.Equal(payload, Reduce(l)), "size=%d n=%d", size, n)
			assert.Equal(t, int64(n), l.Size())
			requireLinked(t, l)
		}
	}
}

func TestAppendLinksPreviousTail(t *testing.T) {
	l := New()
	l.Append([]byte("a"))
	assert.Empty(t, l.head.nextSum)
	l.Append([]byte("b"))
	assert.Equal(t, chunk.Digest([]byte("b")), l.head.nextSum)
	l.Append([]byte("c"))
	requireLinked(t, l)
}

func TestAppendCopiesInput(t *testing.T) {
	buf := []byte("abc")
	l := New()
	l.Append(buf)
	buf[0] = 'z'
	assert.Equal(t, [][]byte{[]byte("abc")}, l.Chunks())

	out := l.Chunks()
	out[0][0] = 'q'
	assert.Equal(t, [][]byte{[]byte("abc")}, l.Chunks())
}

func TestDeleteWordExample(t *testing.T) {
	l := FromWord("cat")
	require.True(t, l.Delete([]byte("a")))

	assert.Equal(t, [][]byte{[]byte("c"), []byte("t")}, l.Chunks())
	links := l.Links()
	require.Len(t, links, 2)
	assert.Equal(t, chunk.Digest([]byte("t")), links[0].NextSum)
	assert.Empty(t, links[1].NextSum)
}

func TestDeleteHead(t *testing.T) {
	l := FromWord("cat")
	require.True(t, l.Delete([]byte("c")))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("t")}, l.Chunks())
	requireLinked(t, l)
}

func TestDeleteTailClearsChecksum(t *testing.T) {
	l := FromWord("cat")
	require.True(t, l.Delete([]byte("t")))
	assert.Equal(t, [][]byte{[]byte("c"), []byte("a")}, l.Chunks())
	assert.Empty(t, l.Links()[1].NextSum)
	requireLinked(t, l)
}

func TestDeleteOnlyNode(t *testing.T) {
	l := FromWord("x")
	require.True(t, l.Delete([]byte("x")))
	assert.True(t, l.IsEmpty())
}

func TestDeleteFirstMatchOnly(t *testing.T) {
	l := FromWord("abab")
	require.True(t, l.Delete([]byte("b")))
	assert.Equal(t, []byte("aab"), Reduce(l))
	requireLinked(t, l)
}

func TestDeleteMissIsNoop(t *testing.T) {
	l := build(t, "hello world", 3)
	before := l.Links()
	chunksBefore := l.Chunks()

	assert.False(t, l.Delete([]byte("zzz")))
	assert.False(t, l.Delete([]byte("hel!")))
	assert.False(t, l.Delete(nil))

	assert.Equal(t, before, l.Links())
	assert.Equal(t, chunksBefore, l.Chunks())
}

func TestDeleteKeepsInvariant(t *testing.T) {
	payload := "the quick brown fox jumps over the lazy dog"
	reference := build(t, payload, 4).Chunks()
	for i := range reference {
		l := build(t, payload, 4)
		require.True(t, l.Delete(reference[i]))
		requireLinked(t, l)
		assert.NoError(t, l.Verify())
		assert.Equal(t, len(reference)-1, l.Len())
	}
}

func TestVerifyDetectsCorruptionAtLinkIndex(t *testing.T) {
	for target := 1; target < 5; target++ {
		l := build(t, "0123456789", 2)
		cur := l.head
		for i := 0; i < target; i++ {
			cur = cur.next
		}
		cur.data = []byte("XX")

		err := l.Verify()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDataCorruption))
		var ce *CorruptionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, target-1, ce.Index)
		assert.Equal(t, chunk.Digest([]byte("XX")), ce.Got)
		assert.Contains(t, ce.Error(), "link")
	}
}

func TestVerifyIgnoresHeadContent(t *testing.T) {
	l := build(t, "0123456789", 2)
	l.head.data = []byte("??")
	assert.NoError(t, l.Verify())
}

func TestVerifyDetectsClearedChecksum(t *testing.T) {
	l := FromWord("abc")
	l.head.next.nextSum = ""
	var ce *CorruptionError
	require.ErrorAs(t, l.Verify(), &ce)
	assert.Equal(t, 1, ce.Index)
	assert.Contains(t, ce.Error(), "<absent>")
}

func TestFromWordMultibyte(t *testing.T) {
	l := FromWord("héllo")
	chunks := l.Chunks()
	require.Len(t, chunks, 5)
	assert.Equal(t, []byte("é"), chunks[1])
	assert.Equal(t, []byte("héllo"), Reduce(l))
}

func TestWriteTo(t *testing.T) {
	l := build(t, "stream me out", 5)
	var buf bytes.Buffer
	n, err := l.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "stream me out", buf.String())
}

func TestSnapshotIsIndependent(t *testing.T) {
	l := FromWord("abc")
	snap := l.Snapshot()
	l.Delete([]byte("b"))
	l.Append([]byte("d"))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, snap)
	assert.Equal(t, []byte("acd"), Reduce(l))
}

func TestOverwriteInjectsFault(t *testing.T) {
	l := FromWord("abcd")
	assert.False(t, l.Overwrite(-1, []byte("x")))
	assert.False(t, l.Overwrite(4, []byte("x")))

	require.True(t, l.Overwrite(2, []byte("x")))
	assert.Equal(t, []byte("abxd"), Reduce(l))
	var ce *CorruptionError
	require.ErrorAs(t, l.Verify(), &ce)
	assert.Equal(t, 1, ce.Index)

	l = FromWord("abcd")
	require.True(t, l.Overwrite(0, []byte("z")))
	assert.NoError(t, l.Verify())
}
