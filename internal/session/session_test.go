package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/meta"
	"github.com/kk-code-lab/chunkchain/internal/metrics"
	"github.com/kk-code-lab/chunkchain/internal/sink"
	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

type memSink struct {
	mu      sync.Mutex
	data    []byte
	written bool
	err     error
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = bytes.Clone(data)
	m.written = true
	return nil
}

func (m *memSink) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.written {
		return nil, sink.ErrNothingReceived
	}
	return bytes.Clone(m.data), nil
}

func newTestSession(t *testing.T, size int, opts ...func(*Options)) (*Session, *memSink) {
	t.Helper()
	ms := &memSink{}
	o := Options{ChunkSize: size, Sink: ms, Logger: zerolog.Nop(), VerifyOnLoad: true}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := New(o)
	require.NoError(t, err)
	return s, ms
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{ChunkSize: 0, Sink: &memSink{}})
	assert.ErrorIs(t, err, chunk.ErrInvalidArgument)

	_, err = New(Options{ChunkSize: 4})
	assert.Error(t, err)
}

func TestLoadFileAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello chunked world"), 0o644))

	s, _ := newTestSession(t, 5)
	res, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Source: path, Chunks: 4, Bytes: 19}, res)
	assert.Equal(t, path, s.Source())

	entries := s.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, chunk.Digest([]byte(" chun")), entries[0].NextSum)
	assert.Equal(t, "orld", entries[3].Text)
	assert.Equal(t, int64(15), entries[3].Offset)
	assert.Empty(t, entries[3].NextSum)
}

func TestLoadMissingFile(t *testing.T) {
	s, _ := newTestSession(t, 5)
	_, err := s.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, s.IsEmpty())
}

func TestLoadReaderCancelled(t *testing.T) {
	s, _ := newTestSession(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.LoadReader(ctx, "r", strings.NewReader("abc"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.IsEmpty())
}

func TestLoadBytesMatchesLoadReader(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 7)
	a, _ := newTestSession(t, 8)
	b, _ := newTestSession(t, 8)
	_, err := a.LoadBytes(context.Background(), "mem", payload)
	require.NoError(t, err)
	_, err = b.LoadReader(context.Background(), "mem", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, a.Chunks(), b.Chunks())
	assert.Equal(t, 9, a.Len())
}

func TestLoadWord(t *testing.T) {
	s, _ := newTestSession(t, 1024)
	_, err := s.LoadWord(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyWord)

	res, err := s.LoadWord(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("a"), []byte("t")}, s.Chunks())
}

func TestSendEmptyList(t *testing.T) {
	s, ms := newTestSession(t, 4)
	_, err := s.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyList)
	assert.False(t, ms.written)
}

func TestSendWritesReducedPayload(t *testing.T) {
	m := metrics.New()
	s, ms := newTestSession(t, 2, func(o *Options) { o.Metrics = m })
	_, err := s.LoadBytes(context.Background(), "mem", []byte("ABCDE"))
	require.NoError(t, err)

	res, err := s.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDE"), ms.data)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, int64(5), res.Bytes)
	assert.Equal(t, chunk.Digest([]byte("ABCDE")), res.SHA256)
	assert.Equal(t, chunk.Fingerprint([]byte("ABCDE")), res.BLAKE3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sends))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BytesSent))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ListChunks))
}

func TestSendSinkFailure(t *testing.T) {
	s, ms := newTestSession(t, 2)
	ms.err = errors.New("disk full")
	_, err := s.LoadWord(context.Background(), "ab")
	require.NoError(t, err)
	_, err = s.Send(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestSendAsyncUsesSnapshot(t *testing.T) {
	s, ms := newTestSession(t, 1)
	_, err := s.LoadWord(context.Background(), "abc")
	require.NoError(t, err)

	ch := s.SendAsync(context.Background())
	_, err = s.LoadWord(context.Background(), "zzzz")
	require.NoError(t, err)

	select {
	case out := <-ch:
		require.NoError(t, out.Err)
		assert.Equal(t, 3, out.Result.Chunks)
	case <-time.After(5 * time.Second):
		t.Fatal("SendAsync did not complete")
	}
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, []byte("abc"), ms.data)
}

func TestSendAsyncEmpty(t *testing.T) {
	s, _ := newTestSession(t, 1)
	out := <-s.SendAsync(context.Background())
	assert.ErrorIs(t, out.Err, ErrEmptyList)
}

func TestDeleteSelected(t *testing.T) {
	m := metrics.New()
	s, ms := newTestSession(t, 1, func(o *Options) { o.Metrics = m })
	_, err := s.LoadWord(context.Background(), "cat")
	require.NoError(t, err)

	res, err := s.DeleteSelected(context.Background(), [][]byte{[]byte("a"), []byte("q")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, [][]byte{[]byte("q")}, res.Missed)
	assert.Equal(t, []byte("ct"), ms.data)
	assert.Equal(t, meta.ActionDelete, res.Send.Action)
	assert.NoError(t, s.Verify(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletes.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletes.WithLabelValues("miss")))
}

func TestDeleteSelectedRequiresSelection(t *testing.T) {
	s, _ := newTestSession(t, 1)
	_, err := s.DeleteSelected(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = s.DeleteIndices(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestDeleteIndices(t *testing.T) {
	s, ms := newTestSession(t, 1)
	_, err := s.LoadWord(context.Background(), "banana")
	require.NoError(t, err)

	_, err = s.DeleteIndices(context.Background(), []int{9})
	assert.ErrorIs(t, err, ErrBadIndex)

	res, err := s.DeleteIndices(context.Background(), []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []byte("bnna"), ms.data)
}

func TestDeleteIndicesRepeatedPosition(t *testing.T) {
	s, ms := newTestSession(t, 1)
	_, err := s.LoadWord(context.Background(), "aab")
	require.NoError(t, err)

	res, err := s.DeleteIndices(context.Background(), []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requested)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []byte("ab"), ms.data)
	require.NoError(t, s.Verify(context.Background()))
}

func TestReceive(t *testing.T) {
	s, _ := newTestSession(t, 4)
	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, sink.ErrNothingReceived)

	_, err = s.LoadBytes(context.Background(), "mem", []byte("caf\xc3\xa9\xff!"))
	require.NoError(t, err)
	_, err = s.Send(context.Background())
	require.NoError(t, err)

	rec, err := s.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "café!", rec.Text)
	assert.Equal(t, 7, rec.Bytes)
	assert.Nil(t, rec.Matches)
}

func TestVerifyReportsCorruption(t *testing.T) {
	m := metrics.New()
	s, _ := newTestSession(t, 1, func(o *Options) { o.Metrics = m })
	_, err := s.LoadWord(context.Background(), "abc")
	require.NoError(t, err)
	require.NoError(t, s.Verify(context.Background()))

	require.NoError(t, s.Tamper(2, []byte("x")))
	assert.ErrorIs(t, s.Tamper(3, []byte("x")), ErrBadIndex)

	err = s.Verify(context.Background())
	require.ErrorIs(t, err, chain.ErrDataCorruption)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrityFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IntegrityChecks))
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, "abc", DisplayText([]byte("abc")))
	assert.Equal(t, "ab", DisplayText([]byte{'a', 0xff, 'b'}))
	assert.Equal(t, "", DisplayText(nil))
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("word")
	require.NoError(t, err)
	assert.Equal(t, []byte("word"), v)

	v, err = ParseValue("hex:00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, v)

	_, err = ParseValue("hex:0")
	assert.ErrorIs(t, err, chunk.ErrInvalidArgument)
}
