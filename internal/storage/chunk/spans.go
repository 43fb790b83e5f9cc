package chunk

// Span describes a byte range within a payload.
type Span struct {
	Offset int64
	Len    int64
}

// Spans lays out consecutive chunks back to back starting at offset 0.
func Spans(chunks [][]byte) []Span {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]Span, 0, len(chunks))
	var off int64
	for _, c := range chunks {
		out = append(out, Span{Offset: off, Len: int64(len(c))})
		off += int64(len(c))
	}
	return out
}
