package chain

import "bytes"

// Overwrite replaces the chunk at index in place without updating any
// checksum, leaving the predecessor's link stale. It exists for fault
// injection: Verify reports the link at index-1 afterwards (overwriting
// the head goes unnoticed, nothing links to it). It reports whether index
// was in range.
func (l *List) Overwrite(index int, data []byte) bool {
	if index < 0 {
		return false
	}
	i := 0
	for cur := l.head; cur != nil; cur = cur.next {
		if i == index {
			cur.data = bytes.Clone(data)
			if cur.data == nil {
				cur.data = []byte{}
			}
			return true
		}
		i++
	}
	return false
}
