// Package chain implements a singly-linked list of byte chunks in which
// every node records the SHA-256 digest of its successor's chunk.
//
// The stored digest is a commitment to the next node's content, not the
// node's own, so Verify walks from the head and checks each link against
// the node actually linked next. Append and Delete keep the links
// consistent; a List is not safe for concurrent use.
//
//	l := chain.New()
//	for _, c := range chunks {
//		l.Append(c)
//	}
//	if err := l.Verify(); err != nil {
//		// errors.Is(err, chain.ErrDataCorruption)
//	}
//	payload := chain.Reduce(l)
package chain
