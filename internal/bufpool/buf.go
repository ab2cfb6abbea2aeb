// Package bufpool pools the scratch buffers used to assemble payloads.
package bufpool

import (
	"bytes"
	"sync"
)

var pool sync.Pool

// Get returns a buffer from the pool or creates a new one if
// the pool is empty.
func Get() *bytes.Buffer {
	b, ok := pool.Get().(*bytes.Buffer)
	if !ok {
		b = &bytes.Buffer{}
	}
	return b
}

// Put returns a buffer into the pool.
func Put(b *bytes.Buffer) {
	b.Reset()
	pool.Put(b)
}

// Concat returns a new slice holding chunks joined in order.
// The returned slice does not alias any pooled memory.
func Concat(chunks [][]byte) []byte {
	b := Get()
	defer Put(b)

	for _, c := range chunks {
		b.Write(c)
	}

	p := make([]byte, b.Len())
	copy(p, b.Bytes())
	return p
}
