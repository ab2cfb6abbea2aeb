// Package atomicint provides the counters behind stream statistics.
package atomicint

import (
	"sync/atomic"
)

// Int64 is an int64 safe for concurrent use.
// The zero value is ready to use.
type Int64 struct {
	v int64
}

func (v *Int64) Load() int64 {
	return atomic.LoadInt64(&v.v)
}

// Increment adds delta and returns the new value.
func (v *Int64) Increment(delta int64) int64 {
	return atomic.AddInt64(&v.v, delta)
}
