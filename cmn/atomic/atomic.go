// Package atomic provides small typed counters over sync/atomic, mirroring
// the teacher's own cmn/atomic usage shape (Load/Store/Inc/Dec on a named
// type rather than raw int64 fields sprinkled through structs).
package atomic

import "sync/atomic"

type Int64 struct{ v int64 }

func (a *Int64) Load() int64         { return atomic.LoadInt64(&a.v) }
func (a *Int64) Store(n int64)       { atomic.StoreInt64(&a.v, n) }
func (a *Int64) Inc() int64          { return atomic.AddInt64(&a.v, 1) }
func (a *Int64) Dec() int64          { return atomic.AddInt64(&a.v, -1) }
func (a *Int64) Add(n int64) int64   { return atomic.AddInt64(&a.v, n) }
func (a *Int64) CAS(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&a.v, old, new)
}

type Int32 struct{ v int32 }

func (a *Int32) Load() int32       { return atomic.LoadInt32(&a.v) }
func (a *Int32) Store(n int32)     { atomic.StoreInt32(&a.v, n) }
func (a *Int32) Inc() int32        { return atomic.AddInt32(&a.v, 1) }
func (a *Int32) Dec() int32        { return atomic.AddInt32(&a.v, -1) }

type Bool struct{ v int32 }

func (b *Bool) Load() bool { return atomic.LoadInt32(&b.v) != 0 }
func (b *Bool) Store(v bool) {
	if v {
		atomic.StoreInt32(&b.v, 1)
	} else {
		atomic.StoreInt32(&b.v, 0)
	}
}

// CAS on the boolean, returning whether the swap happened.
func (b *Bool) CAS(old, new bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if new {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}
