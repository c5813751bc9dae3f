/*
DESCRIPTION
  cdf.go provides the adaptive probability context used by tile decoding,
  along with a reference counted, copy-on-write handle for sharing contexts
  between frames.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package cdf provides the entropy context store: the tables of adaptive
// cumulative distribution functions used to decode AV1 tile data, their
// quantiser indexed defaults and their lineage between frames.
package cdf

import (
	"sync"
	"sync/atomic"
)

// Context holds every adaptive CDF used by tile decoding.
type Context struct {
	buf []uint16
}

var ctxPool = sync.Pool{New: func() interface{} { return &Context{buf: make([]uint16, size)} }}

// New returns a Context initialised with the defaults for qidx.
func New(qidx int) *Context {
	c := ctxPool.Get().(*Context)
	c.Init(qidx)
	return c
}

// Init resets c to the defaults for quantiser index qidx.
func (c *Context) Init(qidx int) {
	if len(c.buf) != size {
		c.buf = make([]uint16, size)
	}
	copy(c.buf, defaults[QCategory(qidx)])
}

// CDF returns the CDF for table t and context ctx. The returned slice
// aliases c.
func (c *Context) CDF(t Table, ctx int) []uint16 {
	l := &tables[t]
	off := l.off + ctx*l.n
	return c.buf[off : off+l.n : off+l.n]
}

// CopyFrom makes c a deep copy of src.
func (c *Context) CopyFrom(src *Context) {
	if len(c.buf) != size {
		c.buf = make([]uint16, size)
	}
	copy(c.buf, src.buf)
}

// Equal returns true if c and o hold identical tables.
func (c *Context) Equal(o *Context) bool {
	if len(c.buf) != len(o.buf) {
		return false
	}
	for i := range c.buf {
		if c.buf[i] != o.buf[i] {
			return false
		}
	}
	return true
}

// Release returns c to the context pool. c must not be used afterwards.
func (c *Context) Release() { ctxPool.Put(c) }

// Update overwrites the frame baseline dst with the final state of the tile
// context src, clearing the adaptation counters so the next frame adapts
// quickly.
func Update(dst, src *Context) {
	dst.CopyFrom(src)
	for _, t := range tables {
		for c := 0; c < t.ctxs; c++ {
			dst.buf[t.off+c*t.n+t.n-1] = 0
		}
	}
}

// Shared progress states.
const (
	pending = iota
	ready
	failed
)

// Shared is a reference counted handle to a frame level baseline context.
// The baseline is written once, by Update or Publish, and is read only
// afterwards; readers obtain an owned copy with Clone before mutating.
type Shared struct {
	ctx      *Context
	refs     atomic.Int32
	progress atomic.Uint32
}

// NewShared returns a pending handle with one reference.
func NewShared() *Shared {
	s := &Shared{ctx: ctxPool.Get().(*Context)}
	s.refs.Store(1)
	return s
}

// NewDefault returns a ready handle holding the defaults for qidx.
func NewDefault(qidx int) *Shared {
	s := &Shared{ctx: New(qidx)}
	s.refs.Store(1)
	s.progress.Store(ready)
	return s
}

// Ref adds a reference to s and returns it.
func (s *Shared) Ref() *Shared {
	s.refs.Add(1)
	return s
}

// Unref drops a reference, returning the context to the pool when none
// remain.
func (s *Shared) Unref() {
	if s.refs.Add(-1) == 0 {
		s.ctx.Release()
		s.ctx = nil
	}
}

// Refs returns the current reference count.
func (s *Shared) Refs() int { return int(s.refs.Load()) }

// Context returns the baseline for reading. It must not be modified.
func (s *Shared) Context() *Context { return s.ctx }

// Clone returns an owned deep copy of the baseline. s must be ready.
func (s *Shared) Clone() *Context {
	c := ctxPool.Get().(*Context)
	c.CopyFrom(s.ctx)
	return c
}

// Update sets the baseline from the final state of tile context src and
// marks s ready.
func (s *Shared) Update(src *Context) {
	Update(s.ctx, src)
	s.progress.Store(ready)
}

// Publish sets the baseline to a copy of src without touching counters and
// marks s ready.
func (s *Shared) Publish(src *Context) {
	s.ctx.CopyFrom(src)
	s.progress.Store(ready)
}

// Fail marks s as never becoming ready.
func (s *Shared) Fail() { s.progress.CompareAndSwap(pending, failed) }

// Ready reports whether the baseline is available, and whether it failed.
func (s *Shared) Ready() (ok, failure bool) {
	switch s.progress.Load() {
	case ready:
		return true, false
	case failed:
		return true, true
	}
	return false, false
}
