/*
DESCRIPTION
  recon.go provides the reference reconstruction kernels used by the av1
  decoder: coefficient reading, intra and inter prediction, residual
  addition and the in-loop post-filters, generic over 8 bit and high bit
  depth pixels.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package recon provides reference implementations of the reconstruction
// kernels called by the block decoder. The transforms are identity
// transforms and the filters are simplified; output is deterministic for a
// given input but is not bit exact with other AV1 decoders.
package recon

import (
	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
)

// New returns the kernels for pictures of the given bit depth.
func New(bitDepth int) av1dec.Kernels {
	if bitDepth == 8 {
		return kernels[uint8]{bd: 8}
	}
	return kernels[uint16]{bd: bitDepth}
}

type kernels[P av1dec.Pixel] struct {
	bd int
}

// scratch holds per worker buffers, reused across blocks.
type scratch[P av1dec.Pixel] struct {
	pred   []int32
	pred2  []int32
	obmc   []int32
	line   []int32
	rows   []P
	levels []uint8
}

func scratchOf[P av1dec.Pixel](w *av1dec.Worker) *scratch[P] {
	if s, ok := w.Scratch.(*scratch[P]); ok {
		return s
	}
	s := &scratch[P]{}
	w.Scratch = s
	return s
}

func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

func (k kernels[P]) maxPixel() int { return 1<<uint(k.bd) - 1 }

func (k kernels[P]) clip(v int) P {
	if v < 0 {
		return 0
	}
	if m := k.maxPixel(); v > m {
		return P(m)
	}
	return P(v)
}

// sub returns the subsampling shifts of plane p.
func sub(f *av1dec.Frame, p int) (sx, sy uint) {
	if p == 0 {
		return 0, 0
	}
	return uint(f.Hdr.Layout.SubX()), uint(f.Hdr.Layout.SubY())
}

// gridSize returns the size in pixels of the 4x4 grid of plane p, which
// bounds the pixels written by reconstruction.
func gridSize(f *av1dec.Frame, p int) (w, h int) {
	sx, sy := sub(f, p)
	return (f.W4 * 4) >> sx, (f.H4 * 4) >> sy
}

func sym(w *av1dec.Worker, tb cdf.Table, ctx int) int {
	t := w.T
	return t.Reader.Symbol(t.CDF.CDF(tb, ctx), cdf.Symbols(tb))
}

func constrain(w *av1dec.Worker, ok func(v int) bool) {
	if c, is := w.T.Reader.(av1dec.Constrainer); is {
		c.Constrain(ok)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// qStep returns the dequantisation step of quantiser index qidx.
func qStep(qidx, bd int, dc bool) int {
	s := 4 + qidx>>2
	if dc {
		s = 4 + qidx/5
	}
	return s << uint(bd-8)
}
