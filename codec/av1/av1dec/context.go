/*
DESCRIPTION
  context.go provides the per 4x4 neighbour context kept above and to the
  left of the block being decoded, and the symbol reading helpers used by
  the block syntax.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package av1dec

import "github.com/ausocean/av1/codec/av1/cdf"

// nbr is the context left by decoded blocks for one 4x4 column (above) or
// row (left).
type nbr struct {
	part     uint8 // Width (above) or height (left) as log2 of 4x4 units.
	skip     bool
	skipMode bool
	segPred  bool
	intra    bool
	comp     bool
	mode     uint8 // Luma intra mode or inter mode.
	ref      [2]int8
	filter   [2]uint8
	txfm     uint8 // Transform size along the edge.
	palSize  [2]uint8
	pal      [2][8]uint16
}

func (n *nbr) reset() { *n = nbr{part: 0xff, ref: [2]int8{-1, -1}} }

// coefCtx is the coefficient context of one 4x4 column or row of a plane:
// the cumulative level and dc sign category of the transform block last
// coded over it. Chroma entries are indexed in chroma 4x4 units.
type coefCtx struct {
	level, dc uint8
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sym reads a symbol coded with context ctx of table tb.
func (w *Worker) sym(tb cdf.Table, ctx int) int {
	return w.T.Reader.Symbol(w.T.CDF.CDF(tb, ctx), cdf.Symbols(tb))
}

// symIf reads a symbol, restricting a choosing source to values accepted
// by ok.
func (w *Worker) symIf(tb cdf.Table, ctx int, ok func(v int) bool) int {
	constrain(w.T.Reader, ok)
	return w.sym(tb, ctx)
}

func (w *Worker) flag(tb cdf.Table, ctx int) bool { return w.sym(tb, ctx) == 1 }

func (w *Worker) lit(n int) int { return int(w.T.Reader.Bools(n)) }

// ns reads a non-symmetric unsigned value in [0, n).
func (w *Worker) ns(n int) int {
	bits := 0
	for 1<<uint(bits) <= n {
		bits++
	}
	m := 1<<uint(bits) - n
	v := w.lit(bits - 1)
	if v < m {
		return v
	}
	return v<<1 - m + w.lit(1)
}

// planeSize returns the size in plane 4x4 units of the frame.
func (w *Worker) planeSize(plane int) (w4, h4 int) {
	f := w.F
	if plane == 0 {
		return f.W4, f.H4
	}
	sx, sy := f.Hdr.Layout.SubX(), f.Hdr.Layout.SubY()
	return (f.W4 + sx) >> uint(sx), (f.H4 + sy) >> uint(sy)
}

// CoefContext returns the largest cumulative coefficient level above and to
// the left of the transform block of size tx at plane 4x4 position x4, y4,
// and the sum of the dc signs of those neighbours.
func (w *Worker) CoefContext(plane, x4, y4, tx int) (above, left uint8, dcSign int) {
	pw, ph := w.planeSize(plane)
	a := w.F.aboveCoef[w.T.Geo.Row][plane]
	l := &w.leftCoef[plane]
	n := 1 << uint(tx)
	for i := 0; i < n && x4+i < pw; i++ {
		e := &a[x4+i]
		above = max(above, e.level)
		dcSign += dcValue(e.dc)
	}
	for i := 0; i < n && y4+i < ph; i++ {
		e := &l[(y4+i)&31]
		left = max(left, e.level)
		dcSign += dcValue(e.dc)
	}
	return above, left, dcSign
}

// SetCoefContext records the cumulative level and dc sign category (0 none,
// 1 negative, 2 positive) of a decoded transform block.
func (w *Worker) SetCoefContext(plane, x4, y4, tx int, level, dc uint8) {
	pw, ph := w.planeSize(plane)
	a := w.F.aboveCoef[w.T.Geo.Row][plane]
	l := &w.leftCoef[plane]
	n := 1 << uint(tx)
	for i := 0; i < n && x4+i < pw; i++ {
		a[x4+i] = coefCtx{level: level, dc: dc}
	}
	for i := 0; i < n && y4+i < ph; i++ {
		l[(y4+i)&31] = coefCtx{level: level, dc: dc}
	}
}

func dcValue(dc uint8) int {
	switch dc {
	case 1:
		return -1
	case 2:
		return 1
	}
	return 0
}

// clearCoefContext resets the coefficient contexts covered by a skipped
// block.
func (w *Worker) clearCoefContext(b *Block) {
	for p := 0; p < 3; p++ {
		if p > 0 && !b.HasChroma {
			break
		}
		x4, y4, bw, bh := b.PlaneRect(p, w.F.Hdr.Layout)
		pw, ph := w.planeSize(p)
		a := w.F.aboveCoef[w.T.Geo.Row][p]
		for i := x4; i < x4+bw && i < pw; i++ {
			a[i] = coefCtx{}
		}
		for i := y4; i < y4+bh && i < ph; i++ {
			w.leftCoef[p][i&31] = coefCtx{}
		}
	}
}
