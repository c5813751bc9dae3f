/*
DESCRIPTION
  tx.go provides the transform size syntax, including variable transform
  split for inter blocks, the transform block layout of each plane and the
  transform edges used by deblocking.

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

import (
	"math/bits"

	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
)

func ilog2(v int) int { return bits.Len(uint(v)) - 1 }

// maxTx returns the largest square transform fitting b.
func maxTx(b *Block) int { return min(b.Size.W4Log2(), b.Size.H4Log2(), TX64x64) }

func (w *Worker) txCtx(mt int) int {
	above := w.haveTop && int(w.a.txfm) >= mt
	left := w.haveLeft && int(w.l.txfm) >= mt
	return b2i(above) + b2i(left)
}

// squares calls fn for each tx sized square of the plane rectangle starting
// inside the plane.
func squares(x4, y4, w4, h4, tx, pw, ph int, fn func(x4, y4 int)) {
	n := 1 << uint(tx)
	for y := y4; y < y4+h4 && y < ph; y += n {
		for x := x4; x < x4+w4 && x < pw; x += n {
			fn(x, y)
		}
	}
}

func (w *Worker) readTxSize(b *Block) {
	f := w.F
	hdr := f.Hdr
	mt := maxTx(b)
	res := &b.Res[0]
	res.Tx = res.Tx[:0]
	add := func(tx int) func(x4, y4 int) {
		return func(x4, y4 int) { res.Tx = append(res.Tx, TxBlock{X4: int32(x4), Y4: int32(y4), Size: uint8(tx)}) }
	}

	switch {
	case hdr.TxMode == header.Select && mt > TX4x4 && !b.Intra && !b.Skip:
		squares(b.X4, b.Y4, b.Size.W4(), b.Size.H4(), mt, f.W4, f.H4, func(x4, y4 int) {
			w.readVarTx(b, x4, y4, mt, 0)
		})
	case hdr.TxMode == header.Only4x4:
		squares(b.X4, b.Y4, b.Size.W4(), b.Size.H4(), TX4x4, f.W4, f.H4, add(TX4x4))
	default:
		tx := mt
		if hdr.TxMode == header.Select && mt > TX4x4 && (!b.Skip || b.Intra) {
			ctx := w.txCtx(mt)
			if mt == TX8x8 {
				tx -= w.sym(cdf.TxSize8, ctx)
			} else {
				tx -= w.sym(cdf.TxSize, (mt-2)*3+ctx)
			}
		}
		squares(b.X4, b.Y4, b.Size.W4(), b.Size.H4(), tx, f.W4, f.H4, add(tx))
	}

	for p := 1; p < 3; p++ {
		b.Res[p].Tx = b.Res[p].Tx[:0]
	}
	if !b.HasChroma {
		return
	}
	x4, y4, cw, ch := b.PlaneRect(1, hdr.Layout)
	uv := min(ilog2(cw), ilog2(ch), TX32x32)
	pw, ph := w.planeSize(1)
	for p := 1; p < 3; p++ {
		r := &b.Res[p]
		squares(x4, y4, cw, ch, uv, pw, ph, func(x, y int) {
			r.Tx = append(r.Tx, TxBlock{X4: int32(x), Y4: int32(y), Size: uint8(uv)})
		})
	}
}

// readVarTx reads the transform split tree of one square of an inter block.
func (w *Worker) readVarTx(b *Block, x4, y4, tx, depth int) {
	f := w.F
	if x4 >= f.W4 || y4 >= f.H4 {
		return
	}
	res := &b.Res[0]
	if tx == TX4x4 || depth == maxVarTxDepth || !w.flag(cdf.TxfmSplit, w.txSplitCtx(b, x4, y4, tx)) {
		res.Tx = append(res.Tx, TxBlock{X4: int32(x4), Y4: int32(y4), Size: uint8(tx)})
		return
	}
	h := 1 << uint(tx-1)
	for _, o := range [4][2]int{{0, 0}, {h, 0}, {0, h}, {h, h}} {
		w.readVarTx(b, x4+o[0], y4+o[1], tx-1, depth+1)
	}
}

func (w *Worker) txSplitCtx(b *Block, x4, y4, tx int) int {
	var above, left int
	switch {
	case y4 > b.Y4:
		above = w.txAt(b, x4, y4-1)
	case w.haveTop:
		above = int(w.F.above[w.T.Geo.Row][x4].txfm)
	default:
		above = tx
	}
	switch {
	case x4 > b.X4:
		left = w.txAt(b, x4-1, y4)
	case w.haveLeft:
		left = int(w.left[y4&31].txfm)
	default:
		left = tx
	}
	return (tx-1)*3 + b2i(above < tx) + b2i(left < tx)
}

// txAt returns the size of the luma transform block of b covering x4, y4.
func (w *Worker) txAt(b *Block, x4, y4 int) int {
	for _, t := range b.Res[0].Tx {
		n := int32(1) << t.Size
		if int32(x4) >= t.X4 && int32(x4) < t.X4+n && int32(y4) >= t.Y4 && int32(y4) < t.Y4+n {
			return int(t.Size)
		}
	}
	return maxTx(b)
}

// markEdges flags the transform edges of b in the loop filter map.
func (w *Worker) markEdges(b *Block) {
	f := w.F
	for _, t := range b.Res[0].Tx {
		w.edge(int(t.X4), int(t.Y4), 1<<t.Size, 0, 0, EdgeYV, EdgeYH)
	}
	if !b.HasChroma {
		return
	}
	sx, sy := uint(f.Hdr.Layout.SubX()), uint(f.Hdr.Layout.SubY())
	for _, t := range b.Res[1].Tx {
		w.edge(int(t.X4)<<sx, int(t.Y4)<<sy, 1<<t.Size, sx, sy, EdgeUVV, EdgeUVH)
	}
}

// edge flags the left and top edges of an n sized square at luma position
// x4, y4 of a plane subsampled by sx, sy.
func (w *Worker) edge(x4, y4, n int, sx, sy uint, v, h uint8) {
	f := w.F
	for y := y4; y < y4+n<<sy && y < f.H4; y++ {
		if x4 < f.W4 {
			f.LF[y*f.W4+x4].Edge |= v
		}
	}
	if y4 >= f.H4 {
		return
	}
	for x := x4; x < x4+n<<sx && x < f.W4; x++ {
		f.LF[y4*f.W4+x].Edge |= h
	}
}
