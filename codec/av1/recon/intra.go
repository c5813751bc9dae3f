/*
DESCRIPTION
  intra.go provides intra prediction per transform block: DC, vertical,
  horizontal, Paeth, smooth, directional, palette and chroma from luma.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package recon

import (
	"math"

	"github.com/ausocean/av1/codec/av1/av1dec"
)

// cot256 holds 256 times the cotangent of each whole angle in degrees
// from 1 to 89.
var cot256 [90]int

func init() {
	for a := 1; a < 90; a++ {
		r := float64(a) * math.Pi / 180
		cot256[a] = int(math.Round(256 * math.Cos(r) / math.Sin(r)))
	}
}

// ReconstructIntra predicts each transform block of b and adds its
// residual, in plane then raster order so that later blocks predict from
// reconstructed pixels.
func (k kernels[P]) ReconstructIntra(w *av1dec.Worker, b *av1dec.Block) {
	f := w.F
	s := scratchOf[P](w)
	for p := 0; p < 3; p++ {
		if p > 0 && !b.HasChroma {
			break
		}
		pl := av1dec.PlaneOf[P](f.Pic, p)
		res := &b.Res[p]
		off := 0
		for i, t := range res.Tx {
			n := 4 << t.Size
			x, y := int(t.X4)*4, int(t.Y4)*4
			k.predictIntra(w, s, b, p, pl, x, y, n)
			k.store(pl, x, y, n, n, s.pred)
			if i < len(res.EOB) {
				e := int(res.EOB[i])
				k.addResidual(pl, x, y, int(t.Size), int(res.TxType[i]), b.QIdx, res.Coefs[off:off+e])
				off += e
			}
		}
	}
}

// store writes the w by h prediction pred at x, y of pl.
func (k kernels[P]) store(pl *av1dec.Plane[P], x, y, w, h int, pred []int32) {
	for j := 0; j < h; j++ {
		row := pl.Pix[(y+j)*pl.Stride+x:]
		for i := 0; i < w; i++ {
			row[i] = k.clip(int(pred[j*w+i]))
		}
	}
}

type edges struct {
	top, left         []int32 // 2n samples each.
	topLeft           int32
	haveTop, haveLeft bool
}

// neighbours gathers the neighbouring samples of the n by n block at x, y of
// plane p. Rows above a superblock row come from the unfiltered edge
// backup; samples beyond the tile or the decoded area are replicated.
func (k kernels[P]) neighbours(w *av1dec.Worker, s *scratch[P], p int, pl *av1dec.Plane[P], x, y, n int) edges {
	f, t := w.F, w.T
	sx, sy := sub(f, p)
	gw, gh := gridSize(f, p)
	x0, x1 := (t.Geo.Col4Start*4)>>sx, min((t.Geo.Col4End*4)>>sx, gw)
	y0 := (t.Geo.Row4Start * 4) >> sy
	sbTop := (w.SBRow() * f.Hdr.SBSize()) >> sy
	base := int32(1) << uint(k.bd-1)

	s.line = grow(s.line, 4*n)
	e := edges{top: s.line[:2*n], left: s.line[2*n : 4*n]}
	e.haveTop, e.haveLeft = y > y0, x > x0

	var above []P
	if e.haveTop {
		lim := min(x+n, x1)
		if y == sbTop {
			above = av1dec.PlaneOf[P](f.Edge, p).Row(w.SBRow() - 1)
			lim = x1
		} else {
			above = pl.Pix[(y-1)*pl.Stride : y*pl.Stride]
		}
		for i := range e.top {
			e.top[i] = int32(above[min(x+i, lim-1)])
		}
	} else {
		for i := range e.top {
			e.top[i] = base - 1
		}
	}
	if e.haveLeft {
		last := min(y+n, gh) - 1
		for i := range e.left {
			e.left[i] = int32(pl.Pix[min(y+i, last)*pl.Stride+x-1])
		}
	} else {
		for i := range e.left {
			e.left[i] = base + 1
		}
	}
	switch {
	case e.haveTop && e.haveLeft:
		e.topLeft = int32(above[x-1])
	case e.haveTop:
		e.topLeft = e.top[0]
	case e.haveLeft:
		e.topLeft = e.left[0]
	default:
		e.topLeft = base
	}
	return e
}

func (k kernels[P]) predictIntra(w *av1dec.Worker, s *scratch[P], b *av1dec.Block, p int, pl *av1dec.Plane[P], x, y, n int) {
	s.pred = grow(s.pred, n*n)
	dst := s.pred
	pi := min(p, 1)
	if b.PalSize[pi] > 0 {
		k.palette(w, b, p, x, y, n, dst)
		return
	}
	e := k.neighbours(w, s, p, pl, x, y, n)
	mode, delta := b.YMode, b.Angle[0]
	if p > 0 {
		mode, delta = b.UVMode, b.Angle[1]
	}
	switch {
	case mode == av1dec.DCPred || mode == av1dec.CFLPred:
		k.dc(dst, n, &e)
		if mode == av1dec.CFLPred {
			k.cfl(w, s, b, p, x, y, n, dst)
		}
	case mode == av1dec.PaethPred:
		paeth(dst, n, &e)
	case mode == av1dec.SmoothPred || mode == av1dec.SmoothVPred || mode == av1dec.SmoothHPred:
		smooth(dst, n, mode, &e)
	default:
		directional(dst, n, av1dec.ModeAngle(mode, delta), &e)
	}
}

func (k kernels[P]) dc(dst []int32, n int, e *edges) {
	var sum, cnt int32
	if e.haveTop {
		for _, v := range e.top[:n] {
			sum += v
		}
		cnt += int32(n)
	}
	if e.haveLeft {
		for _, v := range e.left[:n] {
			sum += v
		}
		cnt += int32(n)
	}
	v := int32(1) << uint(k.bd-1)
	if cnt > 0 {
		v = (sum + cnt/2) / cnt
	}
	for i := range dst {
		dst[i] = v
	}
}

func paeth(dst []int32, n int, e *edges) {
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			t, l, tl := e.top[x], e.left[y], e.topLeft
			base := t + l - tl
			pt, pl, ptl := abs32(base-t), abs32(base-l), abs32(base-tl)
			switch {
			case pl <= pt && pl <= ptl:
				dst[y*n+x] = l
			case pt <= ptl:
				dst[y*n+x] = t
			default:
				dst[y*n+x] = tl
			}
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// smooth blends linearly towards the bottom left and top right samples.
func smooth(dst []int32, n, mode int, e *edges) {
	nn := int32(n)
	bottom, right := e.left[n-1], e.top[n-1]
	for y := int32(0); y < nn; y++ {
		for x := int32(0); x < nn; x++ {
			v := (nn-1-y)*e.top[x] + (y+1)*bottom
			h := (nn-1-x)*e.left[y] + (x+1)*right
			switch mode {
			case av1dec.SmoothVPred:
				dst[y*nn+x] = (v + nn/2) / nn
			case av1dec.SmoothHPred:
				dst[y*nn+x] = (h + nn/2) / nn
			default:
				dst[y*nn+x] = (v + h + nn) / (2 * nn)
			}
		}
	}
}

func lerp(a, b int32, frac int) int32 {
	return (a*int32(256-frac) + b*int32(frac) + 128) >> 8
}

// directional projects each pixel along angle, in degrees anticlockwise
// from the right, onto the top row or left column.
func directional(dst []int32, n, angle int, e *edges) {
	last := 2*n - 1
	side := func(s []int32, i int) int32 {
		if i < 0 {
			return e.topLeft
		}
		return s[min(i, last)]
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			var v int32
			switch {
			case angle == 90:
				v = e.top[x]
			case angle == 180:
				v = e.left[y]
			case angle < 90:
				idx := (y + 1) * cot256[angle]
				v = lerp(side(e.top, x+idx>>8), side(e.top, x+idx>>8+1), idx&255)
			case angle < 180:
				pos := x*256 - (y+1)*cot256[180-angle]
				if pos >= -256 {
					v = lerp(side(e.top, pos>>8), side(e.top, pos>>8+1), pos&255)
					break
				}
				pos = max(y*256-(x+1)*cot256[angle-90], -256)
				v = lerp(side(e.left, pos>>8), side(e.left, pos>>8+1), pos&255)
			default:
				idx := (x + 1) * cot256[270-angle]
				v = lerp(side(e.left, y+idx>>8), side(e.left, y+idx>>8+1), idx&255)
			}
			dst[y*n+x] = v
		}
	}
}

func (k kernels[P]) palette(w *av1dec.Worker, b *av1dec.Block, p, x, y, n int, dst []int32) {
	l := w.F.Hdr.Layout
	pi := min(p, 1)
	bw, _ := b.PaletteMapDims(pi, l)
	bx, by, _, _ := b.PlaneRect(p, l)
	ox, oy := x-bx*4, y-by*4
	m := b.PalIdx[pi]
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			dst[j*n+i] = int32(b.Pal[p][m[(oy+j)*bw+ox+i]])
		}
	}
}

// cfl adds the scaled AC part of the co-located reconstructed luma to the
// DC prediction in dst.
func (k kernels[P]) cfl(w *av1dec.Worker, s *scratch[P], b *av1dec.Block, p, x, y, n int, dst []int32) {
	f := w.F
	sx, sy := sub(f, p)
	luma := av1dec.PlaneOf[P](f.Pic, 0)
	gw, gh := gridSize(f, 0)
	s.pred2 = grow(s.pred2, n*n)
	ac := s.pred2
	var sum int64
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var v int32
			for dy := 0; dy <= int(sy); dy++ {
				for dx := 0; dx <= int(sx); dx++ {
					lx := min((x+i)<<sx+dx, gw-1)
					ly := min((y+j)<<sy+dy, gh-1)
					v += int32(luma.Pix[ly*luma.Stride+lx])
				}
			}
			v <<= 3 - sx - sy
			ac[j*n+i] = v
			sum += int64(v)
		}
	}
	avg := int32((sum + int64(n*n/2)) / int64(n*n))
	alpha := int32(b.CFLAlpha[p-1])
	for i := range dst {
		dst[i] += alpha * (ac[i] - avg) / 64
	}
}
