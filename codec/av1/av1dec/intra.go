/*
DESCRIPTION
  intra.go provides the intra mode syntax: luma and chroma modes, angle
  deltas, chroma from luma alphas and palette mode with its colour cache and
  colour index map.

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
	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
)

func (w *Worker) intraInfo(b *Block) {
	hdr := w.F.Hdr
	if hdr.IsIntra() {
		actx, lctx := 0, 0
		if w.haveTop {
			actx = intraModeContext[w.a.mode]
		}
		if w.haveLeft {
			lctx = intraModeContext[w.l.mode]
		}
		b.YMode = w.sym(cdf.KfYMode, actx*5+lctx)
	} else {
		b.YMode = w.sym(cdf.YMode, min(3, b.Size.W4Log2(), b.Size.H4Log2()))
	}
	if b.Size >= BS8x8 && IsDirectional(b.YMode) {
		b.Angle[0] = w.sym(cdf.AngleDelta, b.YMode-VPred) - 3
	}

	b.UVMode = DCPred
	if b.HasChroma {
		if b.Size.W4() <= 8 && b.Size.H4() <= 8 {
			b.UVMode = w.sym(cdf.UVModeCFL, b.YMode)
		} else {
			b.UVMode = w.sym(cdf.UVModeNoCFL, b.YMode)
		}
		if b.UVMode == CFLPred {
			w.readCFL(b)
		} else if b.Size >= BS8x8 && IsDirectional(b.UVMode) {
			b.Angle[1] = w.sym(cdf.AngleDelta, b.UVMode-VPred) - 3
		}
	}

	if b.Size >= BS8x8 && b.Size.W4() <= 16 && b.Size.H4() <= 16 && hdr.AllowScreenContentTools {
		w.readPalette(b)
		w.readPaletteTokens(b)
	}
}

func (w *Worker) readCFL(b *Block) {
	signs := w.sym(cdf.CFLSign, 0)
	su, sv := (signs+1)/3, (signs+1)%3
	if su != 0 {
		a := w.sym(cdf.CFLAlpha, (su-1)*3+sv) + 1
		if su == 1 {
			a = -a
		}
		b.CFLAlpha[0] = a
	}
	if sv != 0 {
		a := w.sym(cdf.CFLAlpha, (sv-1)*3+su) + 1
		if sv == 1 {
			a = -a
		}
		b.CFLAlpha[1] = a
	}
}

func (w *Worker) readPalette(b *Block) {
	bd := w.F.Hdr.BitDepth
	bctx := b.Size.W4Log2() + b.Size.H4Log2() - 2
	if b.YMode == DCPred {
		ctx := b2i(w.haveTop && w.a.palSize[0] > 0) + b2i(w.haveLeft && w.l.palSize[0] > 0)
		if w.flag(cdf.PaletteY, bctx*3+ctx) {
			n := w.sym(cdf.PaletteSizeY, bctx) + 2
			b.PalSize[0] = uint8(n)
			w.readPaletteColors(b, 0, n, bd)
		}
	}
	if b.HasChroma && b.UVMode == DCPred {
		if w.flag(cdf.PaletteUV, b2i(b.PalSize[0] > 0)) {
			n := w.sym(cdf.PaletteSizeUV, bctx) + 2
			b.PalSize[1] = uint8(n)
			w.readPaletteColors(b, 1, n, bd)
			w.readPaletteV(b, n, bd)
		}
	}
}

// paletteCache merges the sorted palettes of the above and left blocks,
// dropping duplicates. The above palette is not used across a 64 pixel row
// boundary.
func (w *Worker) paletteCache(b *Block, plane int, cache *[16]uint16) int {
	var an, ln int
	if b.Y4&15 != 0 && w.haveTop {
		an = int(w.a.palSize[plane])
	}
	if w.haveLeft {
		ln = int(w.l.palSize[plane])
	}
	above, left := w.a.pal[plane][:an], w.l.pal[plane][:ln]
	n := 0
	add := func(c uint16) {
		if n == 0 || c != cache[n-1] {
			cache[n] = c
			n++
		}
	}
	ai, li := 0, 0
	for ai < an && li < ln {
		ac, lc := above[ai], left[li]
		if lc < ac {
			add(lc)
			li++
			continue
		}
		add(ac)
		ai++
		if lc == ac {
			li++
		}
	}
	for ; ai < an; ai++ {
		add(above[ai])
	}
	for ; li < ln; li++ {
		add(left[li])
	}
	return n
}

// readPaletteColors reads the luma or U palette of n colours.
func (w *Worker) readPaletteColors(b *Block, plane, n, bd int) {
	var cache [16]uint16
	cn := w.paletteCache(b, plane, &cache)
	var cached, fresh [8]uint16
	nc, nf := 0, 0
	for i := 0; i < cn && nc < n; i++ {
		if w.lit(1) == 1 {
			cached[nc] = cache[i]
			nc++
		}
	}
	if nc < n {
		fresh[0] = uint16(w.lit(bd))
		nf = 1
	}
	if nc+nf < n {
		bits := bd - 3 + w.lit(2)
		for ; nc+nf < n; nf++ {
			d := w.lit(bits)
			if plane == 0 {
				d++
			}
			v := min(int(fresh[nf-1])+d, 1<<uint(bd)-1)
			fresh[nf] = uint16(v)
			bits = min(bits, ceilLog2(1<<uint(bd)-v-b2i(plane == 0)))
		}
	}
	mergeColors(b.Pal[plane][:n], cached[:nc], fresh[:nf])
}

// mergeColors merges the ascending lists a and b into dst, taking from a
// first on equal values.
func mergeColors(dst, a, b []uint16) {
	i, j := 0, 0
	for k := range dst {
		if j >= len(b) || (i < len(a) && a[i] <= b[j]) {
			dst[k] = a[i]
			i++
		} else {
			dst[k] = b[j]
			j++
		}
	}
}

func ceilLog2(x int) int {
	if x < 2 {
		return 0
	}
	i := 1
	for p := 2; p < x; p <<= 1 {
		i++
	}
	return i
}

func (w *Worker) readPaletteV(b *Block, n, bd int) {
	lim := 1 << uint(bd)
	if w.lit(1) == 0 {
		for i := 0; i < n; i++ {
			b.Pal[2][i] = uint16(w.lit(bd))
		}
		return
	}
	bits := bd - 4 + w.lit(2)
	b.Pal[2][0] = uint16(w.lit(bd))
	for i := 1; i < n; i++ {
		d := w.lit(bits)
		if d != 0 && w.lit(1) == 1 {
			d = -d
		}
		v := int(b.Pal[2][i-1]) + d
		if v < 0 {
			v += lim
		}
		if v >= lim {
			v -= lim
		}
		b.Pal[2][i] = uint16(clamp(v, 0, lim-1))
	}
}

// PaletteMapDims returns the dimensions in pixels of the colour index map of
// plane class p (0 luma, 1 chroma) of b.
func (b *Block) PaletteMapDims(p int, l header.Layout) (w, h int) {
	w, h = b.Size.W4()*4, b.Size.H4()*4
	if p > 0 {
		w >>= uint(l.SubX())
		h >>= uint(l.SubY())
		if w < 4 {
			w += 2
		}
		if h < 4 {
			h += 2
		}
	}
	return w, h
}

var paletteColorHash = [9]int{-1, -1, 0, -1, -1, 4, 3, 2, 1}

// paletteColorContext returns the colour order by neighbour score for the
// index at row r, column c of m, and the colour context.
func paletteColorContext(m []uint8, stride, r, c, n int) (order [8]uint8, ctx int) {
	var scores [8]int
	for i := range order {
		order[i] = uint8(i)
	}
	if c > 0 {
		scores[m[r*stride+c-1]] += 2
	}
	if r > 0 && c > 0 {
		scores[m[(r-1)*stride+c-1]]++
	}
	if r > 0 {
		scores[m[(r-1)*stride+c]] += 2
	}
	for i := 0; i < 3; i++ {
		best, bi := scores[i], i
		for j := i + 1; j < n; j++ {
			if scores[j] > best {
				best, bi = scores[j], j
			}
		}
		if bi == i {
			continue
		}
		bo := order[bi]
		for k := bi; k > i; k-- {
			scores[k] = scores[k-1]
			order[k] = order[k-1]
		}
		scores[i], order[i] = best, bo
	}
	return order, paletteColorHash[scores[0]+2*scores[1]+2*scores[2]]
}

// readPaletteTokens reads the colour index maps in wavefront order.
func (w *Worker) readPaletteTokens(b *Block) {
	f := w.F
	l := f.Hdr.Layout
	for p := 0; p < 2; p++ {
		n := int(b.PalSize[p])
		if n == 0 {
			continue
		}
		bw, bh := b.PaletteMapDims(p, l)
		onW := min(b.Size.W4(), f.W4-b.X4) * 4
		onH := min(b.Size.H4(), f.H4-b.Y4) * 4
		if p > 0 {
			onW >>= uint(l.SubX())
			onH >>= uint(l.SubY())
			if b.Size.W4()*4>>uint(l.SubX()) < 4 {
				onW += 2
			}
			if b.Size.H4()*4>>uint(l.SubY()) < 4 {
				onH += 2
			}
		}
		m := resize(b.PalIdx[p], bw*bh)
		tb := cdf.PaletteColor2 + cdf.Table(n-2)
		m[0] = uint8(w.ns(n))
		for i := 1; i < onH+onW-1; i++ {
			for j := min(i, onW-1); j >= max(0, i-onH+1); j-- {
				order, ctx := paletteColorContext(m, bw, i-j, j, n)
				m[(i-j)*bw+j] = order[w.sym(tb, p*5+ctx)]
			}
		}
		for y := 0; y < onH; y++ {
			for x := onW; x < bw; x++ {
				m[y*bw+x] = m[y*bw+onW-1]
			}
		}
		for y := onH; y < bh; y++ {
			copy(m[y*bw:(y+1)*bw], m[(y-1)*bw:y*bw])
		}
		b.PalIdx[p] = m
	}
}
