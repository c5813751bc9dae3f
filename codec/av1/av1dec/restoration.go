/*
DESCRIPTION
  restoration.go provides the loop restoration unit syntax read alongside
  each superblock.

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

var (
	wienerMin = [3]int{-5, -23, -17}
	wienerMax = [3]int{10, 8, 46}
	wienerK   = [3]int{1, 2, 3}
	sgrXqdMin = [2]int{-96, -32}
	sgrXqdMax = [2]int{31, 95}
)

// SgrParams holds the self guided filter radius and strength pairs of each
// parameter set.
var SgrParams = [16][4]int{
	{2, 140, 1, 3236}, {2, 112, 1, 2158}, {2, 93, 1, 1618}, {2, 80, 1, 1438},
	{2, 70, 1, 1295}, {2, 58, 1, 1177}, {2, 47, 1, 1079}, {2, 37, 1, 996},
	{2, 30, 1, 925}, {2, 25, 1, 863}, {0, -1, 2, 2589}, {0, -1, 2, 1618},
	{0, -1, 2, 1177}, {0, -1, 2, 925}, {2, 56, 0, -1}, {2, 22, 0, -1},
}

const (
	sgrProjBits = 7
	sgrSubexpK  = 4
)

// readLR reads the restoration units whose top left corner lies in the
// superblock at x4, y4.
func (w *Worker) readLR(x4, y4 int) {
	f := w.F
	hdr := f.Hdr
	if hdr.AllowIntrabc {
		return
	}
	sb := 1 << uint(hdr.SBLog2())
	for p := 0; p < 3; p++ {
		rt := hdr.Restoration.Type[p]
		if rt == header.RestoreNone {
			continue
		}
		sx, sy := 0, 0
		if p > 0 {
			sx, sy = hdr.Layout.SubX(), hdr.Layout.SubY()
		}
		size := hdr.Restoration.UnitSize[p]
		rows, cols := f.lrRows[p], f.lrCols[p]
		r0 := (y4*(4>>uint(sy)) + size - 1) / size
		r1 := min(rows, ((y4+sb)*(4>>uint(sy))+size-1)/size)
		num, den := 4>>uint(sx), size
		if hdr.SuperRes.Enabled {
			num, den = (4>>uint(sx))*hdr.SuperRes.UpscaledWidth, size*hdr.Width
		}
		c0 := (x4*num + den - 1) / den
		c1 := min(cols, ((x4+sb)*num+den-1)/den)
		for r := r0; r < r1; r++ {
			for c := c0; c < c1; c++ {
				w.readLRUnit(p, rt, &f.LR[p][r*cols+c])
			}
		}
	}
}

func (w *Worker) readLRUnit(p int, rt header.RestorationType, u *LRUnit) {
	t := w.T
	typ := header.RestoreNone
	switch rt {
	case header.RestoreWiener:
		if w.flag(cdf.LRWiener, 0) {
			typ = header.RestoreWiener
		}
	case header.RestoreSgrproj:
		if w.flag(cdf.LRSgrproj, 0) {
			typ = header.RestoreSgrproj
		}
	default:
		switch w.sym(cdf.LRSwitchable, 0) {
		case 1:
			typ = header.RestoreWiener
		case 2:
			typ = header.RestoreSgrproj
		}
	}
	*u = LRUnit{Type: typ}

	switch typ {
	case header.RestoreWiener:
		for pass := 0; pass < 2; pass++ {
			first := 0
			if p > 0 {
				first = 1
			}
			for j := first; j < 3; j++ {
				v := w.signedSubexp(wienerMin[j], wienerMax[j]+1, wienerK[j], t.refWiener[p][pass][j])
				u.Wiener[pass][j] = int8(v)
				t.refWiener[p][pass][j] = v
			}
		}
	case header.RestoreSgrproj:
		set := w.lit(4)
		u.SgrSet = uint8(set)
		for i := 0; i < 2; i++ {
			var v int
			switch {
			case SgrParams[set][i*2] != 0:
				v = w.signedSubexp(sgrXqdMin[i], sgrXqdMax[i]+1, sgrSubexpK, t.refSgrXqd[p][i])
			case i == 1:
				v = clamp(1<<sgrProjBits-t.refSgrXqd[p][0], sgrXqdMin[i], sgrXqdMax[i])
			}
			u.SgrXqd[i] = int8(v)
			t.refSgrXqd[p][i] = v
		}
	}
}

func (w *Worker) signedSubexp(low, high, k, ref int) int {
	return w.unsignedSubexp(high-low, k, ref-low) + low
}

func (w *Worker) unsignedSubexp(mx, k, ref int) int {
	v := w.subexp(mx, k)
	if ref<<1 <= mx {
		return inverseRecenter(ref, v)
	}
	return mx - 1 - inverseRecenter(mx-1-ref, v)
}

func (w *Worker) subexp(n, k int) int {
	i, mk := 0, 0
	for {
		b := k
		if i > 0 {
			b = k + i - 1
		}
		a := 1 << uint(b)
		if n <= mk+3*a {
			return w.ns(n-mk) + mk
		}
		if w.lit(1) == 0 {
			return w.lit(b) + mk
		}
		i++
		mk += a
	}
}

func inverseRecenter(r, v int) int {
	switch {
	case v > 2*r:
		return v
	case v&1 == 1:
		return r - (v+1)>>1
	}
	return r + v>>1
}
