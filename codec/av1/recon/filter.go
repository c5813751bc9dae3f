/*
DESCRIPTION
  filter.go provides the in-loop post-filters applied per superblock row:
  deblocking of vertical then horizontal transform edges, CDEF,
  super-resolution upscaling and loop restoration, and the backup of the
  unfiltered rows used for intra prediction.

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
	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
)

// FilterLag is the number of luma rows above the bottom of a superblock row
// that are not final after its CDEF, super-resolution and restoration
// stages.
const FilterLag = 8

// Window returns the luma rows [y0, y1) finalised by the CDEF,
// super-resolution and restoration stages of superblock row sby.
func Window(hdr *header.Frame, sby int) (y0, y1 int) {
	sb := hdr.SBSize()
	y0 = max(0, sby*sb-FilterLag)
	y1 = (sby+1)*sb - FilterLag
	if sby == hdr.SBRows()-1 {
		y1 = hdr.Height
	}
	return y0, min(y1, hdr.Height)
}

func planeWindow(hdr *header.Frame, sby int, sy uint, h int) (y0, y1 int) {
	y0, y1 = Window(hdr, sby)
	y0 >>= sy
	y1 = (y1 + int(sy)) >> sy
	if sby == hdr.SBRows()-1 {
		y1 = h
	}
	return y0, min(y1, h)
}

// BackupEdge saves the unfiltered bottom row of superblock row sby of tile
// t for intra prediction of the row below.
func (k kernels[P]) BackupEdge(f *av1dec.Frame, t *av1dec.TileState, sby int) {
	sb := f.Hdr.SBSize()
	for p := 0; p < 3; p++ {
		sx, sy := sub(f, p)
		gw, gh := gridSize(f, p)
		y := min(((sby+1)*sb)>>sy, gh) - 1
		x0, x1 := (t.Geo.Col4Start*4)>>sx, min((t.Geo.Col4End*4)>>sx, gw)
		src := av1dec.PlaneOf[P](f.Pic, p)
		dst := av1dec.PlaneOf[P](f.Edge, p)
		copy(dst.Row(sby)[x0:x1], src.Pix[y*src.Stride+x0:y*src.Stride+x1])
	}
}

// FilterRow applies stage s to superblock row sby. Each stage reads only
// rows that no later stage of an earlier row modifies, so rows may be
// filtered concurrently with reconstruction of the rows below.
func (k kernels[P]) FilterRow(w *av1dec.Worker, f *av1dec.Frame, s av1dec.Stage, sby int) {
	hdr := f.Hdr
	switch s {
	case av1dec.StageDeblockCols:
		if hdr.LoopFilter.Enabled() {
			k.deblock(f, sby, true)
		}
	case av1dec.StageDeblockRows:
		if hdr.LoopFilter.Enabled() {
			k.deblock(f, sby, false)
		}
	case av1dec.StageCDEF:
		if hdr.CDEF.Enabled() {
			k.cdef(scratchOf[P](w), f, sby)
		}
	case av1dec.StageSuperRes:
		if hdr.SuperRes.Enabled {
			k.superRes(f, sby)
		}
	case av1dec.StageRestoration:
		if hdr.Restoration.Enabled() {
			k.restore(scratchOf[P](w), f, sby)
		}
	}
}

// deblock filters the vertical or horizontal transform edges whose 4x4
// unit lies in superblock row sby.
func (k kernels[P]) deblock(f *av1dec.Frame, sby int, vertical bool) {
	hdr := f.Hdr
	n4 := hdr.SBSize() / 4
	y4s, y4e := sby*n4, min((sby+1)*n4, f.H4)
	for p := 0; p < 3; p++ {
		sx, sy := sub(f, p)
		pl := av1dec.PlaneOf[P](f.Pic, p)
		idx, flag := 1, uint8(av1dec.EdgeYH)
		switch {
		case p == 0 && vertical:
			idx, flag = 0, av1dec.EdgeYV
		case p > 0 && vertical:
			idx, flag = 1+p, av1dec.EdgeUVV
		case p > 0:
			idx, flag = 1+p, av1dec.EdgeUVH
		}
		if p > 0 && hdr.LoopFilter.Level[idx] == 0 {
			continue
		}
		for y4 := y4s; y4 < y4e; y4++ {
			for x4 := 0; x4 < f.W4; x4++ {
				li := &f.LF[y4*f.W4+x4]
				if li.Edge&flag == 0 || (vertical && x4 == 0) || (!vertical && y4 == 0) {
					continue
				}
				level := int(li.Level[idx])
				if level == 0 {
					prev := (y4-1)*f.W4 + x4
					if vertical {
						prev = y4*f.W4 + x4 - 1
					}
					level = int(f.LF[prev].Level[idx])
				}
				if level == 0 {
					continue
				}
				x, y := (x4*4)>>sx, (y4*4)>>sy
				if x >= pl.W || y >= pl.H {
					continue
				}
				if vertical {
					for r := y; r < min(y+4>>sy, pl.H); r++ {
						k.filter4(pl.Pix, r*pl.Stride+x, 1, level, hdr.LoopFilter.Sharpness)
					}
				} else {
					for c := x; c < min(x+4>>sx, pl.W); c++ {
						k.filter4(pl.Pix, y*pl.Stride+c, pl.Stride, level, hdr.LoopFilter.Sharpness)
					}
				}
			}
		}
	}
}

// filter4 filters the edge before pix[o] along step, reading two samples
// each side and modifying one.
func (k kernels[P]) filter4(pix []P, o, step, level, sharp int) {
	shift := 0
	switch {
	case sharp > 4:
		shift = 2
	case sharp > 0:
		shift = 1
	}
	limit := level >> uint(shift)
	if sharp > 0 {
		limit = min(limit, 9-sharp)
	}
	limit = max(limit, 1)
	blimit := 2*(level+2) + limit
	limit <<= uint(k.bd - 8)
	blimit <<= uint(k.bd - 8)

	p1, p0 := int(pix[o-2*step]), int(pix[o-step])
	q0, q1 := int(pix[o]), int(pix[o+step])
	if abs(p1-p0) > limit || abs(q1-q0) > limit || abs(p0-q0)*2+abs(p1-q1)/2 > blimit {
		return
	}
	half := 1 << uint(k.bd-1)
	c := func(v int) int { return clamp(v, -half, half-1) }
	fv := c(c(p1-q1) + 3*(q0-p0))
	f1, f2 := c(fv+4)>>3, c(fv+3)>>3
	pix[o] = k.clip(q0 - f1)
	pix[o-step] = k.clip(p0 + f2)
}

var (
	cdefPrimary   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	cdefSecondary = [4][2]int{{1, 1}, {-1, -1}, {1, -1}, {-1, 1}}
)

func cdefConstrain(diff, s, damping int) int {
	if s == 0 || diff == 0 {
		return 0
	}
	shift := max(0, damping-(bitsLen(s)-1))
	v := clamp(s-abs(diff)>>uint(shift), 0, abs(diff))
	if diff < 0 {
		return -v
	}
	return v
}

func bitsLen(v int) int {
	n := 0
	for ; v > 0; v >>= 1 {
		n++
	}
	return n
}

// cdef filters the window of superblock row sby. Samples are read from a
// copy of the window and the two rows below it; rows above the window are
// not read.
func (k kernels[P]) cdef(s *scratch[P], f *av1dec.Frame, sby int) {
	hdr := f.Hdr
	for p := 0; p < 3; p++ {
		sx, sy := sub(f, p)
		pl := av1dec.PlaneOf[P](f.Pic, p)
		y0, y1 := planeWindow(hdr, sby, sy, pl.H)
		if y0 >= y1 {
			continue
		}
		ylim := min(y1+2, pl.H)
		s.rows = grow(s.rows, (ylim-y0)*pl.W)
		for y := y0; y < ylim; y++ {
			copy(s.rows[(y-y0)*pl.W:(y-y0+1)*pl.W], pl.Pix[y*pl.Stride:y*pl.Stride+pl.W])
		}
		at := func(x, y int) int {
			return int(s.rows[(clamp(y, y0, ylim-1)-y0)*pl.W+clamp(x, 0, pl.W-1)])
		}
		damping := hdr.CDEF.Damping
		if p > 0 {
			damping--
		}
		for y := y0; y < y1; y++ {
			for x := 0; x < pl.W; x++ {
				idx := f.CDEFIndex((x<<sx)>>2, (y<<sy)>>2)
				if idx < 0 {
					continue
				}
				str := hdr.CDEF.YStrength[idx]
				if p > 0 {
					str = hdr.CDEF.UVStrength[idx]
				}
				if str == 0 {
					continue
				}
				pri, sec := (str>>2)<<uint(k.bd-8), (str&3)<<uint(k.bd-8)
				c := at(x, y)
				sum := 0
				for _, d := range cdefPrimary {
					sum += 2 * cdefConstrain(at(x+d[0], y+d[1])-c, pri, damping)
				}
				for _, d := range cdefSecondary {
					sum += cdefConstrain(at(x+d[0], y+d[1])-c, sec, damping)
				}
				if sum < 0 {
					sum--
				}
				pl.Pix[y*pl.Stride+x] = k.clip(c + (sum+8)>>4)
			}
		}
	}
}

// superRes upscales the window of superblock row sby horizontally from the
// coded picture into the output picture.
func (k kernels[P]) superRes(f *av1dec.Frame, sby int) {
	for p := 0; p < 3; p++ {
		_, sy := sub(f, p)
		src := av1dec.PlaneOf[P](f.Pic, p)
		dst := av1dec.PlaneOf[P](f.Out, p)
		y0, y1 := planeWindow(f.Hdr, sby, sy, dst.H)
		for y := y0; y < y1; y++ {
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < dst.W; x++ {
				pos := max(0, ((2*x+1)*src.W*128)/dst.W-128)
				a, b := int32(src.At(pos>>8, y)), int32(src.At(pos>>8+1, y))
				row[x] = k.clip(int(lerp(a, b, pos&255)))
			}
		}
	}
}

// restore applies loop restoration to the window of superblock row sby of
// the output picture. Rows below the window are not read.
func (k kernels[P]) restore(s *scratch[P], f *av1dec.Frame, sby int) {
	hdr := f.Hdr
	for p := 0; p < 3; p++ {
		if hdr.Restoration.Type[p] == header.RestoreNone {
			continue
		}
		_, sy := sub(f, p)
		pl := av1dec.PlaneOf[P](f.Out, p)
		y0, y1 := planeWindow(hdr, sby, sy, pl.H)
		if y0 >= y1 {
			continue
		}
		ylo := max(0, y0-3)
		s.rows = grow(s.rows, (y1-ylo)*pl.W)
		for y := ylo; y < y1; y++ {
			copy(s.rows[(y-ylo)*pl.W:(y-ylo+1)*pl.W], pl.Pix[y*pl.Stride:y*pl.Stride+pl.W])
		}
		at := func(x, y int) int {
			return int(s.rows[(clamp(y, ylo, y1-1)-ylo)*pl.W+clamp(x, 0, pl.W-1)])
		}
		for y := y0; y < y1; y++ {
			for x := 0; x < pl.W; x++ {
				u := f.LRUnitAt(p, x, y)
				var v int
				switch u.Type {
				case header.RestoreWiener:
					v = wiener(u, x, y, at)
				case header.RestoreSgrproj:
					v = sgrproj(u, x, y, at)
				default:
					continue
				}
				pl.Pix[y*pl.Stride+x] = k.clip(v)
			}
		}
	}
}

func wienerTaps(c [3]int8) [7]int {
	a, b, d := int(c[0]), int(c[1]), int(c[2])
	return [7]int{a, b, d, 128 - 2*(a+b+d), d, b, a}
}

// wiener applies the separable seven tap filter of u at x, y.
func wiener(u *av1dec.LRUnit, x, y int, at func(x, y int) int) int {
	vt, ht := wienerTaps(u.Wiener[0]), wienerTaps(u.Wiener[1])
	sum := 0
	for j := 0; j < 7; j++ {
		h := 0
		for i := 0; i < 7; i++ {
			h += ht[i] * at(x+i-3, y+j-3)
		}
		sum += vt[j] * ((h + 64) >> 7)
	}
	return (sum + 64) >> 7
}

// sgrproj projects the sample at x, y towards the box means of the two
// radii of the parameter set of u.
func sgrproj(u *av1dec.LRUnit, x, y int, at func(x, y int) int) int {
	c := at(x, y)
	par := av1dec.SgrParams[u.SgrSet]
	v := 0
	for i := 0; i < 2; i++ {
		r := par[i*2]
		if r == 0 {
			continue
		}
		sum, n := 0, 0
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				sum += at(x+dx, y+dy)
				n++
			}
		}
		v += int(u.SgrXqd[i]) * (sum/n - c)
	}
	return c + v>>7
}
