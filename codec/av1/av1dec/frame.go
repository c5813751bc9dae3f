/*
DESCRIPTION
  frame.go provides the decode side state of one frame: the buffers shared
  between its tiles and post-filters, and their sizing.

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

import "github.com/ausocean/av1/codec/av1/header"

// Edge flags of LFInfo.
const (
	EdgeYV  = 1 << iota // Luma transform edge on the left.
	EdgeYH              // Luma transform edge on the top.
	EdgeUVV             // Chroma transform edge on the left.
	EdgeUVH             // Chroma transform edge on the top.
)

// LFInfo holds deblocking information for one 4x4 luma unit.
type LFInfo struct {
	Level [4]uint8 // Luma vertical, luma horizontal, U, V.
	Edge  uint8
}

// LRUnit holds the parameters of one loop restoration unit.
type LRUnit struct {
	Type   header.RestorationType
	Wiener [2][3]int8 // Vertical then horizontal taps.
	SgrSet uint8
	SgrXqd [2]int8
}

// RefFrame is the view of a reference frame used while decoding.
type RefFrame struct {
	Pic    *Picture
	MVs    []RefMV // Nil for intra frames.
	SegMap []uint8
	W4, H4 int
}

// MVAt returns the motion stored at x4, y4, or nil if unavailable.
func (r *RefFrame) MVAt(x4, y4 int) *RefMV {
	if r == nil || r.MVs == nil || x4 >= r.W4 || y4 >= r.H4 {
		return nil
	}
	return &r.MVs[y4*r.W4+x4]
}

// Frame holds the state of one frame being decoded.
type Frame struct {
	Hdr  *header.Frame
	Kern Kernels

	Pic  *Picture // Reconstruction target at the coded size.
	Out  *Picture // Output after super-resolution; Pic when disabled.
	Edge *Picture // Unfiltered bottom row of each superblock row.

	Refs [header.RefsPerFrame]*RefFrame // Last to AltRef.
	Prev *RefFrame                      // Primary reference.

	TwoPass bool
	W4, H4  int

	Blocks []Block // Block records by 4x4 position, two pass only.
	MVs    []RefMV
	SegMap []uint8
	LF     []LFInfo

	CDEFIdx    []int8 // Per 64x64.
	cdefStride int

	LR     [3][]LRUnit
	lrCols [3]int
	lrRows [3]int

	above     [][]nbr        // Per tile row.
	aboveCoef [][3][]coefCtx // Per tile row and plane, in plane 4x4 units.
	Tiles []TileState
}

// NewFrame returns a frame for hdr. Buffers are not allocated until Alloc.
func NewFrame(hdr *header.Frame, twoPass bool) *Frame {
	f := &Frame{}
	f.Reset(hdr, twoPass)
	return f
}

// Reset prepares f, possibly reused from an earlier frame, for hdr.
func (f *Frame) Reset(hdr *header.Frame, twoPass bool) {
	f.Hdr = hdr
	f.TwoPass = twoPass
	f.W4, f.H4 = hdr.Width4(), hdr.Height4()
	f.Pic, f.Out, f.Edge, f.Prev, f.Kern = nil, nil, nil, nil, nil
	f.MVs, f.SegMap = nil, nil
	f.Refs = [header.RefsPerFrame]*RefFrame{}
	f.cdefStride = (f.W4 + 15) >> 4
	for p := 0; p < 3; p++ {
		f.lrCols[p], f.lrRows[p] = 0, 0
		if hdr.Restoration.Type[p] == header.RestoreNone {
			continue
		}
		sx, sy := 0, 0
		if p > 0 {
			sx, sy = hdr.Layout.SubX(), hdr.Layout.SubY()
		}
		sz := hdr.Restoration.UnitSize[p]
		f.lrCols[p] = unitCount(sz, (hdr.OutputWidth()+sx)>>uint(sx))
		f.lrRows[p] = unitCount(sz, (hdr.Height+sy)>>uint(sy))
	}
}

func unitCount(unit, size int) int {
	n := (size + unit/2) / unit
	if n < 1 {
		return 1
	}
	return n
}

// Approximate per element sizes used for memory accounting.
const (
	blockBytes = 320
	mvBytes    = 20
	nbrBytes   = 96
	lowestRow  = header.RefsPerFrame * 2 * 4
)

// AllocSize returns the number of bytes Alloc will hold for f, excluding
// pictures.
func (f *Frame) AllocSize() int64 {
	n4 := int64(f.W4 * f.H4)
	size := n4 * (mvBytes + 1 + 6)
	if f.TwoPass {
		size += n4 * blockBytes
	}
	size += int64(f.Hdr.Tiling.Rows*f.W4) * nbrBytes
	size += int64(f.Hdr.Tiles()) * int64(f.Hdr.SBRows()) * lowestRow
	for p := 0; p < 3; p++ {
		size += int64(f.lrCols[p]*f.lrRows[p]) * 12
	}
	return size
}

// Alloc sizes the frame buffers, reusing earlier allocations when large
// enough. MVs and SegMap outlive the frame when it is referenced; Reset
// drops them, so each frame gets new ones.
func (f *Frame) Alloc() {
	n4 := f.W4 * f.H4
	if len(f.MVs) != n4 {
		f.MVs = make([]RefMV, n4)
	}
	if len(f.SegMap) != n4 {
		f.SegMap = make([]uint8, n4)
	}
	f.LF = resize(f.LF, n4)
	if f.TwoPass {
		f.Blocks = resize(f.Blocks, n4)
	} else {
		f.Blocks = nil
	}
	f.CDEFIdx = resize(f.CDEFIdx, f.cdefStride*((f.H4+15)>>4))
	for i := range f.CDEFIdx {
		f.CDEFIdx[i] = -1
	}
	for p := 0; p < 3; p++ {
		f.LR[p] = resize(f.LR[p], f.lrCols[p]*f.lrRows[p])
	}
	rows := f.Hdr.Tiling.Rows
	if cap(f.above) < rows {
		f.above = make([][]nbr, rows)
	}
	f.above = f.above[:rows]
	for r := range f.above {
		f.above[r] = resize(f.above[r], f.W4)
	}
	if cap(f.aboveCoef) < rows {
		f.aboveCoef = make([][3][]coefCtx, rows)
	}
	f.aboveCoef = f.aboveCoef[:rows]
	sx := f.Hdr.Layout.SubX()
	for r := range f.aboveCoef {
		f.aboveCoef[r][0] = resize(f.aboveCoef[r][0], f.W4)
		for p := 1; p < 3; p++ {
			f.aboveCoef[r][p] = resize(f.aboveCoef[r][p], (f.W4+sx)>>uint(sx))
		}
	}
	nt := f.Hdr.Tiles()
	if cap(f.Tiles) < nt {
		f.Tiles = make([]TileState, nt)
	}
	f.Tiles = f.Tiles[:nt]
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	var z T
	for i := range s {
		s[i] = z
	}
	return s
}

// CDEFIndex returns the CDEF strength index of the 64x64 unit containing
// the 4x4 position x4, y4, or -1 if CDEF is skipped there.
func (f *Frame) CDEFIndex(x4, y4 int) int {
	return int(f.CDEFIdx[(y4>>4)*f.cdefStride+(x4>>4)])
}

// LRUnitAt returns the restoration unit of plane p containing the plane
// pixel x, y of the output picture.
func (f *Frame) LRUnitAt(p, x, y int) *LRUnit {
	sz := f.Hdr.Restoration.UnitSize[p]
	c := min(x/sz, f.lrCols[p]-1)
	r := min(y/sz, f.lrRows[p]-1)
	return &f.LR[p][r*f.lrCols[p]+c]
}

// AsRef returns the view of f used by frames referencing it.
func (f *Frame) AsRef() *RefFrame {
	r := &RefFrame{Pic: f.Out, SegMap: f.SegMap, W4: f.W4, H4: f.H4}
	if !f.Hdr.IsIntra() {
		r.MVs = f.MVs
	}
	return r
}

// tileOf returns the tile of tile row row holding 4x4 column x4.
func (f *Frame) tileOf(x4, row int) *TileState {
	cols := f.Hdr.Tiling.Cols
	for c := 0; c < cols; c++ {
		t := &f.Tiles[row*cols+c]
		if x4 < t.Geo.Col4End {
			return t
		}
	}
	return &f.Tiles[row*cols+cols-1]
}
