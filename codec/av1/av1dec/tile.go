/*
DESCRIPTION
  tile.go provides the per tile decode state: entropy state, geometry,
  per superblock row delta state, progress counters and the lowest
  referenced pixel table.

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
	"math"
	"sync/atomic"

	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/msac"
)

// Progress counter indices.
const (
	ProgressRecon   = 0
	ProgressEntropy = 1
)

// TileError is the progress value of a tile whose decode failed.
const TileError = math.MaxInt32 - 1

// NoLowest marks a reference not read by a superblock row.
const NoLowest = math.MinInt32

// TileState is the decode state of one tile. It is used by one task at a
// time; only Progress is read concurrently.
type TileState struct {
	Index int
	Geo   header.Tile

	dec    msac.Decoder
	Reader SymbolReader
	CDF    *cdf.Context

	// Progress holds, for reconstruction and entropy decode, the next
	// superblock row to be processed, or TileError.
	Progress [2]atomic.Int32

	// Lowest holds, per superblock row of the tile, the lowest luma and
	// chroma pixel row read from each reference.
	Lowest [][header.RefsPerFrame][2]int32

	// Order holds, per superblock row of the tile, the 4x4 positions of
	// its blocks in decode order. Two pass only.
	Order [][]int32

	qidx    int
	deltaLF [4]int

	readDeltas bool

	refWiener [3][2][3]int
	refSgrXqd [3][2]int
}

var (
	wienerMid = [3]int{3, -7, 15}
	sgrXqdMid = [2]int{-32, 31}
)

// Init prepares t to decode tile idx of f from data, owning ctx.
func (t *TileState) Init(f *Frame, idx int, data []byte, ctx *cdf.Context) {
	t.Index = idx
	t.Geo = f.Hdr.Tile(idx)
	t.dec.Init(data, f.Hdr.DisableCDFUpdate)
	t.Reader = &t.dec
	t.CDF = ctx
	t.Progress[ProgressRecon].Store(int32(t.Geo.SBRowStart))
	t.Progress[ProgressEntropy].Store(int32(t.Geo.SBRowStart))

	rows := t.Geo.SBRowEnd - t.Geo.SBRowStart
	if cap(t.Lowest) < rows {
		t.Lowest = make([][header.RefsPerFrame][2]int32, rows)
	}
	t.Lowest = t.Lowest[:rows]
	for i := range t.Lowest {
		for r := range t.Lowest[i] {
			t.Lowest[i][r] = [2]int32{NoLowest, NoLowest}
		}
	}
	if f.TwoPass {
		if cap(t.Order) < rows {
			t.Order = make([][]int32, rows)
		}
		t.Order = t.Order[:rows]
		for i := range t.Order {
			t.Order[i] = t.Order[i][:0]
		}
	}

	t.qidx = f.Hdr.Quant.BaseQIdx
	t.deltaLF = [4]int{}
	for p := 0; p < 3; p++ {
		for pass := 0; pass < 2; pass++ {
			t.refWiener[p][pass] = wienerMid
		}
		t.refSgrXqd[p] = sgrXqdMid
	}

	a := f.above[t.Geo.Row]
	for x := t.Geo.Col4Start; x < t.Geo.Col4End; x++ {
		a[x].reset()
	}
	sx := f.Hdr.Layout.SubX()
	for p, c := range f.aboveCoef[t.Geo.Row] {
		x0, x1 := t.Geo.Col4Start, t.Geo.Col4End
		if p > 0 {
			x0, x1 = x0>>uint(sx), (x1+sx)>>uint(sx)
		}
		for x := x0; x < x1; x++ {
			c[x] = coefCtx{}
		}
	}
}

// Fail marks both passes of t as failed.
func (t *TileState) Fail() {
	t.Progress[ProgressRecon].Store(TileError)
	t.Progress[ProgressEntropy].Store(TileError)
}

// SetReader replaces the symbol source of t.
func (t *TileState) SetReader(r SymbolReader) { t.Reader = r }

// updateLowest raises the lowest pixel row read from reference ref for
// plane class pl (0 luma, 1 chroma) during superblock row sby.
func (t *TileState) updateLowest(sby, ref, pl int, y int) {
	l := &t.Lowest[sby-t.Geo.SBRowStart][ref-header.Last][pl]
	if int32(y) > *l {
		*l = int32(y)
	}
}

// LowestPixel returns the lowest luma and chroma rows read from reference
// ref (Last to AltRef) by superblock row sby, or NoLowest.
func (t *TileState) LowestPixel(sby, ref int) (luma, chroma int32) {
	l := t.Lowest[sby-t.Geo.SBRowStart][ref-header.Last]
	return l[0], l[1]
}
