/*
DESCRIPTION
  header.go provides the AV1 frame header value object consumed by the
  decoder. Headers are produced by an OBU parser; this package only holds
  and checks the parsed values.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package header provides the parsed AV1 frame header, its tiling geometry
// and validation of the values the decoder depends on.
package header

// FrameType is the AV1 frame type.
type FrameType int

// Frame types.
const (
	KeyFrame FrameType = iota
	InterFrame
	IntraOnlyFrame
	SwitchFrame
)

// Layout is the chroma subsampling layout of a frame.
type Layout int

// Chroma layouts.
const (
	I420 Layout = iota
	I422
	I444
)

// SubX returns the horizontal chroma subsampling shift.
func (l Layout) SubX() int {
	if l == I444 {
		return 0
	}
	return 1
}

// SubY returns the vertical chroma subsampling shift.
func (l Layout) SubY() int {
	if l == I420 {
		return 1
	}
	return 0
}

// Reference frame names. Intra is used for blocks not predicted from a
// reference.
const (
	Intra = iota
	Last
	Last2
	Last3
	Golden
	BwdRef
	AltRef2
	AltRef
)

const (
	RefsPerFrame   = 7 // References a frame may predict from.
	NumRefSlots    = 8 // Reference slots held by the decoder.
	PrimaryRefNone = 7
	MaxSegments    = 8
	MaxTiles       = 4096
)

// TxMode is the frame transform size mode.
type TxMode int

const (
	Only4x4 TxMode = iota
	Largest
	Select
)

// Filter is an interpolation filter.
type Filter int

const (
	EightTap Filter = iota
	Smooth
	Sharp
	Bilinear
	Switchable
)

// Segmentation features.
const (
	FeatureAltQ = iota
	FeatureAltLFYV
	FeatureAltLFYH
	FeatureAltLFU
	FeatureAltLFV
	FeatureRefFrame
	FeatureSkip
	FeatureGlobalMV
	numFeatures
)

// Segmentation holds segmentation parameters.
type Segmentation struct {
	Enabled        bool
	UpdateMap      bool
	TemporalUpdate bool
	FeatureEnabled [MaxSegments][numFeatures]bool
	FeatureData    [MaxSegments][numFeatures]int
}

// LastActive returns the highest segment id with an enabled feature.
func (s *Segmentation) LastActive() int {
	last := 0
	for i := 0; i < MaxSegments; i++ {
		for j := 0; j < numFeatures; j++ {
			if s.FeatureEnabled[i][j] {
				last = i
			}
		}
	}
	return last
}

// PreSkip returns true if the segment id is read before the skip flag.
func (s *Segmentation) PreSkip() bool {
	for i := 0; i < MaxSegments; i++ {
		for j := FeatureRefFrame; j < numFeatures; j++ {
			if s.FeatureEnabled[i][j] {
				return true
			}
		}
	}
	return false
}

// Feature returns whether feature f is enabled for segment id, and its value.
func (s *Segmentation) Feature(id, f int) (bool, int) {
	if !s.Enabled {
		return false, 0
	}
	return s.FeatureEnabled[id][f], s.FeatureData[id][f]
}

// LoopFilter holds deblocking parameters. Level holds the vertical and
// horizontal luma levels followed by the U and V levels.
type LoopFilter struct {
	Level     [4]int
	Sharpness int
}

// Enabled returns true if any deblocking is applied.
func (l *LoopFilter) Enabled() bool { return l.Level[0] != 0 || l.Level[1] != 0 }

// CDEF holds constrained directional enhancement parameters.
type CDEF struct {
	Damping    int
	Bits       int
	YStrength  [8]int
	UVStrength [8]int
}

// Enabled returns true if any CDEF strength is non-zero.
func (c *CDEF) Enabled() bool {
	for i := 0; i < 1<<uint(c.Bits); i++ {
		if c.YStrength[i] != 0 || c.UVStrength[i] != 0 {
			return true
		}
	}
	return false
}

// RestorationType is a loop restoration filter type.
type RestorationType int

const (
	RestoreNone RestorationType = iota
	RestoreWiener
	RestoreSgrproj
	RestoreSwitchable
)

// Restoration holds loop restoration parameters per plane.
type Restoration struct {
	Type     [3]RestorationType
	UnitSize [3]int // In pixels of the plane.
}

// Enabled returns true if any plane uses loop restoration.
func (r *Restoration) Enabled() bool {
	return r.Type[0] != RestoreNone || r.Type[1] != RestoreNone || r.Type[2] != RestoreNone
}

// SuperRes holds horizontal super-resolution parameters.
type SuperRes struct {
	Enabled       bool
	UpscaledWidth int
}

// Quant holds quantiser and delta parameters.
type Quant struct {
	BaseQIdx       int
	DeltaQPresent  bool
	DeltaQRes      int // log2 of the delta q scale.
	DeltaLFPresent bool
	DeltaLFRes     int
	DeltaLFMulti   bool
}

// Tiling describes the tile grid. ColStart and RowStart hold Cols+1 and
// Rows+1 boundaries in superblock units.
type Tiling struct {
	Cols, Rows      int
	ColStart        []int
	RowStart        []int
	ContextUpdateID int
}

// Frame is a parsed frame header.
type Frame struct {
	FrameType FrameType
	ShowFrame bool

	Width, Height int // Coded luma dimensions.
	BitDepth      int
	Layout        Layout
	SB128         bool

	DisableCDFUpdate         bool
	DisableFrameEndUpdateCDF bool
	AllowScreenContentTools  bool
	AllowIntrabc             bool

	PrimaryRefFrame   int
	RefFrameIdx       [RefsPerFrame]int // Slot used for each of Last to AltRef.
	RefreshFrameFlags uint8
	SignBias          [AltRef + 1]bool

	ReferenceSelect      bool
	SkipModePresent      bool
	SkipModeFrames       [2]int
	InterpFilter         Filter
	EnableDualFilter     bool
	SwitchableMotionMode bool
	AllowWarpedMotion    bool
	AllowHighPrecisionMV bool
	ForceIntegerMV       bool

	TxMode       TxMode
	ReducedTxSet bool

	Quant        Quant
	Segmentation Segmentation
	LoopFilter   LoopFilter
	CDEF         CDEF
	Restoration  Restoration
	SuperRes     SuperRes
	Tiling       Tiling
}

// IsIntra returns true for key and intra only frames.
func (f *Frame) IsIntra() bool { return f.FrameType == KeyFrame || f.FrameType == IntraOnlyFrame }

// SBSize returns the superblock size in pixels.
func (f *Frame) SBSize() int {
	if f.SB128 {
		return 128
	}
	return 64
}

// SBLog2 returns the log2 of the superblock size in 4x4 units.
func (f *Frame) SBLog2() int {
	if f.SB128 {
		return 5
	}
	return 4
}

// SBCols returns the number of superblock columns.
func (f *Frame) SBCols() int { return (f.Width + f.SBSize() - 1) / f.SBSize() }

// SBRows returns the number of superblock rows.
func (f *Frame) SBRows() int { return (f.Height + f.SBSize() - 1) / f.SBSize() }

// Width4 returns the frame width in 4x4 units, rounded up to 8 pixels.
func (f *Frame) Width4() int { return ((f.Width + 7) >> 3) << 1 }

// Height4 returns the frame height in 4x4 units, rounded up to 8 pixels.
func (f *Frame) Height4() int { return ((f.Height + 7) >> 3) << 1 }

// OutputWidth returns the width of the frame after super-resolution.
func (f *Frame) OutputWidth() int {
	if f.SuperRes.Enabled {
		return f.SuperRes.UpscaledWidth
	}
	return f.Width
}

// Tiles returns the number of tiles.
func (f *Frame) Tiles() int { return f.Tiling.Cols * f.Tiling.Rows }

// Tile describes the position of one tile in 4x4 units.
type Tile struct {
	Col, Row           int // Position in the tile grid.
	Col4Start, Col4End int
	Row4Start, Row4End int
	SBRowStart         int // First superblock row.
	SBRowEnd           int // One past the last superblock row.
}

// Tile returns the geometry of tile i in raster order.
func (f *Frame) Tile(i int) Tile {
	t := &f.Tiling
	c, r := i%t.Cols, i/t.Cols
	sb := f.SBLog2()
	return Tile{
		Col:        c,
		Row:        r,
		Col4Start:  t.ColStart[c] << uint(sb),
		Col4End:    min(t.ColStart[c+1]<<uint(sb), f.Width4()),
		Row4Start:  t.RowStart[r] << uint(sb),
		Row4End:    min(t.RowStart[r+1]<<uint(sb), f.Height4()),
		SBRowStart: t.RowStart[r],
		SBRowEnd:   t.RowStart[r+1],
	}
}

// TileRowOf returns the tile row containing superblock row sby.
func (f *Frame) TileRowOf(sby int) int {
	for r := 0; r < f.Tiling.Rows; r++ {
		if sby < f.Tiling.RowStart[r+1] {
			return r
		}
	}
	return f.Tiling.Rows - 1
}

// UniformTiling returns a tiling splitting a frame with the given superblock
// dimensions into cols by rows tiles of near equal size.
func UniformTiling(sbCols, sbRows, cols, rows int) Tiling {
	t := Tiling{Cols: cols, Rows: rows}
	t.ColStart = make([]int, cols+1)
	t.RowStart = make([]int, rows+1)
	for i := 0; i <= cols; i++ {
		t.ColStart[i] = i * sbCols / cols
	}
	for i := 0; i <= rows; i++ {
		t.RowStart[i] = i * sbRows / rows
	}
	return t
}
