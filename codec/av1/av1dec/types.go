/*
DESCRIPTION
  types.go provides the block size, partition, prediction mode and
  transform enumerations used by the block decoder, with their lookup
  tables.

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

// BlockSize is a prediction block size.
type BlockSize uint8

// Block sizes.
const (
	BS4x4 BlockSize = iota
	BS4x8
	BS8x4
	BS8x8
	BS8x16
	BS16x8
	BS16x16
	BS16x32
	BS32x16
	BS32x32
	BS32x64
	BS64x32
	BS64x64
	BS64x128
	BS128x64
	BS128x128
	BS4x16
	BS16x4
	BS8x32
	BS32x8
	BS16x64
	BS64x16
	NumBlockSizes
	BSInvalid BlockSize = 0xff
)

// bsLog2 holds width and height of each block size as log2 of 4x4 units.
var bsLog2 = [NumBlockSizes][2]uint8{
	{0, 0}, {0, 1}, {1, 0}, {1, 1}, {1, 2}, {2, 1}, {2, 2}, {2, 3}, {3, 2}, {3, 3}, {3, 4},
	{4, 3}, {4, 4}, {4, 5}, {5, 4}, {5, 5}, {0, 2}, {2, 0}, {1, 3}, {3, 1}, {2, 4}, {4, 2},
}

// W4Log2 returns the width as log2 of 4x4 units.
func (b BlockSize) W4Log2() int { return int(bsLog2[b][0]) }

// H4Log2 returns the height as log2 of 4x4 units.
func (b BlockSize) H4Log2() int { return int(bsLog2[b][1]) }

// W4 returns the width in 4x4 units.
func (b BlockSize) W4() int { return 1 << bsLog2[b][0] }

// H4 returns the height in 4x4 units.
func (b BlockSize) H4() int { return 1 << bsLog2[b][1] }

// blockSizeOf returns the block size with the given dimensions, or
// BSInvalid.
func blockSizeOf(w4log2, h4log2 int) BlockSize {
	for i, d := range bsLog2 {
		if int(d[0]) == w4log2 && int(d[1]) == h4log2 {
			return BlockSize(i)
		}
	}
	return BSInvalid
}

// Partition is a partition type.
type Partition uint8

// Partition types.
const (
	PartitionNone Partition = iota
	PartitionH
	PartitionV
	PartitionSplit
	PartitionHA // Top split, bottom whole.
	PartitionHB // Top whole, bottom split.
	PartitionVA // Left split, right whole.
	PartitionVB // Left whole, right split.
	PartitionH4
	PartitionV4
	NumPartitions
)

// Intra prediction modes.
const (
	DCPred = iota
	VPred
	HPred
	D45Pred
	D135Pred
	D113Pred
	D157Pred
	D203Pred
	D67Pred
	SmoothPred
	SmoothVPred
	SmoothHPred
	PaethPred
	CFLPred // Chroma only.
	NumIntraModes = CFLPred
)

// IsDirectional returns true for modes taking an angle delta.
func IsDirectional(mode int) bool { return mode >= VPred && mode <= D67Pred }

// modeAngle holds the nominal angle of the directional modes.
var modeAngle = [...]int{VPred: 90, HPred: 180, D45Pred: 45, D135Pred: 135, D113Pred: 113, D157Pred: 157, D203Pred: 203, D67Pred: 67}

// ModeAngle returns the prediction angle of a directional mode with the
// given delta.
func ModeAngle(mode, delta int) int { return modeAngle[mode] + 3*delta }

// intraModeContext maps a luma mode to a key frame mode context.
var intraModeContext = [NumIntraModes]int{0, 1, 2, 3, 4, 4, 4, 4, 3, 0, 1, 2, 0}

// Inter prediction modes.
const (
	NearestMV = iota
	NearMV
	GlobalMVMode
	NewMVMode
	NearestNearestMV
	NearNearMV
	NearestNewMV
	NewNearestMV
	NearNewMV
	NewNearMV
	GlobalGlobalMV
	NewNewMV
)

// Motion modes.
const (
	MotionSimple = iota
	MotionOBMC
	MotionWarped
)

// Interpolation filters as coded per block.
const (
	FilterRegular = iota
	FilterSmooth
	FilterSharp
	FilterBilinear
)

// Transform sizes are square and expressed as log2 of 4x4 units, TX4x4
// through TX64x64.
const (
	TX4x4 = iota
	TX8x8
	TX16x16
	TX32x32
	TX64x64
	maxVarTxDepth = 2
)

// TxCoded returns the log2, in 4x4 units, of the coded region of a transform
// of size tx. Coefficients outside 32x32 are not coded.
func TxCoded(tx int) int {
	if tx > TX32x32 {
		return TX32x32
	}
	return tx
}

// MV is a motion vector in eighth pixel units.
type MV struct {
	Y, X int32
}

// Add returns the sum of m and o.
func (m MV) Add(o MV) MV { return MV{Y: m.Y + o.Y, X: m.X + o.X} }

// RefMV is the motion information stored per 4x4 unit for use by
// neighbouring blocks and later frames.
type RefMV struct {
	MV   [2]MV
	Ref  [2]int8 // Second reference is -1 for single prediction.
	Mode uint8
	BC   bool // Intra block copy.
}

// Pass selects the work done by DecodeSBRow.
type Pass int

const (
	PassSingle  Pass = iota // Entropy decode and reconstruct each block.
	PassEntropy             // Entropy decode, storing block records.
	PassRecon               // Reconstruct from stored block records.
)

// Stage is a post-filter stage applied per superblock row.
type Stage int

// Post-filter stages in pipeline order.
const (
	StageDeblockCols Stage = iota
	StageDeblockRows
	StageCDEF
	StageSuperRes
	StageRestoration
	NumStages
)

var stageNames = [NumStages]string{"deblock-cols", "deblock-rows", "cdef", "super-res", "restoration"}

func (s Stage) String() string { return stageNames[s] }
