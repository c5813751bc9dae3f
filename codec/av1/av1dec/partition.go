/*
DESCRIPTION
  partition.go provides the superblock partition recursion.

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

// Partition levels are square block sizes as log2 of 4x4 units: 5 is
// 128x128 and 1 is 8x8.

// partitionCDF returns the partition table and context for level lvl.
func partitionCDF(lvl, ctx int) (cdf.Table, int) {
	switch lvl {
	case 1:
		return cdf.Partition8, ctx
	case 5:
		return cdf.Partition128, ctx
	}
	return cdf.Partition, (lvl-2)*4 + ctx
}

// symProb returns the probability, out of 32768, of symbol i of the n
// symbol inverted cdf.
func symProb(c []uint16, i, n int) int {
	hi := 32768
	if i > 0 {
		hi = int(c[i-1])
	}
	lo := 0
	if i < n-1 {
		lo = int(c[i])
	}
	return hi - lo
}

// Partitions gathered into the split probability when only one half of the
// block lies inside the frame.
var (
	horzLike = []Partition{PartitionH, PartitionSplit, PartitionHA, PartitionHB, PartitionVA, PartitionH4}
	vertLike = []Partition{PartitionV, PartitionSplit, PartitionHA, PartitionVA, PartitionVB, PartitionV4}
)

// gatherProb returns the clamped total probability of the partitions in set
// which are coded by c.
func gatherProb(c []uint16, n int, set []Partition) uint {
	p := 0
	for _, s := range set {
		if int(s) < n {
			p += symProb(c, int(s), n)
		}
	}
	return uint(clamp(p, 64, 32768-64))
}

func isVertical(p Partition) bool {
	return p == PartitionV || p == PartitionVA || p == PartitionVB || p == PartitionV4
}

// readPartition reads the partition of the lvl sized square block at x4, y4.
func (w *Worker) readPartition(x4, y4, lvl int, hasRows, hasCols bool) (Partition, error) {
	if lvl == 0 {
		return PartitionNone, nil
	}
	f, t := w.F, w.T
	ctx := 0
	if y4 > t.Geo.Row4Start && int(f.above[t.Geo.Row][x4].part) < lvl {
		ctx++
	}
	if x4 > t.Geo.Col4Start && int(w.left[y4&31].part) < lvl {
		ctx += 2
	}
	tb, c := partitionCDF(lvl, ctx)
	n := cdf.Symbols(tb)
	probs := t.CDF.CDF(tb, c)
	switch {
	case hasRows && hasCols:
		is422 := f.Hdr.Layout == header.I422
		p := Partition(w.symIf(tb, c, func(v int) bool { return !is422 || !isVertical(Partition(v)) }))
		if is422 && isVertical(p) {
			return p, ErrInvalidPartition
		}
		return p, nil
	case hasCols:
		if t.Reader.Bool(gatherProb(probs, n, horzLike)) {
			return PartitionSplit, nil
		}
		return PartitionH, nil
	case hasRows:
		if t.Reader.Bool(gatherProb(probs, n, vertLike)) {
			return PartitionSplit, nil
		}
		return PartitionV, nil
	}
	return PartitionSplit, nil
}

// decodePartition decodes the lvl sized square region at x4, y4.
func (w *Worker) decodePartition(x4, y4, lvl int) error {
	f := w.F
	if x4 >= f.W4 || y4 >= f.H4 {
		return nil
	}
	w.depth++
	w.MaxDepth = max(w.MaxDepth, w.depth)
	defer func() { w.depth-- }()

	n4 := 1 << uint(lvl)
	half, quarter := n4>>1, n4>>2
	hasRows := y4+half < f.H4
	hasCols := x4+half < f.W4

	p, err := w.readPartition(x4, y4, lvl, hasRows, hasCols)
	if err != nil {
		return err
	}

	sub := lvl - 1
	square := blockSizeOf(lvl, lvl)
	split := blockSizeOf(sub, sub)
	horz := blockSizeOf(lvl, sub)
	vert := blockSizeOf(sub, lvl)

	type blk struct {
		x, y int
		bs   BlockSize
	}
	var blocks []blk
	switch p {
	case PartitionNone:
		blocks = []blk{{x4, y4, square}}
	case PartitionH:
		blocks = []blk{{x4, y4, horz}}
		if hasRows {
			blocks = append(blocks, blk{x4, y4 + half, horz})
		}
	case PartitionV:
		blocks = []blk{{x4, y4, vert}}
		if hasCols {
			blocks = append(blocks, blk{x4 + half, y4, vert})
		}
	case PartitionSplit:
		if lvl == 1 {
			blocks = []blk{{x4, y4, BS4x4}, {x4 + 1, y4, BS4x4}, {x4, y4 + 1, BS4x4}, {x4 + 1, y4 + 1, BS4x4}}
			break
		}
		for _, o := range [4][2]int{{0, 0}, {half, 0}, {0, half}, {half, half}} {
			if err := w.decodePartition(x4+o[0], y4+o[1], sub); err != nil {
				return err
			}
		}
		return nil
	case PartitionHA:
		blocks = []blk{{x4, y4, split}, {x4 + half, y4, split}, {x4, y4 + half, horz}}
	case PartitionHB:
		blocks = []blk{{x4, y4, horz}, {x4, y4 + half, split}, {x4 + half, y4 + half, split}}
	case PartitionVA:
		blocks = []blk{{x4, y4, split}, {x4, y4 + half, split}, {x4 + half, y4, vert}}
	case PartitionVB:
		blocks = []blk{{x4, y4, vert}, {x4 + half, y4, split}, {x4 + half, y4 + half, split}}
	case PartitionH4:
		bs := blockSizeOf(lvl, lvl-2)
		for i := 0; i < 4 && y4+i*quarter < f.H4; i++ {
			blocks = append(blocks, blk{x4, y4 + i*quarter, bs})
		}
	case PartitionV4:
		bs := blockSizeOf(lvl-2, lvl)
		for i := 0; i < 4 && x4+i*quarter < f.W4; i++ {
			blocks = append(blocks, blk{x4 + i*quarter, y4, bs})
		}
	default:
		return ErrInvalidPartition
	}
	for _, b := range blocks {
		if err := w.decodeBlock(b.x, b.y, b.bs); err != nil {
			return err
		}
	}
	return nil
}
