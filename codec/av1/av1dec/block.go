/*
DESCRIPTION
  block.go provides the block record and the per block syntax decode:
  segment id, skip mode, skip, CDEF index and quantiser and loop filter
  deltas, dispatching to the intra, inter and transform syntax.

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

// TxBlock is one transform block of a plane, positioned in plane 4x4 units.
type TxBlock struct {
	X4, Y4 int32
	Size   uint8
}

// Residual holds the coded residual of one plane of a block. Coefs holds
// EOB[i] coefficients in scan order for each transform block i.
type Residual struct {
	Tx     []TxBlock
	EOB    []uint16
	TxType []uint8
	Coefs  []int32
}

// Block is the decoded syntax of one prediction block. In two pass decoding
// it is stored by the entropy pass and consumed by reconstruction.
type Block struct {
	X4, Y4    int
	Size      BlockSize
	QIdx      int
	SegID     uint8
	Skip      bool
	SkipMode  bool
	Intra     bool
	BC        bool // Intra block copy.
	HasChroma bool

	YMode, UVMode int
	Angle         [2]int // Luma and chroma angle deltas.
	CFLAlpha      [2]int

	PalSize [2]uint8
	Pal     [3][8]uint16
	PalIdx  [2][]uint8 // Luma and chroma colour maps, block width stride.

	Ref    [2]int8 // Second is -1 for single prediction.
	MV     [2]MV
	Mode   int
	Motion int
	Filter [2]int

	Res [3]Residual
}

func (b *Block) reset(x4, y4 int, bs BlockSize) {
	res, pal := b.Res, b.PalIdx
	*b = Block{X4: x4, Y4: y4, Size: bs, Ref: [2]int8{header.Intra, -1}}
	for p := range res {
		res[p].Tx = res[p].Tx[:0]
		res[p].EOB = res[p].EOB[:0]
		res[p].TxType = res[p].TxType[:0]
		res[p].Coefs = res[p].Coefs[:0]
	}
	b.Res = res
	b.PalIdx = [2][]uint8{pal[0][:0], pal[1][:0]}
}

// PlaneRect returns the position and size in plane 4x4 units of plane p of
// b. Chroma of blocks narrower or shorter than a subsampled 4x4 unit covers
// the preceding blocks too.
func (b *Block) PlaneRect(p int, l header.Layout) (x4, y4, w4, h4 int) {
	if p == 0 {
		return b.X4, b.Y4, b.Size.W4(), b.Size.H4()
	}
	sx, sy := uint(l.SubX()), uint(l.SubY())
	return b.X4 >> sx, b.Y4 >> sy, max(1, b.Size.W4()>>sx), max(1, b.Size.H4()>>sy)
}

func hasChroma(x4, y4 int, bs BlockSize, l header.Layout) bool {
	okX := bs.W4() > 1 || l.SubX() == 0 || x4&1 == 1
	okY := bs.H4() > 1 || l.SubY() == 0 || y4&1 == 1
	return okX && okY
}

// IsComp returns true for compound prediction.
func (b *Block) IsComp() bool { return b.Ref[1] > header.Intra }

// record returns the block storage for position x4, y4.
func (w *Worker) record(x4, y4 int) *Block {
	if w.pass == PassEntropy {
		return &w.F.Blocks[y4*w.F.W4+x4]
	}
	return &w.b
}

// aboveNbrs returns the above contexts covered by b.
func (w *Worker) aboveNbrs(b *Block) []nbr {
	a := w.F.above[w.T.Geo.Row]
	return a[b.X4:min(b.X4+b.Size.W4(), w.F.W4)]
}

// leftNbrs returns the left contexts covered by b.
func (w *Worker) leftNbrs(b *Block) []nbr {
	y := b.Y4 & 31
	return w.left[y : y+b.Size.H4()]
}

func (w *Worker) decodeBlock(x4, y4 int, bs BlockSize) error {
	f, t := w.F, w.T
	if x4 >= f.W4 || y4 >= f.H4 {
		return nil
	}
	hdr := f.Hdr
	b := w.record(x4, y4)
	b.reset(x4, y4, bs)
	b.HasChroma = hasChroma(x4, y4, bs, hdr.Layout)
	w.haveTop = y4 > t.Geo.Row4Start
	w.haveLeft = x4 > t.Geo.Col4Start
	w.a = &f.above[t.Geo.Row][x4]
	w.l = &w.left[y4&31]

	seg := &hdr.Segmentation
	preSkip := seg.Enabled && seg.PreSkip()
	if hdr.IsIntra() {
		if preSkip {
			w.intraSegmentID(b)
		}
		w.readSkip(b)
		if !preSkip {
			w.intraSegmentID(b)
		}
	} else {
		w.interSegmentID(b, true)
		w.readSkipMode(b)
		if b.SkipMode {
			b.Skip = true
		} else {
			w.readSkip(b)
		}
		if !preSkip {
			w.interSegmentID(b, false)
		}
	}

	w.readCDEF(b)
	if t.readDeltas {
		w.readDeltas(b)
		t.readDeltas = false
	}
	b.QIdx = t.qidx
	if on, d := seg.Feature(int(b.SegID), header.FeatureAltQ); on {
		b.QIdx = clamp(t.qidx+d, 0, 255)
	}

	if hdr.IsIntra() {
		if hdr.AllowIntrabc {
			ok := w.intrabcAllowed(b)
			b.BC = w.symIf(cdf.IntraBC, 0, func(v int) bool { return ok || v == 0 }) == 1
		}
		if b.BC {
			if err := w.intrabcInfo(b); err != nil {
				return err
			}
		} else {
			b.Intra = true
			w.intraInfo(b)
		}
	} else {
		w.readIsInter(b)
		if b.Intra {
			w.intraInfo(b)
		} else {
			w.interInfo(b)
		}
	}

	w.readTxSize(b)
	w.updateContexts(b)

	if b.Skip {
		w.clearCoefContext(b)
	} else if err := f.Kern.ReadCoefficients(w, b); err != nil {
		return err
	}
	w.store(b)

	switch w.pass {
	case PassEntropy:
		i := w.sby - t.Geo.SBRowStart
		t.Order[i] = append(t.Order[i], int32(y4*f.W4+x4))
	case PassSingle:
		return w.reconstruct(b)
	}
	return nil
}

func (w *Worker) reconstruct(b *Block) error {
	if b.Intra {
		w.F.Kern.ReconstructIntra(w, b)
		return nil
	}
	return w.F.Kern.ReconstructInter(w, b)
}

func (w *Worker) segActive(b *Block, feature int) bool {
	on, _ := w.F.Hdr.Segmentation.Feature(int(b.SegID), feature)
	return on
}

// segPrediction returns the spatially predicted segment id and the segment
// id context.
func (w *Worker) segPrediction(b *Block) (pred, ctx int) {
	f := w.F
	ul, u, l := -1, -1, -1
	if w.haveTop && w.haveLeft {
		ul = int(f.SegMap[(b.Y4-1)*f.W4+b.X4-1])
	}
	if w.haveTop {
		u = int(f.SegMap[(b.Y4-1)*f.W4+b.X4])
	}
	if w.haveLeft {
		l = int(f.SegMap[b.Y4*f.W4+b.X4-1])
	}
	switch {
	case u == -1 && l == -1:
		pred = 0
	case u == -1:
		pred = l
	case l == -1:
		pred = u
	case ul == u:
		pred = u
	default:
		pred = l
	}
	switch {
	case ul < 0:
		ctx = 0
	case ul == u && ul == l:
		ctx = 2
	case ul == u || ul == l || u == l:
		ctx = 1
	}
	return pred, ctx
}

func (w *Worker) readSegmentID(b *Block, skip bool) {
	seg := &w.F.Hdr.Segmentation
	pred, ctx := w.segPrediction(b)
	if skip {
		b.SegID = uint8(pred)
		return
	}
	last := seg.LastActive()
	v := w.sym(cdf.SegID, ctx)
	b.SegID = uint8(clamp(negDeinterleave(v, pred, last+1), 0, last))
}

func negDeinterleave(diff, ref, max int) int {
	switch {
	case ref == 0:
		return diff
	case ref >= max-1:
		return max - diff - 1
	case 2*ref < max:
		if diff <= 2*ref {
			if diff&1 == 1 {
				return ref + (diff+1)>>1
			}
			return ref - diff>>1
		}
		return diff
	default:
		if diff <= 2*(max-ref-1) {
			if diff&1 == 1 {
				return ref + (diff+1)>>1
			}
			return ref - diff>>1
		}
		return max - (diff + 1)
	}
}

func (w *Worker) intraSegmentID(b *Block) {
	if w.F.Hdr.Segmentation.Enabled {
		w.readSegmentID(b, b.Skip)
	}
}

// prevSegmentID returns the smallest segment id of the primary reference
// frame map under b, or 0.
func (w *Worker) prevSegmentID(b *Block) int {
	p := w.F.Prev
	if p == nil || p.SegMap == nil || p.W4 != w.F.W4 || p.H4 != w.F.H4 {
		return 0
	}
	id := header.MaxSegments - 1
	for y := b.Y4; y < min(b.Y4+b.Size.H4(), p.H4); y++ {
		for x := b.X4; x < min(b.X4+b.Size.W4(), p.W4); x++ {
			id = min(id, int(p.SegMap[y*p.W4+x]))
		}
	}
	return id
}

func (w *Worker) setSegPred(b *Block, v bool) {
	a := w.aboveNbrs(b)
	for i := range a {
		a[i].segPred = v
	}
	l := w.leftNbrs(b)
	for i := range l {
		l[i].segPred = v
	}
}

func (w *Worker) interSegmentID(b *Block, preSkip bool) {
	seg := &w.F.Hdr.Segmentation
	if !seg.Enabled {
		b.SegID = 0
		return
	}
	pred := w.prevSegmentID(b)
	if !seg.UpdateMap {
		b.SegID = uint8(pred)
		return
	}
	if preSkip && !seg.PreSkip() {
		b.SegID = 0
		return
	}
	if !preSkip && b.Skip {
		w.setSegPred(b, false)
		w.readSegmentID(b, true)
		return
	}
	if seg.TemporalUpdate {
		ctx := b2i(w.haveTop && w.a.segPred) + b2i(w.haveLeft && w.l.segPred)
		p := w.flag(cdf.SegPred, ctx)
		if p {
			b.SegID = uint8(pred)
		} else {
			w.readSegmentID(b, false)
		}
		w.setSegPred(b, p)
		return
	}
	w.readSegmentID(b, false)
}

func (w *Worker) readSkipMode(b *Block) {
	hdr := w.F.Hdr
	if !hdr.SkipModePresent || b.Size.W4() < 2 || b.Size.H4() < 2 ||
		w.segActive(b, header.FeatureSkip) || w.segActive(b, header.FeatureRefFrame) || w.segActive(b, header.FeatureGlobalMV) {
		return
	}
	ctx := b2i(w.haveTop && w.a.skipMode) + b2i(w.haveLeft && w.l.skipMode)
	b.SkipMode = w.flag(cdf.SkipMode, ctx)
}

func (w *Worker) readSkip(b *Block) {
	if w.segActive(b, header.FeatureSkip) {
		b.Skip = true
		return
	}
	ctx := b2i(w.haveTop && w.a.skip) + b2i(w.haveLeft && w.l.skip)
	b.Skip = w.flag(cdf.Skip, ctx)
}

// readCDEF reads the CDEF strength index at the first non-skipped block of
// each 64x64 unit.
func (w *Worker) readCDEF(b *Block) {
	f := w.F
	if b.Skip || f.Hdr.AllowIntrabc {
		return
	}
	cx, cy := b.X4>>4, b.Y4>>4
	if f.CDEFIdx[cy*f.cdefStride+cx] != -1 {
		return
	}
	v := int8(w.lit(f.Hdr.CDEF.Bits))
	rows := len(f.CDEFIdx) / f.cdefStride
	for y := cy; y < cy+max(1, b.Size.H4()>>4) && y < rows; y++ {
		for x := cx; x < cx+max(1, b.Size.W4()>>4) && x < f.cdefStride; x++ {
			f.CDEFIdx[y*f.cdefStride+x] = v
		}
	}
}

// readDeltas reads the quantiser and loop filter deltas coded at the first
// block of a superblock.
func (w *Worker) readDeltas(b *Block) {
	t, hdr := w.T, w.F.Hdr
	sb := hdr.SBLog2()
	if b.Size.W4Log2() == sb && b.Size.H4Log2() == sb && b.Skip {
		return
	}
	q := &hdr.Quant
	if d := w.deltaValue(cdf.DeltaQ, 0); d != 0 {
		t.qidx = clamp(t.qidx+d<<uint(q.DeltaQRes), 1, 255)
	}
	if !q.DeltaLFPresent {
		return
	}
	n := 1
	if q.DeltaLFMulti {
		n = 4
	}
	for i := 0; i < n; i++ {
		tb, ctx := cdf.DeltaLF, 0
		if q.DeltaLFMulti {
			tb, ctx = cdf.DeltaLFMulti, i
		}
		if d := w.deltaValue(tb, ctx); d != 0 {
			t.deltaLF[i] = clamp(t.deltaLF[i]+d<<uint(q.DeltaLFRes), -63, 63)
		}
	}
}

func (w *Worker) deltaValue(tb cdf.Table, ctx int) int {
	abs := w.sym(tb, ctx)
	if abs == 3 {
		bits := w.lit(3) + 1
		abs = w.lit(bits) + 1<<uint(bits) + 1
	}
	if abs != 0 && w.lit(1) == 1 {
		return -abs
	}
	return abs
}

func (w *Worker) readIsInter(b *Block) {
	hdr := w.F.Hdr
	switch {
	case b.SkipMode:
		b.Intra = false
	case w.segActive(b, header.FeatureRefFrame):
		_, ref := hdr.Segmentation.Feature(int(b.SegID), header.FeatureRefFrame)
		b.Intra = ref == header.Intra
	case w.segActive(b, header.FeatureGlobalMV):
		b.Intra = false
	default:
		var ctx int
		ai, li := w.haveTop && w.a.intra, w.haveLeft && w.l.intra
		switch {
		case w.haveTop && w.haveLeft:
			if ai && li {
				ctx = 3
			} else {
				ctx = b2i(ai || li)
			}
		case w.haveTop || w.haveLeft:
			ctx = 2 * b2i(ai || li)
		}
		b.Intra = !w.flag(cdf.IsInter, ctx)
	}
}

// updateContexts records b in the above and left contexts.
func (w *Worker) updateContexts(b *Block) {
	n := nbr{
		skip:     b.Skip,
		skipMode: b.SkipMode,
		intra:    b.Intra,
		comp:     b.IsComp(),
		ref:      b.Ref,
		filter:   [2]uint8{uint8(b.Filter[0]), uint8(b.Filter[1])},
		palSize:  b.PalSize,
	}
	n.pal[0], n.pal[1] = b.Pal[0], b.Pal[1]
	if b.Intra {
		n.mode = uint8(b.YMode)
	} else {
		n.mode = uint8(b.Mode)
	}
	if b.BC {
		n.mode = DCPred
	}
	a := w.aboveNbrs(b)
	for i := range a {
		e := &a[i]
		n.segPred = e.segPred
		n.part = uint8(b.Size.W4Log2())
		n.txfm = uint8(w.txAt(b, b.X4+i, b.Y4+b.Size.H4()-1))
		*e = n
	}
	l := w.leftNbrs(b)
	for i := range l {
		e := &l[i]
		n.segPred = e.segPred
		n.part = uint8(b.Size.H4Log2())
		n.txfm = uint8(w.txAt(b, b.X4+b.Size.W4()-1, b.Y4+i))
		*e = n
	}
}

// store writes b to the frame wide motion, segmentation and loop filter
// maps.
func (w *Worker) store(b *Block) {
	f := w.F
	rm := RefMV{Ref: b.Ref, MV: b.MV, Mode: uint8(b.Mode), BC: b.BC}
	if b.Intra {
		rm = RefMV{Ref: [2]int8{header.Intra, -1}}
	}
	lf := w.lfLevels(b)
	x1, y1 := min(b.X4+b.Size.W4(), f.W4), min(b.Y4+b.Size.H4(), f.H4)
	for y := b.Y4; y < y1; y++ {
		row := y * f.W4
		for x := b.X4; x < x1; x++ {
			f.MVs[row+x] = rm
			f.SegMap[row+x] = b.SegID
			f.LF[row+x] = LFInfo{Level: lf}
		}
	}
	w.markEdges(b)
}

func (w *Worker) lfLevels(b *Block) [4]uint8 {
	hdr := w.F.Hdr
	var lv [4]uint8
	for i := 0; i < 4; i++ {
		l := hdr.LoopFilter.Level[i]
		if l == 0 {
			continue
		}
		if hdr.Quant.DeltaLFPresent {
			if hdr.Quant.DeltaLFMulti {
				l += w.T.deltaLF[i]
			} else {
				l += w.T.deltaLF[0]
			}
		}
		if on, v := hdr.Segmentation.Feature(int(b.SegID), header.FeatureAltLFYV+i); on {
			l += v
		}
		lv[i] = uint8(clamp(l, 0, 63))
	}
	return lv
}
