/*
DESCRIPTION
  inter.go provides the inter and intra block copy syntax: reference
  selection, the motion vector candidate stack, inter modes, motion vector
  residuals, motion mode, interpolation filters, intra block copy vector
  clamping and the lowest referenced pixel bookkeeping.

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

const (
	maxCands    = 8
	refCatLevel = 640
	mvBorder    = 128 // Eighth pel.
)

type mvCand struct {
	mv     [2]MV
	weight int
}

// mvStack is the motion vector candidate list of a block.
type mvStack struct {
	c      [maxCands]mvCand
	n      int
	numNew int

	newCtx, refCtx, zeroCtx int
}

func (s *mvStack) drlCtx(idx int) int {
	switch {
	case s.c[idx].weight >= refCatLevel && s.c[idx+1].weight >= refCatLevel:
		return 0
	case s.c[idx].weight >= refCatLevel:
		return 1
	}
	return 2
}

func (s *mvStack) add(mv [2]MV, weight int) {
	for i := 0; i < s.n; i++ {
		if s.c[i].mv == mv {
			s.c[i].weight += weight
			return
		}
	}
	if s.n < maxCands {
		s.c[s.n] = mvCand{mv: mv, weight: weight}
		s.n++
	}
}

// match adds the motion of m to the stack if it uses the references of b.
func (w *Worker) match(b *Block, m *RefMV, weight int) bool {
	s := &w.stack
	switch {
	case b.BC:
		if !m.BC {
			return false
		}
		s.add([2]MV{m.MV[0]}, weight)
	case b.IsComp():
		if m.Ref != b.Ref {
			return false
		}
		s.add(m.MV, weight)
	default:
		k := -1
		if m.Ref[0] == b.Ref[0] {
			k = 0
		} else if m.Ref[1] == b.Ref[0] {
			k = 1
		}
		if k < 0 || b.Ref[0] == header.Intra {
			return false
		}
		s.add([2]MV{m.MV[k]}, weight)
	}
	if m.Mode == NewMVMode || m.Mode == NewNewMV {
		s.numNew++
	}
	return true
}

// scan matches the 4x4 units from x4, y4 stepping by dx, dy, n times.
func (w *Worker) scan(b *Block, x4, y4, dx, dy, n, weight int) bool {
	f := w.F
	found := false
	for i := 0; i < n; i++ {
		x, y := x4+i*dx, y4+i*dy
		if x >= min(f.W4, w.T.Geo.Col4End) || y >= f.H4 {
			break
		}
		if w.match(b, &f.MVs[y*f.W4+x], weight) {
			found = true
		}
	}
	return found
}

// findMVStack builds the candidate list of b from its spatial neighbours
// and the co-located motion of the Last reference.
func (w *Worker) findMVStack(b *Block) *mvStack {
	s := &w.stack
	*s = mvStack{}
	f, t := w.F, w.T
	bw4, bh4 := b.Size.W4(), b.Size.H4()
	stepX, stepY := min(bw4, 2), min(bh4, 2)
	nx, ny := (min(bw4, 16)+stepX-1)/stepX, (min(bh4, 16)+stepY-1)/stepY

	var aboveClose, leftClose, aboveFar, leftFar bool
	if w.haveTop {
		aboveClose = w.scan(b, b.X4, b.Y4-1, stepX, 0, nx, 2)
	}
	if w.haveLeft {
		leftClose = w.scan(b, b.X4-1, b.Y4, 0, stepY, ny, 2)
	}
	for i := 0; i < s.n; i++ {
		s.c[i].weight += refCatLevel
	}
	if w.haveTop && w.haveLeft {
		w.scan(b, b.X4-1, b.Y4-1, 0, 0, 1, 2)
	}
	if b.Y4-3 >= t.Geo.Row4Start {
		aboveFar = w.scan(b, b.X4, b.Y4-3, stepX, 0, nx, 1)
	}
	if b.X4-3 >= t.Geo.Col4Start {
		leftFar = w.scan(b, b.X4-3, b.Y4, 0, stepY, ny, 1)
	}
	if last := f.Refs[0]; !b.BC && !b.IsComp() && last != nil && last.MVs != nil && last.W4 == f.W4 && last.H4 == f.H4 {
		x := min(b.X4+bw4/2, f.W4-1)
		y := min(b.Y4+bh4/2, f.H4-1)
		if m := last.MVAt(x, y); m != nil && m.Ref[0] == b.Ref[0] && !m.BC {
			s.add([2]MV{m.MV[0]}, 2)
		}
	}

	// Stable sort by descending weight.
	for i := 1; i < s.n; i++ {
		for j := i; j > 0 && s.c[j].weight > s.c[j-1].weight; j-- {
			s.c[j], s.c[j-1] = s.c[j-1], s.c[j]
		}
	}

	hp, integer := w.precision(b)
	for i := range s.c {
		for k := 0; k < 2; k++ {
			mv := s.c[i].mv[k]
			mv.Y = lowerPrecision(mv.Y, hp, integer)
			mv.X = lowerPrecision(mv.X, hp, integer)
			s.c[i].mv[k] = w.clampMV(b, mv)
		}
	}

	close := b2i(aboveClose) + b2i(leftClose)
	total := b2i(aboveClose || aboveFar) + b2i(leftClose || leftFar)
	switch close {
	case 0:
		s.newCtx, s.refCtx = min(total, 1), total
	case 1:
		s.newCtx, s.refCtx = 3-min(s.numNew, 1), 2+total
	default:
		s.newCtx, s.refCtx = 5-min(s.numNew, 1), 5
	}
	s.zeroCtx = b2i(total > 0)
	return s
}

// precision returns whether high precision and integer only vectors apply
// to b.
func (w *Worker) precision(b *Block) (hp, integer bool) {
	hdr := w.F.Hdr
	if b.BC || hdr.ForceIntegerMV {
		return false, true
	}
	return hdr.AllowHighPrecisionMV, false
}

func lowerPrecision(v int32, hp, integer bool) int32 {
	if integer {
		a := v
		if a < 0 {
			a = -a
		}
		a = (a + 3) >> 3 << 3
		if v > 0 {
			return a
		}
		return -a
	}
	if !hp && v&1 != 0 {
		if v > 0 {
			return v - 1
		}
		return v + 1
	}
	return v
}

// clampMV limits mv so the predicted block stays near the frame.
func (w *Worker) clampMV(b *Block, mv MV) MV {
	f := w.F
	bw, bh := int32(b.Size.W4()*32), int32(b.Size.H4()*32)
	top := -int32(b.Y4 * 32)
	bottom := int32((f.H4-b.Size.H4()-b.Y4)*32)
	left := -int32(b.X4 * 32)
	right := int32((f.W4-b.Size.W4()-b.X4)*32)
	mv.Y = clamp32(mv.Y, top-mvBorder-bh, bottom+mvBorder+bh)
	mv.X = clamp32(mv.X, left-mvBorder-bw, right+mvBorder+bw)
	return mv
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (w *Worker) interInfo(b *Block) {
	w.readRefs(b)
	s := w.findMVStack(b)
	w.readInterMode(b, s)
	w.assignMV(b, s, w.readDRL(b, s))
	w.readMotionMode(b)
	w.readFilter(b)
	w.trackLowest(b)
}

// refCounts counts the references used by the available neighbours.
func (w *Worker) refCounts() (c [header.AltRef + 1]int) {
	add := func(n *nbr) {
		if n.intra {
			return
		}
		for _, r := range n.ref {
			if r > header.Intra {
				c[r]++
			}
		}
	}
	if w.haveTop {
		add(w.a)
	}
	if w.haveLeft {
		add(w.l)
	}
	return c
}

func refCtx(c0, c1 int) int {
	switch {
	case c0 < c1:
		return 0
	case c0 == c1:
		return 1
	}
	return 2
}

func (w *Worker) compModeCtx() int {
	hdr := w.F.Hdr
	bwd := func(n *nbr) bool { return !n.intra && n.ref[0] > header.Intra && hdr.SignBias[n.ref[0]] }
	a, l := w.a, w.l
	switch {
	case w.haveTop && w.haveLeft:
		switch {
		case !a.comp && !l.comp:
			return b2i(bwd(a) != bwd(l))
		case !a.comp:
			return 2 + b2i(bwd(a) || a.intra)
		case !l.comp:
			return 2 + b2i(bwd(l) || l.intra)
		}
		return 4
	case w.haveTop:
		if a.comp {
			return 3
		}
		return b2i(bwd(a))
	case w.haveLeft:
		if l.comp {
			return 3
		}
		return b2i(bwd(l))
	}
	return 1
}

func (w *Worker) readRefs(b *Block) {
	hdr := w.F.Hdr
	switch {
	case b.SkipMode:
		b.Ref = [2]int8{int8(hdr.SkipModeFrames[0]), int8(hdr.SkipModeFrames[1])}
		return
	case w.segActive(b, header.FeatureRefFrame):
		_, r := hdr.Segmentation.Feature(int(b.SegID), header.FeatureRefFrame)
		b.Ref = [2]int8{int8(r), -1}
		return
	case w.segActive(b, header.FeatureSkip) || w.segActive(b, header.FeatureGlobalMV):
		b.Ref = [2]int8{header.Last, -1}
		return
	}

	comp := false
	if hdr.ReferenceSelect && min(b.Size.W4(), b.Size.H4()) >= 2 {
		comp = w.flag(cdf.CompMode, w.compModeCtx())
	}
	c := w.refCounts()
	if comp {
		var fwd, bwd int8
		if w.flag(cdf.CompFwdRef, refCtx(c[header.Last]+c[header.Last2], c[header.Last3]+c[header.Golden])*3) {
			fwd = header.Last3
			if w.flag(cdf.CompFwdRef, refCtx(c[header.Last3], c[header.Golden])*3+2) {
				fwd = header.Golden
			}
		} else {
			fwd = header.Last
			if w.flag(cdf.CompFwdRef, refCtx(c[header.Last], c[header.Last2])*3+1) {
				fwd = header.Last2
			}
		}
		if w.flag(cdf.CompBwdRef, refCtx(c[header.BwdRef]+c[header.AltRef2], c[header.AltRef])*2) {
			bwd = header.AltRef
		} else {
			bwd = header.BwdRef
			if w.flag(cdf.CompBwdRef, refCtx(c[header.BwdRef], c[header.AltRef2])*2+1) {
				bwd = header.AltRef2
			}
		}
		b.Ref = [2]int8{fwd, bwd}
		return
	}

	fwdCount := c[header.Last] + c[header.Last2] + c[header.Last3] + c[header.Golden]
	bwdCount := c[header.BwdRef] + c[header.AltRef2] + c[header.AltRef]
	var r int8
	if w.flag(cdf.SingleRef, refCtx(fwdCount, bwdCount)*6) {
		switch {
		case w.flag(cdf.SingleRef, refCtx(c[header.BwdRef]+c[header.AltRef2], c[header.AltRef])*6+1):
			r = header.AltRef
		case w.flag(cdf.SingleRef, refCtx(c[header.BwdRef], c[header.AltRef2])*6+5):
			r = header.AltRef2
		default:
			r = header.BwdRef
		}
	} else {
		if w.flag(cdf.SingleRef, refCtx(c[header.Last]+c[header.Last2], c[header.Last3]+c[header.Golden])*6+2) {
			r = header.Last3
			if w.flag(cdf.SingleRef, refCtx(c[header.Last3], c[header.Golden])*6+4) {
				r = header.Golden
			}
		} else {
			r = header.Last
			if w.flag(cdf.SingleRef, refCtx(c[header.Last], c[header.Last2])*6+3) {
				r = header.Last2
			}
		}
	}
	b.Ref = [2]int8{r, -1}
}

var compModeCtxMap = [3][5]int{{0, 1, 1, 1, 1}, {1, 2, 3, 4, 4}, {4, 4, 5, 6, 7}}

func (w *Worker) readInterMode(b *Block, s *mvStack) {
	switch {
	case b.SkipMode:
		b.Mode = NearestNearestMV
	case w.segActive(b, header.FeatureSkip) || w.segActive(b, header.FeatureGlobalMV):
		b.Mode = GlobalMVMode
	case b.IsComp():
		b.Mode = NearestNearestMV + w.sym(cdf.CompInterMode, compModeCtxMap[s.refCtx>>1][min(s.newCtx, 4)])
	case !w.flag(cdf.NewMV, s.newCtx):
		b.Mode = NewMVMode
	case !w.flag(cdf.GlobalMV, s.zeroCtx):
		b.Mode = GlobalMVMode
	case !w.flag(cdf.RefMV, s.refCtx):
		b.Mode = NearestMV
	default:
		b.Mode = NearMV
	}
}

func hasNear(mode int) bool {
	return mode == NearMV || mode == NearNearMV || mode == NearNewMV || mode == NewNearMV
}

// readDRL returns the index of the candidate used by b.
func (w *Worker) readDRL(b *Block, s *mvStack) int {
	idx := 0
	switch {
	case b.Mode == NewMVMode || b.Mode == NewNewMV:
		for i := 0; i < 2; i++ {
			if s.n <= i+1 {
				break
			}
			if !w.flag(cdf.DRL, s.drlCtx(i)) {
				return i
			}
			idx = i + 1
		}
	case hasNear(b.Mode):
		idx = 1
		for i := 1; i < 3; i++ {
			if s.n <= i+1 {
				break
			}
			if !w.flag(cdf.DRL, s.drlCtx(i)) {
				return i
			}
			idx = i + 1
		}
	}
	return idx
}

// compModes gives the single modes of each reference of a compound mode.
var compModes = map[int][2]int{
	NearestNearestMV: {NearestMV, NearestMV},
	NearNearMV:       {NearMV, NearMV},
	NearestNewMV:     {NearestMV, NewMVMode},
	NewNearestMV:     {NewMVMode, NearestMV},
	NearNewMV:        {NearMV, NewMVMode},
	NewNearMV:        {NewMVMode, NearMV},
	GlobalGlobalMV:   {GlobalMVMode, GlobalMVMode},
	NewNewMV:         {NewMVMode, NewMVMode},
}

func (w *Worker) assignMV(b *Block, s *mvStack, idx int) {
	hp, integer := w.precision(b)
	n := 1
	modes := [2]int{b.Mode}
	if b.IsComp() {
		n, modes = 2, compModes[b.Mode]
	}
	for k := 0; k < n; k++ {
		switch modes[k] {
		case GlobalMVMode:
			b.MV[k] = MV{}
		case NearestMV:
			b.MV[k] = s.c[0].mv[k]
		case NearMV:
			b.MV[k] = s.c[idx].mv[k]
		case NewMVMode:
			b.MV[k] = s.c[idx].mv[k].Add(w.readMV(0, hp, integer))
		}
	}
}

// readMV reads a motion vector residual.
func (w *Worker) readMV(ctx int, hp, integer bool) MV {
	var d MV
	j := w.sym(cdf.MVJoint, ctx)
	if j == 2 || j == 3 {
		d.Y = w.readMVComponent(ctx, 0, hp, integer)
	}
	if j == 1 || j == 3 {
		d.X = w.readMVComponent(ctx, 1, hp, integer)
	}
	return d
}

func (w *Worker) readMVComponent(ctx, comp int, hp, integer bool) int32 {
	c := ctx*2 + comp
	sign := w.flag(cdf.MVSign, c)
	class := w.sym(cdf.MVClass, c)
	fr, hpBit := 3, 1
	var mag int
	if class == 0 {
		bit := w.sym(cdf.MVClass0, c)
		if !integer {
			fr = w.sym(cdf.MVClass0Fp, c*2+bit)
			if hp {
				hpBit = w.sym(cdf.MVClass0Hp, c)
			}
		}
		mag = (bit<<3 | fr<<1 | hpBit) + 1
	} else {
		d := 0
		for i := 0; i < class; i++ {
			d |= w.sym(cdf.MVBits, c*10+i) << uint(i)
		}
		if !integer {
			fr = w.sym(cdf.MVFp, c)
			if hp {
				hpBit = w.sym(cdf.MVHp, c)
			}
		}
		mag = 2<<uint(class+2) + (d<<3 | fr<<1 | hpBit) + 1
	}
	if sign {
		return -int32(mag)
	}
	return int32(mag)
}

// motionNeighbours reports whether an inter neighbour overlaps b and how
// many neighbours predict from its reference.
func (w *Worker) motionNeighbours(b *Block) (overlap bool, samples int) {
	check := func(n []nbr) {
		for i := range n {
			if n[i].intra {
				continue
			}
			overlap = true
			if n[i].ref[0] == b.Ref[0] && n[i].ref[1] <= header.Intra {
				samples++
			}
		}
	}
	if w.haveTop {
		check(w.aboveNbrs(b))
	}
	if w.haveLeft {
		check(w.leftNbrs(b))
	}
	return overlap, samples
}

func (w *Worker) readMotionMode(b *Block) {
	hdr := w.F.Hdr
	b.Motion = MotionSimple
	if b.SkipMode || !hdr.SwitchableMotionMode || min(b.Size.W4(), b.Size.H4()) < 2 || b.IsComp() {
		return
	}
	overlap, samples := w.motionNeighbours(b)
	if !overlap {
		return
	}
	if hdr.ForceIntegerMV || samples == 0 || !hdr.AllowWarpedMotion {
		if w.flag(cdf.OBMC, int(b.Size)) {
			b.Motion = MotionOBMC
		}
		return
	}
	b.Motion = w.sym(cdf.MotionMode, int(b.Size))
}

func (w *Worker) needsFilter(b *Block) bool {
	if b.SkipMode || b.Motion == MotionWarped {
		return false
	}
	large := min(b.Size.W4(), b.Size.H4()) >= 2
	return !(large && (b.Mode == GlobalMVMode || b.Mode == GlobalGlobalMV))
}

func (w *Worker) filterCtx(b *Block, dir int) int {
	ctx := ((dir&1)*2 + b2i(b.IsComp())) * 4
	lt, at := 3, 3
	if w.haveLeft && !w.l.intra && (w.l.ref[0] == b.Ref[0] || w.l.ref[1] == b.Ref[0]) {
		lt = int(w.l.filter[dir])
	}
	if w.haveTop && !w.a.intra && (w.a.ref[0] == b.Ref[0] || w.a.ref[1] == b.Ref[0]) {
		at = int(w.a.filter[dir])
	}
	switch {
	case lt == at:
		ctx += lt
	case lt == 3:
		ctx += at
	case at == 3:
		ctx += lt
	default:
		ctx += 3
	}
	return ctx
}

func (w *Worker) readFilter(b *Block) {
	hdr := w.F.Hdr
	if hdr.InterpFilter != header.Switchable {
		b.Filter = [2]int{int(hdr.InterpFilter), int(hdr.InterpFilter)}
		return
	}
	b.Filter = [2]int{FilterRegular, FilterRegular}
	if !w.needsFilter(b) {
		return
	}
	dirs := 1
	if hdr.EnableDualFilter {
		dirs = 2
	}
	for d := 0; d < dirs; d++ {
		b.Filter[d] = w.sym(cdf.InterpFilter, w.filterCtx(b, d))
	}
	if dirs == 1 {
		b.Filter[1] = b.Filter[0]
	}
}

// OBMCNeighbours calls fn for each inter neighbour above and to the left of
// b with the luma region, in 4x4 units, that its motion predicts.
func (w *Worker) OBMCNeighbours(b *Block, fn func(above bool, ref int, mv MV, x4, y4, w4, h4 int)) {
	f, t := w.F, w.T
	if b.Y4 > t.Geo.Row4Start {
		h4 := min(max(1, b.Size.H4()/2), 8)
		for x := b.X4; x < min(b.X4+b.Size.W4(), f.W4); x++ {
			m := &f.MVs[(b.Y4-1)*f.W4+x]
			if m.Ref[0] > header.Intra && !m.BC {
				fn(true, int(m.Ref[0]), m.MV[0], x, b.Y4, 1, h4)
			}
		}
	}
	if b.X4 > t.Geo.Col4Start {
		w4 := min(max(1, b.Size.W4()/2), 8)
		for y := b.Y4; y < min(b.Y4+b.Size.H4(), f.H4); y++ {
			m := &f.MVs[y*f.W4+b.X4-1]
			if m.Ref[0] > header.Intra && !m.BC {
				fn(false, int(m.Ref[0]), m.MV[0], b.X4, y, w4, 1)
			}
		}
	}
}

// trackLowest records the lowest reference rows read when predicting b.
func (w *Worker) trackLowest(b *Block) {
	for k := 0; k < 1+b2i(b.IsComp()); k++ {
		w.lowest(int(b.Ref[k]), b.MV[k], b.Y4, b.Size.H4())
	}
	if b.Motion == MotionOBMC {
		w.OBMCNeighbours(b, func(_ bool, ref int, mv MV, _, y4, _, h4 int) {
			w.lowest(ref, mv, y4, h4)
		})
	}
}

func (w *Worker) lowest(ref int, mv MV, y4, h4 int) {
	r := w.F.Refs[ref-header.Last]
	if r == nil || r.Pic == nil {
		return
	}
	sy := uint(w.F.Hdr.Layout.SubY())
	luma := LowestRow(y4*4, h4*4, mv.Y, 0, r.Pic.Height)
	chroma := LowestRow((y4*4)>>sy, max(2, (h4*4)>>sy), mv.Y, sy, (r.Pic.Height+int(sy))>>sy)
	w.T.updateLowest(w.sby, ref, 0, luma)
	w.T.updateLowest(w.sby, ref, 1, chroma)
}

// LowestRow returns the lowest row of a plane of height ph read when
// predicting h rows from row y with vertical motion mv, in eighth luma
// pixels, on a plane subsampled by ss. Prediction reads one row beyond the
// block for interpolation.
func LowestRow(y, h int, mv int32, ss uint, ph int) int {
	return clamp(y+h+int(mv>>(3+ss)), 0, ph-1)
}

// bcRect returns the luma area, in pixels, read by the intra block copy of
// b, including the chroma footprint of small blocks.
func (w *Worker) bcRect(b *Block) (x, y, rw, rh int) {
	l := w.F.Hdr.Layout
	x, y, rw, rh = b.X4*4, b.Y4*4, b.Size.W4()*4, b.Size.H4()*4
	if b.HasChroma && l.SubX() == 1 && b.Size.W4() == 1 {
		x, rw = x-4, 8
	}
	if b.HasChroma && l.SubY() == 1 && b.Size.H4() == 1 {
		y, rh = y-4, 8
	}
	return x, y, rw, rh
}

// intrabcAllowed returns true if an intra block copy of b can always be
// clamped to a decoded area.
func (w *Worker) intrabcAllowed(b *Block) bool {
	t := w.T
	if w.sby == t.Geo.SBRowStart {
		return false
	}
	_, _, rw, _ := w.bcRect(b)
	return rw <= (t.Geo.Col4End-t.Geo.Col4Start)*4
}

func (w *Worker) intrabcInfo(b *Block) error {
	hdr, t := w.F.Hdr, w.T
	b.Ref = [2]int8{header.Intra, -1}
	b.YMode, b.UVMode = DCPred, DCPred
	b.Mode = NewMVMode
	b.Filter = [2]int{FilterBilinear, FilterBilinear}
	s := w.findMVStack(b)
	pred := s.c[0].mv[0]
	if pred == (MV{}) {
		pred = s.c[1].mv[0]
	}
	if pred == (MV{}) {
		sb := hdr.SBSize()
		if b.Y4*4-sb < t.Geo.Row4Start*4 {
			pred = MV{X: -int32(sb+256) * 8}
		} else {
			pred = MV{Y: -int32(sb * 8)}
		}
	}
	mv := pred.Add(w.readMV(1, false, true))
	b.MV[0] = MV{Y: mv.Y >> 3 << 3, X: mv.X >> 3 << 3}
	return w.clampIntrabc(b)
}

// clampIntrabc moves the intra block copy vector of b so that it references
// only reconstructed pixels of the current tile, rounding to full pixels of
// every plane.
func (w *Worker) clampIntrabc(b *Block) error {
	f, t := w.F, w.T
	sbPx := f.Hdr.SBSize()
	sbLog2 := uint(f.Hdr.SBLog2())
	x0, y0, rw, rh := w.bcRect(b)
	x := (x0 + int(b.MV[0].X>>3)) &^ f.Hdr.Layout.SubX()
	y := (y0 + int(b.MV[0].Y>>3)) &^ f.Hdr.Layout.SubY()

	tx0, tx1 := t.Geo.Col4Start*4, t.Geo.Col4End*4
	ty0, ty1 := t.Geo.Row4Start*4, t.Geo.Row4End*4
	sbTop := w.sby * sbPx
	sbBottom := min(sbTop+sbPx, ty1)
	sbLeft := (b.X4 >> sbLog2 << sbLog2) * 4

	valid := func() bool {
		if x < tx0 || x+rw > tx1 || y < ty0 {
			return false
		}
		if y+rh <= sbTop {
			return true
		}
		return y >= sbTop && y+rh <= sbBottom && x+rw <= sbLeft
	}

	if rw > tx1-tx0 {
		return ErrInvalidIntrabc
	}
	x = clamp(x, tx0, tx1-rw)
	y = max(y, ty0)
	if y >= sbTop && y+rh > sbBottom {
		y = sbBottom - rh
	}
	if !valid() {
		if sbTop-rh >= ty0 {
			y = sbTop - rh
		} else {
			x = sbLeft - rw
		}
	}
	if !valid() {
		return ErrInvalidIntrabc
	}
	b.MV[0] = MV{Y: int32(y-y0) * 8, X: int32(x-x0) * 8}
	return nil
}
