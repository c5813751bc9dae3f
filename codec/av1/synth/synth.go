/*
DESCRIPTION
  synth.go provides a generator of valid av1 frames: randomised frame
  headers and tile data written by running the tile decoder over Writers.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package synth generates synthetic av1 frames for testing and
// benchmarking the decoder. Tile data is produced by the decoder's own
// block syntax, so every generated frame decodes without error and the
// entropy contexts carried between frames match those of a decoder.
package synth

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/recon"
)

// Params controls the generated stream.
type Params struct {
	Width, Height      int
	BitDepth           int
	Layout             header.Layout
	SB128              bool
	TileCols, TileRows int

	// KeyInterval is the distance between key frames. A value of 0 gives a
	// key frame only at the start of the stream.
	KeyInterval int

	// ScreenContent allows palette and intra block copy on intra frames.
	ScreenContent bool

	// SuperRes allows horizontal super-resolution on intra frames.
	SuperRes bool

	// NoFilters disables all in-loop filtering.
	NoFilters bool

	Seed int64
}

// Frame is a generated frame header with the data of each of its tiles.
type Frame struct {
	Header *header.Frame
	Tiles  [][]byte
}

type slot struct {
	ref *av1dec.RefFrame
	cdf *cdf.Context
}

// Generator produces a stream of frames. Frames must be decoded in the order
// they are generated.
type Generator struct {
	p     Params
	rnd   *rand.Rand
	n     int
	slots [header.NumRefSlots]slot
	w     av1dec.Worker
}

// NewGenerator returns a Generator for p.
func NewGenerator(p Params) *Generator {
	if p.BitDepth == 0 {
		p.BitDepth = 8
	}
	return &Generator{p: p, rnd: rand.New(rand.NewSource(p.Seed))}
}

// Generate returns n frames generated with p.
func Generate(p Params, n int) ([]*Frame, error) {
	g := NewGenerator(p)
	frames := make([]*Frame, 0, n)
	for i := 0; i < n; i++ {
		f, err := g.Next()
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Next returns the next frame of the stream.
func (g *Generator) Next() (*Frame, error) {
	hdr := g.header()
	err := hdr.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "generated header %d", g.n)
	}
	g.n++

	f := av1dec.NewFrame(hdr, true)
	f.Kern = recon.New(hdr.BitDepth)
	f.Alloc()
	if !hdr.IsIntra() {
		for i, s := range hdr.RefFrameIdx {
			f.Refs[i] = g.slots[s].ref
		}
	}

	base := cdf.New(hdr.Quant.BaseQIdx)
	if hdr.PrimaryRefFrame != header.PrimaryRefNone {
		s := g.slots[hdr.RefFrameIdx[hdr.PrimaryRefFrame]]
		f.Prev = s.ref
		base.CopyFrom(s.cdf)
	}

	out := &Frame{Header: hdr, Tiles: make([][]byte, hdr.Tiles())}
	var final *cdf.Context
	for i := range out.Tiles {
		ctx := cdf.New(0)
		ctx.CopyFrom(base)
		t := &f.Tiles[i]
		t.Init(f, i, nil, ctx)
		wr := NewWriter(g.rnd.Int63(), hdr.DisableCDFUpdate)
		t.SetReader(wr)
		for sby := t.Geo.SBRowStart; sby < t.Geo.SBRowEnd; sby++ {
			err := g.w.DecodeSBRow(f, t, sby, av1dec.PassEntropy)
			if err != nil {
				return nil, errors.Wrapf(err, "tile %d row %d", i, sby)
			}
		}
		out.Tiles[i] = wr.Done()
		if i == hdr.Tiling.ContextUpdateID {
			final = ctx
		} else {
			ctx.Release()
		}
	}
	if !hdr.DisableFrameEndUpdateCDF {
		cdf.Update(base, final)
	}
	final.Release()

	ref := f.AsRef()
	for s := range g.slots {
		if hdr.RefreshFrameFlags&(1<<uint(s)) != 0 {
			g.slots[s] = slot{ref: ref, cdf: base}
		}
	}
	return out, nil
}

func (g *Generator) chance(num, den int) bool { return g.rnd.Intn(den) < num }

func (g *Generator) between(lo, hi int) int { return lo + g.rnd.Intn(hi-lo+1) }

// header returns a randomised header for the next frame.
func (g *Generator) header() *header.Frame {
	p := &g.p
	h := &header.Frame{
		ShowFrame:       true,
		Width:           p.Width,
		Height:          p.Height,
		BitDepth:        p.BitDepth,
		Layout:          p.Layout,
		SB128:           p.SB128,
		PrimaryRefFrame: header.PrimaryRefNone,
	}
	key := g.n == 0 || (p.KeyInterval > 0 && g.n%p.KeyInterval == 0)
	switch {
	case key:
		h.FrameType = header.KeyFrame
		h.RefreshFrameFlags = 0xff
	case g.chance(1, 10):
		h.FrameType = header.IntraOnlyFrame
		h.RefreshFrameFlags = 1 << uint(g.rnd.Intn(header.NumRefSlots))
	default:
		h.FrameType = header.InterFrame
		h.RefreshFrameFlags = 1 << uint(g.n%header.NumRefSlots)
		g.inter(h)
	}
	h.ShowFrame = key || !g.chance(1, 12)
	if !key && g.chance(2, 3) {
		h.PrimaryRefFrame = 0
		if h.IsIntra() {
			// Intra only frames take their contexts from the slot Last would
			// use.
			h.RefFrameIdx[0] = g.rnd.Intn(header.NumRefSlots)
		}
	}

	h.DisableCDFUpdate = g.chance(1, 16)
	h.DisableFrameEndUpdateCDF = g.chance(1, 4)
	h.TxMode = header.Select
	if g.chance(1, 3) {
		h.TxMode = header.Largest
	} else if g.chance(1, 20) {
		h.TxMode = header.Only4x4
	}
	h.ReducedTxSet = g.chance(1, 4)

	q := &h.Quant
	q.BaseQIdx = g.between(1, 255)
	if g.chance(1, 2) {
		q.DeltaQPresent = true
		q.DeltaQRes = g.rnd.Intn(4)
		if g.chance(1, 2) {
			q.DeltaLFPresent = true
			q.DeltaLFRes = g.rnd.Intn(4)
			q.DeltaLFMulti = g.chance(1, 2)
		}
	}

	g.segmentation(h)
	if h.IsIntra() && p.ScreenContent {
		h.AllowScreenContentTools = true
		h.AllowIntrabc = g.chance(1, 2)
	}
	if !p.NoFilters && !h.AllowIntrabc {
		g.filters(h)
	}

	sbCols, sbRows := h.SBCols(), h.SBRows()
	h.Tiling = header.UniformTiling(sbCols, sbRows, max(1, min(p.TileCols, sbCols)), max(1, min(p.TileRows, sbRows)))
	h.Tiling.ContextUpdateID = g.rnd.Intn(h.Tiles())
	return h
}

// inter sets the reference and inter tool parameters of h.
func (g *Generator) inter(h *header.Frame) {
	perm := g.rnd.Perm(header.NumRefSlots)
	copy(h.RefFrameIdx[:], perm)
	for r := header.BwdRef; r <= header.AltRef; r++ {
		h.SignBias[r] = true
	}
	h.ReferenceSelect = g.chance(1, 2)
	if h.ReferenceSelect && g.chance(1, 2) {
		h.SkipModePresent = true
		h.SkipModeFrames = [2]int{header.Last, header.BwdRef}
	}
	h.InterpFilter = header.Filter(g.rnd.Intn(int(header.Switchable) + 1))
	h.EnableDualFilter = g.chance(1, 2)
	h.SwitchableMotionMode = g.chance(2, 3)
	h.AllowWarpedMotion = g.chance(1, 2)
	h.AllowHighPrecisionMV = g.chance(1, 2)
	h.ForceIntegerMV = g.chance(1, 10)
}

func (g *Generator) segmentation(h *header.Frame) {
	if !g.chance(1, 3) {
		return
	}
	s := &h.Segmentation
	s.Enabled = true
	s.UpdateMap = h.IsIntra() || h.PrimaryRefFrame == header.PrimaryRefNone || g.chance(2, 3)
	s.TemporalUpdate = s.UpdateMap && !h.IsIntra() && h.PrimaryRefFrame != header.PrimaryRefNone && g.chance(1, 2)
	n := g.between(2, header.MaxSegments)
	for i := 0; i < n; i++ {
		if g.chance(2, 3) {
			s.FeatureEnabled[i][header.FeatureAltQ] = true
			s.FeatureData[i][header.FeatureAltQ] = g.between(-60, 60)
		}
		if g.chance(1, 3) {
			s.FeatureEnabled[i][header.FeatureAltLFYV] = true
			s.FeatureData[i][header.FeatureAltLFYV] = g.between(-20, 20)
		}
	}
	if g.chance(1, 4) {
		s.FeatureEnabled[n-1][header.FeatureSkip] = true
	}
	if !h.IsIntra() && g.chance(1, 4) {
		s.FeatureEnabled[0][header.FeatureRefFrame] = true
		s.FeatureData[0][header.FeatureRefFrame] = header.Last
	}
	if !h.IsIntra() && g.chance(1, 4) {
		s.FeatureEnabled[n/2][header.FeatureGlobalMV] = true
	}
}

func (g *Generator) filters(h *header.Frame) {
	lf := &h.LoopFilter
	if g.chance(3, 4) {
		for i := range lf.Level {
			lf.Level[i] = g.rnd.Intn(64)
		}
		lf.Sharpness = g.rnd.Intn(8)
	}

	c := &h.CDEF
	if g.chance(2, 3) {
		c.Damping = g.between(3, 6)
		c.Bits = g.rnd.Intn(4)
		for i := 0; i < 1<<uint(c.Bits); i++ {
			c.YStrength[i] = g.rnd.Intn(64)
			c.UVStrength[i] = g.rnd.Intn(64)
		}
	}

	r := &h.Restoration
	if g.chance(1, 2) {
		sz := 64 << uint(g.rnd.Intn(3))
		for p := range r.Type {
			r.Type[p] = header.RestorationType(g.rnd.Intn(int(header.RestoreSwitchable) + 1))
			r.UnitSize[p] = sz
			if p > 0 && g.chance(1, 2) {
				r.UnitSize[p] = sz >> uint(h.Layout.SubX())
			}
		}
	}

	if h.IsIntra() && g.p.SuperRes && g.chance(1, 2) {
		h.SuperRes = header.SuperRes{
			Enabled:       true,
			UpscaledWidth: min(h.Width*g.between(9, 16)/8, header.MaxDimension),
		}
	}
}
