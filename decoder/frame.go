/*
DESCRIPTION
  frame.go provides the frame context: the per frame state held by a slot of
  the frame pool, its allocation, inline decoding, dependency checks and
  teardown.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package decoder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/recon"
)

// Fixed task indices of a frame.
const (
	taskInit    int32 = 0
	taskInitCDF int32 = 1
)

// frameContext is one slot of the frame pool. Its buffers are reused by
// each frame decoded in the slot.
type frameContext struct {
	slot  int
	seq   uint64
	inUse bool // Set from acquire until exit; guarded by the scheduler lock.

	f     *av1dec.Frame
	tiles [][]byte
	pic   *picture

	refs   [header.RefsPerFrame]*picture
	prev   *picture
	mvDeps []*picture // Pictures whose motion or segment ids entropy decode reads.

	in     *cdf.Shared // Baseline entropy contexts.
	cdfOut *cdf.Shared // Final entropy contexts, published for later frames.
	out    *output

	tasks   []task
	head    int32
	pending int

	stage [av1dec.NumStages]atomic.Int32

	errOnce sync.Once
	errSet  atomic.Bool
	err     error

	abort func() bool
}

func newFrameContext(s *scheduler, slot int) *frameContext {
	fc := &frameContext{slot: slot, f: &av1dec.Frame{}, head: none}
	fc.abort = func() bool { return s.flushing.Load() || fc.failed() }
	return fc
}

// fail records err as the frame's error. Only the first error is kept.
func (fc *frameContext) fail(err error) {
	fc.errOnce.Do(func() {
		fc.err = err
		fc.errSet.Store(true)
	})
}

func (fc *frameContext) failed() bool { return fc.errSet.Load() }

func (fc *frameContext) error() error {
	if !fc.failed() {
		return nil
	}
	return fc.err
}

// pictureSize returns the bytes held by a picture of width w for hdr.
func pictureSize(hdr *header.Frame, w, h int) int64 {
	pad := hdr.SBSize()
	pw := int64((w + pad - 1) / pad * pad)
	ph := int64((h + pad - 1) / pad * pad)
	sx, sy := uint(hdr.Layout.SubX()), uint(hdr.Layout.SubY())
	n := pw*ph + 2*(pw>>sx)*(ph>>sy)
	if hdr.BitDepth > 8 {
		n *= 2
	}
	return n
}

// frameSize returns the bytes allocated for a frame, pictures included.
func frameSize(f *av1dec.Frame) int64 {
	hdr := f.Hdr
	n := f.AllocSize() + pictureSize(hdr, hdr.Width, hdr.Height) + pictureSize(hdr, hdr.Width, hdr.SBRows())
	if hdr.SuperRes.Enabled {
		n += pictureSize(hdr, hdr.OutputWidth(), hdr.Height)
	}
	return n
}

// alloc sizes the frame buffers for hdr and creates its pictures.
func (fc *frameContext) alloc(hdr *header.Frame, twoPass bool, limit int64, hook func(int64) error) error {
	f := fc.f
	f.Reset(hdr, twoPass)
	size := frameSize(f)
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: frame needs %d bytes, limit is %d", ErrNoMemory, size, limit)
	}
	if hook != nil {
		err := hook(size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoMemory, err)
		}
	}
	f.Alloc()

	pad := hdr.SBSize()
	f.Pic = av1dec.NewPicture(hdr.Width, hdr.Height, hdr.BitDepth, hdr.Layout, pad)
	f.Out = f.Pic
	if hdr.SuperRes.Enabled {
		f.Out = av1dec.NewPicture(hdr.OutputWidth(), hdr.Height, hdr.BitDepth, hdr.Layout, pad)
	}
	f.Edge = av1dec.NewEdgeBuffer(hdr.Width, hdr.SBRows(), hdr.BitDepth, hdr.Layout, pad)
	f.Kern = recon.New(hdr.BitDepth)
	return nil
}

// bind takes holds on the references of the frame from slots and creates
// the frame's own picture.
func (fc *frameContext) bind(slots *[header.NumRefSlots]*picture) {
	f := fc.f
	hdr := f.Hdr
	if !hdr.IsIntra() {
		for i, s := range hdr.RefFrameIdx {
			p := slots[s].Ref()
			fc.refs[i] = p
			f.Refs[i] = &p.ref
		}
	}
	if hdr.PrimaryRefFrame != header.PrimaryRefNone {
		p := slots[hdr.RefFrameIdx[hdr.PrimaryRefFrame]].Ref()
		fc.prev = p
		f.Prev = &p.ref
		fc.in = p.cdf.Ref()
	} else {
		fc.in = cdf.NewDefault(hdr.Quant.BaseQIdx)
	}
	fc.cdfOut = cdf.NewShared()
	fc.pic = newPicture(f.AsRef(), fc.cdfOut.Ref())

	fc.mvDeps = fc.mvDeps[:0]
	if !hdr.IsIntra() {
		fc.mvDeps = append(fc.mvDeps, fc.refs[0])
	}
	if hdr.Segmentation.Enabled && fc.prev != nil && fc.prev != fc.refs[0] {
		fc.mvDeps = append(fc.mvDeps, fc.prev)
	}

	for i := range fc.stage {
		fc.stage[i].Store(0)
	}
	fc.errOnce = sync.Once{}
	fc.errSet.Store(false)
	fc.err = nil
}

// buildTasks lays out the task array of the frame: init, init-cdf, the
// entropy then reconstruction task of each tile, the entropy progress task,
// one task per post-filter stage and the reconstruction progress task.
func (fc *frameContext) buildTasks() {
	hdr := fc.f.Hdr
	n := hdr.Tiles()
	fc.tasks = fc.tasks[:0]
	fc.tasks = append(fc.tasks, task{kind: kindInit}, task{kind: kindInitCDF})
	for _, k := range []kind{kindTileEntropy, kindTileRecon} {
		for i := 0; i < n; i++ {
			fc.tasks = append(fc.tasks, task{kind: k, sby: int32(hdr.Tile(i).SBRowStart), tile: int32(i)})
		}
	}
	for k := kindEntropyProgress; k <= kindReconProgress; k++ {
		if k != kindTileRecon {
			fc.tasks = append(fc.tasks, task{kind: k})
		}
	}
	for i := range fc.tasks {
		fc.tasks[i].next = none
	}
	fc.head = none
	fc.pending = 0
}

// initTiles prepares the tile states for decoding. Entropy contexts are
// attached once the baseline is available.
func (fc *frameContext) initTiles() {
	f := fc.f
	for i := range f.Tiles {
		f.Tiles[i].Init(f, i, fc.tiles[i], nil)
	}
}

// initCDF gives each tile its own copy of the baseline contexts.
func (fc *frameContext) initCDF() {
	f := fc.f
	for i := range f.Tiles {
		f.Tiles[i].CDF = fc.in.Clone()
	}
	if f.Hdr.DisableFrameEndUpdateCDF {
		fc.cdfOut.Publish(fc.in.Context())
	}
}

// mvRowsAt returns the 4x4 rows whose motion is final once entropy decode
// of superblock row sby is complete.
func (fc *frameContext) mvRowsAt(sby int) int32 {
	return int32(min((sby+1)<<uint(fc.f.Hdr.SBLog2()), fc.f.H4))
}

// rowDone returns true if every tile of the tile row holding sby has passed
// sby in pass.
func (fc *frameContext) rowDone(sby int32, pass int) bool {
	f := fc.f
	cols := f.Hdr.Tiling.Cols
	r := f.Hdr.TileRowOf(int(sby))
	for i := r * cols; i < (r+1)*cols; i++ {
		if f.Tiles[i].Progress[pass].Load() <= sby {
			return false
		}
	}
	return true
}

// mvReady returns true once the pictures read by entropy decode of t's row
// have final motion and segment ids down to that row.
func (fc *frameContext) mvReady(t *task) bool {
	need := fc.mvRowsAt(int(t.sby))
	for ; int(t.deps) < len(fc.mvDeps); t.deps++ {
		p := fc.mvDeps[t.deps]
		v := p.mvRows.Load()
		if v == progressError {
			fc.fail(errRefFailed)
			return true
		}
		if v < min(need, int32(p.ref.H4)) {
			return false
		}
	}
	return true
}

// pixelsReady returns true once every reference pixel row read by
// reconstruction of t's row is final.
func (fc *frameContext) pixelsReady(t *task, tile *av1dec.TileState) bool {
	sy := fc.f.Hdr.Layout.SubY()
	for ; t.deps < header.RefsPerFrame; t.deps++ {
		luma, chroma := tile.LowestPixel(int(t.sby), int(t.deps)+header.Last)
		if luma == av1dec.NoLowest {
			continue
		}
		p := fc.refs[t.deps]
		v := p.pixels.Load()
		if v == progressError {
			fc.fail(errRefFailed)
			return true
		}
		if luma >= v || chroma >= chromaRows(v, sy) {
			return false
		}
	}
	return true
}

// readsFailed returns true if superblock row sby of tile t read pixels of
// a reference that failed to decode.
func (fc *frameContext) readsFailed(t *av1dec.TileState, sby int) bool {
	for r, p := range fc.refs {
		if p == nil {
			continue
		}
		luma, _ := t.LowestPixel(sby, r+header.Last)
		if luma != av1dec.NoLowest && p.failed() {
			return true
		}
	}
	return false
}

// decodeInline decodes the frame on the calling goroutine, running the
// post-filters of each superblock row once all tiles of the row are
// reconstructed.
func (fc *frameContext) decodeInline(s *scheduler, w *av1dec.Worker) {
	f := fc.f
	hdr := f.Hdr
	if _, failed := fc.in.Ready(); failed {
		fc.fail(errRefFailed)
		return
	}
	for _, p := range fc.mvDeps {
		if p.failed() {
			fc.fail(errRefFailed)
			return
		}
	}
	for i := range f.Tiles {
		f.Tiles[i].Init(f, i, fc.tiles[i], fc.in.Clone())
	}
	if hdr.DisableFrameEndUpdateCDF {
		fc.cdfOut.Publish(fc.in.Context())
	}

	w.Abort = nil
	cols := hdr.Tiling.Cols
	for r := 0; r < hdr.Tiling.Rows; r++ {
		row := f.Tiles[r*cols : (r+1)*cols]
		for sby := row[0].Geo.SBRowStart; sby < row[0].Geo.SBRowEnd; sby++ {
			for i := range row {
				t := &row[i]
				err := w.DecodeSBRow(f, t, sby, av1dec.PassSingle)
				if err != nil {
					t.Fail()
					fc.fail(fmt.Errorf("tile %d row %d: %w", t.Index, sby, err))
					return
				}
				if fc.readsFailed(t, sby) {
					t.Fail()
					fc.fail(errRefFailed)
					return
				}
				s.publish(fc, t, av1dec.ProgressEntropy, int32(sby+1))
				s.publish(fc, t, av1dec.ProgressRecon, int32(sby+1))
				if sby+1 == t.Geo.SBRowEnd && t.Index == hdr.Tiling.ContextUpdateID && !hdr.DisableFrameEndUpdateCDF {
					fc.cdfOut.Update(t.CDF)
				}
			}
			for st := av1dec.Stage(0); st < av1dec.NumStages; st++ {
				w.FilterRow(f, st, sby)
				fc.stage[st].Store(int32(sby + 1))
			}
			fc.pic.mvRows.Store(fc.mvRowsAt(sby))
			_, y1 := recon.Window(hdr, sby)
			fc.pic.pixels.Store(int32(y1))
		}
	}
}

// finish publishes the final progress of the frame, or the error sentinel,
// and drops the frame's holds. It returns the frame's error.
func (fc *frameContext) finish(cancelled bool) error {
	f := fc.f
	err := fc.error()
	if err == nil && !cancelled {
		fc.pic.mvRows.Store(int32(f.H4))
		fc.pic.pixels.Store(int32(f.Hdr.Height))
	} else {
		fc.pic.mvRows.Store(progressError)
		fc.pic.pixels.Store(progressError)
	}
	// Marks the final contexts failed unless a tile published them.
	fc.cdfOut.Fail()

	for i, p := range fc.refs {
		if p != nil {
			p.Unref()
			fc.refs[i] = nil
		}
	}
	if fc.prev != nil {
		fc.prev.Unref()
		fc.prev = nil
	}
	for i := range fc.mvDeps {
		fc.mvDeps[i] = nil
	}
	for i := range f.Tiles {
		t := &f.Tiles[i]
		if t.CDF != nil {
			t.CDF.Release()
			t.CDF = nil
		}
		t.Reader = nil
	}
	fc.in.Unref()
	fc.cdfOut.Unref()
	fc.pic.Unref()
	fc.in, fc.cdfOut, fc.pic = nil, nil, nil
	fc.tiles = nil
	f.Refs = [header.RefsPerFrame]*av1dec.RefFrame{}
	f.Prev = nil
	return err
}
