/*
DESCRIPTION
  scheduler.go provides the task scheduler shared by the worker goroutines
  and the frames in flight: ordered per frame task queues, dependency
  checks, progress publication, frame exit and flush.

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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/recon"
)

// output is a picture in display order, completed when its frame exits.
type output struct {
	seq       uint64
	pic       *av1dec.Picture
	err       error
	done      bool
	cancelled bool
}

// scheduler owns the frame pool and the worker goroutines. All fields are
// guarded by mu except flushing.
type scheduler struct {
	log logging.Logger

	mu    sync.Mutex
	work  *sync.Cond // Tasks queued, progress published, flush or close.
	quiet *sync.Cond // Frame exit, or workers idle while flushing.

	frames []*frameContext
	first  int // Pool index of the oldest frame in flight.
	active int // Frames in flight from first, including one being set up.
	cur    int // Offset from first of the first frame that may have tasks.

	busy     int // Workers running a task.
	flushing atomic.Bool
	closed   bool
	wg       sync.WaitGroup

	outputs []*output

	// onProgress, if set, is called with each tile progress value
	// published.
	onProgress func(seq uint64, tile, pass int, v int32)
}

// newScheduler returns a scheduler with a pool of frames. Workers are only
// started for frame parallel decoding.
func newScheduler(log logging.Logger, frames, threads int) *scheduler {
	s := &scheduler{log: log, frames: make([]*frameContext, frames)}
	s.work = sync.NewCond(&s.mu)
	s.quiet = sync.NewCond(&s.mu)
	for i := range s.frames {
		s.frames[i] = newFrameContext(s, i)
	}
	if frames == 1 {
		return s
	}
	for i := 0; i < threads; i++ {
		s.wg.Add(1)
		go s.run(&av1dec.Worker{})
	}
	return s
}

func (s *scheduler) frameAt(off int) *frameContext {
	return s.frames[(s.first+off)%len(s.frames)]
}

func (s *scheduler) offset(fc *frameContext) int {
	return (fc.slot - s.first + len(s.frames)) % len(s.frames)
}

// acquire waits for a free slot in the frame pool and reserves it.
func (s *scheduler) acquire(seq uint64) *frameContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.active == len(s.frames) {
		s.quiet.Wait()
	}
	fc := s.frameAt(s.active)
	s.active++
	fc.inUse = true
	fc.seq = seq
	fc.head = none
	fc.pending = 0
	fc.out = nil
	return fc
}

// abandon returns a slot reserved by acquire whose frame was not started.
func (s *scheduler) abandon(fc *frameContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc.inUse = false
	s.active--
}

// queueOutput adds an output entry for fc in submission order.
func (s *scheduler) queueOutput(fc *frameContext) {
	s.mu.Lock()
	fc.out = &output{seq: fc.seq}
	s.outputs = append(s.outputs, fc.out)
	s.mu.Unlock()
}

// start queues the init task of fc.
func (s *scheduler) start(fc *frameContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc.buildTasks()
	s.add(fc, taskInit)
	s.work.Broadcast()
}

// add queues task i of fc as outstanding work.
func (s *scheduler) add(fc *frameContext, i int32) {
	fc.pending++
	fc.tasks[i].deps = 0
	s.insert(fc, i)
}

// insert links task i into fc's queue in task order and moves the scan
// cursor back if fc is ahead of it.
func (s *scheduler) insert(fc *frameContext, i int32) {
	t := &fc.tasks[i]
	prev, cur := none, fc.head
	for cur != none && !t.before(&fc.tasks[cur]) {
		prev, cur = cur, fc.tasks[cur].next
	}
	t.next = cur
	t.queued = true
	if prev == none {
		fc.head = i
	} else {
		fc.tasks[prev].next = i
	}
	if off := s.offset(fc); off < s.cur {
		s.cur = off
	}
}

func (s *scheduler) unlink(fc *frameContext, prev, i int32) {
	t := &fc.tasks[i]
	if prev == none {
		fc.head = t.next
	} else {
		fc.tasks[prev].next = t.next
	}
	t.next = none
	t.queued = false
}

// takeNext removes and returns the first ready task, scanning frames oldest
// first. Init tasks of every frame are considered before decode tasks so
// that later frames are set up while earlier ones decode.
func (s *scheduler) takeNext() (*frameContext, int32) {
	for off := 0; off < s.active; off++ {
		fc := s.frameAt(off)
		i := fc.head
		if i != none && fc.tasks[i].kind <= kindInitCDF && s.ready(fc, &fc.tasks[i]) {
			s.unlink(fc, none, i)
			return fc, i
		}
	}
	for off := s.cur; off < s.active; off++ {
		fc := s.frameAt(off)
		if fc.head == none {
			if off == s.cur {
				s.cur++
			}
			continue
		}
		prev := none
		for i := fc.head; i != none; prev, i = i, fc.tasks[i].next {
			if s.ready(fc, &fc.tasks[i]) {
				s.unlink(fc, prev, i)
				return fc, i
			}
		}
	}
	return nil, none
}

// ready returns true if t can run now. Tasks of failed frames, and all
// tasks while flushing, are ready so that they drain as no-ops.
func (s *scheduler) ready(fc *frameContext, t *task) bool {
	if s.flushing.Load() || fc.failed() {
		return true
	}
	f := fc.f
	switch t.kind {
	case kindInit:
		return true
	case kindInitCDF:
		ok, failed := fc.in.Ready()
		if failed {
			fc.fail(errRefFailed)
		}
		return ok
	case kindTileEntropy:
		return fc.mvReady(t)
	case kindTileRecon:
		tile := &f.Tiles[t.tile]
		if tile.Progress[av1dec.ProgressEntropy].Load() <= t.sby {
			return false
		}
		return fc.pixelsReady(t, tile)
	case kindEntropyProgress:
		return fc.rowDone(t.sby, av1dec.ProgressEntropy)
	case kindDeblockCols:
		return fc.rowDone(t.sby, av1dec.ProgressRecon)
	case kindReconProgress:
		return fc.stage[av1dec.StageRestoration].Load() > t.sby
	}
	return fc.stage[t.kind.stage()-1].Load() > t.sby
}

// run is the worker loop. The lock is held except while a task executes.
func (s *scheduler) run(w *av1dec.Worker) {
	defer s.wg.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed {
		fc, i := s.takeNext()
		if fc == nil {
			if s.flushing.Load() && s.busy == 0 {
				s.quiet.Broadcast()
			}
			s.work.Wait()
			continue
		}
		s.busy++
		s.mu.Unlock()
		more := s.exec(w, fc, &fc.tasks[i])
		s.mu.Lock()
		s.busy--
		s.complete(fc, i, more)
	}
}

// exec runs one row of t and returns true if t continues with the next
// row.
func (s *scheduler) exec(w *av1dec.Worker, fc *frameContext, t *task) bool {
	if s.flushing.Load() || fc.failed() {
		s.cancel(fc, t)
		return false
	}
	f := fc.f
	sby := int(t.sby)
	last := sby+1 >= f.Hdr.SBRows()
	switch t.kind {
	case kindInit:
		fc.initTiles()
		return false
	case kindInitCDF:
		fc.initCDF()
		return false
	case kindTileEntropy, kindTileRecon:
		return s.execTile(w, fc, t)
	case kindEntropyProgress:
		fc.pic.mvRows.Store(fc.mvRowsAt(sby))
		return !last
	case kindReconProgress:
		_, y1 := recon.Window(f.Hdr, sby)
		fc.pic.pixels.Store(int32(y1))
		return !last
	}
	st := t.kind.stage()
	w.FilterRow(f, st, sby)
	fc.stage[st].Store(t.sby + 1)
	return !last
}

func (s *scheduler) execTile(w *av1dec.Worker, fc *frameContext, t *task) bool {
	f := fc.f
	tile := &f.Tiles[t.tile]
	pass, prog := av1dec.PassRecon, av1dec.ProgressRecon
	if t.kind == kindTileEntropy {
		pass, prog = av1dec.PassEntropy, av1dec.ProgressEntropy
	}
	w.Abort = fc.abort
	err := w.DecodeSBRow(f, tile, int(t.sby), pass)
	if err != nil {
		if !errors.Is(err, av1dec.ErrAborted) {
			fc.fail(fmt.Errorf("tile %d row %d %v: %w", t.tile, t.sby, t.kind, err))
			s.log.Warning("tile decode failed", "frame", fc.seq, "tile", t.tile, "row", t.sby, "task", t.kind.String(), "error", err.Error())
		}
		s.publish(fc, tile, prog, av1dec.TileError)
		return false
	}
	s.publish(fc, tile, prog, t.sby+1)
	if int(t.sby)+1 < tile.Geo.SBRowEnd {
		return true
	}
	hdr := f.Hdr
	if t.kind == kindTileEntropy && int(t.tile) == hdr.Tiling.ContextUpdateID && !hdr.DisableFrameEndUpdateCDF {
		fc.cdfOut.Update(tile.CDF)
	}
	return false
}

// cancel publishes the final progress of a task that will not run, so
// that tasks waiting on it drain.
func (s *scheduler) cancel(fc *frameContext, t *task) {
	switch {
	case t.kind == kindTileEntropy:
		s.publish(fc, &fc.f.Tiles[t.tile], av1dec.ProgressEntropy, av1dec.TileError)
	case t.kind == kindTileRecon:
		s.publish(fc, &fc.f.Tiles[t.tile], av1dec.ProgressRecon, av1dec.TileError)
	case t.kind == kindEntropyProgress:
		fc.pic.mvRows.Store(progressError)
	case t.kind == kindReconProgress:
		fc.pic.pixels.Store(progressError)
	case t.kind.isStage():
		fc.stage[t.kind.stage()].Store(av1dec.TileError)
	}
}

// publish stores progress v of pass for tile.
func (s *scheduler) publish(fc *frameContext, tile *av1dec.TileState, pass int, v int32) {
	tile.Progress[pass].Store(v)
	if s.onProgress != nil {
		s.onProgress(fc.seq, tile.Index, pass, v)
	}
}

// complete accounts for a finished task: it re-queues a continuing task,
// queues the tasks an init task unlocks, and exits the frame with its last
// task. Progress was published by exec, so waiters are woken after.
func (s *scheduler) complete(fc *frameContext, i int32, more bool) {
	t := &fc.tasks[i]
	live := !s.flushing.Load() && !fc.failed()
	switch {
	case more:
		t.sby++
		t.deps = 0
		s.insert(fc, i)
	case t.kind == kindInit && live:
		s.add(fc, taskInitCDF)
	case t.kind == kindInitCDF && live:
		for j := taskInitCDF + 1; j < int32(len(fc.tasks)); j++ {
			s.add(fc, j)
		}
	}
	if !more {
		fc.pending--
		if fc.pending == 0 {
			s.exit(fc)
		}
	}
	s.work.Broadcast()
	if s.busy == 0 && s.flushing.Load() {
		s.quiet.Broadcast()
	}
}

// exit tears down fc once all its tasks are done, completes its output and
// retires finished frames in submission order. s.mu must be held.
func (s *scheduler) exit(fc *frameContext) {
	cancelled := s.flushing.Load()
	err := fc.finish(cancelled)
	switch {
	case cancelled:
		s.log.Debug("frame cancelled", "frame", fc.seq)
	case err != nil:
		s.log.Warning("frame failed", "frame", fc.seq, "error", err.Error())
	default:
		s.log.Debug("frame decoded", "frame", fc.seq)
	}
	if o := fc.out; o != nil {
		o.done = true
		switch {
		case cancelled:
			o.cancelled = true
		case err != nil:
			o.err = fmt.Errorf("frame %d: %w: %w", fc.seq, ErrInvalidData, err)
		default:
			o.pic = fc.f.Out
		}
		fc.out = nil
	}
	fc.inUse = false
	for s.active > 0 && !s.frames[s.first].inUse {
		s.first = (s.first + 1) % len(s.frames)
		s.active--
		if s.cur > 0 {
			s.cur--
		}
	}
	s.quiet.Broadcast()
	s.work.Broadcast()
}

// next removes and returns the first completed output, skipping cancelled
// ones. It returns nil if the first output is not complete or none are
// pending. s.mu must be held.
func (s *scheduler) next() *output {
	for len(s.outputs) > 0 && s.outputs[0].done {
		o := s.outputs[0]
		s.outputs[0] = nil
		s.outputs = s.outputs[1:]
		if !o.cancelled {
			return o
		}
	}
	return nil
}

// flush cancels all frames in flight and waits for the workers to idle.
func (s *scheduler) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushing.Store(true)
	s.work.Broadcast()
	for s.active > 0 || s.busy > 0 {
		s.quiet.Wait()
	}
	s.outputs = nil
	s.cur = 0
	s.flushing.Store(false)
}

// close stops the workers. Frames must have been flushed.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.work.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// queued returns the number of queued tasks across the pool.
func (s *scheduler) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, fc := range s.frames {
		for i := fc.head; i != none; i = fc.tasks[i].next {
			n++
		}
	}
	return n
}
