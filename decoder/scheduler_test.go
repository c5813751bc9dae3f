/*
DESCRIPTION
  scheduler_test.go provides testing of task queue ordering and the
  dependency checks of the scheduler.

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
	"math/rand"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
)

// testFrame returns a scheduler without workers whose first slot holds an
// inter frame of 256x256 in 2x2 tiles.
func testFrame(t *testing.T) (*scheduler, *frameContext) {
	s := newScheduler((*logging.TestLogger)(t), 2, 0)
	hdr := &header.Frame{
		FrameType:       header.InterFrame,
		ShowFrame:       true,
		Width:           256,
		Height:          256,
		BitDepth:        8,
		Layout:          header.I420,
		PrimaryRefFrame: header.PrimaryRefNone,
		TxMode:          header.Select,
	}
	hdr.Quant.BaseQIdx = 100
	hdr.Tiling = header.UniformTiling(hdr.SBCols(), hdr.SBRows(), 2, 2)

	fc := s.frames[0]
	fc.f.Reset(hdr, true)
	fc.f.Alloc()
	fc.tiles = make([][]byte, hdr.Tiles())
	fc.initTiles()
	fc.buildTasks()
	s.active = 1
	fc.inUse = true
	return s, fc
}

func TestTaskOrder(t *testing.T) {
	tests := []struct {
		a, b task
		want bool
	}{
		{task{kind: kindInit}, task{kind: kindInitCDF}, true},
		{task{kind: kindInitCDF, sby: 3}, task{kind: kindTileEntropy}, true},
		{task{kind: kindTileEntropy, sby: 5}, task{kind: kindTileRecon}, true},
		{task{kind: kindEntropyProgress, sby: 5}, task{kind: kindTileRecon}, true},
		{task{kind: kindTileEntropy, sby: 1}, task{kind: kindTileEntropy, sby: 1, tile: 1}, true},
		{task{kind: kindDeblockCols}, task{kind: kindTileRecon, sby: 1}, true},
		{task{kind: kindReconProgress}, task{kind: kindTileRecon, sby: 1}, true},
		{task{kind: kindTileRecon, sby: 1}, task{kind: kindDeblockCols}, false},
		{task{kind: kindTileRecon, sby: 2, tile: 3}, task{kind: kindCDEF, sby: 2}, true},
		{task{kind: kindTileRecon, sby: 2}, task{kind: kindTileRecon, sby: 2, tile: 1}, true},
		{task{kind: kindTileRecon, sby: 2}, task{kind: kindTileRecon, sby: 2}, false},
	}
	for i, test := range tests {
		got := test.a.before(&test.b)
		require.Equal(t, test.want, got, "test %d", i)
		if test.want {
			require.False(t, test.b.before(&test.a), "test %d reversed", i)
		}
	}
}

func TestQueueOrder(t *testing.T) {
	s, fc := testFrame(t)
	n := len(fc.tasks)
	// 2 fixed, 4 entropy, 4 recon, entropy progress, 5 stages, recon progress.
	require.Equal(t, 2+4+4+1+int(av1dec.NumStages)+1, n)

	rnd := rand.New(rand.NewSource(1))
	for _, i := range rnd.Perm(n) {
		s.add(fc, int32(i))
	}
	require.Equal(t, n, fc.pending)

	seen := make(map[int32]bool)
	var prev *task
	for i := fc.head; i != none; i = fc.tasks[i].next {
		require.False(t, seen[i], "task %d queued twice", i)
		seen[i] = true
		cur := &fc.tasks[i]
		if prev != nil {
			require.True(t, prev.before(cur), "%v row %d tile %d queued before %v row %d tile %d", prev.kind, prev.sby, prev.tile, cur.kind, cur.sby, cur.tile)
		}
		prev = cur
	}
	require.Len(t, seen, n)
	require.Equal(t, n, s.queued())

	// While flushing every task is ready, so tasks come off in queue order.
	s.flushing.Store(true)
	prev = nil
	for k := 0; k < n; k++ {
		got, i := s.takeNext()
		require.Equal(t, fc, got)
		cur := &fc.tasks[i]
		require.False(t, cur.queued)
		if prev != nil {
			require.True(t, prev.before(cur))
		}
		prev = cur
	}
	got, _ := s.takeNext()
	require.Nil(t, got)
	require.Equal(t, 0, s.queued())
}

func TestInsertResetsCursor(t *testing.T) {
	s, fc := testFrame(t)
	s.flushing.Store(true)
	got, _ := s.takeNext()
	require.Nil(t, got)
	require.Equal(t, 1, s.cur, "cursor should pass a frame with no tasks")

	s.add(fc, taskInit)
	require.Equal(t, 0, s.cur)
	got, i := s.takeNext()
	require.Equal(t, fc, got)
	require.Equal(t, taskInit, i)
}

// TestReconWaitsForReference checks that reconstruction of a row is not
// ready until the rows it reads from its references are final, and that a
// re-check resumes from the first reference not yet ready.
func TestReconWaitsForReference(t *testing.T) {
	s, fc := testFrame(t)
	tile := &fc.f.Tiles[3]
	require.Equal(t, 2, tile.Geo.SBRowStart)

	last, gold := &picture{}, &picture{}
	fc.refs[0] = last
	fc.refs[header.Golden-header.Last] = gold
	tile.Lowest[0][0] = [2]int32{79, 39}
	tile.Lowest[0][header.Golden-header.Last] = [2]int32{140, 71}
	last.pixels.Store(64)
	gold.pixels.Store(128)

	tk := &task{kind: kindTileRecon, sby: 2, tile: 3}
	tile.Progress[av1dec.ProgressEntropy].Store(2)
	require.False(t, s.ready(fc, tk), "entropy decode of the row is not done")

	tile.Progress[av1dec.ProgressEntropy].Store(3)
	require.False(t, s.ready(fc, tk), "row 79 of the last frame is not final")
	require.Equal(t, int32(0), tk.deps)

	last.pixels.Store(80)
	require.False(t, s.ready(fc, tk), "row 140 of the golden frame is not final")
	require.Equal(t, int32(header.Golden-header.Last), tk.deps)

	gold.pixels.Store(141)
	require.False(t, s.ready(fc, tk), "chroma row 71 of the golden frame is not final")
	gold.pixels.Store(143)
	require.True(t, s.ready(fc, tk))

	tk2 := &task{kind: kindTileRecon, sby: 2, tile: 3}
	gold.pixels.Store(progressError)
	require.True(t, s.ready(fc, tk2), "a failed reference releases the task")
	require.ErrorIs(t, fc.error(), errRefFailed)
}

func TestEntropyWaitsForMotion(t *testing.T) {
	s, fc := testFrame(t)
	last := &picture{}
	last.ref.H4 = 64
	fc.refs[0] = last
	fc.mvDeps = []*picture{last}

	tk := &task{kind: kindTileEntropy, sby: 0, tile: 0}
	last.mvRows.Store(15)
	require.False(t, s.ready(fc, tk))
	last.mvRows.Store(16)
	require.True(t, s.ready(fc, tk))

	tk = &task{kind: kindTileEntropy, sby: 3, tile: 2}
	last.mvRows.Store(63)
	require.False(t, s.ready(fc, tk))
	last.mvRows.Store(64)
	require.True(t, s.ready(fc, tk))
}

func TestStageDependencies(t *testing.T) {
	s, fc := testFrame(t)
	tiles := fc.f.Tiles

	cols := &task{kind: kindDeblockCols, sby: 0}
	tiles[0].Progress[av1dec.ProgressRecon].Store(1)
	require.False(t, s.ready(fc, cols), "tile 1 of the tile row is not reconstructed")
	tiles[1].Progress[av1dec.ProgressRecon].Store(1)
	require.True(t, s.ready(fc, cols))

	rows := &task{kind: kindDeblockRows, sby: 0}
	require.False(t, s.ready(fc, rows))
	fc.stage[av1dec.StageDeblockCols].Store(1)
	require.True(t, s.ready(fc, rows))

	prog := &task{kind: kindReconProgress, sby: 0}
	require.False(t, s.ready(fc, prog))
	fc.stage[av1dec.StageRestoration].Store(1)
	require.True(t, s.ready(fc, prog))

	ep := &task{kind: kindEntropyProgress, sby: 2}
	tiles[2].Progress[av1dec.ProgressEntropy].Store(3)
	require.False(t, s.ready(fc, ep))
	tiles[3].Progress[av1dec.ProgressEntropy].Store(av1dec.TileError)
	require.True(t, s.ready(fc, ep))
}
