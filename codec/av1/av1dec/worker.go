/*
DESCRIPTION
  worker.go provides the per goroutine decode context and the superblock
  row entry point used for entropy decode, reconstruction and post-filter
  work.

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

// Worker is the decode context of one goroutine. It is reused across tasks
// and frames; the left context window covers one superblock row of one
// tile.
type Worker struct {
	F *Frame
	T *TileState

	pass Pass
	sby  int

	left     [32]nbr
	leftCoef [3][32]coefCtx // Per plane, in plane 4x4 units.
	b        Block          // Block of single pass decoding.
	stack    mvStack

	haveTop, haveLeft bool
	a, l              *nbr // First above and left context of the current block.

	depth    int
	MaxDepth int // Deepest partition recursion seen.

	// Abort, if set, is polled between superblocks; decoding stops with
	// ErrAborted when it returns true.
	Abort func() bool

	// Scratch is owned by the kernels.
	Scratch any
}

// SBRow returns the superblock row being processed.
func (w *Worker) SBRow() int { return w.sby }

// DecodeSBRow runs pass over superblock row sby of tile t of f.
func (w *Worker) DecodeSBRow(f *Frame, t *TileState, sby int, pass Pass) error {
	w.F, w.T, w.sby, w.pass = f, t, sby, pass
	sb := f.Hdr.SBLog2()
	y4 := sby << uint(sb)

	if pass == PassRecon {
		for _, pos := range t.Order[sby-t.Geo.SBRowStart] {
			if w.Abort != nil && w.Abort() {
				return ErrAborted
			}
			if err := w.reconstruct(&f.Blocks[pos]); err != nil {
				return err
			}
		}
		f.Kern.BackupEdge(f, t, sby)
		return nil
	}

	for i := range w.left {
		w.left[i].reset()
	}
	w.leftCoef = [3][32]coefCtx{}
	for x4 := t.Geo.Col4Start; x4 < t.Geo.Col4End; x4 += 1 << uint(sb) {
		if w.Abort != nil && w.Abort() {
			return ErrAborted
		}
		t.readDeltas = f.Hdr.Quant.DeltaQPresent
		w.readLR(x4, y4)
		if err := w.decodePartition(x4, y4, sb); err != nil {
			return err
		}
		if t.Reader.Overread() {
			return ErrOverread
		}
	}
	if pass == PassSingle {
		f.Kern.BackupEdge(f, t, sby)
	}
	return nil
}

// FilterRow applies post-filter stage s to superblock row sby of f.
func (w *Worker) FilterRow(f *Frame, s Stage, sby int) {
	w.F, w.T, w.sby = f, nil, sby
	f.Kern.FilterRow(w, f, s, sby)
}
