/*
DESCRIPTION
  task.go provides the task kinds run by the decode scheduler and their
  queue ordering.

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

import "github.com/ausocean/av1/codec/av1/av1dec"

// kind is the work done by a task. Kinds are declared in queue order.
type kind uint8

const (
	kindInit kind = iota
	kindInitCDF
	kindTileEntropy
	kindEntropyProgress
	kindTileRecon
	kindDeblockCols
	kindDeblockRows
	kindCDEF
	kindSuperRes
	kindRestoration
	kindReconProgress
	numKinds
)

var kindNames = [numKinds]string{
	kindInit:            "init",
	kindInitCDF:         "init-cdf",
	kindTileEntropy:     "tile-entropy",
	kindEntropyProgress: "entropy-progress",
	kindTileRecon:       "tile-recon",
	kindDeblockCols:     "deblock-cols",
	kindDeblockRows:     "deblock-rows",
	kindCDEF:            "cdef",
	kindSuperRes:        "super-res",
	kindRestoration:     "restoration",
	kindReconProgress:   "recon-progress",
}

func (k kind) String() string { return kindNames[k] }

// isStage returns true for the post-filter kinds.
func (k kind) isStage() bool { return k >= kindDeblockCols && k <= kindRestoration }

// stage returns the post-filter stage of a stage kind.
func (k kind) stage() av1dec.Stage { return av1dec.Stage(k - kindDeblockCols) }

// none terminates a task list.
const none int32 = -1

// task is one unit of scheduled work. Tasks live in the fixed task array
// of their frame and are linked by index. A task that runs over several
// superblock rows is re-queued with sby advanced after each row.
type task struct {
	kind kind
	sby  int32
	tile int32

	// deps counts the references already found ready for sby, so that a
	// re-check resumes where the last one stopped.
	deps int32

	next   int32
	queued bool
}

// before returns true if t is ordered ahead of o in a frame's queue. Setup
// and entropy tasks order by kind ahead of everything else. Reconstruction
// and filter tasks order by superblock row first, so that the rows other
// frames reference are finished as early as possible.
func (t *task) before(o *task) bool {
	tp, op := t.kind >= kindTileRecon, o.kind >= kindTileRecon
	if tp != op {
		return op
	}
	if !tp && t.kind != o.kind {
		return t.kind < o.kind
	}
	if t.sby != o.sby {
		return t.sby < o.sby
	}
	if t.kind != o.kind {
		return t.kind < o.kind
	}
	return t.tile < o.tile
}
