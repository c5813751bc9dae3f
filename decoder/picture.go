/*
DESCRIPTION
  picture.go provides the reference counted handle of a decoded frame held
  by the reference slots and by the frames that read it.

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
	"sync/atomic"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
)

// progressError is the published progress of a frame that failed or was
// cancelled. It compares as complete so that waiters wake and observe it.
const progressError = av1dec.TileError

// picture is a decoded or decoding frame as seen by the frames that
// reference it. Progress is published while the frame decodes.
type picture struct {
	ref av1dec.RefFrame
	cdf *cdf.Shared // Final entropy contexts.

	pixels atomic.Int32 // Luma rows that are final, or progressError.
	mvRows atomic.Int32 // 4x4 rows whose motion and segment ids are final, or progressError.

	refs atomic.Int32
}

func newPicture(ref *av1dec.RefFrame, c *cdf.Shared) *picture {
	p := &picture{ref: *ref, cdf: c}
	p.refs.Store(1)
	return p
}

// Ref adds a holder of p and returns p.
func (p *picture) Ref() *picture {
	p.refs.Add(1)
	return p
}

// Unref drops a holder of p, releasing its entropy contexts with the last.
func (p *picture) Unref() {
	if p.refs.Add(-1) != 0 {
		return
	}
	p.cdf.Unref()
	p.cdf = nil
	p.ref = av1dec.RefFrame{}
}

// failed returns true if the frame of p was not fully decoded.
func (p *picture) failed() bool {
	return p.pixels.Load() == progressError || p.mvRows.Load() == progressError
}

// chromaRows returns the chroma rows final when luma rows are final with
// vertical subsampling sy.
func chromaRows(luma int32, sy int) int32 {
	if luma == progressError {
		return luma
	}
	return (luma + int32(sy)) >> uint(sy)
}
