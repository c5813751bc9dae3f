/*
DESCRIPTION
  validate.go provides checking of frame header values before decode.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package header

import "github.com/pkg/errors"

// ErrInvalid is the cause of all validation errors.
var ErrInvalid = errors.New("invalid frame header")

// MaxDimension is the largest supported frame width or height.
const MaxDimension = 16384

// Validate checks that the values of f are consistent. Errors returned have
// ErrInvalid as their cause.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return errors.Wrapf(ErrInvalid, "bad dimensions %dx%d", f.Width, f.Height)
	}
	switch f.BitDepth {
	case 8, 10, 12:
	default:
		return errors.Wrapf(ErrInvalid, "bad bit depth %d", f.BitDepth)
	}
	if f.Layout < I420 || f.Layout > I444 {
		return errors.Wrapf(ErrInvalid, "bad layout %d", f.Layout)
	}
	if f.FrameType < KeyFrame || f.FrameType > SwitchFrame {
		return errors.Wrapf(ErrInvalid, "bad frame type %d", f.FrameType)
	}

	err := f.validateTiling()
	if err != nil {
		return err
	}

	if f.PrimaryRefFrame < 0 || f.PrimaryRefFrame > PrimaryRefNone {
		return errors.Wrapf(ErrInvalid, "bad primary reference %d", f.PrimaryRefFrame)
	}
	if f.FrameType == KeyFrame && f.PrimaryRefFrame != PrimaryRefNone {
		return errors.Wrap(ErrInvalid, "key frame with primary reference")
	}
	if !f.IsIntra() {
		for i, s := range f.RefFrameIdx {
			if s < 0 || s >= NumRefSlots {
				return errors.Wrapf(ErrInvalid, "bad slot %d for reference %d", s, i+Last)
			}
		}
	}

	q := &f.Quant
	if q.BaseQIdx < 0 || q.BaseQIdx > 255 || q.DeltaQRes < 0 || q.DeltaQRes > 3 || q.DeltaLFRes < 0 || q.DeltaLFRes > 3 {
		return errors.Wrap(ErrInvalid, "bad quantiser parameters")
	}
	if q.DeltaLFPresent && !q.DeltaQPresent {
		return errors.Wrap(ErrInvalid, "delta lf without delta q")
	}

	err = f.validateSegmentation()
	if err != nil {
		return err
	}

	if f.CDEF.Bits < 0 || f.CDEF.Bits > 3 {
		return errors.Wrapf(ErrInvalid, "bad cdef bits %d", f.CDEF.Bits)
	}
	for i := range f.CDEF.YStrength {
		if f.CDEF.YStrength[i] < 0 || f.CDEF.YStrength[i] > 63 || f.CDEF.UVStrength[i] < 0 || f.CDEF.UVStrength[i] > 63 {
			return errors.Wrap(ErrInvalid, "bad cdef strength")
		}
	}
	for i, l := range f.LoopFilter.Level {
		if l < 0 || l > 63 {
			return errors.Wrapf(ErrInvalid, "bad loop filter level %d for %d", l, i)
		}
	}
	for p := 0; p < 3; p++ {
		typ, sz := f.Restoration.Type[p], f.Restoration.UnitSize[p]
		if typ < RestoreNone || typ > RestoreSwitchable {
			return errors.Wrapf(ErrInvalid, "bad restoration type %d", typ)
		}
		if typ != RestoreNone && (sz < 32 || sz > 256 || sz&(sz-1) != 0) {
			return errors.Wrapf(ErrInvalid, "bad restoration unit size %d", sz)
		}
	}

	if f.SuperRes.Enabled {
		if !f.IsIntra() {
			return errors.Wrap(ErrInvalid, "super-resolution on inter frame")
		}
		if f.SuperRes.UpscaledWidth < f.Width || f.SuperRes.UpscaledWidth > 2*f.Width || f.SuperRes.UpscaledWidth > MaxDimension {
			return errors.Wrapf(ErrInvalid, "bad upscaled width %d", f.SuperRes.UpscaledWidth)
		}
	}

	if f.AllowIntrabc {
		if !f.IsIntra() || !f.AllowScreenContentTools {
			return errors.Wrap(ErrInvalid, "intrabc requires intra frame with screen content tools")
		}
		if f.LoopFilter.Enabled() || f.CDEF.Enabled() || f.Restoration.Enabled() || f.SuperRes.Enabled {
			return errors.Wrap(ErrInvalid, "intrabc with in-loop filtering")
		}
	}

	if f.SkipModePresent {
		if f.IsIntra() || !f.ReferenceSelect {
			return errors.Wrap(ErrInvalid, "skip mode without compound references")
		}
		a, b := f.SkipModeFrames[0], f.SkipModeFrames[1]
		if a < Last || a > AltRef || b < Last || b > AltRef || a >= b {
			return errors.Wrapf(ErrInvalid, "bad skip mode references %d, %d", a, b)
		}
	}
	if f.InterpFilter < EightTap || f.InterpFilter > Switchable {
		return errors.Wrapf(ErrInvalid, "bad interpolation filter %d", f.InterpFilter)
	}
	if f.TxMode < Only4x4 || f.TxMode > Select {
		return errors.Wrapf(ErrInvalid, "bad tx mode %d", f.TxMode)
	}
	return nil
}

func (f *Frame) validateTiling() error {
	t := &f.Tiling
	if t.Cols < 1 || t.Rows < 1 || t.Cols*t.Rows > MaxTiles {
		return errors.Wrapf(ErrInvalid, "bad tile grid %dx%d", t.Cols, t.Rows)
	}
	if len(t.ColStart) != t.Cols+1 || len(t.RowStart) != t.Rows+1 {
		return errors.Wrap(ErrInvalid, "tile boundaries do not match grid")
	}
	if t.ColStart[0] != 0 || t.ColStart[t.Cols] != f.SBCols() {
		return errors.Wrap(ErrInvalid, "tile columns do not span frame")
	}
	if t.RowStart[0] != 0 || t.RowStart[t.Rows] != f.SBRows() {
		return errors.Wrap(ErrInvalid, "tile rows do not span frame")
	}
	for i := 0; i < t.Cols; i++ {
		if t.ColStart[i+1] <= t.ColStart[i] {
			return errors.Wrapf(ErrInvalid, "empty tile column %d", i)
		}
	}
	for i := 0; i < t.Rows; i++ {
		if t.RowStart[i+1] <= t.RowStart[i] {
			return errors.Wrapf(ErrInvalid, "empty tile row %d", i)
		}
	}
	if t.ContextUpdateID < 0 || t.ContextUpdateID >= t.Cols*t.Rows {
		return errors.Wrapf(ErrInvalid, "bad context update tile %d", t.ContextUpdateID)
	}
	return nil
}

func (f *Frame) validateSegmentation() error {
	s := &f.Segmentation
	if !s.Enabled {
		return nil
	}
	if s.TemporalUpdate && (!s.UpdateMap || f.PrimaryRefFrame == PrimaryRefNone) {
		return errors.Wrap(ErrInvalid, "temporal segmentation update without map update and primary reference")
	}
	if !s.UpdateMap && f.IsIntra() {
		return errors.Wrap(ErrInvalid, "segmentation map not updated on intra frame")
	}
	for i := 0; i < MaxSegments; i++ {
		d := s.FeatureData[i]
		switch {
		case d[FeatureAltQ] < -255 || d[FeatureAltQ] > 255:
			return errors.Wrapf(ErrInvalid, "bad segment %d quantiser delta", i)
		case s.FeatureEnabled[i][FeatureRefFrame] && (d[FeatureRefFrame] < Intra || d[FeatureRefFrame] > AltRef):
			return errors.Wrapf(ErrInvalid, "bad segment %d reference", i)
		case s.FeatureEnabled[i][FeatureRefFrame] && d[FeatureRefFrame] != Intra && f.IsIntra():
			return errors.Wrapf(ErrInvalid, "segment %d references inter frame on intra frame", i)
		}
		for j := FeatureAltLFYV; j <= FeatureAltLFV; j++ {
			if d[j] < -63 || d[j] > 63 {
				return errors.Wrapf(ErrInvalid, "bad segment %d loop filter delta", i)
			}
		}
	}
	return nil
}
