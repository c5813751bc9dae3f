/*
DESCRIPTION
  header_test.go provides testing for frame header geometry and validation.

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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func keyFrame() *Frame {
	f := &Frame{
		FrameType:       KeyFrame,
		ShowFrame:       true,
		Width:           200,
		Height:          136,
		BitDepth:        8,
		PrimaryRefFrame: PrimaryRefNone,
		Quant:           Quant{BaseQIdx: 100},
	}
	f.Tiling = UniformTiling(f.SBCols(), f.SBRows(), 2, 2)
	return f
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(f *Frame)
		valid bool
	}{
		{name: "key", mod: func(f *Frame) {}, valid: true},
		{name: "zero width", mod: func(f *Frame) { f.Width = 0 }},
		{name: "bit depth", mod: func(f *Frame) { f.BitDepth = 9 }},
		{name: "tiles short", mod: func(f *Frame) { f.Tiling.ColStart = f.Tiling.ColStart[:2] }},
		{name: "tiles span", mod: func(f *Frame) { f.Tiling.RowStart[2] = 7 }},
		{name: "empty tile", mod: func(f *Frame) { f.Tiling.ColStart = []int{0, 0, 4}; f.Tiling.ColStart[2] = f.SBCols() }},
		{name: "update tile", mod: func(f *Frame) { f.Tiling.ContextUpdateID = 4 }},
		{name: "key primary", mod: func(f *Frame) { f.PrimaryRefFrame = 0 }},
		{name: "inter slot", mod: func(f *Frame) {
			f.FrameType = InterFrame
			f.RefFrameIdx[3] = 8
		}},
		{name: "inter", mod: func(f *Frame) { f.FrameType = InterFrame }, valid: true},
		{name: "intrabc filters", mod: func(f *Frame) {
			f.AllowScreenContentTools = true
			f.AllowIntrabc = true
			f.LoopFilter.Level[0] = 10
		}},
		{name: "intrabc", mod: func(f *Frame) {
			f.AllowScreenContentTools = true
			f.AllowIntrabc = true
		}, valid: true},
		{name: "superres inter", mod: func(f *Frame) {
			f.FrameType = InterFrame
			f.SuperRes = SuperRes{Enabled: true, UpscaledWidth: 300}
		}},
		{name: "superres", mod: func(f *Frame) { f.SuperRes = SuperRes{Enabled: true, UpscaledWidth: 300} }, valid: true},
		{name: "skip mode refs", mod: func(f *Frame) {
			f.FrameType = InterFrame
			f.ReferenceSelect = true
			f.SkipModePresent = true
			f.SkipModeFrames = [2]int{Golden, Last}
		}},
		{name: "skip mode", mod: func(f *Frame) {
			f.FrameType = InterFrame
			f.ReferenceSelect = true
			f.SkipModePresent = true
			f.SkipModeFrames = [2]int{Last, AltRef}
		}, valid: true},
		{name: "temporal seg", mod: func(f *Frame) {
			f.Segmentation.Enabled = true
			f.Segmentation.UpdateMap = true
			f.Segmentation.TemporalUpdate = true
		}},
		{name: "restoration unit", mod: func(f *Frame) {
			f.Restoration.Type[0] = RestoreWiener
			f.Restoration.UnitSize[0] = 96
		}},
		{name: "delta lf", mod: func(f *Frame) { f.Quant.DeltaLFPresent = true }},
	}

	for _, test := range tests {
		f := keyFrame()
		test.mod(f)
		err := f.Validate()
		if test.valid && err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
		}
		if !test.valid && errors.Cause(err) != ErrInvalid {
			t.Errorf("%s: did not get expected error, got: %v", test.name, err)
		}
	}
}

func TestTile(t *testing.T) {
	f := keyFrame()
	tests := []struct {
		idx  int
		want Tile
	}{
		{
			idx: 0,
			want: Tile{
				Col4Start: 0, Col4End: 32,
				Row4Start: 0, Row4End: 16,
				SBRowStart: 0, SBRowEnd: 1,
			},
		},
		{
			idx: 3,
			want: Tile{
				Col: 1, Row: 1,
				Col4Start: 32, Col4End: 50,
				Row4Start: 16, Row4End: 34,
				SBRowStart: 1, SBRowEnd: 3,
			},
		},
	}
	for i, test := range tests {
		got := f.Tile(test.idx)
		if !cmp.Equal(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %+v\nWant: %+v", i, got, test.want)
		}
	}
	if got := f.TileRowOf(2); got != 1 {
		t.Errorf("did not get expected tile row\nGot: %v\nWant: %v", got, 1)
	}
}
