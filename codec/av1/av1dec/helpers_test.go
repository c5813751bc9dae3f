/*
DESCRIPTION
  helpers_test.go provides testing for the arithmetic helpers used while
  reading block syntax, for picture comparison and output, and for frame
  buffer reuse.

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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/av1/codec/av1/header"
)

func TestNegDeinterleave(t *testing.T) {
	tests := []struct {
		diff, ref, max int
		want           int
	}{
		{diff: 3, ref: 0, max: 8, want: 3},
		{diff: 2, ref: 7, max: 8, want: 5},
		{diff: 0, ref: 2, max: 8, want: 2},
		{diff: 1, ref: 2, max: 8, want: 3},
		{diff: 2, ref: 2, max: 8, want: 1},
		{diff: 4, ref: 2, max: 8, want: 0},
		{diff: 5, ref: 2, max: 8, want: 5},
		{diff: 0, ref: 5, max: 8, want: 5},
		{diff: 3, ref: 5, max: 8, want: 7},
		{diff: 4, ref: 5, max: 8, want: 3},
		{diff: 5, ref: 5, max: 8, want: 2},
		{diff: 7, ref: 5, max: 8, want: 0},
	}
	for i, test := range tests {
		got := negDeinterleave(test.diff, test.ref, test.max)
		if got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

// TestNegDeinterleavePermutes checks that every prediction maps the coded
// differences onto each segment ID exactly once.
func TestNegDeinterleavePermutes(t *testing.T) {
	for max := 1; max <= 8; max++ {
		for ref := 0; ref < max; ref++ {
			seen := make([]bool, max)
			for diff := 0; diff < max; diff++ {
				v := negDeinterleave(diff, ref, max)
				if v < 0 || v >= max || seen[v] {
					t.Fatalf("bad mapping for max %d ref %d diff %d: %d", max, ref, diff, v)
				}
				seen[v] = true
			}
		}
	}
}

func TestMergeColors(t *testing.T) {
	tests := []struct {
		a, b []uint16
		want []uint16
	}{
		{a: []uint16{1, 4, 4}, b: []uint16{2, 4, 9}, want: []uint16{1, 2, 4, 4, 4, 9}},
		{a: nil, b: []uint16{3, 5}, want: []uint16{3, 5}},
		{a: []uint16{7, 8}, b: nil, want: []uint16{7, 8}},
		{a: []uint16{10}, b: []uint16{1, 2, 3}, want: []uint16{1, 2, 3, 10}},
	}
	for i, test := range tests {
		got := make([]uint16, len(test.a)+len(test.b))
		mergeColors(got, test.a, test.b)
		if !cmp.Equal(got, test.want) {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestCeilLog2(t *testing.T) {
	tests := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 256: 8, 257: 9}
	for x, want := range tests {
		if got := ceilLog2(x); got != want {
			t.Errorf("did not get expected result for %d.\nGot: %v\nWant: %v", x, got, want)
		}
	}
}

func TestInverseRecenter(t *testing.T) {
	var got []int
	for v := 0; v <= 8; v++ {
		got = append(got, inverseRecenter(3, v))
	}
	want := []int{3, 2, 4, 1, 5, 0, 6, 7, 8}
	if !cmp.Equal(got, want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v", got, want)
	}
}

func TestSquares(t *testing.T) {
	type pos struct{ x, y int }
	tests := []struct {
		x4, y4, w4, h4, tx, pw, ph int
		want                       []pos
	}{
		{0, 0, 5, 3, TX8x8, 4, 8, []pos{{0, 0}, {2, 0}, {0, 2}, {2, 2}}},
		{4, 4, 4, 4, TX16x16, 16, 16, []pos{{4, 4}}},
		{4, 4, 4, 4, TX4x4, 6, 5, []pos{{4, 4}, {5, 4}}},
		{8, 0, 2, 2, TX4x4, 8, 8, nil},
	}
	for i, test := range tests {
		var got []pos
		squares(test.x4, test.y4, test.w4, test.h4, test.tx, test.pw, test.ph, func(x, y int) {
			got = append(got, pos{x, y})
		})
		if !cmp.Equal(got, test.want, cmp.AllowUnexported(pos{})) {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestLowestRow(t *testing.T) {
	tests := []struct {
		y, h int
		mv   int32
		ss   uint
		ph   int
		want int
	}{
		{y: 16, h: 8, mv: -40, ss: 0, ph: 64, want: 19},
		{y: 0, h: 8, mv: -1000, ss: 0, ph: 64, want: 0},
		{y: 56, h: 8, mv: 80, ss: 0, ph: 64, want: 63},
		{y: 8, h: 4, mv: 24, ss: 1, ph: 32, want: 13},
		{y: 8, h: 4, mv: 7, ss: 0, ph: 32, want: 12},
	}
	for i, test := range tests {
		got := LowestRow(test.y, test.h, test.mv, test.ss, test.ph)
		if got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestHasChroma(t *testing.T) {
	tests := []struct {
		x4, y4 int
		bs     BlockSize
		l      header.Layout
		want   bool
	}{
		{0, 0, BS4x4, header.I420, false},
		{1, 0, BS4x4, header.I420, false},
		{1, 1, BS4x4, header.I420, true},
		{0, 0, BS8x8, header.I420, true},
		{1, 0, BS4x8, header.I420, true},
		{0, 0, BS4x8, header.I420, false},
		{1, 0, BS4x4, header.I422, true},
		{0, 1, BS4x4, header.I422, false},
		{0, 0, BS4x4, header.I444, true},
	}
	for i, test := range tests {
		got := hasChroma(test.x4, test.y4, test.bs, test.l)
		if got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestBlockSizes(t *testing.T) {
	tests := []struct {
		w, h int
		want BlockSize
	}{
		{2, 2, BS16x16},
		{4, 3, BS64x32},
		{0, 2, BS4x16},
		{5, 5, BS128x128},
		{5, 3, BSInvalid},
	}
	for i, test := range tests {
		got := blockSizeOf(test.w, test.h)
		if got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
		if got != BSInvalid && (got.W4() != 1<<test.w || got.H4() != 1<<test.h) {
			t.Errorf("size %d has dimensions %dx%d", got, got.W4(), got.H4())
		}
	}
}

func TestModeAngle(t *testing.T) {
	tests := []struct {
		mode, delta, want int
	}{
		{VPred, 0, 90},
		{D45Pred, 3, 54},
		{HPred, -2, 174},
		{D203Pred, -3, 194},
	}
	for i, test := range tests {
		if !IsDirectional(test.mode) {
			t.Errorf("mode %d of test %d not directional", test.mode, i)
		}
		got := ModeAngle(test.mode, test.delta)
		if got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
	for _, m := range []int{DCPred, SmoothPred, PaethPred, CFLPred} {
		if IsDirectional(m) {
			t.Errorf("mode %d unexpectedly directional", m)
		}
	}
}

func TestPicture(t *testing.T) {
	tests := []struct {
		bd     int
		layout header.Layout
		want   int
	}{
		{8, header.I420, 10*6 + 2*5*3},
		{10, header.I420, 2 * (10*6 + 2*5*3)},
		{8, header.I422, 10*6 + 2*5*6},
		{8, header.I444, 3 * 10 * 6},
	}
	for i, test := range tests {
		a := NewPicture(10, 6, test.bd, test.layout, 8)
		b := NewPicture(10, 6, test.bd, test.layout, 8)
		if !a.Equal(b) {
			t.Errorf("new pictures differ for test %d", i)
		}
		if test.bd == 8 {
			PlaneOf[uint8](a, 1).Pix[0] = 9
		} else {
			PlaneOf[uint16](a, 1).Pix[0] = 900
		}
		if a.Equal(b) {
			t.Errorf("changed picture still equal for test %d", i)
		}
		if a.Sample(1, 0, 0) == b.Sample(1, 0, 0) {
			t.Errorf("changed sample not seen for test %d", i)
		}

		var buf bytes.Buffer
		n, err := a.WriteTo(&buf)
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if int(n) != test.want || buf.Len() != test.want {
			t.Errorf("did not get expected size for test %d.\nGot: %v\nWant: %v", i, n, test.want)
		}
	}

	// Samples in the padding are not compared.
	a := NewPicture(10, 6, 8, header.I420, 8)
	b := NewPicture(10, 6, 8, header.I420, 8)
	pl := PlaneOf[uint8](a, 0)
	pl.Pix[pl.Stride-1] = 1
	if !a.Equal(b) {
		t.Errorf("pictures differing only in padding not equal")
	}
}

// TestFrameReuse checks that a reset frame gets motion vectors and a
// segmentation map of its own, while other buffers are reused and the
// coefficient contexts of each plane are sized in that plane's units.
func TestFrameReuse(t *testing.T) {
	hdr := &header.Frame{Width: 128, Height: 64, Tiling: header.UniformTiling(2, 1, 2, 1)}
	f := NewFrame(hdr, true)
	f.Alloc()
	mvs, seg, lf := f.MVs, f.SegMap, f.LF
	mvs[0].MV[0] = MV{Y: 1, X: 2}
	seg[0] = 7

	f.Reset(hdr, true)
	if f.MVs != nil || f.SegMap != nil {
		t.Fatalf("reset frame kept motion vectors or segmentation map")
	}
	f.Alloc()
	if &f.MVs[0] == &mvs[0] || &f.SegMap[0] == &seg[0] {
		t.Errorf("motion vectors or segmentation map shared with the earlier frame")
	}
	if f.MVs[0] != (RefMV{}) || f.SegMap[0] != 0 {
		t.Errorf("new frame sees earlier values: %v %v", f.MVs[0], f.SegMap[0])
	}
	if mvs[0].MV[0] != (MV{Y: 1, X: 2}) || seg[0] != 7 {
		t.Errorf("earlier frame values changed")
	}
	if &f.LF[0] != &lf[0] {
		t.Errorf("loop filter buffer not reused")
	}

	tests := []struct {
		layout header.Layout
		want   [3]int
	}{
		{header.I420, [3]int{32, 16, 16}},
		{header.I422, [3]int{32, 16, 16}},
		{header.I444, [3]int{32, 32, 32}},
	}
	for i, test := range tests {
		h := *hdr
		h.Layout = test.layout
		f.Reset(&h, true)
		f.Alloc()
		for p, c := range f.aboveCoef[0] {
			if len(c) != test.want[p] {
				t.Errorf("did not get expected context width for test %d plane %d.\nGot: %v\nWant: %v", i, p, len(c), test.want[p])
			}
		}
	}
}
