/*
DESCRIPTION
  recon_test.go provides testing for the coefficient scans, prediction
  kernels and post-filter windows.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package recon

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
)

func TestScans(t *testing.T) {
	for tx, scan := range scans {
		n := 4 << uint(tx)
		if len(scan) != n*n {
			t.Fatalf("unexpected scan length for size %d: got %d, want %d", tx, len(scan), n*n)
		}
		seen := make([]bool, n*n)
		prev := -1
		for i, pos := range scan {
			if seen[pos] {
				t.Fatalf("position %d repeated in scan of size %d", pos, tx)
			}
			seen[pos] = true
			d := int(pos)/n + int(pos)%n
			if d < prev {
				t.Fatalf("scan of size %d goes back a diagonal at %d", tx, i)
			}
			prev = d
		}
		if scan[0] != 0 || int(scan[1]) != n || scan[2] != 1 {
			t.Errorf("unexpected scan start for size %d: %v", tx, scan[:3])
		}
	}
}

// TestWindow checks that the filter windows of consecutive superblock rows
// meet and together cover the frame, in luma and subsampled chroma.
func TestWindow(t *testing.T) {
	tests := []struct {
		height int
		sb128  bool
	}{
		{60, false},
		{64, false},
		{100, false},
		{256, false},
		{130, true},
		{520, true},
	}
	for i, test := range tests {
		hdr := &header.Frame{Width: 64, Height: test.height, SB128: test.sb128}
		ch := (test.height + 1) >> 1
		var end, cend int
		for sby := 0; sby < hdr.SBRows(); sby++ {
			y0, y1 := Window(hdr, sby)
			if y0 != end || y1 <= y0 {
				t.Fatalf("bad window for test %d row %d: [%d, %d) after %d", i, sby, y0, y1, end)
			}
			end = y1
			c0, c1 := planeWindow(hdr, sby, 1, ch)
			if c0 != cend || c1 <= c0 {
				t.Fatalf("bad chroma window for test %d row %d: [%d, %d) after %d", i, sby, c0, c1, cend)
			}
			cend = c1
		}
		if end != test.height || cend != ch {
			t.Errorf("windows of test %d end at %d and %d, want %d and %d", i, end, cend, test.height, ch)
		}
	}
}

func testEdges(n int) *edges {
	e := &edges{top: make([]int32, 2*n), left: make([]int32, 2*n), topLeft: 5, haveTop: true, haveLeft: true}
	for i := range e.top {
		e.top[i] = int32(10 + i)
		e.left[i] = int32(40 + i)
	}
	return e
}

func TestDirectional(t *testing.T) {
	const n = 4
	e := testEdges(n)
	tests := []struct {
		angle int
		want  func(x, y int) int32
	}{
		{90, func(x, y int) int32 { return e.top[x] }},
		{180, func(x, y int) int32 { return e.left[y] }},
		{45, func(x, y int) int32 { return e.top[min(x+y+1, 2*n-1)] }},
	}
	for _, test := range tests {
		dst := make([]int32, n*n)
		directional(dst, n, test.angle, e)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				if got, want := dst[y*n+x], test.want(x, y); got != want {
					t.Errorf("did not get expected result for angle %d at %d,%d.\nGot: %v\nWant: %v", test.angle, x, y, got, want)
				}
			}
		}
	}
}

// TestFlatPrediction checks that every predictor reproduces a flat
// neighbourhood.
func TestFlatPrediction(t *testing.T) {
	const n, c = 8, 77
	e := &edges{top: make([]int32, 2*n), left: make([]int32, 2*n), topLeft: c, haveTop: true, haveLeft: true}
	for i := range e.top {
		e.top[i], e.left[i] = c, c
	}
	preds := map[string]func(dst []int32){
		"paeth":    func(dst []int32) { paeth(dst, n, e) },
		"smooth":   func(dst []int32) { smooth(dst, n, av1dec.SmoothPred, e) },
		"smooth v": func(dst []int32) { smooth(dst, n, av1dec.SmoothVPred, e) },
		"smooth h": func(dst []int32) { smooth(dst, n, av1dec.SmoothHPred, e) },
		"d67":      func(dst []int32) { directional(dst, n, 67, e) },
		"d113":     func(dst []int32) { directional(dst, n, 113, e) },
		"d157":     func(dst []int32) { directional(dst, n, 157, e) },
		"d203":     func(dst []int32) { directional(dst, n, 203, e) },
		"dc":       func(dst []int32) { kernels[uint8]{bd: 8}.dc(dst, n, e) },
	}
	for name, pred := range preds {
		dst := make([]int32, n*n)
		pred(dst)
		for i, v := range dst {
			if v != c {
				t.Errorf("%s predicted %d at %d, want %d", name, v, i, c)
				break
			}
		}
	}
}

func testPlane(w, h int) *av1dec.Plane[uint8] {
	p := &av1dec.Plane[uint8]{Pix: make([]uint8, w*h), Stride: w, W: w, H: h, PW: w, PH: h}
	for i := range p.Pix {
		p.Pix[i] = uint8(i)
	}
	return p
}

func TestMC(t *testing.T) {
	src := testPlane(16, 16)
	const x, y, w, h = 4, 4, 4, 4
	tests := []struct {
		mv   av1dec.MV
		want func(i, j int) int32
	}{
		{
			mv:   av1dec.MV{Y: 8, X: 16},
			want: func(i, j int) int32 { return int32(src.At(x+i+2, y+j+1)) },
		},
		{
			mv:   av1dec.MV{Y: -16, X: -8},
			want: func(i, j int) int32 { return int32(src.At(x+i-1, y+j-2)) },
		},
		{
			mv: av1dec.MV{X: 4},
			want: func(i, j int) int32 {
				return (int32(src.At(x+i, y+j)) + int32(src.At(x+i+1, y+j)) + 1) >> 1
			},
		},
		{
			mv:   av1dec.MV{Y: -400, X: 400},
			want: func(i, j int) int32 { return int32(src.At(x+i+50, y+j-50)) },
		},
	}
	for k, test := range tests {
		dst := make([]int32, w*h)
		mc(src, test.mv, 0, 0, x, y, w, h, dst)
		var want []int32
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				want = append(want, test.want(i, j))
			}
		}
		if !cmp.Equal(dst, want) {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", k, dst, want)
		}
	}
}

func TestAddResidual(t *testing.T) {
	k := kernels[uint8]{bd: 8}
	tests := []struct {
		typ   int
		coefs []int32
		want  map[int]uint8
	}{
		{typ: 0, coefs: []int32{8}, want: map[int]uint8{0: 104}},
		{typ: 1, coefs: []int32{8}, want: map[int]uint8{3: 104}},
		{typ: 2, coefs: []int32{8}, want: map[int]uint8{3 * 8: 104}},
		{typ: 3, coefs: []int32{-8}, want: map[int]uint8{3*8 + 3: 96}},
		{typ: 0, coefs: []int32{0, 16}, want: map[int]uint8{8: 108}},
		{typ: 0, coefs: []int32{-1000}, want: map[int]uint8{0: 0}},
	}
	for i, test := range tests {
		pl := &av1dec.Plane[uint8]{Pix: make([]uint8, 64), Stride: 8, W: 8, H: 8, PW: 8, PH: 8}
		for j := range pl.Pix {
			pl.Pix[j] = 100
		}
		k.addResidual(pl, 0, 0, av1dec.TX4x4, test.typ, 0, test.coefs)
		for j, v := range pl.Pix {
			want, ok := test.want[j]
			if !ok {
				want = 100
			}
			if v != want {
				t.Errorf("did not get expected result for test %d at %d.\nGot: %v\nWant: %v", i, j, v, want)
			}
		}
	}
}

func TestQStep(t *testing.T) {
	tests := []struct {
		qidx, bd int
		dc       bool
		want     int
	}{
		{0, 8, false, 4},
		{100, 8, false, 29},
		{100, 8, true, 24},
		{100, 10, false, 116},
		{255, 12, true, 880},
	}
	for i, test := range tests {
		if got := qStep(test.qidx, test.bd, test.dc); got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestCDEFConstrain(t *testing.T) {
	tests := []struct {
		diff, s, damping, want int
	}{
		{0, 4, 3, 0},
		{3, 0, 3, 0},
		{3, 4, 3, 3},
		{-2, 4, 3, -2},
		{-10, 4, 3, 0},
		{2, 8, 2, 2},
	}
	for i, test := range tests {
		if got := cdefConstrain(test.diff, test.s, test.damping); got != test.want {
			t.Errorf("did not get expected result for test %d.\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

// TestRestorationFlat checks that both restoration filters leave a flat
// region unchanged whatever their coefficients.
func TestRestorationFlat(t *testing.T) {
	flat := func(x, y int) int { return 333 }
	units := []av1dec.LRUnit{
		{Type: header.RestoreWiener, Wiener: [2][3]int8{{3, -7, 15}, {-5, 10, 20}}},
		{Type: header.RestoreWiener},
		{Type: header.RestoreSgrproj, SgrSet: 0, SgrXqd: [2]int8{-32, 31}},
		{Type: header.RestoreSgrproj, SgrSet: 14, SgrXqd: [2]int8{10, -60}},
	}
	for i := range units {
		u := &units[i]
		var got int
		if u.Type == header.RestoreWiener {
			got = wiener(u, 5, 5, flat)
		} else {
			got = sgrproj(u, 5, 5, flat)
		}
		if got != 333 {
			t.Errorf("did not get expected result for unit %d.\nGot: %v\nWant: %v", i, got, 333)
		}
	}
}
