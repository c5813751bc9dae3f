/*
DESCRIPTION
  synth_test.go provides testing of the Writer symbol source and the frame
  generator.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package synth

import (
	"bytes"
	"testing"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/msac"
	"github.com/ausocean/av1/codec/av1/recon"
)

// TestWriter checks that values chosen by a Writer, including constrained
// ones, are read back by a decoder using the same CDFs.
func TestWriter(t *testing.T) {
	c := cdf.New(100)
	defer c.Release()
	d := cdf.New(100)
	defer d.Release()

	type op struct {
		kind int
		v    int
	}
	var ops []op
	w := NewWriter(7, false)
	for i := 0; i < 2000; i++ {
		switch i % 5 {
		case 0:
			ops = append(ops, op{0, w.Symbol(c.CDF(cdf.Partition, i%12), cdf.Symbols(cdf.Partition))})
		case 1:
			w.Constrain(func(v int) bool { return v%2 == 1 })
			v := w.Symbol(c.CDF(cdf.KfYMode, i%25), cdf.Symbols(cdf.KfYMode))
			if v%2 != 1 {
				t.Fatalf("constraint not honoured at op %d: got %d", i, v)
			}
			ops = append(ops, op{1, v})
		case 2:
			ops = append(ops, op{2, b2i(w.Bool(uint(1 + i*13%32767)))})
		case 3:
			w.Constrain(func(v int) bool { return v == 1 })
			v := w.BoolEqui()
			if !v {
				t.Fatalf("constraint not honoured at op %d", i)
			}
			ops = append(ops, op{3, 1})
		case 4:
			w.Constrain(func(v int) bool { return v > 500 })
			v := w.Bools(10)
			if v <= 500 {
				t.Fatalf("constraint not honoured at op %d: got %d", i, v)
			}
			ops = append(ops, op{4, int(v)})
		}
	}
	buf := w.Done()

	r := msac.NewDecoder(buf, false)
	for i, o := range ops {
		var got int
		switch o.kind {
		case 0:
			got = r.Symbol(d.CDF(cdf.Partition, i%12), cdf.Symbols(cdf.Partition))
		case 1:
			got = r.Symbol(d.CDF(cdf.KfYMode, i%25), cdf.Symbols(cdf.KfYMode))
		case 2:
			got = b2i(r.Bool(uint(1 + i*13%32767)))
		case 3:
			got = b2i(r.BoolEqui())
		case 4:
			got = int(r.Bools(10))
		}
		if got != o.v {
			t.Fatalf("did not get expected result for op %d\nGot: %v\nWant: %v", i, got, o.v)
		}
	}
	if r.Overread() {
		t.Errorf("unexpected overread")
	}
	if !c.Equal(d) {
		t.Errorf("writer and reader contexts differ after adaptation")
	}
}

func TestGenerate(t *testing.T) {
	tests := []Params{
		{Width: 64, Height: 64, Seed: 1},
		{Width: 200, Height: 120, TileCols: 2, TileRows: 2, Seed: 2},
		{Width: 130, Height: 70, BitDepth: 10, Layout: header.I444, SB128: true, Seed: 3},
		{Width: 96, Height: 96, Layout: header.I422, KeyInterval: 3, Seed: 4},
		{Width: 160, Height: 128, ScreenContent: true, SuperRes: true, TileCols: 2, Seed: 5},
	}

	for i, p := range tests {
		a, err := Generate(p, 5)
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		b, err := Generate(p, 5)
		if err != nil {
			t.Fatalf("did not expect error for second run of test %d: %v", i, err)
		}
		for j := range a {
			hdr := a[j].Header
			if err := hdr.Validate(); err != nil {
				t.Errorf("invalid header for test %d frame %d: %v", i, j, err)
			}
			if len(a[j].Tiles) != hdr.Tiles() {
				t.Errorf("unexpected tile count for test %d frame %d: got %d, want %d", i, j, len(a[j].Tiles), hdr.Tiles())
			}
			for k := range a[j].Tiles {
				if len(a[j].Tiles[k]) == 0 {
					t.Errorf("empty tile %d for test %d frame %d", k, i, j)
				}
				if !bytes.Equal(a[j].Tiles[k], b[j].Tiles[k]) {
					t.Errorf("generation not deterministic for test %d frame %d tile %d", i, j, k)
				}
			}
		}
		if a[0].Header.FrameType != header.KeyFrame {
			t.Errorf("first frame of test %d is not a key frame", i)
		}
	}
}

// TestKeyFrameDecodes decodes the tiles of a generated key frame and checks
// that every tile is consumed without error.
func TestKeyFrameDecodes(t *testing.T) {
	frames, err := Generate(Params{Width: 150, Height: 100, TileCols: 2, TileRows: 2, Seed: 9}, 1)
	if err != nil {
		t.Fatalf("did not expect error generating: %v", err)
	}
	hdr := frames[0].Header
	f := av1dec.NewFrame(hdr, true)
	f.Kern = recon.New(hdr.BitDepth)
	f.Alloc()

	var w av1dec.Worker
	for i, data := range frames[0].Tiles {
		ctx := cdf.New(hdr.Quant.BaseQIdx)
		tile := &f.Tiles[i]
		tile.Init(f, i, data, ctx)
		for sby := tile.Geo.SBRowStart; sby < tile.Geo.SBRowEnd; sby++ {
			err := w.DecodeSBRow(f, tile, sby, av1dec.PassEntropy)
			if err != nil {
				t.Fatalf("did not expect error decoding tile %d row %d: %v", i, sby, err)
			}
		}
		if tile.Reader.Overread() {
			t.Errorf("tile %d overread", i)
		}
		if len(tile.Order[0]) == 0 {
			t.Errorf("no blocks decoded in first row of tile %d", i)
		}
		ctx.Release()
	}
}
