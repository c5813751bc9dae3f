/*
DESCRIPTION
  decode_test.go provides testing of block decoding against generated key
  frames: every 4x4 position is covered by exactly one block, partition
  recursion stays within the superblock size and tiles sharing a tile row
  decode the same whatever their order.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package av1dec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/recon"
	"github.com/ausocean/av1/codec/av1/synth"
)

func TestBlockCoverage(t *testing.T) {
	tests := []synth.Params{
		{Width: 200, Height: 120, TileCols: 2, Seed: 11},
		{Width: 300, Height: 260, SB128: true, Layout: header.I444, TileCols: 2, TileRows: 2, Seed: 12},
		{Width: 136, Height: 88, Layout: header.I422, BitDepth: 10, Seed: 13},
		{Width: 120, Height: 72, ScreenContent: true, TileRows: 2, Seed: 14},
	}

	for i, p := range tests {
		frames, err := synth.Generate(p, 1)
		if err != nil {
			t.Fatalf("did not expect error generating test %d: %v", i, err)
		}
		hdr := frames[0].Header
		f := av1dec.NewFrame(hdr, true)
		f.Kern = recon.New(hdr.BitDepth)
		f.Alloc()

		var w av1dec.Worker
		for j, data := range frames[0].Tiles {
			ctx := cdf.New(hdr.Quant.BaseQIdx)
			tile := &f.Tiles[j]
			tile.Init(f, j, data, ctx)
			for sby := tile.Geo.SBRowStart; sby < tile.Geo.SBRowEnd; sby++ {
				err := w.DecodeSBRow(f, tile, sby, av1dec.PassEntropy)
				if err != nil {
					t.Fatalf("did not expect error for test %d tile %d row %d: %v", i, j, sby, err)
				}
			}
			ctx.Release()
		}

		maxDepth := 4
		if p.SB128 {
			maxDepth = 5
		}
		if w.MaxDepth < 1 || w.MaxDepth > maxDepth {
			t.Errorf("unexpected partition depth for test %d: got %d, want 1 to %d", i, w.MaxDepth, maxDepth)
		}

		cover := make([]int, f.W4*f.H4)
		for j := range f.Tiles {
			tile := &f.Tiles[j]
			for _, row := range tile.Order {
				for _, pos := range row {
					b := &f.Blocks[pos]
					if int(pos) != b.Y4*f.W4+b.X4 {
						t.Fatalf("block at %d,%d recorded at %d for test %d", b.X4, b.Y4, pos, i)
					}
					g := tile.Geo
					if b.X4 < g.Col4Start || b.X4 >= g.Col4End || b.Y4 < g.Row4Start || b.Y4 >= g.Row4End {
						t.Errorf("block at %d,%d outside tile %d for test %d", b.X4, b.Y4, j, i)
					}
					for y := b.Y4; y < min(b.Y4+b.Size.H4(), f.H4); y++ {
						for x := b.X4; x < min(b.X4+b.Size.W4(), f.W4); x++ {
							cover[y*f.W4+x]++
						}
					}
				}
			}
		}
		for pos, n := range cover {
			if n != 1 {
				t.Errorf("4x4 position %d,%d covered %d times for test %d", pos%f.W4, pos/f.W4, n, i)
				break
			}
		}
	}
}

// entropyDecode runs the entropy pass of a key frame. With interleave set,
// each tile is initialised just before its first superblock row is decoded,
// last tile first, and the remaining rows are decoded afterwards.
func entropyDecode(t *testing.T, sf *synth.Frame, interleave bool) *av1dec.Frame {
	hdr := sf.Header
	f := av1dec.NewFrame(hdr, true)
	f.Kern = recon.New(hdr.BitDepth)
	f.Alloc()

	var w av1dec.Worker
	decode := func(j, sby int) {
		err := w.DecodeSBRow(f, &f.Tiles[j], sby, av1dec.PassEntropy)
		if err != nil {
			t.Fatalf("did not expect error for tile %d row %d: %v", j, sby, err)
		}
	}
	var ctxs []*cdf.Context
	if interleave {
		for j := len(sf.Tiles) - 1; j >= 0; j-- {
			ctxs = append(ctxs, cdf.New(hdr.Quant.BaseQIdx))
			f.Tiles[j].Init(f, j, sf.Tiles[j], ctxs[len(ctxs)-1])
			decode(j, f.Tiles[j].Geo.SBRowStart)
		}
		for j := range f.Tiles {
			g := f.Tiles[j].Geo
			for sby := g.SBRowStart + 1; sby < g.SBRowEnd; sby++ {
				decode(j, sby)
			}
		}
	} else {
		for j := range sf.Tiles {
			ctxs = append(ctxs, cdf.New(hdr.Quant.BaseQIdx))
			f.Tiles[j].Init(f, j, sf.Tiles[j], ctxs[len(ctxs)-1])
		}
		for j := range f.Tiles {
			g := f.Tiles[j].Geo
			for sby := g.SBRowStart; sby < g.SBRowEnd; sby++ {
				decode(j, sby)
			}
		}
	}
	for _, c := range ctxs {
		c.Release()
	}
	return f
}

// TestTileOrder checks that the blocks of tiles sharing a tile row do not
// depend on the order the tiles are started and decoded in, including the
// chroma coefficient contexts of subsampled layouts.
func TestTileOrder(t *testing.T) {
	tests := []synth.Params{
		{Width: 512, Height: 192, TileCols: 4, Seed: 31},
		{Width: 512, Height: 128, TileCols: 4, Layout: header.I422, Seed: 32},
		{Width: 384, Height: 200, TileCols: 3, TileRows: 2, Seed: 33},
	}
	for i, p := range tests {
		frames, err := synth.Generate(p, 1)
		if err != nil {
			t.Fatalf("did not expect error generating test %d: %v", i, err)
		}
		want := entropyDecode(t, frames[0], false)
		got := entropyDecode(t, frames[0], true)
		if !cmp.Equal(got.Blocks, want.Blocks, cmpopts.EquateEmpty()) {
			t.Errorf("blocks of test %d depend on tile order:\n%s", i, cmp.Diff(want.Blocks, got.Blocks, cmpopts.EquateEmpty()))
		}
	}
}

// TestTruncatedTile checks that a tile cut short fails with a syntax error
// rather than decoding to the end from padding.
func TestTruncatedTile(t *testing.T) {
	frames, err := synth.Generate(synth.Params{Width: 256, Height: 192, Seed: 21}, 1)
	if err != nil {
		t.Fatalf("did not expect error generating: %v", err)
	}
	hdr := frames[0].Header
	f := av1dec.NewFrame(hdr, false)
	f.Kern = recon.New(hdr.BitDepth)
	f.Alloc()
	f.Pic = av1dec.NewPicture(hdr.Width, hdr.Height, hdr.BitDepth, hdr.Layout, hdr.SBSize())
	f.Edge = av1dec.NewEdgeBuffer(hdr.Width, hdr.SBRows(), hdr.BitDepth, hdr.Layout, hdr.SBSize())

	ctx := cdf.New(hdr.Quant.BaseQIdx)
	defer ctx.Release()
	tile := &f.Tiles[0]
	tile.Init(f, 0, frames[0].Tiles[0][:1], ctx)

	var w av1dec.Worker
	for sby := tile.Geo.SBRowStart; sby < tile.Geo.SBRowEnd; sby++ {
		err = w.DecodeSBRow(f, tile, sby, av1dec.PassSingle)
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected error decoding truncated tile")
	}
	for _, want := range []error{av1dec.ErrOverread, av1dec.ErrInvalidPartition, av1dec.ErrInvalidIntrabc, recon.ErrGolomb} {
		if errors.Is(err, want) {
			return
		}
	}
	t.Errorf("unexpected error decoding truncated tile: %v", err)
}
