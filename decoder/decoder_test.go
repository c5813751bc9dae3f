/*
DESCRIPTION
  decoder_test.go provides testing of the Decoder: identical output for
  every concurrency setting, error reporting, allocation failure and flush.

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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/synth"
	"github.com/ausocean/av1/decoder/config"
)

var streams = []synth.Params{
	{Width: 96, Height: 80, TileCols: 2, TileRows: 2, KeyInterval: 6, Seed: 1},
	{Width: 144, Height: 136, SB128: true, Layout: header.I444, TileCols: 2, TileRows: 1, Seed: 2},
	{Width: 120, Height: 72, BitDepth: 10, TileCols: 1, TileRows: 2, ScreenContent: true, Seed: 3},
	{Width: 64, Height: 96, TileCols: 1, TileRows: 1, SuperRes: true, KeyInterval: 3, Seed: 4},
	{Width: 200, Height: 64, Layout: header.I422, TileCols: 3, TileRows: 1, NoFilters: true, Seed: 5},
}

const streamFrames = 10

func newTestDecoder(t *testing.T, threads, frameThreads uint) *Decoder {
	d, err := New(config.Config{
		Logger:          (*logging.TestLogger)(t),
		Threads:         threads,
		FrameThreads:    frameThreads,
		OutputInvisible: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close(context.Background()) })
	return d
}

type decoded struct {
	pic *av1dec.Picture
	err error
}

// decodeAll submits frames, collecting pictures as they become ready and
// draining the rest.
func decodeAll(t *testing.T, d *Decoder, frames []*synth.Frame) []decoded {
	ctx := context.Background()
	var out []decoded
	for i, f := range frames {
		err := d.Submit(ctx, f.Header, f.Tiles)
		require.NoError(t, err, "submit frame %d", i)
		for {
			pic, err := d.Picture(ctx)
			if errors.Is(err, ErrAgain) {
				break
			}
			out = append(out, decoded{pic, err})
		}
	}
	for {
		pic, err := d.Drain(ctx)
		if err == io.EOF {
			break
		}
		out = append(out, decoded{pic, err})
	}
	return out
}

func requireSame(t *testing.T, want, got []decoded, name string) {
	require.Len(t, got, len(want), name)
	for i := range want {
		if want[i].err != nil {
			require.Error(t, got[i].err, "%s: frame %d", name, i)
			continue
		}
		require.NoError(t, got[i].err, "%s: frame %d", name, i)
		require.True(t, want[i].pic.Equal(got[i].pic), "%s: frame %d differs", name, i)
	}
}

func TestDeterminism(t *testing.T) {
	for si, p := range streams {
		frames, err := synth.Generate(p, streamFrames)
		require.NoError(t, err)

		want := decodeAll(t, newTestDecoder(t, 1, 1), frames)
		require.Len(t, want, streamFrames)
		for i, w := range want {
			require.NoError(t, w.err, "stream %d frame %d", si, i)
		}

		for _, ft := range []uint{2, 3} {
			for _, th := range []uint{1, 2, 4} {
				name := fmt.Sprintf("stream %d frame threads %d threads %d", si, ft, th)
				got := decodeAll(t, newTestDecoder(t, th, ft), frames)
				requireSame(t, want, got, name)
			}
		}
	}
}

// TestTileColumns decodes a 4:2:0 stream with several tiles in each tile row,
// so that tiles of one row decode concurrently, and checks the result against
// a single threaded decode.
func TestTileColumns(t *testing.T) {
	frames, err := synth.Generate(synth.Params{Width: 512, Height: 128, TileCols: 4, TileRows: 1, Seed: 6}, streamFrames)
	require.NoError(t, err)
	require.Equal(t, header.I420, frames[0].Header.Layout)
	require.Equal(t, 4, frames[0].Header.Tiling.Cols)

	want := decodeAll(t, newTestDecoder(t, 1, 1), frames)
	require.Len(t, want, streamFrames)
	for i, w := range want {
		require.NoError(t, w.err, "frame %d", i)
	}

	const runs = 4
	for i := 0; i < runs; i++ {
		got := decodeAll(t, newTestDecoder(t, 8, 2), frames)
		requireSame(t, want, got, fmt.Sprintf("run %d", i))
	}
}

// TestProgress checks that tile progress only increases and ends at the
// last superblock row of each tile.
func TestProgress(t *testing.T) {
	frames, err := synth.Generate(streams[0], streamFrames)
	require.NoError(t, err)

	type key struct {
		seq        uint64
		tile, pass int
	}
	var (
		mu   sync.Mutex
		last = map[key]int32{}
		bad  []string
	)
	d := newTestDecoder(t, 3, 3)
	d.s.onProgress = func(seq uint64, tile, pass int, v int32) {
		mu.Lock()
		defer mu.Unlock()
		k := key{seq, tile, pass}
		if prev, ok := last[k]; ok && v <= prev {
			bad = append(bad, fmt.Sprintf("frame %d tile %d pass %d: %d after %d", seq, tile, pass, v, prev))
		}
		last[k] = v
	}
	decodeAll(t, d, frames)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, bad)
	for seq, f := range frames {
		for tile := 0; tile < f.Header.Tiles(); tile++ {
			end := int32(f.Header.Tile(tile).SBRowEnd)
			for pass := 0; pass < 2; pass++ {
				require.Equal(t, end, last[key{uint64(seq), tile, pass}], "frame %d tile %d pass %d", seq, tile, pass)
			}
		}
	}
}

// TestCorruptTile checks that a tile that cannot be decoded fails only its
// frame and frames predicted from it.
func TestCorruptTile(t *testing.T) {
	p := streams[0]
	p.Width, p.Height = 256, 192
	p.KeyInterval = 4
	frames, err := synth.Generate(p, 8)
	require.NoError(t, err)
	want := decodeAll(t, newTestDecoder(t, 1, 1), frames)

	const bad = 2
	corrupt := make([]*synth.Frame, len(frames))
	copy(corrupt, frames)
	tiles := make([][]byte, len(frames[bad].Tiles))
	copy(tiles, frames[bad].Tiles)
	tiles[1] = tiles[1][:1]
	corrupt[bad] = &synth.Frame{Header: frames[bad].Header, Tiles: tiles}

	for _, ft := range []uint{1, 3} {
		got := decodeAll(t, newTestDecoder(t, 2, ft), corrupt)
		require.Len(t, got, len(frames))
		require.ErrorIs(t, got[bad].err, ErrInvalidData, "frame threads %d", ft)
		for _, i := range []int{0, 1, 4, 5, 6, 7} {
			require.NoError(t, got[i].err, "frame threads %d frame %d", ft, i)
			require.True(t, want[i].pic.Equal(got[i].pic), "frame threads %d frame %d differs", ft, i)
		}
	}
}

// TestAllocFailure checks that a failed allocation aborts only its frame.
func TestAllocFailure(t *testing.T) {
	frames, err := synth.Generate(streams[1], 6)
	require.NoError(t, err)
	want := decodeAll(t, newTestDecoder(t, 1, 1), frames)

	const fail = 3
	for _, ft := range []uint{1, 3} {
		d := newTestDecoder(t, 2, ft)
		calls := 0
		d.allocHook = func(size int64) error {
			calls++
			if calls == fail+1 {
				return errors.New("injected")
			}
			return nil
		}
		ctx := context.Background()
		for i := 0; i < fail; i++ {
			require.NoError(t, d.Submit(ctx, frames[i].Header, frames[i].Tiles))
		}
		err := d.Submit(ctx, frames[fail].Header, frames[fail].Tiles)
		require.ErrorIs(t, err, ErrNoMemory, "frame threads %d", ft)

		for i := 0; i < fail; i++ {
			pic, err := d.Drain(ctx)
			require.NoError(t, err, "frame threads %d frame %d", ft, i)
			require.True(t, want[i].pic.Equal(pic), "frame threads %d frame %d differs", ft, i)
		}
		_, err = d.Drain(ctx)
		require.Equal(t, io.EOF, err)
	}
}

func TestMemoryLimit(t *testing.T) {
	frames, err := synth.Generate(streams[0], 1)
	require.NoError(t, err)
	d, err := New(config.Config{Logger: (*logging.TestLogger)(t), FrameThreads: 1, MemoryLimit: 1024})
	require.NoError(t, err)
	defer d.Close(context.Background())
	err = d.Submit(context.Background(), frames[0].Header, frames[0].Tiles)
	require.ErrorIs(t, err, ErrNoMemory)
}

// TestFlush checks that a flush with frames in flight leaves no queued or
// running tasks, and that a new stream then decodes correctly.
func TestFlush(t *testing.T) {
	first, err := synth.Generate(streams[0], 3)
	require.NoError(t, err)
	second, err := synth.Generate(streams[2], 6)
	require.NoError(t, err)
	want := decodeAll(t, newTestDecoder(t, 1, 1), second)

	d := newTestDecoder(t, 2, 3)
	ctx := context.Background()
	for _, f := range first {
		require.NoError(t, d.Submit(ctx, f.Header, f.Tiles))
	}
	require.NoError(t, d.Flush(ctx))

	require.Equal(t, 0, d.s.queued())
	d.s.mu.Lock()
	busy, active := d.s.busy, d.s.active
	d.s.mu.Unlock()
	require.Equal(t, 0, busy)
	require.Equal(t, 0, active)
	for _, s := range d.slots {
		require.Nil(t, s)
	}
	_, err = d.Picture(ctx)
	require.ErrorIs(t, err, ErrAgain)
	_, err = d.Drain(ctx)
	require.Equal(t, io.EOF, err)

	got := decodeAll(t, d, second)
	requireSame(t, want, got, "after flush")
}

func TestSubmitErrors(t *testing.T) {
	frames, err := synth.Generate(synth.Params{Width: 128, Height: 64, TileCols: 2, TileRows: 1, Seed: 9}, streamFrames)
	require.NoError(t, err)
	require.Equal(t, 2, frames[0].Header.Tiles())
	ctx := context.Background()
	d := newTestDecoder(t, 2, 2)

	_, err = d.Picture(ctx)
	require.ErrorIs(t, err, ErrAgain)
	_, err = d.Drain(ctx)
	require.Equal(t, io.EOF, err)

	var inter *synth.Frame
	for _, f := range frames[1:] {
		if !f.Header.IsIntra() {
			inter = f
			break
		}
	}
	require.NotNil(t, inter, "no inter frame generated")
	err = d.Submit(ctx, inter.Header, inter.Tiles)
	require.ErrorIs(t, err, ErrInvalidData, "inter frame without references")

	err = d.Submit(ctx, frames[0].Header, frames[0].Tiles[:1])
	require.ErrorIs(t, err, ErrInvalidData, "missing tile")

	err = d.Submit(ctx, frames[0].Header, nil)
	require.ErrorIs(t, err, ErrInvalidData, "no tiles")

	err = d.Submit(ctx, frames[0].Header, append(frames[0].Tiles[:2:2], frames[0].Tiles[1]))
	require.ErrorIs(t, err, ErrInvalidData, "extra tile")

	h := *frames[0].Header
	h.Width = 0
	err = d.Submit(ctx, &h, frames[0].Tiles)
	require.ErrorIs(t, err, ErrInvalidData, "bad header")

	require.NoError(t, d.Close(ctx))
	err = d.Submit(ctx, frames[0].Header, frames[0].Tiles)
	require.ErrorIs(t, err, ErrClosed)
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(config.Config{})
	require.ErrorIs(t, err, config.ErrNoLogger)
}
