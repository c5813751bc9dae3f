/*
DESCRIPTION
  sink_test.go provides testing of the picture sink and the decode helper
  of av1bench.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/ausocean/av1/codec/av1/synth"
	"github.com/ausocean/av1/decoder/config"
	"github.com/ausocean/utils/logging"
)

func TestDecodeAndSink(t *testing.T) {
	p := synth.Params{Width: 96, Height: 64, TileCols: 2, TileRows: 1, KeyInterval: 4, Seed: 11}
	stream, err := synth.Generate(p, 6)
	if err != nil {
		t.Fatalf("could not generate stream: %v", err)
	}
	log := (*logging.TestLogger)(t)

	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "out.yuv")
		dst, err := newSink(path, compress, log, frameBytes(p))
		if err != nil {
			t.Fatalf("could not create sink: %v", err)
		}
		vars := map[string]string{config.KeyThreads: "3", config.KeyFrameThreads: "2"}
		pics, _, err := decode(log, vars, stream, dst)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		err = dst.Close()
		if err != nil {
			t.Fatalf("could not close sink: %v", err)
		}
		if dst.written != len(pics) {
			t.Errorf("wrote %d pictures, want %d", dst.written, len(pics))
		}

		var want bytes.Buffer
		for _, pic := range pics {
			pic.WriteTo(&want)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("could not open output: %v", err)
		}
		var r io.Reader = f
		if compress {
			dec, err := zstd.NewReader(f)
			if err != nil {
				t.Fatalf("could not create zstd reader: %v", err)
			}
			defer dec.Close()
			r = dec
		}
		got, err := io.ReadAll(r)
		f.Close()
		if err != nil {
			t.Fatalf("could not read output: %v", err)
		}
		if !bytes.Equal(got, want.Bytes()) {
			t.Errorf("output differs for compress=%v: got %d bytes, want %d", compress, len(got), want.Len())
		}

		vars[config.KeyThreads], vars[config.KeyFrameThreads] = "1", "1"
		ref, _, err := decode(log, vars, stream, nil)
		if err != nil {
			t.Fatalf("reference decode failed: %v", err)
		}
		if n := compare(ref, pics); n != 0 {
			t.Errorf("%d pictures differ from single threaded decoding", n)
		}
	}
}
