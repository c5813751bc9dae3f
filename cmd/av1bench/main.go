/*
DESCRIPTION
  av1bench synthesises an av1 stream, decodes it with the requested frame
  and tile parallelism, reports decode speed and optionally checks the
  output against single threaded decoding and writes the decoded pictures
  to file.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package av1bench is a benchmarking and determinism checking tool for the
// av1 decoder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/codec/av1/synth"
	"github.com/ausocean/av1/decoder"
	"github.com/ausocean/av1/decoder/config"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.3.0"

// Logging configuration.
const (
	logMaxSize   = 50 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logSuppress  = true
)

// Misc constants.
const (
	profilePath = "av1bench.prof"
	pkg         = "av1bench: "
)

// This is set to true if the 'profile' build tag is provided on build.
var canProfile = false

func main() {
	var (
		showVersion  = flag.Bool("version", false, "show version")
		width        = flag.Int("width", 640, "frame width")
		height       = flag.Int("height", 360, "frame height")
		depth        = flag.Int("depth", 8, "bit depth (8, 10 or 12)")
		layout       = flag.String("layout", "420", "chroma layout (420, 422 or 444)")
		sb128        = flag.Bool("sb128", false, "use 128x128 superblocks")
		tileCols     = flag.Int("tilecols", 2, "tile columns")
		tileRows     = flag.Int("tilerows", 2, "tile rows")
		keyInt       = flag.Int("keyint", 30, "key frame interval")
		screen       = flag.Bool("screen", false, "allow screen content tools")
		superRes     = flag.Bool("superres", false, "allow super-resolution")
		noFilters    = flag.Bool("nofilters", false, "disable in-loop filters")
		seed         = flag.Int64("seed", 1, "stream seed")
		frames       = flag.Int("frames", 60, "frames to decode")
		threads      = flag.String("threads", "4", "worker goroutines")
		frameThreads = flag.String("framethreads", "2", "frames decoded concurrently")
		memLimit     = flag.String("memlimit", "0", "per frame memory limit in bytes, 0 for none")
		check        = flag.Bool("check", false, "compare output with single threaded decoding")
		out          = flag.String("out", "", "file to write decoded pictures to as planar YUV")
		compress     = flag.Bool("zstd", false, "compress the output with zstd")
		logPath      = flag.String("log", "av1bench.log", "log file")
		verbosity    = flag.String("verbosity", "Info", "log verbosity (Debug, Info, Warning, Error)")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logging.Info, io.MultiWriter(os.Stderr, fileLog), logSuppress)
	log.Info("starting av1bench", "version", version)

	if canProfile {
		profile(log)
		defer pprof.StopCPUProfile()
		log.Info("profiling started")
	}

	p := synth.Params{
		Width:         *width,
		Height:        *height,
		BitDepth:      *depth,
		SB128:         *sb128,
		TileCols:      *tileCols,
		TileRows:      *tileRows,
		KeyInterval:   *keyInt,
		ScreenContent: *screen,
		SuperRes:      *superRes,
		NoFilters:     *noFilters,
		Seed:          *seed,
	}
	switch *layout {
	case "420":
		p.Layout = header.I420
	case "422":
		p.Layout = header.I422
	case "444":
		p.Layout = header.I444
	default:
		log.Fatal(pkg+"invalid layout", "layout", *layout)
	}

	start := time.Now()
	stream, err := synth.Generate(p, *frames)
	if err != nil {
		log.Fatal(pkg+"could not generate stream", "error", err.Error())
	}
	var size int
	for _, f := range stream {
		for _, t := range f.Tiles {
			size += len(t)
		}
	}
	log.Info("stream generated", "frames", len(stream), "bytes", size, "took", time.Since(start).String())

	vars := map[string]string{
		config.KeyThreads:         *threads,
		config.KeyFrameThreads:    *frameThreads,
		config.KeyMemoryLimit:     *memLimit,
		config.KeyLogging:         *verbosity,
		config.KeyOutputInvisible: "false",
	}

	var dst *sink
	if *out != "" {
		dst, err = newSink(*out, *compress, log, frameBytes(p))
		if err != nil {
			log.Fatal(pkg+"could not create output", "error", err.Error())
		}
	}

	pics, took, err := decode(log, vars, stream, dst)
	if err != nil {
		log.Fatal(pkg+"decode failed", "error", err.Error())
	}
	fps := float64(len(pics)) / took.Seconds()
	log.Info("stream decoded", "pictures", len(pics), "took", took.String(), "fps", strconv.FormatFloat(fps, 'f', 1, 64))
	fmt.Printf("%d pictures in %v (%.1f fps)\n", len(pics), took, fps)

	if dst != nil {
		err = dst.Close()
		if err != nil {
			log.Error(pkg+"could not close output", "error", err.Error())
		}
	}

	if !*check {
		return
	}
	vars[config.KeyThreads], vars[config.KeyFrameThreads] = "1", "1"
	want, _, err := decode(log, vars, stream, nil)
	if err != nil {
		log.Fatal(pkg+"reference decode failed", "error", err.Error())
	}
	n := compare(want, pics)
	if n != 0 {
		log.Error(pkg+"output differs from single threaded decoding", "pictures", n)
		fmt.Printf("%d pictures differ from single threaded decoding\n", n)
		os.Exit(1)
	}
	fmt.Println("output matches single threaded decoding")
}

// decode decodes stream with a decoder configured from vars, writing each
// picture to dst if not nil.
func decode(log logging.Logger, vars map[string]string, stream []*synth.Frame, dst *sink) ([]*av1dec.Picture, time.Duration, error) {
	cfg := config.Config{Logger: log}
	cfg.Update(vars)
	d, err := decoder.New(cfg)
	if err != nil {
		return nil, 0, err
	}
	ctx := context.Background()
	defer d.Close(ctx)

	var pics []*av1dec.Picture
	add := func(pic *av1dec.Picture) error {
		pics = append(pics, pic)
		if dst == nil {
			return nil
		}
		return dst.Write(pic)
	}

	start := time.Now()
	for i, f := range stream {
		err := d.Submit(ctx, f.Header, f.Tiles)
		if err != nil {
			return nil, 0, fmt.Errorf("could not submit frame %d: %w", i, err)
		}
		for {
			pic, err := d.Picture(ctx)
			if errors.Is(err, decoder.ErrAgain) {
				break
			}
			if err != nil {
				return nil, 0, err
			}
			err = add(pic)
			if err != nil {
				return nil, 0, err
			}
		}
	}
	for {
		pic, err := d.Drain(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		err = add(pic)
		if err != nil {
			return nil, 0, err
		}
	}
	return pics, time.Since(start), nil
}

// compare returns the number of pictures of got that differ from want.
func compare(want, got []*av1dec.Picture) int {
	n := 0
	for i := range want {
		if i >= len(got) || !want[i].Equal(got[i]) {
			n++
		}
	}
	return n + max(len(got)-len(want), 0)
}

// profile starts a CPU profile written to profilePath.
func profile(l logging.Logger) {
	f, err := os.Create(profilePath)
	if err != nil {
		l.Fatal(pkg+"could not create CPU profile", "error", err.Error())
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		l.Fatal(pkg+"could not start CPU profile", "error", err.Error())
	}
}
