/*
DESCRIPTION
  decoder.go provides Decoder, which decodes av1 frames from parsed headers
  and tile data using frame and tile level parallelism.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package decoder provides an av1 frame decoder. Frames are submitted as a
// validated header with the payload of each tile and decoded pictures are
// returned in submission order.
//
// With one frame thread, frames are decoded on the submitting goroutine.
// Otherwise up to FrameThreads frames are decoded concurrently by a pool of
// Threads worker goroutines, each frame split into tasks per tile and
// superblock row, with entropy decoding run ahead of reconstruction.
// Output is identical for every configuration.
package decoder

import (
	"context"
	"fmt"
	"io"

	"github.com/ausocean/utils/logging"
	"github.com/xaionaro-go/xsync"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/header"
	"github.com/ausocean/av1/decoder/config"
)

// Decoder decodes a stream of av1 frames. Its methods are safe for
// concurrent use; they are serialised.
type Decoder struct {
	cfg config.Config
	log logging.Logger

	locker xsync.RWMutex

	s      *scheduler
	inline av1dec.Worker
	slots  [header.NumRefSlots]*picture
	seq    uint64
	closed bool

	// allocHook, if set, is called with the size of each frame allocation
	// and fails it by returning an error.
	allocHook func(size int64) error
}

// New returns a Decoder for cfg, starting its worker goroutines.
func New(cfg config.Config) (*Decoder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Logger.SetLevel(cfg.LogLevel)
	d := &Decoder{cfg: cfg, log: cfg.Logger}
	d.s = newScheduler(cfg.Logger, int(cfg.FrameThreads), int(cfg.Threads))
	d.log.Info("decoder started", "threads", cfg.Threads, "frameThreads", cfg.FrameThreads)
	return d, nil
}

// Submit queues the frame described by hdr with the data of each of its
// tiles. It blocks while FrameThreads frames are in flight, and decodes the
// frame before returning when FrameThreads is one. Errors in tile data are
// reported by Picture or Drain at the frame's output position; Submit
// returns ErrInvalidData for invalid headers or missing references and
// ErrNoMemory if the frame cannot be allocated.
func (d *Decoder) Submit(ctx context.Context, hdr *header.Frame, tiles [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return xsync.DoR1(ctx, &d.locker, func() error {
		return d.submit(hdr, tiles)
	})
}

func (d *Decoder) submit(hdr *header.Frame, tiles [][]byte) error {
	if d.closed {
		return ErrClosed
	}
	err := hdr.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if len(tiles) != hdr.Tiles() {
		return fmt.Errorf("%w: %d tiles for a frame of %d", ErrInvalidData, len(tiles), hdr.Tiles())
	}
	if !hdr.IsIntra() {
		for i, s := range hdr.RefFrameIdx {
			if d.slots[s] == nil {
				return fmt.Errorf("%w: reference %d uses empty slot %d", ErrInvalidData, i+header.Last, s)
			}
		}
	}
	if hdr.PrimaryRefFrame != header.PrimaryRefNone && d.slots[hdr.RefFrameIdx[hdr.PrimaryRefFrame]] == nil {
		return fmt.Errorf("%w: primary reference slot %d is empty", ErrInvalidData, hdr.RefFrameIdx[hdr.PrimaryRefFrame])
	}

	seq := d.seq
	d.seq++
	fc := d.s.acquire(seq)
	err = fc.alloc(hdr, d.cfg.FrameThreads > 1, int64(d.cfg.MemoryLimit), d.allocHook)
	if err != nil {
		d.s.abandon(fc)
		d.clearSlots(hdr.RefreshFrameFlags)
		d.log.Error("frame allocation failed", "frame", seq, "error", err.Error())
		return err
	}
	fc.tiles = tiles
	fc.bind(&d.slots)
	for i := range d.slots {
		if hdr.RefreshFrameFlags&(1<<uint(i)) == 0 {
			continue
		}
		if d.slots[i] != nil {
			d.slots[i].Unref()
		}
		d.slots[i] = fc.pic.Ref()
	}
	if hdr.ShowFrame || d.cfg.OutputInvisible {
		d.s.queueOutput(fc)
	}
	d.log.Debug("frame submitted", "frame", seq, "type", hdr.FrameType, "tiles", len(tiles), "show", hdr.ShowFrame)

	if d.cfg.FrameThreads > 1 {
		d.s.start(fc)
		return nil
	}
	fc.decodeInline(d.s, &d.inline)
	d.s.mu.Lock()
	d.s.exit(fc)
	d.s.mu.Unlock()
	return nil
}

// clearSlots empties the reference slots in mask.
func (d *Decoder) clearSlots(mask uint8) {
	for i := range d.slots {
		if mask&(1<<uint(i)) != 0 && d.slots[i] != nil {
			d.slots[i].Unref()
			d.slots[i] = nil
		}
	}
}

type result struct {
	pic *av1dec.Picture
	err error
}

// Picture returns the next picture in output order if it has been
// decoded, or ErrAgain. A frame that failed to decode returns an error
// wrapping ErrInvalidData in place of its picture.
func (d *Decoder) Picture(ctx context.Context) (*av1dec.Picture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := xsync.DoR1(ctx, &d.locker, func() result {
		if d.closed {
			return result{err: ErrClosed}
		}
		d.s.mu.Lock()
		defer d.s.mu.Unlock()
		o := d.s.next()
		if o == nil {
			return result{err: ErrAgain}
		}
		return result{pic: o.pic, err: o.err}
	})
	return r.pic, r.err
}

// Drain waits for and returns the next picture in output order. It
// returns io.EOF when no pictures are pending.
func (d *Decoder) Drain(ctx context.Context) (*av1dec.Picture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := xsync.DoR1(ctx, &d.locker, func() result {
		if d.closed {
			return result{err: ErrClosed}
		}
		s := d.s
		s.mu.Lock()
		defer s.mu.Unlock()
		for {
			if o := s.next(); o != nil {
				return result{pic: o.pic, err: o.err}
			}
			if len(s.outputs) == 0 {
				return result{err: io.EOF}
			}
			s.quiet.Wait()
		}
	})
	return r.pic, r.err
}

// Flush cancels all frames in flight, discards pending pictures and
// empties the reference slots. It returns once no task is queued or
// running.
func (d *Decoder) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.closed {
			return ErrClosed
		}
		d.flush()
		return nil
	})
}

func (d *Decoder) flush() {
	d.s.flush()
	d.clearSlots(0xff)
	d.log.Info("decoder flushed", "frames", d.seq)
}

// Close flushes the decoder and stops its workers.
func (d *Decoder) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.closed {
			return nil
		}
		d.flush()
		d.s.close()
		d.closed = true
		d.log.Info("decoder closed")
		return nil
	})
}
