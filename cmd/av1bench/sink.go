/*
DESCRIPTION
  sink.go provides sink, which writes decoded pictures to a file from a
  pool buffer so that file writes do not stall decoding.

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
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/synth"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
)

// Pool buffer parameters.
const (
	poolElements     = 16
	poolWriteTimeout = 5 * time.Second
	poolReadTimeout  = 100 * time.Millisecond
)

// sink writes pictures to dst from a separate goroutine.
type sink struct {
	dst  io.Writer
	cls  []io.Closer // Closed in order.
	log  logging.Logger
	pool *pool.Buffer
	buf  bytes.Buffer
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	written int
	err     error
}

// frameBytes returns the largest picture size in bytes for p.
func frameBytes(p synth.Params) int {
	w := p.Width
	if p.SuperRes {
		w *= 2
	}
	n := 3 * w * p.Height
	if p.BitDepth > 8 {
		n *= 2
	}
	return n
}

// newSink returns a sink writing to the file at path, compressed with zstd
// if compress is true. elemSize bounds the size of one picture.
func newSink(path string, compress bool, log logging.Logger, elemSize int) (*sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &sink{
		dst:  f,
		log:  log,
		pool: pool.NewBuffer(poolElements, elemSize, poolWriteTimeout),
		done: make(chan struct{}),
	}
	if compress {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(runtime.NumCPU()))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create zstd encoder: %w", err)
		}
		s.dst = enc
		s.cls = append(s.cls, enc)
	}
	s.cls = append(s.cls, f)
	s.wg.Add(1)
	go s.output()
	return s, nil
}

// output writes chunks from the pool until the sink is closed and the pool
// is empty.
func (s *sink) output() {
	defer s.wg.Done()
	for {
		chunk, err := s.pool.Next(poolReadTimeout)
		switch err {
		case nil:
		case io.EOF:
			continue
		case pool.ErrTimeout:
			select {
			case <-s.done:
				return
			default:
				continue
			}
		default:
			s.log.Error("unexpected pool error", "error", err.Error())
			continue
		}
		_, err = s.dst.Write(chunk.Bytes())
		chunk.Close()
		s.mu.Lock()
		if err != nil && s.err == nil {
			s.err = err
		}
		if err == nil {
			s.written++
		}
		s.mu.Unlock()
		if err != nil {
			s.log.Error("picture write failed", "error", err.Error())
		}
	}
}

// Write queues pic for writing.
func (s *sink) Write(pic *av1dec.Picture) error {
	s.buf.Reset()
	_, err := pic.WriteTo(&s.buf)
	if err != nil {
		return err
	}
	n, err := s.pool.Write(s.buf.Bytes())
	if err != nil {
		s.log.Warning("pool buffer write error", "error", err.Error(), "n", n, "size", s.buf.Len())
		return err
	}
	s.pool.Flush()
	return nil
}

// Close waits for queued pictures to be written and closes the output.
func (s *sink) Close() error {
	close(s.done)
	s.wg.Wait()
	err := s.err
	for _, c := range s.cls {
		cerr := c.Close()
		if err == nil {
			err = cerr
		}
	}
	s.log.Info("output closed", "pictures", s.written)
	return err
}
