/*
DESCRIPTION
  writer.go provides Writer, a symbol source that chooses each value it
  returns and entropy codes it, so that running the tile decoder over a
  Writer produces tile data that decodes to the same blocks.

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
	"math/rand"

	"github.com/ausocean/av1/codec/av1/msac"
)

// maxRetries bounds the number of random literals tried before searching for
// one accepted by a constraint.
const maxRetries = 64

// Writer implements av1dec.SymbolReader and av1dec.Constrainer. Symbols are
// drawn with the probabilities of the CDF they are coded with, so adaptation
// follows the choices made.
type Writer struct {
	enc *msac.Encoder
	rnd *rand.Rand
	ok  func(v int) bool
}

// NewWriter returns a Writer seeded with seed. disableUpdate must match the
// frame the data is written for.
func NewWriter(seed int64, disableUpdate bool) *Writer {
	return &Writer{
		enc: msac.NewEncoder(disableUpdate),
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Constrain limits the next choice to values accepted by ok.
func (w *Writer) Constrain(ok func(v int) bool) { w.ok = ok }

func (w *Writer) take() func(v int) bool {
	ok := w.ok
	w.ok = nil
	return ok
}

// Symbol chooses, codes and returns a symbol in [0, n).
func (w *Writer) Symbol(cdf []uint16, n int) int {
	v := w.pick(cdf, n, w.take())
	w.enc.Symbol(cdf, v, n)
	return v
}

// pick draws a symbol with the probabilities held by cdf, restricted to
// values accepted by ok. Every accepted symbol has a non-zero chance.
func (w *Writer) pick(cdf []uint16, n int, ok func(v int) bool) int {
	var weight [16]int
	total := 0
	for i := 0; i < n; i++ {
		if ok != nil && !ok(i) {
			continue
		}
		hi := 32768
		if i > 0 {
			hi = int(cdf[i-1])
		}
		lo := 0
		if i < n-1 {
			lo = int(cdf[i])
		}
		weight[i] = max(hi-lo, 0) + 1
		total += weight[i]
	}
	if total == 0 {
		return 0
	}
	r := w.rnd.Intn(total)
	for i := 0; i < n; i++ {
		if r < weight[i] {
			return i
		}
		r -= weight[i]
	}
	return n - 1
}

func (w *Writer) boolean(f uint) bool {
	ok := w.take()
	v := w.rnd.Intn(32768) < int(f)
	if ok != nil && !ok(b2i(v)) {
		v = !v
	}
	return v
}

// Bool chooses, codes and returns a boolean that is true with probability
// f/32768.
func (w *Writer) Bool(f uint) bool {
	v := w.boolean(f)
	w.enc.Bool(v, f)
	return v
}

// BoolEqui chooses, codes and returns an equiprobable boolean.
func (w *Writer) BoolEqui() bool {
	v := w.boolean(16384)
	w.enc.BoolEqui(v)
	return v
}

// Bools chooses, codes and returns an n bit literal.
func (w *Writer) Bools(n int) uint {
	ok := w.take()
	mask := uint(1)<<uint(n) - 1
	v := uint(w.rnd.Int63()) & mask
	if ok != nil && !ok(int(v)) {
		found := false
		for i := 0; i < maxRetries && !found; i++ {
			v = uint(w.rnd.Int63()) & mask
			found = ok(int(v))
		}
		for c := uint(0); !found && c <= mask; c++ {
			if ok(int(c)) {
				v, found = c, true
			}
		}
	}
	w.enc.Bools(v, n)
	return v
}

// Overread always returns false.
func (w *Writer) Overread() bool { return false }

// Done returns the coded data. w must not be used afterwards.
func (w *Writer) Done() []byte { return w.enc.Done() }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
