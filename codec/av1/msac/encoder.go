/*
DESCRIPTION
  encoder.go provides a range encoder producing data readable by Decoder.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package msac

import "math/bits"

// Encoder is the inverse of Decoder. Symbols written with an Encoder and
// the same sequence of CDFs are read back unchanged by a Decoder.
type Encoder struct {
	precarry []uint16
	low      uint64
	rng      uint32
	cnt      int
	noAdapt  bool
}

// NewEncoder returns a new Encoder. disableUpdate must match the value
// given to the Decoder that will read the output.
func NewEncoder(disableUpdate bool) *Encoder {
	return &Encoder{rng: 0x8000, cnt: -9, noAdapt: disableUpdate}
}

// Symbol encodes symbol s of n using cdf and adapts cdf.
func (e *Encoder) Symbol(cdf []uint16, s, n int) {
	last := n - 1
	fl := uint32(32768)
	if s > 0 {
		fl = uint32(cdf[s-1])
	}
	var fh uint32
	if s < last {
		fh = uint32(cdf[s])
	}
	l := e.low
	r := e.rng
	if fl < 32768 {
		u := ((r >> 8) * (fl >> probShift) >> (7 - probShift)) + minProb*uint32(last-(s-1))
		v := ((r >> 8) * (fh >> probShift) >> (7 - probShift)) + minProb*uint32(last-s)
		l += uint64(r - u)
		r = u - v
	} else {
		r -= ((r >> 8) * (fh >> probShift) >> (7 - probShift)) + minProb*uint32(last-s)
	}
	e.normalize(l, r)
	if !e.noAdapt {
		Adapt(cdf, s, n)
	}
}

// Bool encodes val, which is true with probability f/32768.
func (e *Encoder) Bool(val bool, f uint) {
	l := e.low
	r := e.rng
	v := ((r >> 8) * uint32(f>>probShift) >> (7 - probShift)) + minProb
	if val {
		l += uint64(r - v)
		r = v
	} else {
		r -= v
	}
	e.normalize(l, r)
}

// BoolEqui encodes an equiprobable boolean.
func (e *Encoder) BoolEqui(val bool) { e.Bool(val, 16384) }

// Bools encodes the low n bits of v, most significant bit first.
func (e *Encoder) Bools(v uint, n int) {
	for i := n - 1; i >= 0; i-- {
		e.BoolEqui(v>>uint(i)&1 == 1)
	}
}

func (e *Encoder) normalize(low uint64, rng uint32) {
	c := e.cnt
	d := bits.LeadingZeros32(rng) - 16
	s := c + d
	if s >= 0 {
		c += 16
		m := uint64(1)<<uint(c) - 1
		if s >= 8 {
			e.precarry = append(e.precarry, uint16(low>>uint(c)))
			low &= m
			c -= 8
			m >>= 8
		}
		e.precarry = append(e.precarry, uint16(low>>uint(c)))
		s = c + d - 24
		low &= m
	}
	e.low = low << uint(d)
	e.rng = rng << uint(d)
	e.cnt = s
}

// Done flushes the encoder and returns the coded bytes. The Encoder must
// not be used after Done.
func (e *Encoder) Done() []byte {
	const m = 0x3fff
	c := e.cnt
	s := 10 + c
	v := ((e.low + m) &^ m) | (m + 1)
	buf := e.precarry
	if s > 0 {
		n := uint64(1)<<uint(c+16) - 1
		for {
			buf = append(buf, uint16(v>>uint(c+16)))
			v &= n
			s -= 8
			c -= 8
			n >>= 8
			if s <= 0 {
				break
			}
		}
	}
	out := make([]byte, len(buf))
	var carry uint32
	for i := len(buf) - 1; i >= 0; i-- {
		carry += uint32(buf[i])
		out[i] = byte(carry)
		carry >>= 8
	}
	return out
}
