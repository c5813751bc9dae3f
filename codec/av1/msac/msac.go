/*
DESCRIPTION
  msac.go provides the multi-symbol arithmetic (range) decoder used to read
  entropy coded AV1 tile data, along with CDF adaptation.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package msac implements the AV1 multi-symbol range coder. A CDF passed to
// the coder is stored inverted (32768 - cumulative probability) and carries
// an adaptation counter in its last element, so a CDF for n symbols has
// length n.
package msac

import "math/bits"

const (
	probShift  = 6
	minProb    = 4
	winSize    = 64
	lotsOfBits = 0x4000

	// overreadSlack is the number of bits a decoder may shift beyond the end
	// of its data before the tile is considered overread.
	overreadSlack = 16
)

// Decoder reads symbols from one tile's entropy coded byte range.
type Decoder struct {
	buf     []byte
	pos     int
	dif     uint64
	rng     uint32
	cnt     int
	shifted int
	noAdapt bool
}

// NewDecoder returns a new Decoder reading from buf. If disableUpdate is
// true CDFs are not adapted as symbols are read.
func NewDecoder(buf []byte, disableUpdate bool) *Decoder {
	d := &Decoder{}
	d.Init(buf, disableUpdate)
	return d
}

// Init resets d to read from buf.
func (d *Decoder) Init(buf []byte, disableUpdate bool) {
	*d = Decoder{
		buf:     buf,
		dif:     1<<(winSize-1) - 1,
		rng:     0x8000,
		cnt:     -15,
		noAdapt: disableUpdate,
	}
	d.refill()
}

func (d *Decoder) refill() {
	s := winSize - 9 - (d.cnt + 15)
	for ; s >= 0 && d.pos < len(d.buf); s -= 8 {
		d.dif ^= uint64(d.buf[d.pos]) << uint(s)
		d.pos++
		d.cnt += 8
	}
	if d.pos >= len(d.buf) {
		d.cnt = lotsOfBits
	}
}

// norm renormalises the range so that rng is in [32768, 65535], shifting in
// ones at the bottom of the window.
func (d *Decoder) norm(dif uint64, rng uint32) {
	n := bits.LeadingZeros32(rng) - 16
	d.cnt -= n
	d.dif = ((dif + 1) << uint(n)) - 1
	d.rng = rng << uint(n)
	d.shifted += n
	if d.cnt < 0 {
		d.refill()
	}
}

// Symbol decodes a symbol in [0, n) using cdf and adapts cdf unless
// adaptation is disabled.
func (d *Decoder) Symbol(cdf []uint16, n int) int {
	c := uint32(d.dif >> (winSize - 16))
	r := d.rng >> 8
	last := n - 1
	var u uint32
	v := d.rng
	val := -1
	for {
		val++
		u = v
		if val == last {
			v = 0
			break
		}
		v = (r * uint32(cdf[val]>>probShift)) >> (7 - probShift)
		v += minProb * uint32(last-val)
		if c >= v {
			break
		}
	}
	d.norm(d.dif-uint64(v)<<(winSize-16), u-v)
	if !d.noAdapt {
		Adapt(cdf, val, n)
	}
	return val
}

// Bool decodes a boolean that is true with probability f/32768.
func (d *Decoder) Bool(f uint) bool {
	dif := d.dif
	r := d.rng
	v := ((r >> 8) * uint32(f>>probShift) >> (7 - probShift)) + minProb
	vw := uint64(v) << (winSize - 16)
	ret := true
	rn := v
	if dif >= vw {
		rn = r - v
		dif -= vw
		ret = false
	}
	d.norm(dif, rn)
	return ret
}

// BoolAdapt decodes a boolean using the adaptive two symbol cdf.
func (d *Decoder) BoolAdapt(cdf []uint16) bool { return d.Symbol(cdf, 2) == 1 }

// BoolEqui decodes an equiprobable boolean.
func (d *Decoder) BoolEqui() bool { return d.Bool(16384) }

// Bools decodes an n bit unsigned literal, most significant bit first.
func (d *Decoder) Bools(n int) uint {
	var v uint
	for i := 0; i < n; i++ {
		v <<= 1
		if d.BoolEqui() {
			v |= 1
		}
	}
	return v
}

// Overread returns true if the decoder has consumed more bits than its data
// could have provided.
func (d *Decoder) Overread() bool {
	return d.shifted > 8*len(d.buf)+overreadSlack
}

// Adapt updates cdf after symbol val of n has been coded.
func Adapt(cdf []uint16, val, n int) {
	last := n - 1
	count := cdf[last]
	rate := 4 + count>>4
	if last > 2 {
		rate++
	}
	for i := 0; i < last; i++ {
		if i < val {
			cdf[i] += (32768 - cdf[i]) >> rate
		} else {
			cdf[i] -= cdf[i] >> rate
		}
	}
	if count < 32 {
		cdf[last]++
	}
}
