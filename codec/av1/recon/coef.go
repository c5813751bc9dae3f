/*
DESCRIPTION
  coef.go provides transform coefficient reading: the all zero flag,
  transform type, end of block position, base and range levels, signs and
  the Exp-Golomb coded remainder, and the residual added to predictions.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package recon

import (
	"github.com/pkg/errors"

	"github.com/ausocean/av1/codec/av1/av1dec"
	"github.com/ausocean/av1/codec/av1/cdf"
)

// ErrGolomb is returned for a coefficient remainder with a prefix of 20 or
// more zeros.
var ErrGolomb = errors.New("coefficient golomb prefix too long")

const (
	maxGolombPrefix = 20
	golombForce     = 8 // Prefix length from which writers are asked to stop.
	brRounds        = 4
	maxBaseLevel    = 15
)

// scans holds the up-right diagonal scan of each coded transform size.
var scans [av1dec.TX32x32 + 1][]uint16

func init() {
	for tx := range scans {
		n := 4 << uint(tx)
		s := make([]uint16, 0, n*n)
		for d := 0; d < 2*n-1; d++ {
			for r := min(d, n-1); r >= max(0, d-n+1); r-- {
				s = append(s, uint16(r*n+d-r))
			}
		}
		scans[tx] = s
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadCoefficients reads the coefficients of every transform block of b in
// plane order.
func (k kernels[P]) ReadCoefficients(w *av1dec.Worker, b *av1dec.Block) error {
	s := scratchOf[P](w)
	for p := 0; p < 3; p++ {
		res := &b.Res[p]
		res.EOB, res.TxType, res.Coefs = res.EOB[:0], res.TxType[:0], res.Coefs[:0]
		for _, t := range res.Tx {
			err := s.readTx(w, b, p, t, res)
			if err != nil {
				return errors.Wrapf(err, "plane %d transform at %d,%d", p, t.X4, t.Y4)
			}
		}
	}
	return nil
}

func (s *scratch[P]) readTx(w *av1dec.Worker, b *av1dec.Block, p int, t av1dec.TxBlock, res *av1dec.Residual) error {
	tx := int(t.Size)
	x4, y4 := int(t.X4), int(t.Y4)
	ptype := min(p, 1)
	above, left, dcSign := w.CoefContext(p, x4, y4, tx)

	c := 9 + b2i(above > 0) + b2i(left > 0)
	if p == 0 {
		c = min(int(above), 2)*3 + min(int(left), 2)
	}
	if sym(w, cdf.TxbSkip, tx*13+c) == 1 {
		res.EOB = append(res.EOB, 0)
		res.TxType = append(res.TxType, 0)
		w.SetCoefContext(p, x4, y4, tx, 0, 0)
		return nil
	}

	typ := 0
	if p == 0 && tx <= av1dec.TX16x16 {
		if b.Intra {
			typ = sym(w, cdf.TxTypeIntra, tx)
		} else {
			typ = sym(w, cdf.TxTypeInter, tx)
		}
	}

	coded := av1dec.TxCoded(tx)
	n := 4 << uint(coded)
	area := n * n
	set := tx*2 + ptype
	eobPt := sym(w, cdf.EOBPt16+cdf.Table(2*coded), ptype) + 1
	eob := eobPt
	if eobPt >= 2 {
		eob = 1<<uint(eobPt-2) + 1
	}
	if eobPt >= 3 {
		if sym(w, cdf.EOBExtra, set*9+eobPt-3) == 1 {
			eob += 1 << uint(eobPt-3)
		}
		for i := 1; i <= eobPt-3; i++ {
			if w.T.Reader.BoolEqui() {
				eob += 1 << uint(eobPt-3-i)
			}
		}
	}

	stride := n + 4
	lv := grow(s.levels, stride*stride)
	for i := range lv {
		lv[i] = 0
	}
	s.levels = lv
	scan := scans[coded]
	for i := eob - 1; i >= 0; i-- {
		pos := int(scan[i])
		r, c := pos/n, pos%n
		var level int
		if i == eob-1 {
			ctx := 3
			switch {
			case i == 0:
				ctx = 0
			case i <= area/8:
				ctx = 1
			case i <= area/4:
				ctx = 2
			}
			level = sym(w, cdf.BaseEOB, set*4+ctx) + 1
		} else {
			level = sym(w, cdf.Base, set*42+baseCtx(lv, stride, r, c))
		}
		if level > 2 {
			ctx := set*21 + brCtx(lv, stride, r, c)
			for j := 0; j < brRounds; j++ {
				k := sym(w, cdf.BR, ctx)
				level += k
				if k < 3 {
					break
				}
			}
		}
		lv[r*stride+c] = uint8(level)
	}

	dcCtx := 0
	switch {
	case dcSign < 0:
		dcCtx = 1
	case dcSign > 0:
		dcCtx = 2
	}
	cul := 0
	var dc uint8
	for i := 0; i < eob; i++ {
		pos := int(scan[i])
		v := int(lv[(pos/n)*stride+pos%n])
		if v == 0 {
			res.Coefs = append(res.Coefs, 0)
			continue
		}
		var neg bool
		if i == 0 {
			neg = sym(w, cdf.DCSign, ptype*3+dcCtx) == 1
			dc = 2
			if neg {
				dc = 1
			}
		} else {
			neg = w.T.Reader.BoolEqui()
		}
		if v >= maxBaseLevel {
			g, err := golomb(w)
			if err != nil {
				return err
			}
			v += g
		}
		cul = min(cul+v, 63)
		if neg {
			v = -v
		}
		res.Coefs = append(res.Coefs, int32(v))
	}
	res.EOB = append(res.EOB, uint16(eob))
	res.TxType = append(res.TxType, uint8(typ))
	w.SetCoefContext(p, x4, y4, tx, uint8(cul), dc)
	return nil
}

func baseCtx(lv []uint8, stride, r, c int) int {
	if r == 0 && c == 0 {
		return 0
	}
	at := func(r, c int) int { return min(int(lv[r*stride+c]), 3) }
	mag := at(r, c+1) + at(r+1, c) + at(r+1, c+1) + at(r, c+2) + at(r+2, c)
	ctx := min((mag+1)>>1, 4)
	switch {
	case r+c < 2:
		return 1 + ctx
	case r+c < 4:
		return 6 + ctx
	}
	return 11 + ctx
}

func brCtx(lv []uint8, stride, r, c int) int {
	at := func(r, c int) int { return min(int(lv[r*stride+c]), maxBaseLevel) }
	mag := min((at(r, c+1)+at(r+1, c)+at(r+1, c+1)+1)>>1, 6)
	switch {
	case r == 0 && c == 0:
		return mag
	case r < 2 && c < 2:
		return mag + 7
	}
	return mag + 14
}

func golomb(w *av1dec.Worker) (int, error) {
	r := w.T.Reader
	n := 0
	for {
		if n >= golombForce {
			constrain(w, func(v int) bool { return v == 1 })
		}
		if r.BoolEqui() {
			break
		}
		n++
		if n == maxGolombPrefix {
			return 0, ErrGolomb
		}
	}
	x := 1
	for i := 0; i < n; i++ {
		x = x<<1 | b2i(r.BoolEqui())
	}
	return x - 1, nil
}

// addResidual dequantises the coefficients of one transform block at pixel
// position x, y of plane pl and adds them to the prediction already there.
// Transform types flip the block horizontally and vertically.
func (k kernels[P]) addResidual(pl *av1dec.Plane[P], x, y, tx, typ, qidx int, coefs []int32) {
	coded := av1dec.TxCoded(tx)
	n := 4 << uint(coded)
	scan := scans[coded]
	for i, v := range coefs {
		if v == 0 {
			continue
		}
		pos := int(scan[i])
		r, c := pos/n, pos%n
		if typ&1 != 0 {
			c = n - 1 - c
		}
		if typ&2 != 0 {
			r = n - 1 - r
		}
		d := int(v) * qStep(qidx, k.bd, i == 0) >> 3
		o := (y+r)*pl.Stride + x + c
		pl.Pix[o] = k.clip(int(pl.Pix[o]) + d)
	}
}
