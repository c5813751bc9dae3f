/*
DESCRIPTION
  inter.go provides inter and intra block copy prediction: bilinear motion
  compensation, compound averaging and overlapped block motion
  compensation.

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
	"github.com/ausocean/av1/codec/av1/header"
)

// ReconstructInter predicts b from its references, or from the current
// picture for intra block copy, and adds the residual. Warped motion is
// predicted as translation.
func (k kernels[P]) ReconstructInter(w *av1dec.Worker, b *av1dec.Block) error {
	f := w.F
	s := scratchOf[P](w)
	for p := 0; p < 3; p++ {
		if p > 0 && !b.HasChroma {
			break
		}
		pl := av1dec.PlaneOf[P](f.Pic, p)
		bx, by, bw4, bh4 := b.PlaneRect(p, f.Hdr.Layout)
		x, y := bx*4, by*4
		gw, gh := gridSize(f, p)
		bw, bh := min(bw4*4, gw-x), min(bh4*4, gh-y)

		s.pred = grow(s.pred, bw*bh)
		err := k.predict(w, b, 0, p, x, y, bw, bh, s.pred)
		if err != nil {
			return err
		}
		if b.IsComp() {
			s.pred2 = grow(s.pred2, bw*bh)
			err = k.predict(w, b, 1, p, x, y, bw, bh, s.pred2)
			if err != nil {
				return err
			}
			for i := range s.pred {
				s.pred[i] = (s.pred[i] + s.pred2[i] + 1) >> 1
			}
		}
		if p == 0 && b.Motion == av1dec.MotionOBMC {
			err = k.obmc(w, s, b, x, y, bw, bh)
			if err != nil {
				return err
			}
		}
		k.store(pl, x, y, bw, bh, s.pred)

		res := &b.Res[p]
		off := 0
		for i, t := range res.Tx {
			if i >= len(res.EOB) {
				break
			}
			e := int(res.EOB[i])
			k.addResidual(pl, int(t.X4)*4, int(t.Y4)*4, int(t.Size), int(res.TxType[i]), b.QIdx, res.Coefs[off:off+e])
			off += e
		}
	}
	return nil
}

func (k kernels[P]) source(f *av1dec.Frame, b *av1dec.Block, ref, p int) (*av1dec.Plane[P], error) {
	if b.BC {
		return av1dec.PlaneOf[P](f.Pic, p), nil
	}
	r := f.Refs[ref-header.Last]
	if r == nil || r.Pic == nil {
		return nil, errors.Wrapf(av1dec.ErrMissingRef, "reference %d", ref)
	}
	return av1dec.PlaneOf[P](r.Pic, p), nil
}

func (k kernels[P]) predict(w *av1dec.Worker, b *av1dec.Block, i, p, x, y, bw, bh int, dst []int32) error {
	src, err := k.source(w.F, b, int(b.Ref[i]), p)
	if err != nil {
		return err
	}
	sx, sy := sub(w.F, p)
	mc(src, b.MV[i], sx, sy, x, y, bw, bh, dst)
	return nil
}

// mc predicts the w by h block at x, y from src displaced by mv, in eighth
// luma pixels, with bilinear interpolation at sixteenth pixel precision.
// Rows and columns past the block are read only for a non-zero fraction.
func mc[P av1dec.Pixel](src *av1dec.Plane[P], mv av1dec.MV, sx, sy uint, x, y, w, h int, dst []int32) {
	ix := x + int(mv.X>>(3+sx))
	iy := y + int(mv.Y>>(3+sy))
	fx := int32(mv.X&(8<<sx-1)) << (1 - sx)
	fy := int32(mv.Y&(8<<sy-1)) << (1 - sy)
	row := func(xx, yy int) int32 {
		v := int32(src.At(xx, yy)) * 16
		if fx != 0 {
			v += (int32(src.At(xx+1, yy)) - int32(src.At(xx, yy))) * fx
		}
		return v
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			v := row(ix+i, iy+j) * 16
			if fy != 0 {
				v += (row(ix+i, iy+j+1) - row(ix+i, iy+j)) * fy
			}
			dst[j*w+i] = (v + 128) >> 8
		}
	}
}

// obmc blends the predictions made with the motion of the neighbours above
// and to the left into the luma prediction of b, weighted towards the
// shared edge.
func (k kernels[P]) obmc(w *av1dec.Worker, s *scratch[P], b *av1dec.Block, x, y, bw, bh int) error {
	f := w.F
	var err error
	w.OBMCNeighbours(b, func(above bool, ref int, mv av1dec.MV, x4, y4, w4, h4 int) {
		if err != nil {
			return
		}
		rx, ry := x4*4-x, y4*4-y
		rw, rh := min(w4*4, bw-rx), min(h4*4, bh-ry)
		if rw <= 0 || rh <= 0 {
			return
		}
		r := f.Refs[ref-header.Last]
		if r == nil || r.Pic == nil {
			err = errors.Wrapf(av1dec.ErrMissingRef, "overlapped reference %d", ref)
			return
		}
		s.obmc = grow(s.obmc, rw*rh)
		mc(av1dec.PlaneOf[P](r.Pic, 0), mv, 0, 0, x4*4, y4*4, rw, rh, s.obmc)
		for j := 0; j < rh; j++ {
			for i := 0; i < rw; i++ {
				d, n := i, rw
				if above {
					d, n = j, rh
				}
				m := int32(32 - 32*d/n)
				o := &s.pred[(ry+j)*bw+rx+i]
				*o = (*o*(64-m) + s.obmc[j*rw+i]*m + 32) >> 6
			}
		}
	})
	return err
}
