/*
DESCRIPTION
  picture.go provides the decoded picture type and its bit depth generic
  plane access.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package av1dec

import (
	"encoding/binary"
	"io"

	"github.com/ausocean/av1/codec/av1/header"
)

// Pixel is the sample type of a picture: uint8 for 8 bit content and
// uint16 for high bit depth content.
type Pixel interface {
	uint8 | uint16
}

// Plane is one colour plane of a picture. Pix is padded to a multiple of the
// superblock size; W and H give the visible dimensions.
type Plane[P Pixel] struct {
	Pix    []P
	Stride int
	W, H   int // Visible size.
	PW, PH int // Allocated size.
}

// Row returns row y of the plane.
func (p *Plane[P]) Row(y int) []P { return p.Pix[y*p.Stride : y*p.Stride+p.PW] }

// At returns the sample at x, y clamped to the visible area.
func (p *Plane[P]) At(x, y int) P {
	x = clamp(x, 0, p.W-1)
	y = clamp(y, 0, p.H-1)
	return p.Pix[y*p.Stride+x]
}

// Picture is a decoded frame.
type Picture struct {
	Width, Height int
	BitDepth      int
	Layout        header.Layout

	p8  [3]Plane[uint8]
	p16 [3]Plane[uint16]
}

// NewPicture returns a picture of the given visible size with planes padded
// to a multiple of pad luma pixels.
func NewPicture(w, h, bitDepth int, layout header.Layout, pad int) *Picture {
	p := &Picture{Width: w, Height: h, BitDepth: bitDepth, Layout: layout}
	pw := (w + pad - 1) / pad * pad
	ph := (h + pad - 1) / pad * pad
	for i := 0; i < 3; i++ {
		sx, sy := 0, 0
		if i > 0 {
			sx, sy = layout.SubX(), layout.SubY()
		}
		cw, ch := (w+sx)>>uint(sx), (h+sy)>>uint(sy)
		cpw, cph := pw>>uint(sx), ph>>uint(sy)
		if bitDepth == 8 {
			p.p8[i] = Plane[uint8]{Pix: make([]uint8, cpw*cph), Stride: cpw, W: cw, H: ch, PW: cpw, PH: cph}
		} else {
			p.p16[i] = Plane[uint16]{Pix: make([]uint16, cpw*cph), Stride: cpw, W: cw, H: ch, PW: cpw, PH: cph}
		}
	}
	return p
}

// NewEdgeBuffer returns a picture holding one row per superblock row, used to
// keep the unfiltered bottom row of each superblock row for intra prediction.
func NewEdgeBuffer(w, sbRows, bitDepth int, layout header.Layout, pad int) *Picture {
	p := &Picture{Width: w, Height: sbRows, BitDepth: bitDepth, Layout: layout}
	pw := (w + pad - 1) / pad * pad
	for i := 0; i < 3; i++ {
		sx := 0
		if i > 0 {
			sx = layout.SubX()
		}
		cw, cpw := (w+sx)>>uint(sx), pw>>uint(sx)
		if bitDepth == 8 {
			p.p8[i] = Plane[uint8]{Pix: make([]uint8, cpw*sbRows), Stride: cpw, W: cw, H: sbRows, PW: cpw, PH: sbRows}
		} else {
			p.p16[i] = Plane[uint16]{Pix: make([]uint16, cpw*sbRows), Stride: cpw, W: cw, H: sbRows, PW: cpw, PH: sbRows}
		}
	}
	return p
}

// PlaneOf returns plane i of p typed by its pixel type. P must match the
// bit depth of p.
func PlaneOf[P Pixel](p *Picture, i int) *Plane[P] {
	var z P
	if _, ok := any(z).(uint8); ok {
		return any(&p.p8[i]).(*Plane[P])
	}
	return any(&p.p16[i]).(*Plane[P])
}

// Size returns the number of bytes held by the planes of p.
func (p *Picture) Size() int {
	n := 0
	for i := 0; i < 3; i++ {
		n += len(p.p8[i].Pix) + 2*len(p.p16[i].Pix)
	}
	return n
}

// Sample returns the sample at x, y of plane i.
func (p *Picture) Sample(i, x, y int) int {
	if p.BitDepth == 8 {
		return int(p.p8[i].At(x, y))
	}
	return int(p.p16[i].At(x, y))
}

// Equal returns true if the visible samples of p and o are identical.
func (p *Picture) Equal(o *Picture) bool {
	if p.Width != o.Width || p.Height != o.Height || p.BitDepth != o.BitDepth || p.Layout != o.Layout {
		return false
	}
	for i := 0; i < 3; i++ {
		a8, b8 := &p.p8[i], &o.p8[i]
		a16, b16 := &p.p16[i], &o.p16[i]
		w, h := a8.W, a8.H
		if p.BitDepth != 8 {
			w, h = a16.W, a16.H
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if p.BitDepth == 8 && a8.Pix[y*a8.Stride+x] != b8.Pix[y*b8.Stride+x] {
					return false
				}
				if p.BitDepth != 8 && a16.Pix[y*a16.Stride+x] != b16.Pix[y*b16.Stride+x] {
					return false
				}
			}
		}
	}
	return true
}

// WriteTo writes the visible samples of p as planar Y, U, V. High bit depth
// samples are written little endian.
func (p *Picture) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for i := 0; i < 3; i++ {
		var buf []byte
		if p.BitDepth == 8 {
			pl := &p.p8[i]
			buf = make([]byte, 0, pl.W*pl.H)
			for y := 0; y < pl.H; y++ {
				buf = append(buf, pl.Pix[y*pl.Stride:y*pl.Stride+pl.W]...)
			}
		} else {
			pl := &p.p16[i]
			buf = make([]byte, 0, 2*pl.W*pl.H)
			for y := 0; y < pl.H; y++ {
				for _, s := range pl.Pix[y*pl.Stride : y*pl.Stride+pl.W] {
					buf = binary.LittleEndian.AppendUint16(buf, s)
				}
			}
		}
		m, err := w.Write(buf)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
