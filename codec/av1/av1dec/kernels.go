/*
DESCRIPTION
  kernels.go provides the contracts between the block decoder and its
  collaborators: the symbol source and the reconstruction kernels.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package av1dec provides the AV1 tile and block decode state machine: the
// superblock partition recursion, per block syntax decode with its neighbour
// contexts, and the per tile state shared with the decode scheduler.
package av1dec

import "github.com/pkg/errors"

// SymbolReader is a source of entropy coded symbols. *msac.Decoder is the
// SymbolReader used for decoding.
type SymbolReader interface {
	// Symbol returns a symbol in [0, n) coded with the adaptive cdf.
	Symbol(cdf []uint16, n int) int

	// Bool returns a boolean that is true with probability f/32768.
	Bool(f uint) bool

	// BoolEqui returns an equiprobable boolean.
	BoolEqui() bool

	// Bools returns an n bit literal.
	Bools(n int) uint

	// Overread returns true if more data was consumed than available.
	Overread() bool
}

// A Constrainer is a SymbolReader that chooses the values it returns rather
// than reading them. Constrain limits the choice made by the next Symbol or
// Bool call to values for which ok returns true.
type Constrainer interface {
	Constrain(ok func(v int) bool)
}

func constrain(r SymbolReader, ok func(v int) bool) {
	if c, is := r.(Constrainer); is {
		c.Constrain(ok)
	}
}

// Kernels performs the numeric work of reconstruction. An implementation is
// selected once per frame by bit depth.
type Kernels interface {
	// ReadCoefficients reads the residual of every transform block of b
	// using the tile entropy state held by w.
	ReadCoefficients(w *Worker, b *Block) error

	// ReconstructIntra predicts b from neighbouring pixels and adds its
	// residual.
	ReconstructIntra(w *Worker, b *Block)

	// ReconstructInter predicts b from reference pictures or, for intra
	// block copy, from the current picture and adds its residual.
	ReconstructInter(w *Worker, b *Block) error

	// FilterRow applies post-filter stage s to superblock row sby.
	FilterRow(w *Worker, f *Frame, s Stage, sby int)

	// BackupEdge saves the bottom pixel row of superblock row sby of tile t
	// for intra prediction of the next row.
	BackupEdge(f *Frame, t *TileState, sby int)
}

// Errors returned by tile decoding. All but ErrAborted indicate corrupt
// data.
var (
	ErrOverread         = errors.New("tile data overread")
	ErrInvalidPartition = errors.New("partition not allowed for chroma layout")
	ErrInvalidIntrabc   = errors.New("intra block copy vector references undecoded area")
	ErrMissingRef       = errors.New("reference frame not available")
	ErrAborted          = errors.New("tile decode aborted")
)
