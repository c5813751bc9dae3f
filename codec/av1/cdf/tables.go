/*
DESCRIPTION
  tables.go describes the layout of the adaptive CDF tables held by a
  Context and provides the generation of the quantiser indexed defaults.

AUTHORS
  The Australian Ocean Lab (AusOcean) av1 developers

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package cdf

// Table identifies a group of CDFs for one syntax element.
type Table int

// Syntax element tables. The comment after each gives the number of
// contexts and the number of symbols.
const (
	Partition8    Table = iota // 4, 4
	Partition128               // 4, 8
	Partition                  // 12 (3 levels x 4), 10
	SegPred                    // 3, 2
	SegID                      // 3, 8
	SkipMode                   // 3, 2
	Skip                       // 3, 2
	DeltaQ                     // 1, 4
	DeltaLF                    // 1, 4
	DeltaLFMulti               // 4, 4
	IntraBC                    // 1, 2
	IsInter                    // 4, 2
	KfYMode                    // 25 (5x5), 13
	YMode                      // 4, 13
	UVModeNoCFL                // 13, 13
	UVModeCFL                  // 13, 14
	AngleDelta                 // 8, 7
	CFLSign                    // 1, 8
	CFLAlpha                   // 6, 16
	PaletteY                   // 21 (7x3), 2
	PaletteUV                  // 2, 2
	PaletteSizeY               // 7, 7
	PaletteSizeUV              // 7, 7
	PaletteColor2              // 10 (2 planes x 5), 2
	PaletteColor3              // 10, 3
	PaletteColor4              // 10, 4
	PaletteColor5              // 10, 5
	PaletteColor6              // 10, 6
	PaletteColor7              // 10, 7
	PaletteColor8              // 10, 8
	CompMode                   // 5, 2
	SingleRef                  // 18 (3x6), 2
	CompFwdRef                 // 9 (3x3), 2
	CompBwdRef                 // 6 (3x2), 2
	NewMV                      // 6, 2
	GlobalMV                   // 2, 2
	RefMV                      // 6, 2
	DRL                        // 3, 2
	CompInterMode              // 8, 8
	MVJoint                    // 2, 4
	MVSign                     // 4, 2
	MVClass                    // 4, 11
	MVClass0                   // 4, 2
	MVBits                     // 40 (4x10), 2
	MVClass0Fp                 // 8 (4x2), 4
	MVFp                       // 4, 4
	MVClass0Hp                 // 4, 2
	MVHp                       // 4, 2
	MotionMode                 // 22, 3
	OBMC                       // 22, 2
	InterpFilter               // 16, 3
	TxSize8                    // 3, 2
	TxSize                     // 9 (3x3), 3
	TxfmSplit                  // 21, 2
	TxTypeIntra                // 4, 7
	TxTypeInter                // 4, 16
	TxbSkip                    // 65 (5x13), 2
	EOBPt16                    // 2, 5
	EOBPt32                    // 2, 6
	EOBPt64                    // 2, 7
	EOBPt128                   // 2, 8
	EOBPt256                   // 2, 9
	EOBPt512                   // 2, 10
	EOBPt1024                  // 2, 11
	EOBExtra                   // 90 (5x2x9), 2
	BaseEOB                    // 40 (5x2x4), 3
	Base                       // 420 (5x2x42), 4
	BR                         // 210 (5x2x21), 4
	DCSign                     // 6 (2x3), 2
	LRSwitchable               // 1, 3
	LRWiener                   // 1, 2
	LRSgrproj                  // 1, 2
	numTables
)

type layout struct {
	ctxs, n int
	off     int
}

var tables = [numTables]layout{
	Partition8:    {ctxs: 4, n: 4},
	Partition128:  {ctxs: 4, n: 8},
	Partition:     {ctxs: 12, n: 10},
	SegPred:       {ctxs: 3, n: 2},
	SegID:         {ctxs: 3, n: 8},
	SkipMode:      {ctxs: 3, n: 2},
	Skip:          {ctxs: 3, n: 2},
	DeltaQ:        {ctxs: 1, n: 4},
	DeltaLF:       {ctxs: 1, n: 4},
	DeltaLFMulti:  {ctxs: 4, n: 4},
	IntraBC:       {ctxs: 1, n: 2},
	IsInter:       {ctxs: 4, n: 2},
	KfYMode:       {ctxs: 25, n: 13},
	YMode:         {ctxs: 4, n: 13},
	UVModeNoCFL:   {ctxs: 13, n: 13},
	UVModeCFL:     {ctxs: 13, n: 14},
	AngleDelta:    {ctxs: 8, n: 7},
	CFLSign:       {ctxs: 1, n: 8},
	CFLAlpha:      {ctxs: 6, n: 16},
	PaletteY:      {ctxs: 21, n: 2},
	PaletteUV:     {ctxs: 2, n: 2},
	PaletteSizeY:  {ctxs: 7, n: 7},
	PaletteSizeUV: {ctxs: 7, n: 7},
	PaletteColor2: {ctxs: 10, n: 2},
	PaletteColor3: {ctxs: 10, n: 3},
	PaletteColor4: {ctxs: 10, n: 4},
	PaletteColor5: {ctxs: 10, n: 5},
	PaletteColor6: {ctxs: 10, n: 6},
	PaletteColor7: {ctxs: 10, n: 7},
	PaletteColor8: {ctxs: 10, n: 8},
	CompMode:      {ctxs: 5, n: 2},
	SingleRef:     {ctxs: 18, n: 2},
	CompFwdRef:    {ctxs: 9, n: 2},
	CompBwdRef:    {ctxs: 6, n: 2},
	NewMV:         {ctxs: 6, n: 2},
	GlobalMV:      {ctxs: 2, n: 2},
	RefMV:         {ctxs: 6, n: 2},
	DRL:           {ctxs: 3, n: 2},
	CompInterMode: {ctxs: 8, n: 8},
	MVJoint:       {ctxs: 2, n: 4},
	MVSign:        {ctxs: 4, n: 2},
	MVClass:       {ctxs: 4, n: 11},
	MVClass0:      {ctxs: 4, n: 2},
	MVBits:        {ctxs: 40, n: 2},
	MVClass0Fp:    {ctxs: 8, n: 4},
	MVFp:          {ctxs: 4, n: 4},
	MVClass0Hp:    {ctxs: 4, n: 2},
	MVHp:          {ctxs: 4, n: 2},
	MotionMode:    {ctxs: 22, n: 3},
	OBMC:          {ctxs: 22, n: 2},
	InterpFilter:  {ctxs: 16, n: 3},
	TxSize8:       {ctxs: 3, n: 2},
	TxSize:        {ctxs: 9, n: 3},
	TxfmSplit:     {ctxs: 21, n: 2},
	TxTypeIntra:   {ctxs: 4, n: 7},
	TxTypeInter:   {ctxs: 4, n: 16},
	TxbSkip:       {ctxs: 65, n: 2},
	EOBPt16:       {ctxs: 2, n: 5},
	EOBPt32:       {ctxs: 2, n: 6},
	EOBPt64:       {ctxs: 2, n: 7},
	EOBPt128:      {ctxs: 2, n: 8},
	EOBPt256:      {ctxs: 2, n: 9},
	EOBPt512:      {ctxs: 2, n: 10},
	EOBPt1024:     {ctxs: 2, n: 11},
	EOBExtra:      {ctxs: 90, n: 2},
	BaseEOB:       {ctxs: 40, n: 3},
	Base:          {ctxs: 420, n: 4},
	BR:            {ctxs: 210, n: 4},
	DCSign:        {ctxs: 6, n: 2},
	LRSwitchable:  {ctxs: 1, n: 3},
	LRWiener:      {ctxs: 1, n: 2},
	LRSgrproj:     {ctxs: 1, n: 2},
}

// size is the total number of uint16 elements in a Context.
var size int

// QCategories is the number of quantiser categories with distinct defaults.
const QCategories = 4

// defaults holds the baseline tables per quantiser category.
var defaults [QCategories][]uint16

func init() {
	for i := range tables {
		tables[i].off = size
		size += tables[i].ctxs * tables[i].n
	}
	for q := range defaults {
		defaults[q] = make([]uint16, size)
		genDefaults(defaults[q], q)
	}
}

// QCategory returns the default table category for quantiser index qidx.
func QCategory(qidx int) int {
	switch {
	case qidx <= 20:
		return 0
	case qidx <= 60:
		return 1
	case qidx <= 120:
		return 2
	default:
		return 3
	}
}

// genDefaults fills buf with geometrically decaying distributions. The decay
// varies with table, context and quantiser category so that neighbouring
// contexts do not share a distribution.
func genDefaults(buf []uint16, qcat int) {
	w := make([]int, 16)
	for id, t := range tables {
		for c := 0; c < t.ctxs; c++ {
			cdf := buf[t.off+c*t.n : t.off+(c+1)*t.n]
			ratio := 6 + (id*7+c*3+qcat*5)%10
			total := 0
			v := 4096
			for k := 0; k < t.n; k++ {
				w[k] = v
				total += v
				v = v * ratio / 16
				if v < 1 {
					v = 1
				}
			}
			cum := 0
			for k := 0; k < t.n-1; k++ {
				cum += w[k]
				cdf[k] = uint16(32768 - cum*32768/total)
			}
			cdf[t.n-1] = 0
		}
	}
}

// Symbols returns the number of symbols coded with table t.
func Symbols(t Table) int { return tables[t].n }

// Contexts returns the number of contexts of table t.
func Contexts(t Table) int { return tables[t].ctxs }
