// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// Fill geometry offsets.
const (
	fillOffX1       = 13
	fillOffY1       = 17
	fillOffX2       = 21
	fillOffY2       = 25
	fillOffRotation = 29

	fillGeometrySize = 46
)

// Fill is a solid rectangle, defined by two corners and a rotation about
// the first.
type Fill struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	X1       Coord   `json:"x1"`
	Y1       Coord   `json:"y1"`
	X2       Coord   `json:"x2"`
	Y2       Coord   `json:"y2"`
	Rotation float64 `json:"rotation"`

	raw []byte
}

func decodeFill(r *blockReader) (*Fill, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < fillOffRotation+8 {
		return nil, fmt.Errorf("fill geometry: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	f := &Fill{
		Layer:    hdr.Layer,
		Flags:    hdr.Flags,
		X1:       Coord(le.Uint32(b[fillOffX1:])),
		Y1:       Coord(le.Uint32(b[fillOffY1:])),
		X2:       Coord(le.Uint32(b[fillOffX2:])),
		Y2:       Coord(le.Uint32(b[fillOffY2:])),
		Rotation: float64frombits(le.Uint64(b[fillOffRotation:])),
		raw:      append([]byte(nil), b...),
	}
	return f, nil
}

func (f *Fill) encode(w *blockWriter) error {
	size := fillGeometrySize
	if len(f.raw) > size {
		size = len(f.raw)
	}
	b := make([]byte, size)
	copy(b, f.raw)
	commonHeader{Layer: f.Layer, Flags: f.Flags}.encode(b)
	le := binary.LittleEndian
	le.PutUint32(b[fillOffX1:], uint32(f.X1))
	le.PutUint32(b[fillOffY1:], uint32(f.Y1))
	le.PutUint32(b[fillOffX2:], uint32(f.X2))
	le.PutUint32(b[fillOffY2:], uint32(f.Y2))
	le.PutUint64(b[fillOffRotation:], float64bits(f.Rotation))
	w.writeByte(recordTypeFill)
	w.writeBlock(b)
	return nil
}

// Clone returns a deep copy of the fill.
func (f *Fill) Clone() *Fill {
	cp := *f
	cp.raw = append([]byte(nil), f.raw...)
	return &cp
}
