// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// Arc geometry offsets.
const (
	arcOffX          = 13
	arcOffY          = 17
	arcOffRadius     = 21
	arcOffStartAngle = 25
	arcOffEndAngle   = 33
	arcOffWidth      = 41

	arcGeometrySize = 56
)

// Arc is a circular stroke segment on a board layer. Angles are degrees,
// counter-clockwise from the positive X axis.
type Arc struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	X          Coord   `json:"x"`
	Y          Coord   `json:"y"`
	Radius     Coord   `json:"radius"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	Width      Coord   `json:"width"`

	raw []byte
}

func decodeArc(r *blockReader) (*Arc, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < arcOffWidth+4 {
		return nil, fmt.Errorf("arc geometry: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	a := &Arc{
		Layer:      hdr.Layer,
		Flags:      hdr.Flags,
		X:          Coord(le.Uint32(b[arcOffX:])),
		Y:          Coord(le.Uint32(b[arcOffY:])),
		Radius:     Coord(le.Uint32(b[arcOffRadius:])),
		StartAngle: float64frombits(le.Uint64(b[arcOffStartAngle:])),
		EndAngle:   float64frombits(le.Uint64(b[arcOffEndAngle:])),
		Width:      Coord(le.Uint32(b[arcOffWidth:])),
		raw:        append([]byte(nil), b...),
	}
	return a, nil
}

func (a *Arc) encode(w *blockWriter) error {
	size := arcGeometrySize
	if len(a.raw) > size {
		size = len(a.raw)
	}
	b := make([]byte, size)
	copy(b, a.raw)
	commonHeader{Layer: a.Layer, Flags: a.Flags}.encode(b)
	le := binary.LittleEndian
	le.PutUint32(b[arcOffX:], uint32(a.X))
	le.PutUint32(b[arcOffY:], uint32(a.Y))
	le.PutUint32(b[arcOffRadius:], uint32(a.Radius))
	le.PutUint64(b[arcOffStartAngle:], float64bits(a.StartAngle))
	le.PutUint64(b[arcOffEndAngle:], float64bits(a.EndAngle))
	le.PutUint32(b[arcOffWidth:], uint32(a.Width))
	w.writeByte(recordTypeArc)
	w.writeBlock(b)
	return nil
}

// Clone returns a deep copy of the arc.
func (a *Arc) Clone() *Arc {
	cp := *a
	cp.raw = append([]byte(nil), a.raw...)
	return &cp
}
