// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// Track geometry offsets.
const (
	trackOffX1    = 13
	trackOffY1    = 17
	trackOffX2    = 21
	trackOffY2    = 25
	trackOffWidth = 29

	trackGeometrySize = 45
)

// Track is a straight copper or silkscreen segment.
type Track struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	X1    Coord `json:"x1"`
	Y1    Coord `json:"y1"`
	X2    Coord `json:"x2"`
	Y2    Coord `json:"y2"`
	Width Coord `json:"width"`

	raw []byte
}

func decodeTrack(r *blockReader) (*Track, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < trackOffWidth+4 {
		return nil, fmt.Errorf("track geometry: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	t := &Track{
		Layer: hdr.Layer,
		Flags: hdr.Flags,
		X1:    Coord(le.Uint32(b[trackOffX1:])),
		Y1:    Coord(le.Uint32(b[trackOffY1:])),
		X2:    Coord(le.Uint32(b[trackOffX2:])),
		Y2:    Coord(le.Uint32(b[trackOffY2:])),
		Width: Coord(le.Uint32(b[trackOffWidth:])),
		raw:   append([]byte(nil), b...),
	}
	return t, nil
}

func (t *Track) encode(w *blockWriter) error {
	size := trackGeometrySize
	if len(t.raw) > size {
		size = len(t.raw)
	}
	b := make([]byte, size)
	copy(b, t.raw)
	commonHeader{Layer: t.Layer, Flags: t.Flags}.encode(b)
	le := binary.LittleEndian
	le.PutUint32(b[trackOffX1:], uint32(t.X1))
	le.PutUint32(b[trackOffY1:], uint32(t.Y1))
	le.PutUint32(b[trackOffX2:], uint32(t.X2))
	le.PutUint32(b[trackOffY2:], uint32(t.Y2))
	le.PutUint32(b[trackOffWidth:], uint32(t.Width))
	w.writeByte(recordTypeTrack)
	w.writeBlock(b)
	return nil
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() *Track {
	cp := *t
	cp.raw = append([]byte(nil), t.raw...)
	return &cp
}
