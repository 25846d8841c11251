// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// RegionVertex is one polygon vertex in internal units. A non-zero
// ArcAngle bends the edge to the next vertex into an arc of that many
// degrees.
type RegionVertex struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ArcAngle float64 `json:"arc_angle,omitempty"`
}

// Region is a polygonal area primitive. Its parameter blob carries the
// layer name and region kind; the vertex list follows as packed doubles.
type Region struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	Parameters *ParameterList `json:"parameters"`
	Vertices   []RegionVertex `json:"vertices"`

	// Outline cache block, opaque, may be empty.
	outline []byte
}

// RegionKind returns the KIND parameter, 0 when absent.
func (g *Region) RegionKind() int {
	return g.Parameters.GetInt("KIND", 0)
}

func decodeRegion(r *blockReader) (*Region, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < CommonHeaderSize+4 {
		return nil, fmt.Errorf("region: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	g := &Region{Layer: hdr.Layer, Flags: hdr.Flags}

	le := binary.LittleEndian
	off := CommonHeaderSize
	paramLen := int(le.Uint32(b[off:]))
	off += 4
	if paramLen > len(b)-off {
		return nil, fmt.Errorf("region parameters: %w", ErrBlockTooLarge)
	}
	g.Parameters = ParseParameters(b[off : off+paramLen])
	off += paramLen

	if len(b)-off < 4 {
		return nil, fmt.Errorf("region vertex count: %w", ErrBlockTooLarge)
	}
	count := int(le.Uint32(b[off:]))
	off += 4
	if count < 0 || count*16 > len(b)-off {
		return nil, fmt.Errorf("region vertices: %w", ErrBlockTooLarge)
	}
	g.Vertices = make([]RegionVertex, count)
	for i := 0; i < count; i++ {
		g.Vertices[i].X = float64frombits(le.Uint64(b[off:]))
		g.Vertices[i].Y = float64frombits(le.Uint64(b[off+8:]))
		off += 16
	}

	// Arc angles travel in the parameter blob keyed by vertex index.
	for i := range g.Vertices {
		key := fmt.Sprintf("V%dARCANGLE", i)
		if v, ok := g.Parameters.Get(key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				g.Vertices[i].ArcAngle = f
			}
			g.Parameters.Remove(key)
		}
	}

	outline, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(outline) > 0 {
		g.outline = append([]byte(nil), outline...)
	}
	return g, nil
}

func (g *Region) encode(w *blockWriter) error {
	params := g.Parameters
	if params == nil {
		params = &ParameterList{}
	}
	params = params.Clone()
	for i, v := range g.Vertices {
		if v.ArcAngle != 0 {
			params.Set(fmt.Sprintf("V%dARCANGLE", i), formatFloat(v.ArcAngle))
		}
	}
	blob := params.Encode()

	le := binary.LittleEndian
	b := make([]byte, CommonHeaderSize+4+len(blob)+4+len(g.Vertices)*16)
	commonHeader{Layer: g.Layer, Flags: g.Flags}.encode(b)
	off := CommonHeaderSize
	le.PutUint32(b[off:], uint32(len(blob)))
	off += 4
	copy(b[off:], blob)
	off += len(blob)
	le.PutUint32(b[off:], uint32(len(g.Vertices)))
	off += 4
	for _, v := range g.Vertices {
		le.PutUint64(b[off:], float64bits(v.X))
		le.PutUint64(b[off+8:], float64bits(v.Y))
		off += 16
	}

	w.writeByte(recordTypeRegion)
	w.writeBlock(b)
	w.writeBlock(g.outline)
	return nil
}

// Clone returns a deep copy of the region.
func (g *Region) Clone() *Region {
	cp := *g
	if g.Parameters != nil {
		cp.Parameters = g.Parameters.Clone()
	}
	cp.Vertices = append([]RegionVertex(nil), g.Vertices...)
	cp.outline = append([]byte(nil), g.outline...)
	return &cp
}
