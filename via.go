// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// Via geometry offsets. The payload past the interpreted span is carried
// verbatim between decode and encode.
const (
	viaOffX              = 13
	viaOffY              = 17
	viaOffDiameter       = 21
	viaOffHoleSize       = 25
	viaOffFromLayer      = 29
	viaOffToLayer        = 30
	viaOffThermalGap     = 31
	viaOffThermalConds   = 35
	viaOffThermalWidth   = 36
	viaOffDiameterMode   = 40
	viaOffInterpretedEnd = 46

	viaGeometrySize = 88
)

// ViaDiameterMode selects whether the via diameter is uniform or defined
// per layer.
type ViaDiameterMode uint8

// Diameter modes.
const (
	ViaDiameterSimple  ViaDiameterMode = 0
	ViaDiameterFull    ViaDiameterMode = 2
)

// Via is a plated drill connecting two copper layers.
type Via struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	Net string `json:"net,omitempty"`

	X        Coord `json:"x"`
	Y        Coord `json:"y"`
	Diameter Coord `json:"diameter"`
	HoleSize Coord `json:"hole_size"`

	FromLayer Layer `json:"from_layer"`
	ToLayer   Layer `json:"to_layer"`

	ThermalReliefAirGap         Coord `json:"thermal_relief_air_gap"`
	ThermalReliefConductors     uint8 `json:"thermal_relief_conductors"`
	ThermalReliefConductorWidth Coord `json:"thermal_relief_conductor_width"`

	DiameterMode    ViaDiameterMode  `json:"diameter_mode"`
	DiameterByLayer [padLayerCount]Coord `json:"-"`

	raw []byte
}

func decodeVia(r *blockReader) (*Via, error) {
	v := &Via{}
	if _, err := r.readBlock(); err != nil { // unused designator slot
		return nil, err
	}
	if _, err := r.readBlock(); err != nil { // unused stack slot
		return nil, err
	}
	if _, err := r.readBlock(); err != nil { // marker
		return nil, err
	}
	net, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if v.Net, err = readStringBlock(net); err != nil {
		return nil, err
	}
	geo, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if err := v.decodeGeometry(geo); err != nil {
		return nil, err
	}
	perLayer, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(perLayer) > 0 {
		if len(perLayer) != padLayerCount*4 {
			return nil, fmt.Errorf("via per-layer block: %w", ErrBlockTooLarge)
		}
		le := binary.LittleEndian
		for i := 0; i < padLayerCount; i++ {
			v.DiameterByLayer[i] = Coord(le.Uint32(perLayer[i*4:]))
		}
	} else {
		for i := range v.DiameterByLayer {
			v.DiameterByLayer[i] = v.Diameter
		}
	}
	return v, nil
}

func (v *Via) decodeGeometry(b []byte) error {
	if len(b) < viaOffDiameterMode+1 {
		return fmt.Errorf("via geometry: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return err
	}
	v.Layer, v.Flags = hdr.Layer, hdr.Flags
	le := binary.LittleEndian
	v.X = Coord(le.Uint32(b[viaOffX:]))
	v.Y = Coord(le.Uint32(b[viaOffY:]))
	v.Diameter = Coord(le.Uint32(b[viaOffDiameter:]))
	v.HoleSize = Coord(le.Uint32(b[viaOffHoleSize:]))
	v.FromLayer = Layer(b[viaOffFromLayer])
	v.ToLayer = Layer(b[viaOffToLayer])
	v.ThermalReliefAirGap = Coord(le.Uint32(b[viaOffThermalGap:]))
	v.ThermalReliefConductors = b[viaOffThermalConds]
	v.ThermalReliefConductorWidth = Coord(le.Uint32(b[viaOffThermalWidth:]))
	v.DiameterMode = ViaDiameterMode(b[viaOffDiameterMode])
	v.raw = append([]byte(nil), b...)
	return nil
}

func (v *Via) encode(w *blockWriter) error {
	w.writeByte(recordTypeVia)
	w.writeBlock(stringBlock(""))
	w.writeBlock(nil)
	w.writeBlock([]byte(padStackMarker))
	w.writeBlock(stringBlock(v.Net))

	size := viaGeometrySize
	if len(v.raw) > size {
		size = len(v.raw)
	}
	b := make([]byte, size)
	copy(b, v.raw)
	commonHeader{Layer: v.Layer, Flags: v.Flags}.encode(b)
	le := binary.LittleEndian
	le.PutUint32(b[viaOffX:], uint32(v.X))
	le.PutUint32(b[viaOffY:], uint32(v.Y))
	le.PutUint32(b[viaOffDiameter:], uint32(v.Diameter))
	le.PutUint32(b[viaOffHoleSize:], uint32(v.HoleSize))
	b[viaOffFromLayer] = byte(v.FromLayer)
	b[viaOffToLayer] = byte(v.ToLayer)
	le.PutUint32(b[viaOffThermalGap:], uint32(v.ThermalReliefAirGap))
	b[viaOffThermalConds] = v.ThermalReliefConductors
	le.PutUint32(b[viaOffThermalWidth:], uint32(v.ThermalReliefConductorWidth))
	b[viaOffDiameterMode] = byte(v.DiameterMode)
	w.writeBlock(b)

	if v.DiameterMode != ViaDiameterSimple || v.diametersDiverge() {
		pl := make([]byte, padLayerCount*4)
		for i := 0; i < padLayerCount; i++ {
			le.PutUint32(pl[i*4:], uint32(v.DiameterByLayer[i]))
		}
		w.writeBlock(pl)
	} else {
		w.writeBlock(nil)
	}
	return nil
}

func (v *Via) diametersDiverge() bool {
	allZero := true
	for i := 0; i < padLayerCount; i++ {
		if v.DiameterByLayer[i] != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return false
	}
	for i := 0; i < padLayerCount; i++ {
		if v.DiameterByLayer[i] != v.Diameter {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the via.
func (v *Via) Clone() *Via {
	cp := *v
	cp.raw = append([]byte(nil), v.raw...)
	return &cp
}
