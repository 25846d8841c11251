// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"strings"
)

// Component body parameter keys.
const (
	bodyKeyModelID    = "MODELID"
	bodyKeyName       = "NAME"
	bodyKeyEmbed      = "MODEL.EMBED"
	bodyKeyRotX       = "MODEL.3D.ROTX"
	bodyKeyRotY       = "MODEL.3D.ROTY"
	bodyKeyRotZ       = "MODEL.3D.ROTZ"
	bodyKeyDZ         = "MODEL.3D.DZ"
	bodyKeyStandoff   = "STANDOFFHEIGHT"
	bodyKeyOverallHgt = "OVERALLHEIGHT"
)

// ComponentBody links a footprint to a 3-D model by GUID. All attributes
// live in the pipe-delimited parameter map, so unrecognised vendor keys
// survive a round-trip untouched.
type ComponentBody struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	Parameters *ParameterList `json:"parameters"`

	// The two trailing blocks of the record, typically empty.
	aux1 []byte
	aux2 []byte
}

// NewComponentBody returns a body with an empty parameter map.
func NewComponentBody() *ComponentBody {
	return &ComponentBody{
		Layer:      LayerMechanical1,
		Parameters: &ParameterList{},
	}
}

// ModelID returns the referenced model GUID, upper-cased, or "".
func (cb *ComponentBody) ModelID() string {
	v, _ := cb.Parameters.Get(bodyKeyModelID)
	return strings.ToUpper(strings.Trim(v, "{}"))
}

// SetModelID stores the model GUID in the canonical braced upper form.
func (cb *ComponentBody) SetModelID(guid string) {
	cb.Parameters.Set(bodyKeyModelID, "{"+strings.ToUpper(strings.Trim(guid, "{}"))+"}")
}

// ModelName returns the model file name.
func (cb *ComponentBody) ModelName() string {
	return cb.Parameters.GetString(bodyKeyName, "")
}

// SetModelName stores the model file name.
func (cb *ComponentBody) SetModelName(name string) {
	cb.Parameters.Set(bodyKeyName, name)
}

// Embedded reports whether the referenced model payload lives inside the
// library.
func (cb *ComponentBody) Embedded() bool {
	return cb.Parameters.GetBool(bodyKeyEmbed, false)
}

// SetEmbedded flags the model reference as embedded or external.
func (cb *ComponentBody) SetEmbedded(v bool) {
	if v {
		cb.Parameters.Set(bodyKeyEmbed, "TRUE")
	} else {
		cb.Parameters.Set(bodyKeyEmbed, "FALSE")
	}
}

// Rotation returns the model rotation about each axis in degrees.
func (cb *ComponentBody) Rotation() (rx, ry, rz float64) {
	return cb.Parameters.GetFloat(bodyKeyRotX, 0),
		cb.Parameters.GetFloat(bodyKeyRotY, 0),
		cb.Parameters.GetFloat(bodyKeyRotZ, 0)
}

// SetRotation stores the model rotation in degrees.
func (cb *ComponentBody) SetRotation(rx, ry, rz float64) {
	cb.Parameters.Set(bodyKeyRotX, formatFloat(rx))
	cb.Parameters.Set(bodyKeyRotY, formatFloat(ry))
	cb.Parameters.Set(bodyKeyRotZ, formatFloat(rz))
}

// ZOffsetMm returns the model z offset in millimetres. The stored value
// may carry a mil or mm suffix.
func (cb *ComponentBody) ZOffsetMm() float64 {
	v, ok := cb.Parameters.Get(bodyKeyDZ)
	if !ok {
		return 0
	}
	mm, err := parseUnitValue(v)
	if err != nil {
		return 0
	}
	return mm
}

// SetZOffsetMm stores the z offset; canonical output carries a mil suffix.
func (cb *ComponentBody) SetZOffsetMm(mm float64) {
	cb.Parameters.Set(bodyKeyDZ, formatMil(mm))
}

// StandoffHeightMm returns the standoff height in millimetres.
func (cb *ComponentBody) StandoffHeightMm() float64 {
	v, ok := cb.Parameters.Get(bodyKeyStandoff)
	if !ok {
		return 0
	}
	mm, err := parseUnitValue(v)
	if err != nil {
		return 0
	}
	return mm
}

// SetStandoffHeightMm stores the standoff height with a mil suffix.
func (cb *ComponentBody) SetStandoffHeightMm(mm float64) {
	cb.Parameters.Set(bodyKeyStandoff, formatMil(mm))
}

// OverallHeightMm returns the overall body height in millimetres.
func (cb *ComponentBody) OverallHeightMm() float64 {
	v, ok := cb.Parameters.Get(bodyKeyOverallHgt)
	if !ok {
		return 0
	}
	mm, err := parseUnitValue(v)
	if err != nil {
		return 0
	}
	return mm
}

// SetOverallHeightMm stores the overall height; canonical output carries a
// mm suffix.
func (cb *ComponentBody) SetOverallHeightMm(mm float64) {
	cb.Parameters.Set(bodyKeyOverallHgt, formatMm(mm))
}

func decodeComponentBody(r *blockReader) (*ComponentBody, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < CommonHeaderSize {
		return nil, fmt.Errorf("component body: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	cb := &ComponentBody{
		Layer:      hdr.Layer,
		Flags:      hdr.Flags,
		Parameters: ParseParameters(b[CommonHeaderSize:]),
	}
	aux1, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	aux2, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(aux1) > 0 {
		cb.aux1 = append([]byte(nil), aux1...)
	}
	if len(aux2) > 0 {
		cb.aux2 = append([]byte(nil), aux2...)
	}
	return cb, nil
}

func (cb *ComponentBody) encode(w *blockWriter) error {
	params := cb.Parameters
	if params == nil {
		params = &ParameterList{}
	}
	blob := params.Encode()
	b := make([]byte, CommonHeaderSize+len(blob))
	commonHeader{Layer: cb.Layer, Flags: cb.Flags}.encode(b)
	copy(b[CommonHeaderSize:], blob)

	w.writeByte(recordTypeBody)
	w.writeBlock(b)
	w.writeBlock(cb.aux1)
	w.writeBlock(cb.aux2)
	return nil
}

// Clone returns a deep copy of the body.
func (cb *ComponentBody) Clone() *ComponentBody {
	cp := *cb
	if cb.Parameters != nil {
		cp.Parameters = cb.Parameters.Clone()
	}
	cp.aux1 = append([]byte(nil), cb.aux1...)
	cp.aux2 = append([]byte(nil), cb.aux2...)
	return &cp
}
