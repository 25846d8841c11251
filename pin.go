// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// PinElectricalType is the electrical class of a pin.
type PinElectricalType uint8

// Electrical types.
const (
	PinInput         PinElectricalType = 0
	PinIO            PinElectricalType = 1
	PinOutput        PinElectricalType = 2
	PinOpenCollector PinElectricalType = 3
	PinPassive       PinElectricalType = 4
	PinHiZ           PinElectricalType = 5
	PinOpenEmitter   PinElectricalType = 6
	PinPower         PinElectricalType = 7
)

// String implements fmt.Stringer.
func (t PinElectricalType) String() string {
	switch t {
	case PinInput:
		return "Input"
	case PinIO:
		return "IO"
	case PinOutput:
		return "Output"
	case PinOpenCollector:
		return "OpenCollector"
	case PinPassive:
		return "Passive"
	case PinHiZ:
		return "HiZ"
	case PinOpenEmitter:
		return "OpenEmitter"
	case PinPower:
		return "Power"
	}
	return fmt.Sprintf("PinElectricalType(%d)", uint8(t))
}

// PinSymbol is a pin decoration drawn at one of the four symbol
// positions.
type PinSymbol uint8

// Common pin decorations of the 22-value vocabulary.
const (
	PinSymbolNone               PinSymbol = 0
	PinSymbolDot                PinSymbol = 1
	PinSymbolRightLeftFlow      PinSymbol = 2
	PinSymbolClock              PinSymbol = 3
	PinSymbolActiveLowInput     PinSymbol = 4
	PinSymbolAnalogIn           PinSymbol = 5
	PinSymbolNotLogicConnection PinSymbol = 6
	PinSymbolPostponedOutput    PinSymbol = 8
	PinSymbolOpenCollector      PinSymbol = 9
	PinSymbolHiZ                PinSymbol = 10
	PinSymbolHighCurrent        PinSymbol = 11
	PinSymbolPulse              PinSymbol = 12
	PinSymbolSchmitt            PinSymbol = 13
	PinSymbolActiveLowOutput    PinSymbol = 17
	PinSymbolOpenCollectorPull  PinSymbol = 22
)

// PinOrientation is the direction a pin points, derived from the rotated
// and flipped flag bits.
type PinOrientation uint8

// Orientations.
const (
	PinRight PinOrientation = iota
	PinLeft
	PinUp
	PinDown
)

// String implements fmt.Stringer.
func (o PinOrientation) String() string {
	switch o {
	case PinRight:
		return "Right"
	case PinLeft:
		return "Left"
	case PinUp:
		return "Up"
	case PinDown:
		return "Down"
	}
	return fmt.Sprintf("PinOrientation(%d)", uint8(o))
}

// Pin flag bits.
const (
	pinFlagRotated    = 1 << 0
	pinFlagFlipped    = 1 << 1
	pinFlagHidden     = 1 << 2
	pinFlagShowName   = 1 << 3
	pinFlagShowDesig  = 1 << 4
	pinFlagLocked     = 1 << 6
)

// pinTypeConstant is the fixed leading value of a binary pin record.
const pinTypeConstant = 2

// Pin is a symbol connection point, stored as a compact binary record.
// Positions are signed 16-bit schematic units.
type Pin struct {
	OwnerPartID          int16 `json:"owner_part_id"`
	OwnerPartDisplayMode uint8 `json:"owner_part_display_mode"`

	SymbolInnerEdge PinSymbol `json:"symbol_inner_edge"`
	SymbolOuterEdge PinSymbol `json:"symbol_outer_edge"`
	SymbolInside    PinSymbol `json:"symbol_inside"`
	SymbolOutside   PinSymbol `json:"symbol_outside"`

	Description    string            `json:"description,omitempty"`
	ElectricalType PinElectricalType `json:"electrical_type"`

	Rotated        bool `json:"rotated"`
	Flipped        bool `json:"flipped"`
	Hidden         bool `json:"hidden"`
	ShowName       bool `json:"show_name"`
	ShowDesignator bool `json:"show_designator"`
	Locked         bool `json:"locked"`

	Length int16 `json:"length"`
	X      int16 `json:"x"`
	Y      int16 `json:"y"`

	// Color is BGR, like every colour in the format.
	Color uint32 `json:"color"`

	Name       string `json:"name"`
	Designator string `json:"designator"`
}

// NewPin returns a pin with format defaults: passive, black, name and
// designator shown, owned by all parts.
func NewPin() *Pin {
	return &Pin{
		OwnerPartID:    -1,
		ElectricalType: PinPassive,
		ShowName:       true,
		ShowDesignator: true,
	}
}

// Orientation derives the pin direction from the rotated and flipped
// bits.
func (p *Pin) Orientation() PinOrientation {
	switch {
	case !p.Rotated && !p.Flipped:
		return PinRight
	case !p.Rotated && p.Flipped:
		return PinLeft
	case p.Rotated && !p.Flipped:
		return PinUp
	default:
		return PinDown
	}
}

// SetOrientation sets the rotated and flipped bits for a direction.
func (p *Pin) SetOrientation(o PinOrientation) {
	p.Rotated = o == PinUp || o == PinDown
	p.Flipped = o == PinLeft || o == PinDown
}

// Clone returns a copy of the pin.
func (p *Pin) Clone() *Pin {
	cp := *p
	return &cp
}

func (p *Pin) encode() []byte {
	var b []byte
	var tmp [4]byte
	le := binary.LittleEndian

	le.PutUint32(tmp[:], pinTypeConstant)
	b = append(b, tmp[:]...)
	b = append(b, 0) // reserved
	le.PutUint16(tmp[:2], uint16(p.OwnerPartID))
	b = append(b, tmp[:2]...)
	b = append(b, p.OwnerPartDisplayMode)
	b = append(b, byte(p.SymbolInnerEdge), byte(p.SymbolOuterEdge),
		byte(p.SymbolInside), byte(p.SymbolOutside))
	b = append(b, pinString(p.Description)...)
	b = append(b, byte(p.ElectricalType))

	var flags byte
	if p.Rotated {
		flags |= pinFlagRotated
	}
	if p.Flipped {
		flags |= pinFlagFlipped
	}
	if p.Hidden {
		flags |= pinFlagHidden
	}
	if p.ShowName {
		flags |= pinFlagShowName
	}
	if p.ShowDesignator {
		flags |= pinFlagShowDesig
	}
	if p.Locked {
		flags |= pinFlagLocked
	}
	b = append(b, flags)

	le.PutUint16(tmp[:2], uint16(p.Length))
	b = append(b, tmp[:2]...)
	le.PutUint16(tmp[:2], uint16(p.X))
	b = append(b, tmp[:2]...)
	le.PutUint16(tmp[:2], uint16(p.Y))
	b = append(b, tmp[:2]...)
	le.PutUint32(tmp[:], p.Color)
	b = append(b, tmp[:]...)
	b = append(b, pinString(p.Name)...)
	b = append(b, pinString(p.Designator)...)
	return b
}

func decodePin(b []byte) (*Pin, error) {
	r := &pinReader{data: b}
	le := binary.LittleEndian

	typ, err := r.take(4)
	if err != nil {
		return nil, err
	}
	if le.Uint32(typ) != pinTypeConstant {
		return nil, fmt.Errorf("%w: pin type %d", ErrUnexpectedRecordType, le.Uint32(typ))
	}
	if _, err := r.take(1); err != nil { // reserved
		return nil, err
	}
	p := &Pin{}
	v, err := r.take(2)
	if err != nil {
		return nil, err
	}
	p.OwnerPartID = int16(le.Uint16(v))
	m, err := r.take(1)
	if err != nil {
		return nil, err
	}
	p.OwnerPartDisplayMode = m[0]
	sym, err := r.take(4)
	if err != nil {
		return nil, err
	}
	p.SymbolInnerEdge = PinSymbol(sym[0])
	p.SymbolOuterEdge = PinSymbol(sym[1])
	p.SymbolInside = PinSymbol(sym[2])
	p.SymbolOutside = PinSymbol(sym[3])
	if p.Description, err = r.takeString(); err != nil {
		return nil, err
	}
	et, err := r.take(1)
	if err != nil {
		return nil, err
	}
	p.ElectricalType = PinElectricalType(et[0])
	fl, err := r.take(1)
	if err != nil {
		return nil, err
	}
	p.Rotated = fl[0]&pinFlagRotated != 0
	p.Flipped = fl[0]&pinFlagFlipped != 0
	p.Hidden = fl[0]&pinFlagHidden != 0
	p.ShowName = fl[0]&pinFlagShowName != 0
	p.ShowDesignator = fl[0]&pinFlagShowDesig != 0
	p.Locked = fl[0]&pinFlagLocked != 0
	if v, err = r.take(2); err != nil {
		return nil, err
	}
	p.Length = int16(le.Uint16(v))
	if v, err = r.take(2); err != nil {
		return nil, err
	}
	p.X = int16(le.Uint16(v))
	if v, err = r.take(2); err != nil {
		return nil, err
	}
	p.Y = int16(le.Uint16(v))
	if v, err = r.take(4); err != nil {
		return nil, err
	}
	p.Color = le.Uint32(v)
	if p.Name, err = r.takeString(); err != nil {
		return nil, err
	}
	if p.Designator, err = r.takeString(); err != nil {
		return nil, err
	}
	return p, nil
}

type pinReader struct {
	data []byte
	off  int
}

func (r *pinReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, fmt.Errorf("pin record: %w", ErrBlockTooLarge)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *pinReader) takeString() (string, error) {
	n, err := r.take(1)
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n[0]))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func pinString(s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	b := make([]byte, 1+len(s))
	b[0] = byte(len(s))
	copy(b[1:], s)
	return b
}
