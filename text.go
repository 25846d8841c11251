// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
)

// Text block 0 offsets.
const (
	textOffX         = 13
	textOffY         = 17
	textOffHeight    = 21
	textOffFont      = 25
	textOffRotation  = 27
	textOffMirrored  = 35
	textOffWidth     = 36
	textOffKind      = 40
	textOffBold      = 41
	textOffItalic    = 42
	textOffFontName  = 43
	textOffJustify   = 113
	textOffWideIndex = 115

	textBlockSize = 123

	// textFontNameBytes is the UTF-16 font name field width: 31 characters
	// plus the NUL terminator.
	textFontNameBytes = 64

	// textInlineIndex marks a text record whose content is inline rather
	// than indexed into the WideStrings table.
	textInlineIndex = 0xFFFF
)

// Sentinel literals rendered as the owning component's designator or
// comment.
const (
	TextSentinelDesignator = ".Designator"
	TextSentinelComment    = ".Comment"
)

// TextKind distinguishes stroke from TrueType rendering.
type TextKind uint8

// Text kinds.
const (
	TextStroke   TextKind = 0
	TextTrueType TextKind = 1
)

// Text is a string primitive on a board layer.
type Text struct {
	Layer    Layer  `json:"layer"`
	Flags    uint16 `json:"flags"`
	UniqueID string `json:"unique_id"`

	X        Coord   `json:"x"`
	Y        Coord   `json:"y"`
	Height   Coord   `json:"height"`
	Rotation float64 `json:"rotation"`
	Mirrored bool    `json:"mirrored"`
	Width    Coord   `json:"width"`

	Kind          TextKind `json:"kind"`
	FontName      string   `json:"font_name"`
	Bold          bool     `json:"bold"`
	Italic        bool     `json:"italic"`
	Justification uint8    `json:"justification"`

	Text string `json:"text"`

	raw []byte
}

// IsDesignator reports whether the text renders the owning component's
// designator.
func (t *Text) IsDesignator() bool { return t.Text == TextSentinelDesignator }

// IsComment reports whether the text renders the owning component's
// comment.
func (t *Text) IsComment() bool { return t.Text == TextSentinelComment }

func (t *Text) isSentinel() bool { return t.IsDesignator() || t.IsComment() }

func decodeText(r *blockReader, wide []string) (*Text, error) {
	b, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if len(b) < textOffFontName+textFontNameBytes {
		return nil, fmt.Errorf("text geometry: %w", ErrBlockTooLarge)
	}
	hdr, err := decodeCommonHeader(b)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	t := &Text{
		Layer:    hdr.Layer,
		Flags:    hdr.Flags,
		X:        Coord(le.Uint32(b[textOffX:])),
		Y:        Coord(le.Uint32(b[textOffY:])),
		Height:   Coord(le.Uint32(b[textOffHeight:])),
		Rotation: float64frombits(le.Uint64(b[textOffRotation:])),
		Mirrored: b[textOffMirrored] != 0,
		Width:    Coord(le.Uint32(b[textOffWidth:])),
		Kind:     TextKind(b[textOffKind]),
		Bold:     b[textOffBold] != 0,
		Italic:   b[textOffItalic] != 0,
		raw:      append([]byte(nil), b...),
	}
	name, err := decodeUTF16(b[textOffFontName : textOffFontName+textFontNameBytes])
	if err != nil {
		return nil, err
	}
	t.FontName = name

	wideIndex := uint16(textInlineIndex)
	if len(b) >= textOffWideIndex+2 {
		t.Justification = b[textOffJustify]
		wideIndex = le.Uint16(b[textOffWideIndex:])
	}

	inline, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	text, err := readStringBlock(inline)
	if err != nil {
		return nil, err
	}
	t.Text = text
	if wideIndex != textInlineIndex && int(wideIndex) < len(wide) {
		t.Text = wide[wideIndex]
	}
	return t, nil
}

func (t *Text) encode(w *blockWriter, wide *wideStringTable) error {
	size := textBlockSize
	if len(t.raw) > size {
		size = len(t.raw)
	}
	b := make([]byte, size)
	copy(b, t.raw)
	commonHeader{Layer: t.Layer, Flags: t.Flags}.encode(b)
	le := binary.LittleEndian
	le.PutUint32(b[textOffX:], uint32(t.X))
	le.PutUint32(b[textOffY:], uint32(t.Y))
	le.PutUint32(b[textOffHeight:], uint32(t.Height))
	le.PutUint64(b[textOffRotation:], float64bits(t.Rotation))
	b[textOffMirrored] = boolByte(t.Mirrored)
	le.PutUint32(b[textOffWidth:], uint32(t.Width))
	b[textOffKind] = byte(t.Kind)
	b[textOffBold] = boolByte(t.Bold)
	b[textOffItalic] = boolByte(t.Italic)

	nameBytes := encodeUTF16(t.FontName)
	if len(nameBytes) > textFontNameBytes-2 {
		nameBytes = nameBytes[:textFontNameBytes-2]
	}
	field := make([]byte, textFontNameBytes)
	copy(field, nameBytes)
	copy(b[textOffFontName:], field)

	b[textOffJustify] = t.Justification
	if t.isSentinel() {
		le.PutUint16(b[textOffWideIndex:], textInlineIndex)
	} else {
		le.PutUint16(b[textOffWideIndex:], wide.add(t.Text))
	}

	w.writeByte(recordTypeText)
	w.writeBlock(b)
	w.writeBlock(stringBlock(t.Text))
	return nil
}

// Clone returns a deep copy of the text.
func (t *Text) Clone() *Text {
	cp := *t
	cp.raw = append([]byte(nil), t.raw...)
	return &cp
}

// wideStringTable accumulates the WideStrings stream during encode.
// Identical strings share one slot.
type wideStringTable struct {
	strings []string
	index   map[string]uint16
}

func newWideStringTable() *wideStringTable {
	return &wideStringTable{index: make(map[string]uint16)}
}

func (t *wideStringTable) add(s string) uint16 {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := uint16(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = i
	return i
}
