// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Binary wire record classes of a symbol Data stream. The two type bytes
// are big-endian on the wire.
const (
	schWireText = 0
	schWirePin  = 1
)

// Font is one entry of the symbol library font table. Entry i carries
// font id i+1.
type Font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func defaultFont() Font {
	return Font{Name: "Times New Roman", Size: 10}
}

// Symbol is a schematic symbol: pins, body graphics, parameters and
// footprint links. Shape lists keep their per-kind order.
type Symbol struct {
	DesignatorPrefix string `json:"designator_prefix"`

	// PartCount is the logical number of parts, minimum 1. On disk it is
	// stored as the logical count plus one.
	PartCount int `json:"part_count"`

	DisplayModeCount int `json:"display_mode_count"`

	Parameters []*SchParameter `json:"parameters,omitempty"`
	Pins       []*Pin          `json:"pins,omitempty"`

	Rectangles     []*SchRectangle     `json:"rectangles,omitempty"`
	Lines          []*SchLine          `json:"lines,omitempty"`
	Polylines      []*SchPolyline      `json:"polylines,omitempty"`
	Polygons       []*SchPolygon       `json:"polygons,omitempty"`
	Arcs           []*SchArc           `json:"arcs,omitempty"`
	Beziers        []*SchBezier        `json:"beziers,omitempty"`
	Ellipses       []*SchEllipse       `json:"ellipses,omitempty"`
	RoundRects     []*SchRoundRect     `json:"round_rects,omitempty"`
	EllipticalArcs []*SchEllipticalArc `json:"elliptical_arcs,omitempty"`
	Labels         []*SchLabel         `json:"labels,omitempty"`

	Models []*FootprintModel `json:"models,omitempty"`
}

// PrimitiveCount totals pins and body graphics.
func (s *Symbol) PrimitiveCount() int {
	return len(s.Pins) + len(s.Rectangles) + len(s.Lines) + len(s.Polylines) +
		len(s.Polygons) + len(s.Arcs) + len(s.Beziers) + len(s.Ellipses) +
		len(s.RoundRects) + len(s.EllipticalArcs) + len(s.Labels)
}

// Clone returns a deep copy of the symbol.
func (s *Symbol) Clone() *Symbol {
	cp := &Symbol{
		DesignatorPrefix: s.DesignatorPrefix,
		PartCount:        s.PartCount,
		DisplayModeCount: s.DisplayModeCount,
	}
	for _, p := range s.Parameters {
		v := *p
		cp.Parameters = append(cp.Parameters, &v)
	}
	for _, p := range s.Pins {
		cp.Pins = append(cp.Pins, p.Clone())
	}
	for _, v := range s.Rectangles {
		c := *v
		cp.Rectangles = append(cp.Rectangles, &c)
	}
	for _, v := range s.Lines {
		c := *v
		cp.Lines = append(cp.Lines, &c)
	}
	for _, v := range s.Polylines {
		c := *v
		c.Points = append([]SchPoint(nil), v.Points...)
		cp.Polylines = append(cp.Polylines, &c)
	}
	for _, v := range s.Polygons {
		c := *v
		c.Points = append([]SchPoint(nil), v.Points...)
		cp.Polygons = append(cp.Polygons, &c)
	}
	for _, v := range s.Arcs {
		c := *v
		cp.Arcs = append(cp.Arcs, &c)
	}
	for _, v := range s.Beziers {
		c := *v
		c.Points = append([]SchPoint(nil), v.Points...)
		cp.Beziers = append(cp.Beziers, &c)
	}
	for _, v := range s.Ellipses {
		c := *v
		cp.Ellipses = append(cp.Ellipses, &c)
	}
	for _, v := range s.RoundRects {
		c := *v
		cp.RoundRects = append(cp.RoundRects, &c)
	}
	for _, v := range s.EllipticalArcs {
		c := *v
		cp.EllipticalArcs = append(cp.EllipticalArcs, &c)
	}
	for _, v := range s.Labels {
		c := *v
		cp.Labels = append(cp.Labels, &c)
	}
	for _, m := range s.Models {
		cp.Models = append(cp.Models, m.Clone())
	}
	return cp
}

// writeSchRecord frames one record: payload length as u16 LE, record
// class as u16 BE, then the payload.
func writeSchRecord(buf *bytes.Buffer, class uint16, payload []byte) {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[:2], uint16(len(payload)))
	binary.BigEndian.PutUint16(hdr[2:], class)
	buf.Write(hdr[:])
	buf.Write(payload)
}

func writeSchTerminator(buf *bytes.Buffer) {
	buf.Write([]byte{0, 0, 0, 0})
}

// schRecord is one framed record of a symbol Data stream.
type schRecord struct {
	class   uint16
	payload []byte
}

func readSchRecords(data []byte) ([]schRecord, error) {
	var out []schRecord
	off := 0
	for off+4 <= len(data) {
		n := int(binary.LittleEndian.Uint16(data[off:]))
		class := binary.BigEndian.Uint16(data[off+2:])
		off += 4
		if n == 0 {
			return out, nil
		}
		if off+n > len(data) {
			return nil, fmt.Errorf("symbol record: %w", ErrBlockTooLarge)
		}
		out = append(out, schRecord{class: class, payload: data[off : off+n]})
		off += n
	}
	return out, nil
}

// decodeSymbolData parses one symbol Data stream into a component.
func decodeSymbolData(data []byte) (*Component, error) {
	records, err := readSchRecords(data)
	if err != nil {
		return nil, err
	}
	comp := &Component{Symbol: &Symbol{PartCount: 1, DisplayModeCount: 1}}
	sym := comp.Symbol
	for _, rec := range records {
		if rec.class == schWirePin {
			pin, err := decodePin(rec.payload)
			if err != nil {
				return nil, err
			}
			sym.Pins = append(sym.Pins, pin)
			continue
		}
		pl := ParseParameters(rec.payload)
		switch pl.GetInt("RECORD", -1) {
		case schRecordHeader:
			comp.Name = pl.GetString("LIBREFERENCE", comp.Name)
			comp.Description = pl.GetString("COMPONENTDESCRIPTION", "")
			stored := pl.GetInt("PARTCOUNT", 2)
			sym.PartCount = stored - 1
			if sym.PartCount < 1 {
				sym.PartCount = 1
			}
			sym.DisplayModeCount = pl.GetInt("DISPLAYMODECOUNT", 1)
		case schRecordParameter:
			sym.Parameters = append(sym.Parameters, schParameterFrom(pl))
		case schRecordRectangle:
			sym.Rectangles = append(sym.Rectangles, schRectangleFrom(pl))
		case schRecordRoundRect:
			sym.RoundRects = append(sym.RoundRects, schRoundRectFrom(pl))
		case schRecordLine:
			sym.Lines = append(sym.Lines, schLineFrom(pl))
		case schRecordPolyline:
			sym.Polylines = append(sym.Polylines, schPolylineFrom(pl))
		case schRecordPolygon:
			sym.Polygons = append(sym.Polygons, schPolygonFrom(pl))
		case schRecordArc:
			sym.Arcs = append(sym.Arcs, schArcFrom(pl))
		case schRecordEllipticalArc:
			sym.EllipticalArcs = append(sym.EllipticalArcs, schEllipticalArcFrom(pl))
		case schRecordEllipse:
			sym.Ellipses = append(sym.Ellipses, schEllipseFrom(pl))
		case schRecordBezier:
			sym.Beziers = append(sym.Beziers, schBezierFrom(pl))
		case schRecordLabel:
			sym.Labels = append(sym.Labels, schLabelFrom(pl))
		case schRecordDesignator:
			sym.DesignatorPrefix = pl.GetString("TEXT", sym.DesignatorPrefix)
		case schRecordImplList:
			// marker record, nothing to keep
		case schRecordModel:
			sym.Models = append(sym.Models, footprintModelFrom(pl))
		case schRecordModelDatafile1, schRecordModelDatafile2, schRecordModelDatafile3:
			if n := len(sym.Models); n > 0 {
				sym.Models[n-1].datafiles = append(sym.Models[n-1].datafiles, pl)
			}
		default:
			return nil, fmt.Errorf("%w: RECORD=%d", ErrUnexpectedRecordType,
				pl.GetInt("RECORD", -1))
		}
	}
	return comp, nil
}

// encodeSymbolData serialises one component in the canonical record
// order. The index-in-sheet counter advances on every shape but not on
// pins.
func encodeSymbolData(comp *Component) ([]byte, error) {
	sym := comp.Symbol
	buf := &bytes.Buffer{}

	hdr := &ParameterList{}
	hdr.Set("RECORD", strconv.Itoa(schRecordHeader))
	hdr.Set("LIBREFERENCE", comp.Name)
	hdr.Set("COMPONENTDESCRIPTION", comp.Description)
	partCount := sym.PartCount
	if partCount < 1 {
		partCount = 1
	}
	hdr.Set("PARTCOUNT", strconv.Itoa(partCount+1))
	displayModes := sym.DisplayModeCount
	if displayModes < 1 {
		displayModes = 1
	}
	hdr.Set("DISPLAYMODECOUNT", strconv.Itoa(displayModes))
	hdr.Set("OWNERPARTID", "-1")
	writeSchRecord(buf, schWireText, hdr.Encode())

	for _, p := range sym.Parameters {
		writeSchRecord(buf, schWireText, p.toParams().Encode())
	}
	for _, p := range sym.Pins {
		writeSchRecord(buf, schWirePin, p.encode())
	}

	idx := 0
	shape := func(pl *ParameterList) {
		writeSchRecord(buf, schWireText, pl.Encode())
		idx++
	}
	for _, v := range sym.Rectangles {
		shape(v.toParams(schRecordRectangle, idx))
	}
	for _, v := range sym.Lines {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Polylines {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Polygons {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Arcs {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Beziers {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Ellipses {
		shape(v.toParams(idx))
	}
	for _, v := range sym.RoundRects {
		shape(v.toParams(idx))
	}
	for _, v := range sym.EllipticalArcs {
		shape(v.toParams(idx))
	}
	for _, v := range sym.Labels {
		shape(v.toParams(idx))
	}

	if sym.DesignatorPrefix != "" {
		d := &ParameterList{}
		d.Set("RECORD", strconv.Itoa(schRecordDesignator))
		d.Set("OWNERPARTID", "-1")
		d.Set("NAME", "Designator")
		d.Set("TEXT", sym.DesignatorPrefix)
		writeSchRecord(buf, schWireText, d.Encode())
	}

	if len(sym.Models) > 0 {
		il := &ParameterList{}
		il.Set("RECORD", strconv.Itoa(schRecordImplList))
		writeSchRecord(buf, schWireText, il.Encode())
		for _, m := range sym.Models {
			writeSchRecord(buf, schWireText, m.toParams().Encode())
			for _, d := range m.datafiles {
				writeSchRecord(buf, schWireText, d.Encode())
			}
		}
	}

	writeSchTerminator(buf)
	return buf.Bytes(), nil
}

func (l *Library) decodeSchLib(c *Container) error {
	hb, err := c.Stream(streamFileHeader)
	if err != nil {
		return err
	}
	blob, _, err := readLengthPrefixed(hb)
	if err != nil {
		return fmt.Errorf("file header: %w", err)
	}
	l.Header = ParseParameters(blob)
	if magic, ok := l.Header.Get("HEADER"); ok && !strings.Contains(magic, "Schematic") {
		return fmt.Errorf("%w: %q", ErrKindMismatch, magic)
	}

	l.Fonts = nil
	fontCount := l.Header.GetInt("FontIdCount", 0)
	for i := 1; i <= fontCount; i++ {
		l.Fonts = append(l.Fonts, Font{
			Name: l.Header.GetString(fmt.Sprintf("FontName%d", i), defaultFont().Name),
			Size: l.Header.GetInt(fmt.Sprintf("Size%d", i), defaultFont().Size),
		})
	}
	if len(l.Fonts) == 0 {
		l.Fonts = []Font{defaultFont()}
	}

	seen := make(map[string]bool)
	count := l.Header.GetInt("CompCount", 0)
	for i := 0; i < count; i++ {
		ref, ok := l.Header.Get(fmt.Sprintf("LibRef%d", i))
		if !ok {
			continue
		}
		seen[storageKey(TruncateStorageName(ref))] = true
		if err := l.decodeSchComponent(c, ref,
			l.Header.GetString(fmt.Sprintf("CompDescr%d", i), "")); err != nil {
			return err
		}
	}
	for _, child := range c.Root.Children {
		if !child.IsStorage || seen[storageKey(child.Name)] {
			continue
		}
		if err := l.decodeSchComponent(c, child.Name, ""); err != nil {
			return err
		}
	}

	l.normalizeSchHeader()
	return nil
}

func (l *Library) decodeSchComponent(c *Container, ref, descr string) error {
	data, err := c.Stream(TruncateStorageName(ref), streamData)
	if err != nil {
		return err
	}
	comp, err := decodeSymbolData(data)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", ref, err)
	}
	if comp.Name == "" {
		comp.Name = ref
	}
	if comp.Description == "" {
		comp.Description = descr
	}
	return l.Add(comp)
}

// normalizeSchHeader rewrites the component table and font table keys so
// the header mirrors the model.
func (l *Library) normalizeSchHeader() {
	isIndexed := func(key, prefix string) bool {
		if !strings.HasPrefix(strings.ToUpper(key), strings.ToUpper(prefix)) {
			return false
		}
		_, err := strconv.Atoi(key[len(prefix):])
		return err == nil
	}
	out := l.Header.Params[:0]
	for _, p := range l.Header.Params {
		switch {
		case strings.EqualFold(p.Key, "CompCount"),
			strings.EqualFold(p.Key, "FontIdCount"),
			isIndexed(p.Key, "LibRef"),
			isIndexed(p.Key, "CompDescr"),
			isIndexed(p.Key, "PartCount"),
			isIndexed(p.Key, "FontName"),
			isIndexed(p.Key, "Size"):
			continue
		}
		out = append(out, p)
	}
	l.Header.Params = out

	l.Header.Set("FontIdCount", strconv.Itoa(len(l.Fonts)))
	for i, f := range l.Fonts {
		l.Header.Set(fmt.Sprintf("FontName%d", i+1), f.Name)
		l.Header.Set(fmt.Sprintf("Size%d", i+1), strconv.Itoa(f.Size))
	}

	l.Header.Set("CompCount", strconv.Itoa(len(l.Components)))
	for i, comp := range l.Components {
		l.Header.Set(fmt.Sprintf("LibRef%d", i), comp.Name)
		l.Header.Set(fmt.Sprintf("CompDescr%d", i), comp.Description)
		partCount := 1
		if comp.Symbol != nil && comp.Symbol.PartCount > 1 {
			partCount = comp.Symbol.PartCount
		}
		l.Header.Set(fmt.Sprintf("PartCount%d", i), strconv.Itoa(partCount+1))
	}
}

func (l *Library) encodeSchLib() (*Container, error) {
	c := NewContainer()
	l.normalizeSchHeader()
	if err := c.SetStream(lengthPrefixed(l.Header.Encode()), streamFileHeader); err != nil {
		return nil, err
	}
	if err := c.SetStream(nil, streamStorage); err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	for _, comp := range l.Components {
		if comp.Symbol == nil {
			return nil, fmt.Errorf("%w: %s", ErrKindMismatch, comp.Name)
		}
		stor := TruncateStorageName(comp.Name)
		if used[storageKey(stor)] {
			return nil, fmt.Errorf("%w: %s", ErrNameCollision, stor)
		}
		used[storageKey(stor)] = true
		data, err := encodeSymbolData(comp)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", comp.Name, err)
		}
		if err := c.SetStream(data, stor, streamData); err != nil {
			return nil, err
		}
	}
	return c, nil
}
