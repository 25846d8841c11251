// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// PcbLib primitive record discriminators.
const (
	recordTypeArc    = 0x01
	recordTypePad    = 0x02
	recordTypeVia    = 0x03
	recordTypeTrack  = 0x04
	recordTypeText   = 0x05
	recordTypeFill   = 0x06
	recordTypeRegion = 0x0B
	recordTypeBody   = 0x0C
)

// Root entry names of a footprint library.
const (
	streamFileHeader  = "FileHeader"
	streamStorage     = "Storage"
	streamWideStrings = "WideStrings"
	storageLibrary    = "Library"
	storageModels     = "Models"
	streamData        = "Data"
)

// Footprint is a PCB land pattern: per-kind ordered primitive lists.
type Footprint struct {
	Pads    []*Pad           `json:"pads,omitempty"`
	Vias    []*Via           `json:"vias,omitempty"`
	Tracks  []*Track         `json:"tracks,omitempty"`
	Arcs    []*Arc           `json:"arcs,omitempty"`
	Texts   []*Text          `json:"texts,omitempty"`
	Fills   []*Fill          `json:"fills,omitempty"`
	Regions []*Region        `json:"regions,omitempty"`
	Bodies  []*ComponentBody `json:"bodies,omitempty"`
}

// PrimitiveCount totals every primitive list.
func (fp *Footprint) PrimitiveCount() int {
	return len(fp.Pads) + len(fp.Vias) + len(fp.Tracks) + len(fp.Arcs) +
		len(fp.Texts) + len(fp.Fills) + len(fp.Regions) + len(fp.Bodies)
}

// Clone returns a deep copy of the footprint.
func (fp *Footprint) Clone() *Footprint {
	cp := &Footprint{}
	for _, p := range fp.Pads {
		cp.Pads = append(cp.Pads, p.Clone())
	}
	for _, v := range fp.Vias {
		cp.Vias = append(cp.Vias, v.Clone())
	}
	for _, t := range fp.Tracks {
		cp.Tracks = append(cp.Tracks, t.Clone())
	}
	for _, a := range fp.Arcs {
		cp.Arcs = append(cp.Arcs, a.Clone())
	}
	for _, t := range fp.Texts {
		cp.Texts = append(cp.Texts, t.Clone())
	}
	for _, f := range fp.Fills {
		cp.Fills = append(cp.Fills, f.Clone())
	}
	for _, g := range fp.Regions {
		cp.Regions = append(cp.Regions, g.Clone())
	}
	for _, b := range fp.Bodies {
		cp.Bodies = append(cp.Bodies, b.Clone())
	}
	return cp
}

// primitiveRef points at one primitive in traversal order.
type primitiveRef struct {
	kind string
	id   *string
}

// walk visits every primitive in the canonical traversal order: pads,
// vias, tracks, arcs, texts, fills, regions, bodies.
func (fp *Footprint) walk() []primitiveRef {
	var out []primitiveRef
	for _, p := range fp.Pads {
		out = append(out, primitiveRef{"Pad", &p.UniqueID})
	}
	for _, v := range fp.Vias {
		out = append(out, primitiveRef{"Via", &v.UniqueID})
	}
	for _, t := range fp.Tracks {
		out = append(out, primitiveRef{"Track", &t.UniqueID})
	}
	for _, a := range fp.Arcs {
		out = append(out, primitiveRef{"Arc", &a.UniqueID})
	}
	for _, t := range fp.Texts {
		out = append(out, primitiveRef{"Text", &t.UniqueID})
	}
	for _, f := range fp.Fills {
		out = append(out, primitiveRef{"Fill", &f.UniqueID})
	}
	for _, g := range fp.Regions {
		out = append(out, primitiveRef{"Region", &g.UniqueID})
	}
	for _, b := range fp.Bodies {
		out = append(out, primitiveRef{"ComponentBody", &b.UniqueID})
	}
	return out
}

// decodeFootprintData parses one component Data stream.
func decodeFootprintData(data []byte, wide []string) (string, *Footprint, error) {
	r := newBlockReader(data)
	nameBlock, err := r.readBlock()
	if err != nil {
		return "", nil, err
	}
	name, err := readStringBlock(nameBlock)
	if err != nil {
		return "", nil, err
	}
	fp := &Footprint{}
	for {
		if r.remaining() == 0 {
			break
		}
		t, err := r.readByte()
		if err != nil {
			return "", nil, err
		}
		if t == 0 {
			break
		}
		switch t {
		case recordTypeArc:
			a, err := decodeArc(r)
			if err != nil {
				return "", nil, err
			}
			fp.Arcs = append(fp.Arcs, a)
		case recordTypePad:
			p, err := decodePad(r)
			if err != nil {
				return "", nil, err
			}
			fp.Pads = append(fp.Pads, p)
		case recordTypeVia:
			v, err := decodeVia(r)
			if err != nil {
				return "", nil, err
			}
			fp.Vias = append(fp.Vias, v)
		case recordTypeTrack:
			tr, err := decodeTrack(r)
			if err != nil {
				return "", nil, err
			}
			fp.Tracks = append(fp.Tracks, tr)
		case recordTypeText:
			tx, err := decodeText(r, wide)
			if err != nil {
				return "", nil, err
			}
			fp.Texts = append(fp.Texts, tx)
		case recordTypeFill:
			f, err := decodeFill(r)
			if err != nil {
				return "", nil, err
			}
			fp.Fills = append(fp.Fills, f)
		case recordTypeRegion:
			g, err := decodeRegion(r)
			if err != nil {
				return "", nil, err
			}
			fp.Regions = append(fp.Regions, g)
		case recordTypeBody:
			cb, err := decodeComponentBody(r)
			if err != nil {
				return "", nil, err
			}
			fp.Bodies = append(fp.Bodies, cb)
		default:
			return "", nil, fmt.Errorf("%w: 0x%02X", ErrUnexpectedRecordType, t)
		}
	}
	return name, fp, nil
}

// encodeFootprintData serialises one component Data stream in the
// canonical primitive order.
func encodeFootprintData(name string, fp *Footprint, wide *wideStringTable) ([]byte, error) {
	w := &blockWriter{}
	w.writeBlock(stringBlock(name))
	for _, p := range fp.Pads {
		if err := p.encode(w); err != nil {
			return nil, err
		}
	}
	for _, v := range fp.Vias {
		if err := v.encode(w); err != nil {
			return nil, err
		}
	}
	for _, t := range fp.Tracks {
		if err := t.encode(w); err != nil {
			return nil, err
		}
	}
	for _, a := range fp.Arcs {
		if err := a.encode(w); err != nil {
			return nil, err
		}
	}
	for _, t := range fp.Texts {
		if err := t.encode(w, wide); err != nil {
			return nil, err
		}
	}
	for _, f := range fp.Fills {
		if err := f.encode(w); err != nil {
			return nil, err
		}
	}
	for _, g := range fp.Regions {
		if err := g.encode(w); err != nil {
			return nil, err
		}
	}
	for _, b := range fp.Bodies {
		if err := b.encode(w); err != nil {
			return nil, err
		}
	}
	w.writeByte(0)
	return w.bytes(), nil
}

func (l *Library) decodePcbLib(c *Container) error {
	hb, err := c.Stream(streamFileHeader)
	if err != nil {
		return err
	}
	blob, _, err := readLengthPrefixed(hb)
	if err != nil {
		return fmt.Errorf("file header: %w", err)
	}
	l.Header = ParseParameters(blob)
	if magic, ok := l.Header.Get("HEADER"); ok && !strings.Contains(magic, "PCB") {
		return fmt.Errorf("%w: %q", ErrKindMismatch, magic)
	}

	var wide []string
	if c.HasStream(streamWideStrings) {
		wb, _ := c.Stream(streamWideStrings)
		if wide, err = decodeWideStrings(wb); err != nil {
			return err
		}
	}

	if _, err := c.Storage(storageLibrary, storageModels); err == nil {
		reg, err := decodeModelRegistry(c)
		if err != nil {
			return err
		}
		l.Models = reg
	}

	// Component order comes from the header; storages not listed there are
	// appended in container order.
	seen := make(map[string]bool)
	var order []string
	count := l.Header.GetInt("COMPONENTCOUNT", 0)
	for i := 0; i < count; i++ {
		if name, ok := l.Header.Get(fmt.Sprintf("COMPONENT%d", i)); ok {
			order = append(order, name)
			seen[storageKey(TruncateStorageName(name))] = true
		}
	}
	for _, name := range order {
		if err := l.decodePcbComponent(c, name, wide); err != nil {
			return err
		}
	}
	for _, child := range c.Root.Children {
		if !child.IsStorage || strings.EqualFold(child.Name, storageLibrary) {
			continue
		}
		if seen[storageKey(child.Name)] {
			continue
		}
		if err := l.decodePcbComponent(c, child.Name, wide); err != nil {
			return err
		}
	}

	// Descriptions ride in the header next to the order list.
	for i, comp := range l.Components {
		if d, ok := l.Header.Get(fmt.Sprintf("COMPONENTDESCR%d", i)); ok {
			comp.Description = d
		}
	}

	l.applyStorageRecords(c)
	l.normalizePcbHeader()
	return nil
}

func (l *Library) decodePcbComponent(c *Container, storName string, wide []string) error {
	data, err := c.Stream(TruncateStorageName(storName), streamData)
	if err != nil {
		return err
	}
	fullName, fp, err := decodeFootprintData(data, wide)
	if err != nil {
		return fmt.Errorf("component %s: %w", storName, err)
	}
	if fullName == "" {
		fullName = storName
	}
	return l.Add(&Component{Name: fullName, Footprint: fp})
}

// applyStorageRecords replays the unique-id mapping stream onto the
// primitives in traversal order, generating fresh ids for any primitive
// the stream does not cover.
func (l *Library) applyStorageRecords(c *Container) {
	byComponent := make(map[string]map[int]string)
	if c.HasStream(streamStorage) {
		sb, _ := c.Stream(streamStorage)
		rest := sb
		for len(rest) >= 4 {
			blob, r, err := readLengthPrefixed(rest)
			if err != nil {
				break
			}
			rest = r
			pl := ParseParameters(blob)
			comp, ok := pl.Get("COMPONENT")
			if !ok {
				continue
			}
			idx := pl.GetInt("PRIMITIVEINDEX", -1)
			id := pl.GetString("UNIQUEID", "")
			if idx < 0 || id == "" {
				continue
			}
			key := storageKey(comp)
			if byComponent[key] == nil {
				byComponent[key] = make(map[int]string)
			}
			byComponent[key][idx] = id
		}
	}
	for _, comp := range l.Components {
		if comp.Footprint == nil {
			continue
		}
		ids := byComponent[storageKey(comp.Name)]
		for i, ref := range comp.Footprint.walk() {
			if id, ok := ids[i]; ok {
				*ref.id = id
			} else if *ref.id == "" {
				*ref.id = NewUniqueID()
			}
		}
	}
}

// normalizePcbHeader rewrites the component order, description and count
// keys so the header always mirrors the component map.
func (l *Library) normalizePcbHeader() {
	out := l.Header.Params[:0]
	for _, p := range l.Header.Params {
		up := strings.ToUpper(p.Key)
		if strings.HasPrefix(up, "COMPONENT") {
			continue
		}
		out = append(out, p)
	}
	l.Header.Params = out
	l.Header.Set("COMPONENTCOUNT", fmt.Sprintf("%d", len(l.Components)))
	for i, comp := range l.Components {
		l.Header.Set(fmt.Sprintf("COMPONENT%d", i), comp.Name)
		if comp.Description != "" {
			l.Header.Set(fmt.Sprintf("COMPONENTDESCR%d", i), comp.Description)
		}
	}
}

func (l *Library) encodePcbLib() (*Container, error) {
	c := NewContainer()
	wide := newWideStringTable()

	l.normalizePcbHeader()
	if err := c.SetStream(lengthPrefixed(l.Header.Encode()), streamFileHeader); err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	for _, comp := range l.Components {
		if comp.Footprint == nil {
			return nil, fmt.Errorf("%w: %s", ErrKindMismatch, comp.Name)
		}
		stor := TruncateStorageName(comp.Name)
		if used[storageKey(stor)] {
			return nil, fmt.Errorf("%w: %s", ErrNameCollision, stor)
		}
		used[storageKey(stor)] = true
		data, err := encodeFootprintData(comp.Name, comp.Footprint, wide)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", comp.Name, err)
		}
		if err := c.SetStream(data, stor, streamData); err != nil {
			return nil, err
		}
	}

	if err := c.SetStream(l.encodeStorageRecords(), streamStorage); err != nil {
		return nil, err
	}
	if err := c.SetStream(encodeWideStrings(wide.strings), streamWideStrings); err != nil {
		return nil, err
	}
	if l.Models != nil {
		if err := l.Models.encode(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// encodeStorageRecords emits the unique-id mapping stream from component
// traversal order.
func (l *Library) encodeStorageRecords() []byte {
	var out []byte
	for _, comp := range l.Components {
		if comp.Footprint == nil {
			continue
		}
		for i, ref := range comp.Footprint.walk() {
			if *ref.id == "" {
				*ref.id = NewUniqueID()
			}
			pl := &ParameterList{}
			pl.Set("COMPONENT", comp.Name)
			pl.Set("PRIMITIVEINDEX", fmt.Sprintf("%d", i))
			pl.Set("OBJECTKIND", ref.kind)
			pl.Set("UNIQUEID", *ref.id)
			out = append(out, lengthPrefixed(pl.Encode())...)
		}
	}
	return out
}

// decodeWideStrings parses the UTF-16LE content table: a u32 count then
// count length-prefixed UTF-16 strings.
func decodeWideStrings(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, nil
	}
	le := binary.LittleEndian
	count := int(le.Uint32(b))
	rest := b[4:]
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		blob, r, err := readLengthPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("wide strings: %w", err)
		}
		rest = r
		s, err := decodeUTF16(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func encodeWideStrings(strs []string) []byte {
	var out []byte
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(strs)))
	out = append(out, hdr[:]...)
	for _, s := range strs {
		out = append(out, lengthPrefixed(encodeUTF16(s))...)
	}
	return out
}
