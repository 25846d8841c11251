// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Model registry record keys.
const (
	modelKeyEmbed    = "EMBED"
	modelKeyID       = "ID"
	modelKeyName     = "NAME"
	modelKeyRotX     = "ROTX"
	modelKeyRotY     = "ROTY"
	modelKeyRotZ     = "ROTZ"
	modelKeyDZ       = "DZ"
	modelKeyChecksum = "CHECKSUM"
)

var guidRe = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`)

// NormalizeGUID upper-cases a GUID and strips braces, failing on malformed
// input.
func NormalizeGUID(s string) (string, error) {
	g := strings.ToUpper(strings.Trim(strings.TrimSpace(s), "{}"))
	if !guidRe.MatchString(g) {
		return "", fmt.Errorf("%w: %q", ErrBadGUID, s)
	}
	return g, nil
}

// EmbeddedModel is one STEP payload of the registry. Data holds the
// decompressed bytes; the stream index is the model's position in the
// registry.
type EmbeddedModel struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	RotX     float64 `json:"rot_x"`
	RotY     float64 `json:"rot_y"`
	RotZ     float64 `json:"rot_z"`
	DZ       float64 `json:"dz_mm"`
	Checksum uint32  `json:"checksum"`
	Data     []byte  `json:"-"`

	// Full metadata record, preserved so vendor keys survive round-trips.
	Parameters *ParameterList `json:"parameters"`
}

// Clone returns a deep copy of the model.
func (m *EmbeddedModel) Clone() *EmbeddedModel {
	cp := *m
	cp.Data = append([]byte(nil), m.Data...)
	if m.Parameters != nil {
		cp.Parameters = m.Parameters.Clone()
	}
	return &cp
}

// ModelRegistry is the embedded 3-D model table of a footprint library.
// Model order is the stream index order: stream i holds Models[i].
type ModelRegistry struct {
	Models []*EmbeddedModel `json:"models"`
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Clone returns a deep copy of the registry.
func (r *ModelRegistry) Clone() *ModelRegistry {
	cp := &ModelRegistry{}
	for _, m := range r.Models {
		cp.Models = append(cp.Models, m.Clone())
	}
	return cp
}

// Lookup resolves a GUID to its model and stream index.
func (r *ModelRegistry) Lookup(guid string) (*EmbeddedModel, int, bool) {
	g := strings.ToUpper(strings.Trim(guid, "{}"))
	for i, m := range r.Models {
		if m.ID == g {
			return m, i, true
		}
	}
	return nil, -1, false
}

// Attach adds a STEP payload under a fresh GUID and returns the model.
// The payload is checksummed and will be zlib-compressed on encode under
// the next free stream index.
func (r *ModelRegistry) Attach(name string, data []byte, rx, ry, rz, dz float64) *EmbeddedModel {
	m := &EmbeddedModel{
		ID:         strings.ToUpper(uuid.NewString()),
		Name:       name,
		RotX:       rx,
		RotY:       ry,
		RotZ:       rz,
		DZ:         dz,
		Checksum:   crc32.ChecksumIEEE(data),
		Data:       append([]byte(nil), data...),
		Parameters: &ParameterList{},
	}
	r.Models = append(r.Models, m)
	return m
}

// AttachModel adds an existing model value, keeping its GUID. Used by
// cross-library copy. Fails when the GUID is already present.
func (r *ModelRegistry) AttachModel(m *EmbeddedModel) error {
	if _, _, ok := r.Lookup(m.ID); ok {
		return fmt.Errorf("%w: model %s", ErrDuplicateName, m.ID)
	}
	r.Models = append(r.Models, m)
	return nil
}

// Detach removes the model with the given GUID. Later models shift down
// one stream index, keeping the numbering dense.
func (r *ModelRegistry) Detach(guid string) error {
	_, i, ok := r.Lookup(guid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, guid)
	}
	r.Models = append(r.Models[:i], r.Models[i+1:]...)
	return nil
}

// decodeModelRegistry parses Header, Data and the numbered payload
// streams of the Models storage.
func decodeModelRegistry(c *Container) (*ModelRegistry, error) {
	reg := NewModelRegistry()

	hb, err := c.Stream(storageLibrary, storageModels, "Header")
	if err != nil {
		return nil, err
	}
	if len(hb) < 4 {
		return nil, fmt.Errorf("model header: %w", ErrBlockTooLarge)
	}
	count := int(binary.LittleEndian.Uint32(hb))

	db, err := c.Stream(storageLibrary, storageModels, streamData)
	if err != nil {
		return nil, err
	}
	rest := db
	for i := 0; i < count; i++ {
		blob, r, err := readLengthPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("model record %d: %w", i, err)
		}
		rest = r
		pl := ParseParameters(blob)
		id, err := NormalizeGUID(pl.GetString(modelKeyID, ""))
		if err != nil {
			return nil, err
		}
		dz := 0.0
		if v, ok := pl.Get(modelKeyDZ); ok {
			if mm, err := parseUnitValue(v); err == nil {
				dz = mm
			}
		}
		m := &EmbeddedModel{
			ID:         id,
			Name:       pl.GetString(modelKeyName, ""),
			RotX:       pl.GetFloat(modelKeyRotX, 0),
			RotY:       pl.GetFloat(modelKeyRotY, 0),
			RotZ:       pl.GetFloat(modelKeyRotZ, 0),
			DZ:         dz,
			Checksum:   uint32(pl.GetInt(modelKeyChecksum, 0)),
			Parameters: pl,
		}

		payload, err := c.Stream(storageLibrary, storageModels, strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		raw, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		m.Data = raw
		reg.Models = append(reg.Models, m)
	}
	return reg, nil
}

// encode writes Header, Data and one compressed payload stream per model
// with dense indices 0..N-1.
func (r *ModelRegistry) encode(c *Container) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(r.Models)))
	if err := c.SetStream(hdr[:], storageLibrary, storageModels, "Header"); err != nil {
		return err
	}

	var data []byte
	for i, m := range r.Models {
		pl := m.Parameters
		if pl == nil {
			pl = &ParameterList{}
		}
		pl.Set(modelKeyEmbed, "TRUE")
		pl.Set(modelKeyID, "{"+m.ID+"}")
		pl.Set(modelKeyName, m.Name)
		pl.Set(modelKeyRotX, formatFloat(m.RotX))
		pl.Set(modelKeyRotY, formatFloat(m.RotY))
		pl.Set(modelKeyRotZ, formatFloat(m.RotZ))
		pl.Set(modelKeyDZ, formatMil(m.DZ))
		pl.Set(modelKeyChecksum, strconv.FormatUint(uint64(crc32.ChecksumIEEE(m.Data)), 10))
		data = append(data, lengthPrefixed(pl.Encode())...)

		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		if _, err := zw.Write(m.Data); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if err := c.SetStream(zb.Bytes(), storageLibrary, storageModels,
			strconv.Itoa(i)); err != nil {
			return err
		}
	}
	if err := c.SetStream(data, storageLibrary, storageModels, streamData); err != nil {
		return err
	}
	return nil
}
