// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// WriteReport is the outcome of a write operation.
type WriteReport struct {
	Written  []string `json:"written"`
	Replaced []string `json:"replaced,omitempty"`
	Total    int      `json:"total"`
}

// WriteComponents replaces or appends components. With append unset the
// target becomes a fresh library holding exactly the given components;
// with append set, same-name components are replaced in place and new
// names are appended.
func (e *Engine) WriteComponents(path string, kind LibraryKind,
	comps []*Component, appendMode bool, mo MutateOptions) (*WriteReport, error) {

	for _, c := range comps {
		if err := checkComponent(c, kind); err != nil {
			return nil, e.sandbox.SanitizeError(err)
		}
	}
	report := &WriteReport{}
	err := e.mutate(path, kind, true, mo, func(l *Library) error {
		if !appendMode {
			fresh := NewLibrary(kind)
			l.Header = fresh.Header
			l.Components = nil
			l.Models = fresh.Models
			l.Fonts = fresh.Fonts
		}
		for _, c := range comps {
			if _, ok := l.Lookup(c.Name); ok {
				if err := l.Replace(c.Name, c); err != nil {
					return err
				}
				report.Replaced = append(report.Replaced, c.Name)
			} else {
				if err := l.Add(c); err != nil {
					return err
				}
				report.Written = append(report.Written, c.Name)
			}
		}
		report.Total = len(l.Components)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteResult is the per-name outcome of a delete.
type DeleteResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // deleted | not_found
}

// DeleteReport is the outcome of a delete operation.
type DeleteReport struct {
	Results []DeleteResult `json:"results"`
	Total   int            `json:"total"`
}

// DeleteComponents removes components by exact name, reporting each name
// individually.
func (e *Engine) DeleteComponents(path string, kind LibraryKind,
	names []string, mo MutateOptions) (*DeleteReport, error) {

	report := &DeleteReport{}
	err := e.mutate(path, kind, false, mo, func(l *Library) error {
		for _, name := range names {
			status := "not_found"
			if l.Remove(name) {
				status = "deleted"
			}
			report.Results = append(report.Results, DeleteResult{Name: name, Status: status})
		}
		report.Total = len(l.Components)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// UpdateComponent swaps one component in place, preserving its position.
func (e *Engine) UpdateComponent(path string, kind LibraryKind,
	comp *Component, mo MutateOptions) error {

	if err := checkComponent(comp, kind); err != nil {
		return e.sandbox.SanitizeError(err)
	}
	return e.mutate(path, kind, false, mo, func(l *Library) error {
		return l.Replace(comp.Name, comp)
	})
}

// PadPatch is a partial update of one pad. Nil fields are untouched;
// dimensions are millimetres.
type PadPatch struct {
	XMm                 *float64 `json:"x_mm,omitempty"`
	YMm                 *float64 `json:"y_mm,omitempty"`
	WidthMm             *float64 `json:"width_mm,omitempty"`
	HeightMm            *float64 `json:"height_mm,omitempty"`
	HoleMm              *float64 `json:"hole_mm,omitempty"`
	Rotation            *float64 `json:"rotation,omitempty"`
	Shape               *string  `json:"shape,omitempty"`
	Layer               *string  `json:"layer,omitempty"`
	Designator          *string  `json:"designator,omitempty"`
	CornerRadiusPercent *int     `json:"corner_radius_percent,omitempty"`
	Plated              *bool    `json:"plated,omitempty"`
}

func (p *PadPatch) applyTo(pad *Pad) error {
	if p.XMm != nil {
		pad.X = MmToCoord(*p.XMm)
	}
	if p.YMm != nil {
		pad.Y = MmToCoord(*p.YMm)
	}
	if p.WidthMm != nil {
		w := MmToCoord(*p.WidthMm)
		pad.TopXSize, pad.MidXSize, pad.BotXSize = w, w, w
	}
	if p.HeightMm != nil {
		h := MmToCoord(*p.HeightMm)
		pad.TopYSize, pad.MidYSize, pad.BotYSize = h, h, h
	}
	if p.HoleMm != nil {
		pad.HoleSize = MmToCoord(*p.HoleMm)
	}
	if p.Rotation != nil {
		pad.Rotation = *p.Rotation
	}
	if p.Shape != nil {
		shape, ok := ParsePadShape(*p.Shape)
		if !ok {
			return opErrorf(KindInvalidArgument, nil, "unknown pad shape %q", *p.Shape)
		}
		pad.TopShape, pad.MidShape, pad.BotShape = shape, shape, shape
	}
	if p.Layer != nil {
		layer := ParseLayer(*p.Layer)
		if layer == LayerUnknown {
			return opErrorf(KindInvalidArgument, nil, "unknown layer %q", *p.Layer)
		}
		pad.Layer = layer
	}
	if p.Designator != nil {
		pad.Designator = *p.Designator
	}
	if p.Plated != nil {
		pad.Plated = *p.Plated
	}
	radius := pad.CornerRadiusByLayer
	pad.fillStackFromSides()
	pad.CornerRadiusByLayer = radius
	if p.CornerRadiusPercent != nil {
		if *p.CornerRadiusPercent < 0 || *p.CornerRadiusPercent > 100 {
			return fmt.Errorf("pad %q: %w", pad.Designator, ErrCornerRadiusRange)
		}
		pad.SetCornerRadiusPercent(uint8(*p.CornerRadiusPercent))
	}
	return nil
}

// UpdatePad patches one pad located by designator.
func (e *Engine) UpdatePad(path, component, designator string,
	patch PadPatch, mo MutateOptions) error {

	return e.mutate(path, KindPcbLib, false, mo, func(l *Library) error {
		comp, ok := l.Lookup(component)
		if !ok || comp.Footprint == nil {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, component)
		}
		for _, pad := range comp.Footprint.Pads {
			if pad.Designator == designator {
				return patch.applyTo(pad)
			}
		}
		return opErrorf(KindNotFound, ErrComponentNotFound,
			"pad %q not found in %s", designator, component)
	})
}

// PrimitivePatch is a partial update of one primitive located by type and
// index.
type PrimitivePatch struct {
	XMm      *float64 `json:"x_mm,omitempty"`
	YMm      *float64 `json:"y_mm,omitempty"`
	X2Mm     *float64 `json:"x2_mm,omitempty"`
	Y2Mm     *float64 `json:"y2_mm,omitempty"`
	WidthMm  *float64 `json:"width_mm,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Layer    *string  `json:"layer,omitempty"`
	Text     *string  `json:"text,omitempty"`
}

// UpdatePrimitive patches one primitive located by (type, index) inside a
// footprint.
func (e *Engine) UpdatePrimitive(path, component, primType string, index int,
	patch PrimitivePatch, mo MutateOptions) error {

	return e.mutate(path, KindPcbLib, false, mo, func(l *Library) error {
		comp, ok := l.Lookup(component)
		if !ok || comp.Footprint == nil {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, component)
		}
		return applyPrimitivePatch(comp.Footprint, primType, index, patch)
	})
}

func applyPrimitivePatch(fp *Footprint, primType string, index int, p PrimitivePatch) error {
	var layer *Layer
	if p.Layer != nil {
		l := ParseLayer(*p.Layer)
		if l == LayerUnknown {
			return opErrorf(KindInvalidArgument, nil, "unknown layer %q", *p.Layer)
		}
		layer = &l
	}
	notFound := opErrorf(KindNotFound, ErrComponentNotFound,
		"no %s at index %d", primType, index)

	switch strings.ToLower(primType) {
	case "track":
		if index < 0 || index >= len(fp.Tracks) {
			return notFound
		}
		t := fp.Tracks[index]
		if p.XMm != nil {
			t.X1 = MmToCoord(*p.XMm)
		}
		if p.YMm != nil {
			t.Y1 = MmToCoord(*p.YMm)
		}
		if p.X2Mm != nil {
			t.X2 = MmToCoord(*p.X2Mm)
		}
		if p.Y2Mm != nil {
			t.Y2 = MmToCoord(*p.Y2Mm)
		}
		if p.WidthMm != nil {
			t.Width = MmToCoord(*p.WidthMm)
		}
		if layer != nil {
			t.Layer = *layer
		}
	case "arc":
		if index < 0 || index >= len(fp.Arcs) {
			return notFound
		}
		a := fp.Arcs[index]
		if p.XMm != nil {
			a.X = MmToCoord(*p.XMm)
		}
		if p.YMm != nil {
			a.Y = MmToCoord(*p.YMm)
		}
		if p.WidthMm != nil {
			a.Width = MmToCoord(*p.WidthMm)
		}
		if layer != nil {
			a.Layer = *layer
		}
	case "text":
		if index < 0 || index >= len(fp.Texts) {
			return notFound
		}
		t := fp.Texts[index]
		if p.XMm != nil {
			t.X = MmToCoord(*p.XMm)
		}
		if p.YMm != nil {
			t.Y = MmToCoord(*p.YMm)
		}
		if p.Rotation != nil {
			t.Rotation = *p.Rotation
		}
		if p.Text != nil {
			t.Text = *p.Text
		}
		if layer != nil {
			t.Layer = *layer
		}
	case "fill":
		if index < 0 || index >= len(fp.Fills) {
			return notFound
		}
		f := fp.Fills[index]
		if p.XMm != nil {
			f.X1 = MmToCoord(*p.XMm)
		}
		if p.YMm != nil {
			f.Y1 = MmToCoord(*p.YMm)
		}
		if p.X2Mm != nil {
			f.X2 = MmToCoord(*p.X2Mm)
		}
		if p.Y2Mm != nil {
			f.Y2 = MmToCoord(*p.Y2Mm)
		}
		if p.Rotation != nil {
			f.Rotation = *p.Rotation
		}
		if layer != nil {
			f.Layer = *layer
		}
	case "via":
		if index < 0 || index >= len(fp.Vias) {
			return notFound
		}
		v := fp.Vias[index]
		if p.XMm != nil {
			v.X = MmToCoord(*p.XMm)
		}
		if p.YMm != nil {
			v.Y = MmToCoord(*p.YMm)
		}
		if p.WidthMm != nil {
			old := v.Diameter
			v.Diameter = MmToCoord(*p.WidthMm)
			for i := range v.DiameterByLayer {
				if v.DiameterByLayer[i] == old {
					v.DiameterByLayer[i] = v.Diameter
				}
			}
		}
	case "pad":
		if index < 0 || index >= len(fp.Pads) {
			return notFound
		}
		pad := fp.Pads[index]
		pp := PadPatch{XMm: p.XMm, YMm: p.YMm, Rotation: p.Rotation, Layer: p.Layer}
		if p.Text != nil {
			pp.Designator = p.Text
		}
		return pp.applyTo(pad)
	default:
		return opErrorf(KindUnknownOperation, nil, "unknown primitive type %q", primType)
	}
	return nil
}

// RenameComponent renames one component in place.
func (e *Engine) RenameComponent(path string, kind LibraryKind,
	oldName, newName string, mo MutateOptions) error {

	return e.mutate(path, kind, false, mo, func(l *Library) error {
		return l.Rename(oldName, newName)
	})
}

// RenamePair is one applied bulk rename.
type RenamePair struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RenameSkip is one bulk-rename conflict left untouched.
type RenameSkip struct {
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason"`
}

// BulkRenameReport is the outcome of a bulk rename.
type BulkRenameReport struct {
	Renamed []RenamePair `json:"renamed"`
	Skipped []RenameSkip `json:"skipped,omitempty"`
}

// BulkRename renames every component matching pattern. In glob mode the
// replacement may carry a `*` that receives the original name; in regex
// mode the replacement supports capture group references. Conflicting
// targets are reported as skips and the originals kept.
func (e *Engine) BulkRename(path string, kind LibraryKind,
	pattern, replacement string, useRegex bool,
	mo MutateOptions) (*BulkRenameReport, error) {

	report := &BulkRenameReport{}
	err := e.mutate(path, kind, false, mo, func(l *Library) error {
		var re *regexp.Regexp
		if useRegex {
			var err error
			if re, err = regexp.Compile(pattern); err != nil {
				return opErrorf(KindInvalidArgument, err, "bad pattern %q", pattern)
			}
		}
		taken := make(map[string]bool)
		for _, c := range l.Components {
			taken[storageKey(c.Name)] = true
		}
		type planned struct{ old, new string }
		var plan []planned
		for _, c := range l.Components {
			var newName string
			switch {
			case useRegex:
				if !re.MatchString(c.Name) {
					continue
				}
				newName = re.ReplaceAllString(c.Name, replacement)
			default:
				ok, err := filepath.Match(pattern, c.Name)
				if err != nil {
					return opErrorf(KindInvalidArgument, err, "bad pattern %q", pattern)
				}
				if !ok {
					continue
				}
				newName = strings.ReplaceAll(replacement, "*", c.Name)
			}
			if newName == c.Name {
				continue
			}
			if taken[storageKey(newName)] {
				report.Skipped = append(report.Skipped, RenameSkip{
					Old: c.Name, New: newName, Reason: "name already exists"})
				continue
			}
			taken[storageKey(newName)] = true
			delete(taken, storageKey(c.Name))
			plan = append(plan, planned{c.Name, newName})
		}
		for _, p := range plan {
			if err := l.Rename(p.old, p.new); err != nil {
				return err
			}
			report.Renamed = append(report.Renamed, RenamePair{Old: p.old, New: p.new})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// refreshUniqueIDs assigns fresh edit-tracking ids to every primitive of
// a copied component.
func refreshUniqueIDs(c *Component) {
	if c.Footprint == nil {
		return
	}
	for _, ref := range c.Footprint.walk() {
		*ref.id = NewUniqueID()
	}
}

// CopyComponent deep-clones a component under a new name, assigns fresh
// unique ids, and places the copy immediately after the source.
func (e *Engine) CopyComponent(path string, kind LibraryKind,
	source, newName string, mo MutateOptions) error {

	return e.mutate(path, kind, false, mo, func(l *Library) error {
		i := l.indexOf(source)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, source)
		}
		cp := l.Components[i].Clone()
		cp.Name = newName
		refreshUniqueIDs(cp)
		return l.Insert(i+1, cp)
	})
}

// CrossCopyOptions tune a cross-library copy.
type CrossCopyOptions struct {
	// NewName renames the copy in the target; empty keeps the source name.
	NewName string `json:"new_name,omitempty"`

	// PreserveExternalPaths keeps component-body references to models that
	// live outside the library. Off by default: external references are
	// dropped on copy.
	PreserveExternalPaths bool `json:"preserve_external_paths,omitempty"`

	// IgnoreMissingModels drops bodies whose GUID does not resolve instead
	// of failing.
	IgnoreMissingModels bool `json:"ignore_missing_models,omitempty"`
}

// CopyReport is the outcome of a copy operation.
type CopyReport struct {
	Name          string   `json:"name"`
	ModelsCopied  []string `json:"models_copied,omitempty"`
	BodiesDropped int      `json:"bodies_dropped,omitempty"`
}

// CopyCrossLibrary copies one component between two same-kind libraries.
// Embedded models travel with the component: the payload is cloned into
// the target registry under the same GUID and a fresh stream index.
func (e *Engine) CopyCrossLibrary(srcPath, dstPath, name string,
	xo CrossCopyOptions, mo MutateOptions) (*CopyReport, error) {

	kind := KindForPath(srcPath)
	if kind == KindUnknown || kind != KindForPath(dstPath) {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "source and target kinds disagree"))
	}
	src, err := e.readOnly(srcPath, kind)
	if err != nil {
		return nil, err
	}
	comp, ok := src.Lookup(name)
	if !ok {
		return nil, e.sandbox.SanitizeError(fmt.Errorf("%w: %s",
			ErrComponentNotFound, name))
	}

	cp := comp.Clone()
	if xo.NewName != "" {
		cp.Name = xo.NewName
	}
	refreshUniqueIDs(cp)

	report := &CopyReport{Name: cp.Name}
	var carry []*EmbeddedModel
	if cp.Footprint != nil {
		kept := cp.Footprint.Bodies[:0]
		for _, body := range cp.Footprint.Bodies {
			switch {
			case body.Embedded():
				var srcModel *EmbeddedModel
				found := false
				if src.Models != nil {
					srcModel, _, found = src.Models.Lookup(body.ModelID())
				}
				if !found {
					if xo.IgnoreMissingModels {
						report.BodiesDropped++
						continue
					}
					return nil, e.sandbox.SanitizeError(opErrorf(KindModelMissing,
						ErrModelNotFound, "model %s referenced by %s is missing",
						body.ModelID(), name))
				}
				carry = append(carry, srcModel.Clone())
				kept = append(kept, body)
			case xo.PreserveExternalPaths:
				kept = append(kept, body)
			default:
				report.BodiesDropped++
			}
		}
		cp.Footprint.Bodies = kept
	}

	err = e.mutate(dstPath, kind, true, mo, func(l *Library) error {
		if err := l.Add(cp); err != nil {
			return err
		}
		for _, m := range carry {
			if l.Models == nil {
				l.Models = NewModelRegistry()
			}
			if _, _, ok := l.Models.Lookup(m.ID); ok {
				continue
			}
			if err := l.Models.AttachModel(m); err != nil {
				return err
			}
			report.ModelsCopied = append(report.ModelsCopied, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Duplicate policies of a merge.
const (
	MergeError  = "error"
	MergeSkip   = "skip"
	MergeRename = "rename"
)

// MergeResult is the per-component outcome of a merge.
type MergeResult struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Status string `json:"status"` // added | skipped | renamed
	As     string `json:"as,omitempty"`
}

// MergeReport is the outcome of a merge operation.
type MergeReport struct {
	Results []MergeResult `json:"results"`
	Total   int           `json:"total"`
}

// MergeLibraries folds every component of the source libraries into the
// target. Duplicates follow the policy: fail, skip, or rename with a
// numeric suffix.
func (e *Engine) MergeLibraries(dstPath string, srcPaths []string,
	onDuplicate string, mo MutateOptions) (*MergeReport, error) {

	kind := KindForPath(dstPath)
	if kind == KindUnknown {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "unrecognised target extension"))
	}
	switch onDuplicate {
	case MergeError, MergeSkip, MergeRename, "":
	default:
		return nil, e.sandbox.SanitizeError(opErrorf(KindInvalidArgument, nil,
			"unknown duplicate policy %q", onDuplicate))
	}
	if onDuplicate == "" {
		onDuplicate = MergeError
	}

	type sourceLib struct {
		base string
		lib  *Library
	}
	var sources []sourceLib
	for _, sp := range srcPaths {
		if KindForPath(sp) != kind {
			return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
				ErrKindMismatch, "source %s kind disagrees with target",
				filepath.Base(sp)))
		}
		lib, err := e.readOnly(sp, kind)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sourceLib{base: filepath.Base(sp), lib: lib})
	}

	report := &MergeReport{}
	err := e.mutate(dstPath, kind, true, mo, func(l *Library) error {
		for _, src := range sources {
			for _, comp := range src.lib.Components {
				cp := comp.Clone()
				result := MergeResult{Source: src.base, Name: comp.Name}
				if _, ok := l.Lookup(cp.Name); ok {
					switch onDuplicate {
					case MergeError:
						return fmt.Errorf("%w: %s", ErrDuplicateName, cp.Name)
					case MergeSkip:
						result.Status = "skipped"
						report.Results = append(report.Results, result)
						continue
					case MergeRename:
						cp.Name = nextFreeName(l, comp.Name)
						result.Status = "renamed"
						result.As = cp.Name
					}
				} else {
					result.Status = "added"
				}
				if err := l.Add(cp); err != nil {
					return err
				}
				mergeModels(l, src.lib, cp)
				report.Results = append(report.Results, result)
			}
		}
		report.Total = len(l.Components)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// nextFreeName appends _1, _2, ... until the name is free.
func nextFreeName(l *Library, base string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, ok := l.Lookup(candidate); !ok {
			return candidate
		}
	}
}

// mergeModels clones the embedded models a copied footprint references
// into the target registry.
func mergeModels(dst, src *Library, comp *Component) {
	if comp.Footprint == nil || src.Models == nil {
		return
	}
	for _, body := range comp.Footprint.Bodies {
		if !body.Embedded() {
			continue
		}
		m, _, ok := src.Models.Lookup(body.ModelID())
		if !ok {
			continue
		}
		if dst.Models == nil {
			dst.Models = NewModelRegistry()
		}
		if _, _, ok := dst.Models.Lookup(m.ID); ok {
			continue
		}
		_ = dst.Models.AttachModel(m.Clone())
	}
}

// ReorderReport is the outcome of a reorder operation.
type ReorderReport struct {
	Order    []string `json:"order"`
	Appended []string `json:"appended,omitempty"`
}

// ReorderComponents permutes the library to start with the given prefix.
// Unknown names are ignored; everything not listed keeps its relative
// order and is reported as the appended tail.
func (e *Engine) ReorderComponents(path string, kind LibraryKind,
	prefix []string, mo MutateOptions) (*ReorderReport, error) {

	report := &ReorderReport{}
	err := e.mutate(path, kind, false, mo, func(l *Library) error {
		report.Appended = l.Reorder(prefix)
		report.Order = l.Names()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Batch operations.
const (
	BatchTrackWidth   = "track_width"
	BatchLayerRename  = "layer_rename"
	BatchParameterSet = "parameter_set"
)

// BatchRequest selects and parameterises a bulk edit.
type BatchRequest struct {
	Operation string `json:"operation"`

	// track_width: replace widths within tolerance of the old value.
	OldWidthMm  float64 `json:"old_width_mm,omitempty"`
	ToleranceMm float64 `json:"tolerance_mm,omitempty"`
	NewWidthMm  float64 `json:"new_width_mm,omitempty"`

	// layer_rename: move primitives between layers.
	FromLayer string `json:"from_layer,omitempty"`
	ToLayer   string `json:"to_layer,omitempty"`

	// parameter_set: set or add a symbol parameter, optionally filtered by
	// a component-name regex.
	ParamName       string `json:"param_name,omitempty"`
	ParamValue      string `json:"param_value,omitempty"`
	AddIfMissing    bool   `json:"add_if_missing,omitempty"`
	ComponentFilter string `json:"component_filter,omitempty"`
}

// BatchReport is the outcome of a batch update.
type BatchReport struct {
	Matched    int `json:"matched"`
	Components int `json:"components"`
}

// BatchUpdate runs one bulk edit across the whole library.
func (e *Engine) BatchUpdate(path string, kind LibraryKind,
	req BatchRequest, mo MutateOptions) (*BatchReport, error) {

	report := &BatchReport{}
	var apply func(l *Library) error
	switch req.Operation {
	case BatchTrackWidth:
		apply = func(l *Library) error {
			old := MmToCoord(req.OldWidthMm)
			tol := MmToCoord(req.ToleranceMm)
			neu := MmToCoord(req.NewWidthMm)
			for _, c := range l.Components {
				if c.Footprint == nil {
					continue
				}
				touched := false
				for _, t := range c.Footprint.Tracks {
					d := t.Width - old
					if d < 0 {
						d = -d
					}
					if d <= tol {
						t.Width = neu
						report.Matched++
						touched = true
					}
				}
				if touched {
					report.Components++
				}
			}
			return nil
		}
	case BatchLayerRename:
		from := ParseLayer(req.FromLayer)
		to := ParseLayer(req.ToLayer)
		if from == LayerUnknown || to == LayerUnknown {
			return nil, e.sandbox.SanitizeError(opErrorf(KindInvalidArgument, nil,
				"unknown layer in rename %q -> %q", req.FromLayer, req.ToLayer))
		}
		apply = func(l *Library) error {
			for _, c := range l.Components {
				if c.Footprint == nil {
					continue
				}
				n := renameFootprintLayers(c.Footprint, from, to)
				if n > 0 {
					report.Components++
					report.Matched += n
				}
			}
			return nil
		}
	case BatchParameterSet:
		var filter *regexp.Regexp
		if req.ComponentFilter != "" {
			var err error
			if filter, err = regexp.Compile(req.ComponentFilter); err != nil {
				return nil, e.sandbox.SanitizeError(opErrorf(KindInvalidArgument,
					err, "bad component filter %q", req.ComponentFilter))
			}
		}
		apply = func(l *Library) error {
			for _, c := range l.Components {
				if c.Symbol == nil {
					continue
				}
				if filter != nil && !filter.MatchString(c.Name) {
					continue
				}
				found := false
				for _, p := range c.Symbol.Parameters {
					if strings.EqualFold(p.Name, req.ParamName) {
						p.Value = req.ParamValue
						found = true
						report.Matched++
					}
				}
				if !found && req.AddIfMissing {
					c.Symbol.Parameters = append(c.Symbol.Parameters, &SchParameter{
						Name: req.ParamName, Value: req.ParamValue})
					report.Matched++
					found = true
				}
				if found {
					report.Components++
				}
			}
			return nil
		}
	default:
		return nil, e.sandbox.SanitizeError(opErrorf(KindUnknownOperation, nil,
			"unknown batch operation %q", req.Operation))
	}

	if err := e.mutate(path, kind, false, mo, apply); err != nil {
		return nil, err
	}
	return report, nil
}

func renameFootprintLayers(fp *Footprint, from, to Layer) int {
	n := 0
	move := func(l *Layer) {
		if *l == from {
			*l = to
			n++
		}
	}
	for _, p := range fp.Pads {
		move(&p.Layer)
	}
	for _, t := range fp.Tracks {
		move(&t.Layer)
	}
	for _, a := range fp.Arcs {
		move(&a.Layer)
	}
	for _, t := range fp.Texts {
		move(&t.Layer)
	}
	for _, f := range fp.Fills {
		move(&f.Layer)
	}
	for _, g := range fp.Regions {
		move(&g.Layer)
	}
	for _, b := range fp.Bodies {
		move(&b.Layer)
	}
	return n
}

// Extraction modes.
const (
	ExtractAuto        = "auto"
	ExtractList        = "list"
	ExtractAll         = "extract_all"
	ExtractByFootprint = "extract_by_footprint"
)

// ExtractRequest selects which STEP payloads to emit.
type ExtractRequest struct {
	Mode      string `json:"mode"`
	Footprint string `json:"footprint,omitempty"`
	OutDir    string `json:"out_dir,omitempty"`
}

// ExtractedModel describes one emitted or listed model.
type ExtractedModel struct {
	Name     string `json:"name"`
	GUID     string `json:"guid"`
	Index    int    `json:"index"`
	Size     int    `json:"size"`
	Checksum uint32 `json:"checksum"`
	File     string `json:"file,omitempty"`
}

// ExtractReport is the outcome of a STEP extraction.
type ExtractReport struct {
	Models []ExtractedModel `json:"models"`
}

// ExtractStepModel decompresses embedded STEP payloads. Mode list only
// reports metadata; the extract modes write the decompressed files into
// OutDir, which must lie inside the sandbox.
func (e *Engine) ExtractStepModel(path string, req ExtractRequest) (*ExtractReport, error) {
	lib, err := e.readOnly(path, KindPcbLib)
	if err != nil {
		return nil, err
	}
	if lib.Models == nil || len(lib.Models.Models) == 0 {
		return nil, e.sandbox.SanitizeError(opErrorf(KindModelNotFound,
			ErrModelNotFound, "library holds no embedded models"))
	}

	mode := req.Mode
	if mode == "" || mode == ExtractAuto {
		if req.Footprint != "" {
			mode = ExtractByFootprint
		} else if req.OutDir != "" {
			mode = ExtractAll
		} else {
			mode = ExtractList
		}
	}

	var wanted []*EmbeddedModel
	switch mode {
	case ExtractList, ExtractAll:
		wanted = lib.Models.Models
	case ExtractByFootprint:
		comp, ok := lib.Lookup(req.Footprint)
		if !ok || comp.Footprint == nil {
			return nil, e.sandbox.SanitizeError(fmt.Errorf("%w: %s",
				ErrComponentNotFound, req.Footprint))
		}
		seen := make(map[string]bool)
		for _, body := range comp.Footprint.Bodies {
			if !body.Embedded() || seen[body.ModelID()] {
				continue
			}
			m, _, ok := lib.Models.Lookup(body.ModelID())
			if !ok {
				return nil, e.sandbox.SanitizeError(opErrorf(KindModelNotFound,
					ErrModelNotFound, "model %s not in registry", body.ModelID()))
			}
			seen[m.ID] = true
			wanted = append(wanted, m)
		}
		if len(wanted) == 0 {
			return nil, e.sandbox.SanitizeError(opErrorf(KindModelNotFound,
				ErrModelNotFound, "footprint %s references no embedded models",
				req.Footprint))
		}
	default:
		return nil, e.sandbox.SanitizeError(opErrorf(KindUnknownOperation, nil,
			"unknown extraction mode %q", req.Mode))
	}

	report := &ExtractReport{}
	var outDir string
	if mode != ExtractList {
		if req.OutDir == "" {
			return nil, e.sandbox.SanitizeError(opErrorf(KindInvalidArgument, nil,
				"out_dir is required for extraction"))
		}
		if outDir, err = e.sandbox.Resolve(req.OutDir); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, e.sandbox.SanitizeError(err)
		}
	}
	for _, m := range wanted {
		_, idx, _ := lib.Models.Lookup(m.ID)
		entry := ExtractedModel{
			Name:     m.Name,
			GUID:     m.ID,
			Index:    idx,
			Size:     len(m.Data),
			Checksum: m.Checksum,
		}
		if mode != ExtractList {
			name := filepath.Base(m.Name)
			if name == "." || name == "" {
				name = m.ID + ".step"
			}
			dst := filepath.Join(outDir, name)
			if err := os.WriteFile(dst, m.Data, 0o644); err != nil {
				return nil, e.sandbox.SanitizeError(err)
			}
			entry.File = name
		}
		report.Models = append(report.Models, entry)
	}
	return report, nil
}

// AttachRequest describes a model attachment.
type AttachRequest struct {
	Footprint string  `json:"footprint"`
	ModelName string  `json:"model_name"`
	RotX      float64 `json:"rot_x,omitempty"`
	RotY      float64 `json:"rot_y,omitempty"`
	RotZ      float64 `json:"rot_z,omitempty"`
	ZOffsetMm float64 `json:"z_offset_mm,omitempty"`
	StandoffMm float64 `json:"standoff_mm,omitempty"`
	OverallHeightMm float64 `json:"overall_height_mm,omitempty"`
}

// AttachReport is the outcome of a model attachment.
type AttachReport struct {
	GUID  string `json:"guid"`
	Index int    `json:"index"`
}

// AttachStepModel embeds a STEP payload into the registry and adds a
// component body referencing it to the footprint.
func (e *Engine) AttachStepModel(path string, req AttachRequest,
	step []byte, mo MutateOptions) (*AttachReport, error) {

	report := &AttachReport{}
	err := e.mutate(path, KindPcbLib, false, mo, func(l *Library) error {
		comp, ok := l.Lookup(req.Footprint)
		if !ok || comp.Footprint == nil {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, req.Footprint)
		}
		if l.Models == nil {
			l.Models = NewModelRegistry()
		}
		m := l.Models.Attach(req.ModelName, step, req.RotX, req.RotY, req.RotZ,
			req.ZOffsetMm)
		report.GUID = m.ID
		report.Index = len(l.Models.Models) - 1

		body := NewComponentBody()
		body.UniqueID = NewUniqueID()
		body.SetModelID(m.ID)
		body.SetModelName(req.ModelName)
		body.SetEmbedded(true)
		body.SetRotation(req.RotX, req.RotY, req.RotZ)
		body.SetZOffsetMm(req.ZOffsetMm)
		if req.StandoffMm != 0 {
			body.SetStandoffHeightMm(req.StandoffMm)
		}
		if req.OverallHeightMm != 0 {
			body.SetOverallHeightMm(req.OverallHeightMm)
		}
		comp.Footprint.Bodies = append(comp.Footprint.Bodies, body)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ComponentInfo is one row of a component listing.
type ComponentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Pads        int    `json:"pads,omitempty"`
	Pins        int    `json:"pins,omitempty"`
	Primitives  int    `json:"primitives"`
}

// ListComponents reports every component of a library.
func (e *Engine) ListComponents(path string) ([]ComponentInfo, error) {
	kind := KindForPath(path)
	if kind == KindUnknown {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "unrecognised extension"))
	}
	lib, err := e.readOnly(path, kind)
	if err != nil {
		return nil, err
	}
	out := make([]ComponentInfo, 0, len(lib.Components))
	for _, c := range lib.Components {
		info := ComponentInfo{Name: c.Name, Description: c.Description}
		if c.Footprint != nil {
			info.Pads = len(c.Footprint.Pads)
			info.Primitives = c.Footprint.PrimitiveCount()
		}
		if c.Symbol != nil {
			info.Pins = len(c.Symbol.Pins)
			info.Primitives = c.Symbol.PrimitiveCount()
		}
		out = append(out, info)
	}
	return out, nil
}

// ReadLibrary parses a library inside the sandbox without opening it for
// write.
func (e *Engine) ReadLibrary(path string) (*Library, error) {
	kind := KindForPath(path)
	if kind == KindUnknown {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "unrecognised extension"))
	}
	return e.readOnly(path, kind)
}

// GetComponent returns one component by exact name.
func (e *Engine) GetComponent(path, name string) (*Component, error) {
	kind := KindForPath(path)
	if kind == KindUnknown {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "unrecognised extension"))
	}
	lib, err := e.readOnly(path, kind)
	if err != nil {
		return nil, err
	}
	comp, ok := lib.Get(name)
	if !ok {
		return nil, e.sandbox.SanitizeError(fmt.Errorf("%w: %s",
			ErrComponentNotFound, name))
	}
	return comp, nil
}

// checkComponent enforces the write-time invariants: a component must
// match the library kind, hold at least one primitive, and carry finite,
// positive geometry.
func checkComponent(c *Component, kind LibraryKind) error {
	switch kind {
	case KindPcbLib:
		if c.Footprint == nil {
			return opErrorf(KindInvalidPrimitive, ErrKindMismatch,
				"component %s is not a footprint", c.Name)
		}
	case KindSchLib:
		if c.Symbol == nil {
			return opErrorf(KindInvalidPrimitive, ErrKindMismatch,
				"component %s is not a symbol", c.Name)
		}
	}
	if c.IsEmpty() {
		return opErrorf(KindInvalidPrimitive, ErrComponentEmpty,
			"component %s has no primitives", c.Name)
	}
	findings := componentFindings(c)
	if len(findings) > 0 {
		return opErrorf(KindInvalidPrimitive, nil, "component %s: %s",
			c.Name, findings[0])
	}
	return nil
}
