// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"math"
	"path/filepath"
	"reflect"
)

// ValidationFinding is one problem found in a component.
type ValidationFinding struct {
	Component string `json:"component"`
	Problem   string `json:"problem"`
}

// ValidationReport is the outcome of a validate operation.
type ValidationReport struct {
	Valid    bool                `json:"valid"`
	Findings []ValidationFinding `json:"findings,omitempty"`
}

// componentFindings collects the invariant violations of one component:
// duplicate designators, non-finite coordinates, non-positive dimensions.
func componentFindings(c *Component) []string {
	var out []string
	if fp := c.Footprint; fp != nil {
		seen := make(map[string]bool)
		for _, p := range fp.Pads {
			if p.Designator != "" && seen[p.Designator] {
				out = append(out, fmt.Sprintf("duplicate pad designator %q", p.Designator))
			}
			seen[p.Designator] = true
			if !isFinite(p.Rotation) {
				out = append(out, fmt.Sprintf("pad %q has a non-finite rotation", p.Designator))
			}
			if p.TopXSize <= 0 || p.TopYSize <= 0 {
				out = append(out, fmt.Sprintf("pad %q has a non-positive size", p.Designator))
			}
		}
		for i, v := range fp.Vias {
			if v.Diameter <= 0 || v.HoleSize <= 0 {
				out = append(out, fmt.Sprintf("via %d has a non-positive size", i))
			}
		}
		for i, t := range fp.Tracks {
			if t.Width <= 0 {
				out = append(out, fmt.Sprintf("track %d has a non-positive width", i))
			}
		}
		for i, a := range fp.Arcs {
			if a.Radius <= 0 {
				out = append(out, fmt.Sprintf("arc %d has a non-positive radius", i))
			}
			if !isFinite(a.StartAngle) || !isFinite(a.EndAngle) {
				out = append(out, fmt.Sprintf("arc %d has a non-finite angle", i))
			}
		}
		for i, t := range fp.Texts {
			if t.Height <= 0 {
				out = append(out, fmt.Sprintf("text %d has a non-positive height", i))
			}
			if !isFinite(t.Rotation) {
				out = append(out, fmt.Sprintf("text %d has a non-finite rotation", i))
			}
		}
		for i, g := range fp.Regions {
			if len(g.Vertices) < 3 {
				out = append(out, fmt.Sprintf("region %d has fewer than 3 vertices", i))
			}
			for _, v := range g.Vertices {
				if !isFinite(v.X) || !isFinite(v.Y) {
					out = append(out, fmt.Sprintf("region %d has a non-finite vertex", i))
					break
				}
			}
		}
	}
	if sym := c.Symbol; sym != nil {
		seen := make(map[string]bool)
		for _, p := range sym.Pins {
			if p.Designator != "" && seen[p.Designator] {
				out = append(out, fmt.Sprintf("duplicate pin designator %q", p.Designator))
			}
			seen[p.Designator] = true
			if p.Length < 0 {
				out = append(out, fmt.Sprintf("pin %q has a negative length", p.Designator))
			}
		}
		for i, b := range sym.Beziers {
			if len(b.Points) != 4 {
				out = append(out, fmt.Sprintf("bezier %d does not have 4 control points", i))
			}
		}
		for i, p := range sym.Polygons {
			if len(p.Points) < 3 {
				out = append(out, fmt.Sprintf("polygon %d has fewer than 3 vertices", i))
			}
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clearUniqueIDs(c *Component) {
	if c.Footprint == nil {
		return
	}
	for _, ref := range c.Footprint.walk() {
		*ref.id = ""
	}
}

// Validate reports every invariant violation of a library without
// touching the file: empty components, duplicate designators, non-finite
// coordinates, non-positive dimensions, dangling model references.
func (e *Engine) Validate(path string) (*ValidationReport, error) {
	kind := KindForPath(path)
	if kind == KindUnknown {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "unrecognised extension"))
	}
	lib, err := e.readOnly(path, kind)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{Valid: true}
	add := func(comp, problem string) {
		report.Valid = false
		report.Findings = append(report.Findings, ValidationFinding{
			Component: comp, Problem: problem})
	}
	for _, c := range lib.Components {
		if c.IsEmpty() {
			add(c.Name, "component has no primitives")
		}
		for _, f := range componentFindings(c) {
			add(c.Name, f)
		}
		if c.Footprint != nil {
			for _, body := range c.Footprint.Bodies {
				if !body.Embedded() {
					continue
				}
				if lib.Models == nil {
					add(c.Name, fmt.Sprintf("model %s not in registry", body.ModelID()))
					continue
				}
				if _, _, ok := lib.Models.Lookup(body.ModelID()); !ok {
					add(c.Name, fmt.Sprintf("model %s not in registry", body.ModelID()))
				}
			}
		}
	}
	return report, nil
}

// RepairReport is the outcome of a repair operation.
type RepairReport struct {
	// Removed counts the dropped dangling body references per component.
	Removed map[string]int `json:"removed"`
	Total   int            `json:"total"`
}

// Repair removes component-body entries whose model GUID does not resolve
// in the registry. After repair no dangling references remain.
func (e *Engine) Repair(path string, mo MutateOptions) (*RepairReport, error) {
	report := &RepairReport{Removed: make(map[string]int)}
	err := e.mutate(path, KindPcbLib, false, mo, func(l *Library) error {
		for _, c := range l.Components {
			if c.Footprint == nil {
				continue
			}
			kept := c.Footprint.Bodies[:0]
			for _, body := range c.Footprint.Bodies {
				if body.Embedded() {
					resolved := false
					if l.Models != nil {
						_, _, resolved = l.Models.Lookup(body.ModelID())
					}
					if !resolved {
						report.Removed[c.Name]++
						report.Total++
						continue
					}
				}
				kept = append(kept, body)
			}
			c.Footprint.Bodies = kept
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DiffEntry describes one modified component.
type DiffEntry struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields,omitempty"`
}

// DiffReport compares two same-kind libraries.
type DiffReport struct {
	Added    []string    `json:"added,omitempty"`
	Removed  []string    `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
	Equal    bool        `json:"equal"`
}

// Diff reports the component-level differences from the first library to
// the second.
func (e *Engine) Diff(pathA, pathB string) (*DiffReport, error) {
	kind := KindForPath(pathA)
	if kind == KindUnknown || kind != KindForPath(pathB) {
		return nil, e.sandbox.SanitizeError(opErrorf(KindKindMismatch,
			ErrKindMismatch, "libraries %s and %s are not the same kind",
			filepath.Base(pathA), filepath.Base(pathB)))
	}
	libA, err := e.readOnly(pathA, kind)
	if err != nil {
		return nil, err
	}
	libB, err := e.readOnly(pathB, kind)
	if err != nil {
		return nil, err
	}

	report := &DiffReport{}
	for _, c := range libB.Components {
		if _, ok := libA.Lookup(c.Name); !ok {
			report.Added = append(report.Added, c.Name)
		}
	}
	for _, a := range libA.Components {
		b, ok := libB.Lookup(a.Name)
		if !ok {
			report.Removed = append(report.Removed, a.Name)
			continue
		}
		fields := diffComponent(a, b)
		if len(fields) > 0 {
			report.Modified = append(report.Modified, DiffEntry{Name: a.Name, Fields: fields})
		}
	}
	report.Equal = len(report.Added) == 0 && len(report.Removed) == 0 &&
		len(report.Modified) == 0
	return report, nil
}

func diffComponent(a, b *Component) []string {
	// Edit-tracking ids are regenerated per file, so they never count as a
	// modification.
	a = a.Clone()
	b = b.Clone()
	clearUniqueIDs(a)
	clearUniqueIDs(b)

	var fields []string
	if a.Description != b.Description {
		fields = append(fields, "description")
	}
	if fa, fb := a.Footprint, b.Footprint; fa != nil && fb != nil {
		count := func(name string, x, y int) {
			if x != y {
				fields = append(fields, name)
			}
		}
		count("pads", len(fa.Pads), len(fb.Pads))
		count("vias", len(fa.Vias), len(fb.Vias))
		count("tracks", len(fa.Tracks), len(fb.Tracks))
		count("arcs", len(fa.Arcs), len(fb.Arcs))
		count("texts", len(fa.Texts), len(fb.Texts))
		count("fills", len(fa.Fills), len(fb.Fills))
		count("regions", len(fa.Regions), len(fb.Regions))
		count("bodies", len(fa.Bodies), len(fb.Bodies))
		if len(fields) == 0 && !reflect.DeepEqual(fa, fb) {
			fields = append(fields, "primitives")
		}
	}
	if sa, sb := a.Symbol, b.Symbol; sa != nil && sb != nil {
		if len(sa.Pins) != len(sb.Pins) {
			fields = append(fields, "pins")
		}
		if sa.PartCount != sb.PartCount {
			fields = append(fields, "part_count")
		}
		if sa.DesignatorPrefix != sb.DesignatorPrefix {
			fields = append(fields, "designator_prefix")
		}
		if len(fields) == 0 && !reflect.DeepEqual(sa, sb) {
			fields = append(fields, "primitives")
		}
	}
	return fields
}
