// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	altium "github.com/saferwall/altium"
)

// toolFunc handles one RPC method.
type toolFunc func(s *server, params json.RawMessage) (interface{}, error)

// tools maps method names to handlers.
var tools = map[string]toolFunc{
	"read_pcblib":        toolReadPcbLib,
	"read_schlib":        toolReadSchLib,
	"write_pcblib":       toolWritePcbLib,
	"write_schlib":       toolWriteSchLib,
	"delete_component":   toolDeleteComponent,
	"update_component":   toolUpdateComponent,
	"update_pad":         toolUpdatePad,
	"update_primitive":   toolUpdatePrimitive,
	"rename_component":   toolRenameComponent,
	"bulk_rename":        toolBulkRename,
	"copy_component":     toolCopyComponent,
	"copy_cross_library": toolCopyCrossLibrary,
	"merge_libraries":    toolMergeLibraries,
	"reorder_components": toolReorderComponents,
	"batch_update":       toolBatchUpdate,
	"extract_step_model": toolExtractStepModel,
	"attach_step_model":  toolAttachStepModel,
	"validate_library":   toolValidateLibrary,
	"repair_library":     toolRepairLibrary,
	"diff_libraries":     toolDiffLibraries,
	"list_components":    toolListComponents,
	"get_component":      toolGetComponent,
	"render_footprint":   toolRenderFootprint,
	"render_symbol":      toolRenderSymbol,
	"export_csv":         toolExportCSV,
}

func invalidParams(err error) error {
	return &altium.OpError{Kind: altium.KindInvalidArgument,
		Msg: "invalid params: " + err.Error(), Err: err}
}

func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return invalidParams(fmt.Errorf("missing params"))
	}
	if err := json.Unmarshal(params, v); err != nil {
		return invalidParams(err)
	}
	return nil
}

// fileArgs is the common argument shape of single-target tools.
type fileArgs struct {
	Filepath string `json:"filepath"`
	DryRun   bool   `json:"dry_run,omitempty"`
	NoBackup bool   `json:"no_backup,omitempty"`
}

func (a *fileArgs) check() error {
	if a.Filepath == "" {
		return invalidParams(fmt.Errorf("filepath is required"))
	}
	return nil
}

func (a *fileArgs) mutateOptions() altium.MutateOptions {
	return altium.MutateOptions{DryRun: a.DryRun, NoBackup: a.NoBackup}
}

// libraryInfo summarises a read library.
type libraryInfo struct {
	Kind       string                 `json:"kind"`
	Components []altium.ComponentInfo `json:"components"`
	Models     int                    `json:"models,omitempty"`
}

func readLibraryInfo(s *server, path string) (*libraryInfo, error) {
	infos, err := s.engine.ListComponents(path)
	if err != nil {
		return nil, err
	}
	info := &libraryInfo{
		Kind:       altium.KindForPath(path).String(),
		Components: infos,
	}
	return info, nil
}

func toolReadPcbLib(s *server, params json.RawMessage) (interface{}, error) {
	var a fileArgs
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return readLibraryInfo(s, a.Filepath)
}

func toolReadSchLib(s *server, params json.RawMessage) (interface{}, error) {
	return toolReadPcbLib(s, params)
}

func toolWritePcbLib(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Append     bool           `json:"append,omitempty"`
		Footprints []footprintArg `json:"footprints"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if len(a.Footprints) == 0 {
		return nil, invalidParams(fmt.Errorf("footprints is required"))
	}
	comps := make([]*altium.Component, 0, len(a.Footprints))
	for _, fa := range a.Footprints {
		comp, err := buildFootprint(fa)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return s.engine.WriteComponents(a.Filepath, altium.KindPcbLib, comps,
		a.Append, a.mutateOptions())
}

func toolWriteSchLib(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Append  bool        `json:"append,omitempty"`
		Symbols []symbolArg `json:"symbols"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if len(a.Symbols) == 0 {
		return nil, invalidParams(fmt.Errorf("symbols is required"))
	}
	comps := make([]*altium.Component, 0, len(a.Symbols))
	for _, sa := range a.Symbols {
		comp, err := buildSymbol(sa)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return s.engine.WriteComponents(a.Filepath, altium.KindSchLib, comps,
		a.Append, a.mutateOptions())
}

func toolDeleteComponent(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Names []string `json:"names"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if len(a.Names) == 0 {
		return nil, invalidParams(fmt.Errorf("names is required"))
	}
	kind := altium.KindForPath(a.Filepath)
	return s.engine.DeleteComponents(a.Filepath, kind, a.Names, a.mutateOptions())
}

func toolUpdateComponent(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Footprint *footprintArg `json:"footprint,omitempty"`
		Symbol    *symbolArg    `json:"symbol,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	var comp *altium.Component
	var kind altium.LibraryKind
	var err error
	switch {
	case a.Footprint != nil:
		kind = altium.KindPcbLib
		comp, err = buildFootprint(*a.Footprint)
	case a.Symbol != nil:
		kind = altium.KindSchLib
		comp, err = buildSymbol(*a.Symbol)
	default:
		return nil, invalidParams(fmt.Errorf("footprint or symbol is required"))
	}
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateComponent(a.Filepath, kind, comp, a.mutateOptions()); err != nil {
		return nil, err
	}
	return map[string]string{"updated": comp.Name}, nil
}

func toolUpdatePad(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Component  string          `json:"component"`
		Designator string          `json:"designator"`
		Patch      altium.PadPatch `json:"patch"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Component == "" || a.Designator == "" {
		return nil, invalidParams(fmt.Errorf("component and designator are required"))
	}
	if err := s.engine.UpdatePad(a.Filepath, a.Component, a.Designator,
		a.Patch, a.mutateOptions()); err != nil {
		return nil, err
	}
	return map[string]string{"updated": a.Designator}, nil
}

func toolUpdatePrimitive(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Component string                `json:"component"`
		Type      string                `json:"type"`
		Index     int                   `json:"index"`
		Patch     altium.PrimitivePatch `json:"patch"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Component == "" || a.Type == "" {
		return nil, invalidParams(fmt.Errorf("component and type are required"))
	}
	if err := s.engine.UpdatePrimitive(a.Filepath, a.Component, a.Type, a.Index,
		a.Patch, a.mutateOptions()); err != nil {
		return nil, err
	}
	return map[string]interface{}{"updated": a.Type, "index": a.Index}, nil
}

func toolRenameComponent(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.From == "" || a.To == "" {
		return nil, invalidParams(fmt.Errorf("from and to are required"))
	}
	kind := altium.KindForPath(a.Filepath)
	if err := s.engine.RenameComponent(a.Filepath, kind, a.From, a.To,
		a.mutateOptions()); err != nil {
		return nil, err
	}
	return map[string]string{"from": a.From, "to": a.To}, nil
}

func toolBulkRename(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Pattern     string `json:"pattern"`
		Replacement string `json:"replacement"`
		Regex       bool   `json:"regex,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Pattern == "" {
		return nil, invalidParams(fmt.Errorf("pattern is required"))
	}
	kind := altium.KindForPath(a.Filepath)
	return s.engine.BulkRename(a.Filepath, kind, a.Pattern, a.Replacement,
		a.Regex, a.mutateOptions())
}

func toolCopyComponent(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Source  string `json:"source"`
		NewName string `json:"new_name"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Source == "" || a.NewName == "" {
		return nil, invalidParams(fmt.Errorf("source and new_name are required"))
	}
	kind := altium.KindForPath(a.Filepath)
	if err := s.engine.CopyComponent(a.Filepath, kind, a.Source, a.NewName,
		a.mutateOptions()); err != nil {
		return nil, err
	}
	return map[string]string{"copied": a.Source, "as": a.NewName}, nil
}

func toolCopyCrossLibrary(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		Source    string `json:"source_filepath"`
		Target    string `json:"target_filepath"`
		Component string `json:"component"`
		altium.CrossCopyOptions
		DryRun   bool `json:"dry_run,omitempty"`
		NoBackup bool `json:"no_backup,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if a.Source == "" || a.Target == "" || a.Component == "" {
		return nil, invalidParams(fmt.Errorf(
			"source_filepath, target_filepath and component are required"))
	}
	return s.engine.CopyCrossLibrary(a.Source, a.Target, a.Component,
		a.CrossCopyOptions, altium.MutateOptions{DryRun: a.DryRun, NoBackup: a.NoBackup})
}

func toolMergeLibraries(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		Target      string   `json:"target_filepath"`
		Sources     []string `json:"source_filepaths"`
		OnDuplicate string   `json:"on_duplicate,omitempty"`
		DryRun      bool     `json:"dry_run,omitempty"`
		NoBackup    bool     `json:"no_backup,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if a.Target == "" || len(a.Sources) == 0 {
		return nil, invalidParams(fmt.Errorf(
			"target_filepath and source_filepaths are required"))
	}
	return s.engine.MergeLibraries(a.Target, a.Sources, a.OnDuplicate,
		altium.MutateOptions{DryRun: a.DryRun, NoBackup: a.NoBackup})
}

func toolReorderComponents(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Order []string `json:"order"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	kind := altium.KindForPath(a.Filepath)
	return s.engine.ReorderComponents(a.Filepath, kind, a.Order, a.mutateOptions())
}

func toolBatchUpdate(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		altium.BatchRequest
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	kind := altium.KindForPath(a.Filepath)
	return s.engine.BatchUpdate(a.Filepath, kind, a.BatchRequest, a.mutateOptions())
}

func toolExtractStepModel(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		Filepath string `json:"filepath"`
		altium.ExtractRequest
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if a.Filepath == "" {
		return nil, invalidParams(fmt.Errorf("filepath is required"))
	}
	return s.engine.ExtractStepModel(a.Filepath, a.ExtractRequest)
}

func toolAttachStepModel(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		altium.AttachRequest
		StepBase64 string `json:"step_base64"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Footprint == "" || a.ModelName == "" || a.StepBase64 == "" {
		return nil, invalidParams(fmt.Errorf(
			"footprint, model_name and step_base64 are required"))
	}
	step, err := base64.StdEncoding.DecodeString(a.StepBase64)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.engine.AttachStepModel(a.Filepath, a.AttachRequest, step,
		a.mutateOptions())
}

func toolValidateLibrary(s *server, params json.RawMessage) (interface{}, error) {
	var a fileArgs
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return s.engine.Validate(a.Filepath)
}

func toolRepairLibrary(s *server, params json.RawMessage) (interface{}, error) {
	var a fileArgs
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return s.engine.Repair(a.Filepath, a.mutateOptions())
}

func toolDiffLibraries(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		Filepath  string `json:"filepath"`
		Filepath2 string `json:"filepath2"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if a.Filepath == "" || a.Filepath2 == "" {
		return nil, invalidParams(fmt.Errorf("filepath and filepath2 are required"))
	}
	return s.engine.Diff(a.Filepath, a.Filepath2)
}

func toolListComponents(s *server, params json.RawMessage) (interface{}, error) {
	var a fileArgs
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return s.engine.ListComponents(a.Filepath)
}

func toolGetComponent(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Name string `json:"name"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, invalidParams(fmt.Errorf("name is required"))
	}
	return s.engine.GetComponent(a.Filepath, a.Name)
}

func toolRenderFootprint(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Name   string `json:"name"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	comp, err := s.engine.GetComponent(a.Filepath, a.Name)
	if err != nil {
		return nil, err
	}
	if comp.Footprint == nil {
		return nil, invalidParams(fmt.Errorf("%s is not a footprint", a.Name))
	}
	return map[string]string{"render": comp.Footprint.RenderFootprint(a.Width, a.Height)}, nil
}

func toolRenderSymbol(s *server, params json.RawMessage) (interface{}, error) {
	var a struct {
		fileArgs
		Name   string `json:"name"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	}
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	comp, err := s.engine.GetComponent(a.Filepath, a.Name)
	if err != nil {
		return nil, err
	}
	if comp.Symbol == nil {
		return nil, invalidParams(fmt.Errorf("%s is not a symbol", a.Name))
	}
	return map[string]string{"render": comp.Symbol.RenderSymbol(a.Width, a.Height)}, nil
}

func toolExportCSV(s *server, params json.RawMessage) (interface{}, error) {
	var a fileArgs
	if err := decodeParams(params, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	lib, err := s.engine.ReadLibrary(a.Filepath)
	if err != nil {
		return nil, err
	}
	csvText, err := lib.ExportCSV()
	if err != nil {
		return nil, err
	}
	return map[string]string{"csv": csvText}, nil
}
