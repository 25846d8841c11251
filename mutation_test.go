// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, dirs ...string) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	allowed := append([]string{dir}, dirs...)
	sandbox, err := NewSandbox(allowed)
	require.NoError(t, err)
	e := NewEngine(sandbox, &Options{})
	// Advance the clock one second per call so backup names never collide.
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	e.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return e, dir
}

func writeTestPcbLib(t *testing.T, e *Engine, path string, names ...string) {
	t.Helper()
	var comps []*Component
	for _, n := range names {
		comps = append(comps, namedComponent(n))
	}
	_, err := e.WriteComponents(path, KindPcbLib, comps, false, MutateOptions{})
	require.NoError(t, err)
}

func fileHash(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return sha256.Sum256(data)
}

func TestEngineWriteAndList(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "R1", "R2")

	infos, err := e.ListComponents(target)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "R1", infos[0].Name)
	assert.Equal(t, 1, infos[0].Pads)
}

func TestEngineWriteRejectsEmptyComponent(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	_, err := e.WriteComponents(target, KindPcbLib,
		[]*Component{{Name: "EMPTY", Footprint: &Footprint{}}}, false, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindInvalidPrimitive, KindOf(err))
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "failed write must not create the file")
}

func TestEngineDryRunDelete(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "OLD", "KEEP")
	before := fileHash(t, target)

	report, err := e.DeleteComponents(target, KindPcbLib, []string{"OLD"},
		MutateOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "deleted", report.Results[0].Status)

	// Dry run leaves the bytes untouched and makes no backup.
	assert.Equal(t, before, fileHash(t, target))
	baks, _ := filepath.Glob(target + ".*.bak")
	assert.Empty(t, baks)

	infos, err := e.ListComponents(target)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestEngineDeleteReportsNotFound(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A")

	report, err := e.DeleteComponents(target, KindPcbLib,
		[]string{"A", "GHOST"}, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "deleted", report.Results[0].Status)
	assert.Equal(t, "not_found", report.Results[1].Status)
	assert.Equal(t, 0, report.Total)
}

func TestBackupRetention(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A")

	// Eight mutations on an existing file leave at most five backups.
	for i := 0; i < 8; i++ {
		_, err := e.WriteComponents(target, KindPcbLib,
			[]*Component{namedComponent("A")}, true, MutateOptions{})
		require.NoError(t, err)
	}
	baks, err := filepath.Glob(target + ".*.bak")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(baks), BackupKeep)
	assert.Len(t, baks, BackupKeep)
}

func TestBackupOptOut(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A")

	_, err := e.DeleteComponents(target, KindPcbLib, []string{"A"},
		MutateOptions{NoBackup: true})
	require.NoError(t, err)
	baks, _ := filepath.Glob(target + ".*.bak")
	assert.Empty(t, baks)
}

func TestSandboxViolationLeaksNoPath(t *testing.T) {
	allowedDir := t.TempDir()
	outsideDir := t.TempDir()
	sandbox, err := NewSandbox([]string{allowedDir})
	require.NoError(t, err)
	e := NewEngine(sandbox, &Options{})

	outside := filepath.Join(outsideDir, "x.PcbLib")
	_, err = e.WriteComponents(outside, KindPcbLib,
		[]*Component{namedComponent("A")}, false, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindPathDenied, KindOf(err))
	assert.NotContains(t, err.Error(), outsideDir,
		"denied-path errors must not leak the parent directory")
	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr), "no filesystem mutation may occur")
}

func TestKindGate(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.SchLib")
	_, err := e.WriteComponents(target, KindPcbLib,
		[]*Component{namedComponent("A")}, false, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindKindMismatch, KindOf(err))
}

func TestRenameAndBulkRename(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "RES_0402", "RES_0603", "CAP_0402")

	report, err := e.BulkRename(target, KindPcbLib,
		`^RES_(\d+)$`, "R_$1", true, MutateOptions{})
	require.NoError(t, err)
	require.Len(t, report.Renamed, 2)
	assert.Equal(t, "RES_0402", report.Renamed[0].Old)
	assert.Equal(t, "R_0402", report.Renamed[0].New)

	lib, err := e.ReadLibrary(target)
	require.NoError(t, err)
	_, ok := lib.Get("R_0402")
	assert.True(t, ok, "renamed component must exist under the new name")
	_, ok = lib.Get("RES_0402")
	assert.False(t, ok, "renamed component must be gone under the old name")
}

func TestBulkRenameConflictSkips(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A_1", "B_1")

	// Renaming both to the same target name conflicts for the second.
	report, err := e.BulkRename(target, KindPcbLib,
		`^._1$`, "SAME", true, MutateOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Renamed, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "B_1", report.Skipped[0].Old)

	lib, err := e.ReadLibrary(target)
	require.NoError(t, err)
	_, ok := lib.Get("B_1")
	assert.True(t, ok, "skipped component keeps its original name")
}

func TestBulkRenameDryRunPreview(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "X1", "X2")
	before := fileHash(t, target)

	report, err := e.BulkRename(target, KindPcbLib, "X*", "Y_*", false,
		MutateOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, report.Renamed, 2)
	assert.Equal(t, before, fileHash(t, target))
}

func TestCopyComponentPlacement(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A", "B")

	require.NoError(t, e.CopyComponent(target, KindPcbLib, "A", "A_COPY",
		MutateOptions{}))
	lib, err := e.ReadLibrary(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A_COPY", "B"}, lib.Names())

	src, _ := lib.Get("A")
	cp, _ := lib.Get("A_COPY")
	assert.NotEqual(t, src.Footprint.Pads[0].UniqueID, cp.Footprint.Pads[0].UniqueID,
		"copies must carry fresh unique ids")

	err = e.CopyComponent(target, KindPcbLib, "A", "B", MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindDuplicateName, KindOf(err))
}

func TestMergeRenamePolicy(t *testing.T) {
	e, dir := newTestEngine(t)
	a := filepath.Join(dir, "a.PcbLib")
	b := filepath.Join(dir, "b.PcbLib")
	writeTestPcbLib(t, e, a, "R1", "R2")
	writeTestPcbLib(t, e, b, "R1", "R3")

	report, err := e.MergeLibraries(a, []string{b}, MergeRename, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)

	lib, err := e.ReadLibrary(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2", "R1_1", "R3"}, lib.Names())
}

func TestMergeSkipAndErrorPolicies(t *testing.T) {
	e, dir := newTestEngine(t)
	a := filepath.Join(dir, "a.PcbLib")
	b := filepath.Join(dir, "b.PcbLib")
	writeTestPcbLib(t, e, a, "R1")
	writeTestPcbLib(t, e, b, "R1")

	report, err := e.MergeLibraries(a, []string{b}, MergeSkip, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "skipped", report.Results[0].Status)

	_, err = e.MergeLibraries(a, []string{b}, MergeError, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindDuplicateName, KindOf(err))
}

func TestReorderComponents(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A", "B", "C")

	report, err := e.ReorderComponents(target, KindPcbLib,
		[]string{"C", "GHOST"}, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, report.Order)
	assert.Equal(t, []string{"A", "B"}, report.Appended)

	lib, err := e.ReadLibrary(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, lib.Names())
}

func TestBatchUpdateTrackWidth(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	comp := namedComponent("T")
	comp.Footprint.Tracks = []*Track{
		{Layer: LayerTopOverlay, Width: MmToCoord(0.1), X2: MmToCoord(1), UniqueID: NewUniqueID()},
		{Layer: LayerTopOverlay, Width: MmToCoord(0.25), X2: MmToCoord(1), UniqueID: NewUniqueID()},
	}
	_, err := e.WriteComponents(target, KindPcbLib, []*Component{comp}, false, MutateOptions{})
	require.NoError(t, err)

	report, err := e.BatchUpdate(target, KindPcbLib, BatchRequest{
		Operation:   BatchTrackWidth,
		OldWidthMm:  0.1,
		ToleranceMm: 0.01,
		NewWidthMm:  0.15,
	}, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)

	lib, err := e.ReadLibrary(target)
	require.NoError(t, err)
	got, _ := lib.Get("T")
	assert.Equal(t, 0.15, got.Footprint.Tracks[0].Width.Mm())
	assert.Equal(t, 0.25, got.Footprint.Tracks[1].Width.Mm())
}

func TestBatchUpdateUnknownOperation(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "parts.PcbLib")
	writeTestPcbLib(t, e, target, "A")
	_, err := e.BatchUpdate(target, KindPcbLib,
		BatchRequest{Operation: "noop"}, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindUnknownOperation, KindOf(err))
}

func TestCrossLibraryCopyDropsExternalModels(t *testing.T) {
	e, dir := newTestEngine(t)
	src := filepath.Join(dir, "src.PcbLib")
	dst := filepath.Join(dir, "dst.PcbLib")

	comp := namedComponent("EXTREF")
	body := NewComponentBody()
	body.UniqueID = NewUniqueID()
	body.SetModelID("AB69B2C9-6D0D-4A3C-9BA7-52FD6A0F1F4E")
	body.SetModelName("/cad/models/part.step")
	body.SetEmbedded(false)
	comp.Footprint.Bodies = []*ComponentBody{body}
	_, err := e.WriteComponents(src, KindPcbLib, []*Component{comp}, false, MutateOptions{})
	require.NoError(t, err)
	writeTestPcbLib(t, e, dst, "EXISTING")

	report, err := e.CopyCrossLibrary(src, dst, "EXTREF",
		CrossCopyOptions{}, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.BodiesDropped)

	vr, err := e.Validate(dst)
	require.NoError(t, err)
	assert.True(t, vr.Valid, "target must validate clean: %+v", vr.Findings)

	got, err := e.GetComponent(dst, "EXTREF")
	require.NoError(t, err)
	assert.Empty(t, got.Footprint.Bodies)
}

func TestCrossLibraryCopyCarriesEmbeddedModel(t *testing.T) {
	e, dir := newTestEngine(t)
	src := filepath.Join(dir, "src.PcbLib")
	dst := filepath.Join(dir, "dst.PcbLib")
	step := stepPayload(4096)

	writeTestPcbLib(t, e, src, "QFN")
	_, err := e.AttachStepModel(src, AttachRequest{
		Footprint: "QFN", ModelName: "m.step", RotZ: 90,
	}, step, MutateOptions{})
	require.NoError(t, err)
	writeTestPcbLib(t, e, dst, "OTHER")

	report, err := e.CopyCrossLibrary(src, dst, "QFN",
		CrossCopyOptions{}, MutateOptions{})
	require.NoError(t, err)
	require.Len(t, report.ModelsCopied, 1)

	dstLib, err := e.ReadLibrary(dst)
	require.NoError(t, err)
	require.NotNil(t, dstLib.Models)
	m, _, ok := dstLib.Models.Lookup(report.ModelsCopied[0])
	require.True(t, ok, "model must resolve in the target registry")
	assert.Equal(t, step, m.Data)
}

func TestCrossLibraryKindMismatch(t *testing.T) {
	e, dir := newTestEngine(t)
	src := filepath.Join(dir, "src.PcbLib")
	writeTestPcbLib(t, e, src, "A")
	_, err := e.CopyCrossLibrary(src, filepath.Join(dir, "dst.SchLib"), "A",
		CrossCopyOptions{}, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindKindMismatch, KindOf(err))
}

func TestExtractStepModel(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "lib.PcbLib")
	step := stepPayload(4096)

	writeTestPcbLib(t, e, target, "QFN")
	_, err := e.AttachStepModel(target, AttachRequest{
		Footprint: "QFN", ModelName: "m.step",
	}, step, MutateOptions{})
	require.NoError(t, err)

	// list mode reports without writing.
	report, err := e.ExtractStepModel(target, ExtractRequest{Mode: ExtractList})
	require.NoError(t, err)
	require.Len(t, report.Models, 1)
	assert.Equal(t, "m.step", report.Models[0].Name)
	assert.Equal(t, len(step), report.Models[0].Size)

	// extract_by_footprint writes byte-identical payloads.
	outDir := filepath.Join(dir, "out")
	report, err = e.ExtractStepModel(target, ExtractRequest{
		Mode: ExtractByFootprint, Footprint: "QFN", OutDir: outDir})
	require.NoError(t, err)
	require.Len(t, report.Models, 1)
	data, err := os.ReadFile(filepath.Join(outDir, report.Models[0].File))
	require.NoError(t, err)
	assert.Equal(t, step, data)
}

func TestExtractModelNotFound(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "lib.PcbLib")
	writeTestPcbLib(t, e, target, "BARE")
	_, err := e.ExtractStepModel(target, ExtractRequest{Mode: ExtractList})
	require.Error(t, err)
	assert.Equal(t, KindModelNotFound, KindOf(err))
}

func TestRepairRemovesDanglingBodies(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "lib.PcbLib")

	comp := namedComponent("DANGLING")
	body := NewComponentBody()
	body.UniqueID = NewUniqueID()
	body.SetModelID("AB69B2C9-6D0D-4A3C-9BA7-52FD6A0F1F4E")
	body.SetEmbedded(true)
	comp.Footprint.Bodies = []*ComponentBody{body}
	_, err := e.WriteComponents(target, KindPcbLib, []*Component{comp}, false, MutateOptions{})
	require.NoError(t, err)

	vr, err := e.Validate(target)
	require.NoError(t, err)
	assert.False(t, vr.Valid)

	report, err := e.Repair(target, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed["DANGLING"])

	vr, err = e.Validate(target)
	require.NoError(t, err)
	assert.True(t, vr.Valid, "no dangling references may remain after repair")
}

func TestDiffLibraries(t *testing.T) {
	e, dir := newTestEngine(t)
	a := filepath.Join(dir, "a.PcbLib")
	b := filepath.Join(dir, "b.PcbLib")
	writeTestPcbLib(t, e, a, "SAME", "GONE", "CHANGED")
	writeTestPcbLib(t, e, b, "SAME", "NEW", "CHANGED")

	// Change one component in b.
	require.NoError(t, e.UpdatePad(b, "CHANGED", "1", PadPatch{
		WidthMm: float64Ptr(2.0)}, MutateOptions{}))

	report, err := e.Diff(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW"}, report.Added)
	assert.Equal(t, []string{"GONE"}, report.Removed)
	require.Len(t, report.Modified, 1)
	assert.Equal(t, "CHANGED", report.Modified[0].Name)
	assert.False(t, report.Equal)
}

func TestUpdatePadNotFound(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "lib.PcbLib")
	writeTestPcbLib(t, e, target, "A")
	err := e.UpdatePad(target, "A", "99", PadPatch{}, MutateOptions{})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCommitLeavesNoTempFiles(t *testing.T) {
	e, dir := newTestEngine(t)
	target := filepath.Join(dir, "lib.PcbLib")
	writeTestPcbLib(t, e, target, "A")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp"),
			"stray temp file %s", entry.Name())
	}
}

func float64Ptr(v float64) *float64 { return &v }
