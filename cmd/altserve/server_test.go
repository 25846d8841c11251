// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	altium "github.com/saferwall/altium"
	"github.com/saferwall/altium/log"
)

func runLines(t *testing.T, allowed string, lines ...string) []map[string]interface{} {
	t.Helper()
	sandbox, err := altium.NewSandbox([]string{allowed})
	require.NoError(t, err)
	engine := altium.NewEngine(sandbox, &altium.Options{})
	logger := log.NewFilter(log.NewStdLogger(&bytes.Buffer{}),
		log.FilterLevel(log.LevelError))

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	srv := newServer(engine, in, &out, logger)
	require.NoError(t, srv.run())

	var responses []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line %q", line)
		responses = append(responses, resp)
	}
	return responses
}

func TestServerWriteReadCycle(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.PcbLib")

	write := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"write_pcblib","params":{"filepath":%q,"footprints":[{"name":"R0402","pads":[{"designator":"1","x_mm":-0.75,"y_mm":0,"width_mm":0.9,"height_mm":0.95,"shape":"rectangle","layer":"TopLayer"},{"designator":"2","x_mm":0.75,"y_mm":0,"width_mm":0.9,"height_mm":0.95,"shape":"rounded_rectangle"}]}]}}`, target)
	list := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"list_components","params":{"filepath":%q}}`, target)

	responses := runLines(t, dir, write, list)
	require.Len(t, responses, 2)
	require.Nil(t, responses[0]["error"], "write failed: %v", responses[0]["error"])
	require.Nil(t, responses[1]["error"])

	result := responses[1]["result"].([]interface{})
	require.Len(t, result, 1)
	first := result[0].(map[string]interface{})
	assert.Equal(t, "R0402", first["name"])
	assert.Equal(t, float64(2), first["pads"])
}

func TestServerSandboxViolation(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "x.PcbLib")

	write := fmt.Sprintf(`{"jsonrpc":"2.0","id":7,"method":"write_pcblib","params":{"filepath":%q,"footprints":[{"name":"A","pads":[{"designator":"1","x_mm":0,"y_mm":0,"width_mm":1,"height_mm":1}]}]}}`, target)
	responses := runLines(t, allowed, write)
	require.Len(t, responses, 1)

	errObj := responses[0]["error"].(map[string]interface{})
	data := errObj["data"].(map[string]interface{})
	assert.Equal(t, "PathDenied", data["kind"])
	assert.NotContains(t, errObj["message"].(string), outside,
		"denied path must not leak")
}

func TestServerMethodNotFound(t *testing.T) {
	dir := t.TempDir()
	responses := runLines(t, dir,
		`{"jsonrpc":"2.0","id":1,"method":"no_such_tool","params":{}}`)
	errObj := responses[0]["error"].(map[string]interface{})
	assert.Equal(t, float64(codeMethodNotFound), errObj["code"])
}

func TestServerParseError(t *testing.T) {
	dir := t.TempDir()
	responses := runLines(t, dir, `this is not json`)
	errObj := responses[0]["error"].(map[string]interface{})
	assert.Equal(t, float64(codeParseError), errObj["code"])
}

func TestServerInvalidParams(t *testing.T) {
	dir := t.TempDir()
	responses := runLines(t, dir,
		`{"jsonrpc":"2.0","id":3,"method":"write_pcblib","params":{"footprints":[]}}`)
	errObj := responses[0]["error"].(map[string]interface{})
	assert.Equal(t, float64(codeInvalidParams), errObj["code"])
}

func TestServerDryRunDelete(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "lib.PcbLib")
	write := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"write_pcblib","params":{"filepath":%q,"footprints":[{"name":"OLD","pads":[{"designator":"1","x_mm":0,"y_mm":0,"width_mm":1,"height_mm":1}]}]}}`, target)
	del := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"delete_component","params":{"filepath":%q,"names":["OLD"],"dry_run":true}}`, target)
	list := fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"get_component","params":{"filepath":%q,"name":"OLD"}}`, target)

	responses := runLines(t, dir, write, del, list)
	require.Len(t, responses, 3)
	require.Nil(t, responses[1]["error"])
	delResult := responses[1]["result"].(map[string]interface{})
	results := delResult["results"].([]interface{})
	entry := results[0].(map[string]interface{})
	assert.Equal(t, "deleted", entry["status"])

	// The dry run changed nothing: the component is still there.
	require.Nil(t, responses[2]["error"], "component vanished after dry run")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	// Missing implicit config falls back to defaults.
	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Empty(t, cfg.AllowedPaths)

	// Missing explicit config is a fatal error.
	_, err = loadConfig(path, true)
	require.Error(t, err)

	// Malformed JSON is a fatal error.
	require.NoError(t, writeFile(path, `{"allowed_paths": [`))
	_, err = loadConfig(path, false)
	require.Error(t, err)

	require.NoError(t, writeFile(path,
		`{"allowed_paths":["/srv/libs"],"logging":{"level":"debug"}}`))
	cfg, err = loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/libs"}, cfg.AllowedPaths)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
