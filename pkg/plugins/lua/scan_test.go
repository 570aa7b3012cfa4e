package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		wantCategory string
		wantSeverity string
	}{
		{name: "os library", source: `os.execute("rm -rf /")`, wantCategory: "sandboxed-library", wantSeverity: SeverityHigh},
		{name: "io library", source: `local f = io.open("x")`, wantCategory: "sandboxed-library", wantSeverity: SeverityHigh},
		{name: "dofile", source: `dofile("other.lua")`, wantCategory: "sandboxed-library", wantSeverity: SeverityHigh},
		{name: "loadstring", source: `local f = loadstring("return 1")`, wantCategory: "sandboxed-library", wantSeverity: SeverityHigh},
		{name: "native module", source: `package.loadlib("x.so", "init")`, wantCategory: "sandboxed-library", wantSeverity: SeverityMedium},
		{name: "api key", source: `local api_key = "abcdefghijklmnopqrstuvwxyz"`, wantCategory: "hardcoded-secret", wantSeverity: SeverityHigh},
		{name: "password", source: `password = "hunter22hunter22"`, wantCategory: "hardcoded-secret", wantSeverity: SeverityHigh},
		{name: "path traversal", source: `lumi.load_data("../other/data.json", nil)`, wantCategory: "path-traversal", wantSeverity: SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			content := "local M = {}\n" + tt.source + "\nreturn M\n"
			require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte(content), 0644))

			issues, err := Scan(dir)
			require.NoError(t, err)
			require.NotEmpty(t, issues)

			assert.Equal(t, tt.wantCategory, issues[0].Category)
			assert.Equal(t, tt.wantSeverity, issues[0].Severity)
			assert.Equal(t, "init.lua", issues[0].File)
			assert.Equal(t, 2, issues[0].Line)
		})
	}
}

func TestScan_CleanScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte(fullScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`os.execute("ls")`), 0644))

	issues, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestScan_IgnoresCommentsAndLookalikes(t *testing.T) {
	dir := t.TempDir()
	script := `-- os.execute is not available here
local pos = {x = 1}
local n = pos.x
local v = lumi.load_data("count.json", 0)
return {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte(script), 0644))

	issues, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestScan_SortedAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte("local a = 1\nio.write('x')\nos.exit(1)\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "util.lua"), []byte("dofile('x')\n"), 0644))

	issues, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, issues, 3)

	assert.Equal(t, "init.lua", issues[0].File)
	assert.Equal(t, 2, issues[0].Line)
	assert.Equal(t, 3, issues[1].Line)
	assert.Equal(t, filepath.Join("lib", "util.lua"), issues[2].File)
	assert.Equal(t, "init.lua:2: [high] uses a library that is not available to plugins", issues[0].String())
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadPackage_WarnsAboutIssues(t *testing.T) {
	log, buf := testLogger()
	script := `local M = {}
function M.initialize() return true end
function M.unload() end
function M.on_message_sent(msg) os.remove("x") end
return M
`
	pkg := openPackage(t, script)

	_, err := NewLoader(log).LoadPackage(context.Background(), pkg)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Lua plugin uses a library that is not available to plugins")
	assert.Contains(t, out, "line=4")
	assert.Contains(t, out, "plugin=scripted")
}
