package lua

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

func TestLoader_Runtime(t *testing.T) {
	assert.Equal(t, "lua", NewLoader(nil).Runtime())
}

func TestLoader_RejectsBadScripts(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr error
	}{
		{"syntax error", `return {`, nil},
		{"runtime error", `error("nope")`, nil},
		{"no return", `local x = 1`, ErrBadModule},
		{"returns string", `return "plugin"`, ErrBadModule},
		{"missing initialize", `return {unload = function() end}`, ErrMissingHook},
		{"missing unload", `return {initialize = function() end}`, ErrMissingHook},
		{"unload not a function", `return {initialize = function() end, unload = true}`, ErrMissingHook},
		{"dofile removed", `dofile("other.lua") return {}`, nil},
		{"load removed", `load("return 1") return {}`, nil},
		{"os not opened", `os.exit(1) return {}`, nil},
		{"io not opened", `io.write("x") return {}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := openPackage(t, tt.script)
			_, err := NewLoader(nil).LoadPackage(context.Background(), pkg)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoader_RequireResolvesInsidePackage(t *testing.T) {
	root := t.TempDir()
	dir := writePackage(t, root, "modular", luaManifest+"main: main.lua\n", map[string]string{
		"main.lua": `
local util = require("util")
return {
  initialize = function() end,
  unload = function() end,
  on_voice_output = function(text) return util.shout(text) end,
}`,
		"util.lua": `return {shout = function(s) return string.upper(s) .. "!" end}`,
	})
	pkg, err := plugins.OpenPackage(root, dir)
	require.NoError(t, err)

	factory, err := NewLoader(nil).LoadPackage(context.Background(), pkg)
	require.NoError(t, err)

	p := factory().(*Plugin)
	defer p.Unload(context.Background())

	out, ok, err := p.OnVoiceOutput(context.Background(), "hey")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "HEY!", out)
}

func TestLoader_FactoryInstances(t *testing.T) {
	log, buf := testLogger()
	pkg := openPackage(t, `
local lumi = require("lumi")
lumi.log("info", "module body ran")
return {initialize = function() end, unload = function() end}
`)

	factory, err := NewLoader(log).LoadPackage(context.Background(), pkg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "module body ran")

	first := factory()
	second := factory()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	first.Unload(context.Background())
	second.Unload(context.Background())
}
