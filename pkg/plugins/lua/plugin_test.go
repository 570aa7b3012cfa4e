package lua

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

const luaManifest = "version: 1.0.0\napi_version: 1.0.0\nruntime: lua\n"

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return log, buf
}

// writePackage creates root/name with a lua manifest and the given files.
func writePackage(t *testing.T, root, name, manifest string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugins.ManifestFile), []byte(manifest), 0644))
	for file, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
	}
	return dir
}

func openPackage(t *testing.T, script string) *plugins.Package {
	t.Helper()
	root := t.TempDir()
	dir := writePackage(t, root, "scripted", luaManifest, map[string]string{"init.lua": script})
	pkg, err := plugins.OpenPackage(root, dir)
	require.NoError(t, err)
	return pkg
}

func loadPlugin(t *testing.T, script string) (*Plugin, *bytes.Buffer) {
	t.Helper()
	log, buf := testLogger()
	pkg := openPackage(t, script)

	factory, err := NewLoader(log).LoadPackage(context.Background(), pkg)
	require.NoError(t, err)

	p, ok := factory().(*Plugin)
	require.True(t, ok)
	t.Cleanup(func() { p.Unload(context.Background()) })

	p.Attach(plugins.NewHost(pkg.Name, t.TempDir(), map[string]any{"suffix": "!"}, log))
	return p, buf
}

const fullScript = `
local lumi = require("lumi")
local M = {}
local seen = 0

function M.initialize() return true end
function M.unload() lumi.log("info", "bye from " .. lumi.name()) end
function M.on_enable() enabled = true end

function M.on_message_received(msg, source)
  if source ~= "user" then return nil end
  seen = seen + 1
  return msg .. lumi.config("suffix", "?")
end

function M.on_voice_input(audio) return "heard " .. #audio .. " bytes" end
function M.on_voice_output(text) return string.upper(text) end
function M.on_memory_stored(kind, content)
  assert(lumi.save_data("last.json", {kind = kind, content = content}))
end
function M.on_emotion_changed(emotion, intensity)
  if intensity > 0.9 then error("too much " .. emotion) end
end
function M.on_dashboard_update()
  local last = lumi.load_data("last.json", {kind = "none"})
  return {seen = seen, last_kind = last.kind, missing = lumi.config("nope", "fallback")}
end

return M
`

func TestPlugin_Hooks(t *testing.T) {
	p, _ := loadPlugin(t, fullScript)
	ctx := context.Background()

	require.NoError(t, p.Initialize(ctx))
	require.NoError(t, p.OnEnable(ctx))
	require.NoError(t, p.OnLoad(ctx), "missing optional hook is a no-op")

	out, changed, err := p.OnMessageReceived(ctx, "hi", plugins.SourceUser)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "hi!", out)

	_, changed, err = p.OnMessageReceived(ctx, "hi", plugins.SourceDiscord)
	require.NoError(t, err)
	assert.False(t, changed)

	out, changed, err = p.OnVoiceInput(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "heard 3 bytes", out)

	out, _, err = p.OnVoiceOutput(ctx, "quiet")
	require.NoError(t, err)
	assert.Equal(t, "QUIET", out)

	metrics, err := p.OnDashboardUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, plugins.Metrics{"seen": int64(1), "last_kind": "none", "missing": "fallback"}, metrics)

	require.NoError(t, p.OnMemoryStored(ctx, "fact", "water is wet"))
	metrics, err = p.OnDashboardUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fact", metrics["last_kind"])

	require.NoError(t, p.OnEmotionChanged(ctx, "joy", 0.5))
	err = p.OnEmotionChanged(ctx, "rage", 0.95)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too much rage")

	assert.True(t, p.HasHook(plugins.HookOnVoiceOutput))
	assert.False(t, p.HasHook(plugins.HookOnDisable))
	assert.NoError(t, p.OnMessageSent(ctx, "out"))
}

func TestPlugin_InitializeDeclines(t *testing.T) {
	p, _ := loadPlugin(t, `return {initialize = function() return false end, unload = function() end}`)
	assert.ErrorIs(t, p.Initialize(context.Background()), plugins.ErrInitializeDeclined)
}

func TestPlugin_BadHookResults(t *testing.T) {
	p, _ := loadPlugin(t, `
return {
  initialize = function() end,
  unload = function() end,
  on_voice_output = function() return 42 end,
  on_dashboard_update = function() return {1, 2} end,
}`)
	ctx := context.Background()

	require.NoError(t, p.Initialize(ctx), "nil counts as success")

	_, _, err := p.OnVoiceOutput(ctx, "x")
	assert.Error(t, err)

	_, err = p.OnDashboardUpdate(ctx)
	assert.Error(t, err)
}

func TestPlugin_UnloadClosesState(t *testing.T) {
	p, buf := loadPlugin(t, fullScript)
	ctx := context.Background()

	require.NoError(t, p.Unload(ctx))
	assert.Contains(t, buf.String(), "bye from scripted")

	_, _, err := p.OnVoiceOutput(ctx, "x")
	assert.ErrorIs(t, err, ErrStateClosed)
	assert.ErrorIs(t, p.Unload(ctx), ErrStateClosed)
}

func TestPlugin_ContextCancellation(t *testing.T) {
	p, _ := loadPlugin(t, `
return {
  initialize = function() while true do end end,
  unload = function() end,
}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, p.Initialize(ctx))
}

func TestPlugin_SaveDataWithoutHost(t *testing.T) {
	log, _ := testLogger()
	pkg := openPackage(t, `
local lumi = require("lumi")
saved, err = lumi.save_data("x.json", {1})
return {initialize = function() return saved == nil and err ~= nil end, unload = function() end}
`)

	factory, err := NewLoader(log).LoadPackage(context.Background(), pkg)
	require.NoError(t, err)
	p := factory()
	defer p.Unload(context.Background())

	assert.NoError(t, p.Initialize(context.Background()))
}
