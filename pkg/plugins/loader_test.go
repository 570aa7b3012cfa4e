package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ai/lumi/pkg/observability"
)

// stubRuntime serves a made-up runtime for loader tests.
type stubRuntime struct {
	name string
	err  error
	boom bool
}

func (s *stubRuntime) Runtime() string { return s.name }

func (s *stubRuntime) LoadPackage(_ context.Context, pkg *Package) (Factory, error) {
	if s.boom {
		panic("runtime exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return func() Plugin { return &minimal{} }, nil
}

func discoveryByName(results []Discovery) map[string]Discovery {
	out := make(map[string]Discovery, len(results))
	for _, d := range results {
		if _, dup := out[d.Name]; !dup {
			out[d.Name] = d
		}
	}
	return out
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	return derr.Reason
}

func TestNewLoader(t *testing.T) {
	roots := []string{"/tmp/plugins"}
	loader := NewLoader(roots, nil)

	require.NotNil(t, loader)
	assert.Equal(t, roots, loader.Roots())
	assert.NotNil(t, loader.log)

	roots[0] = "changed"
	assert.Equal(t, "/tmp/plugins", loader.Roots()[0])
}

func TestLoader_DiscoverOrder(t *testing.T) {
	h := newHarness(t, "core", "community")
	h.builtin(1, "zeta", nil)
	h.builtin(0, "beta", nil)
	h.builtin(0, "alpha", nil)

	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(NewCatalogLoader(h.catalog))

	results := loader.Discover(context.Background(), nil)

	names := make([]string, 0, len(results))
	for _, d := range results {
		require.NoError(t, d.Err)
		require.NotNil(t, d.Factory)
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, names)
	assert.Equal(t, h.roots[1], results[2].Root)
}

func TestLoader_DiscoverSkips(t *testing.T) {
	h := newHarness(t, "core", "community")
	metrics := observability.NewMetrics(nil)

	h.builtin(0, "shared", nil)
	h.builtin(1, "shared", nil)
	h.builtin(0, "_template", nil)
	h.builtin(0, ".hidden", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(h.roots[0], "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(h.roots[0], "loose.yaml"), []byte("x"), 0644))
	h.writeManifest(0, "bad_version", "version: one\napi_version: 1.0.0\nfactory: x\n")
	h.writeManifest(0, "future_api", "version: 1.0.0\napi_version: 2.0.0\nfactory: x\n")
	h.writeManifest(0, "broken_yaml", "version: [\n")
	h.writeManifest(0, "wasm", "version: 1.0.0\napi_version: 1.0.0\nruntime: wasm\n")
	h.writeManifest(0, "orphan", "version: 1.0.0\napi_version: 1.0.0\nfactory: nowhere\n")
	h.writeManifest(0, "vetoed", "version: 1.0.0\napi_version: 1.0.0\nfactory: vetoed\n")

	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(NewCatalogLoader(h.catalog))
	loader.SetMetrics(metrics)

	results := loader.Discover(context.Background(), func(name string) bool { return name != "vetoed" })
	byName := discoveryByName(results)

	assert.NotContains(t, byName, "_template")
	assert.NotContains(t, byName, ".hidden")
	assert.NotContains(t, byName, "loose.yaml")

	require.NoError(t, byName["shared"].Err)
	assert.Equal(t, h.roots[0], byName["shared"].Root)

	var dup *DiscoveryError
	for _, d := range results {
		if d.Name == "shared" && d.Err != nil {
			require.ErrorAs(t, d.Err, &dup)
		}
	}
	require.NotNil(t, dup, "second copy of shared is reported")
	assert.Equal(t, ReasonDuplicate, dup.Reason)
	assert.ErrorIs(t, dup, ErrDuplicatePlugin)

	assert.Equal(t, ReasonNoEntryPoint, reasonOf(t, byName["empty"].Err))
	assert.ErrorIs(t, byName["empty"].Err, ErrNoEntryPoint)
	assert.Equal(t, ReasonManifest, reasonOf(t, byName["bad_version"].Err))
	assert.Equal(t, ReasonManifest, reasonOf(t, byName["future_api"].Err))
	assert.Equal(t, ReasonManifest, reasonOf(t, byName["broken_yaml"].Err))
	assert.Equal(t, ReasonRuntime, reasonOf(t, byName["wasm"].Err))
	assert.ErrorIs(t, byName["wasm"].Err, ErrUnknownRuntime)
	assert.Equal(t, ReasonLoad, reasonOf(t, byName["orphan"].Err))
	assert.ErrorIs(t, byName["orphan"].Err, ErrFactoryNotFound)
	assert.Equal(t, ReasonDisabled, reasonOf(t, byName["vetoed"].Err))
	assert.ErrorIs(t, byName["vetoed"].Err, ErrNotAdmitted)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DiscoverySkippedTotal.WithLabelValues(ReasonDuplicate)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DiscoverySkippedTotal.WithLabelValues(ReasonManifest)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DiscoverySkippedTotal.WithLabelValues(ReasonDisabled)))

	assert.Contains(t, h.logs(), "No plugin.yaml found")
}

func TestLoader_AdmitSeesNameBeforeLoad(t *testing.T) {
	h := newHarness(t)
	h.writeManifest(0, "guarded", "version: 1.0.0\napi_version: 1.0.0\nruntime: stub\n")

	rt := &stubRuntime{name: "stub", boom: true}
	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(rt)

	var asked []string
	results := loader.Discover(context.Background(), func(name string) bool {
		asked = append(asked, name)
		return false
	})

	assert.Equal(t, []string{"guarded"}, asked)
	require.Len(t, results, 1)
	assert.Equal(t, ReasonDisabled, reasonOf(t, results[0].Err))
}

func TestLoader_RuntimeFailures(t *testing.T) {
	h := newHarness(t)
	h.writeManifest(0, "explodes", "version: 1.0.0\napi_version: 1.0.0\nruntime: boom\n")
	h.writeManifest(0, "fails", "version: 1.0.0\napi_version: 1.0.0\nruntime: fail\n")
	h.writeManifest(0, "works", "version: 1.0.0\napi_version: 1.0.0\nruntime: fine\n")

	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(&stubRuntime{name: "boom", boom: true})
	loader.RegisterRuntime(&stubRuntime{name: "fail", err: errors.New("syntax error")})
	loader.RegisterRuntime(&stubRuntime{name: "fine"})

	byName := discoveryByName(loader.Discover(context.Background(), nil))

	assert.Equal(t, ReasonLoad, reasonOf(t, byName["explodes"].Err))
	assert.Contains(t, byName["explodes"].Err.Error(), "runtime exploded")
	assert.Equal(t, ReasonLoad, reasonOf(t, byName["fails"].Err))
	assert.Contains(t, byName["fails"].Err.Error(), "syntax error")
	require.NoError(t, byName["works"].Err)
	assert.Equal(t, "fine", byName["works"].Package.Manifest.Runtime)
}

func TestLoader_MissingRootIsIgnored(t *testing.T) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	loader := NewLoader([]string{filepath.Join(t.TempDir(), "missing")}, log)
	assert.Empty(t, loader.Discover(context.Background(), nil))
}

func TestLoader_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.builtin(0, "a", nil)
	h.builtin(0, "b", nil)

	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(NewCatalogLoader(h.catalog))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, loader.Discover(ctx, nil))
}
