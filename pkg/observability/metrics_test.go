package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.SetPluginsLoaded(1)
	m.RecordHook("example", "initialize", time.Millisecond, nil)
	m.RecordDispatch("message_received")
	m.RecordDiscoverySkip("duplicate")
	m.RecordRegistrySave(nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"lumi_plugins_loaded",
		"lumi_plugin_hook_calls_total",
		"lumi_plugin_hook_duration_seconds",
		"lumi_plugin_dispatch_total",
		"lumi_plugin_discovery_skipped_total",
		"lumi_registry_saves_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestMetrics_RecordHook(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordHook("example", "on_message_received", time.Millisecond, nil)
	m.RecordHook("example", "on_message_received", time.Millisecond, nil)
	m.RecordHook("example", "on_message_received", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HookCallsTotal.WithLabelValues("example", "on_message_received", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HookCallsTotal.WithLabelValues("example", "on_message_received", StatusError)))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics(nil)

	m.SetPluginsLoaded(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PluginsLoaded))

	m.SetPluginsLoaded(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PluginsLoaded))
}

func TestMetrics_RegistrySaves(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordRegistrySave(nil)
	m.RecordRegistrySave(errors.New("disk full"))
	m.RecordDiscoverySkip("no_entry_point")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrySavesTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrySavesTotal.WithLabelValues(StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscoverySkippedTotal.WithLabelValues("no_entry_point")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetPluginsLoaded(1)
		m.RecordHook("x", "y", time.Second, nil)
		m.RecordDispatch("message_received")
		m.RecordDiscoverySkip("duplicate")
		m.RecordRegistrySave(nil)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetPluginsLoaded(2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lumi_plugins_loaded 2")
}
