package plugins

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_DataDir(t *testing.T) {
	root := t.TempDir()
	host := NewHost("counter", root, nil, logrus.New())

	assert.Equal(t, "counter", host.Name())
	assert.Equal(t, filepath.Join(root, "plugins", "counter"), host.DataDir())
	assert.Equal(t, "counter", host.Logger().Data["plugin"])

	_, err := os.Stat(host.DataDir())
	assert.True(t, os.IsNotExist(err), "created lazily")
}

func TestHost_SaveLoadData(t *testing.T) {
	host := NewHost("counter", t.TempDir(), nil, logrus.New())

	type state struct {
		Count int `json:"message_count"`
	}

	var loaded state
	found, err := host.LoadData("message_count.json", &loaded)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, host.SaveData("message_count.json", state{Count: 42}))

	raw, err := os.ReadFile(filepath.Join(host.DataDir(), "message_count.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_count": 42}`, string(raw))

	found, err = host.LoadData("message_count.json", &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, loaded.Count)

	_, err = os.Stat(filepath.Join(host.DataDir(), "message_count.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestHost_ConcurrentSaves(t *testing.T) {
	host := NewHost("counter", t.TempDir(), nil, logrus.New())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- host.SaveData("count.json", map[string]int{"count": n})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var out map[string]int
	found, err := host.LoadData("count.json", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, out, "count")

	entries, err := os.ReadDir(host.DataDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "count.json", entries[0].Name())
}

func TestHost_LoadCorruptData(t *testing.T) {
	host := NewHost("counter", t.TempDir(), nil, logrus.New())
	require.NoError(t, os.MkdirAll(host.DataDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(host.DataDir(), "bad.json"), []byte("{"), 0644))

	var v map[string]any
	found, err := host.LoadData("bad.json", &v)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestHost_RejectsPathsOutsideDataDir(t *testing.T) {
	host := NewHost("counter", t.TempDir(), nil, logrus.New())

	for _, name := range []string{"", "../escape.json", "nested/file.json", ".hidden"} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, host.SaveData(name, 1))
			_, err := host.LoadData(name, new(int))
			assert.Error(t, err)
		})
	}
}

func TestHost_ConfigIsCopied(t *testing.T) {
	settings := map[string]any{
		"time_format": "15:04",
		"nested":      map[string]any{"a": 1},
	}
	host := NewHost("datetime", t.TempDir(), settings, logrus.New())

	settings["time_format"] = "changed"
	assert.Equal(t, "15:04", host.ConfigValue("time_format", nil))
	assert.Equal(t, "fallback", host.ConfigValue("missing", "fallback"))

	cfg := host.Config()
	cfg["time_format"] = "mutated"
	cfg["nested"].(map[string]any)["a"] = 2
	assert.Equal(t, "15:04", host.ConfigValue("time_format", nil))
	assert.Equal(t, map[string]any{"a": 1}, host.ConfigValue("nested", nil))

	host.setConfig(map[string]any{"time_format": "3:04PM"})
	assert.Equal(t, "3:04PM", host.ConfigValue("time_format", nil))
	assert.Nil(t, host.ConfigValue("nested", nil))
}
