package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/registry"
)

// Host gives one extension access to its logger, data directory and settings.
type Host struct {
	name    string
	dataDir string
	log     *logrus.Entry

	mu     sync.RWMutex
	config map[string]any
}

// NewHost creates a host for name. Data lives under <dataRoot>/plugins/<name>.
func NewHost(name, dataRoot string, config map[string]any, log *logrus.Logger) *Host {
	return &Host{
		name:    name,
		dataDir: filepath.Join(dataRoot, "plugins", name),
		log:     observability.PluginLogger(log, name),
		config:  registry.CloneSettings(config),
	}
}

// Name returns the extension name.
func (h *Host) Name() string {
	return h.name
}

// Logger returns a logger tagged with the extension name.
func (h *Host) Logger() *logrus.Entry {
	return h.log
}

// DataDir returns the extension's data directory. It is created by SaveData.
func (h *Host) DataDir() string {
	return h.dataDir
}

// SaveData writes v as indented JSON to file inside DataDir.
func (h *Host) SaveData(file string, v any) error {
	path, err := h.dataPath(file)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", file, err)
	}

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", file, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", file, err)
	}

	return nil
}

// LoadData decodes file from DataDir into out. found is false when the file
// does not exist, in which case out is untouched.
func (h *Host) LoadData(file string, out any) (bool, error) {
	path, err := h.dataPath(file)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", file, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return true, nil
}

// Config returns a copy of the extension's settings.
func (h *Host) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return registry.CloneSettings(h.config)
}

// ConfigValue returns the setting for key, or def when it is not set.
func (h *Host) ConfigValue(key string, def any) any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if v, ok := h.config[key]; ok {
		return v
	}
	return def
}

func (h *Host) setConfig(config map[string]any) {
	h.mu.Lock()
	h.config = registry.CloneSettings(config)
	h.mu.Unlock()
}

func (h *Host) dataPath(file string) (string, error) {
	if file == "" || file != filepath.Base(file) || strings.HasPrefix(file, ".") {
		return "", fmt.Errorf("invalid data file name %q", file)
	}
	return filepath.Join(h.dataDir, file), nil
}
