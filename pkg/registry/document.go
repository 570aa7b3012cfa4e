package registry

import (
	"encoding/json"
	"fmt"
)

// DefaultPluginName is the entry seeded into a fresh registry.
const DefaultPluginName = "example"

// Entry is the persisted configuration of one extension.
type Entry struct {
	Enabled  bool           `json:"enabled"`
	Settings map[string]any `json:"settings"`
}

// Document is the full persisted registry.
type Document struct {
	Plugins        map[string]Entry `json:"plugins"`
	EnabledPlugins []string         `json:"enabled_plugins"`
}

func defaultDocument() Document {
	return Document{
		Plugins: map[string]Entry{
			DefaultPluginName: {Enabled: false, Settings: map[string]any{}},
		},
		EnabledPlugins: []string{},
	}
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse registry document: %w", err)
	}
	doc.normalize()
	return doc, nil
}

func (d Document) encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registry document: %w", err)
	}
	return append(data, '\n'), nil
}

// normalize makes enabled_plugins authoritative: entry flags are rewritten to
// match it, listed names without an entry get an empty enabled entry and
// duplicate list items are dropped.
func (d *Document) normalize() {
	if d.Plugins == nil {
		d.Plugins = make(map[string]Entry)
	}

	seen := make(map[string]bool, len(d.EnabledPlugins))
	enabled := make([]string, 0, len(d.EnabledPlugins))
	for _, name := range d.EnabledPlugins {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		enabled = append(enabled, name)
	}
	d.EnabledPlugins = enabled

	for name, entry := range d.Plugins {
		entry.Enabled = seen[name]
		if entry.Settings == nil {
			entry.Settings = map[string]any{}
		}
		d.Plugins[name] = entry
	}
	for _, name := range enabled {
		if _, ok := d.Plugins[name]; !ok {
			d.Plugins[name] = Entry{Enabled: true, Settings: map[string]any{}}
		}
	}
}

func (d Document) clone() Document {
	out := Document{
		Plugins:        make(map[string]Entry, len(d.Plugins)),
		EnabledPlugins: append([]string{}, d.EnabledPlugins...),
	}
	for name, entry := range d.Plugins {
		out.Plugins[name] = entry.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	return Entry{Enabled: e.Enabled, Settings: CloneSettings(e.Settings)}
}

// CloneSettings deep-copies a settings map. Nested maps and slices are copied;
// other values are shared.
func CloneSettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneSettings(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func removeName(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
