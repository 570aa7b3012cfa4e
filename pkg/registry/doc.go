// Package registry persists which extensions are enabled and their settings.
//
// The Registry is the single source of truth for "is extension X active". Its
// document is stored as JSON:
//
//	{
//	  "plugins": {"datetime": {"enabled": true, "settings": {"include_seconds": false}}},
//	  "enabled_plugins": ["datetime"]
//	}
//
// The two fields are kept consistent on every mutation; on load the
// enabled_plugins list wins when they disagree.
//
// # Storage
//
// FileStore writes the document atomically (temp file, fsync, rename) under a
// host supplied config directory. RedisStore keeps it under a single key.
//
//	reg := registry.New(registry.NewFileStore("config/plugin_config.json"))
//	if err := reg.Load(ctx); err != nil {
//		log.WithError(err).Warn("Using default plugin registry")
//	}
//
// Load never leaves the Registry unusable. Missing or unreadable storage falls
// back to a default document with a single disabled "example" entry.
//
// # Watching
//
// Watcher reports external edits of a FileStore document so the host can apply
// enable/disable changes without a restart.
package registry
