// Package plugins is the extension runtime: the capability contract
// extensions implement, package discovery and the Manager that drives
// extension lifecycles and dispatches host events.
//
// # Contract
//
// Every extension implements Plugin (Initialize and Unload). Hooks are
// optional interfaces, detected once when the extension is registered:
//
//	type shout struct{ plugins.Base }
//
//	func (s *shout) Initialize(context.Context) error { return nil }
//	func (s *shout) Unload(context.Context) error     { return nil }
//
//	func (s *shout) OnVoiceOutput(_ context.Context, text string) (string, bool, error) {
//		return strings.ToUpper(text), true, nil
//	}
//
// Embedding Base gives access to the extension's Host: logger, data
// directory and persisted settings.
//
// # Packages
//
// An extension package is a directory holding a plugin.yaml manifest. The
// manifest runtime selects a PackageLoader: "builtin" resolves a factory from
// a Catalog of compiled-in extensions, other runtimes (see pkg/plugins/lua)
// load code from the package itself.
//
//	name: datetime
//	version: 1.0.0
//	api_version: 1.0.0
//	runtime: builtin
//	factory: datetime
//
// Directories whose names start with "_" or "." are ignored.
//
// # Manager
//
//	loader := plugins.NewLoader([]string{"plugins/core", "plugins/community"}, log)
//	mgr := plugins.NewManager(reg, loader, plugins.WithLogger(log))
//	if err := mgr.Initialize(ctx); err != nil {
//		return err
//	}
//	defer mgr.Shutdown(ctx)
//
//	reply := mgr.DispatchMessageReceived(ctx, "hi", plugins.SourceUser)
//
// Dispatch visits enabled extensions in registration order. A failing or
// panicking hook is logged with the extension and hook name and never stops
// the remaining extensions.
//
// # Related Packages
//
//   - pkg/registry: enabled set and settings persistence
//   - pkg/events: the bus used for broadcast and collect hooks
//   - pkg/plugins/builtin: compiled-in extensions
//   - pkg/plugins/lua: Lua extension runtime
package plugins
