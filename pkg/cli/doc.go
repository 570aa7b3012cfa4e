// Package cli provides the lumi-plugins command-line interface.
//
// # Commands
//
// list: Show loaded plugins and registry entries that were not loaded
//
//	lumi-plugins list
//	lumi-plugins list -json
//
// enable, disable: Flip a plugin in the registry. A running server applies
// the change through its registry watcher or POST /api/v1/plugins/sync.
//
//	lumi-plugins enable datetime
//	lumi-plugins disable shout
//
// dispatch: Load the plugins, send one event and print the result
//
//	lumi-plugins dispatch "what time is it"
//	lumi-plugins dispatch -source discord "hello"
//	lumi-plugins dispatch -event voice_output "good night"
//	lumi-plugins dispatch -event dashboard_update
//
// serve: Run the runtime with the admin API, the dashboard collector and
// the registry watcher until SIGINT or SIGTERM
//
//	lumi-plugins serve -addr 127.0.0.1:8085
//
// # Configuration
//
// Every command reads its settings from LUMI_* environment variables, see
// package config.
package cli
