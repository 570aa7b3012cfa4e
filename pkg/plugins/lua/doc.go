// Package lua runs extensions written in Lua on top of gopher-lua.
//
// A package with `runtime: lua` in its plugin.yaml points main (default
// init.lua) at a script that returns one table of hook functions:
//
//	local lumi = require("lumi")
//	local M = {}
//
//	function M.initialize() return true end
//	function M.unload() end
//
//	function M.on_voice_output(text)
//	  return string.upper(text)
//	end
//
//	return M
//
// initialize and unload are required; every other hook is optional and
// takes the same arguments as its Go counterpart. initialize may return
// false to decline loading. Transform and collect hooks return nil for
// "no result". Hooks are plain functions, not methods.
//
// The script runs with the base, table, string and math libraries.
// dofile, loadfile and load are removed and require only resolves the
// lumi module and Lua files inside the package directory.
//
// The lumi module exposes the host:
//
//	lumi.name()                   -- extension name
//	lumi.log(level, msg)          -- debug, info, warn or error
//	lumi.config(key, default)     -- current setting
//	lumi.save_data(file, value)   -- JSON file in the data directory
//	lumi.load_data(file, default) -- value saved earlier, or default
//
// Each extension owns one Lua state; all access to it is serialized.
// Instances of the same package share one compiled chunk.
//
// Before a package runs, Scan looks for calls the sandbox rejects and for
// hardcoded secrets. Findings are logged as warnings and never block loading.
package lua
