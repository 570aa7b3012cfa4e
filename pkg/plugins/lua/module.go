package lua

import (
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the name extension scripts require the host module by.
const ModuleName = "lumi"

var errNoHost = errors.New("host not attached yet")

// loadModule builds the lumi table. Its functions run while p.mu is held by
// the hook or script that called them.
func (p *Plugin) loadModule(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"name":      p.luaName,
		"log":       p.luaLog,
		"config":    p.luaConfig,
		"save_data": p.luaSaveData,
		"load_data": p.luaLoadData,
	})
	L.Push(mod)
	return 1
}

func (p *Plugin) luaName(L *lua.LState) int {
	L.Push(lua.LString(p.name))
	return 1
}

func (p *Plugin) luaLog(L *lua.LState) int {
	level := strings.ToLower(L.CheckString(1))
	msg := L.CheckString(2)

	switch level {
	case "debug":
		p.log.Debug(msg)
	case "warn", "warning":
		p.log.Warn(msg)
	case "error":
		p.log.Error(msg)
	default:
		p.log.Info(msg)
	}
	return 0
}

func (p *Plugin) luaConfig(L *lua.LState) int {
	key := L.CheckString(1)
	def := L.Get(2)

	if p.host == nil {
		L.Push(def)
		return 1
	}

	v := p.host.ConfigValue(key, nil)
	if v == nil {
		L.Push(def)
		return 1
	}
	L.Push(ToLua(L, v))
	return 1
}

// luaSaveData returns true, or nil and an error message.
func (p *Plugin) luaSaveData(L *lua.LState) int {
	file := L.CheckString(1)
	value := ToGo(L.Get(2))

	err := errNoHost
	if p.host != nil {
		err = p.host.SaveData(file, value)
	}
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LTrue)
	return 1
}

// luaLoadData returns the saved value or the default. A read error is
// logged and also yields the default.
func (p *Plugin) luaLoadData(L *lua.LState) int {
	file := L.CheckString(1)
	def := L.Get(2)

	if p.host == nil {
		L.Push(def)
		return 1
	}

	var value any
	found, err := p.host.LoadData(file, &value)
	if err != nil {
		p.log.WithError(err).Warnf("Failed to load %s", file)
	}
	if err != nil || !found {
		L.Push(def)
		return 1
	}

	L.Push(ToLua(L, value))
	return 1
}
