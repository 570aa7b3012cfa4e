package lua

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

// Plugin adapts a Lua hook table to the extension contract.
type Plugin struct {
	name string
	log  *logrus.Entry

	mu     sync.Mutex
	L      *lua.LState
	module *lua.LTable
	host   *plugins.Host
	closed bool
}

var (
	_ plugins.Plugin             = (*Plugin)(nil)
	_ plugins.HostAware          = (*Plugin)(nil)
	_ plugins.Loadable           = (*Plugin)(nil)
	_ plugins.Enableable         = (*Plugin)(nil)
	_ plugins.Disableable        = (*Plugin)(nil)
	_ plugins.MessageReceiver    = (*Plugin)(nil)
	_ plugins.MessageSender      = (*Plugin)(nil)
	_ plugins.EmotionObserver    = (*Plugin)(nil)
	_ plugins.MemoryObserver     = (*Plugin)(nil)
	_ plugins.VoiceInputHandler  = (*Plugin)(nil)
	_ plugins.VoiceOutputHandler = (*Plugin)(nil)
	_ plugins.DashboardReporter  = (*Plugin)(nil)
)

// Attach implements plugins.HostAware.
func (p *Plugin) Attach(host *plugins.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = host
	p.log = host.Logger()
}

// HasHook reports whether the hook table defines name.
func (p *Plugin) HasHook(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.module.RawGetString(name).Type() == lua.LTFunction
}

// call runs hook with args and returns its first result. A missing optional
// hook yields LNil.
func (p *Plugin) call(ctx context.Context, hook string, args ...any) (lua.LValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, ok := p.module.RawGetString(hook).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}

	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	p.L.Push(fn)
	for _, arg := range args {
		p.L.Push(ToLua(p.L, arg))
	}
	if err := p.L.PCall(len(args), 1, nil); err != nil {
		return lua.LNil, fmt.Errorf("lua %s: %w", hook, err)
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)
	return ret, nil
}

func (p *Plugin) callNoResult(ctx context.Context, hook string, args ...any) error {
	_, err := p.call(ctx, hook, args...)
	return err
}

// callString runs a hook whose result is a string or nil.
func (p *Plugin) callString(ctx context.Context, hook string, args ...any) (string, bool, error) {
	ret, err := p.call(ctx, hook, args...)
	if err != nil {
		return "", false, err
	}

	switch v := ret.(type) {
	case lua.LString:
		return string(v), true, nil
	case *lua.LNilType:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("lua %s returned %s, want string or nil", hook, ret.Type())
	}
}

// Initialize implements plugins.Plugin. Returning false from Lua declines.
func (p *Plugin) Initialize(ctx context.Context) error {
	ret, err := p.call(ctx, plugins.HookInitialize)
	if err != nil {
		return err
	}
	if ret == lua.LFalse {
		return plugins.ErrInitializeDeclined
	}
	return nil
}

// Unload implements plugins.Plugin and closes the Lua state.
func (p *Plugin) Unload(ctx context.Context) error {
	err := p.callNoResult(ctx, plugins.HookUnload)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.L.Close()
		p.closed = true
	}

	return err
}

func (p *Plugin) OnLoad(ctx context.Context) error {
	return p.callNoResult(ctx, plugins.HookOnLoad)
}

func (p *Plugin) OnEnable(ctx context.Context) error {
	return p.callNoResult(ctx, plugins.HookOnEnable)
}

func (p *Plugin) OnDisable(ctx context.Context) error {
	return p.callNoResult(ctx, plugins.HookOnDisable)
}

func (p *Plugin) OnMessageReceived(ctx context.Context, message string, source plugins.Source) (string, bool, error) {
	return p.callString(ctx, plugins.HookOnMessageReceived, message, string(source))
}

func (p *Plugin) OnMessageSent(ctx context.Context, message string) error {
	return p.callNoResult(ctx, plugins.HookOnMessageSent, message)
}

func (p *Plugin) OnEmotionChanged(ctx context.Context, emotion string, intensity float64) error {
	return p.callNoResult(ctx, plugins.HookOnEmotionChanged, emotion, intensity)
}

func (p *Plugin) OnMemoryStored(ctx context.Context, kind, content string) error {
	return p.callNoResult(ctx, plugins.HookOnMemoryStored, kind, content)
}

func (p *Plugin) OnVoiceInput(ctx context.Context, audio []byte) (string, bool, error) {
	return p.callString(ctx, plugins.HookOnVoiceInput, audio)
}

func (p *Plugin) OnVoiceOutput(ctx context.Context, text string) (string, bool, error) {
	return p.callString(ctx, plugins.HookOnVoiceOutput, text)
}

// OnDashboardUpdate converts a returned table to Metrics. nil means nothing
// to report.
func (p *Plugin) OnDashboardUpdate(ctx context.Context) (plugins.Metrics, error) {
	ret, err := p.call(ctx, plugins.HookOnDashboardUpdate)
	if err != nil {
		return nil, err
	}
	if ret == lua.LNil {
		return nil, nil
	}

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua %s returned %s, want table or nil", plugins.HookOnDashboardUpdate, ret.Type())
	}
	m, ok := ToGo(tbl).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("lua %s returned a list, want a table with string keys", plugins.HookOnDashboardUpdate)
	}
	return plugins.Metrics(m), nil
}
