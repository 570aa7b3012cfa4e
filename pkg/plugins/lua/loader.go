package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

// Runtime is the manifest runtime served by Loader.
const Runtime = "lua"

// Loader compiles Lua packages into extension factories.
type Loader struct {
	log      *logrus.Logger
	compiled *compileCache
}

// NewLoader creates a Lua package loader.
func NewLoader(log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}
	return &Loader{
		log:      log,
		compiled: newCompileCache(DefaultCompileCacheSize),
	}
}

// Runtime implements plugins.PackageLoader.
func (l *Loader) Runtime() string {
	return Runtime
}

// LoadPackage runs the package's main script and checks the returned hook
// table. Module-level code in the script runs here. The factory hands out
// the prepared instance first and runs the script again for later calls.
func (l *Loader) LoadPackage(ctx context.Context, pkg *plugins.Package) (plugins.Factory, error) {
	l.warnIssues(pkg)

	first, err := l.open(ctx, pkg)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() plugins.Plugin {
		var p *Plugin
		once.Do(func() { p = first })
		if p != nil {
			return p
		}

		p, err := l.open(context.Background(), pkg)
		if err != nil {
			l.log.WithField("plugin", pkg.Name).WithError(err).Error("Failed to instantiate Lua plugin")
			return nil
		}
		return p
	}, nil
}

func (l *Loader) open(ctx context.Context, pkg *plugins.Package) (*Plugin, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	p := &Plugin{
		name: pkg.Name,
		L:    L,
		log:  l.log.WithField("plugin", pkg.Name),
	}

	openLibraries(L, pkg.Dir)
	L.PreloadModule(ModuleName, p.loadModule)

	main := pkg.MainPath()
	proto, err := l.compiled.compile(main)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to compile %s: %w", filepath.Base(main), err)
	}

	L.Push(L.NewFunctionFromProto(proto))
	L.SetContext(ctx)
	err = L.PCall(0, 1, nil)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to run %s: %w", filepath.Base(main), err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	module, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w, got %s", ErrBadModule, ret.Type())
	}
	for _, hook := range []string{plugins.HookInitialize, plugins.HookUnload} {
		if module.RawGetString(hook).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("%w: %s", ErrMissingHook, hook)
		}
	}

	p.module = module
	return p, nil
}

// openLibraries opens base, table, string, math and a package library that
// only searches dir.
func openLibraries(L *lua.LState, dir string) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(filepath.Join(dir, "?.lua")))
		L.SetField(pkg, "cpath", lua.LString(""))
	}
}

// warnIssues logs Scan findings. They never block loading.
func (l *Loader) warnIssues(pkg *plugins.Package) {
	issues, err := Scan(pkg.Dir)
	if err != nil {
		l.log.WithField("plugin", pkg.Name).WithError(err).Warn("Failed to scan Lua plugin")
		return
	}
	for _, issue := range issues {
		l.log.WithFields(logrus.Fields{
			"plugin":   pkg.Name,
			"file":     issue.File,
			"line":     issue.Line,
			"category": issue.Category,
			"severity": issue.Severity,
		}).Warn("Lua plugin " + issue.Description)
	}
}
