package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/observability"
)

// Skip reasons, used in DiscoveryError and as metric labels.
const (
	ReasonDisabled     = "disabled"
	ReasonNoEntryPoint = "no_entry_point"
	ReasonManifest     = "manifest"
	ReasonRuntime      = "runtime"
	ReasonLoad         = "load"
	ReasonDuplicate    = "duplicate"
	ReasonInstantiate  = "instantiate"
	ReasonInitialize   = "initialize"
)

// Discovery is the outcome for one candidate directory. Err is nil when
// Package and Factory are usable.
type Discovery struct {
	Name    string
	Dir     string
	Root    string
	Package *Package
	Factory Factory
	Err     error
}

// Loader discovers extension packages in search roots
type Loader struct {
	roots   []string
	mu      sync.RWMutex
	loaders map[string]PackageLoader
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewLoader creates a loader for roots, scanned in order. The builtin
// runtime is served by the default catalog until another one is registered.
func NewLoader(roots []string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}

	l := &Loader{
		roots:   append([]string(nil), roots...),
		loaders: make(map[string]PackageLoader),
		log:     log,
	}
	l.RegisterRuntime(NewCatalogLoader(nil))
	return l
}

// RegisterRuntime installs a PackageLoader, replacing any loader for the
// same runtime.
func (l *Loader) RegisterRuntime(pl PackageLoader) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaders[pl.Runtime()] = pl
}

// SetMetrics sets the metrics sink for skipped packages.
func (l *Loader) SetMetrics(m *observability.Metrics) {
	l.metrics = m
}

// Roots returns the search roots.
func (l *Loader) Roots() []string {
	return append([]string(nil), l.roots...)
}

// Discover scans every root in order and every directory entry in lexical
// order. admit is consulted with the directory name before anything in the
// package is read; a nil admit accepts everything. Failures are logged and
// reported per candidate; they never stop the scan.
func (l *Loader) Discover(ctx context.Context, admit func(name string) bool) []Discovery {
	var results []Discovery
	seen := make(map[string]string)

	for _, root := range l.roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", root)
			continue
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			l.log.Warnf("Failed to read plugin directory %s: %v", root, err)
			continue
		}
		l.log.WithField("root", root).Debugf("Scanning %d entries", len(entries))

		for _, entry := range entries {
			if ctx.Err() != nil {
				return results
			}

			name := entry.Name()
			if !entry.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
				continue
			}

			d := Discovery{Name: name, Dir: filepath.Join(root, name), Root: root}

			if first, dup := seen[name]; dup {
				d.Err = l.skip(d, ReasonDuplicate, fmt.Errorf("%w: already provided by %s", ErrDuplicatePlugin, first))
				results = append(results, d)
				continue
			}
			seen[name] = root

			if admit != nil && !admit(name) {
				l.log.WithField("plugin", name).Info("Plugin is disabled in registry, skipping")
				l.metrics.RecordDiscoverySkip(ReasonDisabled)
				d.Err = &DiscoveryError{Name: name, Dir: d.Dir, Reason: ReasonDisabled, Err: ErrNotAdmitted}
				results = append(results, d)
				continue
			}

			d.Package, d.Factory, d.Err = l.load(ctx, d)
			results = append(results, d)
		}
	}

	return results
}

// load opens one package and resolves its factory. Panics in runtime
// loaders are turned into errors.
func (l *Loader) load(ctx context.Context, d Discovery) (pkg *Package, factory Factory, err error) {
	defer func() {
		if r := recover(); r != nil {
			pkg, factory = nil, nil
			err = l.skip(d, ReasonLoad, observability.MustRecover(r))
		}
	}()

	pkg, err = OpenPackage(d.Root, d.Dir)
	if errors.Is(err, ErrNoEntryPoint) {
		return nil, nil, l.skip(d, ReasonNoEntryPoint, err)
	}
	if err != nil {
		return nil, nil, l.skip(d, ReasonManifest, err)
	}

	l.mu.RLock()
	pl, ok := l.loaders[pkg.Manifest.Runtime]
	l.mu.RUnlock()
	if !ok {
		return nil, nil, l.skip(d, ReasonRuntime, fmt.Errorf("%w: %s", ErrUnknownRuntime, pkg.Manifest.Runtime))
	}

	factory, err = pl.LoadPackage(ctx, pkg)
	if err != nil {
		return nil, nil, l.skip(d, ReasonLoad, err)
	}

	l.log.WithFields(logrus.Fields{
		"plugin":  d.Name,
		"runtime": pkg.Manifest.Runtime,
		"version": pkg.Manifest.Version,
	}).Info("Discovered plugin")

	return pkg, factory, nil
}

func (l *Loader) skip(d Discovery, reason string, err error) error {
	l.metrics.RecordDiscoverySkip(reason)
	derr := &DiscoveryError{Name: d.Name, Dir: d.Dir, Reason: reason, Err: err}
	if reason == ReasonNoEntryPoint {
		l.log.WithField("plugin", d.Name).Warnf("No %s found in %s", ManifestFile, d.Dir)
	} else {
		l.log.WithField("plugin", d.Name).WithError(err).Warnf("Skipping plugin (%s)", reason)
	}
	return derr
}
