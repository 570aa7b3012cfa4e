package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory creates a fresh extension instance.
type Factory func() Plugin

// Catalog maps factory names to compiled-in extension factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog used by Register.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Register adds a factory to the default catalog.
func Register(name string, factory Factory) error {
	return defaultCatalog.Register(name, factory)
}

// Register adds a factory under name
func (c *Catalog) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("cannot register factory with empty name")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory: %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("factory already registered: %s", name)
	}

	c.factories[name] = factory
	return nil
}

// Unregister removes a factory
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; !exists {
		return fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}

	delete(c.factories, name)
	return nil
}

// Get retrieves a factory by name
func (c *Catalog) Get(name string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, exists := c.factories[name]
	return factory, exists
}

// Names returns the registered factory names, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PackageLoader turns a discovered package into a factory. Each runtime named
// in manifests needs one.
type PackageLoader interface {
	Runtime() string
	LoadPackage(ctx context.Context, pkg *Package) (Factory, error)
}

// CatalogLoader resolves builtin packages through a Catalog.
type CatalogLoader struct {
	catalog *Catalog
}

// NewCatalogLoader creates a loader for the builtin runtime. A nil catalog
// means the default one.
func NewCatalogLoader(catalog *Catalog) *CatalogLoader {
	if catalog == nil {
		catalog = defaultCatalog
	}
	return &CatalogLoader{catalog: catalog}
}

// Runtime implements PackageLoader
func (l *CatalogLoader) Runtime() string {
	return RuntimeBuiltin
}

// LoadPackage implements PackageLoader
func (l *CatalogLoader) LoadPackage(_ context.Context, pkg *Package) (Factory, error) {
	factory, ok := l.catalog.Get(pkg.Manifest.Factory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, pkg.Manifest.Factory)
	}
	return factory, nil
}
