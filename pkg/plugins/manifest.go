package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const (
	// ManifestFile is the entry point every extension package must contain.
	ManifestFile = "plugin.yaml"

	// CurrentAPIVersion is the extension API implemented by this runtime.
	CurrentAPIVersion = "1.0.0"

	// APIConstraint is the range of manifest api_version values accepted.
	APIConstraint = "^1"

	// RuntimeBuiltin packages resolve to a compiled-in factory.
	RuntimeBuiltin = "builtin"

	// DefaultLuaMain is the script loaded when a lua manifest sets no main.
	DefaultLuaMain = "init.lua"
)

var apiConstraint = mustConstraint(APIConstraint)

// Manifest describes an extension package.
type Manifest struct {
	Name          string         `yaml:"name"`
	Version       string         `yaml:"version"`
	APIVersion    string         `yaml:"api_version"`
	Description   string         `yaml:"description"`
	Author        string         `yaml:"author"`
	Runtime       string         `yaml:"runtime"`
	Factory       string         `yaml:"factory"`
	Main          string         `yaml:"main"`
	ConfigSchema  map[string]any `yaml:"config_schema"`
	DefaultConfig map[string]any `yaml:"default_config"`
}

// ValidationError is a single manifest problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Runtime == "" {
		manifest.Runtime = RuntimeBuiltin
	}

	return &manifest, nil
}

// LoadManifestFromDir loads the plugin.yaml of dir. A missing file yields
// ErrNoEntryPoint.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoEntryPoint
	}
	return LoadManifest(path)
}

// ValidateManifest performs basic validation on a plugin manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errs []ValidationError

	if manifest.Version == "" {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "Version is required",
		})
	} else if _, err := semver.NewVersion(manifest.Version); err != nil {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	if manifest.APIVersion == "" {
		errs = append(errs, ValidationError{
			Field:   "api_version",
			Message: "API version is required",
		})
	} else if !IsCompatibleAPIVersion(manifest.APIVersion) {
		errs = append(errs, ValidationError{
			Field:   "api_version",
			Message: fmt.Sprintf("Incompatible API version: %s (runtime implements %s)", manifest.APIVersion, CurrentAPIVersion),
		})
	}

	if manifest.Runtime == RuntimeBuiltin && manifest.Factory == "" {
		errs = append(errs, ValidationError{
			Field:   "factory",
			Message: "Factory is required for builtin plugins",
		})
	}

	if manifest.Main != "" && (filepath.IsAbs(manifest.Main) || !filepath.IsLocal(manifest.Main)) {
		errs = append(errs, ValidationError{
			Field:   "main",
			Message: fmt.Sprintf("Main must be a path inside the plugin directory: %s", manifest.Main),
		})
	}

	return errs
}

// IsCompatibleAPIVersion reports whether version satisfies APIConstraint.
func IsCompatibleAPIVersion(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return apiConstraint.Check(v)
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Package is a discovered extension package.
type Package struct {
	Name     string
	Dir      string
	Root     string
	Manifest *Manifest

	schema *jsonschema.Schema
}

// OpenPackage reads and validates the manifest in dir and compiles its
// config schema.
func OpenPackage(root, dir string) (*Package, error) {
	manifest, err := LoadManifestFromDir(dir)
	if err != nil {
		return nil, err
	}

	if errs := ValidateManifest(manifest); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("manifest validation failed: %w", errors.Join(joined...))
	}

	pkg := &Package{
		Name:     filepath.Base(dir),
		Dir:      dir,
		Root:     root,
		Manifest: manifest,
	}

	if len(manifest.ConfigSchema) > 0 {
		pkg.schema, err = compileSchema(pkg.Name, manifest.ConfigSchema)
		if err != nil {
			return nil, err
		}
	}

	return pkg, nil
}

// MainPath returns the absolute script path for script runtimes.
func (p *Package) MainPath() string {
	main := p.Manifest.Main
	if main == "" {
		main = DefaultLuaMain
	}
	return filepath.Join(p.Dir, main)
}

// ValidateSettings checks settings against the manifest config schema. A
// package without a schema accepts anything.
func (p *Package) ValidateSettings(settings map[string]any) error {
	if p == nil || p.schema == nil {
		return nil
	}

	content, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config_schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read config_schema: %w", err)
	}

	url := name + "-config.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add config_schema: %w", err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config_schema: %w", err)
	}
	return sch, nil
}
