package builtin

import (
	"github.com/lumi-ai/lumi/pkg/plugins"
)

// Factory names referenced by the factory field of plugin.yaml.
const (
	ExampleFactory  = "example"
	DateTimeFactory = "datetime"
)

// Register adds every builtin factory to c.
func Register(c *plugins.Catalog) error {
	if err := c.Register(ExampleFactory, NewExample); err != nil {
		return err
	}
	return c.Register(DateTimeFactory, NewDateTime)
}
