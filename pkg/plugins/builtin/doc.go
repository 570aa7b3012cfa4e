// Package builtin contains the extensions compiled into the host binary.
// Register adds their factories to a catalog; a package directory with a
// plugin.yaml naming the factory is still needed for discovery.
package builtin
