package command

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_commands.yaml
var defaultCatalog []byte

// CatalogFile is the top-level structure of a command catalog YAML file.
//
// Example:
//
//	commands:
//	  - intent: open_app
//	    description: "Open an application"
//	    patterns: ["open {appName}"]
//	    examples: ["open terminal"]
//	    entities:
//	      appName: { required: true }
type CatalogFile struct {
	Commands []Command `yaml:"commands"`
}

// LoadCatalogFile reads and parses a catalog YAML file from disk.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("command: open catalog file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("command: parse catalog file %q: %w", path, err)
	}
	return cf, nil
}

// LoadCatalogFromReader parses catalog YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCatalogFromReader(r io.Reader) (*CatalogFile, error) {
	var cf CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("command: decode catalog yaml: %w", err)
	}
	return &cf, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *CatalogFile {
	cf, err := LoadCatalogFromReader(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("command: embedded catalog is invalid: %v", err))
	}
	return cf
}

// LoadCommands reads and concatenates the commands of every catalog file in
// order. With no paths the embedded default catalog is returned.
func LoadCommands(paths ...string) ([]Command, error) {
	if len(paths) == 0 {
		return DefaultCatalog().Commands, nil
	}
	var cmds []Command
	for _, p := range paths {
		cf, err := LoadCatalogFile(p)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cf.Commands...)
	}
	return cmds, nil
}
