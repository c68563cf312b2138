package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile is the top-level YAML structure for catalog files.
type yamlCatalogFile struct {
	Spaces []Space `yaml:"spaces"`
}

// FileCatalog is an in-memory Store loaded from a YAML catalog file.
// Used in standalone/dev mode in place of the spaces table.
type FileCatalog struct {
	spaces map[string]Space
}

// LoadFile reads and validates a YAML space catalog.
//
// Precondition: path must point to a valid YAML catalog file.
// Postcondition: Returns a catalog with at least one space, or a non-nil error.
func LoadFile(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a catalog from YAML bytes.
func LoadBytes(data []byte) (*FileCatalog, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if len(file.Spaces) == 0 {
		return nil, fmt.Errorf("catalog defines no spaces")
	}

	spaces := make(map[string]Space, len(file.Spaces))
	for _, s := range file.Spaces {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("validating space: %w", err)
		}
		if _, dup := spaces[s.ID]; dup {
			return nil, fmt.Errorf("duplicate space id %q", s.ID)
		}
		spaces[s.ID] = s
	}

	return &FileCatalog{spaces: spaces}, nil
}

// Space returns the definition for the given ID, or ErrSpaceNotFound.
func (c *FileCatalog) Space(_ context.Context, id string) (Space, error) {
	s, ok := c.spaces[id]
	if !ok {
		return Space{}, ErrSpaceNotFound
	}
	return s, nil
}

// Len returns the number of spaces in the catalog.
func (c *FileCatalog) Len() int {
	return len(c.spaces)
}
