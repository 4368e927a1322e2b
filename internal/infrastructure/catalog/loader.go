// Package catalog loads page and workflow definitions from YAML or JSON
// files.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"carvana-workflows/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

// Sample is a small catalog for the demo inventory page, used when no
// catalog path is configured.
//
//go:embed sample.yaml
var Sample []byte

// Load reads every path in order. Directories are scanned recursively for
// *.yaml, *.yml and *.json files. Page order across files is detection
// order, so files are read in lexical order within a directory.
func Load(paths ...string) ([]entity.PageDefinition, error) {
	var pages []entity.PageDefinition
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", root, err)
		}
		if !info.IsDir() {
			p, err := LoadFile(root)
			if err != nil {
				return nil, err
			}
			pages = append(pages, p...)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isCatalogFile(path) {
				return nil
			}
			p, err := LoadFile(path)
			if err != nil {
				return err
			}
			pages = append(pages, p...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}

	if err := Validate(pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func isCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func LoadFile(path string) ([]entity.PageDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	pages, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return pages, nil
}

// Parse decodes one catalog document. JSON is accepted as YAML. The result
// is not validated across files; Load does that.
func Parse(data []byte) ([]entity.PageDefinition, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	pages := make([]entity.PageDefinition, 0, len(doc.Pages))
	for _, pd := range doc.Pages {
		page, err := pd.build()
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// ParseSample returns the embedded sample catalog.
func ParseSample() ([]entity.PageDefinition, error) {
	pages, err := Parse(Sample)
	if err != nil {
		return nil, fmt.Errorf("sample catalog: %w", err)
	}
	if err := Validate(pages); err != nil {
		return nil, fmt.Errorf("sample catalog: %w", err)
	}
	return pages, nil
}
