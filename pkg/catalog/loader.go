package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Loader produces the static pack metadata.
type Loader interface {
	Load(ctx context.Context) ([]Pack, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]Pack, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Pack, error) { return f(ctx) }

// MemoryLoader returns a fixed list.
type MemoryLoader []Pack

func (m MemoryLoader) Load(context.Context) ([]Pack, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	return slices.Clone(m), nil
}

type yamlDocument struct {
	Packs []Pack `yaml:"packs"`
}

// YAMLLoader reads a document of the form:
//
//	packs:
//	  - packID: coins_100
//	    itemType: coins
//	    itemValue: 100
//	    itemName: Handful of coins
//	    asset: coins_small.png
//	    tag: popular
type YAMLLoader struct {
	fsys fs.FS
	name string
}

// NewYAMLLoader reads name from fsys.
func NewYAMLLoader(fsys fs.FS, name string) *YAMLLoader {
	return &YAMLLoader{fsys: fsys, name: name}
}

// NewYAMLFileLoader reads the file at path.
func NewYAMLFileLoader(path string) *YAMLLoader {
	return &YAMLLoader{name: path}
}

func (l *YAMLLoader) Load(ctx context.Context) ([]Pack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	if l.fsys != nil {
		data, err = fs.ReadFile(l.fsys, l.name)
	} else {
		data, err = os.ReadFile(l.name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a packs document.
func ParseYAML(data []byte) ([]Pack, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := validate(doc.Packs); err != nil {
		return nil, err
	}
	return doc.Packs, nil
}

func validate(packs []Pack) error {
	seen := make(map[string]struct{}, len(packs))
	for i, p := range packs {
		if p.PackID == "" {
			return fmt.Errorf("%w: entry %d", ErrInvalidPack, i)
		}
		if _, dup := seen[p.PackID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePack, p.PackID)
		}
		seen[p.PackID] = struct{}{}
	}
	return nil
}
