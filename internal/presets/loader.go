// Package presets loads named parameter presets from a directory. A preset
// is a file whose top-level keys are template field names; the file stem is
// the preset name (anime.yaml defines "anime").
package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"imaged/internal/common/fsutil"
)

// Preset is a named set of template overrides.
type Preset struct {
	Name      string
	Path      string
	Overrides map[string]any
}

// Set maps preset names to presets.
type Set map[string]Preset

// Names returns the preset names in sorted order.
func (s Set) Names() []string {
	names := lo.Keys(s)
	sort.Strings(names)
	return names
}

// Lookup returns the preset called name.
func (s Set) Lookup(name string) (Preset, bool) {
	p, ok := s[name]
	return p, ok
}

// LoadDir reads every *.json, *.yaml, *.yml and *.toml file in dir.
// Other files and subdirectories are ignored. Two files with the same stem
// are an error.
func LoadDir(dir string) (Set, error) {
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, fmt.Errorf("presets dir: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	out := make(Set)
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		p, err := LoadFile(filepath.Join(abs, e.Name()))
		if err != nil {
			return nil, err
		}
		if prev, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("preset %q defined by both %s and %s", p.Name, prev.Path, p.Path)
		}
		out[p.Name] = p
	}
	return out, nil
}

// LoadFile decodes a single preset file.
func LoadFile(path string) (Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}
	overrides := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &overrides)
	case ".json":
		err = json.Unmarshal(b, &overrides)
	case ".toml":
		err = toml.Unmarshal(b, &overrides)
	default:
		return Preset{}, fmt.Errorf("unsupported preset extension: %s", ext)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("decode preset %s: %w", path, err)
	}
	// a preset cannot select another preset
	delete(overrides, "preset")
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Preset{Name: name, Path: path, Overrides: overrides}, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}
