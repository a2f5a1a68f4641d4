package rules

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is the on-disk YAML shape of a rule pack.
type Pack struct {
	Version int       `yaml:"version,omitempty"`
	Name    string    `yaml:"name,omitempty"`
	Rules   []RawRule `yaml:"rules"`
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ParsePack decodes a YAML rule pack. Unknown fields are rejected so typos
// in rule files surface as errors instead of silently doing nothing.
func ParsePack(b []byte) (Pack, error) {
	var p Pack
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Pack{}, nil
		}
		return Pack{}, fmt.Errorf("parse rule pack: %w", err)
	}
	if p.Version > 1 {
		return Pack{}, fmt.Errorf("unsupported rule pack version %d", p.Version)
	}
	return p, nil
}

// LoadPackFile reads and parses a rule pack from disk.
func LoadPackFile(path string) (Pack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, err
	}
	return ParsePack(b)
}

// BuiltinPacks lists the names of the embedded packs.
func BuiltinPacks() []string {
	entries, _ := builtinFS.ReadDir("builtin")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// BuiltinSource returns the embedded pack with the given name.
func BuiltinSource(name string) Source {
	return Source{
		Name: "builtin:" + name,
		Tier: TierBuiltin,
		Load: func() ([]RawRule, error) {
			b, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
			if err != nil {
				return nil, fmt.Errorf("unknown builtin pack %q", name)
			}
			p, err := ParsePack(b)
			if err != nil {
				return nil, err
			}
			return p.Rules, nil
		},
	}
}
