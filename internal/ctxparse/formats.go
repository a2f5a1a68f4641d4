package ctxparse

import (
	"bytes"
	"encoding/json"
	"path"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/subosito/gotenv"
	"gopkg.in/ini.v1"
	yaml "gopkg.in/yaml.v3"
)

type dotenvParser struct{}

func (dotenvParser) Format() Format { return FormatDotenv }

func (dotenvParser) Accepts(rel string) bool {
	base := strings.ToLower(path.Base(rel))
	return base == ".env" || strings.HasPrefix(base, ".env.") || strings.HasSuffix(base, ".env")
}

func (dotenvParser) Parse(data []byte) (*Document, bool) {
	env, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil || len(env) == 0 {
		return nil, false
	}
	tree := make(map[string]any, len(env))
	for k, v := range env {
		tree[k] = v
	}
	return &Document{Format: FormatDotenv, Tree: tree, Lines: assignLines(data)}, true
}

type jsonParser struct{}

func (jsonParser) Format() Format { return FormatJSON }

func (jsonParser) Accepts(rel string) bool { return ext(rel) == ".json" }

func (jsonParser) Parse(data []byte) (*Document, bool) {
	var tmp any
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, false
	}
	tree, ok := normalize(tmp).(map[string]any)
	if !ok {
		return nil, false
	}
	return &Document{Format: FormatJSON, Tree: tree, Lines: assignLines(data)}, true
}

type yamlParser struct{}

func (yamlParser) Format() Format { return FormatYAML }

func (yamlParser) Accepts(rel string) bool {
	e := ext(rel)
	return e == ".yaml" || e == ".yml"
}

// Parse keeps yaml.v3 node positions so findings get exact lines. Only the
// first document of a stream is considered.
func (yamlParser) Parse(data []byte) (*Document, bool) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, false
	}
	var tmp any
	if err := root.Decode(&tmp); err != nil {
		return nil, false
	}
	tree, ok := normalize(tmp).(map[string]any)
	if !ok {
		return nil, false
	}
	return &Document{Format: FormatYAML, Tree: tree, Lines: yamlLines(&root)}, true
}

func yamlLines(root *yaml.Node) map[string]int {
	out := map[string]int{}
	var walk func(n *yaml.Node, path []string)
	walk = func(n *yaml.Node, path []string) {
		switch n.Kind {
		case yaml.DocumentNode:
			for _, c := range n.Content {
				walk(c, path)
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				k := n.Content[i]
				v := n.Content[i+1]
				walk(v, append(path[:len(path):len(path)], k.Value))
			}
		case yaml.SequenceNode:
			for i, c := range n.Content {
				walk(c, append(path[:len(path):len(path)], strconv.Itoa(i)))
			}
		case yaml.AliasNode:
			if len(path) > 0 {
				out[strings.Join(path, ".")] = n.Line
			}
		case yaml.ScalarNode:
			if len(path) > 0 {
				out[strings.Join(path, ".")] = n.Line
			}
		}
	}
	walk(root, nil)
	return out
}

type tomlParser struct{}

func (tomlParser) Format() Format { return FormatTOML }

func (tomlParser) Accepts(rel string) bool { return ext(rel) == ".toml" }

func (tomlParser) Parse(data []byte) (*Document, bool) {
	var tmp map[string]any
	if err := toml.Unmarshal(data, &tmp); err != nil {
		return nil, false
	}
	tree, _ := normalize(tmp).(map[string]any)
	return &Document{Format: FormatTOML, Tree: tree, Lines: assignLines(data)}, true
}

type iniParser struct{}

func (iniParser) Format() Format { return FormatINI }

func (iniParser) Accepts(rel string) bool {
	switch ext(rel) {
	case ".ini", ".cfg", ".conf":
		return true
	}
	return false
}

// Parse maps the default section to top-level keys and every named
// section to a nested map.
func (iniParser) Parse(data []byte) (*Document, bool) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, false
	}
	tree := map[string]any{}
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if len(keys) == 0 {
			continue
		}
		dst := tree
		if sec.Name() != ini.DefaultSection {
			m := map[string]any{}
			tree[sec.Name()] = m
			dst = m
		}
		for _, k := range keys {
			dst[k.Name()] = k.Value()
		}
	}
	return &Document{Format: FormatINI, Tree: tree, Lines: assignLines(data)}, true
}
