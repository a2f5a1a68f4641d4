// Package ctxparse turns configuration files into a normalized key/value
// tree. Each format is a trial parser: it either produces a tree or
// declines, and declining is never an error.
package ctxparse

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"strings"
)

// Format names a structured file format.
type Format string

const (
	FormatDotenv Format = "dotenv"
	FormatYAML   Format = "yaml"
	FormatJSON   Format = "json"
	FormatTOML   Format = "toml"
	FormatINI    Format = "ini"
)

// Document is a parsed structured file. Tree holds map[string]any, []any
// and scalars only.
type Document struct {
	Format Format
	Tree   map[string]any
	// Lines maps key paths, or bare key names when the parser cannot
	// track nesting, to 1-based line numbers.
	Lines map[string]int
}

// Line returns the best known line for a leaf, or 0.
func (d *Document) Line(keyPath, key string) int {
	if d == nil || d.Lines == nil {
		return 0
	}
	if n, ok := d.Lines[keyPath]; ok {
		return n
	}
	return d.Lines[key]
}

// Parser is one trial parser.
type Parser interface {
	Format() Format
	// Accepts reports whether the file name suggests this format.
	Accepts(rel string) bool
	// Parse returns the document, or false to decline.
	Parse(data []byte) (*Document, bool)
}

// DefaultParsers is the trial order used by Parse.
var DefaultParsers = []Parser{dotenvParser{}, yamlParser{}, jsonParser{}, tomlParser{}, iniParser{}}

// Parse runs the parsers whose name rules accept rel and returns the first
// document produced.
func Parse(rel string, data []byte) (*Document, bool) {
	return ParseWith(DefaultParsers, rel, data)
}

// ParseWith is Parse over an explicit parser list.
func ParseWith(parsers []Parser, rel string, data []byte) (*Document, bool) {
	for _, p := range parsers {
		if !p.Accepts(rel) {
			continue
		}
		if doc, ok := p.Parse(data); ok && len(doc.Tree) > 0 {
			return doc, true
		}
	}
	return nil, false
}

func ext(rel string) string {
	return strings.ToLower(path.Ext(rel))
}

// normalize converts decoder output into map[string]any / []any trees.
func normalize(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, vv := range n {
			out[k] = normalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, vv := range n {
			out[fmt.Sprint(k)] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, vv := range n {
			out[i] = normalize(vv)
		}
		return out
	case []map[string]any:
		out := make([]any, len(n))
		for i, vv := range n {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}

// assignLines records the first line on which each bare key is assigned,
// for formats whose decoders drop positions. It understands `key = v`,
// `key: v` and `"key": v`.
func assignLines(data []byte) map[string]int {
	out := map[string]int{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		t := strings.TrimSpace(sc.Text())
		if t == "" || t[0] == '#' || t[0] == ';' || t[0] == '[' {
			continue
		}
		t = strings.TrimPrefix(t, "export ")
		i := strings.IndexAny(t, "=:")
		if i <= 0 {
			continue
		}
		key := strings.Trim(strings.TrimSpace(t[:i]), `"'`)
		if key == "" {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = line
		}
	}
	return out
}
