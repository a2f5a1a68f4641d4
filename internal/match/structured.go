package match

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// Leaf is one scalar in a normalized structured document.
type Leaf struct {
	// KeyPath joins the segments with '.'; list indexes appear as numbers.
	KeyPath string
	// Key is the nearest named segment, e.g. "password" for "db.users.0.password".
	Key   string
	Value any
}

// Lookup resolves a dotted key path in tree. Keys that themselves contain
// dots are tried before splitting.
func Lookup(tree map[string]any, keyPath string) (any, bool) {
	if tree == nil {
		return nil, false
	}
	if v, ok := tree[keyPath]; ok {
		return v, true
	}
	for i := 0; i < len(keyPath); i++ {
		if keyPath[i] != '.' {
			continue
		}
		if v, ok := lookupIn(tree[keyPath[:i]], keyPath[i+1:]); ok {
			return v, true
		}
	}
	return nil, false
}

func lookupIn(node any, rest string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		return Lookup(n, rest)
	case []any:
		head, tail, more := strings.Cut(rest, ".")
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		if !more {
			return n[idx], true
		}
		return lookupIn(n[idx], tail)
	}
	return nil, false
}

// Leaves flattens tree into scalar leaves sorted by key path.
func Leaves(tree map[string]any) []Leaf {
	var out []Leaf
	var walk func(node any, path []string, key string)
	walk = func(node any, path []string, key string) {
		switch n := node.(type) {
		case map[string]any:
			for k, v := range n {
				walk(v, append(path[:len(path):len(path)], k), k)
			}
		case []any:
			for i, v := range n {
				walk(v, append(path[:len(path):len(path)], strconv.Itoa(i)), key)
			}
		default:
			if len(path) == 0 {
				return
			}
			out = append(out, Leaf{KeyPath: strings.Join(path, "."), Key: key, Value: n})
		}
	}
	walk(tree, nil, "")
	sort.Slice(out, func(i, j int) bool { return out[i].KeyPath < out[j].KeyPath })
	return out
}

// ScalarString renders a leaf value; nil becomes "".
func ScalarString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MatchKey reports whether a rule key pattern names this leaf, either by its
// own key or by its full path. Patterns may use glob wildcards.
func MatchKey(pattern string, leaf Leaf, fold bool) bool {
	if fold {
		pattern = strings.ToUpper(pattern)
	}
	for _, cand := range []string{leaf.Key, leaf.KeyPath} {
		if fold {
			cand = strings.ToUpper(cand)
		}
		if cand == pattern {
			return true
		}
		if strings.ContainsAny(pattern, "*?[") {
			if ok, _ := doublestar.Match(pattern, cand); ok {
				return true
			}
		}
	}
	return false
}
