// Package params holds pre-parsed configuration trees handed to factories.
//
// A Tree is what a YAML/JSON decoder produces for a mapping node. Getters never
// fail: a missing or mistyped value yields the supplied default, so a factory
// decides itself which keys are mandatory.
package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Tree is a string-keyed configuration node.
type Tree map[string]any

// Has reports whether key is present.
func (t Tree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// String returns the value as a string.
func (t Tree) String(key, def string) string {
	v, ok := t[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Float returns the value as float64. Numeric strings are parsed.
func (t Tree) Float(key string, def float64) float64 {
	v, ok := t[key]
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return f
}

// Int returns the value as int, truncating floats.
func (t Tree) Int(key string, def int) int {
	v, ok := t[key]
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return int(f)
}

// Bool returns the value as bool. "true"/"yes"/"1" strings are accepted.
func (t Tree) Bool(key string, def bool) bool {
	v, ok := t[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1", "on":
			return true
		case "false", "no", "0", "off":
			return false
		}
	case int:
		return x != 0
	}
	return def
}

// Strings returns a list of strings. A scalar string becomes a one-element list.
func (t Tree) Strings(key string) []string {
	v, ok := t[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Sub returns a nested tree, or nil if absent.
func (t Tree) Sub(key string) Tree {
	v, ok := t[key]
	if !ok {
		return nil
	}
	return asTree(v)
}

// List returns a list of nested trees. Non-mapping items are skipped.
func (t Tree) List(key string) []Tree {
	v, ok := t[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []Tree:
		return x
	case []map[string]any:
		out := make([]Tree, 0, len(x))
		for _, m := range x {
			out = append(out, Tree(m))
		}
		return out
	case []any:
		out := make([]Tree, 0, len(x))
		for _, item := range x {
			if sub := asTree(item); sub != nil {
				out = append(out, sub)
			}
		}
		return out
	}
	if sub := asTree(v); sub != nil {
		return []Tree{sub}
	}
	return nil
}

func asTree(v any) Tree {
	switch x := v.(type) {
	case Tree:
		return x
	case map[string]any:
		return Tree(x)
	case map[any]any:
		out := make(Tree, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
