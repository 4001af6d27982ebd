package scanners

import (
	"fmt"
	"strings"
)

// stringParam returns the first non-empty string value among keys, or def.
func (t Target) stringParam(def string, keys ...string) string {
	for _, k := range keys {
		switch v := t.Parameters[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case fmt.Stringer:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		case int, int64, float64:
			return fmt.Sprint(v)
		}
	}
	return def
}

// listParam accepts a list, a list of any, or a comma separated string.
// Empty entries are dropped; a missing key returns nil.
func (t Target) listParam(key string) []string {
	var raw []string
	switch v := t.Parameters[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.Split(v, ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
