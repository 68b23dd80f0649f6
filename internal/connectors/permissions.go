package connectors

import (
	"encoding/json"
	"strings"
)

// ParsePermissionList parses a permission-list blob-metadata value in any of
// the three shapes the source project's connectors accept: a JSON array
// (`["a","b"]`), a Python list literal (`['a', 'b']`), or a comma/semicolon
// separated string (`a,b` / `a;b`) (§4.7).
func ParsePermissionList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw[0] == '[' {
		if ids, ok := parseListLiteral(raw); ok {
			return ids
		}
	}
	sep := ","
	if strings.Contains(raw, ";") {
		sep = ";"
	}
	var out []string
	for _, p := range strings.Split(raw, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseListLiteral(raw string) ([]string, bool) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err == nil {
		return ids, true
	}
	// Python list literal: single quotes, possibly trailing comma.
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, true
	}
	var out []string
	for _, p := range strings.Split(body, ",") {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, "'\"")
		if p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
