package doctemplate

import (
	"strings"
)

// Render performs a single flat substitution pass over src. Top-level scalar
// keys replace {{key}} and one level of nesting replaces {{key.nestedKey}}.
// Null or empty values become NotAvailable. Tags that do not name a key of
// data, block tags included, are left untouched. Values are not escaped.
func Render(src string, data map[string]any) string {
	var b strings.Builder
	b.Grow(len(src))

	for _, tok := range lex(src) {
		if tok.kind != tokVar {
			b.WriteString(tok.raw)
			continue
		}
		v, ok := lookupFlat(data, tok.arg)
		if !ok {
			b.WriteString(tok.raw)
			continue
		}
		if s, ok := formatValue(v); ok {
			b.WriteString(s)
		} else {
			b.WriteString(NotAvailable)
		}
	}
	return b.String()
}

func lookupFlat(data map[string]any, path string) (any, bool) {
	key, nested, dotted := strings.Cut(path, ".")
	v, ok := data[key]
	if !ok {
		return nil, false
	}
	if !dotted {
		if _, isMap := v.(map[string]any); isMap {
			return nil, false
		}
		return v, true
	}
	m, isMap := v.(map[string]any)
	if !isMap || strings.Contains(nested, ".") {
		return nil, false
	}
	nv, ok := m[nested]
	return nv, ok
}
