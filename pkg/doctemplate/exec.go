package doctemplate

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// NotAvailable replaces variables that are missing, null, or empty
const NotAvailable = "N/A"

const (
	indexVar     = "@index"
	signatureVar = "signature:@index"
)

type scope struct {
	vars   map[string]any
	index  int
	inLoop bool
	parent *scope
}

// lookup resolves a dotted path, innermost scope first
func (s *scope) lookup(path string) (any, bool) {
	if path == indexVar {
		for sc := s; sc != nil; sc = sc.parent {
			if sc.inLoop {
				return sc.index, true
			}
		}
		return nil, false
	}

	head, rest, _ := strings.Cut(path, ".")
	for sc := s; sc != nil; sc = sc.parent {
		v, ok := sc.vars[head]
		if !ok {
			continue
		}
		if rest == "" {
			return v, true
		}
		return walk(v, strings.Split(rest, "."))
	}
	return nil, false
}

func walk(v any, segments []string) (any, bool) {
	for _, seg := range segments {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return v, true
}

// Execute evaluates the tree against data. Values are HTML-escaped and every
// unresolved, null, or empty variable becomes NotAvailable, so no "{{" tag
// survives in the output.
func (t *Tree) Execute(data map[string]any) string {
	var b strings.Builder
	execNodes(&b, t.Root, &scope{vars: data})
	return b.String()
}

func execNodes(b *strings.Builder, nodes []Node, sc *scope) {
	for _, n := range nodes {
		switch n := n.(type) {
		case TextNode:
			b.WriteString(n.Text)
		case VarNode:
			b.WriteString(html.EscapeString(evalVar(n.Path, sc)))
		case IfNode:
			if v, ok := sc.lookup(n.Path); ok && truthy(v) {
				execNodes(b, n.Body, sc)
			}
		case EachNode:
			v, _ := sc.lookup(n.Path)
			for i, item := range listItems(v) {
				execNodes(b, n.Body, &scope{vars: item, index: i, inLoop: true, parent: sc})
			}
		}
	}
}

func evalVar(path string, sc *scope) string {
	if path == signatureVar {
		idx, ok := sc.lookup(indexVar)
		if !ok {
			return NotAvailable
		}
		return fmt.Sprintf("Signature %d", idx)
	}
	v, ok := sc.lookup(path)
	if !ok {
		return NotAvailable
	}
	if s, ok := formatValue(v); ok {
		return s
	}
	return NotAvailable
}

// listItems returns the maps of a list value. Non-map elements are skipped.
func listItems(v any) []map[string]any {
	switch l := v.(type) {
	case []map[string]any:
		return l
	case []any:
		items := make([]map[string]any, 0, len(l))
		for _, e := range l {
			if m, ok := e.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	default:
		return nil
	}
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case *string:
		return v != nil && *v != ""
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case []map[string]any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case interface{ IsZero() bool }:
		return !v.IsZero()
	default:
		return true
	}
}

// formatValue renders a scalar. The second result is false when the value
// counts as empty.
func formatValue(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case *string:
		if v == nil || *v == "" {
			return "", false
		}
		return *v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	case map[string]any, []any, []map[string]any:
		return "", false
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}
