// Package doctemplate renders contract documents from HTML templates that use
// a small mustache-like syntax:
//
//	{{contract.status}}                 variable, dotted path
//	{{#each participants}}...{{/each}}  repeat the body for each list item
//	{{#if artistic_name}}...{{/if}}     keep the body only when the value is truthy
//	{{signature:@index}}                "Signature N" label inside an each block
//
// Render is the flat, single-pass substitution used for simple data objects.
// Parse and Tree.Execute implement the full language with nested blocks.
package doctemplate

import "strings"

type tokenKind int

const (
	tokText tokenKind = iota
	tokVar
	tokEachOpen
	tokEachClose
	tokIfOpen
	tokIfClose
)

type token struct {
	kind tokenKind
	// arg is the literal text for tokText and the trimmed path otherwise
	arg string
	raw string
	pos int
}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// lex splits src into text and tag tokens. An opening delimiter without a
// matching close is treated as text.
func lex(src string) []token {
	var tokens []token
	i := 0
	for i < len(src) {
		start := strings.Index(src[i:], openDelim)
		if start < 0 {
			tokens = append(tokens, token{kind: tokText, arg: src[i:], raw: src[i:], pos: i})
			break
		}
		start += i
		end := strings.Index(src[start+len(openDelim):], closeDelim)
		if end < 0 {
			tokens = append(tokens, token{kind: tokText, arg: src[i:], raw: src[i:], pos: i})
			break
		}
		end += start + len(openDelim)

		if start > i {
			tokens = append(tokens, token{kind: tokText, arg: src[i:start], raw: src[i:start], pos: i})
		}
		raw := src[start : end+len(closeDelim)]
		tokens = append(tokens, classify(strings.TrimSpace(src[start+len(openDelim):end]), raw, start))
		i = end + len(closeDelim)
	}
	return tokens
}

func classify(inner, raw string, pos int) token {
	switch {
	case strings.HasPrefix(inner, "#each "):
		return token{kind: tokEachOpen, arg: strings.TrimSpace(inner[len("#each "):]), raw: raw, pos: pos}
	case strings.HasPrefix(inner, "#if "):
		return token{kind: tokIfOpen, arg: strings.TrimSpace(inner[len("#if "):]), raw: raw, pos: pos}
	case inner == "/each":
		return token{kind: tokEachClose, raw: raw, pos: pos}
	case inner == "/if":
		return token{kind: tokIfClose, raw: raw, pos: pos}
	default:
		return token{kind: tokVar, arg: inner, raw: raw, pos: pos}
	}
}
