package doctemplate

import "fmt"

// Node is an element of a parsed template
type Node interface {
	node()
}

// TextNode is literal template text
type TextNode struct {
	Text string
}

// VarNode is a {{path}} reference
type VarNode struct {
	Path string
	Raw  string
}

// EachNode repeats Body for every item of the list at Path
type EachNode struct {
	Path string
	Body []Node
}

// IfNode keeps Body when the value at Path is truthy
type IfNode struct {
	Path string
	Body []Node
}

func (TextNode) node() {}
func (VarNode) node()  {}
func (EachNode) node() {}
func (IfNode) node()   {}

// Tree is a parsed template
type Tree struct {
	Root []Node
}

// ParseError reports malformed block structure
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template: %s at offset %d", e.Msg, e.Pos)
}

type frame struct {
	kind  tokenKind
	path  string
	pos   int
	nodes []Node
}

// Parse builds the block tree of src
func Parse(src string) (*Tree, error) {
	stack := []*frame{{kind: tokText}}

	for _, tok := range lex(src) {
		top := stack[len(stack)-1]
		switch tok.kind {
		case tokText:
			top.nodes = append(top.nodes, TextNode{Text: tok.arg})
		case tokVar:
			top.nodes = append(top.nodes, VarNode{Path: tok.arg, Raw: tok.raw})
		case tokEachOpen, tokIfOpen:
			if tok.arg == "" {
				return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("block %q without a field", tok.raw)}
			}
			stack = append(stack, &frame{kind: tok.kind, path: tok.arg, pos: tok.pos})
		case tokEachClose, tokIfClose:
			want := tokEachOpen
			if tok.kind == tokIfClose {
				want = tokIfOpen
			}
			if len(stack) == 1 || top.kind != want {
				return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s", tok.raw)}
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			if top.kind == tokEachOpen {
				parent.nodes = append(parent.nodes, EachNode{Path: top.path, Body: top.nodes})
			} else {
				parent.nodes = append(parent.nodes, IfNode{Path: top.path, Body: top.nodes})
			}
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, &ParseError{Pos: open.pos, Msg: fmt.Sprintf("unclosed block %q", open.path)}
	}
	return &Tree{Root: stack[0].nodes}, nil
}
