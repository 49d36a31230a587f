package doc

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// NodeType identifies the kind of a node in the document tree
type NodeType string

const (
	TypeParagraph   NodeType = "paragraph"   // Authored block
	TypeProvisional NodeType = "provisional" // AI-generated block awaiting accept/reject
	TypeText        NodeType = "text"        // Inline run of text
)

// MarkType is an inline annotation on a text node
type MarkType string

const (
	MarkBold      MarkType = "bold"
	MarkItalic    MarkType = "italic"
	MarkGenerated MarkType = "generated" // Provenance: text accepted from a suggestion
)

// Node is an immutable element of the document tree.
// Block nodes hold inline Content; text nodes hold Text and Marks.
type Node struct {
	Type    NodeType
	ID      string // Provisional blocks only
	Text    string
	Marks   []MarkType
	Content []*Node

	// Split marks a provisional block inserted inside a paragraph. Rejecting
	// it joins the two halves again.
	Split bool
}

// NewText creates a text node. Marks are deduplicated and sorted.
func NewText(text string, marks ...MarkType) *Node {
	return &Node{Type: TypeText, Text: text, Marks: normalizeMarks(marks)}
}

// NewParagraph creates a paragraph block
func NewParagraph(children ...*Node) *Node {
	return &Node{Type: TypeParagraph, Content: children}
}

// NewProvisional creates a provisional block holding plain text
func NewProvisional(id, text string) *Node {
	n := &Node{Type: TypeProvisional, ID: id}
	if text != "" {
		n.Content = []*Node{NewText(text)}
	}
	return n
}

// IsBlock reports whether n is a block node
func (n *Node) IsBlock() bool {
	return n.Type == TypeParagraph || n.Type == TypeProvisional
}

// HasMark reports whether a text node carries m
func (n *Node) HasMark(m MarkType) bool {
	return slices.Contains(n.Marks, m)
}

// TextContent returns the concatenated text of n and its descendants
func (n *Node) TextContent() string {
	if n.Type == TypeText {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// Len is the length of n's text content in runes
func (n *Node) Len() int {
	if n.Type == TypeText {
		return utf8.RuneCountInString(n.Text)
	}
	total := 0
	for _, c := range n.Content {
		total += c.Len()
	}
	return total
}

// withContent copies a block shell and replaces its children
func (n *Node) withContent(content []*Node) *Node {
	return &Node{Type: n.Type, ID: n.ID, Split: n.Split, Content: content}
}

// cut returns the inline nodes of block n between rune offsets from and to
func (n *Node) cut(from, to int) []*Node {
	var out []*Node
	pos := 0
	for _, child := range n.Content {
		runes := []rune(child.Text)
		start, end := pos, pos+len(runes)
		pos = end
		if end <= from || start >= to {
			continue
		}
		lo := max(from-start, 0)
		hi := min(to-start, len(runes))
		if lo == 0 && hi == len(runes) {
			out = append(out, child)
			continue
		}
		out = append(out, &Node{Type: TypeText, Text: string(runes[lo:hi]), Marks: child.Marks})
	}
	return out
}

// normalizeInline drops empty text nodes and merges neighbours with identical marks
func normalizeInline(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Text == "" {
			continue
		}
		if last := len(out) - 1; last >= 0 && slices.Equal(out[last].Marks, n.Marks) {
			out[last] = &Node{Type: TypeText, Text: out[last].Text + n.Text, Marks: n.Marks}
			continue
		}
		out = append(out, n)
	}
	return out
}

// normalizeBlock tidies a block's inline content. A provisional block with no
// text left is no longer a pending suggestion and becomes a paragraph.
func normalizeBlock(b *Node) *Node {
	content := normalizeInline(b.Content)
	if b.Type == TypeProvisional && len(content) == 0 {
		return NewParagraph()
	}
	return b.withContent(content)
}

func normalizeMarks(marks []MarkType) []MarkType {
	if len(marks) == 0 {
		return nil
	}
	out := slices.Clone(marks)
	slices.Sort(out)
	return slices.Compact(out)
}
