package doc

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute names used to round-trip engine state through HTML
const (
	attrProvisional = "data-provisional"
	attrGenerated   = "data-generated"
	attrSplit       = "data-split"
)

// MarshalHTML serializes the document to the rich-content form stored on a Description
func MarshalHTML(d *Doc) string {
	var b strings.Builder
	for _, block := range d.blocks {
		switch block.Type {
		case TypeProvisional:
			fmt.Fprintf(&b, `<h6 %s="%s"`, attrProvisional, html.EscapeString(block.ID))
			if block.Split {
				fmt.Fprintf(&b, ` %s="true"`, attrSplit)
			}
			b.WriteString(">")
			writeInline(&b, block.Content)
			b.WriteString("</h6>")
		default:
			b.WriteString("<p>")
			writeInline(&b, block.Content)
			b.WriteString("</p>")
		}
	}
	return b.String()
}

func writeInline(b *strings.Builder, nodes []*Node) {
	for _, n := range nodes {
		var closers []string
		if n.HasMark(MarkGenerated) {
			fmt.Fprintf(b, `<span %s="true">`, attrGenerated)
			closers = append(closers, "</span>")
		}
		if n.HasMark(MarkBold) {
			b.WriteString("<strong>")
			closers = append(closers, "</strong>")
		}
		if n.HasMark(MarkItalic) {
			b.WriteString("<em>")
			closers = append(closers, "</em>")
		}
		b.WriteString(html.EscapeString(n.Text))
		for i := len(closers) - 1; i >= 0; i-- {
			b.WriteString(closers[i])
		}
	}
}

// ParseHTML rebuilds a document from stored rich content.
// Unknown block elements become paragraphs; every h6 is a provisional block.
func ParseHTML(s string) (*Doc, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &htmlParser{}
	for _, n := range nodes {
		p.block(n)
	}
	p.flush()
	return New(p.blocks...), nil
}

type htmlParser struct {
	blocks  []*Node
	pending []*Node // Loose inline content outside any block element
}

func (p *htmlParser) flush() {
	if len(p.pending) > 0 {
		p.blocks = append(p.blocks, NewParagraph(p.pending...))
		p.pending = nil
	}
}

func (p *htmlParser) block(n *html.Node) {
	if n.Type == html.TextNode {
		if strings.TrimSpace(n.Data) != "" {
			p.pending = append(p.pending, NewText(n.Data))
		}
		return
	}
	if n.Type != html.ElementNode {
		return
	}

	switch n.DataAtom {
	case atom.H6:
		p.flush()
		block := &Node{Type: TypeProvisional, ID: attr(n, attrProvisional), Split: hasAttr(n, attrSplit)}
		block.Content = inline(n, nil)
		p.blocks = append(p.blocks, block)
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.Li, atom.Blockquote, atom.Pre:
		p.flush()
		p.blocks = append(p.blocks, NewParagraph(inline(n, nil)...))
	case atom.Div, atom.Ul, atom.Ol, atom.Section, atom.Article:
		p.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.block(c)
		}
		p.flush()
	default:
		p.pending = append(p.pending, inline(n, nil)...)
	}
}

func inline(n *html.Node, marks []MarkType) []*Node {
	if n.Type == html.TextNode {
		return []*Node{NewText(n.Data, marks...)}
	}
	if n.Type != html.ElementNode {
		return nil
	}

	switch n.DataAtom {
	case atom.Strong, atom.B:
		marks = append(marks, MarkBold)
	case atom.Em, atom.I:
		marks = append(marks, MarkItalic)
	case atom.Mark:
		marks = append(marks, MarkGenerated)
	case atom.Span:
		if hasAttr(n, attrGenerated) {
			marks = append(marks, MarkGenerated)
		}
	}

	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, inline(c, slices.Clone(marks))...)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
