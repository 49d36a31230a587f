package doc

import (
	"errors"
	"strings"
)

// ErrMixedSlice is returned when a slice mixes block and inline nodes
var ErrMixedSlice = errors.New("slice mixes block and inline nodes")

// Slice is the content inserted by a step: either all inline nodes or all block nodes
type Slice struct {
	Nodes []*Node
}

// InlineSlice builds a slice holding a single text node
func InlineSlice(text string, marks ...MarkType) Slice {
	if text == "" {
		return Slice{}
	}
	return Slice{Nodes: []*Node{NewText(text, marks...)}}
}

// BlockSlice builds a slice of block nodes
func BlockSlice(blocks ...*Node) Slice {
	return Slice{Nodes: blocks}
}

// IsBlock reports whether the slice holds blocks
func (s Slice) IsBlock() bool {
	return len(s.Nodes) > 0 && s.Nodes[0].IsBlock()
}

// Text returns the inserted text, blocks joined by BlockSeparator
func (s Slice) Text() string {
	if s.IsBlock() {
		parts := make([]string, len(s.Nodes))
		for i, n := range s.Nodes {
			parts[i] = n.TextContent()
		}
		return strings.Join(parts, BlockSeparator)
	}
	var b strings.Builder
	for _, n := range s.Nodes {
		b.WriteString(n.TextContent())
	}
	return b.String()
}

// Empty reports whether the slice inserts no content at all
func (s Slice) Empty() bool {
	if s.IsBlock() {
		return false
	}
	return s.Text() == ""
}

func (s Slice) validate() error {
	if len(s.Nodes) == 0 {
		return nil
	}
	block := s.Nodes[0].IsBlock()
	for _, n := range s.Nodes[1:] {
		if n.IsBlock() != block {
			return ErrMixedSlice
		}
	}
	return nil
}

// ReplaceStep replaces the range [From, To] with Slice.
//
// An inline slice is spliced into the block at From. A block slice splits the
// surrounding blocks and drops any empty remainder. An empty slice deletes the
// range, merging the blocks at its ends.
type ReplaceStep struct {
	From  int
	To    int
	Slice Slice
}

// Apply returns the document produced by applying the step to d
func (s ReplaceStep) Apply(d *Doc) (*Doc, error) {
	if err := d.checkRange(s.From, s.To); err != nil {
		return nil, err
	}
	if err := s.Slice.validate(); err != nil {
		return nil, err
	}

	bi, startOff := d.resolve(s.From)
	bj, endOff := d.resolve(s.To)
	first, last := d.blocks[bi], d.blocks[bj]

	left := first.cut(0, startOff)
	right := last.cut(endOff, last.Len())

	var replaced []*Node
	if s.Slice.IsBlock() {
		if startOff > 0 {
			replaced = append(replaced, normalizeBlock(first.withContent(left)))
		}
		for _, n := range s.Slice.Nodes {
			replaced = append(replaced, normalizeBlock(n))
		}
		if endOff < last.Len() {
			replaced = append(replaced, normalizeBlock(last.withContent(right)))
		}
	} else {
		// Deleting from the very start of one block into the next keeps the later block's type.
		shell := first
		if startOff == 0 && bi != bj {
			shell = last
		}
		content := make([]*Node, 0, len(left)+len(s.Slice.Nodes)+len(right))
		content = append(content, left...)
		content = append(content, s.Slice.Nodes...)
		content = append(content, right...)
		replaced = append(replaced, normalizeBlock(shell.withContent(content)))
	}

	blocks := make([]*Node, 0, len(d.blocks)-(bj-bi+1)+len(replaced))
	blocks = append(blocks, d.blocks[:bi]...)
	blocks = append(blocks, replaced...)
	blocks = append(blocks, d.blocks[bj+1:]...)
	if len(blocks) == 0 {
		blocks = append(blocks, NewParagraph())
	}
	return &Doc{blocks: blocks}, nil
}

// RangeEmpty reports whether the step replaces an empty range
func (s ReplaceStep) RangeEmpty() bool {
	return s.From == s.To
}
