package doc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange is returned for positions outside the document
var ErrOutOfRange = errors.New("position out of range")

// BlockSeparator joins block texts in the plain-text view of a document.
// It occupies exactly one position.
const BlockSeparator = "\n"

// Doc is an immutable rich-text document: an ordered list of blocks.
//
// Positions are rune offsets into Text(), so every block spans [From, To]
// and consecutive blocks are one separator apart.
type Doc struct {
	blocks []*Node
}

// New creates a document from block nodes. An empty document holds one empty paragraph.
func New(blocks ...*Node) *Doc {
	out := make([]*Node, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, normalizeBlock(b))
	}
	if len(out) == 0 {
		out = append(out, NewParagraph())
	}
	return &Doc{blocks: out}
}

// FromText builds a document with one paragraph per line of s
func FromText(s string) *Doc {
	lines := strings.Split(s, BlockSeparator)
	blocks := make([]*Node, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, NewParagraph(NewText(line)))
	}
	return New(blocks...)
}

// Block is a block node together with its index and text range
type Block struct {
	Node  *Node
	Index int
	From  int
	To    int
}

// Blocks returns the document's children in traversal order with their ranges
func (d *Doc) Blocks() []Block {
	out := make([]Block, 0, len(d.blocks))
	pos := 0
	for i, b := range d.blocks {
		end := pos + b.Len()
		out = append(out, Block{Node: b, Index: i, From: pos, To: end})
		pos = end + 1
	}
	return out
}

// ChildCount returns the number of blocks
func (d *Doc) ChildCount() int {
	return len(d.blocks)
}

// Child returns the block at index i
func (d *Doc) Child(i int) *Node {
	return d.blocks[i]
}

// Size is the number of positions after the first one (the length of Text in runes)
func (d *Doc) Size() int {
	size := len(d.blocks) - 1
	for _, b := range d.blocks {
		size += b.Len()
	}
	return size
}

// Text returns the plain-text content with blocks joined by BlockSeparator
func (d *Doc) Text() string {
	parts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		parts[i] = b.TextContent()
	}
	return strings.Join(parts, BlockSeparator)
}

// TextBetween returns the plain text between two positions
func (d *Doc) TextBetween(from, to int) (string, error) {
	if err := d.checkRange(from, to); err != nil {
		return "", err
	}
	runes := []rune(d.Text())
	return string(runes[from:to]), nil
}

// Split divides the plain text at pos. The two halves always concatenate to Text().
// Positions outside the document are clamped.
func (d *Doc) Split(pos int) (before, after string) {
	runes := []rune(d.Text())
	pos = min(max(pos, 0), len(runes))
	return string(runes[:pos]), string(runes[pos:])
}

// BlockAt returns the block containing pos
func (d *Doc) BlockAt(pos int) (Block, error) {
	if pos < 0 || pos > d.Size() {
		return Block{}, fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	idx, _ := d.resolve(pos)
	return d.Blocks()[idx], nil
}

// FindBlock returns the first block, in traversal order, for which match returns true
func (d *Doc) FindBlock(match func(*Node) bool) (Block, bool) {
	for _, b := range d.Blocks() {
		if match(b.Node) {
			return b, true
		}
	}
	return Block{}, false
}

// resolve maps a position to a block index and an offset inside that block.
// A position on a block boundary belongs to the block that ends there.
func (d *Doc) resolve(pos int) (int, int) {
	start := 0
	for i, b := range d.blocks {
		end := start + b.Len()
		if pos <= end {
			return i, pos - start
		}
		start = end + 1
	}
	last := len(d.blocks) - 1
	return last, d.blocks[last].Len()
}

func (d *Doc) checkRange(from, to int) error {
	if from < 0 || to > d.Size() || from > to {
		return fmt.Errorf("%w: [%d, %d] in document of size %d", ErrOutOfRange, from, to, d.Size())
	}
	return nil
}
