package editor

import (
	"fmt"

	"github.com/ppiankov/altwrite/internal/doc"
)

// Transaction metadata keys
const (
	MetaPaste        = "paste"        // bool: content came from the clipboard
	MetaProgrammatic = "programmatic" // bool: the engine, not the user, made the change
	MetaOrigin       = "origin"       // string: which flow produced the change
)

// Origins recorded under MetaOrigin
const (
	OriginInput      = "input"
	OriginLoad       = "load"
	OriginCompletion = "completion"
	OriginAccept     = "accept"
	OriginReject     = "reject"
)

// Selection is an anchor/head pair of positions. Head is the cursor.
type Selection struct {
	Anchor int
	Head   int
}

// Cursor returns a collapsed selection at pos
func Cursor(pos int) Selection {
	return Selection{Anchor: pos, Head: pos}
}

// From returns the lower bound of the selection
func (s Selection) From() int { return min(s.Anchor, s.Head) }

// To returns the upper bound of the selection
func (s Selection) To() int { return max(s.Anchor, s.Head) }

// Empty reports whether the selection is collapsed
func (s Selection) Empty() bool { return s.Anchor == s.Head }

func (s Selection) clamp(size int) Selection {
	return Selection{
		Anchor: min(max(s.Anchor, 0), size),
		Head:   min(max(s.Head, 0), size),
	}
}

// Transaction accumulates steps against a snapshot of the document
type Transaction struct {
	before    *doc.Doc
	doc       *doc.Doc
	selection Selection
	selSet    bool
	steps     []doc.ReplaceStep
	meta      map[string]any
}

func newTransaction(d *doc.Doc, sel Selection) *Transaction {
	return &Transaction{before: d, doc: d, selection: sel, meta: make(map[string]any)}
}

// Replace replaces [from, to] with slice in the transaction's current document
func (tr *Transaction) Replace(from, to int, slice doc.Slice) error {
	step := doc.ReplaceStep{From: from, To: to, Slice: slice}
	next, err := step.Apply(tr.doc)
	if err != nil {
		return fmt.Errorf("replace [%d, %d]: %w", from, to, err)
	}
	tr.selection = mapSelection(tr.selection, step, tr.doc, next)
	tr.doc = next
	tr.steps = append(tr.steps, step)
	return nil
}

// InsertText inserts plain text at pos
func (tr *Transaction) InsertText(pos int, text string, marks ...doc.MarkType) error {
	return tr.Replace(pos, pos, doc.InlineSlice(text, marks...))
}

// Delete removes the range [from, to]
func (tr *Transaction) Delete(from, to int) error {
	return tr.Replace(from, to, doc.Slice{})
}

// SetSelection overrides the selection the editor adopts after dispatch
func (tr *Transaction) SetSelection(sel Selection) *Transaction {
	tr.selection = sel
	tr.selSet = true
	return tr
}

// SetMeta attaches metadata to the transaction
func (tr *Transaction) SetMeta(key string, value any) *Transaction {
	tr.meta[key] = value
	return tr
}

// Meta returns the metadata stored under key
func (tr *Transaction) Meta(key string) any {
	return tr.meta[key]
}

// IsPaste reports whether the transaction was flagged as a paste
func (tr *Transaction) IsPaste() bool {
	v, _ := tr.meta[MetaPaste].(bool)
	return v
}

// IsProgrammatic reports whether the engine produced the transaction
func (tr *Transaction) IsProgrammatic() bool {
	v, _ := tr.meta[MetaProgrammatic].(bool)
	return v
}

// Origin returns the flow recorded under MetaOrigin
func (tr *Transaction) Origin() string {
	v, _ := tr.meta[MetaOrigin].(string)
	return v
}

// Steps returns the atomic edits in application order
func (tr *Transaction) Steps() []doc.ReplaceStep {
	return tr.steps
}

// Before returns the document the transaction started from
func (tr *Transaction) Before() *doc.Doc { return tr.before }

// Doc returns the document with every step applied
func (tr *Transaction) Doc() *doc.Doc { return tr.doc }

// Selection returns the selection after the transaction
func (tr *Transaction) Selection() Selection { return tr.selection }

// DocChanged reports whether any step was applied
func (tr *Transaction) DocChanged() bool {
	return len(tr.steps) > 0
}

// mapSelection moves positions past a step's range by the change in document size.
// Positions inside the replaced range collapse onto its start.
func mapSelection(sel Selection, step doc.ReplaceStep, before, after *doc.Doc) Selection {
	delta := after.Size() - before.Size()
	mapPos := func(pos int) int {
		switch {
		case pos < step.From:
			return pos
		case pos > step.To:
			return pos + delta
		case pos == step.From && step.From == step.To:
			return pos
		default:
			return step.From
		}
	}
	return Selection{Anchor: mapPos(sel.Anchor), Head: mapPos(sel.Head)}.clamp(after.Size())
}
