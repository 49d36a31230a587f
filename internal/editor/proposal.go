package editor

import (
	"errors"
	"sync"

	"github.com/ppiankov/altwrite/internal/doc"
)

// State is the resolution state of a proposal
type State int

const (
	Proposed State = iota
	Accepted
	Rejected
	// Dismissed means the proposal was resolved but its span could no longer be found
	Dismissed
)

func (s State) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Dismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// Rect is a screen rectangle in host units
type Rect struct {
	X, Y, Width, Height float64
}

// Layout measures where a document range is rendered
type Layout interface {
	Rect(from, to int) Rect
}

// MatchFunc reports whether block n is the span captured by p
type MatchFunc func(n *doc.Node, p *Proposal) bool

// MatchContent matches the first provisional block whose text equals the captured text.
// Two pending spans with identical text are indistinguishable: the earlier one
// in the document always wins.
func MatchContent(n *doc.Node, p *Proposal) bool {
	return n.Type == doc.TypeProvisional && n.TextContent() == p.Text
}

// MatchIdentity matches the provisional block carrying the captured id whose text
// is still unchanged. Blocks without an id fall back to MatchContent.
func MatchIdentity(n *doc.Node, p *Proposal) bool {
	if n.ID == "" || p.ID == "" {
		return MatchContent(n, p)
	}
	return n.Type == doc.TypeProvisional && n.ID == p.ID && n.TextContent() == p.Text
}

// Proposal is an activated provisional span awaiting the user's decision
type Proposal struct {
	ID     string
	Text   string
	From   int // Range at activation time; the span may move afterwards
	To     int
	Anchor Rect

	mu    sync.Mutex
	state State
}

// State returns the current state
func (p *Proposal) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Closed reports whether the proposal has left the Proposed state
func (p *Proposal) Closed() bool {
	return p.State() != Proposed
}

// Activate captures the provisional span at pos. It returns false when pos is
// not inside a provisional block.
func (e *Editor) Activate(pos int) (*Proposal, bool) {
	b, err := e.Doc().BlockAt(pos)
	if err != nil || b.Node.Type != doc.TypeProvisional {
		return nil, false
	}

	p := &Proposal{
		ID:   b.Node.ID,
		Text: b.Node.TextContent(),
		From: b.From,
		To:   b.To,
	}
	if e.layout != nil {
		p.Anchor = e.layout.Rect(b.From, b.To)
	}
	return p, true
}

var errNoMatch = errors.New("provisional span not found")

// Accept replaces the proposal's span with permanent text carrying the
// generated mark. It reports whether the document changed; a span that can no
// longer be found is a silent no-op.
func (e *Editor) Accept(p *Proposal) (bool, error) {
	return e.resolve(p, Accepted, func(tr *Transaction, b doc.Block) error {
		to := b.To
		// An empty trailing paragraph only held the cursor while the span was pending
		blocks := tr.Doc().Blocks()
		if next := b.Index + 1; next == len(blocks)-1 && blocks[next].Node.Type == doc.TypeParagraph && blocks[next].Node.Len() == 0 {
			to++
		}
		block := doc.NewParagraph(doc.NewText(p.Text, doc.MarkGenerated))
		if err := tr.Replace(b.From, to, doc.BlockSlice(block)); err != nil {
			return err
		}
		tr.SetSelection(Cursor(b.From + len([]rune(p.Text))))
		tr.SetMeta(MetaOrigin, OriginAccept)
		return nil
	})
}

// Reject deletes the proposal's span together with the separator that held it
// in place. A span that split a paragraph takes both separators with it so the
// halves join again. Everything else in the document is left untouched.
func (e *Editor) Reject(p *Proposal) (bool, error) {
	return e.resolve(p, Rejected, func(tr *Transaction, b doc.Block) error {
		from, to := b.From, b.To
		switch {
		case b.Node.Split && joinable(tr.Doc(), b.Index):
			from--
			to++
		case b.Index > 0:
			from--
		case tr.Doc().ChildCount() > 1:
			to++
		}
		if err := tr.Delete(from, to); err != nil {
			return err
		}
		tr.SetSelection(Cursor(from))
		tr.SetMeta(MetaOrigin, OriginReject)
		return nil
	})
}

// joinable reports whether the blocks on both sides of index i are paragraphs
func joinable(d *doc.Doc, i int) bool {
	return i > 0 && i+1 < d.ChildCount() &&
		d.Child(i-1).Type == doc.TypeParagraph && d.Child(i+1).Type == doc.TypeParagraph
}

func (e *Editor) resolve(p *Proposal, outcome State, apply func(*Transaction, doc.Block) error) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Proposed {
		return false, nil
	}

	_, err := e.Update(func(tr *Transaction) error {
		b, ok := tr.Doc().FindBlock(func(n *doc.Node) bool { return e.match(n, p) })
		if !ok {
			return errNoMatch
		}
		if err := apply(tr, b); err != nil {
			return err
		}
		tr.SetMeta(MetaProgrammatic, true)
		return nil
	})
	switch {
	case errors.Is(err, errNoMatch):
		p.state = Dismissed
		e.logger.Debug("provisional span no longer present", "id", p.ID, "outcome", outcome)
		return false, nil
	case err != nil:
		return false, err
	}

	p.state = outcome
	return true, nil
}
