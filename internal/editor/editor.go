package editor

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ppiankov/altwrite/internal/doc"
)

var (
	// ErrStaleTransaction is returned when a transaction was built against an older document
	ErrStaleTransaction = errors.New("transaction is based on an outdated document")

	// ErrProvisionalPending is returned when a new provisional span would join an unresolved one
	ErrProvisionalPending = errors.New("a provisional suggestion is already pending")

	// ErrEmptySuggestion is returned when asked to insert an empty provisional span
	ErrEmptySuggestion = errors.New("suggestion text is empty")
)

// Listener is notified after every dispatched transaction that changed the document
type Listener func(tr *Transaction)

// Editor is the controller over a live document.
//
// All mutation goes through Dispatch or Update, which are serialized; listeners
// run in dispatch order after the new state is visible. Listeners must not
// dispatch themselves.
type Editor struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	doc       *doc.Doc
	selection Selection

	subMu     sync.Mutex
	listeners []subscription
	nextSubID uint64

	layout        Layout
	match         MatchFunc
	singlePending bool
	newID         func() string
	logger        *slog.Logger
}

type subscription struct {
	id uint64
	fn Listener
}

// Option configures an Editor
type Option func(*Editor)

// WithLayout supplies the collaborator that measures anchor rectangles
func WithLayout(l Layout) Option {
	return func(e *Editor) { e.layout = l }
}

// WithMatcher selects how accept/reject find the activated provisional span
func WithMatcher(m MatchFunc) Option {
	return func(e *Editor) { e.match = m }
}

// AllowMultiplePending lets several provisional spans coexist
func AllowMultiplePending(allow bool) Option {
	return func(e *Editor) { e.singlePending = !allow }
}

// WithIDGenerator overrides how provisional span ids are minted
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) { e.newID = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// New creates an editor over d (an empty document when nil)
func New(d *doc.Doc, opts ...Option) *Editor {
	if d == nil {
		d = doc.New()
	}
	e := &Editor{
		doc:           d,
		selection:     Cursor(d.Size()),
		match:         MatchIdentity,
		singlePending: true,
		newID:         uuid.NewString,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Doc returns the current document
func (e *Editor) Doc() *doc.Doc {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

// Selection returns the current selection
func (e *Editor) Selection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selection
}

// Cursor returns the head of the selection
func (e *Editor) Cursor() int {
	return e.Selection().Head
}

// SetSelection moves the selection, clamped to the document
func (e *Editor) SetSelection(anchor, head int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = Selection{Anchor: anchor, Head: head}.clamp(e.doc.Size())
}

// Text returns the plain text of the document
func (e *Editor) Text() string {
	return e.Doc().Text()
}

// HTML returns the serialized rich content
func (e *Editor) HTML() string {
	return doc.MarshalHTML(e.Doc())
}

// Split returns the text before and after the cursor
func (e *Editor) Split() (before, after string) {
	e.mu.RLock()
	d, pos := e.doc, e.selection.Head
	e.mu.RUnlock()
	return d.Split(pos)
}

// Tr starts a transaction against the current state
func (e *Editor) Tr() *Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return newTransaction(e.doc, e.selection)
}

// Dispatch commits a transaction built with Tr
func (e *Editor) Dispatch(tr *Transaction) error {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	return e.commit(tr)
}

// Update builds and commits a transaction atomically with respect to other dispatches.
// Nothing is committed when fn returns an error.
func (e *Editor) Update(fn func(tr *Transaction) error) (*Transaction, error) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	tr := e.Tr()
	if err := fn(tr); err != nil {
		return nil, err
	}
	if err := e.commit(tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// commit applies tr; callers hold dispatchMu
func (e *Editor) commit(tr *Transaction) error {
	e.mu.Lock()
	if tr.before != e.doc {
		e.mu.Unlock()
		return ErrStaleTransaction
	}
	e.doc = tr.doc
	if tr.selSet || tr.DocChanged() {
		e.selection = tr.selection.clamp(tr.doc.Size())
	}
	e.mu.Unlock()

	if !tr.DocChanged() {
		return nil
	}

	e.subMu.Lock()
	listeners := make([]Listener, len(e.listeners))
	for i, s := range e.listeners {
		listeners[i] = s.fn
	}
	e.subMu.Unlock()

	for _, fn := range listeners {
		fn(tr)
	}
	return nil
}

// Subscribe registers fn for document changes and returns its detach function
func (e *Editor) Subscribe(fn Listener) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.nextSubID++
	id := e.nextSubID
	e.listeners = append(e.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			for i, s := range e.listeners {
				if s.id == id {
					e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Listeners returns the number of active subscriptions
func (e *Editor) Listeners() int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return len(e.listeners)
}

// Type replaces the selection with text, as a keypress would
func (e *Editor) Type(text string) error {
	_, err := e.Update(func(tr *Transaction) error {
		sel := tr.Selection()
		if err := tr.Replace(sel.From(), sel.To(), doc.InlineSlice(text)); err != nil {
			return err
		}
		tr.SetSelection(Cursor(sel.From() + len([]rune(text))))
		tr.SetMeta(MetaOrigin, OriginInput)
		return nil
	})
	return err
}

// Delete removes the selection, or the character before the cursor when it is collapsed
func (e *Editor) Delete() error {
	_, err := e.Update(func(tr *Transaction) error {
		sel := tr.Selection()
		from, to := sel.From(), sel.To()
		if sel.Empty() {
			if from == 0 {
				return nil
			}
			from--
		}
		if err := tr.Delete(from, to); err != nil {
			return err
		}
		tr.SetSelection(Cursor(from))
		tr.SetMeta(MetaOrigin, OriginInput)
		return nil
	})
	return err
}

// Paste inserts clipboard text over the selection. Multi-line text becomes
// one paragraph per line.
func (e *Editor) Paste(text string) error {
	_, err := e.Update(func(tr *Transaction) error {
		sel := tr.Selection()
		slice := doc.InlineSlice(text)
		if strings.Contains(text, doc.BlockSeparator) {
			lines := strings.Split(text, doc.BlockSeparator)
			blocks := make([]*doc.Node, len(lines))
			for i, line := range lines {
				blocks[i] = doc.NewParagraph(doc.NewText(line))
			}
			slice = doc.BlockSlice(blocks...)
		}
		if err := tr.Replace(sel.From(), sel.To(), slice); err != nil {
			return err
		}
		tr.SetMeta(MetaPaste, true)
		tr.SetMeta(MetaOrigin, OriginInput)
		return nil
	})
	return err
}

// Load replaces the whole document, e.g. when restoring a saved description.
// Provisional blocks without an id are given one.
func (e *Editor) Load(d *doc.Doc) error {
	blocks := make([]*doc.Node, d.ChildCount())
	for i := range blocks {
		b := d.Child(i)
		if b.Type == doc.TypeProvisional && b.ID == "" {
			b = &doc.Node{Type: b.Type, ID: e.newID(), Content: b.Content}
		}
		blocks[i] = b
	}

	_, err := e.Update(func(tr *Transaction) error {
		if err := tr.Replace(0, tr.Doc().Size(), doc.BlockSlice(blocks...)); err != nil {
			return err
		}
		tr.SetSelection(Cursor(tr.Doc().Size()))
		tr.SetMeta(MetaProgrammatic, true)
		tr.SetMeta(MetaOrigin, OriginLoad)
		return nil
	})
	return err
}

// Provisionals returns every provisional block in traversal order
func (e *Editor) Provisionals() []doc.Block {
	var out []doc.Block
	for _, b := range e.Doc().Blocks() {
		if b.Node.Type == doc.TypeProvisional {
			out = append(out, b)
		}
	}
	return out
}

// InsertProvisional inserts text as a provisional block at pos (clamped to the
// current document) and returns the span's id. The transaction is marked
// programmatic so telemetry never counts it as typing.
func (e *Editor) InsertProvisional(pos int, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySuggestion
	}

	id := e.newID()
	_, err := e.Update(func(tr *Transaction) error {
		d := tr.Doc()
		if e.singlePending {
			if _, pending := d.FindBlock(isProvisional); pending {
				return ErrProvisionalPending
			}
		}
		pos = min(max(pos, 0), d.Size())
		block := doc.NewProvisional(id, text)
		if host, err := d.BlockAt(pos); err == nil && host.Node.Type == doc.TypeParagraph {
			block.Split = pos > host.From && pos < host.To
		}
		if err := tr.Replace(pos, pos, doc.BlockSlice(block)); err != nil {
			return err
		}
		if err := moveCursorOffSpan(tr, id); err != nil {
			return err
		}
		tr.SetMeta(MetaProgrammatic, true)
		tr.SetMeta(MetaOrigin, OriginCompletion)
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Debug("provisional span inserted", "id", id, "pos", pos, "chars", len([]rune(text)))
	return id, nil
}

// moveCursorOffSpan keeps typing out of a freshly inserted span. A cursor that
// landed on the span moves to the start of the authored block after it, or the
// end of the authored block before it. With neither, an empty paragraph is
// appended after the span to hold the cursor.
func moveCursorOffSpan(tr *Transaction, id string) error {
	d := tr.Doc()
	span, ok := d.FindBlock(func(n *doc.Node) bool { return isProvisional(n) && n.ID == id })
	if !ok {
		return nil
	}
	if head := tr.Selection().Head; head < span.From || head > span.To {
		return nil
	}

	blocks := d.Blocks()
	switch {
	case span.Index+1 < len(blocks) && !isProvisional(blocks[span.Index+1].Node):
		tr.SetSelection(Cursor(span.To + 1))
	case span.Index > 0 && !isProvisional(blocks[span.Index-1].Node):
		tr.SetSelection(Cursor(span.From - 1))
	default:
		if err := tr.Replace(span.To, span.To, doc.BlockSlice(doc.NewParagraph())); err != nil {
			return err
		}
		tr.SetSelection(Cursor(span.To + 1))
	}
	return nil
}

func isProvisional(n *doc.Node) bool {
	return n.Type == doc.TypeProvisional
}
