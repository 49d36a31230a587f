// Package eventlog turns editor transactions into interaction events and
// forwards each one to the store as soon as it is classified.
package eventlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/altwrite/internal/editor"
	"github.com/ppiankov/altwrite/internal/model"
)

// Appender persists events
type Appender interface {
	AppendEvent(ctx context.Context, e model.Event) error
}

// Source publishes committed transactions
type Source interface {
	Subscribe(fn editor.Listener) (unsubscribe func())
}

// Tags identify who and what an event is about
type Tags struct {
	UserID        int64
	FigureID      int64
	DescriptionID int64
	Condition     model.Condition
	StudySession  bool
}

// Entry is a classified event before it is tagged
type Entry struct {
	Type model.EventType
	Data map[string]any
}

// Logger classifies transactions and forwards events
type Logger struct {
	store  Appender
	base   context.Context
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	tags   Tags
	detach func()

	wg sync.WaitGroup
}

// Option configures a Logger
type Option func(*Logger)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(lg *Logger) { lg.logger = l }
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) Option {
	return func(lg *Logger) { lg.now = now }
}

// New creates a Logger. Sends run under ctx, detached from any caller.
func New(ctx context.Context, store Appender, tags Tags, opts ...Option) *Logger {
	l := &Logger{
		store:  store,
		base:   ctx,
		logger: slog.Default(),
		now:    time.Now,
		tags:   tags,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Attach subscribes to src, dropping any earlier subscription first so every
// transaction is logged once.
func (l *Logger) Attach(src Source) {
	l.mu.Lock()
	prev := l.detach
	l.detach = nil
	l.mu.Unlock()
	if prev != nil {
		prev()
	}

	unsubscribe := src.Subscribe(l.observe)

	l.mu.Lock()
	l.detach = unsubscribe
	l.mu.Unlock()
}

// Detach drops the current subscription, if any
func (l *Logger) Detach() {
	l.mu.Lock()
	prev := l.detach
	l.detach = nil
	l.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Tags returns the current tags
func (l *Logger) Tags() Tags {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tags
}

// SetDescriptionID tags later events with the description once it exists
func (l *Logger) SetDescriptionID(id int64) {
	l.mu.Lock()
	l.tags.DescriptionID = id
	l.mu.Unlock()
}

// SetCondition tags later events with a new condition
func (l *Logger) SetCondition(c model.Condition) {
	l.mu.Lock()
	l.tags.Condition = c
	l.mu.Unlock()
}

// Classify maps a transaction to events. Programmatic transactions yield none.
// A paste with content yields a single paste_action carrying the first
// inserted node's text; multi-node pastes are truncated to that node.
func Classify(tr *editor.Transaction) []Entry {
	if tr.IsProgrammatic() || !tr.DocChanged() {
		return nil
	}

	if tr.IsPaste() {
		for _, step := range tr.Steps() {
			if step.Slice.Empty() {
				continue
			}
			return []Entry{{
				Type: model.EventPaste,
				Data: map[string]any{"text": step.Slice.Nodes[0].TextContent()},
			}}
		}
	}

	entries := make([]Entry, 0, len(tr.Steps()))
	for _, step := range tr.Steps() {
		key := model.KeyInput
		if !step.RangeEmpty() && step.Slice.Empty() {
			key = model.KeyDelete
		}
		entries = append(entries, Entry{
			Type: model.EventKeyPress,
			Data: map[string]any{"key": key},
		})
	}
	return entries
}

func (l *Logger) observe(tr *editor.Transaction) {
	for _, entry := range Classify(tr) {
		l.Log(entry.Type, entry.Data)
	}
}

// Log tags an event and sends it on its own goroutine. Events without a user
// and figure are dropped.
func (l *Logger) Log(eventType model.EventType, data map[string]any) {
	tags := l.Tags()
	if tags.UserID == 0 || tags.FigureID == 0 {
		l.logger.Debug("event skipped without user or figure", "event_type", eventType)
		return
	}
	if data == nil {
		data = map[string]any{}
	}

	ev := model.Event{
		Type:          eventType,
		Data:          data,
		Time:          l.now().UTC(),
		UserID:        tags.UserID,
		FigureID:      tags.FigureID,
		DescriptionID: tags.DescriptionID,
		Condition:     tags.Condition,
		StudySession:  tags.StudySession,
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.store.AppendEvent(l.base, ev); err != nil {
			l.logger.Warn("event not recorded", "event_type", ev.Type, "error", err)
		}
	}()
}

// Flush waits for in-flight sends or until ctx is done
func (l *Logger) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
