package assist

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ppiankov/altwrite/internal/doc"
	"github.com/ppiankov/altwrite/internal/editor"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/store"
)

type subscriber interface {
	Subscribe(fn editor.Listener) (unsubscribe func())
}

type snapshot struct {
	text string
	html string
}

// DescriptionSync keeps the persisted description in step with the editor.
// The first change with text creates the record; later changes update it.
// Saves run one at a time on a background goroutine and only the latest
// pending snapshot is sent.
type DescriptionSync struct {
	store    store.Store
	base     context.Context
	logger   *slog.Logger
	template func() model.Description
	onCreate func(model.Description)

	mu      sync.Mutex
	current *model.Description
	pending *snapshot
	running bool
	idle    chan struct{}
	detach  func()

	saveMu sync.Mutex
}

// NewDescriptionSync starts from existing, which may be nil. template supplies
// the relations and tags written with every save; onCreate may be nil.
func NewDescriptionSync(ctx context.Context, st store.Store, existing *model.Description, template func() model.Description, onCreate func(model.Description), logger *slog.Logger) *DescriptionSync {
	if logger == nil {
		logger = slog.Default()
	}
	var current *model.Description
	if existing != nil {
		d := *existing
		current = &d
	}
	return &DescriptionSync{
		store:    st,
		base:     ctx,
		logger:   logger,
		template: template,
		onCreate: onCreate,
		current:  current,
	}
}

// Attach subscribes to src, replacing any earlier subscription
func (s *DescriptionSync) Attach(src subscriber) {
	s.Detach()
	unsubscribe := src.Subscribe(s.observe)
	s.mu.Lock()
	s.detach = unsubscribe
	s.mu.Unlock()
}

// Detach stops observing the editor. Pending saves still complete.
func (s *DescriptionSync) Detach() {
	s.mu.Lock()
	prev := s.detach
	s.detach = nil
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Current returns a copy of the persisted description, or nil before creation
func (s *DescriptionSync) Current() *model.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	d := *s.current
	return &d
}

// ID returns the description id, or 0 before creation
func (s *DescriptionSync) ID() int64 {
	if d := s.Current(); d != nil {
		return d.ID
	}
	return 0
}

func (s *DescriptionSync) observe(tr *editor.Transaction) {
	if !tr.DocChanged() {
		return
	}
	s.schedule(snapshot{text: tr.Doc().Text(), html: doc.MarshalHTML(tr.Doc())})
}

func (s *DescriptionSync) schedule(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &snap
	if s.running {
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	go s.run(s.idle)
}

func (s *DescriptionSync) run(idle chan struct{}) {
	for {
		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		if snap == nil {
			s.running = false
			close(idle)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if _, err := s.save(s.base, *snap); err != nil {
			s.logger.Warn("description not saved", "error", err)
		}
	}
}

// Flush waits until no save is pending or running, or until ctx is done
func (s *DescriptionSync) Flush(ctx context.Context) error {
	s.mu.Lock()
	running, idle := s.running, s.idle
	s.mu.Unlock()
	if !running {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit waits for queued saves and then writes text and html
func (s *DescriptionSync) Submit(ctx context.Context, text, html string) (*model.Description, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return s.save(ctx, snapshot{text: text, html: html})
}

func (s *DescriptionSync) save(ctx context.Context, snap snapshot) (*model.Description, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	d := s.template()
	d.CurrentString = snap.text
	d.CurrentHTML = snap.html
	if d.UserID == 0 || d.FigureID == 0 {
		s.logger.Debug("description sync skipped", "reason", ErrMissingContext)
		return nil, ErrMissingContext
	}

	current := s.Current()
	created := current == nil || !current.Initialized()
	if created {
		if strings.TrimSpace(snap.text) == "" {
			return nil, nil
		}
	} else {
		d.ID = current.ID
		d.SummarizedVersion = current.SummarizedVersion
	}

	saved, err := s.store.UpsertDescription(ctx, d)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = saved
	s.mu.Unlock()

	if created {
		s.logger.Debug("description created", "description_id", saved.ID, "figure_id", saved.FigureID)
		if s.onCreate != nil {
			s.onCreate(*saved)
		}
	}
	out := *saved
	return &out, nil
}
