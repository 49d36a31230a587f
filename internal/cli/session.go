package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/altwrite/internal/assist"
	"github.com/ppiankov/altwrite/internal/doc"
	"github.com/ppiankov/altwrite/internal/editor"
)

// sessionFlags identify the figure and author of an editing session
type sessionFlags struct {
	figureID    int64
	userID      int64
	study       bool
	figuresFile string
	timeout     time.Duration
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.figureID, "figure", 0, "figure id (required)")
	cmd.Flags().Int64Var(&f.userID, "user", 0, "user id (required)")
	cmd.Flags().BoolVar(&f.study, "study", false, "run as a study session")
	cmd.Flags().StringVar(&f.figuresFile, "figures", "", "JSON file of figures to seed the memory store")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "overall timeout")
	_ = cmd.MarkFlagRequired("figure")
	_ = cmd.MarkFlagRequired("user")
}

// mount builds the app and mounts a session. The returned close function
// flushes pending saves and events.
func (f *sessionFlags) mount(ctx context.Context, cmd *cobra.Command) (*assist.Session, func(), error) {
	a, err := newApp(cmd, f.figuresFile)
	if err != nil {
		return nil, nil, err
	}

	study := f.study || a.cfg.Session.StudySession
	s, err := assist.Mount(ctx, a.deps(), f.figureID, f.userID, study)
	if err != nil {
		return nil, nil, fmt.Errorf("mount session: %w", err)
	}

	closeFn := func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Close(cctx); err != nil {
			a.logger.Warn("session closed with pending work", "error", err)
		}
	}
	return s, closeFn, nil
}

// provisionalText returns the text of the provisional span with id
func provisionalText(s *assist.Session, id string) string {
	for _, b := range s.Editor.Provisionals() {
		if b.Node.ID == id {
			return b.Node.TextContent()
		}
	}
	return ""
}

// acceptSpan accepts the provisional span with id
func acceptSpan(s *assist.Session, id string) (bool, error) {
	return resolveSpan(s, id, s.Accept)
}

// rejectSpan rejects the provisional span with id
func rejectSpan(s *assist.Session, id string) (bool, error) {
	return resolveSpan(s, id, s.Reject)
}

func resolveSpan(s *assist.Session, id string, resolve func(*editor.Proposal) (bool, error)) (bool, error) {
	var target *doc.Block
	for _, b := range s.Editor.Provisionals() {
		if id == "" || b.Node.ID == id {
			target = &b
			break
		}
	}
	if target == nil {
		return false, nil
	}
	p, ok := s.Activate(target.From)
	if !ok {
		return false, nil
	}
	return resolve(p)
}
