package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rzbill/tailview/internal/session"
)

// Run shows sess in the terminal until the user quits or ctx is cancelled.
// The session must already be started.
func Run(ctx context.Context, sess *session.Session, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, sess), opts...)
	unsubscribe := sess.Subscribe(func(ev session.Event) { p.Send(eventMsg(ev)) })
	defer unsubscribe()
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
