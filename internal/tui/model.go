package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rzbill/tailview/internal/session"
	"github.com/rzbill/tailview/internal/viewport"
)

var (
	gutterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	autoStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	manualStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// eventMsg carries a session event into the update loop.
type eventMsg session.Event

// errMsg reports a failed control action.
type errMsg struct{ err error }

// Model renders one session.
type Model struct {
	ctx  context.Context
	sess *session.Session
	geo  viewport.Geometry

	width, height int
	win           viewport.Window
	offsetPx      float64
	mode          viewport.Mode
	loading       bool
	err           error
}

// New returns a Model for sess. Control actions run with ctx.
func New(ctx context.Context, sess *session.Session) Model {
	st := sess.State()
	return Model{
		ctx:      ctx,
		sess:     sess,
		geo:      sess.Geometry(),
		win:      sess.Window(),
		offsetPx: st.ScrollOffsetPx,
		mode:     st.Mode,
		loading:  sess.Loading(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

// rows is the number of log lines that fit above the status bar.
func (m Model) rows() int { return max(m.height-1, 0) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		heightPx := float64(m.rows()) * m.geo.ItemHeightPx
		return m, m.call(func(ctx context.Context) error { return m.sess.Resize(ctx, heightPx) })

	case eventMsg:
		m.apply(session.Event(msg))
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) apply(ev session.Event) {
	switch ev.Kind {
	case session.EventWindow:
		m.win = ev.Window
	case session.EventScroll:
		m.offsetPx = ev.ScrollPx
	case session.EventMode:
		m.mode = ev.Mode
	case session.EventLoading:
		m.loading = ev.Loading
	case session.EventError:
		m.err = ev.Err
	case session.EventReset:
		m.offsetPx = 0
		m.err = nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Toggle):
		return m, m.call(func(ctx context.Context) error {
			_, err := m.sess.ToggleAutoScroll(ctx)
			return err
		})
	case key.Matches(msg, keys.Reset):
		return m, m.call(m.sess.ResetAll)
	}

	// Scrolling only moves the view in manual mode; auto keeps the tail pinned.
	if m.mode != viewport.ModeManual {
		return m, nil
	}
	top := m.topLine()
	switch {
	case key.Matches(msg, keys.Up):
		top--
	case key.Matches(msg, keys.Down):
		top++
	case key.Matches(msg, keys.PageUp):
		top -= m.rows()
	case key.Matches(msg, keys.PageDown):
		top += m.rows()
	case key.Matches(msg, keys.Top):
		top = 0
	case key.Matches(msg, keys.Bottom):
		top = m.maxTop()
	default:
		return m, nil
	}
	top = min(max(top, 0), m.maxTop())
	m.offsetPx = float64(top) * m.geo.ItemHeightPx
	offset := m.offsetPx
	return m, m.call(func(ctx context.Context) error { return m.sess.OnScroll(ctx, offset) })
}

// call runs a session action off the update loop.
func (m Model) call(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) topLine() int {
	return int(math.Round(m.offsetPx / m.geo.ItemHeightPx))
}

func (m Model) maxTop() int {
	return max(int(m.win.Count)-m.rows(), 0)
}

// visible returns the rendered rows inside the scroll viewport. A row is
// shown when its TopPx lies in (offset, offset+container].
func visible(win viewport.Window, offsetPx, containerPx float64) []viewport.Row {
	var out []viewport.Row
	for _, r := range win.Rows {
		if r.TopPx > offsetPx && r.TopPx <= offsetPx+containerPx {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) View() string {
	if m.height == 0 {
		return ""
	}
	rows := m.rows()
	shown := visible(m.win, m.offsetPx, float64(rows)*m.geo.ItemHeightPx)

	gutter := len(fmt.Sprint(max(m.win.Count, 1)))
	textWidth := max(m.width-gutter-3, 1)
	line := lipgloss.NewStyle().MaxWidth(textWidth)

	var b strings.Builder
	for _, r := range shown {
		b.WriteString(gutterStyle.Render(fmt.Sprintf("%*d │ ", gutter, r.ID)))
		b.WriteString(line.Render(r.Text))
		b.WriteByte('\n')
	}
	for i := len(shown); i < rows; i++ {
		b.WriteByte('\n')
	}
	b.WriteString(m.status())
	return b.String()
}

func (m Model) status() string {
	mode := autoStyle.Render("AUTO")
	if m.mode == viewport.ModeManual {
		mode = manualStyle.Render("MANUAL")
	}
	parts := []string{mode, fmt.Sprintf("%d lines", m.win.Count)}
	if m.loading {
		parts = append(parts, "streaming…")
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	var help []string
	for _, k := range keys.help() {
		h := k.Help()
		help = append(help, helpKeyStyle.Render(h.Key)+" "+h.Desc)
	}
	left := strings.Join(parts, "  ")
	right := strings.Join(help, "  ")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return statusStyle.MaxWidth(max(m.width, 1)).Render(left + strings.Repeat(" ", gap) + right)
}
