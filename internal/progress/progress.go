package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Update is a progress report from the running work.
type Update struct {
	Page    int
	Found   int
	Matched int
}

// ErrInterrupted is returned when the user pressed ctrl+c during the work.
var ErrInterrupted = errors.New("interrupted")

type updateMsg Update

type doneMsg struct{ err error }

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	countStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type model struct {
	title       string
	spinner     spinner.Model
	last        Update
	cancel      context.CancelFunc
	interrupted bool
	done        bool
	err         error
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.last = Update(msg)
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.interrupted {
			// Let the work wind down so it can record its outcome.
			m.interrupted = true
			m.cancel()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}
	status := fmt.Sprintf("page %s · %s found · %s matched",
		countStyle.Render(fmt.Sprint(m.last.Page)),
		countStyle.Render(fmt.Sprint(m.last.Found)),
		countStyle.Render(fmt.Sprint(m.last.Matched)),
	)
	if m.interrupted {
		status += dimStyle.Render("  (stopping after this page)")
	}
	return fmt.Sprintf("%s %s  %s\n", m.spinner.View(), m.title, status)
}

// Run shows a spinner with live counts while work runs. It renders inline
// (no alt screen) on out. When out is not a terminal, work runs without any
// display. ctrl+c cancels the context handed to work and waits for it.
func Run(ctx context.Context, out io.Writer, title string, work func(ctx context.Context, report func(Update)) error) error {
	if !IsTerminal(out) {
		return work(ctx, func(Update) {})
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := model{title: title, spinner: sp, cancel: cancel}
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(parent))

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(u Update) { p.Send(updateMsg(u)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	result, runErr := p.Run()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		cancel()
	}
	err := <-errc

	if final, ok := result.(model); ok && final.interrupted && err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return err
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
