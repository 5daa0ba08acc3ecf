// Package tui renders the scripted intro in a terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zachkp/portfolio/internal/reveal"
)

// Controller is the part of reveal.Controller the model drives.
type Controller interface {
	Start(ctx context.Context, blocks []reveal.Block, onComplete func()) error
	Skip()
	SetAudioEnabled(bool)
}

type frameMsg reveal.State

type doneMsg struct{}

type startErrMsg struct{ err error }

type quitMsg struct{}

// lingerAfterDone keeps the closing message on screen briefly.
const lingerAfterDone = 1200 * time.Millisecond

type Model struct {
	ctrl   Controller
	blocks []reveal.Block
	title  string
	start  tea.Cmd

	state reveal.State
	audio bool
	done  bool
	err   error
	width int
}

// NewModel builds the intro model. start is run from Init, typically
// StartCmd.
func NewModel(ctrl Controller, blocks []reveal.Block, title string, audio bool, start tea.Cmd) Model {
	return Model{
		start:  start,
		ctrl:   ctrl,
		blocks: blocks,
		title:  title,
		audio:  audio,
		state:  reveal.State{AudioEnabled: audio},
	}
}

// Err reports a failure to start playback.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return m.start
}

// StartCmd starts playback once the program loop is running. Frames and
// completion arrive through send, which is usually tea.Program.Send.
func StartCmd(ctx context.Context, ctrl Controller, blocks []reveal.Block, send func(tea.Msg)) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Start(ctx, blocks, func() { send(doneMsg{}) }); err != nil {
			return startErrMsg{err: err}
		}
		return nil
	}
}

// Observer forwards controller frames into the program.
func Observer(send func(tea.Msg)) func(reveal.State) {
	return func(s reveal.State) { send(frameMsg(s)) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case frameMsg:
		m.state = reveal.State(msg)
	case doneMsg:
		m.done = true
		return m, tea.Tick(lingerAfterDone, func(time.Time) tea.Msg { return quitMsg{} })
	case quitMsg:
		return m, tea.Quit
	case startErrMsg:
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "s", "esc", "enter", " ":
			m.ctrl.Skip()
		case "m":
			m.audio = !m.audio
			m.ctrl.SetAudioEnabled(m.audio)
		case "q", "ctrl+c":
			m.ctrl.Skip()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleBar.Render(m.title))
	b.WriteString("\n\n")

	heading, body, hasBody := strings.Cut(m.state.Text, "\n")
	b.WriteString(Prompt.Render(heading))
	if hasBody {
		b.WriteString("\n")
		b.WriteString(Body.Render(body))
	}
	if m.state.Revealing() {
		b.WriteString(Cursor.Render("█"))
	}

	b.WriteString("\n\n")
	audio := "off"
	if m.audio {
		audio = "on"
	}
	progress := fmt.Sprintf("%d/%d", min(m.state.Index+1, len(m.blocks)), len(m.blocks))
	if m.done {
		progress = "done"
	}
	b.WriteString(Muted.Render(fmt.Sprintf("%s  •  s skip  •  m audio %s  •  q quit", progress, audio)))

	style := Window
	if m.width > 4 {
		style = style.Width(min(m.width-4, 88))
	}
	return style.Render(b.String())
}

// BellSounder rings the terminal bell on block completion. Keystrokes are
// silent; a terminal has one bell.
type BellSounder struct {
	W io.Writer
}

func (s BellSounder) Play(t reveal.Tone) error {
	if t.Kind != reveal.ToneChime {
		return nil
	}
	if _, err := io.WriteString(s.W, "\a"); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	return nil
}
