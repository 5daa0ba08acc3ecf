package tui

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zachkp/portfolio/internal/reveal"
)

type RunOptions struct {
	Title  string
	Blocks []reveal.Block
	// Reveal carries pacing, closing message, initial audio and logger.
	Reveal reveal.Options
	// Bell receives the terminal bell; nil disables sound entirely.
	Bell io.Writer

	ProgramOptions []tea.ProgramOption
}

// Run plays the intro in the terminal until it finishes, is skipped or the
// user quits. It reports whether playback was cut short.
func Run(ctx context.Context, opts RunOptions) (skipped bool, err error) {
	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }

	revealOpts := opts.Reveal
	revealOpts.Observer = Observer(send)
	if opts.Bell != nil {
		revealOpts.Sounder = BellSounder{W: opts.Bell}
	}
	ctrl := reveal.New(revealOpts)

	var started atomic.Bool
	start := StartCmd(ctx, ctrl, opts.Blocks, send)
	startOnce := func() tea.Msg {
		msg := start()
		if msg == nil {
			started.Store(true)
		}
		return msg
	}

	model := NewModel(ctrl, opts.Blocks, opts.Title, revealOpts.AudioEnabled, startOnce)
	programOpts := append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.ProgramOptions...)
	p = tea.NewProgram(model, programOpts...)

	final, runErr := p.Run()
	if started.Load() {
		ctrl.Skip()
		<-ctrl.Done()
	}
	if m, ok := final.(Model); ok && m.Err() != nil {
		return false, fmt.Errorf("start intro: %w", m.Err())
	}
	if runErr != nil {
		return ctrl.Skipped(), fmt.Errorf("run intro: %w", runErr)
	}
	return ctrl.Skipped(), nil
}
