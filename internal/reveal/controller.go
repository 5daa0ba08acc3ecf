// Package reveal plays the terminal-style intro: an ordered script of blocks
// typed out one rune at a time, with optional sound cues and a skip escape
// hatch.
//
// All state mutation happens on a single goroutine per playback. Skip and
// context cancellation flip a finished latch that the loop checks before
// every step, so the loop stops at the next step boundary and the completion
// callback runs exactly once.
package reveal

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHeadingPause   = 400 * time.Millisecond
	DefaultBlockPause     = 700 * time.Millisecond
	DefaultClosingMessage = "> ready. welcome aboard."
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	HeadingPause   time.Duration
	BlockPause     time.Duration
	ClosingMessage string

	// AudioEnabled is the initial audio toggle.
	AudioEnabled bool
	Sounder      Sounder

	// Observer receives a snapshot after every state change, always from the
	// playback goroutine. It may call back into the controller.
	Observer func(State)

	Sleep  SleepFunc
	Logger logrus.FieldLogger
}

// Controller drives one playback at a time.
type Controller struct {
	opts Options

	mu       sync.Mutex
	state    State
	gen      uint64
	total    int
	running  bool
	finished bool
	skipped  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(opts Options) *Controller {
	if opts.HeadingPause < 0 {
		opts.HeadingPause = 0
	}
	if opts.BlockPause < 0 {
		opts.BlockPause = 0
	}
	if opts.ClosingMessage == "" {
		opts.ClosingMessage = DefaultClosingMessage
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Controller{
		opts:  opts,
		state: State{AudioEnabled: opts.AudioEnabled},
		done:  make(chan struct{}),
	}
}

// Start validates blocks and begins playback in the background. onComplete
// is called exactly once, after the final frame has been observed, whether
// the script ends naturally or is skipped.
func (c *Controller) Start(ctx context.Context, blocks []Block, onComplete func()) error {
	if err := Validate(blocks); err != nil {
		return err
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.total = len(blocks)
	c.running = true
	c.finished = false
	c.skipped = false
	c.cancel = cancel
	// the first playback closes the channel New made, so Done may be taken
	// before Start
	if gen > 1 {
		c.done = make(chan struct{})
	}
	done := c.done
	c.state = State{AudioEnabled: c.state.AudioEnabled}
	c.mu.Unlock()

	script := make([]Block, len(blocks))
	copy(script, blocks)
	go c.run(runCtx, gen, script, done, onComplete)
	return nil
}

// Skip forces the terminal state. It is a no-op when nothing is playing.
func (c *Controller) Skip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.finished {
		return
	}
	c.skipped = true
	c.terminateLocked()
}

// SetAudioEnabled affects every rune emitted after the call.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.state.AudioEnabled = enabled
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the current playback has completed. Before the first
// Start it returns the channel that playback will close.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Skipped reports whether the last playback ended through Skip or context
// cancellation rather than running to the end.
func (c *Controller) Skipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

func (c *Controller) run(ctx context.Context, gen uint64, blocks []Block, done chan struct{}, onComplete func()) {
	defer c.complete(gen, done, onComplete)

	for i, b := range blocks {
		if !c.step(gen, func(s *State) {
			s.Index = i
			s.Text = ""
			s.Phase = PhaseIdle
		}) {
			return
		}

		full := []rune(b.Text())
		n := len([]rune(b.Heading))
		if !c.step(gen, func(s *State) {
			s.Text = string(full[:n])
			s.Phase = PhaseRevealing
		}) {
			return
		}
		if !c.sleep(ctx, gen, c.opts.HeadingPause) {
			return
		}

		for n < len(full) {
			if !c.sleep(ctx, gen, b.RevealRate) {
				return
			}
			r := full[n]
			n++
			var audio bool
			if !c.step(gen, func(s *State) {
				s.Text = string(full[:n])
				audio = s.AudioEnabled
			}) {
				return
			}
			if audio && !unicode.IsSpace(r) {
				c.play(KeystrokeTone(r))
			}
		}

		var audio bool
		if !c.step(gen, func(s *State) {
			s.Phase = PhaseIdle
			audio = s.AudioEnabled
		}) {
			return
		}
		if audio {
			c.play(ChimeTone())
		}
		if !c.sleep(ctx, gen, c.opts.BlockPause) {
			return
		}
	}

	c.mu.Lock()
	if c.gen == gen && !c.finished {
		c.terminateLocked()
	}
	c.mu.Unlock()
}

// step applies fn unless the playback has been finished or superseded.
func (c *Controller) step(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	if c.gen != gen || c.finished {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	snap := c.state
	c.mu.Unlock()

	c.observe(snap)
	return true
}

func (c *Controller) sleep(ctx context.Context, gen uint64, d time.Duration) bool {
	if d > 0 {
		if err := c.opts.Sleep(ctx, d); err != nil {
			c.mu.Lock()
			if c.gen == gen && !c.finished {
				c.skipped = true
				c.terminateLocked()
			}
			c.mu.Unlock()
			return false
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && !c.finished
}

// terminateLocked moves to the terminal state. Callers hold c.mu.
func (c *Controller) terminateLocked() {
	c.finished = true
	c.state.Index = c.total
	c.state.Text = c.opts.ClosingMessage
	c.state.Phase = PhaseFinished
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) complete(gen uint64, done chan struct{}, onComplete func()) {
	c.mu.Lock()
	snap := c.state
	if c.gen == gen {
		c.running = false
	}
	c.mu.Unlock()

	c.observe(snap)
	if onComplete != nil {
		onComplete()
	}
	close(done)
}

func (c *Controller) observe(s State) {
	if c.opts.Observer != nil {
		c.opts.Observer(s)
	}
}

// play is best-effort: a failing or panicking sounder never affects playback.
func (c *Controller) play(t Tone) {
	if c.opts.Sounder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.WithField("tone", t.Kind).Warnf("sound playback panicked: %v", r)
		}
	}()
	if err := c.opts.Sounder.Play(t); err != nil {
		c.opts.Logger.WithError(err).WithField("tone", t.Kind).Warn("sound playback failed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("reveal: sleep interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
