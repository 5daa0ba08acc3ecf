package reveal

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

var (
	ErrNoBlocks       = errors.New("reveal: no blocks to play")
	ErrInvalidRate    = errors.New("reveal: reveal rate must be positive")
	ErrAlreadyRunning = errors.New("reveal: playback already running")
	ErrInvalidText    = errors.New("reveal: block text is not valid UTF-8")
)

// Block is one titled unit of the scripted intro.
type Block struct {
	Heading    string
	Body       string
	RevealRate time.Duration
}

// Text is the full text a block reveals: heading, newline, body.
func (b Block) Text() string {
	return b.Heading + "\n" + b.Body
}

// Validate reports whether blocks can be played.
func Validate(blocks []Block) error {
	if len(blocks) == 0 {
		return ErrNoBlocks
	}
	for i, b := range blocks {
		if b.RevealRate <= 0 {
			return fmt.Errorf("block %d (%q): %w", i, b.Heading, ErrInvalidRate)
		}
		// rune-by-rune reveal would rewrite bad bytes to U+FFFD
		if !utf8.ValidString(b.Heading) || !utf8.ValidString(b.Body) {
			return fmt.Errorf("block %d: %w", i, ErrInvalidText)
		}
	}
	return nil
}

// Phase is the coarse playback position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRevealing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRevealing:
		return "revealing"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of a playback.
type State struct {
	Index        int
	Text         string
	Phase        Phase
	AudioEnabled bool
}

// Revealing mirrors the isRevealing flag the front end keys its cursor on.
func (s State) Revealing() bool { return s.Phase == PhaseRevealing }
