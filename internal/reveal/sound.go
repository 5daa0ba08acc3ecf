package reveal

import (
	"time"
)

type ToneKind string

const (
	ToneKeystroke ToneKind = "keystroke"
	ToneChime     ToneKind = "chime"
)

// Tone describes a short synthesized sound. Frequencies and envelope are
// cosmetic; sounders may approximate them.
type Tone struct {
	Kind        ToneKind
	FrequencyHz float64
	Duration    time.Duration
}

// Sounder plays tones. Implementations must return quickly; the controller
// calls Play on its reveal goroutine.
type Sounder interface {
	Play(Tone) error
}

// SounderFunc adapts a function to Sounder.
type SounderFunc func(Tone) error

func (f SounderFunc) Play(t Tone) error { return f(t) }

// KeystrokeTone is a soft blip whose pitch wanders with the typed rune.
func KeystrokeTone(r rune) Tone {
	return Tone{
		Kind:        ToneKeystroke,
		FrequencyHz: 420 + float64(int(r)%12)*35,
		Duration:    30 * time.Millisecond,
	}
}

// ChimeTone marks the end of a block.
func ChimeTone() Tone {
	return Tone{
		Kind:        ToneChime,
		FrequencyHz: 1320,
		Duration:    180 * time.Millisecond,
	}
}
