// Package session remembers one-shot UI gates for the lifetime of a
// browsing (or terminal) session.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// IntroPlayedKey is the flag recording that the intro auto-played.
const IntroPlayedKey = "intro_played"

// Gate is a resettable one-shot flag.
type Gate interface {
	HasPlayed() bool
	MarkPlayed()
	Reset()
}

type storeGate struct {
	store *Store
	id    string
	key   string
}

func (g storeGate) HasPlayed() bool { return g.store.Get(g.id, g.key) }
func (g storeGate) MarkPlayed()     { g.store.Set(g.id, g.key, true) }
func (g storeGate) Reset()          { g.store.Delete(g.id, g.key) }

// FileGate keeps the flag as a marker file. The terminal intro keys it by the
// parent shell so each new terminal session starts fresh.
type FileGate struct {
	Path   string
	Logger logrus.FieldLogger
}

// TerminalGate returns a FileGate scoped to the invoking shell.
func TerminalGate(logger logrus.FieldLogger) FileGate {
	name := fmt.Sprintf("portfolio-intro-%d.played", os.Getppid())
	return FileGate{Path: filepath.Join(os.TempDir(), name), Logger: logger}
}

func (g FileGate) HasPlayed() bool {
	_, err := os.Stat(g.Path)
	return err == nil
}

func (g FileGate) MarkPlayed() {
	if err := os.WriteFile(g.Path, []byte("1\n"), 0o600); err != nil {
		g.logger().WithError(err).WithField("path", g.Path).Warn("could not persist intro gate")
	}
}

func (g FileGate) Reset() {
	if err := os.Remove(g.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		g.logger().WithError(err).WithField("path", g.Path).Warn("could not reset intro gate")
	}
}

func (g FileGate) logger() logrus.FieldLogger {
	if g.Logger == nil {
		return logrus.StandardLogger()
	}
	return g.Logger
}
