package main

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Zachkp/portfolio/internal/reveal"
	"github.com/Zachkp/portfolio/internal/store"
)

// introEventBuffer bounds how far a slow client may lag. Frames carry the
// whole visible text, so dropping one only skips an animation step.
const introEventBuffer = 1024

// introRegistry tracks live playbacks so skip and audio requests can reach
// the controller behind an open event stream. Only the session that opened
// a stream may control it.
type introRegistry struct {
	mu        sync.Mutex
	playbacks map[string]introPlayback
}

type introPlayback struct {
	owner string
	ctrl  *reveal.Controller
}

func newIntroRegistry() *introRegistry {
	return &introRegistry{playbacks: make(map[string]introPlayback)}
}

func (r *introRegistry) add(id, owner string, c *reveal.Controller) {
	r.mu.Lock()
	r.playbacks[id] = introPlayback{owner: owner, ctrl: c}
	r.mu.Unlock()
}

func (r *introRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.playbacks, id)
	r.mu.Unlock()
}

// get reports a playback only to its owning session.
func (r *introRegistry) get(id, owner string) (*reveal.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playbacks[id]
	if !ok || owner == "" || p.owner != owner {
		return nil, false
	}
	return p.ctrl, true
}

type sseEvent struct {
	name string
	data any
}

type introFrame struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Phase     string `json:"phase"`
	Revealing bool   `json:"revealing"`
	Audio     bool   `json:"audio"`
}

func newIntroFrame(s reveal.State) introFrame {
	return introFrame{
		Index:     s.Index,
		Text:      s.Text,
		Phase:     s.Phase.String(),
		Revealing: s.Revealing(),
		Audio:     s.AudioEnabled,
	}
}

type introSound struct {
	Kind       reveal.ToneKind `json:"kind"`
	Frequency  float64         `json:"frequency"`
	DurationMs int64           `json:"duration_ms"`
}

// introStream plays the intro as server-sent events. With ?autoplay=1 it
// answers 204 when this session has already seen the intro, which tells
// EventSource to stop reconnecting.
func (s *server) introStream(c *gin.Context) {
	gate := s.gate(c)
	if c.Query("autoplay") == "1" && gate.HasPlayed() {
		c.Status(http.StatusNoContent)
		return
	}

	events := make(chan sseEvent, introEventBuffer)
	emit := func(ev sseEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	opts := s.site.Intro.Options()
	opts.AudioEnabled = c.DefaultQuery("audio", "1") != "0"
	opts.Logger = s.logger
	opts.Sleep = s.introSleep
	opts.Observer = func(st reveal.State) {
		emit(sseEvent{name: "frame", data: newIntroFrame(st)})
	}
	opts.Sounder = reveal.SounderFunc(func(t reveal.Tone) error {
		emit(sseEvent{name: "sound", data: introSound{
			Kind:       t.Kind,
			Frequency:  t.FrequencyHz,
			DurationMs: t.Duration.Milliseconds(),
		}})
		return nil
	})
	ctrl := reveal.New(opts)

	id := uuid.NewString()
	s.intros.add(id, c.GetString(sessionCookie), ctrl)
	defer s.intros.remove(id)

	finished := make(chan struct{})
	script := s.site.Intro.Script()
	err := ctrl.Start(c.Request.Context(), script, func() {
		gate.MarkPlayed()
		s.recordIntro(ctrl.Skipped(), store.SourceWeb)
		close(finished)
	})
	if err != nil {
		s.logger.WithError(err).Error("intro script rejected")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "intro unavailable"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("start", gin.H{"id": id, "blocks": len(script)})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case ev := <-events:
			c.SSEvent(ev.name, ev.data)
			c.Writer.Flush()
		case <-finished:
			for drained := false; !drained; {
				select {
				case ev := <-events:
					c.SSEvent(ev.name, ev.data)
				default:
					drained = true
				}
			}
			c.SSEvent("done", newIntroFrame(ctrl.State()))
			c.Writer.Flush()
			return
		case <-ctx.Done():
			// the request context also drives the controller, so this
			// playback is already being skipped
			return
		}
	}
}

func (s *server) recordIntro(skipped bool, source store.IntroSource) {
	outcome := store.IntroCompleted
	if skipped {
		outcome = store.IntroSkipped
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.RecordIntroPlay(ctx, outcome, source); err != nil {
		s.logger.WithError(err).Warn("could not record intro play")
	}
}

func (s *server) introSkip(c *gin.Context) {
	ctrl, ok := s.intros.get(c.Param("id"), c.GetString(sessionCookie))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "playback not found"})
		return
	}
	ctrl.Skip()
	c.Status(http.StatusNoContent)
}

func (s *server) introAudio(c *gin.Context) {
	ctrl, ok := s.intros.get(c.Param("id"), c.GetString(sessionCookie))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "playback not found"})
		return
	}
	raw := c.Query("enabled")
	if raw == "" {
		raw = c.PostForm("enabled")
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled must be true or false"})
		return
	}
	ctrl.SetAudioEnabled(enabled)
	c.Status(http.StatusNoContent)
}

// introReplay clears the session gate so the next page load (or an explicit
// stream request) plays the intro again.
func (s *server) introReplay(c *gin.Context) {
	s.gate(c).Reset()
	c.Header("HX-Trigger", "intro-replay")
	c.Status(http.StatusNoContent)
}
