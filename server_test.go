package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/github"
	"github.com/Zachkp/portfolio/internal/reveal"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type repoFunc func(ctx context.Context, account string, opts github.Options) []github.RepoSummary

func (f repoFunc) FetchSummaries(ctx context.Context, account string, opts github.Options) []github.RepoSummary {
	return f(ctx, account, opts)
}

type fakeMailer struct {
	err  error
	sent []string
}

func (m *fakeMailer) Send(name, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, name)
	return nil
}

func instantSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type testEnv struct {
	srv    *server
	router *gin.Engine
	mail   *fakeMailer
}

func newTestEnv(t *testing.T, repos repoFetcher) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.Out = io.Discard

	site, err := content.Load()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "site.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if repos == nil {
		repos = repoFunc(func(context.Context, string, github.Options) []github.RepoSummary { return nil })
	}
	mail := &fakeMailer{}
	s := &server{
		cfg: config.Config{
			GitHubAccount: "Zachkp",
			ProjectCount:  6,
			AdminUsername: "admin",
			AdminPassword: "s3cret",
		},
		site:       site,
		store:      st,
		sessions:   session.NewStore(time.Hour),
		repos:      repos,
		mailer:     mail,
		intros:     newIntroRegistry(),
		logger:     logger,
		introSleep: instantSleep,
		adminToken: "test-token",
	}
	// visit writes land before the store closes
	t.Cleanup(s.visits.Wait)
	r, err := newRouter(s)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &testEnv{srv: s, router: r, mail: mail}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func withSession(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
	return req
}

// pacedSleep keeps a real playback slow enough to interrupt.
func pacedSleep(ctx context.Context, _ time.Duration) error {
	t := time.NewTimer(5 * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type sseReader struct {
	sc *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseReader{sc: sc}
}

// next returns the following event, or ok=false at end of stream.
func (r *sseReader) next() (event, data string, ok bool) {
	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && event != "":
			return event, data, true
		}
	}
	return event, data, event != ""
}

// openIntroStream starts a live stream for sessionID and returns the
// playback id from the start event.
func openIntroStream(t *testing.T, ctx context.Context, baseURL, sessionID string) (*http.Response, *sseReader, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/intro/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(withSession(req, sessionID))
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	r := newSSEReader(resp.Body)
	ev, data, ok := r.next()
	if !ok || ev != "start" {
		_ = resp.Body.Close()
		t.Fatalf("first event = %q, want start", ev)
	}
	var start struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(data), &start); err != nil || start.ID == "" {
		_ = resp.Body.Close()
		t.Fatalf("start payload %q: %v", data, err)
	}
	return resp, r, start.ID
}

func postSkip(t *testing.T, baseURL, id, sessionID string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+"/intro/"+id+"/skip", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(withSession(req, sessionID))
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			if c.MaxAge != 0 {
				t.Fatalf("session cookie should not persist past the browser session: max-age %d", c.MaxAge)
			}
			return c
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func TestHomeAutoplaysOncePerSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `data-autoplay="true"`) {
		t.Fatalf("fresh session should autoplay")
	}
	cookie := sessionFrom(t, w)

	env.srv.sessions.Gate(cookie.Value).MarkPlayed()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	if !strings.Contains(w.Body.String(), `data-autoplay="false"`) {
		t.Fatalf("played session should not autoplay")
	}
}

func TestIntroStreamPlaysAndGates(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := &http.Cookie{Name: sessionCookie, Value: "session-1"}

	req := httptest.NewRequest(http.MethodGet, "/intro/stream?autoplay=1", nil)
	req.AddCookie(cookie)
	w := env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"event:start", "event:frame", "event:sound", "event:done", "scroll down to look around"} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.LastIndex(body, "event:done") < strings.LastIndex(body, "event:frame") {
		t.Fatalf("done was not the final event")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	gate := env.srv.sessions.Gate("session-1")
	if !gate.HasPlayed() {
		t.Fatalf("gate not marked after playback")
	}
	stats, err := env.srv.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.IntroCompleted != 1 || stats.IntroSkipped != 0 {
		t.Fatalf("intro plays = %d completed / %d skipped", stats.IntroCompleted, stats.IntroSkipped)
	}

	req = httptest.NewRequest(http.MethodGet, "/intro/stream?autoplay=1", nil)
	req.AddCookie(cookie)
	if w := env.do(req); w.Code != http.StatusNoContent {
		t.Fatalf("second autoplay status = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/intro/replay", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	if w.Code != http.StatusNoContent || w.Header().Get("HX-Trigger") != "intro-replay" {
		t.Fatalf("replay: status %d trigger %q", w.Code, w.Header().Get("HX-Trigger"))
	}
	if gate.HasPlayed() {
		t.Fatalf("replay did not reset the gate")
	}
}

func TestIntroStreamMuted(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/intro/stream?audio=0", nil))
	if strings.Contains(w.Body.String(), "event:sound") {
		t.Fatalf("muted stream emitted sounds")
	}
	if !strings.Contains(w.Body.String(), "event:done") {
		t.Fatalf("muted stream did not finish")
	}
}

func TestIntroControlEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(httptest.NewRequest(http.MethodPost, "/intro/missing/skip", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown skip status = %d", w.Code)
	}
	if w := env.do(httptest.NewRequest(http.MethodPost, "/intro/missing/audio?enabled=false", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown audio status = %d", w.Code)
	}

	ctrl := reveal.New(reveal.Options{
		AudioEnabled: true,
		Logger:       env.srv.logger,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err := ctrl.Start(context.Background(), env.srv.site.Intro.Script(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	env.srv.intros.add("live", "owner", ctrl)

	for _, path := range []string{"/intro/live/audio?enabled=false", "/intro/live/skip"} {
		req := withSession(httptest.NewRequest(http.MethodPost, path, nil), "someone-else")
		if w := env.do(req); w.Code != http.StatusNotFound {
			t.Fatalf("%s from another session: status = %d", path, w.Code)
		}
	}
	if !ctrl.State().AudioEnabled {
		t.Fatalf("another session changed audio")
	}

	req := withSession(httptest.NewRequest(http.MethodPost, "/intro/live/audio?enabled=maybe", nil), "owner")
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("bad audio value status = %d", w.Code)
	}
	req = withSession(httptest.NewRequest(http.MethodPost, "/intro/live/audio?enabled=false", nil), "owner")
	if w := env.do(req); w.Code != http.StatusNoContent {
		t.Fatalf("audio status = %d", w.Code)
	}
	if ctrl.State().AudioEnabled {
		t.Fatalf("audio toggle not applied")
	}

	req = withSession(httptest.NewRequest(http.MethodPost, "/intro/live/skip", nil), "owner")
	if w := env.do(req); w.Code != http.StatusNoContent {
		t.Fatalf("skip status = %d", w.Code)
	}
	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("skip did not end playback")
	}
	if !ctrl.Skipped() {
		t.Fatalf("playback not marked skipped")
	}
}

func TestIntroStreamSkipAndDisconnect(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.introSleep = pacedSleep
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	resp, r, id := openIntroStream(t, context.Background(), ts.URL, "skipper")
	defer resp.Body.Close()

	if code := postSkip(t, ts.URL, id, "bystander"); code != http.StatusNotFound {
		t.Fatalf("skip from another session: status = %d", code)
	}
	if code := postSkip(t, ts.URL, id, "skipper"); code != http.StatusNoContent {
		t.Fatalf("skip status = %d", code)
	}

	var last, lastData string
	for {
		ev, data, ok := r.next()
		if !ok {
			break
		}
		last, lastData = ev, data
	}
	if last != "done" {
		t.Fatalf("last event = %q, want done", last)
	}
	if !strings.Contains(lastData, `"phase":"finished"`) {
		t.Fatalf("done frame not terminal: %s", lastData)
	}
	if !env.srv.sessions.Gate("skipper").HasPlayed() {
		t.Fatalf("skipped intro did not mark the gate")
	}
	stats, err := env.srv.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.IntroSkipped != 1 || stats.IntroCompleted != 0 {
		t.Fatalf("intro plays = %d completed / %d skipped", stats.IntroCompleted, stats.IntroSkipped)
	}

	// a client that goes away mid-stream counts as a skip
	ctx, cancel := context.WithCancel(context.Background())
	resp, _, _ = openIntroStream(t, ctx, ts.URL, "leaver")
	cancel()
	_ = resp.Body.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err = env.srv.store.Stats(context.Background())
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.IntroSkipped == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("disconnect not recorded as skip: %d skipped", stats.IntroSkipped)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !env.srv.sessions.Gate("leaver").HasPlayed() {
		t.Fatalf("disconnect did not mark the gate")
	}
	if stats.IntroCompleted != 0 {
		t.Fatalf("completed = %d", stats.IntroCompleted)
	}
}

func TestVisitorTracking(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		dnt    bool
		want   int64
	}{
		{name: "page", method: http.MethodGet, path: "/work-content", want: 1},
		{name: "do not track", method: http.MethodGet, path: "/", dnt: true},
		{name: "intro control", method: http.MethodPost, path: "/intro/replay"},
		{name: "privacy page", method: http.MethodGet, path: "/privacy"},
		{name: "admin", method: http.MethodGet, path: "/admin/login"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.dnt {
				req.Header.Set("DNT", "1")
			}
			env.do(req)
			env.srv.visits.Wait()

			stats, err := env.srv.store.Stats(context.Background())
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if stats.TotalVisitors != tc.want {
				t.Fatalf("visitors = %d, want %d", stats.TotalVisitors, tc.want)
			}
		})
	}
}

func TestAdminExportCleanupAndLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	token := &http.Cookie{Name: adminCookie, Value: "test-token"}
	authed := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(token)
		return env.do(req)
	}

	env.do(httptest.NewRequest(http.MethodGet, "/work-content", nil))
	env.srv.visits.Wait()

	w := authed(http.MethodGet, "/admin/export/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=admin-stats.json" {
		t.Fatalf("content disposition = %q", got)
	}
	var exported store.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if exported.TotalVisitors != 1 {
		t.Fatalf("exported visitors = %d", exported.TotalVisitors)
	}

	w = authed(http.MethodPost, "/admin/privacy/cleanup")
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", w.Code)
	}
	var cleanup map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &cleanup); err != nil {
		t.Fatalf("decode cleanup: %v", err)
	}
	if removed, ok := cleanup["removed"]; !ok || removed != 0 {
		t.Fatalf("cleanup = %v, want removed 0 for fresh visits", cleanup)
	}

	w = authed(http.MethodGet, "/admin/logout")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("logout: %d %q", w.Code, w.Header().Get("Location"))
	}
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookie && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout did not clear the admin cookie")
	}
}

func TestProjectsFallsBackToContent(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/projects", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for _, p := range env.srv.site.Projects {
		if !strings.Contains(w.Body.String(), p.Name) {
			t.Fatalf("fallback project %q missing", p.Name)
		}
	}
}

func TestProjectsRendersLiveRepos(t *testing.T) {
	desc, lang := "terminal mail", "Go"
	var gotOpts github.Options
	env := newTestEnv(t, repoFunc(func(_ context.Context, account string, opts github.Options) []github.RepoSummary {
		gotOpts = opts
		return []github.RepoSummary{{
			Name:        "mailtui",
			Description: &desc,
			Language:    &lang,
			URL:         "https://github.com/Zachkp/mailtui",
			Stars:       1234,
			Forks:       5,
			Topics:      []string{"tui", "imap"},
		}}
	}))

	w := env.do(httptest.NewRequest(http.MethodGet, "/projects", nil))
	body := w.Body.String()
	for _, want := range []string{"mailtui", "terminal mail", "1,234", "tui · imap"} {
		if !strings.Contains(body, want) {
			t.Fatalf("projects missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "ytmusic-tui") {
		t.Fatalf("fallback shown alongside live repos")
	}
	if gotOpts.PageSize != 6 || gotOpts.Sort != "updated" {
		t.Fatalf("fetch options = %+v", gotOpts)
	}
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestContactForm(t *testing.T) {
	form := url.Values{"fullName": {"Ada"}, "email": {"ada@example.com"}, "message": {"hello"}}

	t.Run("delivered", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(postForm("/contact", form))
		if !strings.Contains(w.Body.String(), "Thank you") {
			t.Fatalf("expected success fragment:\n%s", w.Body.String())
		}
		msgs, err := env.srv.store.RecentMessages(context.Background(), 10)
		if err != nil || len(msgs) != 1 || !msgs[0].Delivered {
			t.Fatalf("stored messages = %+v (%v)", msgs, err)
		}
		if len(env.mail.sent) != 1 {
			t.Fatalf("mail not sent")
		}
	})

	t.Run("smtp not configured", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.mail.err = errMailNotConfigured
		w := env.do(postForm("/contact", form))
		if !strings.Contains(w.Body.String(), "Thank you") {
			t.Fatalf("stored-only message should still succeed")
		}
		msgs, _ := env.srv.store.RecentMessages(context.Background(), 10)
		if len(msgs) != 1 || msgs[0].Delivered {
			t.Fatalf("stored messages = %+v", msgs)
		}
	})

	t.Run("smtp failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.mail.err = errors.New("connection refused")
		w := env.do(postForm("/contact", form))
		if !strings.Contains(w.Body.String(), "error sending your message") {
			t.Fatalf("expected error fragment:\n%s", w.Body.String())
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		env := newTestEnv(t, nil)
		bad := url.Values{"fullName": {"Ada"}, "email": {"not-an-email"}, "message": {"hi"}}
		w := env.do(postForm("/contact", bad))
		if !strings.Contains(w.Body.String(), "email address") {
			t.Fatalf("expected validation error:\n%s", w.Body.String())
		}
		w = env.do(postForm("/contact", url.Values{"email": {"ada@example.com"}}))
		if !strings.Contains(w.Body.String(), "Please fill in") {
			t.Fatalf("expected missing-field error:\n%s", w.Body.String())
		}
	})
}

func TestAdminRequiresLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("unauthenticated dashboard: %d %q", w.Code, w.Header().Get("Location"))
	}

	w = env.do(postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}

	w = env.do(postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"s3cret"}}))
	if w.Code != http.StatusFound {
		t.Fatalf("login status = %d", w.Code)
	}
	var token *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookie {
			token = c
		}
	}
	if token == nil || token.Value != "test-token" {
		t.Fatalf("admin cookie not set")
	}

	for _, path := range []string{"/admin/dashboard", "/admin/api/stats", "/admin/visitors", "/admin/messages"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(token)
		if w := env.do(req); w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
	}
}
