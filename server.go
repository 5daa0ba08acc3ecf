package main

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/github"
	"github.com/Zachkp/portfolio/internal/reveal"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "portfolio_session"

type repoFetcher interface {
	FetchSummaries(ctx context.Context, account string, opts github.Options) []github.RepoSummary
}

type server struct {
	cfg      config.Config
	site     *content.Site
	store    *store.Store
	sessions *session.Store
	repos    repoFetcher
	mailer   mailer
	intros   *introRegistry
	logger   logrus.FieldLogger

	// introSleep overrides reveal pacing; nil uses real timers.
	introSleep reveal.SleepFunc
	adminToken string

	// visits tracks background visitor writes still in flight.
	visits sync.WaitGroup
}

func newRouter(s *server) (*gin.Engine, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)
	r.Static("/images", "./images")
	r.Static("/static", "./static")

	r.Use(s.sessionMiddleware(), s.visitorTrackingMiddleware())

	// Home page route
	r.GET("/", s.home)

	// HTMX fragments
	r.GET("/contact-form", func(c *gin.Context) {
		c.HTML(http.StatusOK, "contact.html", gin.H{"title": "Contact Me"})
	})
	r.GET("/work-content", func(c *gin.Context) {
		c.HTML(http.StatusOK, "work-content.html", gin.H{"jobs": s.site.Jobs})
	})
	r.GET("/education-content", func(c *gin.Context) {
		c.HTML(http.StatusOK, "education-content.html", gin.H{
			"education":      s.site.Education,
			"certifications": s.site.Certifications,
		})
	})
	r.GET("/projects", s.projects)
	r.POST("/contact", s.contact)

	intro := r.Group("/intro")
	intro.GET("/stream", s.introStream)
	intro.POST("/replay", s.introReplay)
	intro.POST("/:id/skip", s.introSkip)
	intro.POST("/:id/audio", s.introAudio)

	s.setupAdminRoutes(r)
	return r, nil
}

// sessionMiddleware issues a browser-session cookie (no Max-Age) that keys
// the server-side session store.
func (s *server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			id = session.NewID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(sessionCookie, id)
		c.Next()
	}
}

func (s *server) gate(c *gin.Context) session.Gate {
	return s.sessions.Gate(c.GetString(sessionCookie))
}

func (s *server) home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"profile":       s.site.Profile,
		"autoplayIntro": !s.gate(c).HasPlayed(),
		"closing":       s.site.Intro.ClosingMessage,
	})
}

type projectCard struct {
	Name        string
	Description string
	URL         string
	Homepage    string
	Language    string
	Topics      []string
	Stars       string
	Forks       string
	Live        bool
}

func (s *server) projects(c *gin.Context) {
	repos := s.repos.FetchSummaries(c.Request.Context(), s.cfg.GitHubAccount, github.Options{
		Sort:      "updated",
		Direction: "desc",
		PageSize:  s.cfg.ProjectCount,
	})

	var cards []projectCard
	if len(repos) > 0 {
		p := message.NewPrinter(language.English)
		for _, r := range repos {
			cards = append(cards, projectCard{
				Name:        r.Name,
				Description: deref(r.Description),
				URL:         r.URL,
				Homepage:    deref(r.Homepage),
				Language:    deref(r.Language),
				Topics:      r.Topics,
				Stars:       p.Sprintf("%d", r.Stars),
				Forks:       p.Sprintf("%d", r.Forks),
				Live:        true,
			})
		}
	} else {
		for _, pr := range s.site.Projects {
			cards = append(cards, projectCard{
				Name:        pr.Name,
				Description: pr.Description,
				URL:         pr.URL,
				Language:    pr.Language,
				Topics:      pr.Topics,
			})
		}
	}

	c.HTML(http.StatusOK, "projects.html", gin.H{
		"projects": cards,
		"account":  s.cfg.GitHubAccount,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// pruneSessions evicts idle sessions until ctx is done.
func (s *server) pruneSessions(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Prune(); n > 0 {
				s.logger.WithField("removed", n).Debug("pruned idle sessions")
			}
		}
	}
}
