// Package content holds the site copy: profile, work history, education,
// fallback projects and the intro script.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Zachkp/portfolio/internal/reveal"
)

//go:embed content.yaml
var defaultContent []byte

type Site struct {
	Profile        Profile         `yaml:"profile"`
	Jobs           []Job           `yaml:"jobs"`
	Education      []Education     `yaml:"education"`
	Certifications []Certification `yaml:"certifications"`
	Projects       []Project       `yaml:"projects"`
	Intro          Intro           `yaml:"intro"`
}

type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

type Profile struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Tagline  string `yaml:"tagline"`
	Location string `yaml:"location"`
	Email    string `yaml:"email"`
	About    string `yaml:"about"`
	Links    []Link `yaml:"links"`
}

type Job struct {
	Title   string   `yaml:"title"`
	Company string   `yaml:"company"`
	Start   string   `yaml:"start"`
	End     string   `yaml:"end"`
	Logo    string   `yaml:"logo"`
	Bullets []string `yaml:"bullets"`
}

type Education struct {
	Degree      string   `yaml:"degree"`
	Institution string   `yaml:"institution"`
	Start       string   `yaml:"start"`
	End         string   `yaml:"end"`
	Logo        string   `yaml:"logo"`
	Bullets     []string `yaml:"bullets"`
}

type Certification struct {
	Name       string `yaml:"name"`
	Issuer     string `yaml:"issuer"`
	Issued     string `yaml:"issued"`
	Credential string `yaml:"credential"`
	Logo       string `yaml:"logo"`
}

// Project is a hand-written project card, shown when live repository data
// is unavailable.
type Project struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Language    string   `yaml:"language"`
	Topics      []string `yaml:"topics"`
}

type Intro struct {
	HeadingPauseMs int          `yaml:"heading_pause_ms"`
	BlockPauseMs   int          `yaml:"block_pause_ms"`
	ClosingMessage string       `yaml:"closing_message"`
	Blocks         []IntroBlock `yaml:"blocks"`
}

type IntroBlock struct {
	Heading string `yaml:"heading"`
	Body    string `yaml:"body"`
	RateMs  int    `yaml:"rate_ms"`
}

// Script converts the intro into controller blocks.
func (i Intro) Script() []reveal.Block {
	blocks := make([]reveal.Block, 0, len(i.Blocks))
	for _, b := range i.Blocks {
		blocks = append(blocks, reveal.Block{
			Heading:    b.Heading,
			Body:       b.Body,
			RevealRate: time.Duration(b.RateMs) * time.Millisecond,
		})
	}
	return blocks
}

// Options returns controller pacing; callers fill in sounders and observers.
func (i Intro) Options() reveal.Options {
	return reveal.Options{
		HeadingPause:   time.Duration(i.HeadingPauseMs) * time.Millisecond,
		BlockPause:     time.Duration(i.BlockPauseMs) * time.Millisecond,
		ClosingMessage: i.ClosingMessage,
	}
}

// Load parses the embedded site content.
func Load() (*Site, error) {
	return Parse(defaultContent)
}

func Parse(data []byte) (*Site, error) {
	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if site.Profile.Name == "" {
		return nil, errors.New("parse content: profile name is required")
	}
	if err := reveal.Validate(site.Intro.Script()); err != nil {
		return nil, fmt.Errorf("parse content: intro: %w", err)
	}
	if site.Intro.HeadingPauseMs < 0 || site.Intro.BlockPauseMs < 0 {
		return nil, errors.New("parse content: intro pauses must not be negative")
	}
	return &site, nil
}
