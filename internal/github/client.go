// Package github fetches public repository summaries for the projects
// section. Every failure degrades to an empty list.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.github.com"

// RepoSummary is the subset of a repository the site renders.
type RepoSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	URL         string   `json:"html_url"`
	Language    *string  `json:"language"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Topics      []string `json:"topics"`
	Homepage    *string  `json:"homepage"`
}

// Options control ordering and page size. Zero values fall back to the
// most recently updated six repositories.
type Options struct {
	Sort      string
	Direction string
	PageSize  int
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

func NewClient(baseURL string, logger logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

// FetchSummaries makes a single best-effort request. It never returns an
// error: network failures, non-2xx responses and bad payloads all yield an
// empty slice.
func (c *Client) FetchSummaries(ctx context.Context, account string, opts Options) []RepoSummary {
	log := c.Logger.WithField("account", account)
	repos, err := c.fetch(ctx, account, opts)
	if err != nil {
		log.WithError(err).Warn("repository fetch failed, showing fallback projects")
		return []RepoSummary{}
	}
	return FilterProfileRepos(account, repos)
}

func (c *Client) fetch(ctx context.Context, account string, opts Options) ([]RepoSummary, error) {
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if opts.Sort == "" {
		opts.Sort = "updated"
	}
	if opts.Direction == "" {
		opts.Direction = "desc"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 6
	}

	q := url.Values{}
	q.Set("sort", opts.Sort)
	q.Set("direction", opts.Direction)
	q.Set("per_page", strconv.Itoa(opts.PageSize))
	q.Set("type", "owner")
	endpoint := fmt.Sprintf("%s/users/%s/repos?%s", c.BaseURL, url.PathEscape(account), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request repos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request repos: unexpected status %s", resp.Status)
	}

	var repos []RepoSummary
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("decode repos: %w", err)
	}
	return repos, nil
}

// FilterProfileRepos drops the account's profile README repository and its
// GitHub Pages site.
func FilterProfileRepos(account string, repos []RepoSummary) []RepoSummary {
	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		if strings.EqualFold(r.Name, account) || strings.EqualFold(r.Name, account+".github.io") {
			continue
		}
		out = append(out, r)
	}
	return out
}
