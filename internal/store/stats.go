package store

import (
	"context"
	"fmt"
	"time"
)

type IntroOutcome string

const (
	IntroCompleted IntroOutcome = "completed"
	IntroSkipped   IntroOutcome = "skipped"
)

type IntroSource string

const (
	SourceWeb      IntroSource = "web"
	SourceTerminal IntroSource = "terminal"
)

func (s *Store) RecordIntroPlay(ctx context.Context, outcome IntroOutcome, source IntroSource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intro_plays (outcome, source, created_at) VALUES (?, ?, ?)`,
		string(outcome), string(source), s.timestamp())
	if err != nil {
		return fmt.Errorf("record intro play: %w", err)
	}
	return nil
}

type Stats struct {
	TotalVisitors    int64            `json:"total_visitors"`
	UniqueVisitors   int64            `json:"unique_visitors"`
	VisitorsToday    int64            `json:"visitors_today"`
	VisitorsThisWeek int64            `json:"visitors_this_week"`
	TotalMessages    int64            `json:"total_messages"`
	IntroCompleted   int64            `json:"intro_completed"`
	IntroSkipped     int64            `json:"intro_skipped"`
	RecentVisitors   []Visitor        `json:"recent_visitors"`
	RecentMessages   []ContactMessage `json:"recent_messages"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Format(timeLayout)
	week := now.Add(-7 * 24 * time.Hour).Format(timeLayout)

	stats := &Stats{}
	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{today}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{week}},
		{&stats.TotalMessages, `SELECT COUNT(*) FROM contact_messages`, nil},
		{&stats.IntroCompleted, `SELECT COUNT(*) FROM intro_plays WHERE outcome = ?`, []any{string(IntroCompleted)}},
		{&stats.IntroSkipped, `SELECT COUNT(*) FROM intro_plays WHERE outcome = ?`, []any{string(IntroSkipped)}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	var err error
	if stats.RecentVisitors, err = s.RecentVisitors(ctx, 50); err != nil {
		return nil, err
	}
	if stats.RecentMessages, err = s.RecentMessages(ctx, 20); err != nil {
		return nil, err
	}
	return stats, nil
}
