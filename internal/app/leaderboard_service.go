package app

import (
	"context"
	"sort"

	"church-quiz-service/internal/domain"
)

const DefaultLeaderboardSize = 10

// LeaderboardService ranks stored scores. Nothing is cached; every call reads the tables.
type LeaderboardService struct {
	users  Table[domain.User]
	scores Table[domain.ScoreRecord]
	size   int
}

func NewLeaderboardService(users Table[domain.User], scores Table[domain.ScoreRecord], size int) *LeaderboardService {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	return &LeaderboardService{users: users, scores: scores, size: size}
}

// Top returns the best n scores; n <= 0 means the configured size.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = s.size
	}
	rows, err := rankedScores(ctx, s.users, s.scores)
	if err != nil {
		return nil, err
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = domain.LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: row.PlayerName,
			Score:      row.Score,
			Date:       row.Date,
		}
	}
	return entries, nil
}

// rankedScores inner-joins scores to users and sorts by score desc, then
// date asc. The sort is stable, so equal rows keep file order.
func rankedScores(ctx context.Context, users Table[domain.User], scores Table[domain.ScoreRecord]) ([]domain.ScoreRow, error) {
	us, err := users.Load(ctx)
	if err != nil {
		return nil, err
	}
	ss, err := scores.Load(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(us))
	for _, u := range us {
		names[u.ID] = u.Name
	}
	rows := make([]domain.ScoreRow, 0, len(ss))
	for pos, rec := range ss {
		name, ok := names[rec.UserID]
		if !ok {
			continue
		}
		rows = append(rows, domain.ScoreRow{
			Position:   pos,
			PlayerName: name,
			UserID:     rec.UserID,
			Score:      rec.Score,
			Date:       rec.Date,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Date < rows[j].Date
	})
	return rows, nil
}
