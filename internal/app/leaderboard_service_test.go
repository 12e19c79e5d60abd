package app_test

import (
	"context"
	"testing"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
)

func TestLeaderboardOrdering(t *testing.T) {
	users := &memTable[domain.User]{recs: []domain.User{
		{ID: "u1", Name: "alice"},
		{ID: "u2", Name: "bob"},
		{ID: "u3", Name: "carol"},
	}}
	scores := &memTable[domain.ScoreRecord]{recs: []domain.ScoreRecord{
		{UserID: "u1", Score: 15, Date: "2024-03-02 09:00:00"},
		{UserID: "u2", Score: 18, Date: "2024-03-05 09:00:00"},
		{UserID: "u3", Score: 15, Date: "2024-03-01 09:00:00"},
		{UserID: "gone", Score: 20, Date: "2024-03-01 08:00:00"},
		{UserID: "u1", Score: 4, Date: "2024-03-03 09:00:00"},
	}}
	lb := app.NewLeaderboardService(users, scores, 0)

	top, err := lb.Top(context.Background(), 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []domain.LeaderboardEntry{
		{Rank: 1, PlayerName: "bob", Score: 18, Date: "2024-03-05 09:00:00"},
		{Rank: 2, PlayerName: "carol", Score: 15, Date: "2024-03-01 09:00:00"},
		{Rank: 3, PlayerName: "alice", Score: 15, Date: "2024-03-02 09:00:00"},
		{Rank: 4, PlayerName: "alice", Score: 4, Date: "2024-03-03 09:00:00"},
	}
	if len(top) != len(want) {
		t.Fatalf("expected %d rows (orphan score dropped), got %+v", len(want), top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("row %d: got %+v want %+v", i, top[i], want[i])
		}
	}

	top, err = lb.Top(context.Background(), 2)
	if err != nil || len(top) != 2 || top[1].PlayerName != "carol" {
		t.Fatalf("top 2: %+v %v", top, err)
	}
}

func TestLeaderboardDefaultSize(t *testing.T) {
	users := &memTable[domain.User]{recs: []domain.User{{ID: "u1", Name: "alice"}}}
	scores := &memTable[domain.ScoreRecord]{}
	for i := 0; i < 15; i++ {
		scores.recs = append(scores.recs, domain.ScoreRecord{UserID: "u1", Score: i, Date: "2024-01-01 00:00:00"})
	}
	top, err := app.NewLeaderboardService(users, scores, 0).Top(context.Background(), -1)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != app.DefaultLeaderboardSize || top[0].Score != 14 {
		t.Fatalf("expected %d rows led by 14, got %+v", app.DefaultLeaderboardSize, top)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	top, err := app.NewLeaderboardService(&memTable[domain.User]{}, &memTable[domain.ScoreRecord]{}, 5).Top(context.Background(), 0)
	if err != nil || len(top) != 0 {
		t.Fatalf("expected empty board, got %+v %v", top, err)
	}
}
