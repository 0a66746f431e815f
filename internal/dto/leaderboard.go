package dto

import (
	"time"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// LeaderboardResponse is one ranked board.
type LeaderboardResponse struct {
	Type        models.LeaderboardType    `json:"type"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	GeneratedAt time.Time                 `json:"generatedAt"`
}

// MyRankResponse is the caller's position; Rank is null when not ranked.
type MyRankResponse struct {
	Type        models.LeaderboardType `json:"type"`
	Rank        *int                   `json:"rank"`
	MetricValue int                    `json:"metricValue"`
}
