package models

import "time"

// LeaderboardType selects the ranking metric.
type LeaderboardType string

const (
	LeaderboardAllTime       LeaderboardType = "all_time"
	LeaderboardWeeklyXP      LeaderboardType = "weekly_xp"
	LeaderboardStreak        LeaderboardType = "streak"
	LeaderboardMonthlyBadges LeaderboardType = "monthly_badges"
)

// LeaderboardTypes lists every board.
var LeaderboardTypes = []LeaderboardType{LeaderboardAllTime, LeaderboardWeeklyXP, LeaderboardStreak, LeaderboardMonthlyBadges}

// Valid reports whether t is a known board.
func (t LeaderboardType) Valid() bool {
	for _, known := range LeaderboardTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LeaderboardCandidate is an unranked row in arrival order.
type LeaderboardCandidate struct {
	StudentID string    `db:"student_id"`
	Name      string    `db:"display_name"`
	Value     int       `db:"metric_value"`
	CreatedAt time.Time `db:"created_at"`
}

// LeaderboardEntry is a ranked row.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	StudentID   string `json:"studentId"`
	Name        string `json:"name"`
	MetricValue int    `json:"metricValue"`
}
