package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// LeaderboardRepository loads ranking candidates, already filtered to a
// positive metric and ordered by metric then arrival.
type LeaderboardRepository struct {
	db *sqlx.DB
}

// NewLeaderboardRepository constructs a leaderboard repository.
func NewLeaderboardRepository(db *sqlx.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

var leaderboardQueries = map[models.LeaderboardType]string{
	models.LeaderboardAllTime: `
SELECT student_id, display_name, total_xp AS metric_value, created_at
FROM students
WHERE total_xp > 0
ORDER BY total_xp DESC, created_at ASC, student_id`,
	models.LeaderboardWeeklyXP: `
SELECT student_id, display_name, weekly_xp AS metric_value, created_at
FROM students
WHERE weekly_xp > 0
ORDER BY weekly_xp DESC, created_at ASC, student_id`,
	models.LeaderboardStreak: `
SELECT ds.student_id, COALESCE(s.display_name, '') AS display_name, ds.current_streak AS metric_value,
	COALESCE(s.created_at, 'epoch'::timestamptz) AS created_at
FROM daily_streaks ds
LEFT JOIN students s ON s.student_id = ds.student_id
WHERE ds.current_streak > 0
ORDER BY ds.current_streak DESC, created_at ASC, ds.student_id`,
	models.LeaderboardMonthlyBadges: `
SELECT s.student_id, s.display_name, COUNT(*) AS metric_value, s.created_at
FROM student_badges sb
JOIN students s ON s.student_id = sb.student_id
WHERE sb.earned_at >= $1
GROUP BY s.student_id, s.display_name, s.created_at
HAVING COUNT(*) > 0
ORDER BY metric_value DESC, s.created_at ASC, s.student_id`,
}

// Candidates returns rows for board. since bounds the monthly badge window;
// a non-positive limit returns every row.
func (r *LeaderboardRepository) Candidates(ctx context.Context, board models.LeaderboardType, since time.Time, limit int) ([]models.LeaderboardCandidate, error) {
	query, ok := leaderboardQueries[board]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard %q", board)
	}
	var args []interface{}
	if board == models.LeaderboardMonthlyBadges {
		args = append(args, since)
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}
	var rows []models.LeaderboardCandidate
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load %s leaderboard: %w", board, err)
	}
	return rows, nil
}
