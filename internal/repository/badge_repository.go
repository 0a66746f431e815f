package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

var errAlreadyAwarded = errors.New("badge already awarded")

const badgeColumns = `badge_id, name, description, badge_type, requirement_type, requirement_value, xp_reward`

// BadgeRepository reads the badge catalog and records awards.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs a badge repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListAll returns the whole catalog.
func (r *BadgeRepository) ListAll(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	query := `SELECT ` + badgeColumns + ` FROM badges ORDER BY badge_type, requirement_value, badge_id`
	if err := r.db.SelectContext(ctx, &badges, query); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// ListByTypes returns catalog entries whose badge_type is in types.
func (r *BadgeRepository) ListByTypes(ctx context.Context, types []string) ([]models.Badge, error) {
	var badges []models.Badge
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE badge_type = ANY($1) ORDER BY requirement_value, badge_id`
	if err := r.db.SelectContext(ctx, &badges, query, pq.Array(types)); err != nil {
		return nil, fmt.Errorf("list badges by type: %w", err)
	}
	return badges, nil
}

// EarnedIDs returns the set of badge ids a student owns.
func (r *BadgeRepository) EarnedIDs(ctx context.Context, studentID string) (map[string]struct{}, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT badge_id FROM student_badges WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("list earned badge ids: %w", err)
	}
	earned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		earned[id] = struct{}{}
	}
	return earned, nil
}

// ListEarned returns a student's badges, newest first.
func (r *BadgeRepository) ListEarned(ctx context.Context, studentID string) ([]models.EarnedBadge, error) {
	const query = `
SELECT b.badge_id, b.name, b.description, b.badge_type, b.requirement_type, b.requirement_value, b.xp_reward,
	sb.earned_at, sb.progress
FROM student_badges sb
JOIN badges b ON b.badge_id = sb.badge_id
WHERE sb.student_id = $1
ORDER BY sb.earned_at DESC, b.badge_id`
	var badges []models.EarnedBadge
	if err := r.db.SelectContext(ctx, &badges, query, studentID); err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}
	return badges, nil
}

// CountEarned returns how many badges a student owns.
func (r *BadgeRepository) CountEarned(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_badges WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count earned badges: %w", err)
	}
	return count, nil
}

// CountByActivity counts completed activities of one type from the ledger.
// Per-answer quiz credits are excluded.
func (r *BadgeRepository) CountByActivity(ctx context.Context, studentID string, activity models.ActivityType) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM xp_transactions
WHERE student_id = $1 AND activity_type = $2 AND COALESCE(reason, '') NOT LIKE $3`
	if err := r.db.GetContext(ctx, &count, query, studentID, activity, models.QuizAnswerReasonPrefix+"%"); err != nil {
		return 0, fmt.Errorf("count %s transactions: %w", activity, err)
	}
	return count, nil
}

// CountPerfectQuizzes counts quiz attempts scored 100.
func (r *BadgeRepository) CountPerfectQuizzes(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM quiz_attempts WHERE student_id = $1 AND score = 100`, studentID); err != nil {
		return 0, fmt.Errorf("count perfect quizzes: %w", err)
	}
	return count, nil
}

// CurrentStreak returns the student's current login streak, zero when none is recorded.
func (r *BadgeRepository) CurrentStreak(ctx context.Context, studentID string) (int, error) {
	var streak int
	err := r.db.GetContext(ctx, &streak, `SELECT current_streak FROM daily_streaks WHERE student_id = $1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get current streak: %w", err)
	}
	return streak, nil
}

// Award inserts the student badge, bumps total_badges and credits the badge
// XP in one transaction. It returns false when the badge was already owned,
// including when a concurrent writer won the insert.
func (r *BadgeRepository) Award(ctx context.Context, award models.StudentBadge, xpReward int) (bool, error) {
	if award.EarnedAt.IsZero() {
		award.EarnedAt = time.Now().UTC()
	}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ensureStudent(ctx, tx, award.StudentID, "", award.EarnedAt); err != nil {
			return err
		}
		const insert = `
INSERT INTO student_badges (student_id, badge_id, earned_at, progress)
VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id, badge_id) DO NOTHING
RETURNING badge_id`
		var inserted string
		err := tx.QueryRowxContext(ctx, insert, award.StudentID, award.BadgeID, award.EarnedAt, award.Progress).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return errAlreadyAwarded
		}
		if err != nil {
			return fmt.Errorf("insert student badge: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE students SET total_badges = total_badges + 1 WHERE student_id = $1`, award.StudentID); err != nil {
			return fmt.Errorf("increment total badges: %w", err)
		}
		if xpReward > 0 {
			if _, err := appendXP(ctx, tx, models.XPEntry{
				StudentID: award.StudentID,
				XP:        xpReward,
				Activity:  models.ActivityBadge,
				Reason:    "badge:" + award.BadgeID,
				EarnedAt:  award.EarnedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errAlreadyAwarded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
