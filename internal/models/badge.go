package models

import "time"

// RequirementType selects how badge progress is measured.
type RequirementType string

const (
	RequirementCount  RequirementType = "count"
	RequirementScore  RequirementType = "score"
	RequirementStreak RequirementType = "streak"
	RequirementSpeed  RequirementType = "speed"
)

// BadgeTypeSpecial marks badges evaluated on every activity.
const BadgeTypeSpecial = "special"

// Badge is a catalog entry.
type Badge struct {
	BadgeID          string          `db:"badge_id" json:"badgeId"`
	Name             string          `db:"name" json:"name"`
	Description      string          `db:"description" json:"description"`
	BadgeType        string          `db:"badge_type" json:"badgeType"`
	RequirementType  RequirementType `db:"requirement_type" json:"requirementType"`
	RequirementValue int             `db:"requirement_value" json:"requirementValue"`
	XPReward         int             `db:"xp_reward" json:"xpReward"`
}

// StudentBadge records an award.
type StudentBadge struct {
	StudentID string    `db:"student_id" json:"studentId"`
	BadgeID   string    `db:"badge_id" json:"badgeId"`
	EarnedAt  time.Time `db:"earned_at" json:"earnedAt"`
	Progress  int       `db:"progress" json:"progress"`
}

// EarnedBadge joins a catalog entry with its award details.
type EarnedBadge struct {
	Badge
	EarnedAt time.Time `db:"earned_at" json:"earnedAt"`
	Progress int       `db:"progress" json:"progress"`
}

// ActivityFacts is the activity data badge rules inspect.
type ActivityFacts struct {
	Score             int
	CompletionSeconds int
}
