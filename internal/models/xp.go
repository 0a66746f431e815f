package models

import "time"

// ActivityType classifies an XP-earning event.
type ActivityType string

const (
	ActivityLesson          ActivityType = "lesson"
	ActivityQuiz            ActivityType = "quiz"
	ActivityGame            ActivityType = "game"
	ActivityDailyLogin      ActivityType = "daily_login"
	ActivityBadge           ActivityType = "badge"
	ActivityWeeklyChallenge ActivityType = "weekly_challenge"
)

// QuizAnswerReasonPrefix marks per-answer quiz credits in the ledger. They are
// logged as quiz XP but are not completed quizzes.
const QuizAnswerReasonPrefix = "quiz_answer:"

// Valid reports whether a is a storable activity type.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityLesson, ActivityQuiz, ActivityGame, ActivityDailyLogin, ActivityBadge, ActivityWeeklyChallenge:
		return true
	}
	return false
}

// XPTransaction is one immutable ledger row.
type XPTransaction struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"studentId"`
	ActivityType ActivityType `db:"activity_type" json:"activityType"`
	XPEarned     int          `db:"xp_earned" json:"xpEarned"`
	Reason       *string      `db:"reason" json:"reason,omitempty"`
	EarnedAt     time.Time    `db:"earned_at" json:"earnedAt"`
}

// XPEntry is a request to append XP to the ledger.
type XPEntry struct {
	StudentID   string
	DisplayName string
	XP          int
	Activity    ActivityType
	Reason      string
	EarnedAt    time.Time
}

// XPAward is the calculator output.
type XPAward struct {
	BaseXP  int `json:"baseXP"`
	BonusXP int `json:"bonusXP"`
	Total   int `json:"total"`
}

// Performance carries the attributes bonus rules look at.
type Performance struct {
	IsFirstAttempt    bool
	IsPerfect         bool
	Score             int
	IsHighScore       bool
	Streak            int
	CompletionSeconds int
}
