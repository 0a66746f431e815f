package dto

import (
	"time"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// CompleteLessonRequest reports a finished lesson.
type CompleteLessonRequest struct {
	LessonID       string `json:"lessonId" validate:"required,max=64"`
	IsFirstAttempt bool   `json:"isFirstAttempt"`
	IsPerfect      bool   `json:"isPerfect"`
	CompletionTime int    `json:"completionTime" validate:"gte=0"`
}

// CompleteGameRequest reports a finished mini-game.
type CompleteGameRequest struct {
	LessonID       string `json:"lessonId" validate:"required,max=64"`
	GameType       string `json:"gameType" validate:"required,max=64"`
	Score          int    `json:"score" validate:"gte=0"`
	IsHighScore    bool   `json:"isHighScore"`
	Attempts       int    `json:"attempts" validate:"gte=0"`
	CompletionTime int    `json:"completionTime" validate:"gte=0"`
}

// WeeklyChallengeRequest claims a weekly challenge.
type WeeklyChallengeRequest struct {
	ChallengeID string `json:"challengeId" validate:"required,max=64"`
}

// RewardResult describes everything an activity changed. Warnings lists
// enrichment steps that failed after the XP was recorded.
type RewardResult struct {
	XPEarned        int            `json:"xpEarned"`
	BaseXP          int            `json:"baseXP"`
	BonusXP         int            `json:"bonusXP"`
	AlreadyCredited bool           `json:"alreadyCredited,omitempty"`
	NewBadges       []models.Badge `json:"newBadges"`
	ProgressUpdated bool           `json:"progressUpdated"`
	Warnings        []string       `json:"warnings,omitempty"`
}

// DailyLoginResult is the streak outcome of a login.
type DailyLoginResult struct {
	XPEarned        int            `json:"xpEarned"`
	CurrentStreak   int            `json:"currentStreak"`
	LongestStreak   int            `json:"longestStreak"`
	AlreadyCredited bool           `json:"alreadyCredited"`
	NewBadges       []models.Badge `json:"newBadges"`
	Warnings        []string       `json:"warnings,omitempty"`
}

// StudentStats are the XP aggregates of a student.
type StudentStats struct {
	TotalXP      int        `json:"totalXp"`
	WeeklyXP     int        `json:"weeklyXp"`
	MonthlyXP    int        `json:"monthlyXp"`
	TotalBadges  int        `json:"totalBadges"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// StreakView is the streak block of the progress summary.
type StreakView struct {
	CurrentStreak  int     `json:"currentStreak"`
	LongestStreak  int     `json:"longestStreak"`
	TotalLoginDays int     `json:"totalLoginDays"`
	LastLoginDate  *string `json:"lastLoginDate,omitempty"`
}

// ProgressSummary is the rewards dashboard of a student.
type ProgressSummary struct {
	Stats    StudentStats           `json:"stats"`
	RecentXP []models.XPTransaction `json:"recentXP"`
	Badges   []models.EarnedBadge   `json:"badges"`
	Streak   StreakView             `json:"streak"`
}

// BadgeStatus is a catalog entry with the caller's award state.
type BadgeStatus struct {
	models.Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
}
