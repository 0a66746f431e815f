package models

import "time"

// DailyStreak tracks consecutive login days.
type DailyStreak struct {
	StudentID      string     `db:"student_id" json:"studentId"`
	CurrentStreak  int        `db:"current_streak" json:"currentStreak"`
	LongestStreak  int        `db:"longest_streak" json:"longestStreak"`
	LastLoginDate  *time.Time `db:"last_login_date" json:"lastLoginDate,omitempty"`
	TotalLoginDays int        `db:"total_login_days" json:"totalLoginDays"`
}

// LoginOutcome is the result of recording a daily login.
type LoginOutcome struct {
	Streak          DailyStreak
	XPEarned        int
	AlreadyCredited bool
}
