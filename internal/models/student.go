package models

import "time"

// Student holds the XP aggregates maintained by the ledger.
type Student struct {
	StudentID    string     `db:"student_id" json:"studentId"`
	DisplayName  string     `db:"display_name" json:"displayName"`
	TotalXP      int        `db:"total_xp" json:"totalXp"`
	WeeklyXP     int        `db:"weekly_xp" json:"weeklyXp"`
	MonthlyXP    int        `db:"monthly_xp" json:"monthlyXp"`
	TotalBadges  int        `db:"total_badges" json:"totalBadges"`
	LastActivity *time.Time `db:"last_activity" json:"lastActivity,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
