package service

import (
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/config"
)

const perfectQuizScore = 100

// XPCalculator maps an activity and its performance to an XP award. It holds
// a private copy of the reward table and has no side effects.
type XPCalculator struct {
	table config.RewardTable
}

// NewXPCalculator copies table so later mutation by the caller has no effect.
func NewXPCalculator(table config.RewardTable) *XPCalculator {
	return &XPCalculator{table: table.Clone()}
}

// Calculate returns base, bonus and total XP. Unknown activities earn nothing.
func (c *XPCalculator) Calculate(activity models.ActivityType, perf models.Performance) models.XPAward {
	var base, bonus int
	switch activity {
	case models.ActivityLesson:
		base = c.table.Lesson.Base
		if perf.IsFirstAttempt && perf.IsPerfect {
			bonus = c.table.Lesson.Bonus
		}
	case models.ActivityQuiz:
		base = c.table.Quiz.Base
		if perf.Score == perfectQuizScore {
			bonus = c.table.Quiz.Bonus
		}
	case models.ActivityGame:
		base = c.table.Game.Base
		if perf.IsHighScore {
			bonus = c.table.Game.Bonus
		}
	case models.ActivityDailyLogin:
		base = c.LoginXP(perf.Streak)
	case models.ActivityWeeklyChallenge:
		base = c.table.WeeklyChallenge
	default:
		return models.XPAward{}
	}
	return models.XPAward{BaseXP: base, BonusXP: bonus, Total: base + bonus}
}

// LoginXP returns the tier XP for a streak length; streaks below the first
// tier earn nothing.
func (c *XPCalculator) LoginXP(streak int) int {
	xp := 0
	for _, tier := range c.table.DailyLogin {
		if streak >= tier.MinStreak {
			xp = tier.XP
		}
	}
	return xp
}

// QuizAnswerXP is the credit for a first correct answer to a question.
func (c *XPCalculator) QuizAnswerXP() int {
	return c.table.QuizAnswer
}
