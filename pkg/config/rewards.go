package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ActivityReward is the base XP of an activity plus its single performance bonus.
type ActivityReward struct {
	Base  int `yaml:"base"`
	Bonus int `yaml:"bonus"`
}

// StreakTier grants XP to daily logins whose streak reaches MinStreak.
type StreakTier struct {
	MinStreak int `yaml:"min_streak"`
	XP        int `yaml:"xp"`
}

// RewardTable is the XP reward table consumed by the XP calculator.
type RewardTable struct {
	Lesson          ActivityReward `yaml:"lesson"`
	Quiz            ActivityReward `yaml:"quiz"`
	Game            ActivityReward `yaml:"game"`
	WeeklyChallenge int            `yaml:"weekly_challenge"`
	QuizAnswer      int            `yaml:"quiz_answer"`
	DailyLogin      []StreakTier   `yaml:"daily_login"`
}

// DefaultRewardTable returns the stock reward values.
func DefaultRewardTable() RewardTable {
	return RewardTable{
		Lesson:          ActivityReward{Base: 100, Bonus: 25},
		Quiz:            ActivityReward{Base: 75, Bonus: 50},
		Game:            ActivityReward{Base: 50, Bonus: 25},
		WeeklyChallenge: 200,
		QuizAnswer:      10,
		DailyLogin: []StreakTier{
			{MinStreak: 1, XP: 20},
			{MinStreak: 8, XP: 30},
			{MinStreak: 15, XP: 50},
		},
	}
}

// LoadRewardTable reads a YAML reward table. An empty path yields the defaults;
// keys missing from the file keep their default values.
func LoadRewardTable(path string) (RewardTable, error) {
	table := DefaultRewardTable()
	if path == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return RewardTable{}, fmt.Errorf("read reward table: %w", err)
	}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return RewardTable{}, fmt.Errorf("parse reward table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return RewardTable{}, err
	}
	return table.Clone(), nil
}

// Validate rejects negative rewards and malformed streak tiers.
func (t RewardTable) Validate() error {
	values := map[string]int{
		"lesson.base":      t.Lesson.Base,
		"lesson.bonus":     t.Lesson.Bonus,
		"quiz.base":        t.Quiz.Base,
		"quiz.bonus":       t.Quiz.Bonus,
		"game.base":        t.Game.Base,
		"game.bonus":       t.Game.Bonus,
		"weekly_challenge": t.WeeklyChallenge,
		"quiz_answer":      t.QuizAnswer,
	}
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("reward table: %s must not be negative", key)
		}
	}
	if len(t.DailyLogin) == 0 {
		return fmt.Errorf("reward table: daily_login requires at least one tier")
	}
	for i, tier := range t.DailyLogin {
		if tier.MinStreak < 1 || tier.XP < 0 {
			return fmt.Errorf("reward table: daily_login tier %d is invalid", i)
		}
		if i > 0 && tier.MinStreak <= t.DailyLogin[i-1].MinStreak {
			return fmt.Errorf("reward table: daily_login tiers must be strictly ascending")
		}
	}
	return nil
}

// Clone returns a deep copy with tiers sorted by MinStreak.
func (t RewardTable) Clone() RewardTable {
	out := t
	out.DailyLogin = make([]StreakTier, len(t.DailyLogin))
	copy(out.DailyLogin, t.DailyLogin)
	sort.SliceStable(out.DailyLogin, func(i, j int) bool {
		return out.DailyLogin[i].MinStreak < out.DailyLogin[j].MinStreak
	})
	return out
}
