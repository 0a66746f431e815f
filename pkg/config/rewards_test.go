package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRewardTableDefaultsWhenPathEmpty(t *testing.T) {
	table, err := LoadRewardTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRewardTable(), table)
}

func TestLoadRewardTableOverridesSelectedKeys(t *testing.T) {
	path := writeTable(t, `
lesson:
  base: 120
daily_login:
  - min_streak: 1
    xp: 10
  - min_streak: 3
    xp: 40
`)
	table, err := LoadRewardTable(path)
	require.NoError(t, err)
	assert.Equal(t, 120, table.Lesson.Base)
	assert.Equal(t, 25, table.Lesson.Bonus)
	assert.Equal(t, 75, table.Quiz.Base)
	require.Len(t, table.DailyLogin, 2)
	assert.Equal(t, StreakTier{MinStreak: 3, XP: 40}, table.DailyLogin[1])
}

func TestLoadRewardTableRejectsNegativeValues(t *testing.T) {
	path := writeTable(t, "quiz:\n  bonus: -5\n")
	_, err := LoadRewardTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quiz.bonus")
}

func TestLoadRewardTableRejectsUnorderedTiers(t *testing.T) {
	path := writeTable(t, `
daily_login:
  - min_streak: 8
    xp: 30
  - min_streak: 1
    xp: 20
`)
	_, err := LoadRewardTable(path)
	require.Error(t, err)
}

func TestRewardTableCloneIsIndependent(t *testing.T) {
	original := DefaultRewardTable()
	clone := original.Clone()
	clone.DailyLogin[0].XP = 999
	assert.Equal(t, 20, original.DailyLogin[0].XP)
}
