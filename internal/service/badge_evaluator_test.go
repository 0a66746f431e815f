package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

type fakeBadgeStore struct {
	mu         sync.Mutex
	catalog    []models.Badge
	earned     map[string]models.StudentBadge
	counts     map[models.ActivityType]int
	perfect    int
	streak     int
	awardErr   map[string]error
	badgeXP    int
	listCalls  [][]string
	countCalls int
}

func newFakeBadgeStore(catalog ...models.Badge) *fakeBadgeStore {
	return &fakeBadgeStore{
		catalog:  catalog,
		earned:   map[string]models.StudentBadge{},
		counts:   map[models.ActivityType]int{},
		awardErr: map[string]error{},
	}
}

func (f *fakeBadgeStore) ListByTypes(_ context.Context, types []string) ([]models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, types)
	var out []models.Badge
	for _, b := range f.catalog {
		for _, t := range types {
			if b.BadgeType == t {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeBadgeStore) EarnedIDs(context.Context, string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]struct{}, len(f.earned))
	for id := range f.earned {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *fakeBadgeStore) CountEarned(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.earned), nil
}

func (f *fakeBadgeStore) CountByActivity(_ context.Context, _ string, activity models.ActivityType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.counts[activity], nil
}

func (f *fakeBadgeStore) CountPerfectQuizzes(context.Context, string) (int, error) {
	return f.perfect, nil
}

func (f *fakeBadgeStore) CurrentStreak(context.Context, string) (int, error) {
	return f.streak, nil
}

func (f *fakeBadgeStore) Award(_ context.Context, award models.StudentBadge, xp int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.awardErr[award.BadgeID]; err != nil {
		return false, err
	}
	if _, ok := f.earned[award.BadgeID]; ok {
		return false, nil
	}
	f.earned[award.BadgeID] = award
	f.badgeXP += xp
	return true, nil
}

func badgeIDs(badges []models.Badge) []string {
	ids := make([]string, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, b.BadgeID)
	}
	return ids
}

var (
	firstLesson   = models.Badge{BadgeID: "first_lesson", BadgeType: "lesson", RequirementType: models.RequirementCount, RequirementValue: 1, XPReward: 25}
	speedyLearner = models.Badge{BadgeID: "speedy_learner", BadgeType: "lesson", RequirementType: models.RequirementSpeed, RequirementValue: 120, XPReward: 30}
	quizWhiz      = models.Badge{BadgeID: "quiz_whiz", BadgeType: "quiz", RequirementType: models.RequirementScore, RequirementValue: 1, XPReward: 50}
	weekWarrior   = models.Badge{BadgeID: "week_warrior", BadgeType: "daily_login", RequirementType: models.RequirementStreak, RequirementValue: 7, XPReward: 70}
	onFire        = models.Badge{BadgeID: "on_fire", BadgeType: models.BadgeTypeSpecial, RequirementType: models.RequirementStreak, RequirementValue: 3}
	collector     = models.Badge{BadgeID: "collector", BadgeType: "badge", RequirementType: models.RequirementCount, RequirementValue: 2, XPReward: 100}
)

func TestBadgeEvaluatorAwardsCountBadgeOnce(t *testing.T) {
	store := newFakeBadgeStore(firstLesson)
	store.counts[models.ActivityLesson] = 1
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first_lesson"}, badgeIDs(awarded))

	for i := 0; i < 3; i++ {
		again, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{})
		require.NoError(t, err)
		assert.Empty(t, again)
	}
	assert.Len(t, store.earned, 1)
	assert.Equal(t, 25, store.badgeXP)
}

func TestBadgeEvaluatorSpeedRequiresLessonWithinLimit(t *testing.T) {
	store := newFakeBadgeStore(speedyLearner)
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{CompletionSeconds: 121})
	require.NoError(t, err)
	assert.Empty(t, awarded)

	awarded, err = eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{})
	require.NoError(t, err)
	assert.Empty(t, awarded)

	awarded, err = eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{CompletionSeconds: 120})
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, 1, store.earned["speedy_learner"].Progress)
}

func TestBadgeEvaluatorScoreOnlyOnPerfectQuiz(t *testing.T) {
	store := newFakeBadgeStore(quizWhiz)
	store.perfect = 1
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityQuiz, models.ActivityFacts{Score: 80})
	require.NoError(t, err)
	assert.Empty(t, awarded)

	awarded, err = eval.Evaluate(context.Background(), "stu-1", models.ActivityQuiz, models.ActivityFacts{Score: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"quiz_whiz"}, badgeIDs(awarded))
}

func TestBadgeEvaluatorStreakAndSpecialBadges(t *testing.T) {
	store := newFakeBadgeStore(weekWarrior, onFire, firstLesson)
	store.streak = 7
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityDailyLogin, models.ActivityFacts{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"week_warrior", "on_fire"}, badgeIDs(awarded))
}

func TestBadgeEvaluatorSkipsSyntheticBadgeActivity(t *testing.T) {
	store := newFakeBadgeStore(collector)
	store.earned["a"] = models.StudentBadge{}
	store.earned["b"] = models.StudentBadge{}
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityBadge, models.ActivityFacts{})
	require.NoError(t, err)
	assert.Empty(t, awarded)
	assert.Empty(t, store.listCalls)
}

func TestBadgeEvaluatorFollowUpPassRunsOnce(t *testing.T) {
	store := newFakeBadgeStore(firstLesson, speedyLearner, collector)
	store.counts[models.ActivityLesson] = 1
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{CompletionSeconds: 60})
	require.NoError(t, err)
	assert.Equal(t, []string{"first_lesson", "speedy_learner", "collector"}, badgeIDs(awarded))
	require.Len(t, store.listCalls, 2)
	assert.Equal(t, []string{"badge"}, store.listCalls[1])
	assert.Equal(t, 25+30+100, store.badgeXP)
}

func TestBadgeEvaluatorNoFollowUpWithoutAward(t *testing.T) {
	store := newFakeBadgeStore(firstLesson, collector)
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{})
	require.NoError(t, err)
	assert.Empty(t, awarded)
	assert.Len(t, store.listCalls, 1)
}

func TestBadgeEvaluatorKeepsAwardsWhenOneFails(t *testing.T) {
	store := newFakeBadgeStore(firstLesson, speedyLearner)
	store.counts[models.ActivityLesson] = 3
	store.awardErr["first_lesson"] = errors.New("db down")
	eval := NewBadgeEvaluator(store, nil, nil)

	awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{CompletionSeconds: 30})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first_lesson")
	assert.Equal(t, []string{"speedy_learner"}, badgeIDs(awarded))
}

func TestBadgeEvaluatorConcurrentPassesAwardOnce(t *testing.T) {
	store := newFakeBadgeStore(firstLesson)
	store.counts[models.ActivityLesson] = 1
	eval := NewBadgeEvaluator(store, nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			awarded, err := eval.Evaluate(context.Background(), "stu-1", models.ActivityLesson, models.ActivityFacts{})
			assert.NoError(t, err)
			mu.Lock()
			total += len(awarded)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, total)
	assert.Equal(t, 25, store.badgeXP)
}
