package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

type fakeLeaderboardStore struct {
	rows   map[models.LeaderboardType][]models.LeaderboardCandidate
	err    error
	calls  int
	since  time.Time
	limits []int
}

func (f *fakeLeaderboardStore) Candidates(_ context.Context, board models.LeaderboardType, since time.Time, limit int) ([]models.LeaderboardCandidate, error) {
	f.calls++
	f.since = since
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[board], nil
}

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
	ttls  map[string]time.Duration
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func candidates(values ...int) []models.LeaderboardCandidate {
	out := make([]models.LeaderboardCandidate, len(values))
	for i, v := range values {
		id := string(rune('a' + i))
		out[i] = models.LeaderboardCandidate{StudentID: "stu-" + id, Name: "Student " + id, Value: v}
	}
	return out
}

func TestRankCandidatesStableAndFiltered(t *testing.T) {
	entries := RankCandidates(candidates(50, 0, 80, 50, -3, 80), 0)
	require.Len(t, entries, 4)
	assert.Equal(t, "stu-c", entries[0].StudentID)
	assert.Equal(t, "stu-f", entries[1].StudentID)
	assert.Equal(t, "stu-a", entries[2].StudentID)
	assert.Equal(t, "stu-d", entries[3].StudentID)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Positive(t, e.MetricValue)
	}
}

func TestRankCandidatesCapsAndFallsBackToID(t *testing.T) {
	values := make([]int, 75)
	for i := range values {
		values[i] = 100 - i%10
	}
	entries := RankCandidates(candidates(values...), DefaultLeaderboardLimit)
	assert.Len(t, entries, DefaultLeaderboardLimit)

	unnamed := RankCandidates([]models.LeaderboardCandidate{{StudentID: "stu-9", Value: 3}}, 10)
	assert.Equal(t, "stu-9", unnamed[0].Name)
}

func TestLeaderboardGetRejectsUnknownType(t *testing.T) {
	svc := NewLeaderboardService(&fakeLeaderboardStore{}, nil, LeaderboardConfig{}, nil)
	_, _, err := svc.Get(context.Background(), "fastest")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "type must be one of")
}

func TestLeaderboardGetDefaultsToAllTime(t *testing.T) {
	store := &fakeLeaderboardStore{rows: map[models.LeaderboardType][]models.LeaderboardCandidate{
		models.LeaderboardAllTime: candidates(10, 20),
	}}
	svc := NewLeaderboardService(store, nil, LeaderboardConfig{Limit: 500}, nil)

	resp, hit, err := svc.Get(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.LeaderboardAllTime, resp.Type)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "stu-b", resp.Leaderboard[0].StudentID)
	assert.Equal(t, []int{DefaultLeaderboardLimit}, store.limits)
}

func TestLeaderboardGetCachesAndInvalidates(t *testing.T) {
	store := &fakeLeaderboardStore{rows: map[models.LeaderboardType][]models.LeaderboardCandidate{
		models.LeaderboardWeeklyXP: candidates(5, 9),
	}}
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil)
	svc := NewLeaderboardService(store, cache, LeaderboardConfig{CacheTTL: 30 * time.Second}, nil)
	ctx := context.Background()

	_, hit, err := svc.Get(ctx, "weekly_xp")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 30*time.Second, repo.ttls["lb:weekly_xp"])

	resp, hit, err := svc.Get(ctx, "weekly_xp")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, 1, store.calls)

	require.NoError(t, svc.Invalidate(ctx))
	_, hit, err = svc.Get(ctx, "weekly_xp")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, store.calls)
}

func TestLeaderboardMonthlyWindowUsesCalendar(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	store := &fakeLeaderboardStore{}
	svc := NewLeaderboardService(store, nil, LeaderboardConfig{Location: loc}, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC) }

	_, _, err := svc.Get(context.Background(), "monthly_badges")
	require.NoError(t, err)
	assert.True(t, store.since.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, loc)))
}

func TestLeaderboardMyRank(t *testing.T) {
	values := make([]int, 60)
	for i := range values {
		values[i] = 100 - i
	}
	cands := candidates(values...)
	cands[55].StudentID = "stu-me"
	store := &fakeLeaderboardStore{rows: map[models.LeaderboardType][]models.LeaderboardCandidate{
		models.LeaderboardAllTime: cands,
	}}
	svc := NewLeaderboardService(store, nil, LeaderboardConfig{}, nil)

	resp, err := svc.MyRank(context.Background(), "all_time", "stu-me")
	require.NoError(t, err)
	require.NotNil(t, resp.Rank)
	assert.Equal(t, 56, *resp.Rank)
	assert.Equal(t, 45, resp.MetricValue)
	assert.Equal(t, []int{0}, store.limits)

	missing, err := svc.MyRank(context.Background(), "all_time", "stu-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing.Rank)
}

func TestLeaderboardStorageErrorIsInternal(t *testing.T) {
	store := &fakeLeaderboardStore{err: errors.New("timeout")}
	svc := NewLeaderboardService(store, nil, LeaderboardConfig{}, nil)

	_, _, err := svc.Get(context.Background(), "streak")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestLeaderboardExportCSV(t *testing.T) {
	store := &fakeLeaderboardStore{rows: map[models.LeaderboardType][]models.LeaderboardCandidate{
		models.LeaderboardStreak: candidates(3, 7),
	}}
	svc := NewLeaderboardService(store, nil, LeaderboardConfig{}, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC) }

	out, err := svc.Export(context.Background(), "streak", "")
	require.NoError(t, err)
	assert.Equal(t, "leaderboard-streak-20240604.csv", out.Filename)
	assert.Contains(t, out.ContentType, "text/csv")
	body := string(out.Payload)
	assert.Contains(t, body, "Rank,Student ID,Name,Value")
	assert.Contains(t, body, "1,stu-b,Student b,7")

	_, err = svc.Export(context.Background(), "streak", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
