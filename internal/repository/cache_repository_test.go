package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, "rewards")
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "lb:all_time", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "lb:all_time", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "lb:*"))
	require.NoError(t, repo.Ping(ctx))
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	assert.Equal(t, "rewards:lb:weekly_xp", NewCacheRepository(nil, "rewards").key("lb:weekly_xp"))
	assert.Equal(t, "lb:weekly_xp", NewCacheRepository(nil, "").key("lb:weekly_xp"))
}
