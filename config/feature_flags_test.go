package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()

	assert.True(t, ff.Enabled(FeatureWeeklyPost))
	assert.True(t, ff.Enabled(FeatureStatsCache))
	assert.True(t, ff.Enabled(FeatureDistributedLock))
	assert.False(t, ff.Enabled(FeatureDailyChart))
	assert.False(t, ff.Enabled("ranking.unknown"))
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEATURE_RANKING_DAILY_CHART", "true")
	t.Setenv("FEATURE_RANKING_WEEKLY_POST", "false")
	t.Setenv("FEATURE_RANKING_STATS_CACHE", "50")

	ff := LoadFeatureFlags()

	assert.True(t, ff.Enabled(FeatureDailyChart))
	assert.False(t, ff.Enabled(FeatureWeeklyPost))
	assert.True(t, ff.Enabled(FeatureStatsCache), "unparseable values keep the default")
}

func TestFeatureFlags_RuntimeToggle(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()
	chart := ff.Checker(FeatureDailyChart)

	assert.False(t, chart())
	require.NoError(t, ff.EnableFeature(FeatureDailyChart))
	assert.True(t, chart())
	require.NoError(t, ff.DisableFeature(FeatureDailyChart))
	assert.False(t, chart())

	assert.ErrorIs(t, ff.EnableFeature("nope"), ErrFeatureNotFound)
	assert.False(t, ff.Enabled("nope"))
}

func TestFeatureFlags_GetAllFeaturesSorted(t *testing.T) {
	clearEnv(t)
	all := LoadFeatureFlags().GetAllFeatures()

	require.Len(t, all, 4)
	assert.Equal(t, FeatureDailyChart, all[0].Name)
	assert.Equal(t, FeatureWeeklyPost, all[3].Name)
}
