package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles of the ranking bot.
// Flags can be flipped at runtime; readers see the change on the next check.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Predefined feature flag names.
const (
	FeatureWeeklyPost      = "ranking.weekly_post"      // Weekly board on the configured weekday
	FeatureStatsCache      = "ranking.stats_cache"      // Redis cache in front of the gameinfo API
	FeatureDistributedLock = "ranking.distributed_lock" // Redis lock around the daily cycle
	FeatureDailyChart      = "ranking.daily_chart"      // Text bar chart under board lines
)

var defaultFeatures = []Feature{
	{Name: FeatureWeeklyPost, Description: "Post the weekly board on the configured weekday", Enabled: true},
	// Both need redis; they are no-ops when it is not configured.
	{Name: FeatureStatsCache, Description: "Cache guild statistics in redis", Enabled: true},
	{Name: FeatureDistributedLock, Description: "Hold a redis lock while the daily cycle runs", Enabled: true},
	{Name: FeatureDailyChart, Description: "Draw a text bar chart under each board line", Enabled: false},
}

// LoadFeatureFlags loads feature flags from environment variables.
// Format: FEATURE_<NAME>=true|false, e.g. FEATURE_RANKING_DAILY_CHART=true.
// Unparseable values keep the default.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature, len(defaultFeatures))}

	for _, f := range defaultFeatures {
		f := f
		if val := os.Getenv(featureNameToEnvKey(f.Name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				f.Enabled = b
			}
		}
		ff.features[f.Name] = &f
	}

	return ff
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ranking.daily_chart" -> "FEATURE_RANKING_DAILY_CHART"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// Enabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) Enabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Checker returns a func reporting the flag's current state.
func (ff *FeatureFlags) Checker(featureName string) func() bool {
	return func() bool { return ff.Enabled(featureName) }
}

// SetEnabled flips a feature at runtime.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetEnabled(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetEnabled(featureName, false)
}

// GetAllFeatures returns copies of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Errors ---

// ErrFeatureNotFound is returned when toggling an unknown feature.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
