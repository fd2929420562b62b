package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/namematch"
)

// ModelNameMatcher asks an external language model to pick the closest known name.
type ModelNameMatcher interface {
	MatchName(ctx context.Context, name string, candidates []string) (*namematch.Result, error)
}

// NameMatcherConfig tunes the matching tiers.
type NameMatcherConfig struct {
	HonorificPrefixes  []string
	FuzzyThreshold     float64
	ModelMinConfidence float64
	ModelTimeout       time.Duration
}

// NameMatcher resolves free-text teacher names through exact, normalized, fuzzy
// and model tiers, stopping at the first tier that produces a match.
type NameMatcher struct {
	nameToID   map[string]string
	names      []string
	normalized map[string]string
	model      ModelNameMatcher
	cfg        NameMatcherConfig
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewNameMatcher builds the lookup tables once. model may be nil to disable the last tier.
func NewNameMatcher(nameToID map[string]string, model ModelNameMatcher, cfg NameMatcherConfig, metrics *MetricsService, logger *zap.Logger) *NameMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.85
	}
	if cfg.ModelMinConfidence <= 0 {
		cfg.ModelMinConfidence = 0.60
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 10 * time.Second
	}
	if len(cfg.HonorificPrefixes) == 0 {
		cfg.HonorificPrefixes = []string{"ครู"}
	}

	m := &NameMatcher{
		nameToID:   make(map[string]string, len(nameToID)),
		names:      make([]string, 0, len(nameToID)),
		normalized: make(map[string]string, len(nameToID)),
		model:      model,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
	for name, id := range nameToID {
		m.nameToID[name] = id
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	for _, name := range m.names {
		key := m.normalize(name)
		if _, exists := m.normalized[key]; !exists {
			m.normalized[key] = m.nameToID[name]
		}
	}
	return m
}

// Match resolves one raw name. It never returns an error: every failure is a not_found result.
func (m *NameMatcher) Match(ctx context.Context, raw string) models.NameMatch {
	result := m.match(ctx, raw)
	if m.metrics != nil {
		m.metrics.RecordNameMatch(string(result.Method))
	}
	return result
}

// normalizedConfidence is reported for names that only match once honorifics and case are ignored.
const normalizedConfidence = 0.95

func (m *NameMatcher) match(ctx context.Context, raw string) models.NameMatch {
	name := strings.TrimSpace(raw)
	if name == "" {
		return models.NameMatch{Method: models.MatchNotFound}
	}

	if id, ok := m.nameToID[name]; ok {
		return models.NameMatch{TeacherID: id, Confidence: 1, Method: models.MatchExact}
	}

	if id, ok := m.normalized[m.normalize(name)]; ok {
		return models.NameMatch{TeacherID: id, Confidence: normalizedConfidence, Method: models.MatchNormalized}
	}

	bestName, bestScore := "", 0.0
	for _, candidate := range m.names {
		if score := similarityRatio(name, candidate); score > bestScore {
			bestName, bestScore = candidate, score
		}
	}
	if bestName != "" && bestScore >= m.cfg.FuzzyThreshold {
		return models.NameMatch{TeacherID: m.nameToID[bestName], Confidence: bestScore, Method: models.MatchFuzzy}
	}

	if m.model == nil {
		return models.NameMatch{Method: models.MatchNotFound}
	}
	return m.matchWithModel(ctx, name)
}

func (m *NameMatcher) matchWithModel(ctx context.Context, name string) models.NameMatch {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ModelTimeout)
	defer cancel()

	result, err := m.model.MatchName(ctx, name, m.names)
	if err != nil {
		if !errors.Is(err, namematch.ErrDisabled) {
			m.logger.Warn("model name match failed", zap.String("name", name), zap.Error(err))
		}
		return models.NameMatch{Method: models.MatchNotFound}
	}
	if result == nil || result.MatchedName == "" {
		return models.NameMatch{Method: models.MatchNotFound}
	}
	id, ok := m.nameToID[result.MatchedName]
	if !ok {
		m.logger.Debug("model suggested unknown name", zap.String("name", name), zap.String("suggested", result.MatchedName))
		return models.NameMatch{Method: models.MatchNotFound}
	}
	confidence := clampConfidence(result.Confidence)
	if confidence < m.cfg.ModelMinConfidence {
		return models.NameMatch{Method: models.MatchNotFound}
	}
	return models.NameMatch{TeacherID: id, Confidence: confidence, Method: models.MatchAIFuzzy}
}

// CanonicalName returns a display name registered for the teacher ID, preferring the longest.
func (m *NameMatcher) CanonicalName(teacherID string) string {
	best := ""
	for _, name := range m.names {
		if m.nameToID[name] == teacherID && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return teacherID
	}
	return best
}

func (m *NameMatcher) normalize(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, prefix := range m.cfg.HonorificPrefixes {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			trimmed = strings.TrimPrefix(trimmed, prefix)
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(trimmed))
}

func clampConfidence(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	}
	return value
}

type resultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedModelMatcher memoises model answers per name and candidate list.
type CachedModelMatcher struct {
	inner   ModelNameMatcher
	cache   resultCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCachedModelMatcher wraps a model matcher with a cache. A nil cache disables caching.
func NewCachedModelMatcher(inner ModelNameMatcher, cache resultCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CachedModelMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedModelMatcher{inner: inner, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// MatchName serves cached answers and stores fresh ones.
func (c *CachedModelMatcher) MatchName(ctx context.Context, name string, candidates []string) (*namematch.Result, error) {
	if c.cache == nil {
		return c.inner.MatchName(ctx, name, candidates)
	}
	key := modelCacheKey(name, candidates)

	var cached namematch.Result
	start := time.Now()
	err := c.cache.Get(ctx, key, &cached)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Debug("name match cache read failed", zap.String("key", key), zap.Error(err))
	}

	result, err := c.inner.MatchName(ctx, name, candidates)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := c.cache.Set(ctx, key, result, c.ttl); err != nil {
			c.logger.Debug("name match cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

func modelCacheKey(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(name + "\x00" + strings.Join(sorted, "\x1f")))
	return "namematch:" + hex.EncodeToString(sum[:])
}

type purgeableCache interface {
	resultCache
	Purge(ctx context.Context) (int, error)
}

const rosterFingerprintKey = "roster_fingerprint"

// InvalidateModelCache drops every cached model answer when the canonical name
// list differs from the one recorded in the cache, then records the new list.
// It reports whether a purge ran.
func InvalidateModelCache(ctx context.Context, cache purgeableCache, names []string, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fingerprint := rosterFingerprint(names)

	var stored string
	err := cache.Get(ctx, rosterFingerprintKey, &stored)
	switch {
	case err == nil && stored == fingerprint:
		return false, nil
	case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
		return false, err
	}

	deleted, err := cache.Purge(ctx)
	if err != nil {
		return false, err
	}
	if err := cache.Set(ctx, rosterFingerprintKey, fingerprint, 0); err != nil {
		return true, err
	}
	logger.Info("roster changed, name match cache purged", zap.Int("deleted", deleted), zap.String("fingerprint", fingerprint))
	return true, nil
}

func rosterFingerprint(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, "\x1f")))
	return hex.EncodeToString(sum[:])
}
