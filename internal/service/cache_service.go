package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	timetableCachePrefix  = "timetables"
	generationCachePrefix = "timetables-generation"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, generationKey string, generation int64) (bool, error)
	Generation(ctx context.Context, generationKey string) (int64, error)
	BumpGeneration(ctx context.Context, generationKey string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService holds read views keyed by academic year so that one pattern delete
// drops every view a committed mutation could have changed. Each year also carries a
// generation counter; a view loaded before an invalidation is never written back.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// ViewKey builds the cache key of a read view within an academic year.
func ViewKey(academicYearID string, parts ...string) string {
	segments := append([]string{timetableCachePrefix, academicYearID}, parts...)
	return strings.Join(segments, ":")
}

func yearPattern(academicYearID string) string {
	return fmt.Sprintf("%s:%s:*", timetableCachePrefix, academicYearID)
}

func generationKey(academicYearID string) string {
	return generationCachePrefix + ":" + academicYearID
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Generation returns the current generation of an academic year's views. Read it before
// loading the data to be cached and pass it to SetIfCurrent. ok is false when nothing
// should be cached.
func (s *CacheService) Generation(ctx context.Context, academicYearID string) (generation int64, ok bool) {
	if !s.Enabled() || academicYearID == "" {
		return 0, false
	}
	generation, err := s.repo.Generation(ctx, generationKey(academicYearID))
	if err != nil {
		s.logger.Warn("cache generation read failed", zap.String("academic_year_id", academicYearID), zap.Error(err))
		return 0, false
	}
	return generation, true
}

// SetIfCurrent stores the value unless the academic year was invalidated after generation was read.
func (s *CacheService) SetIfCurrent(ctx context.Context, academicYearID string, generation int64, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	written, err := s.repo.SetIfGeneration(ctx, key, value, ttl, generationKey(academicYearID), generation)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	if !written {
		s.logger.Debug("stale cache write skipped", zap.String("key", key), zap.Int64("generation", generation))
	}
	return nil
}

// InvalidateYear drops every cached view of an academic year. Failures are logged, not returned,
// because the mutation that triggered the invalidation has already committed.
func (s *CacheService) InvalidateYear(ctx context.Context, academicYearID string) {
	if !s.Enabled() || academicYearID == "" {
		return
	}
	if err := s.repo.BumpGeneration(ctx, generationKey(academicYearID)); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("academic_year_id", academicYearID), zap.Error(err))
	}
	pattern := yearPattern(academicYearID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
