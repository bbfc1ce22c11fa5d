package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type analyticsRepository interface {
	Summary(ctx context.Context, filter models.AnalysisFilter) (*models.ResultsAnalysis, error)
	GradeDistribution(ctx context.Context, filter models.AnalysisFilter) ([]models.GradeBucket, error)
	TopPerformers(ctx context.Context, filter models.AnalysisFilter) ([]models.TopPerformer, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AnalyticsService aggregates results into an analysis view, with Redis
// caching in front of the database aggregation.
type AnalyticsService struct {
	repo    analyticsRepository
	cache   analyticsCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service. The cache and
// metrics are optional.
func NewAnalyticsService(repo analyticsRepository, cache analyticsCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Analyze returns the aggregated analysis for the filter scope. The boolean
// indicates whether the payload came from cache.
func (s *AnalyticsService) Analyze(ctx context.Context, filter models.AnalysisFilter) (*models.ResultsAnalysis, bool, error) {
	cacheKey := analysisCacheKey(filter)

	if s.cache != nil {
		var cached models.ResultsAnalysis
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("analytics cache lookup failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	start := time.Now()
	analysis, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate results")
	}

	distribution, err := s.repo.GradeDistribution(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade distribution")
	}
	analysis.Distribution = distribution

	performers, err := s.repo.TopPerformers(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top performers")
	}
	analysis.TopPerformers = performers

	analysis.ClassLevelID = filter.ClassLevelID
	analysis.SubjectID = filter.SubjectID
	analysis.TermID = filter.TermID

	s.metrics.ObserveDBQuery("results_analysis", time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, analysis, s.ttl); err != nil {
			s.logger.Warn("failed to cache analysis", zap.Error(err))
		}
	}

	return analysis, false, nil
}

func analysisCacheKey(filter models.AnalysisFilter) string {
	parts := []string{"analytics", "results", filter.ClassLevelID, filter.SubjectID, filter.TermID, fmt.Sprintf("%d", filter.TopN)}
	return strings.Join(parts, ":")
}
