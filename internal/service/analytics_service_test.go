package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type mockAnalyticsRepo struct {
	summaryCalls int
}

func (m *mockAnalyticsRepo) Summary(ctx context.Context, filter models.AnalysisFilter) (*models.ResultsAnalysis, error) {
	m.summaryCalls++
	avg := 72.5
	return &models.ResultsAnalysis{TotalResults: 40, PublishedCount: 35, AverageScore: &avg}, nil
}

func (m *mockAnalyticsRepo) GradeDistribution(ctx context.Context, filter models.AnalysisFilter) ([]models.GradeBucket, error) {
	return []models.GradeBucket{{Grade: "A", Count: 12}, {Grade: "B", Count: 20}}, nil
}

func (m *mockAnalyticsRepo) TopPerformers(ctx context.Context, filter models.AnalysisFilter) ([]models.TopPerformer, error) {
	performers := make([]models.TopPerformer, 0, filter.TopN)
	for i := 0; i < filter.TopN && i < 2; i++ {
		performers = append(performers, models.TopPerformer{StudentID: "stu", Rank: i + 1})
	}
	return performers, nil
}

type mockAnalyticsCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func (m *mockAnalyticsCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockAnalyticsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
		m.ttls = make(map[string]time.Duration)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func TestAnalyticsServiceCacheAside(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	cache := &mockAnalyticsCache{}
	svc := NewAnalyticsService(repo, cache, nil, 5*time.Minute, zap.NewNop())

	filter := models.AnalysisFilter{ClassLevelID: "cls1", SubjectID: "sub1", TermID: "term1", TopN: 5}

	analysis, cached, err := svc.Analyze(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 40, analysis.TotalResults)
	assert.Equal(t, "cls1", analysis.ClassLevelID)
	assert.Len(t, analysis.Distribution, 2)
	assert.Equal(t, 1, repo.summaryCalls)

	key := "analytics:results:cls1:sub1:term1:5"
	assert.Contains(t, cache.entries, key)
	assert.Equal(t, 5*time.Minute, cache.ttls[key])

	again, cached, err := svc.Analyze(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, analysis.TotalResults, again.TotalResults)
	assert.Equal(t, 1, repo.summaryCalls)
}

func TestAnalyticsServiceKeyVariesByScope(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	cache := &mockAnalyticsCache{}
	svc := NewAnalyticsService(repo, cache, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Analyze(context.Background(), models.AnalysisFilter{ClassLevelID: "cls1", TopN: 10})
	require.NoError(t, err)
	_, _, err = svc.Analyze(context.Background(), models.AnalysisFilter{ClassLevelID: "cls2", TopN: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.summaryCalls)
	assert.Len(t, cache.entries, 2)
}

func TestAnalyticsServiceWorksWithoutCache(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc := NewAnalyticsService(repo, nil, nil, 0, zap.NewNop())

	analysis, cached, err := svc.Analyze(context.Background(), models.AnalysisFilter{TopN: 2})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, analysis.TopPerformers, 2)
}
