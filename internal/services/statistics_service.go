package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// SummaryQuery selects the series to summarise
type SummaryQuery struct {
	Region    string
	Parameter string
	YearFrom  *int
	YearTo    *int
}

// StatisticsService computes per-series aggregates
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Summaries returns count, period coverage and value range for every
// region and parameter pair that has observations matching q.
func (s *StatisticsService) Summaries(ctx context.Context, q SummaryQuery) ([]*models.ObservationSummary, error) {
	startTime := time.Now()

	if q.YearFrom != nil && q.YearTo != nil && *q.YearFrom > *q.YearTo {
		return nil, &models.ValidationError{Field: "year_from", Message: "year_from must not be after year_to"}
	}

	var filter repository.ObservationFilter
	if region := strings.TrimSpace(q.Region); region != "" {
		filter.RegionCode = &region
	}
	if parameter := strings.TrimSpace(q.Parameter); parameter != "" {
		filter.ParameterCode = &parameter
	}
	filter.YearFrom = q.YearFrom
	filter.YearTo = q.YearTo

	summaries, err := s.repo.GetSummaries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	s.logger.Debug(ctx, "[STATS_SUMMARY] Summaries calculated", logging.Fields{
		"series":      len(summaries),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})

	return summaries, nil
}
