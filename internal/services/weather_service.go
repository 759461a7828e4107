package services

import (
	"context"
	"strings"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// Pagination bounds used when QueryOptions leaves them unset
const (
	DefaultPageSize = 25
	MaxPageSize     = 1000
)

// QueryOptions configures listing defaults
type QueryOptions struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ObservationQuery holds the already type-checked filters of an observation listing.
// Zero Page and PageSize select the defaults.
type ObservationQuery struct {
	Region    string
	Parameter string
	Year      *int
	Month     *int
	Annual    bool
	YearFrom  *int
	YearTo    *int
	Search    string
	Ordering  string
	Page      int
	PageSize  int
}

// Page is one page of a listing
type Page[T any] struct {
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Results    []T `json:"results"`
}

func newPage[T any](results []T, total, page, pageSize int) *Page[T] {
	if results == nil {
		results = []T{}
	}
	return &Page[T]{
		Count:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		Results:    results,
	}
}

// WeatherService handles observation queries
type WeatherService struct {
	repo    repository.WeatherRepository
	opts    QueryOptions
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.WeatherRepository, opts QueryOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = max(MaxPageSize, opts.DefaultPageSize)
	}
	return &WeatherService{
		repo:    repo,
		opts:    opts,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Paginate validates page and pageSize, applies defaults and clamps the size
// to the configured maximum. It returns the effective page, size and offset.
func (s *WeatherService) Paginate(page, pageSize int) (int, int, int, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return 0, 0, 0, &models.ValidationError{Field: "page", Message: "page must be a positive integer"}
	}
	if pageSize == 0 {
		pageSize = s.opts.DefaultPageSize
	}
	if pageSize < 0 {
		return 0, 0, 0, &models.ValidationError{Field: "page_size", Message: "page_size must be a positive integer"}
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize, nil
}

// ListObservations returns one page of observations matching every filter in q.
// No match is an empty page, not an error.
func (s *WeatherService) ListObservations(ctx context.Context, q ObservationQuery) (*Page[*models.ObservationRecord], error) {
	filter, err := s.buildFilter(q)
	if err != nil {
		return nil, err
	}

	page, pageSize, offset, err := s.Paginate(q.Page, q.PageSize)
	if err != nil {
		return nil, err
	}
	filter.Limit = pageSize
	filter.Offset = offset

	records, total, err := s.repo.GetObservations(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "[QUERY_OBSERVATIONS] Observations listed", logging.Fields{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})

	return newPage(records, total, page, pageSize), nil
}

// GetObservation retrieves a single observation
func (s *WeatherService) GetObservation(ctx context.Context, id int64) (*models.ObservationRecord, error) {
	return s.repo.GetObservation(ctx, id)
}

// ListRegions returns one page of regions
func (s *WeatherService) ListRegions(ctx context.Context, search string, page, pageSize int) (*Page[*models.Region], error) {
	page, pageSize, offset, err := s.Paginate(page, pageSize)
	if err != nil {
		return nil, err
	}

	regions, total, err := s.repo.ListRegions(ctx, repository.CatalogFilter{
		Search: strings.TrimSpace(search),
		Limit:  pageSize,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	return newPage(regions, total, page, pageSize), nil
}

// ListParameters returns one page of parameters
func (s *WeatherService) ListParameters(ctx context.Context, search string, page, pageSize int) (*Page[*models.Parameter], error) {
	page, pageSize, offset, err := s.Paginate(page, pageSize)
	if err != nil {
		return nil, err
	}

	parameters, total, err := s.repo.ListParameters(ctx, repository.CatalogFilter{
		Search: strings.TrimSpace(search),
		Limit:  pageSize,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	return newPage(parameters, total, page, pageSize), nil
}

// buildFilter turns a query into repository predicates, rejecting values
// outside their domain.
func (s *WeatherService) buildFilter(q ObservationQuery) (repository.ObservationFilter, error) {
	var filter repository.ObservationFilter

	if region := strings.TrimSpace(q.Region); region != "" {
		filter.RegionCode = &region
	}
	if parameter := strings.TrimSpace(q.Parameter); parameter != "" {
		filter.ParameterCode = &parameter
	}
	if q.Month != nil && (*q.Month < 1 || *q.Month > 12) {
		return filter, &models.ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if q.YearFrom != nil && q.YearTo != nil && *q.YearFrom > *q.YearTo {
		return filter, &models.ValidationError{Field: "year_from", Message: "year_from must not be after year_to"}
	}

	ordering, err := repository.ParseOrdering(q.Ordering)
	if err != nil {
		return filter, err
	}

	filter.Year = q.Year
	filter.Month = q.Month
	filter.Annual = q.Annual
	filter.YearFrom = q.YearFrom
	filter.YearTo = q.YearTo
	filter.Search = strings.TrimSpace(q.Search)
	filter.Ordering = ordering

	return filter, nil
}
