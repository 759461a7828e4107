package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// CatalogEntry is the display metadata a region or parameter is created with
type CatalogEntry struct {
	Code string
	Name string
	Unit string
}

// DefaultRegions lists the regions the Met Office publishes series for
var DefaultRegions = []CatalogEntry{
	{Code: "UK", Name: "United Kingdom"},
	{Code: "England", Name: "England"},
	{Code: "Wales", Name: "Wales"},
	{Code: "Scotland", Name: "Scotland"},
	{Code: "Northern_Ireland", Name: "Northern Ireland"},
	{Code: "England_and_Wales", Name: "England and Wales"},
	{Code: "England_N", Name: "England North"},
	{Code: "England_S", Name: "England South"},
	{Code: "Scotland_N", Name: "Scotland North"},
	{Code: "Scotland_E", Name: "Scotland East"},
	{Code: "Scotland_W", Name: "Scotland West"},
	{Code: "England_E_and_NE", Name: "England East and North East"},
	{Code: "England_NW_and_N_Wales", Name: "England North West and North Wales"},
	{Code: "Midlands", Name: "Midlands"},
	{Code: "East_Anglia", Name: "East Anglia"},
	{Code: "England_SW_and_S_Wales", Name: "England South West and South Wales"},
	{Code: "England_SE_and_Central_S", Name: "England South East and Central South"},
}

// DefaultParameters lists the published climate variables with their units
var DefaultParameters = []CatalogEntry{
	{Code: "Tmax", Name: "Maximum Temperature", Unit: "°C"},
	{Code: "Tmin", Name: "Minimum Temperature", Unit: "°C"},
	{Code: "Tmean", Name: "Mean Temperature", Unit: "°C"},
	{Code: "Sunshine", Name: "Sunshine Duration", Unit: "hours"},
	{Code: "Rainfall", Name: "Rainfall", Unit: "mm"},
	{Code: "Raindays1mm", Name: "Days of Rain >= 1mm", Unit: "days"},
	{Code: "AirFrost", Name: "Days of Air Frost", Unit: "days"},
}

// SeedResult counts catalog rows created by Seed
type SeedResult struct {
	RegionsCreated    int
	ParametersCreated int
}

// CatalogService manages regions and parameters
type CatalogService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) *CatalogService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CatalogService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// Seed creates the default regions and parameters that do not exist yet
func (s *CatalogService) Seed(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}

	for _, entry := range DefaultRegions {
		created, err := s.repo.GetOrCreateRegion(ctx, s.newRegion(entry))
		if err != nil {
			return nil, fmt.Errorf("failed to seed region %s: %w", entry.Code, err)
		}
		if created {
			result.RegionsCreated++
		}
	}

	for _, entry := range DefaultParameters {
		created, err := s.repo.GetOrCreateParameter(ctx, s.newParameter(entry))
		if err != nil {
			return nil, fmt.Errorf("failed to seed parameter %s: %w", entry.Code, err)
		}
		if created {
			result.ParametersCreated++
		}
	}

	s.logger.Info(ctx, "[CATALOG_SEED] Catalog seeded", logging.Fields{
		"regions_created":    result.RegionsCreated,
		"parameters_created": result.ParametersCreated,
	})

	return result, nil
}

// ResolveRegion returns the stored region for code. When allowCreate is set a
// missing region is created with its default display name, otherwise a
// *models.UnknownCatalogEntryError is returned.
func (s *CatalogService) ResolveRegion(ctx context.Context, code string, allowCreate bool) (*models.Region, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "region", Message: "region is required"}
	}

	if !allowCreate {
		region, err := s.repo.GetRegionByCode(ctx, code)
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &models.UnknownCatalogEntryError{Kind: "region", Code: code}
		}
		return region, err
	}

	region := s.newRegion(lookupEntry(DefaultRegions, code))
	if _, err := s.repo.GetOrCreateRegion(ctx, region); err != nil {
		return nil, err
	}
	return region, nil
}

// ResolveParameter is ResolveRegion for parameters
func (s *CatalogService) ResolveParameter(ctx context.Context, code string, allowCreate bool) (*models.Parameter, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "parameter", Message: "parameter is required"}
	}

	if !allowCreate {
		parameter, err := s.repo.GetParameterByCode(ctx, code)
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &models.UnknownCatalogEntryError{Kind: "parameter", Code: code}
		}
		return parameter, err
	}

	parameter := s.newParameter(lookupEntry(DefaultParameters, code))
	if _, err := s.repo.GetOrCreateParameter(ctx, parameter); err != nil {
		return nil, err
	}
	return parameter, nil
}

// ListRegions lists regions with their observation counts
func (s *CatalogService) ListRegions(ctx context.Context, filter repository.CatalogFilter) ([]*models.Region, int, error) {
	return s.repo.ListRegions(ctx, filter)
}

// GetRegion retrieves a region by code
func (s *CatalogService) GetRegion(ctx context.Context, code string) (*models.Region, error) {
	return s.repo.GetRegionByCode(ctx, code)
}

// ListParameters lists parameters with their observation counts
func (s *CatalogService) ListParameters(ctx context.Context, filter repository.CatalogFilter) ([]*models.Parameter, int, error) {
	return s.repo.ListParameters(ctx, filter)
}

// GetParameter retrieves a parameter by code
func (s *CatalogService) GetParameter(ctx context.Context, code string) (*models.Parameter, error) {
	return s.repo.GetParameterByCode(ctx, code)
}

func (s *CatalogService) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *CatalogService) newRegion(entry CatalogEntry) *models.Region {
	return &models.Region{Code: entry.Code, Name: entry.Name, CreatedAt: s.now()}
}

func (s *CatalogService) newParameter(entry CatalogEntry) *models.Parameter {
	return &models.Parameter{Code: entry.Code, Name: entry.Name, Unit: entry.Unit, CreatedAt: s.now()}
}

// lookupEntry returns the known entry for code, or one named after the code itself
func lookupEntry(entries []CatalogEntry, code string) CatalogEntry {
	for _, entry := range entries {
		if entry.Code == code {
			return entry
		}
	}
	return CatalogEntry{Code: code, Name: code}
}
