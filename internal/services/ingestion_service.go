package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"uk-weather-platform/internal/fetcher"
	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// IngestionOptions configures the ingestion coordinator
type IngestionOptions struct {
	BaseURL string
	// AllowedHosts lists the hosts IngestURL may fetch from. Empty allows
	// only the host of BaseURL; "*" allows any host.
	AllowedHosts      []string
	Placeholder       string
	DefaultMode       models.IngestionMode
	AnnualColumn      parser.AnnualColumn
	BatchSize         int
	Concurrency       int
	AutoCreateCatalog bool
}

// IngestionService fetches, parses and stores climate series
type IngestionService struct {
	repo    repository.WeatherRepository
	catalog *CatalogService
	fetcher fetcher.Fetcher
	opts    IngestionOptions
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// IngestRequest describes one series to load. Text is ingested as is; URL is
// recorded as the observation source.
type IngestRequest struct {
	RegionCode    string
	ParameterCode string
	URL           string
	Text          string
	Mode          models.IngestionMode
}

// IngestionResult contains the outcome of ingesting one series
type IngestionResult struct {
	Region          string               `json:"region"`
	Parameter       string               `json:"parameter"`
	URL             string               `json:"url"`
	Mode            models.IngestionMode `json:"mode"`
	ReadingsParsed  int                  `json:"readings_parsed"`
	RecordsCreated  int                  `json:"records_created"`
	RecordsSkipped  int                  `json:"records_skipped"`
	MalformedValues int                  `json:"malformed_values"`
	Duration        time.Duration        `json:"-"`
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	repo repository.WeatherRepository,
	catalog *CatalogService,
	seriesFetcher fetcher.Fetcher,
	opts IngestionOptions,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
) *IngestionService {
	if opts.Placeholder == "" {
		opts.Placeholder = parser.DefaultPlaceholder
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = models.ModeAnnual
	}
	if opts.AnnualColumn == "" {
		opts.AnnualColumn = parser.AnnualThirteenth
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fetcher.DefaultBaseURL
	}
	if len(opts.AllowedHosts) == 0 {
		if base, err := url.Parse(opts.BaseURL); err == nil && base.Host != "" {
			opts.AllowedHosts = []string{base.Host}
		}
	}
	opts.AllowedHosts = slices.Clone(opts.AllowedHosts)
	for i, host := range opts.AllowedHosts {
		opts.AllowedHosts[i] = strings.ToLower(strings.TrimSpace(host))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &IngestionService{
		repo:    repo,
		catalog: catalog,
		fetcher: seriesFetcher,
		opts:    opts,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// DefaultMode returns the mode used when a request does not name one
func (s *IngestionService) DefaultMode() models.IngestionMode {
	return s.opts.DefaultMode
}

// Ingest parses req.Text and stores every reading whose key is not already
// present. Existing observations are never modified, so repeating an ingest
// creates nothing. Text without any parseable line yields zero records and no error.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (*IngestionResult, error) {
	start := s.clock.Now()
	ctx = withRun(ctx)

	if req.Mode == "" {
		req.Mode = s.opts.DefaultMode
	}
	mode, err := models.ParseIngestionMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logging.Fields{
		"region":    req.RegionCode,
		"parameter": req.ParameterCode,
		"mode":      string(mode),
	})

	region, err := s.catalog.ResolveRegion(ctx, req.RegionCode, s.opts.AutoCreateCatalog)
	if err != nil {
		s.metrics.RecordIngestionError("catalog_error")
		return nil, fmt.Errorf("failed to resolve region: %w", err)
	}
	parameter, err := s.catalog.ResolveParameter(ctx, req.ParameterCode, s.opts.AutoCreateCatalog)
	if err != nil {
		s.metrics.RecordIngestionError("catalog_error")
		return nil, fmt.Errorf("failed to resolve parameter: %w", err)
	}

	result := &IngestionResult{
		Region:    region.Code,
		Parameter: parameter.Code,
		URL:       req.URL,
		Mode:      mode,
	}

	p := parser.New(parser.Options{
		Placeholder:  s.opts.Placeholder,
		Mode:         mode,
		AnnualColumn: s.opts.AnnualColumn,
		OnMalformed: func(e *models.MalformedLineError) {
			result.MalformedValues++
			s.metrics.IngestionMalformedTotal.Inc()
			log.Debug(ctx, "[INGEST_MALFORMED] Dropped malformed value", logging.Fields{
				"line":   e.Line,
				"token":  e.Token,
				"reason": e.Reason,
			})
		},
	})

	createdAt := s.clock.Now().UTC()
	batch := make([]*models.Observation, 0, s.opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.repo.InsertObservationsBatch(ctx, batch)
		if err != nil {
			return err
		}
		result.RecordsCreated += inserted
		batch = batch[:0]
		return nil
	}

	for reading := range p.Parse(req.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs, err := reading.ToObservation(region.ID, parameter.ID, req.URL, createdAt)
		if err != nil {
			result.MalformedValues++
			s.metrics.RecordIngestionError("conversion_error")
			continue
		}

		result.ReadingsParsed++
		batch = append(batch, obs)

		// Process batch when full
		if len(batch) >= s.opts.BatchSize {
			if err := flush(); err != nil {
				s.metrics.RecordIngestionError("store_error")
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
		}
	}

	// Process remaining readings
	if err := flush(); err != nil {
		s.metrics.RecordIngestionError("store_error")
		return nil, fmt.Errorf("failed to insert final batch: %w", err)
	}

	result.RecordsSkipped = result.ReadingsParsed - result.RecordsCreated
	result.Duration = s.clock.Since(start)

	s.metrics.RecordIngestionRun(result.Region, result.Parameter, result.RecordsCreated, result.RecordsSkipped)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	if result.ReadingsParsed == 0 {
		log.Warn(ctx, "[INGEST_EMPTY] No readings parsed from series", logging.Fields{
			"url":              req.URL,
			"malformed_values": result.MalformedValues,
		})
	}

	log.Info(ctx, "[INGEST_COMPLETE] Series ingested", logging.Fields{
		"url":              req.URL,
		"readings_parsed":  result.ReadingsParsed,
		"records_created":  result.RecordsCreated,
		"records_skipped":  result.RecordsSkipped,
		"malformed_values": result.MalformedValues,
		"duration_ms":      result.Duration.Milliseconds(),
	})

	return result, nil
}

// IngestRemote fetches the published series for a region and parameter and ingests it
func (s *IngestionService) IngestRemote(ctx context.Context, regionCode, parameterCode string, mode models.IngestionMode) (*IngestionResult, error) {
	return s.IngestURL(ctx, fetcher.DatasetURL(s.opts.BaseURL, regionCode, parameterCode), regionCode, parameterCode, mode)
}

// IngestURL fetches url and ingests it. Empty region or parameter codes are
// taken from the url path ({parameter}/date/{region}.txt). Only http(s) URLs
// on an allowed host are fetched.
func (s *IngestionService) IngestURL(ctx context.Context, url, regionCode, parameterCode string, mode models.IngestionMode) (*IngestionResult, error) {
	if err := s.checkSource(url); err != nil {
		s.metrics.RecordIngestionError("rejected_url")
		s.logger.Warn(ctx, "[INGEST_REJECTED_URL] Refusing to fetch series", logging.Fields{"url": url})
		return nil, err
	}

	if regionCode == "" || parameterCode == "" {
		region, parameter, err := fetcher.ParseDatasetURL(url)
		if err != nil {
			return nil, err
		}
		if regionCode == "" {
			regionCode = region
		}
		if parameterCode == "" {
			parameterCode = parameter
		}
	}

	// Unknown codes fail before any network call when the catalog is closed
	if !s.opts.AutoCreateCatalog {
		if _, err := s.catalog.ResolveRegion(ctx, regionCode, false); err != nil {
			return nil, fmt.Errorf("failed to resolve region: %w", err)
		}
		if _, err := s.catalog.ResolveParameter(ctx, parameterCode, false); err != nil {
			return nil, fmt.Errorf("failed to resolve parameter: %w", err)
		}
	}

	text, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.metrics.RecordIngestionError("fetch_error")
		s.logger.Error(ctx, "[INGEST_FETCH_ERROR] Failed to fetch series", logging.Fields{
			"url":       url,
			"region":    regionCode,
			"parameter": parameterCode,
		}, err)
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}

	return s.Ingest(ctx, IngestRequest{
		RegionCode:    regionCode,
		ParameterCode: parameterCode,
		URL:           url,
		Text:          text,
		Mode:          mode,
	})
}

func (s *IngestionService) checkSource(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &models.ValidationError{Field: "url", Value: rawURL, Message: "url must be an absolute http or https address"}
	}
	if slices.Contains(s.opts.AllowedHosts, "*") || slices.Contains(s.opts.AllowedHosts, strings.ToLower(u.Host)) {
		return nil
	}
	return &models.ValidationError{Field: "url", Value: rawURL, Message: fmt.Sprintf("url host %q is not an allowed source", u.Host)}
}

// DirectoryResult aggregates the ingestion of a local mirror
type DirectoryResult struct {
	TotalFiles     int
	RecordsCreated int
	RecordsSkipped int
	Results        []*IngestionResult
	Errors         []string
	Duration       time.Duration
}

// IngestDirectory ingests every file laid out as <dir>/<parameter>/<region>.txt.
// A failing file is recorded in Errors and does not stop the run.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, mode models.IngestionMode) (*DirectoryResult, error) {
	start := s.clock.Now()
	ctx = withRun(ctx)

	s.logger.Info(ctx, "[INGEST_DIR_START] Starting directory ingestion", logging.Fields{
		"data_dir": dataDir,
		"mode":     string(mode),
		"stage":    "INITIALIZATION",
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*", "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	result := &DirectoryResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileResult, err := s.IngestFile(ctx, filePath, mode)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.Results = append(result.Results, fileResult)
		result.RecordsCreated += fileResult.RecordsCreated
		result.RecordsSkipped += fileResult.RecordsSkipped
	}

	result.Duration = s.clock.Since(start)

	s.logger.Info(ctx, "[INGEST_DIR_COMPLETE] Directory ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"records_created":  result.RecordsCreated,
		"records_skipped":  result.RecordsSkipped,
		"error_count":      len(result.Errors),
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// IngestFile ingests one local series file named <parameter>/<region>.txt
func (s *IngestionService) IngestFile(ctx context.Context, filePath string, mode models.IngestionMode) (*IngestionResult, error) {
	regionCode := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	parameterCode := filepath.Base(filepath.Dir(filePath))

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	source := filePath
	if abs, err := filepath.Abs(filePath); err == nil {
		source = abs
	}

	return s.Ingest(ctx, IngestRequest{
		RegionCode:    regionCode,
		ParameterCode: parameterCode,
		URL:           "file://" + filepath.ToSlash(source),
		Text:          string(content),
		Mode:          mode,
	})
}

// PairResult is the outcome for one region and parameter of IngestAll
type PairResult struct {
	Region    string
	Parameter string
	Result    *IngestionResult
	Err       error
}

// BatchResult aggregates IngestAll
type BatchResult struct {
	Pairs          []PairResult
	RecordsCreated int
	RecordsSkipped int
	Failed         int
	Duration       time.Duration
}

// IngestAll ingests every region and parameter combination from the
// publisher with at most concurrency fetches in flight. Per-pair failures are
// collected in the result; only context cancellation aborts the run.
func (s *IngestionService) IngestAll(ctx context.Context, regions, parameters []string, mode models.IngestionMode, concurrency int) (*BatchResult, error) {
	start := s.clock.Now()
	ctx = withRun(ctx)
	if concurrency <= 0 {
		concurrency = s.opts.Concurrency
	}

	pairs := make([]PairResult, 0, len(regions)*len(parameters))
	for _, parameter := range parameters {
		for _, region := range regions {
			pairs = append(pairs, PairResult{Region: region, Parameter: parameter})
		}
	}

	s.logger.Info(ctx, "[INGEST_ALL_START] Starting bulk ingestion", logging.Fields{
		"pairs":       len(pairs),
		"concurrency": concurrency,
		"mode":        string(mode),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			// each goroutine owns pairs[i]
			res, err := s.IngestRemote(gctx, pairs[i].Region, pairs[i].Parameter, mode)
			pairs[i].Result = res
			pairs[i].Err = err

			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Pairs: pairs}
	for _, pair := range pairs {
		if pair.Err != nil {
			result.Failed++
			continue
		}
		result.RecordsCreated += pair.Result.RecordsCreated
		result.RecordsSkipped += pair.Result.RecordsSkipped
	}
	result.Duration = s.clock.Since(start)

	s.logger.Info(ctx, "[INGEST_ALL_COMPLETE] Bulk ingestion completed", logging.Fields{
		"pairs":           len(pairs),
		"failed":          result.Failed,
		"records_created": result.RecordsCreated,
		"records_skipped": result.RecordsSkipped,
		"duration_ms":     result.Duration.Milliseconds(),
	})

	return result, nil
}

// withRun tags ctx with a fresh ingestion run id unless a caller already did,
// so every log line of one directory or bulk run shares an id.
func withRun(ctx context.Context) context.Context {
	if logging.RunID(ctx) != "" {
		return ctx
	}
	return logging.WithRunID(ctx, uuid.NewString())
}
