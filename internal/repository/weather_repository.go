package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/pkg/database"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// WeatherRepository provides data access for the climate catalog and observations
type WeatherRepository interface {
	// Catalog operations
	GetOrCreateRegion(ctx context.Context, region *models.Region) (bool, error)
	GetRegionByCode(ctx context.Context, code string) (*models.Region, error)
	ListRegions(ctx context.Context, filter CatalogFilter) ([]*models.Region, int, error)
	GetOrCreateParameter(ctx context.Context, parameter *models.Parameter) (bool, error)
	GetParameterByCode(ctx context.Context, code string) (*models.Parameter, error)
	ListParameters(ctx context.Context, filter CatalogFilter) ([]*models.Parameter, int, error)

	// Observation operations
	InsertObservationsBatch(ctx context.Context, observations []*models.Observation) (int, error)
	GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.ObservationRecord, int, error)
	GetObservation(ctx context.Context, id int64) (*models.ObservationRecord, error)

	// Statistics operations
	GetSummaries(ctx context.Context, filter ObservationFilter) ([]*models.ObservationSummary, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// CatalogFilter defines filters for listing regions and parameters
type CatalogFilter struct {
	Search string
	Limit  int
	Offset int
}

// ObservationFilter defines filters for querying observations.
// All set fields must match. Annual restricts to rows without a month and
// takes precedence over Month.
type ObservationFilter struct {
	RegionCode    *string
	ParameterCode *string
	Year          *int
	Month         *int
	Annual        bool
	YearFrom      *int
	YearTo        *int
	Search        string
	Ordering      []OrderField
	Limit         int
	Offset        int
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherRepository creates a new weather repository
func NewWeatherRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const regionColumns = `
	r.id, r.code, r.name, r.created_at,
	(SELECT COUNT(*) FROM observations o WHERE o.region_id = r.id) AS data_count`

const parameterColumns = `
	p.id, p.code, p.name, p.unit, p.created_at,
	(SELECT COUNT(*) FROM observations o WHERE o.parameter_id = p.id) AS data_count`

// GetOrCreateRegion inserts the region unless its code already exists and
// loads the stored row into region. It reports whether a row was created.
func (r *weatherRepository) GetOrCreateRegion(ctx context.Context, region *models.Region) (bool, error) {
	if region.CreatedAt.IsZero() {
		region.CreatedAt = time.Now().UTC()
	}

	created, err := r.getOrCreate(ctx, "region",
		`INSERT INTO regions (code, name, created_at) VALUES (?, ?, ?) ON CONFLICT (code) DO NOTHING`,
		[]interface{}{region.Code, region.Name, region.CreatedAt},
		`SELECT r.id, r.code, r.name, r.created_at FROM regions r WHERE r.code = ?`,
		region.Code, region)
	if err != nil {
		return false, fmt.Errorf("failed to get or create region: %w", err)
	}

	if created {
		r.logger.Debug(ctx, "[REPO_CREATE_REGION] Region created", logging.Fields{
			"code": region.Code,
			"id":   region.ID,
		})
	}

	return created, nil
}

// GetOrCreateParameter inserts the parameter unless its code already exists and
// loads the stored row into parameter. It reports whether a row was created.
func (r *weatherRepository) GetOrCreateParameter(ctx context.Context, parameter *models.Parameter) (bool, error) {
	if parameter.CreatedAt.IsZero() {
		parameter.CreatedAt = time.Now().UTC()
	}

	created, err := r.getOrCreate(ctx, "parameter",
		`INSERT INTO parameters (code, name, unit, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (code) DO NOTHING`,
		[]interface{}{parameter.Code, parameter.Name, parameter.Unit, parameter.CreatedAt},
		`SELECT p.id, p.code, p.name, p.unit, p.created_at FROM parameters p WHERE p.code = ?`,
		parameter.Code, parameter)
	if err != nil {
		return false, fmt.Errorf("failed to get or create parameter: %w", err)
	}

	if created {
		r.logger.Debug(ctx, "[REPO_CREATE_PARAMETER] Parameter created", logging.Fields{
			"code": parameter.Code,
			"id":   parameter.ID,
		})
	}

	return created, nil
}

// getOrCreate runs insert-if-absent and the reload in one transaction so
// concurrent callers for the same code converge on a single row.
func (r *weatherRepository) getOrCreate(ctx context.Context, kind, insert string, insertArgs []interface{}, load string, code string, dest interface{}) (bool, error) {
	timer := time.Now()
	defer func() {
		r.metrics.DBQueryDuration.WithLabelValues("get_or_create_" + kind).Observe(time.Since(timer).Seconds())
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.Rebind(insert), insertArgs...)
	if err != nil {
		r.metrics.RecordDBError("exec_error")
		return false, fmt.Errorf("failed to insert %s: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.GetContext(ctx, dest, r.db.Rebind(load), code); err != nil {
		r.metrics.RecordDBError("get_error")
		return false, fmt.Errorf("failed to load %s: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	created := affected > 0
	if created {
		r.metrics.CatalogEntriesCreated.WithLabelValues(kind).Inc()
	}

	return created, nil
}

// GetRegionByCode retrieves a region by its code
func (r *weatherRepository) GetRegionByCode(ctx context.Context, code string) (*models.Region, error) {
	query := `SELECT` + regionColumns + ` FROM regions r WHERE r.code = ?`

	var region models.Region
	err := r.db.GetContext(ctx, "get_region", &region, query, code)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "region",
			ID:       code,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}

	return &region, nil
}

// ListRegions retrieves regions ordered by name with optional search and pagination
func (r *weatherRepository) ListRegions(ctx context.Context, filter CatalogFilter) ([]*models.Region, int, error) {
	p := &predicates{}
	if filter.Search != "" {
		p.add(likeAny("r.name", "r.code"), repeatArg(likePattern(filter.Search), 2)...)
	}

	var totalCount int
	err := r.db.GetContext(ctx, "count_regions", &totalCount, `SELECT COUNT(*) FROM regions r`+p.where(), p.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count regions: %w", err)
	}

	query := `SELECT` + regionColumns + ` FROM regions r` + p.where() + ` ORDER BY r.name, r.id LIMIT ? OFFSET ?`
	args := append(p.args, filter.Limit, filter.Offset)

	regions := []*models.Region{}
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list regions: %w", err)
	}

	return regions, totalCount, nil
}

// GetParameterByCode retrieves a parameter by its code
func (r *weatherRepository) GetParameterByCode(ctx context.Context, code string) (*models.Parameter, error) {
	query := `SELECT` + parameterColumns + ` FROM parameters p WHERE p.code = ?`

	var parameter models.Parameter
	err := r.db.GetContext(ctx, "get_parameter", &parameter, query, code)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "parameter",
			ID:       code,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get parameter: %w", err)
	}

	return &parameter, nil
}

// ListParameters retrieves parameters ordered by name with optional search and pagination
func (r *weatherRepository) ListParameters(ctx context.Context, filter CatalogFilter) ([]*models.Parameter, int, error) {
	p := &predicates{}
	if filter.Search != "" {
		p.add(likeAny("p.name", "p.code", "p.unit"), repeatArg(likePattern(filter.Search), 3)...)
	}

	var totalCount int
	err := r.db.GetContext(ctx, "count_parameters", &totalCount, `SELECT COUNT(*) FROM parameters p`+p.where(), p.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count parameters: %w", err)
	}

	query := `SELECT` + parameterColumns + ` FROM parameters p` + p.where() + ` ORDER BY p.name, p.id LIMIT ? OFFSET ?`
	args := append(p.args, filter.Limit, filter.Offset)

	parameters := []*models.Parameter{}
	if err := r.db.SelectContext(ctx, "list_parameters", &parameters, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list parameters: %w", err)
	}

	return parameters, totalCount, nil
}

// InsertObservationsBatch inserts observations in a single transaction.
// Rows whose (region, parameter, year, month) key already exists are left
// untouched; the returned count covers newly stored rows only.
func (r *weatherRepository) InsertObservationsBatch(ctx context.Context, observations []*models.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	inserted := 0
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.metrics.DBQueryDuration.WithLabelValues("insert_observations_batch").Observe(duration.Seconds())
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(observations),
			"inserted":    inserted,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	// Begin transaction
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Prepare statement
	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO observations (
			region_id, parameter_id, year, month, value, source_url, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	// Execute batch
	count := 0
	for _, obs := range observations {
		result, err := stmt.ExecContext(ctx,
			obs.RegionID,
			obs.ParameterID,
			obs.Year,
			monthArg(obs.Month),
			obs.Value,
			obs.SourceURL,
			obs.CreatedAt,
		)
		if err != nil {
			r.metrics.RecordDBError("exec_error")
			return 0, fmt.Errorf("failed to insert observation: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		count += int(affected)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	inserted = count
	return inserted, nil
}

const observationSelect = `
	SELECT o.id, r.code AS region, r.name AS region_name,
	       p.code AS parameter, p.name AS parameter_name, p.unit AS parameter_unit,
	       o.year, o.month, o.value, o.source_url, o.created_at
	FROM observations o
	JOIN regions r ON r.id = o.region_id
	JOIN parameters p ON p.id = o.parameter_id`

// GetObservations retrieves observations with filtering, ordering and pagination
func (r *weatherRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.ObservationRecord, int, error) {
	p := observationPredicates(filter)

	// Get total count
	countQuery := `
		SELECT COUNT(*)
		FROM observations o
		JOIN regions r ON r.id = o.region_id
		JOIN parameters p ON p.id = o.parameter_id` + p.where()

	var totalCount int
	err := r.db.GetContext(ctx, "count_observations", &totalCount, countQuery, p.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	// Add ordering and pagination
	query := observationSelect + p.where() + orderClause(filter.Ordering) + " LIMIT ? OFFSET ?"
	args := append(p.args, filter.Limit, filter.Offset)

	// Execute query
	observations := []*models.ObservationRecord{}
	err = r.db.SelectContext(ctx, "get_observations", &observations, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, totalCount, nil
}

// GetObservation retrieves a single observation by id
func (r *weatherRepository) GetObservation(ctx context.Context, id int64) (*models.ObservationRecord, error) {
	var obs models.ObservationRecord
	err := r.db.GetContext(ctx, "get_observation", &obs, observationSelect+" WHERE o.id = ?", id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "observation",
			ID:       strconv.FormatInt(id, 10),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	return &obs, nil
}

// GetSummaries aggregates matching observations per region and parameter
func (r *weatherRepository) GetSummaries(ctx context.Context, filter ObservationFilter) ([]*models.ObservationSummary, error) {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_SUMMARIES] Summaries calculated", logging.Fields{
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	p := observationPredicates(filter)

	query := `
		SELECT r.code AS region, r.name AS region_name,
		       p.code AS parameter, p.name AS parameter_name, p.unit AS parameter_unit,
		       COUNT(*) AS count,
		       SUM(CASE WHEN o.month IS NULL THEN 1 ELSE 0 END) AS annual_count,
		       SUM(CASE WHEN o.month IS NULL THEN 0 ELSE 1 END) AS monthly_count,
		       MIN(o.year) AS first_year,
		       MAX(o.year) AS last_year,
		       MIN(o.value) AS min_value,
		       MAX(o.value) AS max_value,
		       AVG(o.value) AS avg_value
		FROM observations o
		JOIN regions r ON r.id = o.region_id
		JOIN parameters p ON p.id = o.parameter_id` + p.where() + `
		GROUP BY r.code, r.name, p.code, p.name, p.unit
		ORDER BY r.code, p.code`

	summaries := []*models.ObservationSummary{}
	if err := r.db.SelectContext(ctx, "get_summaries", &summaries, query, p.args...); err != nil {
		return nil, fmt.Errorf("failed to calculate summaries: %w", err)
	}

	return summaries, nil
}

// HealthCheck performs a repository health check
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func monthArg(month *int) interface{} {
	if month == nil {
		return nil
	}
	return *month
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
