package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/repository"
	"uk-weather-platform/internal/services"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

const maxIngestBodyBytes = 1 << 20

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// WeatherHandler handles the climate API endpoints
type WeatherHandler struct {
	weatherService   *services.WeatherService
	statsService     *services.StatisticsService
	catalogService   *services.CatalogService
	ingestionService *services.IngestionService
	health           HealthChecker
	logger           *logging.StructuredLogger
	metrics          *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	statsService *services.StatisticsService,
	catalogService *services.CatalogService,
	ingestionService *services.IngestionService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService:   weatherService,
		statsService:     statsService,
		catalogService:   catalogService,
		ingestionService: ingestionService,
		health:           health,
		logger:           logger,
		metrics:          metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// IngestRequest is the body of POST /ingest/
type IngestRequest struct {
	Region    string `json:"region"`
	Parameter string `json:"parameter"`
	URL       string `json:"url"`
	Mode      string `json:"mode"`
}

// IngestResponse reports the outcome of POST /ingest/
type IngestResponse struct {
	Success        bool   `json:"success"`
	RecordsCreated int    `json:"records_created"`
	RecordsSkipped int    `json:"records_skipped"`
	Region         string `json:"region,omitempty"`
	Parameter      string `json:"parameter,omitempty"`
	URL            string `json:"url,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Overview handles GET /
func (h *WeatherHandler) Overview(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"message": "UK Weather Data API",
		"endpoints": map[string]string{
			"observations": "/observations/",
			"observation":  "/observations/{id}/",
			"summary":      "/observations/summary/",
			"regions":      "/regions/",
			"parameters":   "/parameters/",
			"ingest":       "/ingest/",
			"health":       "/health",
			"metrics":      "/metrics",
			"docs":         "/docs",
		},
		"filters": map[string]string{
			"region":    "?region=UK",
			"parameter": "?parameter=Tmax",
			"year":      "?year=2023",
			"month":     "?month=7",
			"annual":    "?annual=true",
			"range":     "?year_from=1990&year_to=2020",
			"search":    "?search=scotland",
			"ordering":  "?ordering=-value",
			"paging":    "?page=2&page_size=100",
		},
	}, http.StatusOK)
}

// ListObservations handles GET /observations/
func (h *WeatherHandler) ListObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := services.ObservationQuery{
		Region:    q.Get("region"),
		Parameter: q.Get("parameter"),
		Search:    q.Get("search"),
		Ordering:  q.Get("ordering"),
	}

	var err error
	if query.Year, err = intParam(q.Get("year"), "year"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.Month, err = intParam(q.Get("month"), "month"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.YearFrom, err = intParam(q.Get("year_from"), "year_from"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.YearTo, err = intParam(q.Get("year_to"), "year_to"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.Annual, err = boolParam(q.Get("annual"), "annual"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.Page, query.PageSize, err = pageParams(q.Get("page"), q.Get("page_size")); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.weatherService.ListObservations(ctx, query)
	if err != nil {
		h.handleServiceError(w, r, "[API_LIST_OBSERVATIONS_ERROR] Failed to list observations", err)
		return
	}

	h.sendJSON(w, page, http.StatusOK)
}

// GetObservation handles GET /observations/{id}/
func (h *WeatherHandler) GetObservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		h.sendError(w, r, "invalid observation id", http.StatusBadRequest)
		return
	}

	observation, err := h.weatherService.GetObservation(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "[API_GET_OBSERVATION_ERROR] Failed to get observation", err)
		return
	}

	h.sendJSON(w, observation, http.StatusOK)
}

// GetSummaries handles GET /observations/summary/
func (h *WeatherHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := services.SummaryQuery{
		Region:    q.Get("region"),
		Parameter: q.Get("parameter"),
	}

	var err error
	if query.YearFrom, err = intParam(q.Get("year_from"), "year_from"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if query.YearTo, err = intParam(q.Get("year_to"), "year_to"); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	summaries, err := h.statsService.Summaries(r.Context(), query)
	if err != nil {
		h.handleServiceError(w, r, "[API_GET_SUMMARIES_ERROR] Failed to get summaries", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{
		"count":   len(summaries),
		"results": summaries,
	}, http.StatusOK)
}

// ListRegions handles GET /regions/
func (h *WeatherHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, pageSize, err := pageParams(q.Get("page"), q.Get("page_size"))
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	regions, err := h.weatherService.ListRegions(r.Context(), q.Get("search"), page, pageSize)
	if err != nil {
		h.handleServiceError(w, r, "[API_LIST_REGIONS_ERROR] Failed to list regions", err)
		return
	}

	h.sendJSON(w, regions, http.StatusOK)
}

// GetRegion handles GET /regions/{code}/
func (h *WeatherHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	region, err := h.catalogService.GetRegion(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.handleServiceError(w, r, "[API_GET_REGION_ERROR] Failed to get region", err)
		return
	}

	h.sendJSON(w, region, http.StatusOK)
}

// ListParameters handles GET /parameters/
func (h *WeatherHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, pageSize, err := pageParams(q.Get("page"), q.Get("page_size"))
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	parameters, err := h.weatherService.ListParameters(r.Context(), q.Get("search"), page, pageSize)
	if err != nil {
		h.handleServiceError(w, r, "[API_LIST_PARAMETERS_ERROR] Failed to list parameters", err)
		return
	}

	h.sendJSON(w, parameters, http.StatusOK)
}

// GetParameter handles GET /parameters/{code}/
func (h *WeatherHandler) GetParameter(w http.ResponseWriter, r *http.Request) {
	parameter, err := h.catalogService.GetParameter(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.handleServiceError(w, r, "[API_GET_PARAMETER_ERROR] Failed to get parameter", err)
		return
	}

	h.sendJSON(w, parameter, http.StatusOK)
}

// Ingest handles POST /ingest/. The body names either a region and parameter
// of the published datasets or a dataset url.
func (h *WeatherHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		h.sendIngestError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	req.Region = strings.TrimSpace(req.Region)
	req.Parameter = strings.TrimSpace(req.Parameter)
	req.URL = strings.TrimSpace(req.URL)

	if req.URL == "" && (req.Region == "" || req.Parameter == "") {
		h.sendIngestError(w, r, "either url or both region and parameter are required", http.StatusBadRequest)
		return
	}

	mode := h.ingestionService.DefaultMode()
	if req.Mode != "" {
		parsed, err := models.ParseIngestionMode(req.Mode)
		if err != nil {
			h.sendIngestError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		mode = parsed
	}

	h.logger.Info(ctx, "[API_INGEST] Ingestion requested", logging.Fields{
		"region":    req.Region,
		"parameter": req.Parameter,
		"url":       req.URL,
		"mode":      string(mode),
	})

	var (
		result *services.IngestionResult
		err    error
	)
	if req.URL != "" {
		result, err = h.ingestionService.IngestURL(ctx, req.URL, req.Region, req.Parameter, mode)
	} else {
		result, err = h.ingestionService.IngestRemote(ctx, req.Region, req.Parameter, mode)
	}

	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error(ctx, "[API_INGEST_ERROR] Ingestion failed", logging.Fields{
				"region":    req.Region,
				"parameter": req.Parameter,
			}, err)
		}
		h.sendIngestError(w, r, err.Error(), status)
		return
	}

	h.sendJSON(w, IngestResponse{
		Success:        true,
		RecordsCreated: result.RecordsCreated,
		RecordsSkipped: result.RecordsSkipped,
		Region:         result.Region,
		Parameter:      result.Parameter,
		URL:            result.URL,
		Mode:           string(result.Mode),
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Store unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "unhealthy"
			status["database"] = "unreachable"
			h.sendJSON(w, status, http.StatusServiceUnavailable)
			return
		}
	}

	h.sendJSON(w, status, http.StatusOK)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var (
		validationErr *models.ValidationError
		notFoundErr   *repository.NotFoundError
		unknownErr    *models.UnknownCatalogEntryError
		fetchErr      *models.FetchError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr), errors.As(err, &unknownErr):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError logs unexpected failures and answers with the mapped status
func (h *WeatherHandler) handleServiceError(w http.ResponseWriter, r *http.Request, logMessage string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), logMessage, logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.sendError(w, r, "internal server error", status)
		return
	}
	h.sendError(w, r, err.Error(), status)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIError(errorType(statusCode), routeName(r))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// sendIngestError sends the ingestion failure shape
func (h *WeatherHandler) sendIngestError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIError(errorType(statusCode), routeName(r))
	h.sendJSON(w, IngestResponse{Success: false, Error: message}, statusCode)
}

func errorType(statusCode int) string {
	return strings.ToLower(strings.ReplaceAll(http.StatusText(statusCode), " ", "_"))
}

func intParam(raw, name string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q, expected an integer", name, raw)
	}
	return &v, nil
}

func boolParam(raw, name string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q, expected true or false", name, raw)
	}
	return v, nil
}

// pageParams parses page and page_size; absent values come back as zero
func pageParams(rawPage, rawSize string) (int, int, error) {
	page, err := intParam(rawPage, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := intParam(rawSize, "page_size")
	if err != nil {
		return 0, 0, err
	}

	var p, s int
	if page != nil {
		if *page < 1 {
			return 0, 0, fmt.Errorf("invalid page %d, expected a positive integer", *page)
		}
		p = *page
	}
	if size != nil {
		if *size < 1 {
			return 0, 0, fmt.Errorf("invalid page_size %d, expected a positive integer", *size)
		}
		s = *size
	}
	return p, s, nil
}

// NewRouter builds the API router with request id and metrics middleware.
// GET paths without the trailing slash are redirected to it.
func NewRouter(h *WeatherHandler) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(RequestID, Instrument(h.metrics, h.logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers all API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Overview).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	router.HandleFunc("/regions/", h.ListRegions).Methods(http.MethodGet)
	router.HandleFunc("/regions/{code}/", h.GetRegion).Methods(http.MethodGet)
	router.HandleFunc("/parameters/", h.ListParameters).Methods(http.MethodGet)
	router.HandleFunc("/parameters/{code}/", h.GetParameter).Methods(http.MethodGet)

	router.HandleFunc("/observations/", h.ListObservations).Methods(http.MethodGet)
	router.HandleFunc("/observations/summary/", h.GetSummaries).Methods(http.MethodGet)
	router.HandleFunc("/observations/{id:[0-9]+}/", h.GetObservation).Methods(http.MethodGet)

	// POST is never redirected; both spellings reach the handler
	ingest := router.PathPrefix("/ingest").Subrouter()
	ingest.StrictSlash(false)
	ingest.HandleFunc("/", h.Ingest).Methods(http.MethodPost)
	ingest.HandleFunc("", h.Ingest).Methods(http.MethodPost)

	router.HandleFunc("/docs", SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
}
