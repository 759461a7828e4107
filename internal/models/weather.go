package models

import (
	"fmt"
	"strings"
	"time"
)

// Region represents a geographic area covered by a climate series (e.g. "UK", "Scotland")
type Region struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	DataCount int       `json:"data_count" db:"data_count"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// Parameter represents a measured quantity with its unit (e.g. Tmax in °C)
type Parameter struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Unit      string    `json:"unit" db:"unit"`
	DataCount int       `json:"data_count" db:"data_count"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// Observation is one stored value for a region+parameter+period.
// A nil Month marks an annual entry.
type Observation struct {
	ID          int64     `json:"id" db:"id"`
	RegionID    int64     `json:"region_id" db:"region_id"`
	ParameterID int64     `json:"parameter_id" db:"parameter_id"`
	Year        int       `json:"year" db:"year"`
	Month       *int      `json:"month" db:"month"`
	Value       float64   `json:"value" db:"value"`
	SourceURL   string    `json:"source_url" db:"source_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ObservationRecord is an observation joined with its region and parameter display data
type ObservationRecord struct {
	ID            int64     `json:"id" db:"id"`
	Region        string    `json:"region" db:"region"`
	RegionName    string    `json:"region_name" db:"region_name"`
	Parameter     string    `json:"parameter" db:"parameter"`
	ParameterName string    `json:"parameter_name" db:"parameter_name"`
	ParameterUnit string    `json:"parameter_unit" db:"parameter_unit"`
	Year          int       `json:"year" db:"year"`
	Month         *int      `json:"month" db:"month"`
	Value         float64   `json:"value" db:"value"`
	SourceURL     string    `json:"source_url" db:"source_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ObservationSummary holds aggregate figures for one region+parameter series
type ObservationSummary struct {
	Region        string   `json:"region" db:"region"`
	RegionName    string   `json:"region_name" db:"region_name"`
	Parameter     string   `json:"parameter" db:"parameter"`
	ParameterName string   `json:"parameter_name" db:"parameter_name"`
	ParameterUnit string   `json:"parameter_unit" db:"parameter_unit"`
	Count         int      `json:"count" db:"count"`
	AnnualCount   int      `json:"annual_count" db:"annual_count"`
	MonthlyCount  int      `json:"monthly_count" db:"monthly_count"`
	FirstYear     *int     `json:"first_year" db:"first_year"`
	LastYear      *int     `json:"last_year" db:"last_year"`
	MinValue      *float64 `json:"min_value" db:"min_value"`
	MaxValue      *float64 `json:"max_value" db:"max_value"`
	AvgValue      *float64 `json:"avg_value" db:"avg_value"`
}

// Reading is a single (year, month, value) tuple produced by the text parser.
// Month is nil for annual values.
type Reading struct {
	Year  int
	Month *int
	Value float64
}

// IsAnnual reports whether the reading is a yearly aggregate
func (r Reading) IsAnnual() bool {
	return r.Month == nil
}

// Period formats the reading period as YYYY or YYYY-MM
func (r Reading) Period() string {
	if r.Month == nil {
		return fmt.Sprintf("%04d", r.Year)
	}
	return fmt.Sprintf("%04d-%02d", r.Year, *r.Month)
}

// ToObservation converts a parsed reading into an observation row for the given catalog ids
func (r Reading) ToObservation(regionID, parameterID int64, sourceURL string, createdAt time.Time) (*Observation, error) {
	if r.Year < 1 {
		return nil, &ValidationError{
			Field:   "year",
			Value:   fmt.Sprintf("%d", r.Year),
			Message: "year must be positive",
		}
	}

	obs := &Observation{
		RegionID:    regionID,
		ParameterID: parameterID,
		Year:        r.Year,
		Value:       r.Value,
		SourceURL:   sourceURL,
		CreatedAt:   createdAt.UTC(),
	}

	if r.Month != nil {
		if *r.Month < 1 || *r.Month > 12 {
			return nil, &ValidationError{
				Field:   "month",
				Value:   fmt.Sprintf("%d", *r.Month),
				Message: "month must be between 1 and 12",
			}
		}
		month := *r.Month
		obs.Month = &month
	}

	return obs, nil
}

// IngestionMode selects which values of a full-year line become observations
type IngestionMode string

const (
	// ModeAnnual keeps only the annual column
	ModeAnnual IngestionMode = "annual"
	// ModeMonthly keeps only the twelve monthly columns
	ModeMonthly IngestionMode = "monthly"
	// ModeAll keeps monthly and annual values
	ModeAll IngestionMode = "all"
)

// ParseIngestionMode parses a mode name, case-insensitively
func ParseIngestionMode(s string) (IngestionMode, error) {
	switch IngestionMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAnnual:
		return ModeAnnual, nil
	case ModeMonthly:
		return ModeMonthly, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", &ValidationError{
			Field:   "mode",
			Value:   s,
			Message: "invalid ingestion mode, expected annual, monthly or all",
		}
	}
}

// IncludesAnnual reports whether annual columns are emitted in this mode
func (m IngestionMode) IncludesAnnual() bool {
	return m == ModeAnnual || m == ModeAll
}

// IncludesMonthly reports whether monthly columns are emitted in this mode
func (m IngestionMode) IncludesMonthly() bool {
	return m == ModeMonthly || m == ModeAll
}
