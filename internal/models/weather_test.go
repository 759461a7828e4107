package models

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// TestReading_ToObservation tests the conversion from parsed readings to rows
func TestReading_ToObservation(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		reading     Reading
		wantErr     bool
		checkValues func(*testing.T, *Observation)
	}{
		{
			name:    "monthly reading",
			reading: Reading{Year: 2023, Month: intPtr(1), Value: 8.5},
			checkValues: func(t *testing.T, obs *Observation) {
				require.NotNil(t, obs.Month)
				assert.Equal(t, 1, *obs.Month)
				assert.Equal(t, 2023, obs.Year)
				assert.Equal(t, 8.5, obs.Value)
				assert.Equal(t, int64(7), obs.RegionID)
				assert.Equal(t, int64(9), obs.ParameterID)
				assert.Equal(t, "https://example.test/Tmax/date/UK.txt", obs.SourceURL)
				assert.True(t, obs.CreatedAt.Equal(createdAt))
			},
		},
		{
			name:    "annual reading keeps nil month",
			reading: Reading{Year: 2023, Value: 12.96},
			checkValues: func(t *testing.T, obs *Observation) {
				assert.Nil(t, obs.Month)
				assert.Equal(t, 12.96, obs.Value)
			},
		},
		{
			name:    "negative values are valid",
			reading: Reading{Year: 1963, Month: intPtr(1), Value: -2.1},
			checkValues: func(t *testing.T, obs *Observation) {
				assert.Equal(t, -2.1, obs.Value)
			},
		},
		{
			name:    "month out of range",
			reading: Reading{Year: 2023, Month: intPtr(13), Value: 1},
			wantErr: true,
		},
		{
			name:    "year zero",
			reading: Reading{Year: 0, Value: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.reading.ToObservation(7, 9, "https://example.test/Tmax/date/UK.txt", createdAt)
			if tt.wantErr {
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			tt.checkValues(t, obs)
		})
	}
}

func TestReading_ToObservationCopiesMonth(t *testing.T) {
	month := 4
	obs, err := Reading{Year: 2020, Month: &month, Value: 1}.ToObservation(1, 1, "", time.Now())
	require.NoError(t, err)

	month = 5
	assert.Equal(t, 4, *obs.Month)
}

func TestReading_Period(t *testing.T) {
	assert.Equal(t, "2023", Reading{Year: 2023}.Period())
	assert.Equal(t, "2023-03", Reading{Year: 2023, Month: intPtr(3)}.Period())
	assert.True(t, Reading{Year: 2023}.IsAnnual())
	assert.False(t, Reading{Year: 2023, Month: intPtr(3)}.IsAnnual())
}

func TestParseIngestionMode(t *testing.T) {
	tests := []struct {
		in      string
		want    IngestionMode
		wantErr bool
	}{
		{in: "annual", want: ModeAnnual},
		{in: "Monthly", want: ModeMonthly},
		{in: " all ", want: ModeAll},
		{in: "weekly", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIngestionMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, ModeAll.IncludesAnnual())
	assert.True(t, ModeAll.IncludesMonthly())
	assert.False(t, ModeAnnual.IncludesMonthly())
	assert.False(t, ModeMonthly.IncludesAnnual())
}

// TestErrors tests error messages and transience classification
func TestErrors(t *testing.T) {
	vErr := &ValidationError{Field: "year", Value: "x", Message: "invalid year"}
	assert.Equal(t, "invalid year", vErr.Error())
	assert.False(t, vErr.IsTransient())

	netErr := &FetchError{URL: "https://example.test", Err: errors.New("connection refused")}
	assert.Contains(t, netErr.Error(), "connection refused")
	assert.True(t, netErr.IsTransient())
	assert.True(t, errors.Is(netErr, netErr.Err))

	notFound := &FetchError{URL: "https://example.test", StatusCode: http.StatusNotFound}
	assert.Contains(t, notFound.Error(), "404")
	assert.False(t, notFound.IsTransient())

	unavailable := &FetchError{URL: "https://example.test", StatusCode: http.StatusServiceUnavailable}
	assert.True(t, unavailable.IsTransient())

	unknown := &UnknownCatalogEntryError{Kind: "region", Code: "Atlantis"}
	assert.Equal(t, `unknown region "Atlantis"`, unknown.Error())
	assert.False(t, unknown.IsTransient())

	malformed := &MalformedLineError{Line: 4, Token: "abc", Reason: "invalid value"}
	assert.Equal(t, `line 4: invalid value: "abc"`, malformed.Error())
}
