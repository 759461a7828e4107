package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
)

const series = `UK Mean daily maximum temp (Degrees C)
Areal series, starting from 1884

year    jan    feb    mar    apr    may    jun    jul    aug    sep    oct    nov    dec     win     spr     sum     aut     ann
1884    8.3    7.8    9.6   11.3   15.3   17.5   19.5   20.6   17.6   12.6    8.1    6.2     ---   12.05   19.18   12.78   12.90
1885    4.9    8.4    8.9   12.2   12.8   18.1   21.0   18.6   15.6   10.2    8.6    6.3    6.45   11.28   19.21   11.48   12.14
2024    8.7    ---    ---    ---    ---    ---    ---    ---    ---    ---    ---    ---     7.93     ---     ---     ---     ---
`

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		mode      models.IngestionMode
		column    parser.AnnualColumn
		readings  int
		annual    int
		monthly   int
		min, max  float64
		firstYear int
		lastYear  int
	}{
		{"all", models.ModeAll, "", 27, 2, 25, 4.9, 21.0, 1884, 2024},
		{"annual", models.ModeAnnual, "", 2, 2, 0, 6.45, 7.93, 1885, 2024},
		{"annual last column", models.ModeAnnual, parser.AnnualLast, 2, 2, 0, 12.14, 12.90, 1884, 1885},
		{"monthly", models.ModeMonthly, "", 25, 0, 25, 4.9, 21.0, 1884, 2024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := parser.Options{Mode: tt.mode, AnnualColumn: tt.column}
			report, err := check("UK.txt", strings.NewReader(series), opts, 2)
			require.NoError(t, err)

			assert.Equal(t, tt.readings, report.Readings)
			assert.Equal(t, tt.annual, report.Annual)
			assert.Equal(t, tt.monthly, report.Monthly)
			assert.Equal(t, tt.firstYear, report.FirstYear)
			assert.Equal(t, tt.lastYear, report.LastYear)
			assert.InDelta(t, tt.min, report.Min, 1e-9)
			assert.InDelta(t, tt.max, report.Max, 1e-9)
			assert.Len(t, report.Sample, 2)
			// title lines ahead of the table are not counted
			assert.Empty(t, report.Malformed)
		})
	}
}

func TestCheck_CustomPlaceholder(t *testing.T) {
	report, err := check("x.txt", strings.NewReader("2023 n/a 9.2\n"), parser.Options{Placeholder: "n/a"}, 5)
	require.NoError(t, err)

	require.Len(t, report.Sample, 1)
	assert.Nil(t, report.Sample[0].Month)
	assert.InDelta(t, 9.2, report.Sample[0].Value, 1e-9)
	assert.Empty(t, report.Malformed)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Tmax"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tmax", "UK.txt"), []byte(series), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tmax", "notes.md"), []byte("x"), 0o644))
	single := filepath.Join(dir, "single.txt")
	require.NoError(t, os.WriteFile(single, []byte(series), 0o644))

	paths, err := expand([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Tmax", "UK.txt"), single}, paths)

	_, err = expand([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
