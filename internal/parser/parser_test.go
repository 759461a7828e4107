package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk-weather-platform/internal/models"
)

const fullYearLine = "2023 8.5 9.2 10.1 12.0 14.5 17.0 19.2 18.8 16.0 13.1 10.2 9.0 12.96"

// A trimmed copy of a real Met Office series file.
const sampleSeries = `UK Mean daily maximum temp (Degrees C)
Areal series, starting from 1884
Monthly, seasonal and annual statistics.
Last updated 01-Feb-2024 11:13

year    jan    feb    mar    apr    may    jun    jul    aug    sep    oct    nov    dec     win     spr     sum     aut     ann
1884    8.3    7.8    9.6   11.3   15.3   17.5   19.5   20.6   17.6   12.6    8.1    6.2     ---   12.05   19.18   12.78   12.90
1885    4.9    8.4    8.9   12.2   12.8   18.1   21.0   18.6   15.6   10.2    8.6    6.3    6.45   11.28   19.21   11.48   12.14
2024    8.7    ---    ---    ---    ---    ---    ---    ---    ---    ---    ---    ---     7.93     ---     ---     ---     ---
`

func monthPtr(m int) *int { return &m }

func TestParser_FullYearLine(t *testing.T) {
	tests := []struct {
		name string
		mode models.IngestionMode
		want []models.Reading
	}{
		{
			name: "annual mode yields only the annual value",
			mode: models.ModeAnnual,
			want: []models.Reading{{Year: 2023, Value: 12.96}},
		},
		{
			name: "monthly mode yields twelve monthly values",
			mode: models.ModeMonthly,
			want: []models.Reading{
				{Year: 2023, Month: monthPtr(1), Value: 8.5},
				{Year: 2023, Month: monthPtr(2), Value: 9.2},
				{Year: 2023, Month: monthPtr(3), Value: 10.1},
				{Year: 2023, Month: monthPtr(4), Value: 12.0},
				{Year: 2023, Month: monthPtr(5), Value: 14.5},
				{Year: 2023, Month: monthPtr(6), Value: 17.0},
				{Year: 2023, Month: monthPtr(7), Value: 19.2},
				{Year: 2023, Month: monthPtr(8), Value: 18.8},
				{Year: 2023, Month: monthPtr(9), Value: 16.0},
				{Year: 2023, Month: monthPtr(10), Value: 13.1},
				{Year: 2023, Month: monthPtr(11), Value: 10.2},
				{Year: 2023, Month: monthPtr(12), Value: 9.0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Mode: tt.mode})
			assert.Equal(t, tt.want, p.Collect(fullYearLine))
		})
	}
}

func TestParser_AllModeYieldsMonthsThenAnnual(t *testing.T) {
	p := New(Options{Mode: models.ModeAll})
	readings := p.Collect(fullYearLine)

	require.Len(t, readings, 13)
	assert.Equal(t, 1, *readings[0].Month)
	assert.Equal(t, 12, *readings[11].Month)
	assert.True(t, readings[12].IsAnnual())
	assert.Equal(t, 12.96, readings[12].Value)
}

func TestParser_ShortLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		mode  models.IngestionMode
		want  []models.Reading
	}{
		{
			name:  "placeholder then value",
			input: "2023 --- 9.2",
			mode:  models.ModeAnnual,
			want:  []models.Reading{{Year: 2023, Value: 9.2}},
		},
		{
			name:  "single value",
			input: "1999 11.4",
			mode:  models.ModeAnnual,
			want:  []models.Reading{{Year: 1999, Value: 11.4}},
		},
		{
			name:  "short line is annual in monthly mode too",
			input: "1999 11.4",
			mode:  models.ModeMonthly,
			want:  []models.Reading{{Year: 1999, Value: 11.4}},
		},
		{
			name:  "first usable value wins",
			input: "2001 7.5 8.1",
			mode:  models.ModeAnnual,
			want:  []models.Reading{{Year: 2001, Value: 7.5}},
		},
		{
			name:  "only placeholders",
			input: "2002 --- ---",
			mode:  models.ModeAnnual,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Mode: tt.mode})
			assert.Equal(t, tt.want, p.Collect(tt.input))
		})
	}
}

func TestParser_SkipsCommentsHeadersAndBlankLines(t *testing.T) {
	input := "# comment line\n\nYear Jan Feb\n   \nyear jan feb\n2020 5.5\n"

	var malformed []*models.MalformedLineError
	p := New(Options{OnMalformed: func(e *models.MalformedLineError) { malformed = append(malformed, e) }})

	assert.Equal(t, []models.Reading{{Year: 2020, Value: 5.5}}, p.Collect(input))
	assert.Empty(t, malformed)
}

func TestParser_PlaceholdersNeverYield(t *testing.T) {
	line := "2010 --- 4.1 --- 8.0 11.2 --- 16.3 15.9 13.0 --- 6.6 --- ---"

	p := New(Options{Mode: models.ModeAll})
	readings := p.Collect(line)

	months := make([]int, 0, len(readings))
	for _, r := range readings {
		require.NotNil(t, r.Month, "annual placeholder must not yield")
		months = append(months, *r.Month)
	}
	assert.Equal(t, []int{2, 4, 5, 7, 8, 9, 11}, months)
}

func TestParser_CustomPlaceholder(t *testing.T) {
	p := New(Options{Placeholder: "n/a", Mode: models.ModeAnnual})
	assert.Equal(t, []models.Reading{{Year: 2023, Value: 9.2}}, p.Collect("2023 n/a 9.2"))
}

func TestParser_MalformedValuesAreDroppedNotFatal(t *testing.T) {
	input := "2019 1.0 2.0 bad 4.0 5.0 6.0 7.0 8.0 9.0 10.0 11.0 12.0 6.5\n" +
		"20x0 1.0\n" +
		"2021 NaN\n" +
		"2022 3.3\n"

	var malformed []*models.MalformedLineError
	p := New(Options{
		Mode:        models.ModeAll,
		OnMalformed: func(e *models.MalformedLineError) { malformed = append(malformed, e) },
	})
	readings := p.Collect(input)

	// 11 months + annual from 2019, annual from 2022
	require.Len(t, readings, 13)
	assert.Equal(t, 2022, readings[12].Year)
	assert.Equal(t, 3.3, readings[12].Value)

	require.Len(t, malformed, 3)
	assert.Equal(t, 1, malformed[0].Line)
	assert.Equal(t, "bad", malformed[0].Token)
	assert.Equal(t, 2, malformed[1].Line)
	assert.Equal(t, "20x0", malformed[1].Token)
	assert.Equal(t, 3, malformed[2].Line)
}

func TestParser_YearWithoutValues(t *testing.T) {
	var malformed []*models.MalformedLineError
	p := New(Options{OnMalformed: func(e *models.MalformedLineError) { malformed = append(malformed, e) }})

	assert.Empty(t, p.Collect("2020"))
	require.Len(t, malformed, 1)
	assert.Equal(t, "year has no values", malformed[0].Reason)
}

func TestParser_RejectsNonFourDigitYears(t *testing.T) {
	p := New(Options{})
	assert.Empty(t, p.Collect("0000 1.0\n123 1.0\n20230 1.0"))
}

func TestParser_PartialYear(t *testing.T) {
	line := "2024 8.7 9.1 10.0"

	monthly := New(Options{Mode: models.ModeMonthly}).Collect(line)
	require.Len(t, monthly, 3)
	assert.Equal(t, 3, *monthly[2].Month)

	assert.Empty(t, New(Options{Mode: models.ModeAnnual}).Collect(line))
}

func TestParser_AnnualColumn(t *testing.T) {
	tests := []struct {
		name   string
		column AnnualColumn
		want   []models.Reading
	}{
		{
			// 1884 has a placeholder in the thirteenth slot
			name:   "thirteenth token by default",
			column: "",
			want:   []models.Reading{{Year: 1885, Value: 6.45}, {Year: 2024, Value: 7.93}},
		},
		{
			name:   "thirteenth token",
			column: AnnualThirteenth,
			want:   []models.Reading{{Year: 1885, Value: 6.45}, {Year: 2024, Value: 7.93}},
		},
		{
			// 2024 has a placeholder annual value
			name:   "last column of the seasonal layout",
			column: AnnualLast,
			want: []models.Reading{
				{Year: 1884, Value: 12.90},
				{Year: 1885, Value: 12.14},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Mode: models.ModeAnnual, AnnualColumn: tt.column})
			assert.Equal(t, tt.want, p.Collect(sampleSeries))
		})
	}
}

func TestParser_AnnualLastFallsBackOnThirteenTokenLines(t *testing.T) {
	p := New(Options{Mode: models.ModeAnnual, AnnualColumn: AnnualLast})
	assert.Equal(t, []models.Reading{{Year: 2023, Value: 12.96}}, p.Collect(fullYearLine))
}

func TestParser_SeasonalLayoutMonths(t *testing.T) {
	monthly := New(Options{Mode: models.ModeMonthly}).Collect(sampleSeries)
	assert.Len(t, monthly, 12+12+1)
	last := monthly[len(monthly)-1]
	assert.Equal(t, 2024, last.Year)
	assert.Equal(t, 1, *last.Month)
	assert.Equal(t, 8.7, last.Value)
}

func TestParser_PreambleIsNotMalformed(t *testing.T) {
	var malformed []*models.MalformedLineError
	p := New(Options{
		Mode:        models.ModeAll,
		OnMalformed: func(e *models.MalformedLineError) { malformed = append(malformed, e) },
	})

	assert.Len(t, p.Collect(sampleSeries), 25+2)
	assert.Empty(t, malformed)
}

func TestParser_TextAfterDataIsMalformed(t *testing.T) {
	var malformed []*models.MalformedLineError
	p := New(Options{OnMalformed: func(e *models.MalformedLineError) { malformed = append(malformed, e) }})

	assert.Equal(t, []models.Reading{{Year: 2020, Value: 5.5}}, p.Collect("Title
2020 5.5
footnote here
"))
	require.Len(t, malformed, 1)
	assert.Equal(t, 3, malformed[0].Line)
	assert.Equal(t, "footnote", malformed[0].Token)
}

func TestParseAnnualColumn(t *testing.T) {
	c, err := ParseAnnualColumn("")
	require.NoError(t, err)
	assert.Equal(t, AnnualThirteenth, c)

	c, err = ParseAnnualColumn(" LAST ")
	require.NoError(t, err)
	assert.Equal(t, AnnualLast, c)

	_, err = ParseAnnualColumn("first")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParser_IsLazyAndRestartable(t *testing.T) {
	p := New(Options{Mode: models.ModeMonthly})
	seq := p.Parse(sampleSeries)

	var first []models.Reading
	for r := range seq {
		first = append(first, r)
		if len(first) == 2 {
			break
		}
	}
	require.Len(t, first, 2)

	var all []models.Reading
	for r := range seq {
		all = append(all, r)
	}
	assert.Len(t, all, 25)
	assert.Equal(t, first, all[:2])
}

func TestParser_EmptyAndGarbageInput(t *testing.T) {
	p := New(Options{Mode: models.ModeAll})
	assert.Empty(t, p.Collect(""))
	assert.Empty(t, p.Collect("<html><body>Not Found</body></html>"))
}

func TestNew_Defaults(t *testing.T) {
	p := New(Options{})
	assert.Equal(t, models.ModeAnnual, p.Mode())
	assert.Equal(t, DefaultPlaceholder, p.placeholder)
	assert.Equal(t, AnnualThirteenth, p.annualColumn)
}
