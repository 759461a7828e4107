// Package parser reads Met Office climate series text.
//
// A series file is a whitespace-separated table. Each data line starts with a
// four digit year followed by up to twelve monthly values, then optionally
// four seasonal values and an annual value. Comment lines start with '#', the
// header line starts with "Year", and missing slots hold a placeholder token.
// Free text before the first data line (title, series notes, update stamp) is
// preamble and is skipped.
package parser

import (
	"bufio"
	"iter"
	"math"
	"strconv"
	"strings"

	"uk-weather-platform/internal/models"
)

// DefaultPlaceholder is the token the source format uses for missing values
const DefaultPlaceholder = "---"

const (
	monthsPerYear = 12
	// 12 months + win/spr/sum/aut + ann
	seasonalLayoutValues = 17
	maxLineBytes         = 1 << 20
)

// AnnualColumn selects which value on a long line is the annual figure
type AnnualColumn string

const (
	// AnnualThirteenth reads the annual value from the token after the twelve months.
	AnnualThirteenth AnnualColumn = "thirteenth"
	// AnnualLast reads it from the final column of the seasonal layout
	// (months, win/spr/sum/aut, ann) and falls back to the thirteenth token on
	// shorter lines.
	AnnualLast AnnualColumn = "last"
)

// ParseAnnualColumn validates a configured annual column, defaulting to thirteenth
func ParseAnnualColumn(s string) (AnnualColumn, error) {
	switch c := AnnualColumn(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return AnnualThirteenth, nil
	case AnnualThirteenth, AnnualLast:
		return c, nil
	default:
		return "", &models.ValidationError{Field: "annual_column", Value: s, Message: "annual_column must be thirteenth or last"}
	}
}

// Options configures a Parser
type Options struct {
	Placeholder  string
	Mode         models.IngestionMode
	AnnualColumn AnnualColumn
	// OnMalformed is called for every dropped line or value. May be nil.
	OnMalformed func(*models.MalformedLineError)
}

// Parser converts raw series text into readings. It holds no state between
// parses and is safe for concurrent use.
type Parser struct {
	placeholder  string
	mode         models.IngestionMode
	annualColumn AnnualColumn
	onMalformed  func(*models.MalformedLineError)
}

// New creates a parser, defaulting the placeholder to "---", the mode to
// annual and the annual column to thirteenth
func New(opts Options) *Parser {
	p := &Parser{
		placeholder:  opts.Placeholder,
		mode:         opts.Mode,
		annualColumn: opts.AnnualColumn,
		onMalformed:  opts.OnMalformed,
	}
	if p.placeholder == "" {
		p.placeholder = DefaultPlaceholder
	}
	if p.mode == "" {
		p.mode = models.ModeAnnual
	}
	if p.annualColumn == "" {
		p.annualColumn = AnnualThirteenth
	}
	return p
}

// Mode returns the ingestion mode the parser emits readings for
func (p *Parser) Mode() models.IngestionMode {
	return p.mode
}

// Parse returns a lazy sequence of readings in file order. Each range over the
// sequence re-reads text from the start.
func (p *Parser) Parse(text string) iter.Seq[models.Reading] {
	return func(yield func(models.Reading) bool) {
		scanner := bufio.NewScanner(strings.NewReader(text))
		scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

		lineNo := 0
		inPreamble := true
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if inPreamble {
				if !startsWithDigit(line) {
					continue
				}
				inPreamble = false
			}
			for _, reading := range p.parseLine(lineNo, line) {
				if !yield(reading) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			p.malformed(&models.MalformedLineError{
				Line:   lineNo + 1,
				Reason: "unreadable input: " + err.Error(),
			})
		}
	}
}

// Collect drains Parse into a slice
func (p *Parser) Collect(text string) []models.Reading {
	var readings []models.Reading
	for r := range p.Parse(text) {
		readings = append(readings, r)
	}
	return readings
}

// parseLine expects a trimmed line
func (p *Parser) parseLine(lineNo int, trimmed string) []models.Reading {
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	fields := strings.Fields(trimmed)
	if strings.EqualFold(fields[0], "year") {
		return nil
	}

	year, ok := parseYear(fields[0])
	if !ok {
		p.malformed(&models.MalformedLineError{
			Line:   lineNo,
			Text:   trimmed,
			Token:  fields[0],
			Reason: "line does not start with a four digit year",
		})
		return nil
	}

	values := fields[1:]
	switch {
	case len(values) == 0:
		p.malformed(&models.MalformedLineError{
			Line:   lineNo,
			Text:   trimmed,
			Reason: "year has no values",
		})
		return nil

	case len(values) <= 2:
		// Short lines carry a single annual figure in every mode.
		for _, tok := range values {
			if v, ok := p.value(lineNo, trimmed, tok); ok {
				return []models.Reading{{Year: year, Value: v}}
			}
		}
		return nil
	}

	var readings []models.Reading

	if p.mode.IncludesMonthly() {
		for i := 0; i < monthsPerYear && i < len(values); i++ {
			v, ok := p.value(lineNo, trimmed, values[i])
			if !ok {
				continue
			}
			month := i + 1
			readings = append(readings, models.Reading{Year: year, Month: &month, Value: v})
		}
	}

	if p.mode.IncludesAnnual() && len(values) > monthsPerYear {
		annualIdx := monthsPerYear
		if p.annualColumn == AnnualLast && len(values) >= seasonalLayoutValues {
			annualIdx = seasonalLayoutValues - 1
		}
		if v, ok := p.value(lineNo, trimmed, values[annualIdx]); ok {
			readings = append(readings, models.Reading{Year: year, Value: v})
		}
	}

	return readings
}

// value parses one slot. Placeholders are silently skipped; other failures are reported.
func (p *Parser) value(lineNo int, line, tok string) (float64, bool) {
	if tok == p.placeholder {
		return 0, false
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.malformed(&models.MalformedLineError{
			Line:   lineNo,
			Text:   line,
			Token:  tok,
			Reason: "invalid numeric value",
		})
		return 0, false
	}
	return v, true
}

func (p *Parser) malformed(err *models.MalformedLineError) {
	if p.onMalformed != nil {
		p.onMalformed(err)
	}
}

func startsWithDigit(line string) bool {
	return line != "" && line[0] >= '0' && line[0] <= '9'
}

func parseYear(tok string) (int, bool) {
	if len(tok) != 4 {
		return 0, false
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	year, err := strconv.Atoi(tok)
	if err != nil || year < 1 {
		return 0, false
	}
	return year, true
}
