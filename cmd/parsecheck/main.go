// Command parsecheck parses series files offline and reports what an ingestion
// would store, without touching a database.
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/internal/parser"
	"uk-weather-platform/pkg/ui"
)

type fileReport struct {
	Path      string
	Readings  int
	Annual    int
	Monthly   int
	Malformed []string
	FirstYear int
	LastYear  int
	Min       float64
	Max       float64
	Sample    []models.Reading
}

func main() {
	fs := flag.NewFlagSet("parsecheck", flag.ExitOnError)
	modeFlag := fs.String("mode", string(models.ModeAll), "Ingestion mode: annual, monthly or all")
	annualFlag := fs.String("annual-column", string(parser.AnnualThirteenth), "Annual value column: thirteenth or last")
	placeholder := fs.String("placeholder", parser.DefaultPlaceholder, "Token marking a missing value")
	show := fs.Int("show", 3, "Readings to print per file")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: parsecheck [flags] <file|dir>...\n\nDirectories are scanned as <dir>/<parameter>/<region>.txt.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	ui.InitColors(*noColor)

	mode, err := models.ParseIngestionMode(*modeFlag)
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(2)
	}

	annualColumn, err := parser.ParseAnnualColumn(*annualFlag)
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(2)
	}

	paths, err := expand(fs.Args())
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(2)
	}
	if len(paths) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	var totalReadings, totalMalformed, failed int
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			ui.Errorf("%v", err)
			failed++
			continue
		}
		report, err := check(path, f, parser.Options{Placeholder: *placeholder, Mode: mode, AnnualColumn: annualColumn}, *show)
		f.Close()
		if err != nil {
			ui.Errorf("%s: %v", path, err)
			failed++
			continue
		}

		printReport(report)
		totalReadings += report.Readings
		totalMalformed += len(report.Malformed)
	}

	fmt.Fprintln(ui.Output)
	ui.Header("Summary")
	ui.Field("Files", len(paths))
	ui.Field("Readings", totalReadings)
	ui.Field("Malformed values", totalMalformed)
	ui.Field("Mode", mode)

	if failed > 0 {
		ui.Errorf("%d files could not be read", failed)
		os.Exit(1)
	}
	ui.Successf("All files parsed")
}

// expand replaces directories with the series files beneath them
func expand(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*", "*.txt"))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func check(path string, r io.Reader, opts parser.Options, sample int) (*fileReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	report := &fileReport{Path: path, Min: math.Inf(1), Max: math.Inf(-1)}
	opts.OnMalformed = func(e *models.MalformedLineError) {
		report.Malformed = append(report.Malformed, e.Error())
	}

	for reading := range parser.New(opts).Parse(string(raw)) {
		report.Readings++
		if reading.IsAnnual() {
			report.Annual++
		} else {
			report.Monthly++
		}
		if report.FirstYear == 0 || reading.Year < report.FirstYear {
			report.FirstYear = reading.Year
		}
		if reading.Year > report.LastYear {
			report.LastYear = reading.Year
		}
		report.Min = math.Min(report.Min, reading.Value)
		report.Max = math.Max(report.Max, reading.Value)
		if len(report.Sample) < sample {
			report.Sample = append(report.Sample, reading)
		}
	}

	return report, nil
}

func printReport(report *fileReport) {
	ui.Header(report.Path)
	ui.Field("Readings", report.Readings)
	ui.Field("Annual", report.Annual)
	ui.Field("Monthly", report.Monthly)
	if report.Readings > 0 {
		ui.Field("Years", fmt.Sprintf("%d-%d", report.FirstYear, report.LastYear))
		ui.Field("Range", fmt.Sprintf("%.2f to %.2f", report.Min, report.Max))
	}
	for _, reading := range report.Sample {
		ui.Field(reading.Period(), fmt.Sprintf("%.2f", reading.Value))
	}

	switch {
	case report.Readings == 0:
		ui.Warningf("No readings found")
	case len(report.Malformed) > 0:
		ui.Warningf("%d malformed values dropped", len(report.Malformed))
		ui.List(report.Malformed, 5)
	default:
		ui.Successf("Clean")
	}
}
