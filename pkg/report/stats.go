// Package report parses the machine-readable summary statistics that a
// simulation writes alongside its HTML report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/perfops/simarchive/pkg/workspace"
)

// Metric is one aggregate value broken down by request outcome.
type Metric struct {
	Total float64 `json:"total"`
	OK    float64 `json:"ok"`
	KO    float64 `json:"ko"`
}

// Group is one response-time bucket of the summary document.
type Group struct {
	Name       string  `json:"name"`
	HTMLName   string  `json:"htmlName"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GlobalStats is the parsed content of a report's summary-statistics
// file. The aggregate is treated as an opaque payload by the archival
// layers; only the presentation side interprets individual fields.
type GlobalStats struct {
	Name                          string `json:"name"`
	NumberOfRequests              Metric `json:"numberOfRequests"`
	MinResponseTime               Metric `json:"minResponseTime"`
	MaxResponseTime               Metric `json:"maxResponseTime"`
	MeanResponseTime              Metric `json:"meanResponseTime"`
	StandardDeviation             Metric `json:"standardDeviation"`
	Percentiles1                  Metric `json:"percentiles1"`
	Percentiles2                  Metric `json:"percentiles2"`
	Percentiles3                  Metric `json:"percentiles3"`
	Percentiles4                  Metric `json:"percentiles4"`
	Group1                        *Group `json:"group1,omitempty"`
	Group2                        *Group `json:"group2,omitempty"`
	Group3                        *Group `json:"group3,omitempty"`
	Group4                        *Group `json:"group4,omitempty"`
	MeanNumberOfRequestsPerSecond Metric `json:"meanNumberOfRequestsPerSecond"`
}

// ParseError reports a summary-statistics file that is missing,
// unreadable, or not valid JSON in the expected shape.
type ParseError struct {
	Dir string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing summary statistics in %s: %v", e.Dir, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadStats locates the summary-statistics file inside an archived report
// directory and decodes it. The archive is always local to the archiving
// host, so this reads the filesystem directly.
func ReadStats(dir string) (*GlobalStats, error) {
	path, err := findStatsFile(dir)
	if err != nil {
		return nil, &ParseError{Dir: dir, Err: err}
	}

	data, err := os.ReadFile(path) //nolint:gosec // path found under dir
	if err != nil {
		return nil, &ParseError{Dir: dir, Err: err}
	}

	var stats GlobalStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, &ParseError{Dir: dir, Err: err}
	}

	return &stats, nil
}

// findStatsFile returns the first summary-statistics file found under
// dir, in lexical walk order.
func findStatsFile(dir string) (string, error) {
	var found string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if found != "" {
			return filepath.SkipAll
		}

		if !info.IsDir() && info.Name() == workspace.StatsFileName {
			found = path
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", fmt.Errorf("no %s file found", workspace.StatsFileName)
	}

	return found, nil
}
