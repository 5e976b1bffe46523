package model

import "time"

// RunStatus represents the current state of a city processing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// CityRef identifies one city's inputs under the data root.
type CityRef struct {
	State         string `json:"state"`
	City          string `json:"city"`
	DistrictField string `json:"district_field"`
}

// Run represents a single processing run for a city.
type Run struct {
	ID         string     `json:"id"`
	City       CityRef    `json:"city"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResult holds the counters reported by a completed run.
type RunResult struct {
	OutputPath      string  `json:"output_path"`
	Districts       int     `json:"districts"`
	BlockGroups     int     `json:"block_groups"`
	Pieces          int     `json:"pieces"`
	Counties        int     `json:"counties"`
	CountiesFailed  int     `json:"counties_failed"`
	TotalPopulation float64 `json:"total_population"`
	DurationMs      int64   `json:"duration_ms"`
}
