package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunReport describes the outcome of one crawl run.
type RunReport struct {
	RunID         string    `json:"run_id"`
	RootURL       string    `json:"root_url"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	PagesFetched  int64     `json:"pages_fetched"`
	Categories    int       `json:"categories"`
	Subcategories int       `json:"subcategories"`
	Items         int       `json:"items"`
	Error         string    `json:"error,omitempty"`
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
