package model

import "time"

// RunRecord is one row of the opt-in run ledger.
type RunRecord struct {
	RunID        string     `json:"run_id"`
	SuiteID      string     `json:"suite_id"`
	SuiteVersion string     `json:"suite_version"`
	SuiteSHA256  string     `json:"suite_sha256"`
	RepoDir      string     `json:"repo_dir"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	Summary      RunSummary `json:"summary"`
	RecordHash   string     `json:"record_hash"`
}
