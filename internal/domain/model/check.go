package model

import "time"

// CheckStatus is the outcome of a single grading rule.
type CheckStatus string

const (
	// CheckPassed means the rule held.
	CheckPassed CheckStatus = "passed"
	// CheckFailed means a required rule did not hold.
	CheckFailed CheckStatus = "failed"
	// CheckSkipped means the rule could not be evaluated (e.g. its script does not exist yet).
	CheckSkipped CheckStatus = "skipped"
	// CheckWarned means an optional rule did not hold; it never fails the run.
	CheckWarned CheckStatus = "warned"
	// CheckInfo marks instructional items (reminders, optional scripts that are absent).
	CheckInfo CheckStatus = "info"
)

// CheckResult is produced once per rule and consumed right away by the reporter.
type CheckResult struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Script    string      `json:"script,omitempty" yaml:"script,omitempty"`
	Kind      CheckKind   `json:"kind" yaml:"kind"`
	Required  bool        `json:"required" yaml:"required"`
	Status    CheckStatus `json:"status" yaml:"status"`
	Message   string      `json:"message" yaml:"message"`
	Missing   []string    `json:"missing,omitempty" yaml:"missing,omitempty"`
	Details   []string    `json:"details,omitempty" yaml:"details,omitempty"`
	Hint      string      `json:"hint,omitempty" yaml:"hint,omitempty"`
	Line      int         `json:"line,omitempty" yaml:"line,omitempty"`
	Weight    float64     `json:"weight,omitempty" yaml:"weight,omitempty"`
	Criterion string      `json:"criterion,omitempty" yaml:"criterion,omitempty"`
}

// OK reports whether the result counts as a success (passed or informational).
func (r CheckResult) OK() bool {
	return r.Status == CheckPassed || r.Status == CheckInfo
}

// RunSummary counts results by status.
type RunSummary struct {
	Total          int `json:"total" yaml:"total"`
	Passed         int `json:"passed" yaml:"passed"`
	Failed         int `json:"failed" yaml:"failed"`
	Skipped        int `json:"skipped" yaml:"skipped"`
	Warned         int `json:"warned" yaml:"warned"`
	Info           int `json:"info" yaml:"info"`
	RequiredFailed int `json:"required_failed" yaml:"required_failed"`
}

// RunReport is the aggregated output of one grading invocation.
type RunReport struct {
	RunID        string        `json:"run_id" yaml:"run_id"`
	SuiteID      string        `json:"suite_id" yaml:"suite_id"`
	SuiteTitle   string        `json:"suite_title" yaml:"suite_title"`
	SuiteVersion string        `json:"suite_version" yaml:"suite_version"`
	SuiteSHA256  string        `json:"suite_sha256" yaml:"suite_sha256"`
	WeightUnit   string        `json:"weight_unit,omitempty" yaml:"weight_unit,omitempty"`
	RepoDir      string        `json:"repo_dir" yaml:"repo_dir"`
	MarkersDir   string        `json:"markers_dir" yaml:"markers_dir"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time     `json:"finished_at" yaml:"finished_at"`
	Results      []CheckResult `json:"results" yaml:"results"`
	Summary      RunSummary    `json:"summary" yaml:"summary"`
	Reminders    []Reminder    `json:"reminders,omitempty" yaml:"reminders,omitempty"`
	Closing      string        `json:"closing,omitempty" yaml:"closing,omitempty"`
}

// Passed reports whether no required rule failed.
func (r RunReport) Passed() bool {
	return r.Summary.RequiredFailed == 0
}
