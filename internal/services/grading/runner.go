package grading

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"formatif-grader/internal/adapters/markers"
	"formatif-grader/internal/adapters/suite"
	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/platform/id"
	"formatif-grader/internal/services/validator"
)

// Ledger persists finished runs. It is optional.
type Ledger interface {
	SaveRun(ctx context.Context, r model.RunReport) error
}

// Options configures a Runner.
type Options struct {
	Syntax        validator.SyntaxChecker
	PythonVersion string
	Clock         clock.Clock
	Logger        *zap.Logger
	Ledger        Ledger
	// OnResult is called after each check, in evaluation order.
	OnResult func(model.CheckResult)
}

// Target names the submission being graded.
type Target struct {
	RepoDir string
	// MarkersDir defaults to RepoDir/.test_markers.
	MarkersDir string
}

type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// Run evaluates every check of s once, in declaration order. Check failures
// are part of the report; the error return is reserved for the ledger.
func (r *Runner) Run(ctx context.Context, s *suite.Loaded, t Target) (*model.RunReport, error) {
	markersDir := t.MarkersDir
	if markersDir == "" {
		markersDir = filepath.Join(t.RepoDir, ".test_markers")
	}
	v := validator.New(validator.Options{
		RepoDir:       t.RepoDir,
		Markers:       markers.New(markersDir),
		Syntax:        r.opts.Syntax,
		PythonVersion: r.opts.PythonVersion,
		Logger:        r.opts.Logger,
	})

	b := s.Bundle
	rep := &model.RunReport{
		RunID:        id.New("run"),
		SuiteID:      b.ID,
		SuiteTitle:   b.Title,
		SuiteVersion: b.Version,
		SuiteSHA256:  s.SHA256,
		WeightUnit:   b.WeightUnit,
		RepoDir:      t.RepoDir,
		MarkersDir:   markersDir,
		StartedAt:    r.opts.Clock.Now().UTC(),
		Reminders:    b.Reminders,
		Closing:      b.Closing,
		Results:      make([]model.CheckResult, 0, len(b.Checks)),
	}
	log := r.opts.Logger.With(zap.String("run_id", rep.RunID), zap.String("suite", b.ID))

	for _, c := range b.Checks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted: %w", err)
		}
		res := v.Evaluate(ctx, s, c)
		log.Debug("check evaluated", zap.String("check", c.ID), zap.String("status", string(res.Status)))
		rep.Results = append(rep.Results, res)
		if r.opts.OnResult != nil {
			r.opts.OnResult(res)
		}
	}
	rep.FinishedAt = r.opts.Clock.Now().UTC()
	rep.Summary = Summarize(rep.Results)

	if r.opts.Ledger != nil {
		if err := r.opts.Ledger.SaveRun(ctx, *rep); err != nil {
			return rep, fmt.Errorf("save run: %w", err)
		}
	}
	log.Info("run finished",
		zap.Int("total", rep.Summary.Total),
		zap.Int("required_failed", rep.Summary.RequiredFailed))
	return rep, nil
}

// Summarize counts results by status.
func Summarize(results []model.CheckResult) model.RunSummary {
	counts := lo.CountValuesBy(results, func(r model.CheckResult) model.CheckStatus { return r.Status })
	return model.RunSummary{
		Total:   len(results),
		Passed:  counts[model.CheckPassed],
		Failed:  counts[model.CheckFailed],
		Skipped: counts[model.CheckSkipped],
		Warned:  counts[model.CheckWarned],
		Info:    counts[model.CheckInfo],
		RequiredFailed: lo.CountBy(results, func(r model.CheckResult) bool {
			return r.Required && r.Status == model.CheckFailed
		}),
	}
}
