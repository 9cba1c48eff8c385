package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"formatif-grader/internal/adapters/markers"
	"formatif-grader/internal/adapters/suite"
	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/services/pysyntax"
)

// SyntaxChecker compiles Python source without executing it. A syntax error
// comes back as *pysyntax.Error; any other error means the backend itself failed.
type SyntaxChecker interface {
	CheckSyntax(ctx context.Context, filename, src string) error
}

// Options configures a Validator.
type Options struct {
	RepoDir string
	Markers *markers.Store
	Syntax  SyntaxChecker
	// PythonVersion is the interpreter requires-python must admit.
	PythonVersion string
	Logger        *zap.Logger
}

// Validator evaluates suite checks against a submission directory.
// It only reads files.
type Validator struct {
	repoDir       string
	markers       *markers.Store
	syntax        SyntaxChecker
	pythonVersion string
	logger        *zap.Logger
	sources       map[string]source
}

type source struct {
	text   string
	exists bool
	err    error
}

// evalFunc evaluates one script-bound kind against the script's text.
type evalFunc func(v *Validator, ctx context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult

var kinds = map[model.CheckKind]evalFunc{
	model.KindSyntaxValid:    (*Validator).evalSyntax,
	model.KindContainsAll:    (*Validator).evalContainsAll,
	model.KindRegexAll:       (*Validator).evalContainsAll,
	model.KindContainsAny:    (*Validator).evalContainsAny,
	model.KindImports:        (*Validator).evalImports,
	model.KindLineCombo:      (*Validator).evalLineCombination,
	model.KindUVDependencies: (*Validator).evalUVDependencies,
}

// New builds a Validator. Syntax defaults to the builtin checker.
func New(opts Options) *Validator {
	v := &Validator{
		repoDir:       opts.RepoDir,
		markers:       opts.Markers,
		syntax:        opts.Syntax,
		pythonVersion: opts.PythonVersion,
		logger:        opts.Logger,
		sources:       make(map[string]source),
	}
	if v.syntax == nil {
		v.syntax = pysyntax.Checker{}
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	if v.markers == nil {
		v.markers = markers.New(filepath.Join(opts.RepoDir, ".test_markers"))
	}
	return v
}

// SyntaxValid compiles text and reports the first syntax error, if any.
// Errors are returned as a value, never raised.
func (v *Validator) SyntaxValid(ctx context.Context, filename, text string) (ok bool, syn *pysyntax.Error, err error) {
	if err := v.syntax.CheckSyntax(ctx, filename, text); err != nil {
		if errors.As(err, &syn) {
			return false, syn, nil
		}
		return false, nil, err
	}
	return true, nil, nil
}

// Evaluate runs one check. It never returns an error: every failure mode is
// folded into the result status and message.
func (v *Validator) Evaluate(ctx context.Context, s *suite.Loaded, c model.CheckSpec) model.CheckResult {
	switch c.Kind {
	case model.KindReminder:
		return v.result(c, "", model.CheckInfo, strings.TrimRight(c.Message, "\n"))
	case model.KindMarkersPresent:
		return v.evalMarkers(c)
	}

	script, ok := s.Script(c.Script)
	if !ok {
		return v.result(c, c.Script, model.CheckFailed, fmt.Sprintf("suite declares no script %q", c.Script))
	}
	src := v.load(script.Path)

	if c.Kind == model.KindFileExists {
		return v.evalFileExists(c, script, src)
	}
	if !src.exists {
		if src.err != nil {
			return v.result(c, script.Path, model.CheckFailed, fmt.Sprintf("read %s: %v", script.Path, src.err))
		}
		return v.result(c, script.Path, model.CheckSkipped, script.Path+" not found")
	}

	if c.PythonVersion == "" && v.pythonVersion == "" {
		c.PythonVersion = s.Bundle.Defaults.PythonVersion
	}
	fn, ok := kinds[c.Kind]
	if !ok {
		return v.result(c, script.Path, model.CheckFailed, fmt.Sprintf("unknown check kind %q", c.Kind))
	}
	return fn(v, ctx, c, script, src.text)
}

func (v *Validator) load(rel string) source {
	if src, ok := v.sources[rel]; ok {
		return src
	}
	var src source
	b, err := os.ReadFile(filepath.Join(v.repoDir, rel))
	switch {
	case err == nil:
		src = source{text: string(b), exists: true}
	case errors.Is(err, fs.ErrNotExist):
		src = source{}
	default:
		src = source{err: err}
	}
	v.sources[rel] = src
	return src
}

func (v *Validator) evalFileExists(c model.CheckSpec, script model.ScriptSpec, src source) model.CheckResult {
	if src.exists || FileExists(filepath.Join(v.repoDir, script.Path)) {
		return v.result(c, script.Path, model.CheckPassed, script.Path+" present")
	}
	if script.Optional {
		return v.result(c, script.Path, model.CheckInfo, script.Path+" does not exist yet (optional)")
	}
	r := v.unmet(c, script.Path, fmt.Sprintf("%s: %s", model.ErrMissingFile, script.Path))
	if script.Template != "" {
		r.Hint = strings.TrimSpace(strings.TrimSpace(c.Hint) + "\nMinimal expected content:\n" + script.Template)
	}
	return r
}

func (v *Validator) evalSyntax(ctx context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	ok, syn, err := v.SyntaxValid(ctx, script.Path, text)
	switch {
	case err != nil:
		v.logger.Warn("syntax backend failed", zap.String("script", script.Path), zap.Error(err))
		return v.result(c, script.Path, model.CheckSkipped, "syntax check unavailable: "+err.Error())
	case !ok:
		r := v.unmet(c, script.Path, fmt.Sprintf("%s contains a syntax error. Line %d: %s", script.Path, syn.Line, syn.Msg))
		r.Line = syn.Line
		return r
	}
	return v.met(c, script.Path)
}

func (v *Validator) evalContainsAll(_ context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	missing := ContainsAll(text, c.Patterns)
	if len(missing) == 0 {
		return v.met(c, script.Path)
	}
	r := v.unmet(c, script.Path, fmt.Sprintf("%s: %s", model.ErrMissingPattern, strings.Join(missing, ", ")))
	r.Missing = missing
	return r
}

func (v *Validator) evalContainsAny(_ context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	if ContainsAny(text, c.Patterns) {
		return v.met(c, script.Path)
	}
	labels := make([]string, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		labels = append(labels, p.Display())
	}
	r := v.unmet(c, script.Path, "none of the expected alternatives found: "+strings.Join(labels, " | "))
	r.Missing = labels
	return r
}

func (v *Validator) evalImports(_ context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	missing := MissingImports(text, c.Modules)
	if len(missing) == 0 {
		return v.met(c, script.Path)
	}
	r := v.unmet(c, script.Path, "missing imports: "+strings.Join(missing, ", "))
	r.Missing = missing
	return r
}

func (v *Validator) evalLineCombination(_ context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	held, ok := ContainsCombination(text, c.Predicates, c.Combinator)
	details := make([]string, len(c.Predicates))
	var missing []string
	for i, p := range c.Predicates {
		mark := "✓"
		if !held[i] {
			mark = "✗"
			missing = append(missing, p.Name)
		}
		details[i] = fmt.Sprintf("%s: %s", p.Name, mark)
	}
	var r model.CheckResult
	if ok {
		r = v.met(c, script.Path)
	} else {
		r = v.unmet(c, script.Path, "not every expected line was found")
		r.Missing = missing
	}
	r.Details = details
	return r
}

func (v *Validator) evalUVDependencies(_ context.Context, c model.CheckSpec, script model.ScriptSpec, text string) model.CheckResult {
	meta, found, err := ParseScriptMetadata(text)
	if err != nil {
		return v.unmet(c, script.Path, err.Error())
	}

	var missing []string
	if found {
		missing = MissingDependencies(meta, c.Dependencies)
	} else {
		for _, d := range c.Dependencies {
			if !strings.Contains(text, d) {
				missing = append(missing, d)
			}
		}
	}
	if len(missing) > 0 {
		r := v.unmet(c, script.Path, fmt.Sprintf("%s: missing UV dependencies: %s", script.Path, strings.Join(missing, ", ")))
		r.Missing = missing
		return r
	}

	if found {
		want := c.PythonVersion
		if want == "" {
			want = v.pythonVersion
		}
		if want != "" {
			admits, err := AdmitsPython(meta.RequiresPython, want)
			switch {
			case err != nil:
				v.logger.Warn("requires-python not understood", zap.String("script", script.Path), zap.Error(err))
			case !admits:
				return v.unmet(c, script.Path, fmt.Sprintf("requires-python %q excludes Python %s", meta.RequiresPython, want))
			}
		}
	} else {
		r := v.met(c, script.Path)
		r.Details = []string{"no # /// script block; dependencies found by name only"}
		return r
	}
	return v.met(c, script.Path)
}

func (v *Validator) evalMarkers(c model.CheckSpec) model.CheckResult {
	dir := v.markers.Dir()
	if !v.markers.DirExists() {
		return v.result(c, "", model.CheckSkipped, fmt.Sprintf("No %s/ directory - skipping hardware check", filepath.Base(dir)))
	}

	if c.SummaryMarker != "" {
		if m, err := v.markers.Read(c.SummaryMarker); err == nil {
			body := strings.ToLower(m.Body)
			for _, k := range c.SummaryKeywords {
				if strings.Contains(body, strings.ToLower(k)) {
					r := v.met(c, "")
					r.Details = []string{c.SummaryMarker + " mentions " + k}
					return r
				}
			}
		}
	}

	var found []string
	for _, g := range c.MarkerGlobs {
		ms, err := v.markers.Glob(g)
		if err != nil {
			return v.result(c, "", model.CheckFailed, err.Error())
		}
		for _, m := range ms {
			found = append(found, m.Name)
		}
	}
	if len(found) == 0 {
		return v.unmet(c, "", "no hardware-specific markers found")
	}
	r := v.met(c, "")
	r.Details = found
	return r
}

func (v *Validator) result(c model.CheckSpec, script string, status model.CheckStatus, msg string) model.CheckResult {
	return model.CheckResult{
		ID:        c.ID,
		Name:      c.Name,
		Script:    script,
		Kind:      c.Kind,
		Required:  c.Required,
		Status:    status,
		Message:   msg,
		Weight:    c.Weight,
		Criterion: c.Criterion,
	}
}

func (v *Validator) met(c model.CheckSpec, script string) model.CheckResult {
	msg := c.Success
	if msg == "" {
		msg = c.Name + ": ok"
	}
	return v.result(c, script, model.CheckPassed, msg)
}

// unmet fails required checks and downgrades optional ones to warnings.
func (v *Validator) unmet(c model.CheckSpec, script, msg string) model.CheckResult {
	status := model.CheckWarned
	if c.Required {
		status = model.CheckFailed
	}
	r := v.result(c, script, status, msg)
	r.Hint = strings.TrimRight(c.Hint, "\n")
	return r
}
