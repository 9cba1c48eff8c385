package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"formatif-grader/internal/domain/model"
)

// Console prints human-facing grading and probe output.
type Console struct {
	w io.Writer

	pass, fail, warn, skip, info, bold *color.Color
}

// NewConsole writes to w. With plain set no ANSI escapes are emitted.
func NewConsole(w io.Writer, plain bool) *Console {
	c := &Console{
		w:    w,
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		skip: color.New(color.FgCyan),
		info: color.New(color.FgBlue),
		bold: color.New(color.Bold),
	}
	if plain {
		for _, col := range []*color.Color{c.pass, c.fail, c.warn, c.skip, c.info, c.bold} {
			col.DisableColor()
		}
	}
	return c
}

// Header prints the suite banner.
func (c *Console) Header(title, suiteID, version, repoDir string) {
	c.bold.Fprintf(c.w, "%s\n", title)
	fmt.Fprintf(c.w, "suite %s v%s  repo %s\n\n", suiteID, version, repoDir)
}

// Result prints one check line followed by its message, details and hint.
func (c *Console) Result(r model.CheckResult, unit string) {
	label, col := c.statusLabel(r.Status)
	col.Fprintf(c.w, "  %-4s", label)
	fmt.Fprintf(c.w, "  %s", r.Name)
	if a := Annotation(r, unit); a != "" {
		fmt.Fprintf(c.w, " %s", a)
	}
	fmt.Fprintln(c.w)

	if r.Message != "" {
		c.indent(r.Message, "        ")
	}
	for _, d := range r.Details {
		fmt.Fprintf(c.w, "        - %s\n", d)
	}
	if r.Hint != "" && !r.OK() {
		c.warn.Fprintln(c.w, "        hint:")
		c.indent(r.Hint, "          ")
	}
}

// Summary prints the results table, the reminders and the closing note.
// The closing note is printed whatever the outcome.
func (c *Console) Summary(rep *model.RunReport) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, ResultsTable(rep))

	s := rep.Summary
	fmt.Fprintf(c.w, "\n%d checks: %d passed, %d failed, %d warned, %d skipped, %d info\n",
		s.Total, s.Passed, s.Failed, s.Warned, s.Skipped, s.Info)
	if rep.Passed() {
		c.pass.Fprintln(c.w, "All required checks passed.")
	} else {
		c.fail.Fprintf(c.w, "%d required check(s) failed.\n", s.RequiredFailed)
	}

	for _, r := range rep.Reminders {
		fmt.Fprintln(c.w)
		c.info.Fprintf(c.w, "%s\n", r.Title)
		for _, l := range r.Lines {
			fmt.Fprintf(c.w, "  %s\n", l)
		}
	}
	if rep.Closing != "" {
		fmt.Fprintln(c.w)
		c.bold.Fprintln(c.w, strings.Repeat("=", 60))
		c.indent(strings.TrimRight(rep.Closing, "\n"), "")
		c.bold.Fprintln(c.w, strings.Repeat("=", 60))
	}
}

// Report prints a finished run in one go.
func (c *Console) Report(rep *model.RunReport) {
	c.Header(rep.SuiteTitle, rep.SuiteID, rep.SuiteVersion, rep.RepoDir)
	for _, r := range rep.Results {
		c.Result(r, rep.WeightUnit)
	}
	c.Summary(rep)
}

// ResultsTable renders one row per check.
func ResultsTable(rep *model.RunReport) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Check", "Status", "Required", "Weight"})
	for i, r := range rep.Results {
		t.AppendRow(table.Row{
			i + 1,
			r.Name,
			strings.ToUpper(string(r.Status)),
			lo.Ternary(r.Required, "yes", "no"),
			strings.Trim(Annotation(r, rep.WeightUnit), "[]"),
		})
	}
	return t.Render()
}

// Annotation renders the informational weight of a check, e.g. "[15% IND-00SX-D]"
// or "[10 pts]". It is empty for unweighted checks.
func Annotation(r model.CheckResult, unit string) string {
	if r.Weight <= 0 {
		return ""
	}
	w := strconv.FormatFloat(r.Weight, 'f', -1, 64)
	var s string
	if unit == "points" {
		s = w + " pts"
	} else {
		s = w + "%"
	}
	if r.Criterion != "" {
		s += " " + r.Criterion
	}
	return "[" + s + "]"
}

// Step prints one hardware probe line.
func (c *Console) Step(outcome model.StepOutcome, format string, args ...any) {
	var label string
	var col *color.Color
	switch outcome {
	case model.StepPassed:
		label, col = "OK", c.pass
	case model.StepFailed:
		label, col = "FAIL", c.fail
	default:
		label, col = "WARN", c.warn
	}
	col.Fprintf(c.w, "  [%s] ", label)
	fmt.Fprintf(c.w, format+"\n", args...)
}

// Section prints a probe step heading.
func (c *Console) Section(title string) {
	fmt.Fprintln(c.w)
	c.bold.Fprintf(c.w, "== %s ==\n", title)
}

// Hint prints indented remediation text.
func (c *Console) Hint(text string) {
	c.indent(strings.TrimRight(text, "\n"), "      ")
}

// ProbeSummary prints the final probe table.
func (c *Console) ProbeSummary(rep model.ProbeReport) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Step", "Result", "Detail"})
	for _, s := range rep.Steps {
		name := s.Name
		if !s.Required {
			name += " (optional)"
		}
		t.AppendRow(table.Row{name, strings.ToUpper(string(s.Outcome)), s.Detail})
	}
	c.Section("Summary")
	fmt.Fprintln(c.w, t.Render())
	if rep.Passed {
		c.pass.Fprintln(c.w, "All required hardware checks passed.")
	} else {
		c.fail.Fprintln(c.w, "Some required hardware checks failed.")
	}
}

func (c *Console) statusLabel(s model.CheckStatus) (string, *color.Color) {
	switch s {
	case model.CheckPassed:
		return "PASS", c.pass
	case model.CheckFailed:
		return "FAIL", c.fail
	case model.CheckWarned:
		return "WARN", c.warn
	case model.CheckSkipped:
		return "SKIP", c.skip
	default:
		return "INFO", c.info
	}
}

func (c *Console) indent(text, prefix string) {
	for _, l := range strings.Split(text, "\n") {
		fmt.Fprintf(c.w, "%s%s\n", prefix, l)
	}
}
