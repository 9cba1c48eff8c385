package model

// CheckKind selects the predicate a rule is evaluated with.
type CheckKind string

const (
	KindFileExists     CheckKind = "file_exists"
	KindSyntaxValid    CheckKind = "syntax_valid"
	KindContainsAll    CheckKind = "contains_all"
	KindContainsAny    CheckKind = "contains_any"
	KindRegexAll       CheckKind = "regex_all"
	KindImports        CheckKind = "imports"
	KindLineCombo      CheckKind = "line_combination"
	KindUVDependencies CheckKind = "uv_dependencies"
	KindMarkersPresent CheckKind = "markers_present"
	KindReminder       CheckKind = "reminder"
)

// SuiteBundle is the top-level structure of a grading suite file.
type SuiteBundle struct {
	Version     string        `yaml:"version"`
	BundleType  string        `yaml:"bundle_type"`
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Maintainer  string        `yaml:"maintainer"`
	Description string        `yaml:"description"`
	WeightUnit  string        `yaml:"weight_unit"`
	Scripts     []ScriptSpec  `yaml:"scripts"`
	Checks      []CheckSpec   `yaml:"checks"`
	Reminders   []Reminder    `yaml:"reminders"`
	Closing     string        `yaml:"closing"`
	Defaults    SuiteDefaults `yaml:"defaults"`
}

// SuiteDefaults holds values checks inherit when they leave a field empty.
type SuiteDefaults struct {
	PythonVersion string `yaml:"python_version"`
}

// ScriptSpec declares a student file the suite inspects.
type ScriptSpec struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Optional bool   `yaml:"optional"`
	// Template is shown when the file is missing.
	Template string `yaml:"template"`
}

// CheckSpec defines one grading rule.
type CheckSpec struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Kind      CheckKind `yaml:"kind"`
	Script    string    `yaml:"script"`
	Required  bool      `yaml:"required"`
	Weight    float64   `yaml:"weight"`
	Criterion string    `yaml:"criterion"`
	Hint      string    `yaml:"hint"`
	Success   string    `yaml:"success"`

	Patterns   []PatternSpec   `yaml:"patterns"`
	Modules    []string        `yaml:"modules"`
	Predicates []LinePredicate `yaml:"predicates"`
	Combinator string          `yaml:"combinator"`

	Dependencies  []string `yaml:"dependencies"`
	PythonVersion string   `yaml:"python_version"`

	MarkerGlobs     []string `yaml:"marker_globs"`
	SummaryMarker   string   `yaml:"summary_marker"`
	SummaryKeywords []string `yaml:"summary_keywords"`

	Message string `yaml:"message"`
}

// PatternSpec is a literal substring or, when Regex is set, a regular expression.
type PatternSpec struct {
	Label   string `yaml:"label"`
	Literal string `yaml:"literal"`
	Regex   string `yaml:"regex"`
}

// Display returns the label shown in "missing" listings.
func (p PatternSpec) Display() string {
	switch {
	case p.Label != "":
		return p.Label
	case p.Regex != "":
		return p.Regex
	default:
		return p.Literal
	}
}

// LinePredicate holds when a single line contains every keyword.
type LinePredicate struct {
	Name            string   `yaml:"name"`
	Keywords        []string `yaml:"keywords"`
	CaseInsensitive bool     `yaml:"case_insensitive"`
}

// Reminder is an instructional note printed with the report.
type Reminder struct {
	Title string   `yaml:"title" json:"title"`
	Lines []string `yaml:"lines" json:"lines"`
}
