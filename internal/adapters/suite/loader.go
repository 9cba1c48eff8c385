package suite

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/platform/hash"
)

//go:embed bundles/*.yaml
var builtinFS embed.FS

const bundleType = "grading_suite"

// Loaded is a parsed and validated suite plus the digest of its source bytes,
// recorded in every run report.
type Loaded struct {
	Bundle model.SuiteBundle
	SHA256 string
	// Source is "builtin:<id>" or the file path it was read from.
	Source string
}

// Script returns the declared script named name.
func (l *Loaded) Script(name string) (model.ScriptSpec, bool) {
	for _, s := range l.Bundle.Scripts {
		if s.Name == name {
			return s, true
		}
	}
	return model.ScriptSpec{}, false
}

// Builtin lists the ids of the embedded suites.
func Builtin() []string {
	entries, err := fs.ReadDir(builtinFS, "bundles")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// Load resolves ref as an embedded suite id first, then as a file path.
func Load(ctx context.Context, ref string) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("suite: name or path is required")
	}

	raw, err := builtinFS.ReadFile(path.Join("bundles", ref+".yaml"))
	if err == nil {
		return Parse(raw, "builtin:"+ref)
	}

	raw, err = os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("suite %q is neither builtin (%s) nor a readable file: %w",
				ref, strings.Join(Builtin(), ", "), model.ErrMissingFile)
		}
		return nil, fmt.Errorf("read suite: %w", err)
	}
	return Parse(raw, ref)
}

// Parse decodes and validates suite YAML.
func Parse(raw []byte, source string) (*Loaded, error) {
	var bundle model.SuiteBundle
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", source, err)
	}
	if err := Validate(bundle); err != nil {
		return nil, fmt.Errorf("suite %s: %w", source, err)
	}
	return &Loaded{Bundle: bundle, SHA256: hash.Bytes(raw), Source: source}, nil
}

// Validate checks completeness and uniqueness of a suite bundle.
func Validate(b model.SuiteBundle) error {
	if strings.TrimSpace(b.Version) == "" {
		return errors.New("version is required")
	}
	if b.BundleType != bundleType {
		return fmt.Errorf("bundle_type must be %q, got %q", bundleType, b.BundleType)
	}
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("id is required")
	}
	if len(b.Checks) == 0 {
		return errors.New("checks is empty")
	}
	switch b.WeightUnit {
	case "", "percent", "points":
	default:
		return fmt.Errorf("weight_unit must be percent or points, got %q", b.WeightUnit)
	}

	scripts := make(map[string]struct{}, len(b.Scripts))
	for _, s := range b.Scripts {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Path) == "" {
			return errors.New("script name and path are required")
		}
		if _, ok := scripts[s.Name]; ok {
			return fmt.Errorf("duplicate script: %s", s.Name)
		}
		scripts[s.Name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(b.Checks))
	for _, c := range b.Checks {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return errors.New("check id is required")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate check id: %s", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("check name is required: %s", id)
		}
		if c.Weight < 0 {
			return fmt.Errorf("check %s: weight must not be negative", id)
		}
		if needsScript(c.Kind) {
			if _, ok := scripts[c.Script]; !ok {
				return fmt.Errorf("check %s: unknown script %q", id, c.Script)
			}
		}
		if err := validateKind(c); err != nil {
			return fmt.Errorf("check %s: %w", id, err)
		}
	}
	return nil
}

func needsScript(k model.CheckKind) bool {
	return k != model.KindMarkersPresent && k != model.KindReminder
}

func validateKind(c model.CheckSpec) error {
	switch c.Kind {
	case model.KindFileExists, model.KindSyntaxValid:
		return nil
	case model.KindContainsAll, model.KindContainsAny, model.KindRegexAll:
		if len(c.Patterns) == 0 {
			return errors.New("patterns is empty")
		}
		for _, p := range c.Patterns {
			if (p.Literal == "") == (p.Regex == "") {
				return errors.New("each pattern needs exactly one of literal or regex")
			}
			if c.Kind == model.KindRegexAll && p.Regex == "" {
				return errors.New("regex_all patterns must be regular expressions")
			}
			if p.Regex != "" {
				if _, err := regexp.Compile(p.Regex); err != nil {
					return fmt.Errorf("bad regex %q: %w", p.Regex, err)
				}
			}
		}
		return nil
	case model.KindImports:
		if len(c.Modules) == 0 {
			return errors.New("modules is empty")
		}
		return nil
	case model.KindLineCombo:
		if len(c.Predicates) == 0 {
			return errors.New("predicates is empty")
		}
		switch c.Combinator {
		case "", "all", "any":
		default:
			return fmt.Errorf("combinator must be all or any, got %q", c.Combinator)
		}
		for _, p := range c.Predicates {
			if p.Name == "" || len(p.Keywords) == 0 {
				return errors.New("each predicate needs a name and keywords")
			}
		}
		return nil
	case model.KindUVDependencies:
		if len(c.Dependencies) == 0 {
			return errors.New("dependencies is empty")
		}
		return nil
	case model.KindMarkersPresent:
		if len(c.MarkerGlobs) == 0 && c.SummaryMarker == "" {
			return errors.New("marker_globs or summary_marker is required")
		}
		for _, g := range c.MarkerGlobs {
			if _, err := path.Match(g, ""); err != nil {
				return fmt.Errorf("bad marker glob %q: %w", g, err)
			}
		}
		return nil
	case model.KindReminder:
		if strings.TrimSpace(c.Message) == "" {
			return errors.New("reminder message is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
}
