package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"formatif-grader/internal/domain/model"
)

func TestBuiltinSuitesLoad(t *testing.T) {
	if diff := cmp.Diff([]string{"formatif-f1", "milestone-02"}, Builtin()); diff != "" {
		t.Fatalf("builtin list mismatch (-want +got):\n%s", diff)
	}
	for _, id := range Builtin() {
		l, err := Load(context.Background(), id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if l.Bundle.ID != id || l.Source != "builtin:"+id || len(l.SHA256) != 64 {
			t.Fatalf("unexpected loaded suite: %+v", l)
		}
	}
}

func TestMilestoneWeightsSumTo35(t *testing.T) {
	l, err := Load(context.Background(), "milestone-02")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var total float64
	for _, c := range l.Bundle.Checks {
		total += c.Weight
	}
	if total != 35 {
		t.Fatalf("expected 35 points, got %v", total)
	}
}

func TestFormatifScriptsDeclared(t *testing.T) {
	l, err := Load(context.Background(), "formatif-f1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bmp, ok := l.Script("bmp280")
	if !ok || bmp.Path != "test_bmp280.py" || bmp.Optional {
		t.Fatalf("unexpected bmp280 script: %+v", bmp)
	}
	neo, ok := l.Script("neoslider")
	if !ok || !neo.Optional {
		t.Fatalf("neoslider must be optional: %+v", neo)
	}
}

func TestLoadFromPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "custom.yaml")
	raw := `version: "0.1"
bundle_type: grading_suite
id: custom
title: Custom
scripts:
  - name: main
    path: main.py
checks:
  - id: exists
    name: main.py present
    kind: file_exists
    script: main
    required: true
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Source != p || l.Bundle.Checks[0].Kind != model.KindFileExists {
		t.Fatalf("unexpected suite: %+v", l)
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load(context.Background(), "formatif-f9")
	if !errors.Is(err, model.ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, "formatif-f1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() model.SuiteBundle {
		return model.SuiteBundle{
			Version:    "1",
			BundleType: "grading_suite",
			ID:         "s",
			Scripts:    []model.ScriptSpec{{Name: "main", Path: "main.py"}},
			Checks: []model.CheckSpec{{
				ID: "c", Name: "c", Kind: model.KindContainsAll, Script: "main",
				Patterns: []model.PatternSpec{{Literal: "import board"}},
			}},
		}
	}
	cases := map[string]func(b *model.SuiteBundle){
		"bundle type":    func(b *model.SuiteBundle) { b.BundleType = "wallet_rules" },
		"no checks":      func(b *model.SuiteBundle) { b.Checks = nil },
		"duplicate id":   func(b *model.SuiteBundle) { b.Checks = append(b.Checks, b.Checks[0]) },
		"unknown kind":   func(b *model.SuiteBundle) { b.Checks[0].Kind = "telepathy" },
		"unknown script": func(b *model.SuiteBundle) { b.Checks[0].Script = "other" },
		"bad regex": func(b *model.SuiteBundle) {
			b.Checks[0].Patterns = []model.PatternSpec{{Regex: "("}}
		},
		"both literal and regex": func(b *model.SuiteBundle) {
			b.Checks[0].Patterns = []model.PatternSpec{{Literal: "a", Regex: "a"}}
		},
		"bad combinator": func(b *model.SuiteBundle) {
			b.Checks[0].Kind = model.KindLineCombo
			b.Checks[0].Combinator = "xor"
			b.Checks[0].Predicates = []model.LinePredicate{{Name: "t", Keywords: []string{"temp"}}}
		},
		"empty reminder": func(b *model.SuiteBundle) {
			b.Checks[0].Kind = model.KindReminder
		},
		"weight unit": func(b *model.SuiteBundle) { b.WeightUnit = "stars" },
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("base bundle should be valid: %v", err)
	}
	for name, mutate := range cases {
		b := base()
		mutate(&b)
		if err := Validate(b); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	raw := "version: '1'\nbundle_type: grading_suite\nid: x\nchecks: []\nwallets: []\n"
	if _, err := Parse([]byte(raw), "inline"); err == nil || !strings.Contains(err.Error(), "wallets") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}
