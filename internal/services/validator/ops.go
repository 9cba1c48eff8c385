package validator

import (
	"os"
	"regexp"
	"strings"

	"formatif-grader/internal/domain/model"
)

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// ContainsAll returns the display labels of patterns absent from text, in
// declaration order. The check passes iff the result is empty.
func ContainsAll(text string, patterns []model.PatternSpec) []string {
	var missing []string
	for _, p := range patterns {
		if !matchPattern(text, p) {
			missing = append(missing, p.Display())
		}
	}
	return missing
}

// ContainsAny reports whether at least one pattern is present.
func ContainsAny(text string, patterns []model.PatternSpec) bool {
	for _, p := range patterns {
		if matchPattern(text, p) {
			return true
		}
	}
	return false
}

// ContainsCombination evaluates each predicate as "some single line contains
// every keyword" and combines them with "all" (the default) or "any".
// held is parallel to preds.
func ContainsCombination(text string, preds []model.LinePredicate, combinator string) (held []bool, ok bool) {
	lines := strings.Split(text, "\n")
	lower := strings.Split(strings.ToLower(text), "\n")
	held = make([]bool, len(preds))
	for i, p := range preds {
		src := lines
		if p.CaseInsensitive {
			src = lower
		}
		for _, line := range src {
			if lineHasAll(line, p.Keywords, p.CaseInsensitive) {
				held[i] = true
				break
			}
		}
	}

	if combinator == "any" {
		for _, h := range held {
			if h {
				return held, true
			}
		}
		return held, false
	}
	for _, h := range held {
		if !h {
			return held, false
		}
	}
	return held, len(held) > 0
}

// MissingImports returns modules for which no line contains "import <m>" or "from <m>".
func MissingImports(text string, modules []string) []string {
	lines := strings.Split(text, "\n")
	var missing []string
	for _, m := range modules {
		found := false
		for _, line := range lines {
			if strings.Contains(line, "import "+m) || strings.Contains(line, "from "+m) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, m)
		}
	}
	return missing
}

func lineHasAll(line string, keywords []string, fold bool) bool {
	for _, k := range keywords {
		if fold {
			k = strings.ToLower(k)
		}
		if !strings.Contains(line, k) {
			return false
		}
	}
	return true
}

// Patterns are validated when the suite loads, so a compile error here means
// the pattern never matches.
func matchPattern(text string, p model.PatternSpec) bool {
	if p.Regex != "" {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(text, p.Literal)
}
