package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// PEP 723 inline script metadata block.
var reScriptBlock = regexp.MustCompile(`(?m)^# /// (?P<type>[a-zA-Z0-9-]+)$\s(?P<content>(^#(| .*)$\s)+)^# ///$`)

var reNameSep = regexp.MustCompile(`[-_.]+`)

// ScriptMetadata is the decoded "# /// script" block of a uv script.
type ScriptMetadata struct {
	RequiresPython string   `toml:"requires-python"`
	Dependencies   []string `toml:"dependencies"`
}

// ParseScriptMetadata returns the script block, or found=false when the source
// has none. A malformed block is an error.
func ParseScriptMetadata(src string) (meta ScriptMetadata, found bool, err error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	typeIdx := reScriptBlock.SubexpIndex("type")
	contentIdx := reScriptBlock.SubexpIndex("content")
	for _, m := range reScriptBlock.FindAllStringSubmatch(src, -1) {
		if m[typeIdx] != "script" {
			continue
		}
		if found {
			return ScriptMetadata{}, true, fmt.Errorf("multiple script metadata blocks")
		}
		found = true
		var body strings.Builder
		for _, line := range strings.Split(strings.TrimSuffix(m[contentIdx], "\n"), "\n") {
			line = strings.TrimPrefix(line, "#")
			line = strings.TrimPrefix(line, " ")
			body.WriteString(line)
			body.WriteByte('\n')
		}
		if _, err := toml.Decode(body.String(), &meta); err != nil {
			return ScriptMetadata{}, true, fmt.Errorf("script metadata: %w", err)
		}
	}
	return meta, found, nil
}

// NormalizeName applies PEP 503 normalization to a requirement name.
func NormalizeName(name string) string {
	return strings.ToLower(reNameSep.ReplaceAllString(strings.TrimSpace(name), "-"))
}

// RequirementName strips extras, version specifiers and markers from a
// requirement string, e.g. "adafruit-blinka[extra]>=8; python_version>'3'".
func RequirementName(req string) string {
	req = strings.TrimSpace(req)
	if i := strings.IndexAny(req, "[<>=!~;@ ("); i >= 0 {
		req = req[:i]
	}
	return NormalizeName(req)
}

// MissingDependencies lists wanted names not declared in meta, in order.
func MissingDependencies(meta ScriptMetadata, wanted []string) []string {
	have := make(map[string]struct{}, len(meta.Dependencies))
	for _, d := range meta.Dependencies {
		have[RequirementName(d)] = struct{}{}
	}
	var missing []string
	for _, w := range wanted {
		if _, ok := have[NormalizeName(w)]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

// AdmitsPython reports whether a PEP 440 requires-python specifier admits
// version. An empty specifier admits everything.
func AdmitsPython(constraint, version string) (bool, error) {
	if strings.TrimSpace(constraint) == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(pep440ToSemver(constraint))
	if err != nil {
		return false, fmt.Errorf("requires-python %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("python version %q: %w", version, err)
	}
	return c.Check(v), nil
}

// pep440ToSemver rewrites the operators semver does not share with PEP 440.
func pep440ToSemver(constraint string) string {
	clauses := strings.Split(constraint, ",")
	out := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		cl = strings.TrimSpace(cl)
		switch {
		case strings.HasPrefix(cl, "~="):
			out = append(out, compatibleRelease(strings.TrimSpace(cl[2:])))
		case strings.HasPrefix(cl, "==="):
			out = append(out, "="+strings.TrimSpace(cl[3:]))
		case strings.HasPrefix(cl, "=="):
			out = append(out, "="+strings.TrimSpace(cl[2:]))
		default:
			out = append(out, cl)
		}
	}
	return strings.Join(out, ", ")
}

// compatibleRelease expands "~=X.Y" to ">=X.Y, <X+1" and "~=X.Y.Z" to ">=X.Y.Z, <X.Y+1".
func compatibleRelease(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return ">=" + v
	}
	upper := parts[:len(parts)-1]
	last, err := strconv.Atoi(upper[len(upper)-1])
	if err != nil {
		return ">=" + v
	}
	bumped := append(append([]string{}, upper[:len(upper)-1]...), strconv.Itoa(last+1))
	return fmt.Sprintf(">=%s, <%s", v, strings.Join(bumped, "."))
}
