package markers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"formatif-grader/internal/domain/model"
)

const (
	fileExt      = ".txt"
	verifiedHead = "Verified: "
	// TimeLayout is the layout of the first line of every marker file.
	TimeLayout = time.RFC3339
)

// Store reads and writes marker files in a single directory.
// Only one process should write to a directory at a time.
type Store struct {
	dir   string
	clock clock.Clock
}

// New returns a store rooted at dir using the wall clock.
func New(dir string) *Store {
	return NewWithClock(dir, clock.New())
}

// NewWithClock lets tests pin the timestamp written into markers.
func NewWithClock(dir string, c clock.Clock) *Store {
	return &Store{dir: dir, clock: c}
}

// Dir returns the directory this store manages.
func (s *Store) Dir() string { return s.dir }

// Path returns where a marker named name lives.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Write creates (or overwrites) <dir>/<name>.txt with the timestamp line and content.
func (s *Store) Write(name, content string) (model.Marker, error) {
	if err := validName(name); err != nil {
		return model.Marker{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return model.Marker{}, fmt.Errorf("create markers dir: %w", err)
	}
	now := s.clock.Now().UTC().Truncate(time.Second)
	body := verifiedHead + now.Format(TimeLayout) + "\n" + content + "\n"
	p := s.Path(name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		return model.Marker{}, fmt.Errorf("write marker %s: %w", name, err)
	}
	return model.Marker{Name: name, Path: p, VerifiedAt: now, Body: content, ModTime: now}, nil
}

// Exists reports whether the marker file is present.
func (s *Store) Exists(name string) bool {
	st, err := os.Stat(s.Path(name))
	return err == nil && !st.IsDir()
}

// Read parses a marker. A missing marker yields model.ErrMissingFile.
func (s *Store) Read(name string) (model.Marker, error) {
	if err := validName(name); err != nil {
		return model.Marker{}, err
	}
	return readFile(s.Path(name))
}

// List returns all markers sorted by name. A missing directory is an empty list.
func (s *Store) List() ([]model.Marker, error) {
	return s.Glob("*")
}

// Glob returns markers whose file name, with or without the .txt extension,
// matches pattern, e.g. "*bmp*". Hidden files are ignored.
func (s *Store) Glob(pattern string) ([]model.Marker, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad marker pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read markers dir: %w", err)
	}
	var out []model.Marker
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full, _ := filepath.Match(pattern, e.Name())
		bare, _ := filepath.Match(pattern, strings.TrimSuffix(e.Name(), fileExt))
		if !full && !bare {
			continue
		}
		m, err := readFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DirExists reports whether the markers directory has been created at all.
func (s *Store) DirExists() bool {
	st, err := os.Stat(s.dir)
	return err == nil && st.IsDir()
}

func readFile(p string) (model.Marker, error) {
	name := strings.TrimSuffix(filepath.Base(p), fileExt)
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Marker{}, fmt.Errorf("marker %s: %w", name, model.ErrMissingFile)
	}
	if err != nil {
		return model.Marker{}, fmt.Errorf("read marker %s: %w", name, err)
	}
	st, err := os.Stat(p)
	if err != nil {
		return model.Marker{}, fmt.Errorf("stat marker %s: %w", name, err)
	}
	m := model.Marker{Name: name, Path: p, ModTime: st.ModTime()}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	first, rest, _ := strings.Cut(text, "\n")
	if ts, ok := strings.CutPrefix(first, verifiedHead); ok {
		m.VerifiedAt = parseTime(strings.TrimSpace(ts))
		m.Body = strings.TrimRight(rest, "\n")
	} else {
		// Hand-written markers without a header still count as present.
		m.Body = strings.TrimRight(text, "\n")
	}
	return m, nil
}

// parseTime accepts RFC 3339 and the naive ISO forms older probes wrote
// (no zone, optional fractional seconds). Unparseable stamps give the zero time.
func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid marker name %q", name)
	}
	return nil
}
