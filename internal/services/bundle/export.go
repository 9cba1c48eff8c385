package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"formatif-grader/internal/app"
	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/platform/hash"
)

// Options configures a submission bundle export.
type Options struct {
	Report *model.RunReport
	// Scripts are submission files relative to Report.RepoDir.
	Scripts []string
	ZipPath string
	Clock   clock.Clock
}

// FileEntry is one archived file.
type FileEntry struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Kind      string `json:"kind"` // report|script|marker
}

// Manifest describes the bundle contents.
type Manifest struct {
	Schema      string           `json:"schema"`
	Generator   string           `json:"generator"`
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id"`
	SuiteID     string           `json:"suite_id"`
	SuiteSHA256 string           `json:"suite_sha256"`
	Summary     model.RunSummary `json:"summary"`
	Files       []FileEntry      `json:"files"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// Result summarizes a written bundle.
type Result struct {
	ZipPath   string   `json:"zip_path"`
	ZipSHA256 string   `json:"zip_sha256"`
	Files     int      `json:"files"`
	Warnings  []string `json:"warnings,omitempty"`
}

const (
	ManifestSchemaV1 = "formatif_grader.submission_bundle.v1"

	manifestName = "manifest.json"
	hashesName   = "hashes.sha256"
)

// Export writes the run report, the submitted scripts and the marker files
// into one zip with a manifest and a sha256sum-compatible hash list.
// Missing scripts become warnings.
func Export(ctx context.Context, opts Options) (res *Result, err error) {
	if opts.Report == nil {
		return nil, fmt.Errorf("report is required")
	}
	if strings.TrimSpace(opts.ZipPath) == "" {
		return nil, fmt.Errorf("zip path is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now().UTC()
	rep := opts.Report

	if dir := filepath.Dir(opts.ZipPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bundle dir: %w", err)
		}
	}
	f, err := os.Create(opts.ZipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	zw := zip.NewWriter(f)
	closed := false
	defer func() {
		if !closed {
			err = multierr.Combine(err, zw.Close(), f.Close())
		}
	}()

	var warnings []string
	var entries []FileEntry
	add := func(zipPath, kind string, b []byte) error {
		sum, size, err := writeEntry(zw, zipPath, b, now)
		if err != nil {
			return fmt.Errorf("write %s: %w", zipPath, err)
		}
		entries = append(entries, FileEntry{Path: zipPath, SHA256: sum, SizeBytes: size, Kind: kind})
		return nil
	}

	reportRaw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := add("report.json", "report", reportRaw); err != nil {
		return nil, err
	}

	for _, rel := range opts.Scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(rep.RepoDir, rel))
		if errors.Is(err, fs.ErrNotExist) {
			warnings = append(warnings, "script not found: "+rel)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		if err := add(path.Join("scripts", filepath.ToSlash(rel)), "script", b); err != nil {
			return nil, err
		}
	}

	markerFiles, err := filepath.Glob(filepath.Join(rep.MarkersDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	if len(markerFiles) == 0 {
		warnings = append(warnings, "no marker files in "+rep.MarkersDir)
	}
	sort.Strings(markerFiles)
	for _, p := range markerFiles {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read marker: %w", err)
		}
		if err := add(path.Join("markers", filepath.Base(p)), "marker", b); err != nil {
			return nil, err
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	manifest := Manifest{
		Schema:      ManifestSchemaV1,
		Generator:   "formatif-grader " + app.Version,
		GeneratedAt: now,
		RunID:       rep.RunID,
		SuiteID:     rep.SuiteID,
		SuiteSHA256: rep.SuiteSHA256,
		Summary:     rep.Summary,
		Files:       append([]FileEntry(nil), entries...),
		Warnings:    warnings,
	}
	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := add(manifestName, "manifest", manifestRaw); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	lines := []string{
		"# formatif-grader submission bundle hash list",
		"# generated_at=" + now.Format(time.RFC3339),
		"# format: <sha256><two spaces><path>",
	}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s  %s", e.SHA256, e.Path))
	}
	if _, _, err := writeEntry(zw, hashesName, []byte(strings.Join(lines, "\n")+"\n"), now); err != nil {
		return nil, fmt.Errorf("write %s: %w", hashesName, err)
	}

	closed = true
	if err := multierr.Combine(zw.Close(), f.Close()); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	sum, _, err := hash.File(opts.ZipPath)
	if err != nil {
		return nil, fmt.Errorf("hash zip: %w", err)
	}
	return &Result{ZipPath: opts.ZipPath, ZipSHA256: sum, Files: len(entries), Warnings: warnings}, nil
}

func writeEntry(zw *zip.Writer, name string, b []byte, modified time.Time) (sum string, size int64, err error) {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
