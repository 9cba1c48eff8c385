package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"formatif-grader/internal/adapters/pycompile"
	sqliteadapter "formatif-grader/internal/adapters/store/sqlite"
	"formatif-grader/internal/adapters/suite"
	"formatif-grader/internal/app"
	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/services/bundle"
	"formatif-grader/internal/services/grading"
	"formatif-grader/internal/services/report"
)

// runCheck grades one submission. Failed checks are reported, not returned;
// only --strict turns a failed required check into exit status 2.
func runCheck(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	repoDir := fs.String("repo", cfg.RepoDir, "submission directory")
	suiteRef := fs.String("suite", cfg.Suite, "built-in suite id or suite file path")
	markersDir := fs.String("markers", "", "markers directory (default <repo>/"+cfg.MarkersDir+")")
	syntax := fs.String("syntax", cfg.Syntax, "syntax backend: builtin|docker|auto")
	image := fs.String("python-image", cfg.PythonImage, "image used by the docker syntax backend")
	pyVersion := fs.String("python-version", cfg.PythonVersion, "interpreter version requires-python must admit")
	format := fs.String("format", report.FormatText, "output format: text|json|yaml")
	pdfPath := fs.String("pdf", "", "also write a PDF report to this path")
	dbPath := fs.String("db", cfg.DBPath, "record the run in this sqlite ledger (opt-in)")
	bundlePath := fs.String("bundle", "", "also export a submission bundle zip to this path")
	strict := fs.Bool("strict", false, "exit 2 when a required check failed")
	noColor := fs.Bool("no-color", false, "disable colored output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *format {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
	default:
		return fmt.Errorf("unsupported --format %q", *format)
	}

	cfg.RepoDir = *repoDir
	if *markersDir != "" {
		cfg.MarkersDir = *markersDir
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	s, err := suite.Load(ctx, *suiteRef)
	if err != nil {
		return err
	}

	backend, closeBackend, err := pycompile.Select(ctx, *syntax, *image, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("close syntax backend", zap.Error(err))
		}
	}()

	opts := grading.Options{Syntax: backend, PythonVersion: *pyVersion, Logger: logger}
	if strings.TrimSpace(*dbPath) != "" {
		store, closeDB, err := openLedger(ctx, *dbPath)
		if err != nil {
			return err
		}
		defer closeDB()
		opts.Ledger = store
	}

	text := *format == report.FormatText
	con := report.NewConsole(os.Stdout, *noColor)
	if text {
		b := s.Bundle
		con.Header(b.Title, b.ID, b.Version, cfg.RepoDir)
		opts.OnResult = func(r model.CheckResult) { con.Result(r, b.WeightUnit) }
	}

	rep, err := grading.New(opts).Run(ctx, s, grading.Target{
		RepoDir:    cfg.RepoDir,
		MarkersDir: cfg.ResolveMarkersDir(),
	})
	if err != nil {
		return err
	}

	if text {
		con.Summary(rep)
	} else if err := report.Write(os.Stdout, *format, rep); err != nil {
		return err
	}

	if *pdfPath != "" {
		res, err := report.WritePDF(*pdfPath, rep)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			logger.Warn("pdf report", zap.String("warning", w))
		}
		fmt.Fprintf(os.Stderr, "pdf=%s sha256=%s\n", res.Path, res.SHA256)
	}

	if *bundlePath != "" {
		scripts := make([]string, 0, len(s.Bundle.Scripts))
		for _, sc := range s.Bundle.Scripts {
			scripts = append(scripts, sc.Path)
		}
		res, err := bundle.Export(ctx, bundle.Options{Report: rep, Scripts: scripts, ZipPath: *bundlePath})
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			logger.Info("bundle export", zap.String("warning", w))
		}
		fmt.Fprintf(os.Stderr, "bundle=%s sha256=%s files=%d\n", res.ZipPath, res.ZipSHA256, res.Files)
	}

	if *strict && !rep.Passed() {
		return exitCode(2)
	}
	return nil
}

func openLedger(ctx context.Context, path string) (*sqliteadapter.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sqliteadapter.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return sqliteadapter.NewStore(db), func() { _ = db.Close() }, nil
}

// requireDB resolves --db against GRADER_DB.
func requireDB(flagValue string, cfg app.Config) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return "", fmt.Errorf("--db is required")
}
