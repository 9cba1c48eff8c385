// Command validate-pi runs on the student's Raspberry Pi. It checks the SSH
// key, the I²C bus, the BMP280 and the optional NeoSlider, validates
// test_bmp280.py and writes marker files under .test_markers/.
//
// It takes no flags; GRADER_* variables or a .env file configure it.
// Exit status is 0 when every required step passed, 1 otherwise.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"formatif-grader/internal/adapters/markers"
	"formatif-grader/internal/adapters/pycompile"
	"formatif-grader/internal/app"
	"formatif-grader/internal/platform/logging"
	"formatif-grader/internal/services/probe"
	"formatif-grader/internal/services/report"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	con := report.NewConsole(os.Stdout, false)

	cfg, err := app.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()

	fmt.Println()
	con.Section("Formatif F1 - Local Hardware Validation")
	fmt.Println(strings.Repeat("=", 60))

	syntax, closeSyntax, err := pycompile.Select(ctx, cfg.Syntax, cfg.PythonImage, logger)
	if err != nil {
		logger.Warn("syntax backend unavailable, using builtin", zap.Error(err))
		syntax, closeSyntax, _ = pycompile.Select(ctx, app.SyntaxBuiltin, "", logger)
	}
	defer func() { _ = closeSyntax() }()

	rep := probe.New(probe.Options{
		RepoDir:     cfg.RepoDir,
		Markers:     markers.New(cfg.ResolveMarkersDir()),
		SSHDir:      cfg.SSHDir,
		SeaLevelHPa: cfg.SeaLevelHPa,
		Syntax:      syntax,
		Console:     con,
		Logger:      logger,
	}).Run(ctx)

	if rep.Passed {
		return 0
	}
	return 1
}
