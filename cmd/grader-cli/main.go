package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"formatif-grader/internal/app"
	"formatif-grader/internal/platform/logging"
)

// exitCode carries a non-default process status without printing an error.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// CLI entry point. Errors go to stderr with status 1.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	cancel()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// run routes the first-level command.
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "check":
		return runCheck(ctx, args[1:])
	case "suite":
		return runSuite(ctx, args[1:])
	case "markers":
		return runMarkers(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "verify":
		return runVerify(ctx, args[1:])
	case "migrate":
		return runMigrate(ctx, args[1:])
	case "version":
		fmt.Printf("grader-cli %s", app.Version)
		if app.Commit != "" {
			fmt.Printf(" (%s %s)", app.Commit, app.BuildTime)
		}
		fmt.Println()
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  grader-cli check [--repo DIR] [--suite NAME|PATH] [--markers DIR] [--syntax builtin|docker|auto]")
	fmt.Println("                   [--format text|json|yaml] [--pdf PATH] [--db PATH] [--bundle PATH] [--strict]")
	fmt.Println("  grader-cli suite list")
	fmt.Println("  grader-cli suite validate --suite NAME|PATH")
	fmt.Println("  grader-cli markers list [--repo DIR] [--markers DIR]")
	fmt.Println("  grader-cli markers show NAME [--repo DIR] [--markers DIR]")
	fmt.Println("  grader-cli history --db PATH [--run-id ID] [--check ID] [--limit 20]")
	fmt.Println("  grader-cli verify bundle --zip PATH")
	fmt.Println("  grader-cli migrate --db PATH")
	fmt.Println("  grader-cli version")
}

// loadConfig reads .env and GRADER_* variables from the working directory.
func loadConfig() (app.Config, error) {
	return app.Load(".")
}

func newLogger(cfg app.Config) *zap.Logger {
	return logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
}
