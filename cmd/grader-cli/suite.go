package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"formatif-grader/internal/adapters/suite"
)

// runSuite routes suite list / suite validate.
func runSuite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printSuiteUsage()
		return nil
	}
	switch args[0] {
	case "list":
		return runSuiteList(ctx)
	case "validate":
		return runSuiteValidate(ctx, args[1:])
	default:
		printSuiteUsage()
		return fmt.Errorf("unknown suite command: %s", args[0])
	}
}

func printSuiteUsage() {
	fmt.Println("Usage:")
	fmt.Println("  grader-cli suite list")
	fmt.Println("  grader-cli suite validate --suite NAME|PATH")
}

func runSuiteList(ctx context.Context) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Version", "Title", "Checks", "Weights"})
	for _, id := range suite.Builtin() {
		l, err := suite.Load(ctx, id)
		if err != nil {
			return err
		}
		b := l.Bundle
		t.AppendRow(table.Row{b.ID, b.Version, b.Title, len(b.Checks), b.WeightUnit})
	}
	t.Render()
	return nil
}

func runSuiteValidate(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("suite validate", flag.ContinueOnError)
	ref := fs.String("suite", cfg.Suite, "built-in suite id or suite file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*ref) == "" {
		return fmt.Errorf("--suite is required")
	}

	l, err := suite.Load(ctx, *ref)
	if err != nil {
		return err
	}
	fmt.Println("suite validation passed")
	fmt.Printf("source=%s sha256=%s\n", l.Source, l.SHA256)
	fmt.Printf("id=%s version=%s checks=%d scripts=%d reminders=%d\n",
		l.Bundle.ID, l.Bundle.Version, len(l.Bundle.Checks), len(l.Bundle.Scripts), len(l.Bundle.Reminders))
	return nil
}
