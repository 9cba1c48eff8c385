package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/services/report"
)

// runHistory lists ledger runs, shows one run, or tallies one check.
func runHistory(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbFlag := fs.String("db", "", "sqlite ledger path")
	runID := fs.String("run-id", "", "show one run")
	checkID := fs.String("check", "", "tally the statuses of one check across runs")
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dbPath, err := requireDB(*dbFlag, cfg)
	if err != nil {
		return err
	}
	store, closeDB, err := openLedger(ctx, dbPath)
	if err != nil {
		return err
	}
	defer closeDB()

	switch {
	case *runID != "":
		rep, intact, err := store.GetRun(ctx, *runID)
		if err != nil {
			return err
		}
		if !intact {
			fmt.Fprintln(os.Stderr, "warning: record hash mismatch, the stored report was modified")
		}
		report.NewConsole(os.Stdout, false).Report(rep)
		return nil
	case *checkID != "":
		counts, err := store.CheckHistory(ctx, *checkID)
		if err != nil {
			return err
		}
		statuses := make([]string, 0, len(counts))
		for s := range counts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)
		fmt.Printf("check=%s\n", *checkID)
		for _, s := range statuses {
			fmt.Printf("%s=%d\n", s, counts[model.CheckStatus(s)])
		}
		return nil
	}

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Suite", "Started", "Passed", "Failed", "Required failed", "Repo"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.RunID,
			r.SuiteID + " v" + r.SuiteVersion,
			r.StartedAt.Local().Format(time.DateTime),
			r.Summary.Passed,
			r.Summary.Failed,
			r.Summary.RequiredFailed,
			r.RepoDir,
		})
	}
	t.Render()
	return nil
}

// runMigrate applies the ledger migrations.
func runMigrate(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbFlag := fs.String("db", "", "sqlite ledger path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dbPath, err := requireDB(*dbFlag, cfg)
	if err != nil {
		return err
	}
	store, closeDB, err := openLedger(ctx, dbPath)
	if err != nil {
		return err
	}
	defer closeDB()

	ver, err := store.GetSchemaMetaValue(ctx, "schema_version")
	if err != nil {
		return err
	}
	fmt.Printf("migrations applied successfully: db=%s schema_version=%s\n", dbPath, ver)
	return nil
}
