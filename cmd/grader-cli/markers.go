package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"formatif-grader/internal/adapters/markers"
	"formatif-grader/internal/app"
)

// runMarkers routes markers list / markers show.
func runMarkers(ctx context.Context, args []string) error {
	_ = ctx
	if len(args) == 0 {
		printMarkersUsage()
		return nil
	}
	switch args[0] {
	case "list":
		return runMarkersList(args[1:])
	case "show":
		return runMarkersShow(args[1:])
	default:
		printMarkersUsage()
		return fmt.Errorf("unknown markers command: %s", args[0])
	}
}

func printMarkersUsage() {
	fmt.Println("Usage:")
	fmt.Println("  grader-cli markers list [--repo DIR] [--markers DIR]")
	fmt.Println("  grader-cli markers show NAME [--repo DIR] [--markers DIR]")
}

func markersFlags(name string, cfg *app.Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.RepoDir, "repo", cfg.RepoDir, "submission directory")
	fs.StringVar(&cfg.MarkersDir, "markers", cfg.MarkersDir, "markers directory, relative to --repo")
	return fs
}

func runMarkersList(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := markersFlags("markers list", &cfg).Parse(args); err != nil {
		return err
	}
	store := markers.New(cfg.ResolveMarkersDir())
	if !store.DirExists() {
		fmt.Printf("no markers directory at %s\n", store.Dir())
		return nil
	}
	list, err := store.List()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Marker", "Verified", "Content"})
	for _, m := range list {
		t.AppendRow(table.Row{m.Name, fmtVerified(m.VerifiedAt), firstLine(m.Body)})
	}
	t.Render()
	return nil
}

func runMarkersShow(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Allow the name before or after the flags.
	var name string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	fs := markersFlags("markers show", &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if name == "" {
		name = fs.Arg(0)
	}
	if name == "" {
		return fmt.Errorf("marker name is required")
	}

	store := markers.New(cfg.ResolveMarkersDir())
	if !store.Exists(name) {
		return fmt.Errorf("marker %q not found in %s (run validate-pi on the Raspberry Pi first)", name, store.Dir())
	}
	m, err := store.Read(name)
	if err != nil {
		return err
	}
	fmt.Printf("name=%s\n", m.Name)
	fmt.Printf("path=%s\n", m.Path)
	fmt.Printf("verified_at=%s\n", fmtVerified(m.VerifiedAt))
	fields := m.Fields()
	keys := lo.Keys(fields)
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("field %s=%s\n", k, fields[k])
	}
	fmt.Println(m.Body)
	return nil
}

func fmtVerified(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func firstLine(s string) string {
	l, _, _ := strings.Cut(s, "\n")
	return l
}
