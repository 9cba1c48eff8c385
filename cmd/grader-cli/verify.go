package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"formatif-grader/internal/services/bundle"
)

// runVerify routes verify subcommands.
func runVerify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printVerifyUsage()
		return nil
	}
	switch args[0] {
	case "bundle":
		return runVerifyBundle(ctx, args[1:])
	default:
		printVerifyUsage()
		return fmt.Errorf("unknown verify command: %s", args[0])
	}
}

func printVerifyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  grader-cli verify bundle --zip PATH_TO_ZIP")
}

func runVerifyBundle(ctx context.Context, args []string) error {
	_ = ctx

	fs := flag.NewFlagSet("verify bundle", flag.ContinueOnError)
	zipPath := fs.String("zip", "", "path to submission bundle (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*zipPath) == "" {
		return fmt.Errorf("--zip is required")
	}

	res, err := bundle.Verify(*zipPath)
	if err != nil {
		return err
	}
	fmt.Println("bundle verify completed")
	fmt.Printf("zip=%s\n", *zipPath)
	if m := res.Manifest; m != nil {
		fmt.Printf("run_id=%s suite=%s generated_at=%s\n", m.RunID, m.SuiteID, m.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Printf("files_total=%d ok=%d failed=%d\n", res.Total, res.OK, res.Failed)

	if res.Failed > 0 {
		for _, it := range res.Items {
			if it.Status == bundle.StatusOK {
				continue
			}
			if it.Error != "" {
				fmt.Printf("FAIL %s status=%s expected=%s error=%s\n", it.Path, it.Status, it.Expected, it.Error)
			} else {
				fmt.Printf("FAIL %s status=%s expected=%s actual=%s\n", it.Path, it.Status, it.Expected, it.Actual)
			}
		}
		return fmt.Errorf("bundle verify failed: %d files mismatch/missing", res.Failed)
	}
	return nil
}
