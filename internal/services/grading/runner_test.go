package grading

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"formatif-grader/internal/adapters/suite"
	"formatif-grader/internal/domain/model"
)

const goodBMP280 = `# /// script
# requires-python = ">=3.11"
# dependencies = ["adafruit-circuitpython-bmp280", "adafruit-blinka"]
# ///
import board
import adafruit_bmp280

i2c = board.I2C()
sensor = adafruit_bmp280.Adafruit_BMP280_I2C(i2c, address=0x77)
print(f"Temperature: {sensor.temperature:.1f} C")
print(f"Pressure: {sensor.pressure:.1f} hPa")
print(f"Altitude: {sensor.altitude:.2f} m")
`

type memLedger struct {
	saved []model.RunReport
	err   error
}

func (m *memLedger) SaveRun(_ context.Context, r model.RunReport) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func loadSuite(t *testing.T, ref string) *suite.Loaded {
	t.Helper()
	s, err := suite.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("load suite: %v", err)
	}
	return s
}

func TestRunEvaluatesEveryCheckOnceInOrder(t *testing.T) {
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "test_bmp280.py"), []byte(goodBMP280), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	ledger := &memLedger{}
	var seen []string
	r := New(Options{
		PythonVersion: "3.12",
		Clock:         mock,
		Ledger:        ledger,
		OnResult:      func(res model.CheckResult) { seen = append(seen, res.ID) },
	})
	s := loadSuite(t, "formatif-f1")

	rep, err := r.Run(context.Background(), s, Target{RepoDir: repo})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var want []string
	for _, c := range s.Bundle.Checks {
		want = append(want, c.ID)
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("evaluation order (-want +got):\n%s", diff)
	}
	if len(rep.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(rep.Results))
	}
	if !rep.Passed() {
		t.Fatalf("complete submission should pass: %+v", rep.Summary)
	}
	if rep.MarkersDir != filepath.Join(repo, ".test_markers") {
		t.Fatalf("unexpected markers dir %s", rep.MarkersDir)
	}
	if !rep.StartedAt.Equal(mock.Now()) || rep.SuiteSHA256 != s.SHA256 || rep.Closing == "" {
		t.Fatalf("report metadata incomplete: %+v", rep)
	}
	if len(ledger.saved) != 1 || ledger.saved[0].RunID != rep.RunID {
		t.Fatalf("ledger should receive the run once")
	}
}

func TestRunReportsFailuresWithoutError(t *testing.T) {
	r := New(Options{})
	rep, err := r.Run(context.Background(), loadSuite(t, "formatif-f1"), Target{RepoDir: t.TempDir()})
	if err != nil {
		t.Fatalf("check failures must not be errors: %v", err)
	}
	if rep.Passed() || rep.Summary.RequiredFailed == 0 {
		t.Fatalf("missing script should fail a required check: %+v", rep.Summary)
	}
}

func TestRunSurfacesLedgerError(t *testing.T) {
	r := New(Options{Ledger: &memLedger{err: errors.New("disk full")}})
	rep, err := r.Run(context.Background(), loadSuite(t, "milestone-02"), Target{RepoDir: t.TempDir()})
	if err == nil || rep == nil {
		t.Fatalf("expected ledger error alongside the report, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Options{}).Run(ctx, loadSuite(t, "formatif-f1"), Target{RepoDir: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []model.CheckResult{
		{Status: model.CheckPassed, Required: true},
		{Status: model.CheckFailed, Required: true},
		{Status: model.CheckFailed},
		{Status: model.CheckWarned},
		{Status: model.CheckSkipped, Required: true},
		{Status: model.CheckInfo},
	}
	want := model.RunSummary{Total: 6, Passed: 1, Failed: 2, Skipped: 1, Warned: 1, Info: 1, RequiredFailed: 1}
	if diff := cmp.Diff(want, Summarize(results)); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}
