package markers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"formatif-grader/internal/domain/model"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	mc := clock.NewMock()
	mc.Set(time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC))
	return NewWithClock(filepath.Join(t.TempDir(), ".test_markers"), mc), mc
}

func TestWriteFormat(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Write(model.MarkerBMP280, "T=21.3C P=1013.2hPa A=0.5m"); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(s.Path(model.MarkerBMP280))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "Verified: 2025-03-14T09:26:53Z\nT=21.3C P=1013.2hPa A=0.5m\n"
	if diff := cmp.Diff(want, string(raw)); diff != "" {
		t.Fatalf("marker content mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteOverwritesAndReadsBack(t *testing.T) {
	s, mc := newTestStore(t)
	if _, err := s.Write("ssh_key_verified", "id_rsa.pub"); err != nil {
		t.Fatalf("write: %v", err)
	}
	mc.Add(time.Hour)
	if _, err := s.Write("ssh_key_verified", "id_ed25519_iot.pub"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m, err := s.Read("ssh_key_verified")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Body != "id_ed25519_iot.pub" {
		t.Fatalf("body = %q", m.Body)
	}
	if !m.VerifiedAt.Equal(time.Date(2025, 3, 14, 10, 26, 53, 0, time.UTC)) {
		t.Fatalf("verified at = %v", m.VerifiedAt)
	}
}

func TestReadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read("bmp280_verified")
	if !errors.Is(err, model.ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}
	if s.Exists("bmp280_verified") {
		t.Fatalf("marker should not exist")
	}
}

func TestReadLegacyAndHandWritten(t *testing.T) {
	s, _ := newTestStore(t)
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(s.Path("legacy"), []byte("Verified: 2024-10-01T12:00:00.123456\nok\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(s.Path("manual"), []byte("i2c works\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	legacy, err := s.Read("legacy")
	if err != nil {
		t.Fatalf("read legacy: %v", err)
	}
	if legacy.VerifiedAt.Year() != 2024 || legacy.Body != "ok" {
		t.Fatalf("unexpected legacy marker: %+v", legacy)
	}
	manual, err := s.Read("manual")
	if err != nil {
		t.Fatalf("read manual: %v", err)
	}
	if !manual.VerifiedAt.IsZero() || manual.Body != "i2c works" {
		t.Fatalf("unexpected manual marker: %+v", manual)
	}
}

func TestGlobAndList(t *testing.T) {
	s, _ := newTestStore(t)
	for _, n := range []string{"bmp280_verified", "i2c_scan", "ssh_key_verified"} {
		if _, err := s.Write(n, "x"); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	got, err := s.Glob("*bmp*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(got) != 1 || got[0].Name != "bmp280_verified" {
		t.Fatalf("unexpected glob result: %+v", got)
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	names := make([]string, 0, len(all))
	for _, m := range all {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"bmp280_verified", "i2c_scan", "ssh_key_verified"}, names); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobMatchesHandCommittedFiles(t *testing.T) {
	s, _ := newTestStore(t)
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, body := range map[string]string{
		"bmp280.log": "T=21.0C\n",
		".gitkeep":   "",
	} {
		if err := os.WriteFile(filepath.Join(s.Dir(), name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := s.Write("i2c_scan", "0x77"); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.Glob("*bmp*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(got) != 1 || got[0].Name != "bmp280.log" {
		t.Fatalf("unexpected glob result: %+v", got)
	}
	txt, err := s.Glob("*i2c*.txt")
	if err != nil || len(txt) != 1 || txt[0].Name != "i2c_scan" {
		t.Fatalf("unexpected glob with extension: %+v %v", txt, err)
	}
	all, err := s.List()
	if err != nil || len(all) != 2 {
		t.Fatalf("hidden files must be skipped: %+v %v", all, err)
	}
}

func TestListMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"))
	got, err := s.List()
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v %v", got, err)
	}
	if s.DirExists() {
		t.Fatalf("dir should not exist")
	}
}

func TestFields(t *testing.T) {
	m := model.Marker{Body: "T=21.3C P=1013.2hPa A=110.4m note"}
	want := map[string]string{"T": "21.3C", "P": "1013.2hPa", "A": "110.4m"}
	if diff := cmp.Diff(want, m.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteRejectsPathNames(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Write("../escape", "x"); err == nil {
		t.Fatalf("expected error for path-like name")
	}
}
