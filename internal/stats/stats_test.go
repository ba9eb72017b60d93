package stats_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nhle/oohrelay/internal/stats"
)

func TestRecordAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.csv")
	log := stats.NewLog(path)

	day1 := time.Date(2026, 10, 14, 6, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 10, 15, 6, 0, 0, 0, time.Local)
	if err := log.Record(day1, 3); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(day2, 0); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2026-10-14, 3\n2026-10-15, 0\n"
	if string(data) != want {
		t.Errorf("stats file = %q, want %q", data, want)
	}
}

func TestRecordKeepsExistingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	if err := os.WriteFile(path, []byte("2016-03-31, 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := stats.NewLog(path).Record(time.Date(2026, 1, 2, 0, 0, 0, 0, time.Local), 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "2016-03-31, 7\n2026-01-02, 1\n" {
		t.Errorf("stats file = %q", data)
	}
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	content := "2026-10-14, 3\ngarbage\n2026-10-15, x\n2026-10-16,12\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := stats.NewLog(path).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read len = %d, want 2", len(got))
	}
	if got[0].Count != 3 || got[0].Date.Day() != 14 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Count != 12 || got[1].Date.Day() != 16 {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestReadMissingFile(t *testing.T) {
	got, err := stats.NewLog(filepath.Join(t.TempDir(), "none.csv")).Read()
	if err != nil || got != nil {
		t.Errorf("Read missing = %v, %v; want nil, nil", got, err)
	}
}

func TestRecordFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := stats.NewLog(filepath.Join(blocker, "stats.csv")).Record(time.Now(), 1)
	if err == nil {
		t.Fatal("Record under a file should fail")
	}
}
