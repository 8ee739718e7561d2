package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guida/internal/aggregate"
)

// setupEnv points the CLI at a fresh backend in a temp dir.
func setupEnv(t *testing.T, backend string, seed bool) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", backend)
	t.Setenv("DATA_DIR", dir)
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "guida.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	if seed {
		t.Setenv("SEED_DEMO_DATA", "true")
	} else {
		t.Setenv("SEED_DEMO_DATA", "false")
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	setupEnv(t, "memory", true)

	out, err := run(t, "summary", "--kind", "impressions", "--range", "14", "--dims", "category,device")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var sum aggregate.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if sum.RangeDays != 14 || len(sum.Buckets) != 14 {
		t.Errorf("range = %d with %d buckets, want 14", sum.RangeDays, len(sum.Buckets))
	}
	if sum.Count == 0 {
		t.Error("seeded backend produced an empty summary")
	}
	if _, ok := sum.Breakdowns["device"]; !ok {
		t.Errorf("breakdowns = %v, want a device dimension", sum.Dimensions())
	}
}

func TestSummaryCommand_Errors(t *testing.T) {
	setupEnv(t, "memory", false)

	tests := []struct {
		name string
		args []string
	}{
		{"zero range", []string{"summary", "--range", "0"}},
		{"unknown kind", []string{"summary", "--kind", "visits"}},
		{"unknown unit", []string{"summary", "--unit", "week"}},
		{"stray argument", []string{"summary", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("guidactl %s succeeded, want error", strings.Join(tt.args, " "))
			}
		})
	}
}

func TestExportCommand(t *testing.T) {
	dir := setupEnv(t, "memory", true)
	target := filepath.Join(dir, "out.csv")

	if _, err := run(t, "export", "--kind", "reviews", "--format", "csv", "--out", target); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "label,start,end,sum,count,average") {
		t.Errorf("unexpected csv header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	if _, err := run(t, "export", "--format", "pdf", "--out", "-"); err == nil {
		t.Error("unknown format succeeded, want error")
	}
}

func TestSeedCommand_SQLite(t *testing.T) {
	setupEnv(t, "sqlite", false)

	out, err := run(t, "seed", "--business", "2", "--days", "3")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.HasPrefix(out, "seeded 2 businesses") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "seed", "--business", "2", "--days", "3"); err == nil {
		t.Error("second seed into a non-empty store succeeded, want error")
	}
	if _, err := run(t, "seed", "--business", "1", "--days", "3", "--seed", "2", "--append"); err != nil {
		t.Errorf("append seed: %v", err)
	}

	out, err = run(t, "summary", "--kind", "transactions", "--range", "7")
	if err != nil {
		t.Fatalf("summary after seed: %v", err)
	}
	var sum aggregate.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.RangeDays != 7 {
		t.Errorf("range = %d, want 7", sum.RangeDays)
	}
}
