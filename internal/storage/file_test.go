package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "jobmill/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "  NONE  "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store, want nil", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	ctx := context.Background()
	entries := []RunEntry{
		{At: time.Now().UTC(), JobID: "a", Status: "completed", TookMS: 12},
		{At: time.Now().UTC(), JobID: "b", Priority: 2, Status: "cancelled"},
		{At: time.Now().UTC(), JobID: "c", Status: "completed", Error: "exit status 1"},
	}
	for _, e := range entries {
		if err := st.AppendRun(ctx, e); err != nil {
			t.Fatalf("AppendRun(%s) error: %v", e.JobID, err)
		}
	}

	got, err := st.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns error: %v", err)
	}
	if len(got) != 2 || got[0].JobID != "b" || got[1].JobID != "c" {
		t.Fatalf("RecentRuns = %+v", got)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Reopen: the tail is seeded from the runs file.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()

	got, err = st2.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns after reopen error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("seeded %d entries, want 3", len(got))
	}
	if got[2].JobID != "c" || got[2].Error != "exit status 1" {
		t.Fatalf("last entry = %+v", got[2])
	}
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := st.AppendRun(context.Background(), RunEntry{JobID: "x"}); err == nil {
		t.Fatal("AppendRun after Close succeeded, want error")
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestFileStoreRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
