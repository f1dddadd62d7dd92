// cmd/meal-log/main_test.go
package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kids-meal-log/internal/models"
	"kids-meal-log/internal/storage"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meals.db")
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer store.Close()

	ts := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	for _, m := range []models.MealEvent{
		{EventTimestamp: &ts, ChildName: "Essence", MealType: "Lunch", Food: "Pasta", AmountConsumed: 90, CareGiver: "Nahja"},
		{EventTimestamp: &ts, ChildName: "Gabriella", MealType: "Lunch", Food: "Rice", AmountConsumed: 40, CareGiver: "Gabriel"},
	} {
		m := m
		if _, err := store.AppendEvent(context.Background(), &m); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "kids-meal-log version") {
		t.Errorf("output = %q", out)
	}
}

func TestExport(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "export", "--db-path", db, "--child", "Essence", "-o", "-")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("export lines = %q, want header + 1 row", lines)
	}
	if !strings.HasPrefix(lines[0], "id,event_timestamp") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Pasta") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestExport_BadDate(t *testing.T) {
	if _, err := run(t, "export", "--from", "yesterday", "-o", "-"); err == nil {
		t.Error("expected an error for a malformed --from")
	}
}

func TestRecommend(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "recommend", "--db-path", db, "--child", "Essence", "--meal-type", "Lunch")
	if err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	if !strings.Contains(out, "Pasta\t90.0%") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "recommend", "--db-path", db, "--child", "Gabriella", "--meal-type", "Lunch", "--narrate")
	if err != nil {
		t.Fatalf("recommend --narrate error = %v", err)
	}
	if !strings.Contains(out, "Not enough data yet") {
		t.Errorf("output = %q, want insufficient data without calling the AI", out)
	}

	if _, err := run(t, "recommend", "--db-path", db, "--child", "Essence", "--meal-type", "Lunch", "--narrate"); err == nil {
		t.Error("expected not configured error without an API key")
	}

	if _, err := run(t, "recommend", "--db-path", db); err == nil {
		t.Error("expected an error without --child and --meal-type")
	}
}
