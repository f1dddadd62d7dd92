// internal/storage/sqlite_test.go
package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"kids-meal-log/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "meals.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema() call %d error = %v", i, err)
		}
	}

	if _, err := s.AppendEvent(ctx, &models.MealEvent{ChildName: "Essence", Food: "Rice"}); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() after insert error = %v", err)
	}

	meals, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(meals) != 1 {
		t.Errorf("EnsureSchema must not drop rows, got %d meals", len(meals))
	}
}

func TestAppendEvent_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
	in := &models.MealEvent{
		EventTimestamp: &ts,
		ChildName:      "Gabriella",
		MealType:       "Lunch",
		Food:           "Pasta",
		AmountConsumed: 85,
		CareGiver:      "Nahja",
	}

	id, err := s.AppendEvent(ctx, in)
	if err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if id <= 0 || in.ID != id {
		t.Fatalf("AppendEvent() id = %d, event id = %d", id, in.ID)
	}

	meals, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(meals) != 1 {
		t.Fatalf("LoadAll() returned %d meals, want 1", len(meals))
	}

	got := meals[0]
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.ChildName != in.ChildName || got.MealType != in.MealType || got.Food != in.Food ||
		got.AmountConsumed != in.AmountConsumed || got.CareGiver != in.CareGiver {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, in)
	}
	if got.EventTimestamp == nil || !got.EventTimestamp.Equal(ts) {
		t.Errorf("EventTimestamp = %v, want %v", got.EventTimestamp, ts)
	}
}

func TestAppendEvent_AllowsDuplicatesWithIncreasingIDs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	var last int64
	for i := 0; i < 3; i++ {
		id, err := s.AppendEvent(ctx, &models.MealEvent{
			EventTimestamp: &ts, ChildName: "Essence", MealType: "Breakfast", Food: "Oatmeal", AmountConsumed: 50,
		})
		if err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
		if id <= last {
			t.Errorf("id %d not greater than previous %d", id, last)
		}
		last = id
	}

	meals, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(meals) != 3 {
		t.Errorf("LoadAll() returned %d meals, want 3 duplicates", len(meals))
	}
}

func TestLoadAll_EmptyTable(t *testing.T) {
	s := newTestStorage(t)

	meals, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if meals == nil || len(meals) != 0 {
		t.Errorf("LoadAll() = %v, want empty non-nil slice", meals)
	}
}

func TestLoadAll_CoercesMalformedTimestamps(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rows := []string{"not a date", "2025-02-30T10:00:00", "2025-02-01T07:45:00", "2025-02-01 07:45:00.123456"}
	for _, ts := range rows {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO meals (event_timestamp, child_name, meal_type, food, amount_consumed, care_giver) VALUES (?, 'Essence', 'Breakfast', 'Toast', 40, 'Gabriel')`, ts)
		if err != nil {
			t.Fatalf("raw insert error = %v", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meals (child_name) VALUES ('Essence')`); err != nil {
		t.Fatalf("raw insert error = %v", err)
	}

	meals, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() must not fail on bad timestamps, got %v", err)
	}
	if len(meals) != 5 {
		t.Fatalf("LoadAll() returned %d meals, want 5", len(meals))
	}

	wantValid := []bool{false, false, true, true, false}
	for i, m := range meals {
		if (m.EventTimestamp != nil) != wantValid[i] {
			t.Errorf("meal %d timestamp = %v, want valid=%v", i, m.EventTimestamp, wantValid[i])
		}
	}
}

func TestLoadAll_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ts := time.Date(2025, 5, 5, 18, 0, 0, 0, time.UTC)
	for _, food := range []string{"Beans", "Rice", "Beans"} {
		if _, err := s.AppendEvent(ctx, &models.MealEvent{
			EventTimestamp: &ts, ChildName: "Essence", MealType: "Dinner", Food: food, AmountConsumed: 60, CareGiver: "Gabriel",
		}); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
	}

	first, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	second, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("LoadAll() not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestNewSQLiteStorage_UnwritablePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "nested", "meals.db")
	if _, err := NewSQLiteStorage(dir); err == nil {
		t.Error("NewSQLiteStorage() expected error for a path in a missing directory")
	}
}
