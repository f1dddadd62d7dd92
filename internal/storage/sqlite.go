// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"kids-meal-log/internal/models"
)

// timestampLayouts are tried in order when reading event_timestamp back.
var timestampLayouts = []string{
	models.TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the meals table when it is missing. Safe to call repeatedly.
func (s *SQLiteStorage) EnsureSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS meals (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        event_timestamp TEXT,
        child_name TEXT,
        meal_type TEXT,
        food TEXT,
        amount_consumed REAL,
        care_giver TEXT
    );
    `

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// AppendEvent inserts one meal and stores the assigned id on it.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, meal *models.MealEvent) (int64, error) {
	query := `
        INSERT INTO meals (event_timestamp, child_name, meal_type, food, amount_consumed, care_giver)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	var timestamp interface{}
	if meal.EventTimestamp != nil {
		timestamp = meal.EventTimestamp.Format(models.TimestampLayout)
	}

	res, err := s.db.ExecContext(ctx, query,
		timestamp, meal.ChildName, meal.MealType, meal.Food,
		meal.AmountConsumed, meal.CareGiver)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read meal id: %w", err)
	}
	meal.ID = id

	return id, nil
}

// LoadAll returns every meal in insertion order. Unparseable timestamps are
// returned as nil instead of failing the load.
func (s *SQLiteStorage) LoadAll(ctx context.Context) ([]*models.MealEvent, error) {
	query := `
        SELECT id, event_timestamp, child_name, meal_type, food, amount_consumed, care_giver
        FROM meals
        ORDER BY id
    `

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := []*models.MealEvent{}
	for rows.Next() {
		meal := &models.MealEvent{}
		var timestampStr, child, mealType, food, careGiver sql.NullString
		var amount sql.NullFloat64

		err := rows.Scan(
			&meal.ID, &timestampStr, &child, &mealType,
			&food, &amount, &careGiver)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if timestampStr.Valid {
			meal.EventTimestamp = parseTimestamp(timestampStr.String)
		}
		meal.ChildName = child.String
		meal.MealType = mealType.String
		meal.Food = food.String
		meal.AmountConsumed = amount.Float64
		meal.CareGiver = careGiver.String

		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	return meals, nil
}

func parseTimestamp(value string) *time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
