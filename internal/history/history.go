// internal/history/history.go
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"kids-meal-log/internal/models"
)

// CSVHeader matches the meals table columns.
var CSVHeader = []string{"id", "event_timestamp", "child_name", "meal_type", "food", "amount_consumed", "care_giver"}

// ExportFileName is the suggested download name for exported history.
const ExportFileName = "meals_history.csv"

// Apply filters events and returns them newest first. When a date bound is
// set, events without a timestamp are dropped; otherwise they sort last.
func Apply(events []*models.MealEvent, f models.HistoryFilter) []*models.MealEvent {
	out := []*models.MealEvent{}
	from, to := dateOnly(f.From), dateOnly(f.To)

	for _, e := range events {
		if f.Child != "" && e.ChildName != f.Child {
			continue
		}
		if f.MealType != "" && e.MealType != f.MealType {
			continue
		}
		if from != nil || to != nil {
			if e.EventTimestamp == nil {
				continue
			}
			day := dateOnly(e.EventTimestamp)
			if from != nil && day.Before(*from) {
				continue
			}
			if to != nil && day.After(*to) {
				continue
			}
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].EventTimestamp, out[j].EventTimestamp
		switch {
		case a == nil && b == nil:
			return out[i].ID > out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID > out[j].ID
		}
		return a.After(*b)
	})
	return out
}

// Bounds returns the first and last calendar dates seen, or nils when no
// event has a timestamp.
func Bounds(events []*models.MealEvent) (first, last *time.Time) {
	for _, e := range events {
		if e.EventTimestamp == nil {
			continue
		}
		day := dateOnly(e.EventTimestamp)
		if first == nil || day.Before(*first) {
			first = day
		}
		if last == nil || day.After(*last) {
			last = day
		}
	}
	return first, last
}

// Children lists distinct child names, sorted.
func Children(events []*models.MealEvent) []string {
	return distinct(events, func(e *models.MealEvent) string { return e.ChildName })
}

// MealTypes lists distinct meal types, sorted.
func MealTypes(events []*models.MealEvent) []string {
	return distinct(events, func(e *models.MealEvent) string { return e.MealType })
}

func distinct(events []*models.MealEvent, field func(*models.MealEvent) string) []string {
	seen := map[string]struct{}{}
	values := []string{}
	for _, e := range events {
		v := field(e)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// WriteCSV writes a header row followed by one row per event.
func WriteCSV(w io.Writer, events []*models.MealEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range events {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.FormattedTimestamp(),
			e.ChildName,
			e.MealType,
			e.Food,
			strconv.FormatFloat(e.AmountConsumed, 'f', -1, 64),
			e.CareGiver,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
