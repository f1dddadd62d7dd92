// internal/models/meal.go
package models

import (
	"time"
)

// TimestampLayout is how event timestamps are written to storage and CSV.
const TimestampLayout = "2006-01-02T15:04:05"

// MealEvent is one logged meal. Rows are append-only.
type MealEvent struct {
	ID             int64      `json:"id"`
	EventTimestamp *time.Time `json:"event_timestamp"` // nil when the stored value could not be parsed
	ChildName      string     `json:"child_name"`
	MealType       string     `json:"meal_type"`
	Food           string     `json:"food"`
	AmountConsumed float64    `json:"amount_consumed"`
	CareGiver      string     `json:"care_giver"`
}

// FormattedTimestamp renders the event time, or "" when it is missing.
func (m *MealEvent) FormattedTimestamp() string {
	if m.EventTimestamp == nil {
		return ""
	}
	return m.EventTimestamp.Format(TimestampLayout)
}

type FoodScore struct {
	Food       string  `json:"food"`
	AvgPercent float64 `json:"avg_percent"`
}

// HistoryFilter narrows the history view. Empty strings mean "All".
type HistoryFilter struct {
	Child    string     `json:"child,omitempty"`
	MealType string     `json:"meal_type,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

type Suggestion struct {
	Child        string      `json:"child"`
	MealType     string      `json:"meal_type"`
	Foods        []FoodScore `json:"foods"`
	Text         string      `json:"text"`
	Insufficient bool        `json:"insufficient"`
}
