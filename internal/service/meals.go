// internal/service/meals.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kids-meal-log/internal/config"
	"kids-meal-log/internal/history"
	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/metrics"
	"kids-meal-log/internal/models"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/recommend"
)

// InsufficientDataMessage is shown instead of a narration when no food
// clears the threshold.
const InsufficientDataMessage = "Not enough data yet: log more meals for this child and meal type to get a suggestion."

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Store is the persistence the service needs.
type Store interface {
	AppendEvent(ctx context.Context, meal *models.MealEvent) (int64, error)
	LoadAll(ctx context.Context) ([]*models.MealEvent, error)
}

// LogMealInput is the Log Meal form.
type LogMealInput struct {
	Child     string  `json:"child_name" validate:"required"`
	MealType  string  `json:"meal_type" validate:"required"`
	Food      string  `json:"food" validate:"required,max=500"`
	Percent   float64 `json:"amount_consumed" validate:"min=0,max=100,percentstep"`
	CareGiver string  `json:"care_giver" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string  `json:"time" validate:"required"`
}

// HistoryView is everything the History page renders.
type HistoryView struct {
	Events    []*models.MealEvent
	Total     int
	Children  []string
	MealTypes []string
	Filter    models.HistoryFilter
	MinDate   *time.Time
	MaxDate   *time.Time
}

type MealService struct {
	store      Store
	summarizer narration.Summarizer
	roster     config.RosterConfig
	opts       recommend.Options
}

func NewMealService(store Store, summarizer narration.Summarizer, roster config.RosterConfig, opts recommend.Options) *MealService {
	return &MealService{
		store:      store,
		summarizer: summarizer,
		roster:     roster,
		opts:       opts,
	}
}

func (s *MealService) Roster() config.RosterConfig {
	return s.roster
}

// LogMeal validates the form, builds the event timestamp and appends the meal.
func (s *MealService) LogMeal(ctx context.Context, in LogMealInput) (*models.MealEvent, error) {
	in.Food = strings.TrimSpace(in.Food)
	in.Time = strings.TrimSpace(in.Time)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var problems []string
	if !contains(s.roster.Children, in.Child) {
		problems = append(problems, fmt.Sprintf("unknown child %q", in.Child))
	}
	if !contains(s.roster.MealTypes, in.MealType) {
		problems = append(problems, fmt.Sprintf("unknown meal type %q", in.MealType))
	}
	if !contains(s.roster.CareGivers, in.CareGiver) {
		problems = append(problems, fmt.Sprintf("unknown caregiver %q", in.CareGiver))
	}
	ts, err := combineDateTime(in.Date, in.Time)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}

	meal := &models.MealEvent{
		EventTimestamp: &ts,
		ChildName:      in.Child,
		MealType:       in.MealType,
		Food:           in.Food,
		AmountConsumed: in.Percent,
		CareGiver:      in.CareGiver,
	}

	if _, err := s.store.AppendEvent(ctx, meal); err != nil {
		return nil, fmt.Errorf("failed to save meal: %w", err)
	}
	metrics.RecordMealLogged()

	logging.Ctx(ctx).Info().
		Int64("id", meal.ID).
		Str("child", meal.ChildName).
		Str("meal_type", meal.MealType).
		Float64("amount_consumed", meal.AmountConsumed).
		Msg("Meal saved")

	return meal, nil
}

func combineDateTime(date, clock string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must use the format %s", DateLayout)
	}
	var c time.Time
	for _, layout := range []string{TimeLayout, "15:04:05"} {
		if c, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("time must use the format %s", TimeLayout)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), nil
}

// History loads every meal and applies the filter. Filter choices narrow as
// in the page: meal types reflect the chosen child, date bounds reflect both.
func (s *MealService) History(ctx context.Context, filter models.HistoryFilter) (*HistoryView, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load meals: %w", err)
	}

	view := &HistoryView{
		Total:    len(all),
		Children: history.Children(all),
		Filter:   filter,
	}

	byChild := history.Apply(all, models.HistoryFilter{Child: filter.Child})
	view.MealTypes = history.MealTypes(byChild)

	byChildMeal := history.Apply(all, models.HistoryFilter{Child: filter.Child, MealType: filter.MealType})
	view.MinDate, view.MaxDate = history.Bounds(byChildMeal)

	view.Events = history.Apply(all, filter)
	return view, nil
}

// Recommend returns the top foods for a child and meal type.
func (s *MealService) Recommend(ctx context.Context, child, mealType string) ([]models.FoodScore, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load meals: %w", err)
	}
	return recommend.Recommend(all, child, mealType, s.opts), nil
}

// Suggest ranks foods and, when there are any, asks the summarizer for one
// sentence. With no foods it reports insufficient data and makes no call.
func (s *MealService) Suggest(ctx context.Context, child, mealType string) (*models.Suggestion, error) {
	if child == "" || mealType == "" {
		return nil, &InputError{Problems: []string{"child and meal type are required"}}
	}

	foods, err := s.Recommend(ctx, child, mealType)
	if err != nil {
		metrics.RecordRecommendation(metrics.OutcomeError)
		return nil, err
	}

	suggestion := &models.Suggestion{
		Child:    child,
		MealType: mealType,
		Foods:    foods,
	}

	if len(foods) == 0 {
		suggestion.Insufficient = true
		suggestion.Text = InsufficientDataMessage
		metrics.RecordRecommendation(metrics.OutcomeInsufficient)
		return suggestion, nil
	}

	text, err := s.summarizer.Summarize(ctx, recommend.FoodNames(foods), mealType)
	if err != nil {
		if errors.Is(err, narration.ErrNotConfigured) {
			metrics.RecordRecommendation(metrics.OutcomeNotConfigured)
		} else {
			metrics.RecordRecommendation(metrics.OutcomeError)
		}
		logging.Ctx(ctx).Warn().Err(err).Str("child", child).Str("meal_type", mealType).Msg("Narration failed")
		return suggestion, fmt.Errorf("failed to narrate recommendation: %w", err)
	}

	suggestion.Text = text
	metrics.RecordRecommendation(metrics.OutcomeOK)
	return suggestion, nil
}
