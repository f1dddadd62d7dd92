// internal/server/api.go
package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/service"
)

type mealListResponse struct {
	Meals     []*mealJSON `json:"meals"`
	Total     int         `json:"total"`
	Children  []string    `json:"children"`
	MealTypes []string    `json:"meal_types"`
}

// mealJSON renders the timestamp the same way the CSV export does.
type mealJSON struct {
	ID             int64   `json:"id"`
	EventTimestamp *string `json:"event_timestamp"`
	ChildName      string  `json:"child_name"`
	MealType       string  `json:"meal_type"`
	Food           string  `json:"food"`
	AmountConsumed float64 `json:"amount_consumed"`
	CareGiver      string  `json:"care_giver"`
}

type suggestRequest struct {
	Child    string `json:"child_name"`
	MealType string `json:"meal_type"`
}

func (s *MealLogServer) handleAPIListMeals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.meals.History(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list meals")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := mealListResponse{
		Meals:     make([]*mealJSON, 0, len(view.Events)),
		Total:     view.Total,
		Children:  view.Children,
		MealTypes: view.MealTypes,
	}
	for _, e := range view.Events {
		m := &mealJSON{
			ID:             e.ID,
			ChildName:      e.ChildName,
			MealType:       e.MealType,
			Food:           e.Food,
			AmountConsumed: e.AmountConsumed,
			CareGiver:      e.CareGiver,
		}
		if e.EventTimestamp != nil {
			ts := e.FormattedTimestamp()
			m.EventTimestamp = &ts
		}
		resp.Meals = append(resp.Meals, m)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *MealLogServer) handleAPILogMeal(w http.ResponseWriter, r *http.Request) {
	var in service.LogMealInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	meal, err := s.meals.LogMeal(r.Context(), in)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to log meal")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, meal)
}

func (s *MealLogServer) handleAPIRecommendations(w http.ResponseWriter, r *http.Request) {
	child, mealType := r.URL.Query().Get("child"), r.URL.Query().Get("meal_type")
	if child == "" || mealType == "" {
		writeJSONError(w, http.StatusBadRequest, "child and meal_type are required")
		return
	}

	foods, err := s.meals.Recommend(r.Context(), child, mealType)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to rank foods")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"child":     child,
		"meal_type": mealType,
		"foods":     foods,
	})
}

func (s *MealLogServer) handleAPISuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	suggestion, err := s.meals.Suggest(r.Context(), req.Child, req.MealType)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, narration.ErrNotConfigured) {
			msg = notConfiguredMessage
		}
		writeJSONError(w, suggestionStatus(suggestion, err), msg)
		return
	}

	writeJSON(w, http.StatusOK, suggestion)
}
