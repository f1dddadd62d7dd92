// internal/server/tools.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/goccy/go-json"

	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/service"
)

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type GetMealsParams struct {
	Child     string `json:"child_name,omitempty" description:"Only meals for this child"`
	MealType  string `json:"meal_type,omitempty" description:"Only meals of this type"`
	StartDate string `json:"start_date,omitempty" description:"Start date for meal query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date for meal query (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of meals to return"`
}

type RecommendParams struct {
	Child    string `json:"child_name" description:"Child to rank foods for"`
	MealType string `json:"meal_type" description:"Breakfast, Lunch or Dinner"`
}

// extractParams converts the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	return nil
}

func (s *MealLogServer) registerTools() {
	s.tools = map[string]toolHandler{
		"log_meal":        s.handleLogMealTool,
		"get_meals":       s.handleGetMealsTool,
		"recommend_foods": s.handleRecommendTool,
		"suggest_meal":    s.handleSuggestTool,
	}
	for name := range s.tools {
		logging.Debug().Str("tool", name).Msg("Registered tool")
	}
}

func (s *MealLogServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", request.Name))
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, narration.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		}
		logging.Ctx(r.Context()).Warn().Err(err).Str("tool", request.Name).Msg("Tool call failed")
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLogMealTool appends one meal. Date and time default to now.
func (s *MealLogServer) handleLogMealTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params service.LogMealInput
	if err := extractParams(req, &params); err != nil {
		return nil, &service.InputError{Problems: []string{err.Error()}}
	}

	now := time.Now()
	if params.Date == "" {
		params.Date = now.Format(service.DateLayout)
	}
	if params.Time == "" {
		params.Time = now.Format(service.TimeLayout)
	}

	meal, err := s.meals.LogMeal(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(meal)
}

func (s *MealLogServer) handleGetMealsTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetMealsParams
	if err := extractParams(req, &params); err != nil {
		return nil, &service.InputError{Problems: []string{err.Error()}}
	}

	if params.Limit <= 0 {
		params.Limit = 20
	}

	filter, err := parseHistoryFilter(url.Values{
		"child":     {params.Child},
		"meal_type": {params.MealType},
		"from":      {params.StartDate},
		"to":        {params.EndDate},
	})
	if err != nil {
		return nil, &service.InputError{Problems: []string{err.Error()}}
	}

	view, err := s.meals.History(ctx, filter)
	if err != nil {
		return nil, err
	}

	meals := view.Events
	if len(meals) > params.Limit {
		meals = meals[:params.Limit]
	}
	return s.createJSONResponse(meals)
}

func (s *MealLogServer) handleRecommendTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RecommendParams
	if err := extractParams(req, &params); err != nil {
		return nil, &service.InputError{Problems: []string{err.Error()}}
	}

	foods, err := s.meals.Recommend(ctx, params.Child, params.MealType)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(foods)
}

func (s *MealLogServer) handleSuggestTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RecommendParams
	if err := extractParams(req, &params); err != nil {
		return nil, &service.InputError{Problems: []string{err.Error()}}
	}

	suggestion, err := s.meals.Suggest(ctx, params.Child, params.MealType)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(suggestion)
}

func (s *MealLogServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
