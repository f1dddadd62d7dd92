// internal/server/pages.go
package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kids-meal-log/internal/config"
	"kids-meal-log/internal/history"
	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/models"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

const notConfiguredMessage = "AI recommendations are not configured: set OPENAI_API_KEY and restart the server."

type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	r := &pageRenderer{pages: map[string]*template.Template{}}
	for _, name := range []string{"log", "history", "recommend"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// pageData feeds every page; each template reads the fields it needs.
type pageData struct {
	Title      string
	Active     string
	Flash      string
	Error      string
	Roster     config.RosterConfig
	Form       formValues
	History    *service.HistoryView
	From       string
	To         string
	MinDate    string
	MaxDate    string
	CSVLink    template.URL
	Suggestion *models.Suggestion
}

type formValues struct {
	Child     string
	MealType  string
	Food      string
	Percent   string
	CareGiver string
	Date      string
	Time      string
}

func (p *pageRenderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	var buf bytes.Buffer
	if err := p.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("page", name).Msg("Failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *MealLogServer) defaultLogForm() formValues {
	roster := s.meals.Roster()
	now := time.Now()
	return formValues{
		Child:     first(roster.Children),
		MealType:  first(roster.MealTypes),
		Food:      "Pepperoni Pizza",
		Percent:   "50",
		CareGiver: first(roster.CareGivers),
		Date:      now.Format(service.DateLayout),
		Time:      now.Format(service.TimeLayout),
	}
}

func (s *MealLogServer) handleLogPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "log", &pageData{
		Title:  "Log a Meal",
		Active: "log",
		Roster: s.meals.Roster(),
		Form:   s.defaultLogForm(),
	})
}

func (s *MealLogServer) handleLogSubmit(w http.ResponseWriter, r *http.Request) {
	data := &pageData{
		Title:  "Log a Meal",
		Active: "log",
		Roster: s.meals.Roster(),
	}

	if err := r.ParseForm(); err != nil {
		data.Form = s.defaultLogForm()
		data.Error = "Could not read the form."
		s.pages.render(w, r, http.StatusBadRequest, "log", data)
		return
	}

	form := formValues{
		Child:     r.PostFormValue("child_name"),
		MealType:  r.PostFormValue("meal_type"),
		Food:      r.PostFormValue("food"),
		Percent:   r.PostFormValue("amount_consumed"),
		CareGiver: r.PostFormValue("care_giver"),
		Date:      r.PostFormValue("date"),
		Time:      r.PostFormValue("time"),
	}
	data.Form = form

	percent, err := strconv.ParseFloat(form.Percent, 64)
	if err != nil {
		data.Error = "Percent eaten must be a number between 0 and 100."
		s.pages.render(w, r, http.StatusBadRequest, "log", data)
		return
	}

	_, err = s.meals.LogMeal(r.Context(), service.LogMealInput{
		Child:     form.Child,
		MealType:  form.MealType,
		Food:      form.Food,
		Percent:   percent,
		CareGiver: form.CareGiver,
		Date:      form.Date,
		Time:      form.Time,
	})
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		data.Error = err.Error()
		s.pages.render(w, r, http.StatusBadRequest, "log", data)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to log meal")
		data.Error = "Could not save the meal: " + err.Error()
		s.pages.render(w, r, http.StatusInternalServerError, "log", data)
		return
	}

	data.Flash = "Meal saved ✅"
	data.Form = s.defaultLogForm()
	s.pages.render(w, r, http.StatusOK, "log", data)
}

// parseHistoryFilter reads child, meal_type, from and to. "All" and "" both
// mean no filter.
func parseHistoryFilter(q url.Values) (models.HistoryFilter, error) {
	f := models.HistoryFilter{
		Child:    q.Get("child"),
		MealType: q.Get("meal_type"),
	}
	if f.Child == "All" {
		f.Child = ""
	}
	if f.MealType == "All" {
		f.MealType = ""
	}
	for _, bound := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(bound.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(service.DateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%s must be a date like 2006-01-02", bound.key)
		}
		*bound.dst = &t
	}
	return f, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(service.DateLayout)
}

func (s *MealLogServer) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	data := &pageData{
		Title:  "Meal History",
		Active: "history",
		Roster: s.meals.Roster(),
	}
	status := http.StatusOK

	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		data.Error = err.Error()
		status = http.StatusBadRequest
		filter.From, filter.To = nil, nil
	}

	view, err := s.meals.History(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load history")
		data.Error = "Could not load meals: " + err.Error()
		data.History = &service.HistoryView{}
		s.pages.render(w, r, http.StatusInternalServerError, "history", data)
		return
	}
	data.History = view

	// Observed bounds only constrain the date pickers; a range filters rows
	// once the user submits it.
	data.From, data.To = formatDate(filter.From), formatDate(filter.To)
	data.MinDate, data.MaxDate = formatDate(view.MinDate), formatDate(view.MaxDate)
	data.CSVLink = csvLink(filter)

	s.pages.render(w, r, status, "history", data)
}

// csvLink points the export at the same filter the page shows.
func csvLink(f models.HistoryFilter) template.URL {
	q := url.Values{}
	if f.Child != "" {
		q.Set("child", f.Child)
	}
	if f.MealType != "" {
		q.Set("meal_type", f.MealType)
	}
	if f.From != nil {
		q.Set("from", formatDate(f.From))
	}
	if f.To != nil {
		q.Set("to", formatDate(f.To))
	}
	link := "/history.csv"
	if len(q) > 0 {
		link += "?" + q.Encode()
	}
	return template.URL(link)
}

func (s *MealLogServer) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := s.meals.History(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load history")
		http.Error(w, "could not load meals", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := history.WriteCSV(&buf, view.Events); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", history.ExportFileName))
	_, _ = buf.WriteTo(w)
}

func (s *MealLogServer) handleRecommendPage(w http.ResponseWriter, r *http.Request) {
	roster := s.meals.Roster()
	s.pages.render(w, r, http.StatusOK, "recommend", &pageData{
		Title:  "AI Food Picker",
		Active: "recommend",
		Roster: roster,
		Form:   formValues{Child: first(roster.Children), MealType: first(roster.MealTypes)},
	})
}

func (s *MealLogServer) handleRecommendSubmit(w http.ResponseWriter, r *http.Request) {
	data := &pageData{
		Title:  "AI Food Picker",
		Active: "recommend",
		Roster: s.meals.Roster(),
		Form: formValues{
			Child:    r.PostFormValue("child_name"),
			MealType: r.PostFormValue("meal_type"),
		},
	}

	suggestion, err := s.meals.Suggest(r.Context(), data.Form.Child, data.Form.MealType)
	data.Suggestion = suggestion
	status := suggestionStatus(suggestion, err)
	switch {
	case err == nil:
	case errors.Is(err, narration.ErrNotConfigured):
		data.Error = notConfiguredMessage
	default:
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Suggestion failed")
		data.Error = err.Error()
	}

	s.pages.render(w, r, status, "recommend", data)
}

// suggestionStatus maps a Suggest result onto an HTTP status. Suggest only
// returns a suggestion alongside an error when narration failed.
func suggestionStatus(suggestion *models.Suggestion, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, narration.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case suggestion == nil:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
