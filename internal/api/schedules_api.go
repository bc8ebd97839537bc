package api

import (
	"net/http"
	"strconv"

	"venuebook/internal/metrics"
	"venuebook/internal/model"
)

type scheduleRequest struct {
	BlockIDs   []string `json:"block_ids" validate:"dive,required"`
	IsRestDay  bool     `json:"is_rest_day"`
	RestDayFee int64    `json:"rest_day_fee" validate:"gte=0"`
}

type specialDateRequest struct {
	BlockIDs    []string `json:"block_ids" validate:"dive,required"`
	IsBlocked   bool     `json:"is_blocked"`
	BlockReason string   `json:"block_reason" validate:"max=200"`
}

func parseDayOfWeek(v string) (int, error) {
	day, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.Invalid("day_of_week", "must be a number between 0 and 6")
	}
	return day, nil
}

// GET /api/schedules
func (s *HTTPServer) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedules_list")
	schedules, err := s.svc.Schedules.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

// GET /api/schedules/{day}
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedules_get")
	day, err := parseDayOfWeek(r.PathValue("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sched, err := s.svc.Schedules.GetSchedule(r.Context(), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// PUT /api/schedules/{day}
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedules_set")
	day, err := parseDayOfWeek(r.PathValue("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req scheduleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sched, err := s.svc.Schedules.SetSchedule(r.Context(), day, req.BlockIDs, req.IsRestDay, req.RestDayFee)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// PUT /api/special-dates/{date}
func (s *HTTPServer) handleSetSpecialDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("special_dates_set")
	date, err := s.parseDay("date", r.PathValue("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req specialDateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sched, err := s.svc.Schedules.SetSpecialDate(r.Context(), date, req.BlockIDs, req.IsBlocked, req.BlockReason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// DELETE /api/special-dates/{date}
func (s *HTTPServer) handleRemoveSpecialDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("special_dates_remove")
	date, err := s.parseDay("date", r.PathValue("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sched, err := s.svc.Schedules.RemoveSpecialDate(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}
