package api

import (
	"math"
	"net/http"
	"time"

	"venuebook/internal/metrics"
	"venuebook/internal/model"
)

type calendarEntry struct {
	Available bool              `json:"available"`
	Slots     []model.TimeBlock `json:"slots"`
	IsRestDay bool              `json:"is_rest_day"`
}

// CalendarResponse is keyed by YYYY-MM-DD; JSON object keys sort by date.
type CalendarResponse struct {
	Start string                   `json:"start"`
	End   string                   `json:"end"`
	Days  map[string]calendarEntry `json:"days"`
}

// GET /api/availability?date=YYYY-MM-DD&block_id=<id>
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	date, err := s.parseDay("date", r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	check, err := s.svc.Availability.IsAvailable(r.Context(), date, r.URL.Query().Get("block_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// GET /api/availability/resolve?date=YYYY-MM-DD
func (s *HTTPServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_resolve")
	date, err := s.parseDay("date", r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.Availability.Resolve(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/calendar?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar")
	start, end, err := s.parseRange(r, "start", "end")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	days, err := s.svc.Availability.Calendar(r.Context(), start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := CalendarResponse{
		Start: model.DateKey(start),
		End:   model.DateKey(end),
		Days:  make(map[string]calendarEntry, len(days)),
	}
	for _, d := range days {
		resp.Days[d.Date] = calendarEntry{Available: d.Available, Slots: d.Slots, IsRestDay: d.IsRestDay}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseRange reads an inclusive day range capped at MaxCalendarDays.
func (s *HTTPServer) parseRange(r *http.Request, startName, endName string) (start, end time.Time, err error) {
	q := r.URL.Query()
	if start, err = s.parseDay(startName, q.Get(startName)); err != nil {
		return
	}
	if end, err = s.parseDay(endName, q.Get(endName)); err != nil {
		return
	}
	if start.After(end) {
		err = model.Invalid(startName, "must be before or equal to %s", endName)
		return
	}
	days := int(math.Round(end.Sub(start).Hours()/24)) + 1
	if days > s.opts.MaxCalendarDays {
		err = model.Invalid(endName, "date range exceeds maximum of %d days", s.opts.MaxCalendarDays)
	}
	return
}
