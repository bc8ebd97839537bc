// Package api exposes the catalog, schedule, availability and reservation
// services over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"venuebook/internal/availability"
	"venuebook/internal/catalog"
	"venuebook/internal/model"
	"venuebook/internal/reservation"
	"venuebook/internal/schedule"
)

// DefaultMaxCalendarDays caps the span of one calendar request.
const DefaultMaxCalendarDays = 90

// Options configures the HTTP layer.
type Options struct {
	Port            int
	APIKey          string
	JWTSecret       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxCalendarDays int
	Location        *time.Location
	Limiter         *RateLimiter
}

// Services are the domain services behind the routes.
type Services struct {
	Catalog      *catalog.Service
	Schedules    *schedule.Service
	Availability *availability.Resolver
	Reservations *reservation.Ledger
}

type HTTPServer struct {
	server   *http.Server
	svc      Services
	opts     Options
	loc      *time.Location
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHTTPServer(opts Options, svc Services, logger *zerolog.Logger) *HTTPServer {
	if opts.MaxCalendarDays <= 0 {
		opts.MaxCalendarDays = DefaultMaxCalendarDays
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &HTTPServer{
		svc:      svc,
		opts:     opts,
		loc:      loc,
		validate: newValidator(),
		log:      logger.With().Str("component", "api").Logger(),
	}

	var handler http.Handler = s.routes()
	handler = s.authenticate(handler)
	if opts.Limiter != nil {
		handler = opts.Limiter.Middleware(handler)
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/time-blocks", s.handleListTimeBlocks)
	mux.HandleFunc("POST /api/time-blocks", s.requireAdmin(s.handleCreateTimeBlock))
	mux.HandleFunc("GET /api/time-blocks/overlap", s.handleTimeBlockOverlap)
	mux.HandleFunc("GET /api/time-blocks/{id}", s.handleGetTimeBlock)
	mux.HandleFunc("PATCH /api/time-blocks/{id}", s.requireAdmin(s.handleUpdateTimeBlock))
	mux.HandleFunc("DELETE /api/time-blocks/{id}", s.requireAdmin(s.handleDeleteTimeBlock))

	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("GET /api/schedules/{day}", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/schedules/{day}", s.requireAdmin(s.handleSetSchedule))
	mux.HandleFunc("PUT /api/special-dates/{date}", s.requireAdmin(s.handleSetSpecialDate))
	mux.HandleFunc("DELETE /api/special-dates/{date}", s.requireAdmin(s.handleRemoveSpecialDate))

	mux.HandleFunc("GET /api/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/availability/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)

	mux.HandleFunc("POST /api/reservations", s.requireUser(s.handleCreateReservation))
	mux.HandleFunc("GET /api/reservations", s.requireAdmin(s.handleListReservations))
	mux.HandleFunc("GET /api/reservations/mine", s.requireUser(s.handleMyReservations))
	mux.HandleFunc("GET /api/reservations/export", s.requireAdmin(s.handleExportReservations))
	mux.HandleFunc("GET /api/reservations/{id}", s.requireUser(s.handleGetReservation))
	mux.HandleFunc("POST /api/reservations/{id}/cancel", s.requireUser(s.handleCancelReservation))
	mux.HandleFunc("POST /api/reservations/{id}/status", s.requireAdmin(s.handleReservationStatus))
	mux.HandleFunc("POST /api/reservations/{id}/payment", s.requireAdmin(s.handleReservationPayment))

	return mux
}

// Handler returns the fully wrapped handler; used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrSlotUnavailable),
		errors.Is(err, model.ErrAlreadyCancelled),
		errors.Is(err, model.ErrCancellationWindow),
		errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a JSON body and runs struct validation on it.
func (s *HTTPServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// parseDay reads a YYYY-MM-DD value as midnight in the venue location.
func (s *HTTPServer) parseDay(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, model.Invalid(name, "is required")
	}
	t, err := time.ParseInLocation(model.DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, model.Invalid(name, "invalid format; expected YYYY-MM-DD")
	}
	return t, nil
}

// parseInstant accepts RFC3339 or a bare YYYY-MM-DD in the venue location.
func (s *HTTPServer) parseInstant(name, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return s.parseDay(name, value)
}
