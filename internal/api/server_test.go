package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/internal/availability"
	"venuebook/internal/catalog"
	"venuebook/internal/db"
	"venuebook/internal/model"
	"venuebook/internal/reservation"
	"venuebook/internal/schedule"
)

const (
	testAPIKey    = "valid-key"
	testJWTSecret = "test-secret"
)

// testNow is Monday 2026-10-19 09:00 UTC.
var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type ErrorResponse struct {
	Error string `json:"error"`
}

type testServer struct {
	handler http.Handler
	db      *db.DB
	morning *model.TimeBlock
	evening *model.TimeBlock
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	database, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	logger := zerolog.New(io.Discard)
	cat := catalog.NewService(database, &logger)
	schedules := schedule.NewService(database, time.UTC, &logger)
	resolver := availability.NewResolver(schedules, database, time.UTC, &logger)
	ledger := reservation.NewLedger(database, resolver, time.UTC, &logger,
		reservation.WithClock(func() time.Time { return testNow }))

	ts := &testServer{db: database}
	ts.morning, err = cat.Create(ctx, "Morning", "10:00", "14:00", true)
	require.NoError(t, err)
	ts.evening, err = cat.Create(ctx, "Evening", "16:00", "20:00", true)
	require.NoError(t, err)
	for day := 0; day <= 6; day++ {
		_, err := schedules.SetSchedule(ctx, day, []string{ts.morning.ID, ts.evening.ID}, day == 0, 500)
		require.NoError(t, err)
	}

	server := NewHTTPServer(Options{
		APIKey:    testAPIKey,
		JWTSecret: testJWTSecret,
		Location:  time.UTC,
	}, Services{
		Catalog:      cat,
		Schedules:    schedules,
		Availability: resolver,
		Reservations: ledger,
	}, &logger)
	ts.handler = server.Handler()
	return ts
}

type authFunc func(*http.Request)

func asAdmin(r *http.Request) { r.Header.Set("X-Api-Key", testAPIKey) }

func asCustomer(t *testing.T, email string) authFunc {
	t.Helper()
	token, err := IssueToken(testJWTSecret, email, RoleCustomer, time.Hour)
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func anonymous(*http.Request) {}

func (ts *testServer) do(t *testing.T, method, path string, body any, auth authFunc) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuthentication(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		auth       authFunc
		wantStatus int
	}{
		{
			name:       "public catalog read",
			method:     http.MethodGet,
			path:       "/api/time-blocks",
			auth:       anonymous,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong api key",
			method:     http.MethodGet,
			path:       "/api/time-blocks",
			auth:       func(r *http.Request) { r.Header.Set("X-Api-Key", "nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage bearer token",
			method:     http.MethodGet,
			path:       "/api/reservations/mine",
			auth:       func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "anonymous booking",
			method:     http.MethodGet,
			path:       "/api/reservations/mine",
			auth:       anonymous,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "customer cannot edit catalog",
			method:     http.MethodPost,
			path:       "/api/time-blocks",
			body:       map[string]string{"name": "Late", "start_time": "21:00", "end_time": "23:00"},
			auth:       asCustomer(t, "ana@example.com"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "customer cannot list all reservations",
			method:     http.MethodGet,
			path:       "/api/reservations?from=2026-10-01&to=2026-10-31",
			auth:       asCustomer(t, "ana@example.com"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin lists reservations",
			method:     http.MethodGet,
			path:       "/api/reservations?from=2026-10-01&to=2026-10-31",
			auth:       asAdmin,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body, tt.auth)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestTimeBlockEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/time-blocks",
		map[string]string{"name": "Late", "start_time": "21:00", "end_time": "23:30"}, asAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	late := decode[model.TimeBlock](t, rec)
	assert.Equal(t, 2.5, late.Duration)
	assert.True(t, late.IsActive)

	rec = ts.do(t, http.MethodPost, "/api/time-blocks",
		map[string]string{"name": "Broken", "start_time": "15:00", "end_time": "13:00"}, asAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/time-blocks",
		map[string]string{"start_time": "15:00", "end_time": "16:00"}, asAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "name")

	rec = ts.do(t, http.MethodGet, "/api/time-blocks/overlap?start=13:00&end=15:00", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["overlaps"])

	rec = ts.do(t, http.MethodGet, "/api/time-blocks/overlap?start=14:00&end=16:00", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["overlaps"])

	rec = ts.do(t, http.MethodPatch, "/api/time-blocks/"+late.ID, map[string]string{"name": "Night"}, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Night", decode[model.TimeBlock](t, rec).Name)

	rec = ts.do(t, http.MethodDelete, "/api/time-blocks/"+late.ID, nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["deactivated"])

	rec = ts.do(t, http.MethodDelete, "/api/time-blocks/"+late.ID, nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["deactivated"])

	rec = ts.do(t, http.MethodGet, "/api/time-blocks", nil, anonymous)
	list := decode[map[string][]model.TimeBlock](t, rec)["time_blocks"]
	assert.Len(t, list, 2)

	rec = ts.do(t, http.MethodGet, "/api/time-blocks?include_inactive=true", nil, anonymous)
	list = decode[map[string][]model.TimeBlock](t, rec)["time_blocks"]
	assert.Len(t, list, 3)

	rec = ts.do(t, http.MethodGet, "/api/time-blocks/missing", nil, anonymous)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/schedules/0", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	sunday := decode[model.DaySchedule](t, rec)
	assert.True(t, sunday.IsRestDay)
	assert.EqualValues(t, 500, sunday.RestDayFee)
	assert.Len(t, sunday.Blocks, 2)

	rec = ts.do(t, http.MethodGet, "/api/schedules/7", nil, anonymous)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/schedules/3",
		map[string]any{"block_ids": []string{"ghost"}, "is_rest_day": false}, asAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/schedules/3",
		map[string]any{"block_ids": []string{ts.evening.ID}, "is_rest_day": false, "rest_day_fee": 300}, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	wed := decode[model.DaySchedule](t, rec)
	assert.Equal(t, []string{ts.evening.ID}, wed.BlockIDs)
	assert.Zero(t, wed.RestDayFee)

	rec = ts.do(t, http.MethodPut, "/api/special-dates/2026-12-25",
		map[string]any{"block_ids": []string{}, "is_blocked": true, "block_reason": "Christmas"}, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/availability/resolve?date=2026-12-25", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[availability.Result](t, rec)
	assert.True(t, res.IsBlocked)
	assert.Equal(t, "Christmas", res.BlockReason)
	assert.Empty(t, res.Blocks)

	rec = ts.do(t, http.MethodDelete, "/api/special-dates/2026-12-25", nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/special-dates/2026-12-25", nil, asAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/schedules", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]model.DaySchedule](t, rec)["schedules"], 7)
}

func TestCalendar_Validation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing start",
			query:      "end=2026-10-25",
			wantStatus: http.StatusBadRequest,
			wantError:  "start: is required",
		},
		{
			name:       "bad end format",
			query:      "start=2026-10-20&end=25-10-2026",
			wantStatus: http.StatusBadRequest,
			wantError:  "end: invalid format; expected YYYY-MM-DD",
		},
		{
			name:       "start after end",
			query:      "start=2026-10-25&end=2026-10-20",
			wantStatus: http.StatusBadRequest,
			wantError:  "start: must be before or equal to end",
		},
		{
			name:       "range too long",
			query:      "start=2026-01-01&end=2026-04-01",
			wantStatus: http.StatusBadRequest,
			wantError:  "end: date range exceeds maximum of 90 days",
		},
		{
			name:       "exactly ninety days",
			query:      "start=2026-01-01&end=2026-03-31",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/calendar?"+tt.query, nil, anonymous)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode[ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestCalendar_ReflectsBookings(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"event_date":  "2026-10-20",
		"event_block": map[string]string{"id": ts.morning.ID},
		"customer":    map[string]string{"name": "Ana"},
	}, asCustomer(t, "ana@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/calendar?start=2026-10-20&end=2026-10-21", nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	cal := decode[CalendarResponse](t, rec)
	assert.Equal(t, "2026-10-20", cal.Start)
	require.Len(t, cal.Days, 2)
	require.Len(t, cal.Days["2026-10-20"].Slots, 1)
	assert.Equal(t, ts.evening.ID, cal.Days["2026-10-20"].Slots[0].ID)
	assert.Len(t, cal.Days["2026-10-21"].Slots, 2)

	rec = ts.do(t, http.MethodGet, "/api/availability?date=2026-10-20&block_id="+ts.morning.ID, nil, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[availability.Check](t, rec).Available)
}
