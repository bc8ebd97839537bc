package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/internal/model"
)

func booking(date, blockID string) map[string]any {
	return map[string]any{
		"event_date":  date,
		"event_block": map[string]string{"id": blockID},
		"customer":    map[string]string{"name": "Ana", "phone": "+15550100"},
		"pricing":     map[string]int64{"base": 1000, "food": 200},
	}
}

func TestCreateReservation(t *testing.T) {
	ts := setupTestServer(t)
	ana := asCustomer(t, "Ana@Example.com")

	rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-20", ts.morning.ID), ana)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Reservation](t, rec)
	assert.Equal(t, "ana@example.com", created.Customer.Email)
	assert.Equal(t, "2026-10-20", created.EventDay)
	assert.Equal(t, "10:00", created.EventTime)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.PaymentPending, created.PaymentStatus)
	assert.EqualValues(t, 1200, created.Pricing.Total)
	assert.Zero(t, created.Pricing.RestDayFee)

	t.Run("same block same day conflicts", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-20", ts.morning.ID), asCustomer(t, "bo@example.com"))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("booking by block name", func(t *testing.T) {
		body := booking("2026-10-20", "")
		body["event_block"] = map[string]string{"name": "evening"}
		rec := ts.do(t, http.MethodPost, "/api/reservations", body, ana)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, ts.evening.ID, decode[model.Reservation](t, rec).Block.ID)
	})

	t.Run("rest day adds the fee", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-25", ts.morning.ID), ana)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decode[model.Reservation](t, rec)
		assert.EqualValues(t, 500, res.Pricing.RestDayFee)
		assert.EqualValues(t, 1700, res.Pricing.Total)
	})

	t.Run("customer cannot book for someone else", func(t *testing.T) {
		body := booking("2026-10-21", ts.morning.ID)
		body["customer"] = map[string]string{"name": "Ana", "email": "other@example.com"}
		rec := ts.do(t, http.MethodPost, "/api/reservations", body, ana)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin books on behalf of a customer", func(t *testing.T) {
		body := booking("2026-10-21", ts.morning.ID)
		body["customer"] = map[string]string{"name": "Cy", "email": "cy@example.com"}
		body["status"] = "confirmed"
		rec := ts.do(t, http.MethodPost, "/api/reservations", body, asAdmin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decode[model.Reservation](t, rec)
		assert.Equal(t, "cy@example.com", res.Customer.Email)
		assert.Equal(t, model.StatusConfirmed, res.Status)
	})

	t.Run("admin must name the customer", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-22", ts.morning.ID), asAdmin)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "customer.email: is required", decode[ErrorResponse](t, rec).Error)
	})
}

func TestCreateReservation_Validation(t *testing.T) {
	ts := setupTestServer(t)
	ana := asCustomer(t, "ana@example.com")

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{
			name:   "missing customer name",
			mutate: func(b map[string]any) { b["customer"] = map[string]string{"phone": "1"} },
		},
		{
			name:   "bad event date",
			mutate: func(b map[string]any) { b["event_date"] = "20/10/2026" },
		},
		{
			name:   "beneficiary too old",
			mutate: func(b map[string]any) { b["beneficiary"] = map[string]any{"name": "Kid", "age": 200} },
		},
		{
			name:   "cannot create cancelled",
			mutate: func(b map[string]any) { b["status"] = "cancelled" },
		},
		{
			name:   "unknown field",
			mutate: func(b map[string]any) { b["venue"] = "elsewhere" },
		},
		{
			name:   "no block",
			mutate: func(b map[string]any) { b["event_block"] = map[string]string{} },
		},
		{
			name:   "negative price",
			mutate: func(b map[string]any) { b["pricing"] = map[string]int64{"base": -1} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := booking("2026-10-20", ts.morning.ID)
			tt.mutate(body)
			rec := ts.do(t, http.MethodPost, "/api/reservations", body, ana)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCustomerReservations(t *testing.T) {
	ts := setupTestServer(t)
	ana := asCustomer(t, "ana@example.com")
	bo := asCustomer(t, "bo@example.com")

	rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-20", ts.morning.ID), ana)
	require.Equal(t, http.StatusCreated, rec.Code)
	soon := decode[model.Reservation](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-27", ts.evening.ID), ana)
	require.Equal(t, http.StatusCreated, rec.Code)
	later := decode[model.Reservation](t, rec)

	rec = ts.do(t, http.MethodGet, "/api/reservations/mine", nil, ana)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[map[string][]model.Reservation](t, rec)["reservations"]
	require.Len(t, mine, 2)
	assert.Equal(t, later.ID, mine[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/reservations/mine", nil, bo)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]model.Reservation](t, rec)["reservations"])

	rec = ts.do(t, http.MethodGet, "/api/reservations/"+soon.ID, nil, bo)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/reservations/"+soon.ID, nil, ana)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/reservations/"+soon.ID, nil, asAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("inside the cancellation window", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations/"+soon.ID+"/cancel", nil, ana)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("someone else's reservation", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations/"+later.ID+"/cancel", nil, bo)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancel then cancel again", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations/"+later.ID+"/cancel", nil, ana)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, model.StatusCancelled, decode[model.Reservation](t, rec).Status)

		rec = ts.do(t, http.MethodPost, "/api/reservations/"+later.ID+"/cancel", nil, ana)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("cancelled slot is bookable again", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-27", ts.evening.ID), bo)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func TestAdminReservationLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/reservations", booking("2026-10-20", ts.morning.ID), asCustomer(t, "ana@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Reservation](t, rec).ID

	steps := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		check      func(t *testing.T, r model.Reservation)
	}{
		{
			name:       "unknown status",
			path:       "/status",
			body:       map[string]string{"status": "done"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "pending cannot complete",
			path:       "/status",
			body:       map[string]string{"status": "completed"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "confirm",
			path:       "/status",
			body:       map[string]string{"status": "confirmed"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r model.Reservation) {
				assert.Equal(t, model.StatusConfirmed, r.Status)
			},
		},
		{
			name:       "mark paid",
			path:       "/payment",
			body:       map[string]string{"payment_status": "paid"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r model.Reservation) {
				assert.Equal(t, model.PaymentPaid, r.PaymentStatus)
			},
		},
		{
			name:       "admin cancel still honours the window",
			path:       "/cancel",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "complete",
			path:       "/status",
			body:       map[string]string{"status": "completed"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, r model.Reservation) {
				assert.Equal(t, model.StatusCompleted, r.Status)
			},
		},
		{
			name:       "completed is final",
			path:       "/status",
			body:       map[string]string{"status": "confirmed"},
			wantStatus: http.StatusConflict,
		},
	}

	for _, step := range steps {
		rec := ts.do(t, http.MethodPost, "/api/reservations/"+id+step.path, step.body, asAdmin)
		require.Equal(t, step.wantStatus, rec.Code, "%s: %s", step.name, rec.Body.String())
		if step.check != nil {
			step.check(t, decode[model.Reservation](t, rec))
		}
	}

	rec = ts.do(t, http.MethodPost, "/api/reservations/missing/status", map[string]string{"status": "confirmed"}, asAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndExportReservations(t *testing.T) {
	ts := setupTestServer(t)
	ana := asCustomer(t, "ana@example.com")

	for _, date := range []string{"2026-10-20", "2026-10-21", "2026-11-02"} {
		rec := ts.do(t, http.MethodPost, "/api/reservations", booking(date, ts.morning.ID), ana)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/reservations?from=2026-10-01&to=2026-10-31", nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]model.Reservation](t, rec)["reservations"]
	require.Len(t, list, 2)
	assert.Equal(t, "2026-10-20", list[0].EventDay)

	rec = ts.do(t, http.MethodGet, "/api/reservations?from=2026-10-01&to=2026-10-31&status=confirmed", nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]model.Reservation](t, rec)["reservations"])

	rec = ts.do(t, http.MethodGet, "/api/reservations?from=2026-10-01&to=2026-10-31&status=bogus", nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/reservations?from=2026-10-01", nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/reservations/export?from=2026-10-01&to=2026-11-30", nil, asAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reservations_2026-10-01_2026-11-30.xlsx")
	// XLSX is a zip archive.
	assert.Equal(t, "PK", rec.Body.String()[:2])
}
