package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"venuebook/internal/export"
	"venuebook/internal/metrics"
	"venuebook/internal/model"
	"venuebook/internal/reservation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reservationRequest struct {
	EventDate  string `json:"event_date" validate:"required"`
	EventTime  string `json:"event_time" validate:"omitempty,max=5"`
	EventBlock struct {
		ID   string `json:"id"`
		Name string `json:"name" validate:"max=50"`
	} `json:"event_block"`
	Customer struct {
		Name  string `json:"name" validate:"required,max=100"`
		Phone string `json:"phone" validate:"max=30"`
		Email string `json:"email" validate:"omitempty,email"`
	} `json:"customer"`
	Beneficiary struct {
		Name string `json:"name" validate:"max=100"`
		Age  int    `json:"age" validate:"gte=0,lte=120"`
	} `json:"beneficiary"`
	PackageID     string        `json:"package_id" validate:"max=64"`
	Pricing       model.Pricing `json:"pricing"`
	Status        string        `json:"status" validate:"omitempty,oneof=pending confirmed"`
	PaymentStatus string        `json:"payment_status" validate:"omitempty,oneof=pending paid partial overdue"`
	Comments      string        `json:"comments" validate:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid partial overdue"`
}

// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_create")
	p, _ := principalFrom(r.Context())

	var req reservationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	eventDate, err := s.parseInstant("event_date", req.EventDate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	email := strings.TrimSpace(req.Customer.Email)
	if !p.IsAdmin() {
		// Customers book for themselves.
		if email != "" && !strings.EqualFold(email, p.Email) {
			writeError(w, http.StatusForbidden, "customer.email must match the authenticated user")
			return
		}
		email = p.Email
	}

	res, err := s.svc.Reservations.Create(r.Context(), reservation.CreateRequest{
		EventDate:     eventDate,
		EventTime:     req.EventTime,
		BlockID:       req.EventBlock.ID,
		BlockName:     req.EventBlock.Name,
		Customer:      model.Customer{Name: req.Customer.Name, Phone: req.Customer.Phone, Email: email},
		Beneficiary:   model.Beneficiary{Name: req.Beneficiary.Name, Age: req.Beneficiary.Age},
		PackageID:     req.PackageID,
		Pricing:       req.Pricing,
		Status:        model.ReservationStatus(req.Status),
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
		Comments:      req.Comments,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/reservations/mine
func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_mine")
	p, _ := principalFrom(r.Context())
	list, err := s.svc.Reservations.ListForCustomer(r.Context(), p.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// GET /api/reservations/{id}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_get")
	p, _ := principalFrom(r.Context())
	var (
		res *model.Reservation
		err error
	)
	if p.IsAdmin() {
		res, err = s.svc.Reservations.Get(r.Context(), r.PathValue("id"))
	} else {
		res, err = s.svc.Reservations.GetForCustomer(r.Context(), r.PathValue("id"), p.Email)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/reservations/{id}/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_cancel")
	p, _ := principalFrom(r.Context())
	var (
		res *model.Reservation
		err error
	)
	if p.IsAdmin() {
		res, err = s.svc.Reservations.Transition(r.Context(), r.PathValue("id"), model.StatusCancelled)
	} else {
		res, err = s.svc.Reservations.Cancel(r.Context(), r.PathValue("id"), p.Email)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/reservations/{id}/status
func (s *HTTPServer) handleReservationStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_status")
	var req statusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.Transition(r.Context(), r.PathValue("id"), model.ReservationStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/reservations/{id}/payment
func (s *HTTPServer) handleReservationPayment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_payment")
	var req paymentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.SetPaymentStatus(r.Context(), r.PathValue("id"), model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/reservations?from=YYYY-MM-DD&to=YYYY-MM-DD&status=confirmed
func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_list")
	list, ok := s.listRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// GET /api/reservations/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_export")
	list, ok := s.listRange(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, list, q.Get("from"), q.Get("to")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reservations_%s_%s.xlsx"`, q.Get("from"), q.Get("to")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) listRange(w http.ResponseWriter, r *http.Request) ([]model.Reservation, bool) {
	q := r.URL.Query()
	from, err := s.parseDay("from", q.Get("from"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	to, err := s.parseDay("to", q.Get("to"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	list, err := s.svc.Reservations.ListByDateRange(r.Context(), from, to, model.ReservationStatus(q.Get("status")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return list, true
}
