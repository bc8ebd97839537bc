// Package reservation is the system of record for bookings: admission through
// the availability resolver, the cancellation policy and operator status changes.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"venuebook/internal/availability"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/model"
)

// DefaultCancellationWindow is how long before the event a customer may still cancel.
const DefaultCancellationWindow = 24 * time.Hour

type Store interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	GetReservationForCustomer(ctx context.Context, id, email string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, from, to model.ReservationStatus) error
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) error
	ListReservationsByCustomer(ctx context.Context, email string) ([]model.Reservation, error)
	ListReservationsByDayRange(ctx context.Context, fromDay, toDay string, status model.ReservationStatus) ([]model.Reservation, error)
}

type Availability interface {
	IsAvailable(ctx context.Context, date time.Time, blockID string) (*availability.Check, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload any) error
}

// Clock returns the current time.
type Clock func() time.Time

// CreateRequest is a booking as submitted by a customer or operator.
// Either BlockID or BlockName identifies the block; BlockID wins when both are set.
type CreateRequest struct {
	EventDate     time.Time
	EventTime     string
	BlockID       string
	BlockName     string
	Customer      model.Customer
	Beneficiary   model.Beneficiary
	PackageID     string
	Pricing       model.Pricing
	Status        model.ReservationStatus
	PaymentStatus model.PaymentStatus
	Comments      string
}

// StatusChange is the payload of status and payment events.
type StatusChange struct {
	ID            string                  `json:"id"`
	From          model.ReservationStatus `json:"from,omitempty"`
	To            model.ReservationStatus `json:"to,omitempty"`
	PaymentStatus model.PaymentStatus     `json:"payment_status,omitempty"`
	EventDay      string                  `json:"event_day"`
	BlockID       string                  `json:"block_id"`
	At            time.Time               `json:"at"`
}

type Ledger struct {
	store        Store
	availability Availability
	publisher    Publisher
	loc          *time.Location
	window       time.Duration
	now          Clock
	logger       zerolog.Logger
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.now = c }
}

func WithCancellationWindow(d time.Duration) Option {
	return func(l *Ledger) { l.window = d }
}

func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func NewLedger(store Store, avail Availability, loc *time.Location, logger *zerolog.Logger, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{
		store:        store,
		availability: avail,
		loc:          loc,
		window:       DefaultCancellationWindow,
		now:          time.Now,
		logger:       logger.With().Str("component", "reservation").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create admits a reservation after the resolver confirms the block is free on
// that date. The rest-day fee is taken from the schedule and the total is
// recomputed from the breakdown.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
	if err := validateCreate(&req); err != nil {
		metrics.IncReservationRejected("validation")
		return nil, err
	}

	block, check, err := l.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	pricing := req.Pricing
	pricing.RestDayFee = check.RestDayFee
	pricing.Total = pricing.Sum()

	eventTime := strings.TrimSpace(req.EventTime)
	if eventTime == "" {
		eventTime = block.StartTime
	}

	now := l.now().UTC()
	r := &model.Reservation{
		ID:        uuid.NewString(),
		EventDate: req.EventDate.UTC(),
		EventDay:  model.DateKey(req.EventDate.In(l.loc)),
		EventTime: eventTime,
		Block: model.EventBlock{
			ID:        block.ID,
			Name:      block.Name,
			StartTime: block.StartTime,
			EndTime:   block.EndTime,
		},
		Customer:      req.Customer,
		Beneficiary:   req.Beneficiary,
		PackageID:     req.PackageID,
		Pricing:       pricing,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		Comments:      req.Comments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := l.store.CreateReservation(ctx, r); err != nil {
		if errors.Is(err, model.ErrSlotUnavailable) {
			metrics.IncReservationRejected("conflict")
			l.logger.Warn().Str("event_day", r.EventDay).Str("block_id", block.ID).Msg("slot taken concurrently")
		}
		return nil, err
	}

	metrics.IncReservationCreated(string(r.Status))
	l.logger.Info().
		Str("reservation_id", r.ID).
		Str("event_day", r.EventDay).
		Str("block", block.Name).
		Str("customer", r.Customer.Email).
		Int64("total", r.Pricing.Total).
		Msg("reservation created")
	l.publish(ctx, events.TypeReservationCreated, r)
	return r, nil
}

// admit runs the availability check and returns the block being booked.
func (l *Ledger) admit(ctx context.Context, req CreateRequest) (*model.TimeBlock, *availability.Check, error) {
	check, err := l.availability.IsAvailable(ctx, req.EventDate, req.BlockID)
	if err != nil {
		return nil, nil, err
	}
	day := model.DateKey(req.EventDate.In(l.loc))

	var block *model.TimeBlock
	if req.BlockID != "" {
		if check.Available && len(check.MatchingBlocks) > 0 {
			block = &check.MatchingBlocks[0]
		}
	} else {
		for i := range check.MatchingBlocks {
			if strings.EqualFold(check.MatchingBlocks[i].Name, req.BlockName) {
				block = &check.MatchingBlocks[i]
				break
			}
		}
	}
	if block == nil {
		metrics.IncReservationRejected("slot_unavailable")
		ref := req.BlockID
		if ref == "" {
			ref = req.BlockName
		}
		return nil, nil, fmt.Errorf("block %s on %s: %w", ref, day, model.ErrSlotUnavailable)
	}
	return block, check, nil
}

func validateCreate(req *CreateRequest) error {
	if req.EventDate.IsZero() {
		return model.Invalid("event_date", "is required")
	}
	req.BlockID = strings.TrimSpace(req.BlockID)
	req.BlockName = strings.TrimSpace(req.BlockName)
	if req.BlockID == "" && req.BlockName == "" {
		return model.Invalid("event_block", "block id or name is required")
	}
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	if req.Customer.Email == "" {
		return model.Invalid("customer.email", "is required")
	}
	if req.Status == "" {
		req.Status = model.StatusPending
	}
	if req.Status != model.StatusPending && req.Status != model.StatusConfirmed {
		return model.Invalid("status", "new reservations must be pending or confirmed")
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = model.PaymentPending
	}
	if !req.PaymentStatus.Valid() {
		return model.Invalid("payment_status", "unknown value %q", req.PaymentStatus)
	}
	p := req.Pricing
	if p.Base < 0 || p.Food < 0 || p.Extras < 0 || p.Theme < 0 {
		return model.Invalid("pricing", "amounts must not be negative")
	}
	return nil
}

// Cancel cancels a customer's own reservation. It fails once the event is
// closer than the cancellation window.
func (l *Ledger) Cancel(ctx context.Context, id, requesterEmail string) (*model.Reservation, error) {
	r, err := l.store.GetReservationForCustomer(ctx, id, strings.TrimSpace(requesterEmail))
	if err != nil {
		return nil, err
	}
	return l.cancel(ctx, r)
}

func (l *Ledger) cancel(ctx context.Context, r *model.Reservation) (*model.Reservation, error) {
	switch r.Status {
	case model.StatusCancelled:
		return nil, fmt.Errorf("reservation %s: %w", r.ID, model.ErrAlreadyCancelled)
	case model.StatusCompleted:
		return nil, fmt.Errorf("reservation %s is completed: %w", r.ID, model.ErrInvalidTransition)
	}

	now := l.now()
	hours := r.HoursUntil(now)
	if hours < l.window.Hours() {
		return nil, fmt.Errorf("reservation %s starts in %.1f hours, cancellations close %.0f hours before: %w",
			r.ID, hours, l.window.Hours(), model.ErrCancellationWindow)
	}

	from := r.Status
	if err := l.store.UpdateReservationStatus(ctx, r.ID, from, model.StatusCancelled); err != nil {
		return nil, err
	}
	r.Status = model.StatusCancelled
	r.UpdatedAt = now.UTC()

	metrics.IncReservationCancelled()
	l.logger.Info().
		Str("reservation_id", r.ID).
		Str("event_day", r.EventDay).
		Float64("hours_until_event", hours).
		Msg("reservation cancelled")
	l.publish(ctx, events.TypeReservationCancelled, l.change(r, from))
	return r, nil
}

// Get returns a reservation by id.
func (l *Ledger) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return l.store.GetReservation(ctx, id)
}

// GetForCustomer returns a reservation only if it belongs to email.
func (l *Ledger) GetForCustomer(ctx context.Context, id, email string) (*model.Reservation, error) {
	return l.store.GetReservationForCustomer(ctx, id, strings.TrimSpace(email))
}

// ListForCustomer returns the customer's reservations, latest event first.
func (l *Ledger) ListForCustomer(ctx context.Context, email string) ([]model.Reservation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.Invalid("email", "is required")
	}
	return l.store.ListReservationsByCustomer(ctx, email)
}

// ListByDateRange returns reservations whose venue-local day lies in [from, to].
func (l *Ledger) ListByDateRange(ctx context.Context, from, to time.Time, status model.ReservationStatus) ([]model.Reservation, error) {
	if status != "" && !status.Valid() {
		return nil, model.Invalid("status", "unknown value %q", status)
	}
	fromDay := model.DateKey(from.In(l.loc))
	toDay := model.DateKey(to.In(l.loc))
	if fromDay > toDay {
		return nil, model.Invalid("from", "must not be after to")
	}
	return l.store.ListReservationsByDayRange(ctx, fromDay, toDay, status)
}

// Transition applies an operator status change. Moving to cancelled goes
// through the same policy as a customer cancellation.
func (l *Ledger) Transition(ctx context.Context, id string, to model.ReservationStatus) (*model.Reservation, error) {
	if !to.Valid() {
		return nil, model.Invalid("status", "unknown value %q", to)
	}
	r, err := l.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if to == model.StatusCancelled {
		return l.cancel(ctx, r)
	}
	if !model.CanTransition(r.Status, to) {
		return nil, fmt.Errorf("reservation %s: %s -> %s: %w", r.ID, r.Status, to, model.ErrInvalidTransition)
	}

	from := r.Status
	if err := l.store.UpdateReservationStatus(ctx, r.ID, from, to); err != nil {
		return nil, err
	}
	r.Status = to
	r.UpdatedAt = l.now().UTC()

	metrics.IncStatusTransition(string(to))
	l.logger.Info().
		Str("reservation_id", r.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("reservation status changed")
	l.publish(ctx, events.TypeReservationStatusChanged, l.change(r, from))
	return r, nil
}

// SetPaymentStatus records the payment state reported by the operator.
func (l *Ledger) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Reservation, error) {
	if !status.Valid() {
		return nil, model.Invalid("payment_status", "unknown value %q", status)
	}
	if err := l.store.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, err
	}
	r, err := l.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("reservation_id", id).Str("payment_status", string(status)).Msg("payment status changed")
	change := l.change(r, "")
	change.PaymentStatus = status
	l.publish(ctx, events.TypeReservationPaymentChanged, change)
	return r, nil
}

func (l *Ledger) change(r *model.Reservation, from model.ReservationStatus) StatusChange {
	c := StatusChange{
		ID:       r.ID,
		From:     from,
		EventDay: r.EventDay,
		BlockID:  r.Block.ID,
		At:       l.now().UTC(),
	}
	if from != "" {
		c.To = r.Status
	}
	return c
}

// publish forwards an event; the reservation is already stored, so failures are only logged.
func (l *Ledger) publish(ctx context.Context, eventType string, payload any) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishJSON(ctx, eventType, payload); err != nil {
		l.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event failed")
	}
}
