package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentOverdue PaymentStatus = "overdue"
)

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// Valid reports whether s is one of the four known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal is true for cancelled and completed reservations.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition checks the reservation state machine.
func CanTransition(from, to ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentPartial, PaymentOverdue:
		return true
	}
	return false
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Beneficiary is the person the event is held for (e.g. the birthday child).
type Beneficiary struct {
	Name string `json:"name,omitempty"`
	Age  int    `json:"age,omitempty"`
}

// Pricing is the breakdown supplied by the pricing calculator.
// Amounts are in the venue currency's minor units.
type Pricing struct {
	Base       int64 `json:"base"`
	Food       int64 `json:"food"`
	Extras     int64 `json:"extras"`
	Theme      int64 `json:"theme"`
	RestDayFee int64 `json:"rest_day_fee"`
	Total      int64 `json:"total"`
}

// Sum adds up all components except Total.
func (p Pricing) Sum() int64 {
	return p.Base + p.Food + p.Extras + p.Theme + p.RestDayFee
}

// EventBlock is the booked block. ID is the durable reference; the rest is a snapshot
// taken at booking time for display.
type EventBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Reservation struct {
	ID            string            `json:"id"`
	EventDate     time.Time         `json:"event_date"`
	EventDay      string            `json:"event_day"` // YYYY-MM-DD in venue time
	EventTime     string            `json:"event_time"`
	Block         EventBlock        `json:"event_block"`
	Customer      Customer          `json:"customer"`
	Beneficiary   Beneficiary       `json:"beneficiary"`
	PackageID     string            `json:"package_id,omitempty"`
	Pricing       Pricing           `json:"pricing"`
	Status        ReservationStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Comments      string            `json:"comments,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Label is the form used in exports, e.g. "Morning 10:00-14:00".
func (b EventBlock) Label() string {
	if b.StartTime == "" {
		return b.Name
	}
	return fmt.Sprintf("%s %s-%s", b.Name, b.StartTime, b.EndTime)
}

// HoursUntil returns the hours between now and the event; negative once it has passed.
func (r *Reservation) HoursUntil(now time.Time) float64 {
	return r.EventDate.Sub(now).Hours()
}
