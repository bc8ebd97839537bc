package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"venuebook/internal/model"
)

const reservationColumns = `id, event_date, event_day, event_time, block_id, block_name, block_start, block_end,
	customer_name, customer_phone, customer_email, beneficiary_name, beneficiary_age, package_id,
	price_base, price_food, price_extras, price_theme, price_rest_day_fee, price_total,
	status, payment_status, comments, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID, &r.EventDate, &r.EventDay, &r.EventTime,
		&r.Block.ID, &r.Block.Name, &r.Block.StartTime, &r.Block.EndTime,
		&r.Customer.Name, &r.Customer.Phone, &r.Customer.Email,
		&r.Beneficiary.Name, &r.Beneficiary.Age, &r.PackageID,
		&r.Pricing.Base, &r.Pricing.Food, &r.Pricing.Extras, &r.Pricing.Theme, &r.Pricing.RestDayFee, &r.Pricing.Total,
		&r.Status, &r.PaymentStatus, &r.Comments, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// CreateReservation inserts a reservation. A live reservation for the same
// event day and block makes the insert fail with model.ErrSlotUnavailable.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventDate.UTC(), r.EventDay, r.EventTime,
		r.Block.ID, r.Block.Name, r.Block.StartTime, r.Block.EndTime,
		r.Customer.Name, r.Customer.Phone, r.Customer.Email,
		r.Beneficiary.Name, r.Beneficiary.Age, r.PackageID,
		r.Pricing.Base, r.Pricing.Food, r.Pricing.Extras, r.Pricing.Theme, r.Pricing.RestDayFee, r.Pricing.Total,
		r.Status, r.PaymentStatus, r.Comments, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("block %s on %s: %w", r.Block.ID, r.EventDay, model.ErrSlotUnavailable)
	}
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return reservationOrNotFound(row, id)
}

// GetReservationForCustomer returns a reservation only when it belongs to email.
func (db *DB) GetReservationForCustomer(ctx context.Context, id, email string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND customer_email = ? COLLATE NOCASE`,
		id, email,
	)
	return reservationOrNotFound(row, id)
}

func reservationOrNotFound(row *sql.Row, id string) (*model.Reservation, error) {
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// UpdateReservationStatus moves a reservation from one status to another.
// The update only applies if the stored status still equals from.
func (db *DB) UpdateReservationStatus(ctx context.Context, id string, from, to model.ReservationStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("reservation %s: %w", id, model.ErrSlotUnavailable)
	}
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reservation %s is no longer %s: %w", id, from, model.ErrInvalidTransition)
	}
	return nil
}

// UpdatePaymentStatus sets the payment status of a reservation.
func (db *DB) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET payment_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// ListActiveReservationsOnDay returns non-cancelled reservations for a venue-local day.
func (db *DB) ListActiveReservationsOnDay(ctx context.Context, day string) ([]model.Reservation, error) {
	return db.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE event_day = ? AND status != ?
		ORDER BY event_date`,
		day, model.StatusCancelled,
	)
}

// ListReservationsByCustomer returns a customer's reservations, latest event first.
func (db *DB) ListReservationsByCustomer(ctx context.Context, email string) ([]model.Reservation, error) {
	return db.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE customer_email = ? COLLATE NOCASE
		ORDER BY event_date DESC`,
		email,
	)
}

// ListReservationsByDayRange returns reservations with event_day in [fromDay, toDay].
// An empty status matches every status.
func (db *DB) ListReservationsByDayRange(ctx context.Context, fromDay, toDay string, status model.ReservationStatus) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE event_day >= ? AND event_day <= ?`
	args := []any{fromDay, toDay}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY event_date, block_start`
	return db.queryReservations(ctx, q, args...)
}

func (db *DB) queryReservations(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	reservations := []model.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}
