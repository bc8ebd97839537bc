package export

import (
	"fmt"
	"io"

	"venuebook/internal/model"
)

var reservationColumns = []string{
	"ID", "Event day", "Event time", "Block",
	"Customer", "Phone", "Email", "Beneficiary", "Age", "Package",
	"Base", "Food", "Extras", "Theme", "Rest day fee", "Total",
	"Status", "Payment", "Comments", "Created",
}

// WriteReservations writes a workbook with one row per reservation and a
// summary sheet of counts and revenue per status.
func WriteReservations(out io.Writer, reservations []model.Reservation, fromDay, toDay string) error {
	w := newSheetWriter()
	defer w.Close()

	if err := w.AddSheet("Reservations"); err != nil {
		return err
	}
	if err := w.WriteHeader(reservationColumns); err != nil {
		return err
	}
	for _, r := range reservations {
		row := []any{
			r.ID, r.EventDay, r.EventTime, r.Block.Label(),
			r.Customer.Name, r.Customer.Phone, r.Customer.Email, r.Beneficiary.Name, r.Beneficiary.Age, r.PackageID,
			r.Pricing.Base, r.Pricing.Food, r.Pricing.Extras, r.Pricing.Theme, r.Pricing.RestDayFee, r.Pricing.Total,
			string(r.Status), string(r.PaymentStatus), r.Comments, r.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}

	if err := w.AddSheet("Summary"); err != nil {
		return err
	}
	if err := w.WriteRow([]any{"Period", fmt.Sprintf("%s - %s", fromDay, toDay)}); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Status", "Count", "Total"}); err != nil {
		return err
	}
	counts := make(map[model.ReservationStatus]int)
	totals := make(map[model.ReservationStatus]int64)
	for _, r := range reservations {
		counts[r.Status]++
		totals[r.Status] += r.Pricing.Total
	}
	for _, s := range []model.ReservationStatus{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled} {
		if err := w.WriteRow([]any{string(s), counts[s], totals[s]}); err != nil {
			return err
		}
	}

	if err := w.Save(out); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
