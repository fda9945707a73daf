package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
)

// BookingRepository persists bookings and applies status transitions as
// compare-and-set updates: a transition whose guard no longer holds returns
// domain.ErrConflict, so a concurrent pay and expiry serialize per booking.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, emailFilter string) ([]domain.Booking, error)
	// MarkPaid and MarkFailed succeed only while the booking is FAILED, or
	// HELD with the hold deadline still ahead of now.
	MarkPaid(ctx context.Context, id, pnr, paymentRef string, now time.Time) (*domain.Booking, error)
	MarkFailed(ctx context.Context, id, paymentRef string, now time.Time) (*domain.Booking, error)
	// MarkCancelled succeeds only from HELD or FAILED.
	MarkCancelled(ctx context.Context, id string) (*domain.Booking, error)
	// MarkExpired flips a HELD booking past its deadline to EXPIRED and
	// reports whether this call won the transition.
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)
	// ExpireHeldBefore transitions every HELD booking past the deadline and
	// returns the bookings that were transitioned by this call.
	ExpireHeldBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
	PNRExists(ctx context.Context, pnr string) (bool, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, flight_id, contact_name, contact_email, COALESCE(contact_phone, ''), currency, total_cents, status, hold_expires_at, COALESCE(pnr, ''), COALESCE(payment_reference, ''), payment_attempts, created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `INSERT INTO bookings (id, flight_id, contact_name, contact_email, contact_phone, currency, total_cents, status, hold_expires_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		booking.ID, booking.FlightID, booking.ContactName, booking.ContactEmail, booking.ContactPhone,
		booking.Currency, booking.TotalCents, booking.Status, booking.HoldExpiresAt).
		Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	for _, p := range booking.Passengers {
		if _, err := tx.Exec(ctx, `INSERT INTO booking_passengers (booking_id, full_name, age, gender)
			VALUES ($1, $2, $3, NULLIF($4, ''))`, booking.ID, p.FullName, p.Age, p.Gender); err != nil {
			return err
		}
	}
	for _, s := range booking.Seats {
		if _, err := tx.Exec(ctx, `INSERT INTO booking_seats (booking_id, flight_id, seat_number, cabin_class, price_cents)
			VALUES ($1, $2, $3, $4, $5)`, booking.ID, booking.FlightID, s.SeatNumber, s.CabinClass, s.PriceCents); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) List(ctx context.Context, emailFilter string) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`
	args := []any{}
	if emailFilter != "" {
		query = `SELECT ` + bookingColumns + ` FROM bookings WHERE contact_email=$1 ORDER BY created_at DESC`
		args = append(args, emailFilter)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		if err := r.loadChildren(ctx, &bookings[i]); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

func (r *PGBookingRepository) MarkPaid(ctx context.Context, id, pnr, paymentRef string, now time.Time) (*domain.Booking, error) {
	return r.transition(ctx, id, `UPDATE bookings
		SET status=$2, pnr=$3, payment_reference=$4, payment_attempts=payment_attempts+1, updated_at=now()
		WHERE id=$1 AND (status=$5 OR (status=$6 AND hold_expires_at > $7))
		RETURNING `+bookingColumns,
		id, domain.BookingStatusPaid, pnr, paymentRef, domain.BookingStatusFailed, domain.BookingStatusHeld, now)
}

func (r *PGBookingRepository) MarkFailed(ctx context.Context, id, paymentRef string, now time.Time) (*domain.Booking, error) {
	return r.transition(ctx, id, `UPDATE bookings
		SET status=$2, payment_reference=$3, payment_attempts=payment_attempts+1, updated_at=now()
		WHERE id=$1 AND (status=$4 OR (status=$5 AND hold_expires_at > $6))
		RETURNING `+bookingColumns,
		id, domain.BookingStatusFailed, paymentRef, domain.BookingStatusFailed, domain.BookingStatusHeld, now)
}

func (r *PGBookingRepository) MarkCancelled(ctx context.Context, id string) (*domain.Booking, error) {
	return r.transition(ctx, id, `UPDATE bookings
		SET status=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($3)
		RETURNING `+bookingColumns,
		id, domain.BookingStatusCancelled, []string{string(domain.BookingStatusHeld), string(domain.BookingStatusFailed)})
}

func (r *PGBookingRepository) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE bookings SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3 AND hold_expires_at <= $4`,
		id, domain.BookingStatusExpired, domain.BookingStatusHeld, now)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) ExpireHeldBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `UPDATE bookings SET status=$1, updated_at=now()
		WHERE status=$2 AND hold_expires_at <= $3
		RETURNING `+bookingColumns,
		domain.BookingStatusExpired, domain.BookingStatusHeld, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range expired {
		if err := r.loadChildren(ctx, &expired[i]); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

func (r *PGBookingRepository) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr=$1)`, pnr).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) transition(ctx context.Context, id, query string, args ...any) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, query, args...)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the booking does not exist or its state guard failed;
			// distinguish for the caller.
			if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
				return nil, getErr
			}
			return nil, fmt.Errorf("booking %s: illegal transition: %w", id, domain.ErrConflict)
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) loadChildren(ctx context.Context, b *domain.Booking) error {
	rows, err := r.db.Query(ctx, `SELECT full_name, COALESCE(age, 0), COALESCE(gender, '')
		FROM booking_passengers WHERE booking_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	b.Passengers = b.Passengers[:0]
	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.FullName, &p.Age, &p.Gender); err != nil {
			return err
		}
		b.Passengers = append(b.Passengers, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	seatRows, err := r.db.Query(ctx, `SELECT seat_number, cabin_class, price_cents
		FROM booking_seats WHERE booking_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return err
	}
	defer seatRows.Close()
	b.Seats = b.Seats[:0]
	for seatRows.Next() {
		var s domain.SeatAssignment
		if err := seatRows.Scan(&s.SeatNumber, &s.CabinClass, &s.PriceCents); err != nil {
			return err
		}
		b.Seats = append(b.Seats, s)
	}
	return seatRows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.FlightID, &b.ContactName, &b.ContactEmail, &b.ContactPhone,
		&b.Currency, &b.TotalCents, &b.Status, &b.HoldExpiresAt, &b.PNR, &b.PaymentReference,
		&b.PaymentAttempts, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
