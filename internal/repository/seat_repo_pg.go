package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
)

// SeatRepository is the seat inventory store. ReserveSeats is all-or-nothing:
// either every requested seat flips to reserved for the booking or none do.
type SeatRepository interface {
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	ReserveSeats(ctx context.Context, flightID int64, seatNumbers []string, bookingID string) error
	ReleaseSeats(ctx context.Context, flightID int64, seatNumbers []string) error
}

type PGSeatRepository struct {
	db *pgxpool.Pool
}

func NewSeatRepository(db *pgxpool.Pool) SeatRepository {
	return &PGSeatRepository{db: db}
}

func (r *PGSeatRepository) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `SELECT flight_id, seat_number, cabin_class, price_cents, is_reserved, COALESCE(reserved_by_booking_id, '')
		FROM seat_inventory WHERE flight_id=$1 ORDER BY cabin_class, seat_number`, flightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.FlightID, &s.SeatNumber, &s.CabinClass, &s.PriceCents, &s.IsReserved, &s.BookingID); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (r *PGSeatRepository) ReserveSeats(ctx context.Context, flightID int64, seatNumbers []string, bookingID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `UPDATE seat_inventory SET is_reserved=true, reserved_by_booking_id=$3
		WHERE flight_id=$1 AND seat_number = ANY($2) AND is_reserved=false`, flightID, seatNumbers, bookingID)
	if err != nil {
		return err
	}
	if int(res.RowsAffected()) != len(seatNumbers) {
		// Some seat is missing or already owned by another booking. The
		// rollback undoes the partial update, keeping the reserve atomic.
		return fmt.Errorf("seats unavailable on flight %d: %w", flightID, domain.ErrConflict)
	}

	if err := recomputeSeatsLeft(ctx, tx, flightID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGSeatRepository) ReleaseSeats(ctx context.Context, flightID int64, seatNumbers []string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Releasing an already-free seat is a no-op, so no affected-row check.
	if _, err := tx.Exec(ctx, `UPDATE seat_inventory SET is_reserved=false, reserved_by_booking_id=NULL
		WHERE flight_id=$1 AND seat_number = ANY($2)`, flightID, seatNumbers); err != nil {
		return err
	}

	if err := recomputeSeatsLeft(ctx, tx, flightID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func recomputeSeatsLeft(ctx context.Context, tx pgx.Tx, flightID int64) error {
	_, err := tx.Exec(ctx, `UPDATE flights
		SET seats_left = (SELECT count(*) FROM seat_inventory WHERE flight_id=$1 AND is_reserved=false),
		    updated_at = now()
		WHERE id=$1`, flightID)
	return err
}

var _ SeatRepository = (*PGSeatRepository)(nil)
