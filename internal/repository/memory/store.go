// Package memory provides an in-process implementation of the repository
// interfaces. It backs tests and demo environments that run without Postgres;
// the reservation semantics mirror the Postgres store, including atomic
// all-or-nothing seat reserves and compare-and-set status transitions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/repository"
)

type seatKey struct {
	flightID   int64
	seatNumber string
}

type Store struct {
	mu       sync.Mutex
	flights  map[int64]*domain.Flight
	seats    map[seatKey]*domain.Seat
	bookings map[string]*domain.Booking
	seq      int64
}

func NewStore() *Store {
	return &Store{
		flights:  make(map[int64]*domain.Flight),
		seats:    make(map[seatKey]*domain.Seat),
		bookings: make(map[string]*domain.Booking),
	}
}

// AddFlight registers a flight and its seat inventory. Seats without a price
// inherit the flight's base price. seats_left is derived from the inventory.
func (s *Store) AddFlight(flight domain.Flight, seats []domain.Seat) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if flight.ID == 0 {
		s.seq++
		flight.ID = s.seq
	}
	flight.SeatsTotal = len(seats)
	flight.SeatsLeft = len(seats)
	if flight.CreatedAt.IsZero() {
		flight.CreatedAt = time.Now()
	}
	flight.UpdatedAt = flight.CreatedAt
	s.flights[flight.ID] = &flight

	for _, seat := range seats {
		seat := seat
		seat.FlightID = flight.ID
		if seat.PriceCents == 0 {
			seat.PriceCents = flight.BasePriceCents
		}
		s.seats[seatKey{flight.ID, seat.SeatNumber}] = &seat
	}
	return flight.ID
}

func (s *Store) List(ctx context.Context) ([]domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flights := make([]domain.Flight, 0, len(s.flights))
	for _, f := range s.flights {
		flights = append(flights, *f)
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].DepartureTime.Before(flights[j].DepartureTime) })
	return flights, nil
}

func (s *Store) Search(ctx context.Context, origin, destination string, day time.Time) ([]domain.Flight, error) {
	all, _ := s.List(ctx)
	end := day.AddDate(0, 0, 1)
	matched := make([]domain.Flight, 0)
	for _, f := range all {
		if f.Origin == origin && f.Destination == destination &&
			!f.DepartureTime.Before(day) && f.DepartureTime.Before(end) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	out := *f
	return &out, nil
}

func (s *Store) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := make([]domain.Seat, 0)
	for key, seat := range s.seats {
		if key.flightID == flightID {
			seats = append(seats, *seat)
		}
	}
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].CabinClass != seats[j].CabinClass {
			return seats[i].CabinClass < seats[j].CabinClass
		}
		return seats[i].SeatNumber < seats[j].SeatNumber
	})
	return seats, nil
}

func (s *Store) ReserveSeats(ctx context.Context, flightID int64, seatNumbers []string, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every seat first so a conflict leaves nothing half-reserved.
	targets := make([]*domain.Seat, 0, len(seatNumbers))
	for _, num := range seatNumbers {
		seat, ok := s.seats[seatKey{flightID, num}]
		if !ok {
			return fmt.Errorf("seat %s on flight %d: %w", num, flightID, domain.ErrConflict)
		}
		if seat.IsReserved && seat.BookingID != bookingID {
			return fmt.Errorf("seat %s on flight %d already reserved: %w", num, flightID, domain.ErrConflict)
		}
		targets = append(targets, seat)
	}
	for _, seat := range targets {
		seat.IsReserved = true
		seat.BookingID = bookingID
	}
	s.recomputeSeatsLeft(flightID)
	return nil
}

func (s *Store) ReleaseSeats(ctx context.Context, flightID int64, seatNumbers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, num := range seatNumbers {
		if seat, ok := s.seats[seatKey{flightID, num}]; ok {
			seat.IsReserved = false
			seat.BookingID = ""
		}
	}
	s.recomputeSeatsLeft(flightID)
	return nil
}

func (s *Store) recomputeSeatsLeft(flightID int64) {
	flight, ok := s.flights[flightID]
	if !ok {
		return
	}
	left := 0
	for key, seat := range s.seats {
		if key.flightID == flightID && !seat.IsReserved {
			left++
		}
	}
	flight.SeatsLeft = left
	flight.UpdatedAt = time.Now()
}

// Bookings returns the booking repository view over the same store. A
// separate view type avoids clashing with the flight repository's List and
// GetByID methods.
func (s *Store) Bookings() repository.BookingRepository {
	return &bookingStore{s}
}

type bookingStore struct {
	*Store
}

func (s *bookingStore) Create(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[booking.ID]; exists {
		return fmt.Errorf("booking %s already exists: %w", booking.ID, domain.ErrConflict)
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (s *bookingStore) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return cloneBooking(b), nil
}

func (s *bookingStore) List(ctx context.Context, emailFilter string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if emailFilter != "" && b.ContactEmail != emailFilter {
			continue
		}
		bookings = append(bookings, *cloneBooking(b))
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CreatedAt.After(bookings[j].CreatedAt) })
	return bookings, nil
}

func (s *bookingStore) MarkPaid(ctx context.Context, id, pnr, paymentRef string, now time.Time) (*domain.Booking, error) {
	return s.transition(id, func(b *domain.Booking) error {
		if !payable(b, now) {
			return fmt.Errorf("booking %s: illegal transition: %w", id, domain.ErrConflict)
		}
		b.Status = domain.BookingStatusPaid
		b.PNR = pnr
		b.PaymentReference = paymentRef
		b.PaymentAttempts++
		return nil
	})
}

func (s *bookingStore) MarkFailed(ctx context.Context, id, paymentRef string, now time.Time) (*domain.Booking, error) {
	return s.transition(id, func(b *domain.Booking) error {
		if !payable(b, now) {
			return fmt.Errorf("booking %s: illegal transition: %w", id, domain.ErrConflict)
		}
		b.Status = domain.BookingStatusFailed
		b.PaymentReference = paymentRef
		b.PaymentAttempts++
		return nil
	})
}

func (s *bookingStore) MarkCancelled(ctx context.Context, id string) (*domain.Booking, error) {
	return s.transition(id, func(b *domain.Booking) error {
		if b.Status != domain.BookingStatusHeld && b.Status != domain.BookingStatusFailed {
			return fmt.Errorf("booking %s: illegal transition: %w", id, domain.ErrConflict)
		}
		b.Status = domain.BookingStatusCancelled
		return nil
	})
}

func (s *bookingStore) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return false, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if b.Status != domain.BookingStatusHeld || !b.HoldExpired(now) {
		return false, nil
	}
	b.Status = domain.BookingStatusExpired
	b.UpdatedAt = time.Now()
	return true, nil
}

func (s *bookingStore) ExpireHeldBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.Booking
	for _, b := range s.bookings {
		if b.Status == domain.BookingStatusHeld && !b.HoldExpiresAt.After(deadline) {
			b.Status = domain.BookingStatusExpired
			b.UpdatedAt = time.Now()
			expired = append(expired, *cloneBooking(b))
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })
	return expired, nil
}

func (s *bookingStore) PNRExists(ctx context.Context, pnr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bookings {
		if b.PNR != "" && b.PNR == pnr {
			return true, nil
		}
	}
	return false, nil
}

func (s *bookingStore) transition(id string, apply func(*domain.Booking) error) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err := apply(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now()
	return cloneBooking(b), nil
}

func payable(b *domain.Booking, now time.Time) bool {
	if b.Status == domain.BookingStatusFailed {
		return true
	}
	return b.Status == domain.BookingStatusHeld && !b.HoldExpired(now)
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	out := *b
	out.Passengers = append([]domain.Passenger(nil), b.Passengers...)
	out.Seats = append([]domain.SeatAssignment(nil), b.Seats...)
	return &out
}

var (
	_ repository.FlightRepository  = (*Store)(nil)
	_ repository.SeatRepository    = (*Store)(nil)
	_ repository.BookingRepository = (*bookingStore)(nil)
)
