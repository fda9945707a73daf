package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/stretchr/testify/assert"
)

func seedFlight(store *Store) int64 {
	return store.AddFlight(
		domain.Flight{
			FlightNumber:   "AI101",
			Origin:         "Pune",
			Destination:    "Delhi",
			DepartureTime:  time.Date(2025, 11, 1, 6, 0, 0, 0, time.UTC),
			ArrivalTime:    time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC),
			BasePriceCents: 400000,
			Currency:       "INR",
		},
		[]domain.Seat{
			{SeatNumber: "A1", CabinClass: "ECONOMY"},
			{SeatNumber: "A2", CabinClass: "ECONOMY"},
			{SeatNumber: "B1", CabinClass: "BUSINESS", PriceCents: 900000},
		},
	)
}

func TestStore_AddFlight_DerivesSeatState(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)

	flight, err := store.GetByID(context.Background(), flightID)
	assert.NoError(t, err)
	assert.Equal(t, 3, flight.SeatsTotal)
	assert.Equal(t, 3, flight.SeatsLeft)

	seats, err := store.ListSeats(context.Background(), flightID)
	assert.NoError(t, err)
	assert.Len(t, seats, 3)
	// Seats without an explicit price inherit the flight's base price.
	for _, seat := range seats {
		if seat.SeatNumber == "B1" {
			assert.Equal(t, int64(900000), seat.PriceCents)
		} else {
			assert.Equal(t, int64(400000), seat.PriceCents)
		}
	}
}

func TestStore_ReserveSeats_AllOrNothing(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	ctx := context.Background()

	err := store.ReserveSeats(ctx, flightID, []string{"A1"}, "booking-1")
	assert.NoError(t, err)

	// A2 is free but A1 is taken; the whole request must fail and A2 must
	// stay free.
	err = store.ReserveSeats(ctx, flightID, []string{"A2", "A1"}, "booking-2")
	assert.ErrorIs(t, err, domain.ErrConflict)

	seats, _ := store.ListSeats(ctx, flightID)
	for _, seat := range seats {
		switch seat.SeatNumber {
		case "A1":
			assert.True(t, seat.IsReserved)
			assert.Equal(t, "booking-1", seat.BookingID)
		default:
			assert.False(t, seat.IsReserved)
		}
	}

	flight, _ := store.GetByID(ctx, flightID)
	assert.Equal(t, 2, flight.SeatsLeft)
}

func TestStore_ReserveSeats_UnknownSeatConflicts(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)

	err := store.ReserveSeats(context.Background(), flightID, []string{"Z99"}, "booking-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestStore_ConcurrentOverlappingHolds_ExactlyOneWins(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.ReserveSeats(ctx, flightID, []string{"A1", "A2"}, fmt.Sprintf("booking-%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)

	flight, _ := store.GetByID(ctx, flightID)
	assert.Equal(t, 1, flight.SeatsLeft)
}

func TestStore_ReleaseSeats_Idempotent(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	ctx := context.Background()

	assert.NoError(t, store.ReserveSeats(ctx, flightID, []string{"A1", "A2"}, "booking-1"))
	assert.NoError(t, store.ReleaseSeats(ctx, flightID, []string{"A1", "A2"}))
	assert.NoError(t, store.ReleaseSeats(ctx, flightID, []string{"A1", "A2"}))
	assert.NoError(t, store.ReleaseSeats(ctx, flightID, []string{"Z99"}))

	flight, _ := store.GetByID(ctx, flightID)
	assert.Equal(t, 3, flight.SeatsLeft)
}

func TestStore_Search_MatchesRouteAndDay(t *testing.T) {
	store := NewStore()
	seedFlight(store)
	ctx := context.Background()

	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	matched, err := store.Search(ctx, "Pune", "Delhi", day)
	assert.NoError(t, err)
	assert.Len(t, matched, 1)

	matched, err = store.Search(ctx, "Pune", "Delhi", day.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Empty(t, matched)

	matched, err = store.Search(ctx, "Delhi", "Pune", day)
	assert.NoError(t, err)
	assert.Empty(t, matched)
}

func heldBooking(id string, flightID int64, expiresAt time.Time) *domain.Booking {
	return &domain.Booking{
		ID:            id,
		FlightID:      flightID,
		ContactName:   "Test User",
		ContactEmail:  "test@example.com",
		Passengers:    []domain.Passenger{{FullName: "Alice Example"}},
		Seats:         []domain.SeatAssignment{{SeatNumber: "A1", CabinClass: "ECONOMY", PriceCents: 400000}},
		Currency:      "INR",
		TotalCents:    400000,
		Status:        domain.BookingStatusHeld,
		HoldExpiresAt: expiresAt,
	}
}

func TestBookingStore_CreateAndGet(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()

	b := heldBooking("booking-1", flightID, time.Now().Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))
	assert.ErrorIs(t, bookings.Create(ctx, b), domain.ErrConflict)

	got, err := bookings.GetByID(ctx, "booking-1")
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusHeld, got.Status)
	assert.Len(t, got.Passengers, 1)

	_, err = bookings.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingStore_MarkPaid_Transitions(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	paid, err := bookings.MarkPaid(ctx, "booking-1", "ABC234", "PAY-1", now)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaid, paid.Status)
	assert.Equal(t, "ABC234", paid.PNR)
	assert.Equal(t, 1, paid.PaymentAttempts)

	// A PAID booking cannot be paid again, cancelled, or failed.
	_, err = bookings.MarkPaid(ctx, "booking-1", "DEF456", "PAY-2", now)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = bookings.MarkCancelled(ctx, "booking-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = bookings.MarkFailed(ctx, "booking-1", "PAY-3", now)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestBookingStore_MarkPaid_RejectsExpiredHold(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(-time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	_, err := bookings.MarkPaid(ctx, "booking-1", "ABC234", "PAY-1", now)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestBookingStore_FailedRetrySucceeds(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	failed, err := bookings.MarkFailed(ctx, "booking-1", "PAY-1", now)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, failed.Status)

	paid, err := bookings.MarkPaid(ctx, "booking-1", "ABC234", "PAY-2", now)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaid, paid.Status)
	assert.Equal(t, 2, paid.PaymentAttempts)
}

func TestBookingStore_MarkExpired_CompareAndSet(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(-time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	won, err := bookings.MarkExpired(ctx, "booking-1", now)
	assert.NoError(t, err)
	assert.True(t, won)

	// Second attempt loses without error, so seats are released exactly once.
	won, err = bookings.MarkExpired(ctx, "booking-1", now)
	assert.NoError(t, err)
	assert.False(t, won)
}

func TestBookingStore_MarkExpired_HoldStillLive(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	won, err := bookings.MarkExpired(ctx, "booking-1", now)
	assert.NoError(t, err)
	assert.False(t, won)

	got, _ := bookings.GetByID(ctx, "booking-1")
	assert.Equal(t, domain.BookingStatusHeld, got.Status)
}

func TestBookingStore_ExpireHeldBefore(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	stale := heldBooking("booking-stale", flightID, now.Add(-time.Minute))
	live := heldBooking("booking-live", flightID, now.Add(15*time.Minute))
	paid := heldBooking("booking-paid", flightID, now.Add(-time.Minute))
	assert.NoError(t, bookings.Create(ctx, stale))
	assert.NoError(t, bookings.Create(ctx, live))
	assert.NoError(t, bookings.Create(ctx, paid))

	// Pay the third one before its deadline check so the sweep must skip it.
	_, err := bookings.MarkFailed(ctx, "booking-paid", "PAY-1", now.Add(-2*time.Minute))
	assert.NoError(t, err)

	expired, err := bookings.ExpireHeldBefore(ctx, now)
	assert.NoError(t, err)
	assert.Len(t, expired, 1)
	assert.Equal(t, "booking-stale", expired[0].ID)
	assert.Equal(t, domain.BookingStatusExpired, expired[0].Status)

	got, _ := bookings.GetByID(ctx, "booking-live")
	assert.Equal(t, domain.BookingStatusHeld, got.Status)
}

func TestBookingStore_ListFiltersByEmail(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()

	first := heldBooking("booking-1", flightID, time.Now().Add(15*time.Minute))
	second := heldBooking("booking-2", flightID, time.Now().Add(15*time.Minute))
	second.ContactEmail = "other@example.com"
	assert.NoError(t, bookings.Create(ctx, first))
	assert.NoError(t, bookings.Create(ctx, second))

	all, err := bookings.List(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := bookings.List(ctx, "other@example.com")
	assert.NoError(t, err)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "booking-2", filtered[0].ID)
}

func TestBookingStore_PNRExists(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()
	now := time.Now()

	b := heldBooking("booking-1", flightID, now.Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))
	_, err := bookings.MarkPaid(ctx, "booking-1", "ABC234", "PAY-1", now)
	assert.NoError(t, err)

	exists, err := bookings.PNRExists(ctx, "ABC234")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = bookings.PNRExists(ctx, "ZZZ999")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestBookingStore_CloneIsolation(t *testing.T) {
	store := NewStore()
	flightID := seedFlight(store)
	bookings := store.Bookings()
	ctx := context.Background()

	b := heldBooking("booking-1", flightID, time.Now().Add(15*time.Minute))
	assert.NoError(t, bookings.Create(ctx, b))

	got, _ := bookings.GetByID(ctx, "booking-1")
	got.Status = domain.BookingStatusPaid
	got.Seats[0].SeatNumber = "HACKED"

	again, _ := bookings.GetByID(ctx, "booking-1")
	assert.Equal(t, domain.BookingStatusHeld, again.Status)
	assert.Equal(t, "A1", again.Seats[0].SeatNumber)
}
