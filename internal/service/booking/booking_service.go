package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/kafka"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/repository"
	"go.uber.org/zap"
)

// Hold durations accepted from callers, matching the booking API contract.
const (
	DefaultHoldMinutes = 15
	MinHoldMinutes     = 5
	MaxHoldMinutes     = 60
)

type BookingUseCase interface {
	PlaceHold(ctx context.Context, input PlaceHoldInput) (*domain.Booking, error)
	Pay(ctx context.Context, bookingID string, input PaymentInput) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	ListBookings(ctx context.Context, emailFilter string) ([]domain.Booking, error)
	ExpireHeldBookings(ctx context.Context) ([]domain.Booking, error)
}

type Cache interface {
	AcquireSeatLocks(ctx context.Context, flightID int64, seatNumbers []string, ttl time.Duration) (bool, error)
	ReleaseSeatLocks(ctx context.Context, flightID int64, seatNumbers []string) error
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type PassengerInput struct {
	FullName string `json:"full_name" validate:"required"`
	Age      int    `json:"age" validate:"omitempty,gte=0,lte=120"`
	Gender   string `json:"gender"`
}

type SeatSelection struct {
	SeatNumber string `json:"seat_number" validate:"required"`
	CabinClass string `json:"cabin_class"`
}

type PlaceHoldInput struct {
	FlightID     int64            `json:"flight_id" validate:"required"`
	ContactName  string           `json:"contact_name" validate:"required"`
	ContactEmail string           `json:"contact_email" validate:"required,email"`
	ContactPhone string           `json:"contact_phone"`
	Passengers   []PassengerInput `json:"passengers" validate:"required,min=1,dive"`
	Seats        []SeatSelection  `json:"seats" validate:"required,min=1,dive"`
	Currency     string           `json:"currency" validate:"omitempty,len=3"`
	HoldMinutes  int              `json:"hold_minutes"`
}

type PaymentInput struct {
	Method       string `json:"payment_method"`
	ForceOutcome string `json:"force_outcome"`
}

var validate = validator.New()

type BookingService struct {
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	seats              repository.SeatRepository
	cache              Cache
	producer           Producer
	decider            OutcomeDecider
	log                *zap.Logger
	bookingTopic       string
	notificationsTopic string
	defaultHold        time.Duration
	now                func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithClock overrides the service clock; tests use it to move holds past
// their deadline.
func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	seats repository.SeatRepository,
	cache Cache,
	producer Producer,
	decider OutcomeDecider,
	log *zap.Logger,
	bookingTopic string,
	defaultHold time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	if decider == nil {
		decider = AlwaysSucceed{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	service := &BookingService{
		bookings:     bookings,
		flights:      flights,
		seats:        seats,
		cache:        cache,
		producer:     producer,
		decider:      decider,
		log:          log,
		bookingTopic: bookingTopic,
		defaultHold:  defaultHold,
		now:          time.Now,
	}
	if service.defaultHold == 0 {
		service.defaultHold = DefaultHoldMinutes * time.Minute
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// PlaceHold reserves the requested seats atomically and creates a HELD
// booking with seat prices snapshotted at hold time. On any failure after the
// reserve the seats are released, so there are no partial holds.
func (s *BookingService) PlaceHold(ctx context.Context, input PlaceHoldInput) (*domain.Booking, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if len(input.Passengers) != len(input.Seats) {
		return nil, fmt.Errorf("%w: passenger count %d does not match seat count %d",
			domain.ErrValidation, len(input.Passengers), len(input.Seats))
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}

	holdFor := s.holdDuration(input.HoldMinutes)
	currency := input.Currency
	if currency == "" {
		currency = flight.Currency
	}

	assignments, total, err := s.snapshotSeats(ctx, flight.ID, input.Seats)
	if err != nil {
		return nil, err
	}

	seatNumbers := make([]string, 0, len(assignments))
	for _, a := range assignments {
		seatNumbers = append(seatNumbers, a.SeatNumber)
	}

	locked := false
	if s.cache != nil {
		ok, err := s.cache.AcquireSeatLocks(ctx, flight.ID, seatNumbers, holdFor)
		if err != nil {
			s.log.Warn("seat lock acquisition failed, relying on store reserve", zap.Error(err))
		} else if !ok {
			return nil, fmt.Errorf("seats locked by another request: %w", domain.ErrConflict)
		} else {
			locked = true
		}
	}

	booking := &domain.Booking{
		ID:            uuid.NewString(),
		FlightID:      flight.ID,
		ContactName:   input.ContactName,
		ContactEmail:  input.ContactEmail,
		ContactPhone:  input.ContactPhone,
		Passengers:    toPassengers(input.Passengers),
		Seats:         assignments,
		Currency:      currency,
		TotalCents:    total,
		Status:        domain.BookingStatusHeld,
		HoldExpiresAt: s.now().Add(holdFor),
	}

	if err := s.seats.ReserveSeats(ctx, flight.ID, seatNumbers, booking.ID); err != nil {
		if locked {
			_ = s.cache.ReleaseSeatLocks(ctx, flight.ID, seatNumbers)
		}
		return nil, err
	}
	s.invalidateFlights(ctx)

	if err := s.bookings.Create(ctx, booking); err != nil {
		_ = s.seats.ReleaseSeats(ctx, flight.ID, seatNumbers)
		s.invalidateFlights(ctx)
		if locked {
			_ = s.cache.ReleaseSeatLocks(ctx, flight.ID, seatNumbers)
		}
		return nil, err
	}

	s.publish(ctx, "booking_held", booking)
	s.log.Info("hold placed",
		zap.String("booking_id", booking.ID),
		zap.Int64("flight_id", booking.FlightID),
		zap.Int("seats", len(booking.Seats)),
		zap.Time("hold_expires_at", booking.HoldExpiresAt),
	)
	return booking, nil
}

// Pay finalizes a HELD or FAILED booking. A HELD booking past its deadline is
// expired instead of charged. A FAILED booking keeps its seats reserved and
// may retry; the original hold deadline is not extended.
func (s *BookingService) Pay(ctx context.Context, bookingID string, input PaymentInput) (*domain.Booking, error) {
	if input.ForceOutcome != "" && input.ForceOutcome != string(OutcomeSuccess) && input.ForceOutcome != string(OutcomeFail) {
		return nil, fmt.Errorf("%w: force_outcome must be SUCCESS or FAIL", domain.ErrValidation)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingStatusHeld:
		if booking.HoldExpired(s.now()) {
			expired, err := s.expireBooking(ctx, booking)
			if err != nil {
				return nil, err
			}
			return expired, fmt.Errorf("booking %s: %w", bookingID, domain.ErrHoldExpired)
		}
	case domain.BookingStatusFailed:
		// Retry allowed; the original hold deadline persists.
	default:
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, domain.ErrConflict)
	}

	outcome := Outcome(input.ForceOutcome)
	if outcome == "" {
		outcome = s.decider.Decide(ctx, booking)
	}

	paymentRef := "PAY-" + uuid.NewString()

	if outcome == OutcomeSuccess {
		pnr, err := s.uniquePNR(ctx)
		if err != nil {
			return nil, err
		}
		updated, err := s.bookings.MarkPaid(ctx, bookingID, pnr, paymentRef, s.now())
		if err != nil {
			return nil, s.resolveTransitionConflict(ctx, bookingID, err)
		}
		if s.cache != nil {
			_ = s.cache.ReleaseSeatLocks(ctx, updated.FlightID, updated.SeatNumbers())
		}
		s.publish(ctx, "booking_paid", updated)
		s.log.Info("payment succeeded",
			zap.String("booking_id", updated.ID),
			zap.String("pnr", updated.PNR),
			zap.Int64("total_cents", updated.TotalCents),
		)
		return updated, nil
	}

	updated, err := s.bookings.MarkFailed(ctx, bookingID, paymentRef, s.now())
	if err != nil {
		return nil, s.resolveTransitionConflict(ctx, bookingID, err)
	}
	s.publish(ctx, "payment_failed", updated)
	s.log.Info("payment failed, seats remain held for retry",
		zap.String("booking_id", updated.ID),
		zap.Int("attempts", updated.PaymentAttempts),
	)
	return updated, nil
}

// Cancel releases the booking's seats and marks it CANCELLED. Allowed only
// from HELD or FAILED.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*domain.Booking, error) {
	updated, err := s.bookings.MarkCancelled(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	seatNumbers := updated.SeatNumbers()
	if err := s.seats.ReleaseSeats(ctx, updated.FlightID, seatNumbers); err != nil {
		return nil, err
	}
	s.invalidateFlights(ctx)
	if s.cache != nil {
		_ = s.cache.ReleaseSeatLocks(ctx, updated.FlightID, seatNumbers)
	}
	s.publish(ctx, "booking_cancelled", updated)
	s.log.Info("booking cancelled", zap.String("booking_id", updated.ID))
	return updated, nil
}

// GetBooking returns the booking, lazily expiring it first when its hold
// deadline has passed.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusHeld && booking.HoldExpired(s.now()) {
		return s.expireBooking(ctx, booking)
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, emailFilter string) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, emailFilter)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		b := &bookings[i]
		if b.Status == domain.BookingStatusHeld && b.HoldExpired(s.now()) {
			expired, err := s.expireBooking(ctx, b)
			if err != nil {
				return nil, err
			}
			bookings[i] = *expired
		}
	}
	return bookings, nil
}

// ExpireHeldBookings transitions every HELD booking past its deadline to
// EXPIRED and releases its seats. The status flip is a compare-and-set, so a
// booking finalized by a concurrent payment is left alone.
func (s *BookingService) ExpireHeldBookings(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpireHeldBefore(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		b := &expired[i]
		seatNumbers := b.SeatNumbers()
		if err := s.seats.ReleaseSeats(ctx, b.FlightID, seatNumbers); err != nil {
			s.log.Error("release seats for expired booking",
				zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		if s.cache != nil {
			_ = s.cache.ReleaseSeatLocks(ctx, b.FlightID, seatNumbers)
		}
		s.publish(ctx, "booking_expired", b)
	}
	if len(expired) > 0 {
		s.invalidateFlights(ctx)
	}
	return expired, nil
}

// expireBooking applies the lazy expiry transition for a single booking. The
// seats are released only by the call that wins the compare-and-set, so a
// concurrent sweep and a lazy check release them exactly once.
func (s *BookingService) expireBooking(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	won, err := s.bookings.MarkExpired(ctx, booking.ID, s.now())
	if err != nil {
		return nil, err
	}
	if won {
		seatNumbers := booking.SeatNumbers()
		if err := s.seats.ReleaseSeats(ctx, booking.FlightID, seatNumbers); err != nil {
			return nil, err
		}
		s.invalidateFlights(ctx)
		if s.cache != nil {
			_ = s.cache.ReleaseSeatLocks(ctx, booking.FlightID, seatNumbers)
		}
		expired := *booking
		expired.Status = domain.BookingStatusExpired
		s.publish(ctx, "booking_expired", &expired)
		s.log.Info("hold expired", zap.String("booking_id", booking.ID))
	}
	return s.bookings.GetByID(ctx, booking.ID)
}

func (s *BookingService) snapshotSeats(ctx context.Context, flightID int64, selections []SeatSelection) ([]domain.SeatAssignment, int64, error) {
	seats, err := s.seats.ListSeats(ctx, flightID)
	if err != nil {
		return nil, 0, err
	}
	byNumber := make(map[string]domain.Seat, len(seats))
	for _, seat := range seats {
		byNumber[seat.SeatNumber] = seat
	}

	assignments := make([]domain.SeatAssignment, 0, len(selections))
	var total int64
	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		if seen[sel.SeatNumber] {
			return nil, 0, fmt.Errorf("%w: seat %s selected twice", domain.ErrValidation, sel.SeatNumber)
		}
		seen[sel.SeatNumber] = true

		seat, ok := byNumber[sel.SeatNumber]
		if !ok {
			return nil, 0, fmt.Errorf("%w: seat %s does not exist on flight %d", domain.ErrValidation, sel.SeatNumber, flightID)
		}
		if sel.CabinClass != "" && sel.CabinClass != seat.CabinClass {
			return nil, 0, fmt.Errorf("%w: seat %s is %s, not %s", domain.ErrValidation, seat.SeatNumber, seat.CabinClass, sel.CabinClass)
		}
		if seat.IsReserved {
			return nil, 0, fmt.Errorf("seat %s on flight %d already reserved: %w", seat.SeatNumber, flightID, domain.ErrConflict)
		}
		assignments = append(assignments, domain.SeatAssignment{
			SeatNumber: seat.SeatNumber,
			CabinClass: seat.CabinClass,
			PriceCents: seat.PriceCents,
		})
		total += seat.PriceCents
	}
	return assignments, total, nil
}

func (s *BookingService) holdDuration(minutes int) time.Duration {
	if minutes <= 0 {
		return s.defaultHold
	}
	if minutes < MinHoldMinutes {
		minutes = MinHoldMinutes
	}
	if minutes > MaxHoldMinutes {
		minutes = MaxHoldMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *BookingService) uniquePNR(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		pnr := GeneratePNR()
		exists, err := s.bookings.PNRExists(ctx, pnr)
		if err != nil {
			return "", err
		}
		if !exists {
			return pnr, nil
		}
	}
	return "", errors.New("could not generate a unique pnr")
}

// resolveTransitionConflict re-reads the booking after a lost compare-and-set
// so the caller gets the precise reason: a hold that expired underneath the
// payment reports Expired, anything else Conflict.
func (s *BookingService) resolveTransitionConflict(ctx context.Context, bookingID string, err error) error {
	if !errors.Is(err, domain.ErrConflict) {
		return err
	}
	current, getErr := s.bookings.GetByID(ctx, bookingID)
	if getErr == nil && current.Status == domain.BookingStatusExpired {
		return fmt.Errorf("booking %s: %w", bookingID, domain.ErrHoldExpired)
	}
	return err
}

func (s *BookingService) invalidateFlights(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		FlightID:   booking.FlightID,
		Email:      booking.ContactEmail,
		Status:     string(booking.Status),
		PNR:        booking.PNR,
		TotalCents: booking.TotalCents,
		Currency:   booking.Currency,
		ExpiresAt:  booking.HoldExpiresAt,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.ID, event); err != nil {
		s.log.Warn("publish booking event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.ID, event); err != nil {
			s.log.Warn("publish notification event", zap.String("type", eventType), zap.Error(err))
		}
	}
}

func toPassengers(inputs []PassengerInput) []domain.Passenger {
	passengers := make([]domain.Passenger, 0, len(inputs))
	for _, p := range inputs {
		passengers = append(passengers, domain.Passenger{FullName: p.FullName, Age: p.Age, Gender: p.Gender})
	}
	return passengers
}

var _ BookingUseCase = (*BookingService)(nil)
