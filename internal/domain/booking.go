package domain

import "time"

type BookingStatus string

const (
	BookingStatusHeld      BookingStatus = "HELD"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusFailed    BookingStatus = "FAILED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// Terminal reports whether no further payment or cancel transition is
// allowed from the status. FAILED is not terminal: it permits a retry.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusPaid, BookingStatusCancelled, BookingStatusExpired:
		return true
	default:
		return false
	}
}

type Passenger struct {
	FullName string `json:"full_name"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// SeatAssignment is the seat snapshot carried by a booking. The price is
// captured at hold time; later inventory price changes do not affect it.
type SeatAssignment struct {
	SeatNumber string `json:"seat_number"`
	CabinClass string `json:"cabin_class"`
	PriceCents int64  `json:"price_cents"`
}

type Booking struct {
	ID               string           `json:"id"`
	FlightID         int64            `json:"flight_id"`
	ContactName      string           `json:"contact_name"`
	ContactEmail     string           `json:"contact_email"`
	ContactPhone     string           `json:"contact_phone,omitempty"`
	Passengers       []Passenger      `json:"passengers"`
	Seats            []SeatAssignment `json:"seats"`
	Currency         string           `json:"currency"`
	TotalCents       int64            `json:"total_cents"`
	Status           BookingStatus    `json:"status"`
	HoldExpiresAt    time.Time        `json:"hold_expires_at"`
	PNR              string           `json:"pnr,omitempty"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	PaymentAttempts  int              `json:"payment_attempts"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// SeatNumbers returns the seat numbers held by the booking, in snapshot order.
func (b *Booking) SeatNumbers() []string {
	numbers := make([]string, 0, len(b.Seats))
	for _, s := range b.Seats {
		numbers = append(numbers, s.SeatNumber)
	}
	return numbers
}

// HoldExpired reports whether the hold deadline has passed at the given
// instant. Only meaningful while the booking is HELD.
func (b *Booking) HoldExpired(now time.Time) bool {
	return !b.HoldExpiresAt.IsZero() && !now.Before(b.HoldExpiresAt)
}
