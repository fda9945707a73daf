package domain

import "time"

type Flight struct {
	ID             int64     `json:"id"`
	FlightNumber   string    `json:"flight_number"`
	Airline        string    `json:"airline,omitempty"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	BasePriceCents int64     `json:"base_price_cents"`
	Currency       string    `json:"currency"`
	SeatsTotal     int       `json:"seats_total"`
	SeatsLeft      int       `json:"seats_left"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (f *Flight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

// Seat is a single unit of sellable inventory on a flight. A reserved seat
// belongs to exactly one booking, tracked by BookingID.
type Seat struct {
	FlightID   int64  `json:"flight_id"`
	SeatNumber string `json:"seat_number"`
	CabinClass string `json:"cabin_class"`
	PriceCents int64  `json:"price_cents"`
	IsReserved bool   `json:"is_reserved"`
	BookingID  string `json:"booking_id,omitempty"`
}
