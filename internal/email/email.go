package email

import (
	"context"

	"github.com/pankajsagvekar/flight-booking-simulator/internal/kafka"
	"go.uber.org/zap"
)

// Sender is a stand-in for a real mail integration: it logs the notification
// that would be sent for a booking event.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	s.log.Info("send booking notification",
		zap.String("to", event.Email),
		zap.String("event", event.Type),
		zap.String("booking_id", event.BookingID),
		zap.String("pnr", event.PNR),
	)
	return nil
}
