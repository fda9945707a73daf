package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type bookingResponse struct {
	ID               string                  `json:"id"`
	FlightID         int64                   `json:"flight_id"`
	Status           string                  `json:"status"`
	ContactName      string                  `json:"contact_name"`
	ContactEmail     string                  `json:"contact_email"`
	Passengers       []domain.Passenger      `json:"passengers"`
	Seats            []domain.SeatAssignment `json:"seats"`
	Currency         string                  `json:"currency"`
	TotalCents       int64                   `json:"total_cents"`
	HoldExpiresAt    string                  `json:"hold_expires_at,omitempty"`
	PNR              string                  `json:"pnr,omitempty"`
	PaymentReference string                  `json:"payment_reference,omitempty"`
	PaymentAttempts  int                     `json:"payment_attempts"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.hold)
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/payment", h.pay)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) hold(c *gin.Context) {
	var req booking.PlaceHoldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.PlaceHold(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListBookings(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "bookings": out})
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) pay(c *gin.Context) {
	var req booking.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paid, err := h.service.Pay(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(paid))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:               b.ID,
		FlightID:         b.FlightID,
		Status:           string(b.Status),
		ContactName:      b.ContactName,
		ContactEmail:     b.ContactEmail,
		Passengers:       b.Passengers,
		Seats:            b.Seats,
		Currency:         b.Currency,
		TotalCents:       b.TotalCents,
		PNR:              b.PNR,
		PaymentReference: b.PaymentReference,
		PaymentAttempts:  b.PaymentAttempts,
	}
	if b.Status == domain.BookingStatusHeld || b.Status == domain.BookingStatusFailed {
		resp.HoldExpiresAt = b.HoldExpiresAt.Format(time.RFC3339)
	}
	return resp
}
