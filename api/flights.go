package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/seats", h.seats)
}

// list serves both the plain listing and the filtered search: when origin,
// destination and date are all present it searches, otherwise it lists.
func (h *FlightHandler) list(c *gin.Context) {
	sortBy := c.Query("sort_by")
	origin := c.Query("origin")
	destination := c.Query("destination")
	date := c.Query("date")

	var (
		result []domain.Flight
		err    error
	)
	if origin != "" || destination != "" || date != "" {
		result, err = h.service.Search(c.Request.Context(), origin, destination, date, sortBy)
	} else {
		result, err = h.service.List(c.Request.Context(), sortBy)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(result), "flights": result})
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

// seats returns the flight's seat map grouped by cabin class.
func (h *FlightHandler) seats(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	seats, err := h.service.ListSeats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	cabins := make(map[string][]domain.Seat)
	for _, seat := range seats {
		cabins[seat.CabinClass] = append(cabins[seat.CabinClass], seat)
	}
	c.JSON(http.StatusOK, gin.H{"flight_id": id, "cabins": cabins})
}
