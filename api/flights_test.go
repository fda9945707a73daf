package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context, sortBy string) ([]domain.Flight, error) {
	args := m.Called(ctx, sortBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Search(ctx context.Context, origin, destination, date, sortBy string) ([]domain.Flight, error) {
	args := m.Called(ctx, origin, destination, date, sortBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func newFlightRouter(service *MockFlightUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewFlightHandler(service).Register(router.Group("/flights"))
	return router
}

func sampleFlight() domain.Flight {
	dep := time.Date(2025, 11, 1, 6, 0, 0, 0, time.UTC)
	return domain.Flight{
		ID: 1, FlightNumber: "AI101", Airline: "Air India",
		Origin: "Pune", Destination: "Delhi",
		DepartureTime: dep, ArrivalTime: dep.Add(2 * time.Hour),
		BasePriceCents: 400000, Currency: "INR",
		SeatsTotal: 20, SeatsLeft: 18,
	}
}

func TestFlightHandler_List(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	mockService.On("List", mock.Anything, "").Return([]domain.Flight{sampleFlight()}, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total   int             `json:"total"`
		Flights []domain.Flight `json:"flights"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "AI101", resp.Flights[0].FlightNumber)
	mockService.AssertNotCalled(t, "Search")
}

func TestFlightHandler_List_SortPassthrough(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	mockService.On("List", mock.Anything, "price").Return([]domain.Flight{}, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/?sort_by=price", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_List_BecomesSearch(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	mockService.On("Search", mock.Anything, "Pune", "Delhi", "2025-11-01", "").
		Return([]domain.Flight{sampleFlight()}, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/?origin=Pune&destination=Delhi&date=2025-11-01", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertNotCalled(t, "List")
}

func TestFlightHandler_Search_ValidationError(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	mockService.On("Search", mock.Anything, "Pune", "", "", "").
		Return(nil, domain.ErrValidation).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/?origin=Pune", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlightHandler_Get(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	flight := sampleFlight()
	mockService.On("GetByID", mock.Anything, int64(1)).Return(&flight, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFlightHandler_Get_BadID(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetByID")
}

func TestFlightHandler_Get_NotFound(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	mockService.On("GetByID", mock.Anything, int64(99)).Return(nil, domain.ErrNotFound).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/99", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFlightHandler_Seats_GroupedByCabin(t *testing.T) {
	mockService := &MockFlightUseCase{}
	router := newFlightRouter(mockService)

	seats := []domain.Seat{
		{FlightID: 1, SeatNumber: "A1", CabinClass: "ECONOMY", PriceCents: 400000},
		{FlightID: 1, SeatNumber: "A2", CabinClass: "ECONOMY", PriceCents: 400000, IsReserved: true},
		{FlightID: 1, SeatNumber: "B1", CabinClass: "BUSINESS", PriceCents: 900000},
	}
	mockService.On("ListSeats", mock.Anything, int64(1)).Return(seats, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flights/1/seats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		FlightID int64                    `json:"flight_id"`
		Cabins   map[string][]domain.Seat `json:"cabins"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Cabins["ECONOMY"], 2)
	assert.Len(t, resp.Cabins["BUSINESS"], 1)
}
