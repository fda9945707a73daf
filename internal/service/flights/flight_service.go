package flights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context, sortBy string) ([]domain.Flight, error)
	Search(ctx context.Context, origin, destination, date, sortBy string) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
}

const (
	SortByPrice    = "price"
	SortByDuration = "duration"
)

type FlightService struct {
	repo  repository.FlightRepository
	seats repository.SeatRepository
	cache Cache
}

func NewFlightService(repo repository.FlightRepository, seats repository.SeatRepository, cache Cache) *FlightService {
	return &FlightService{repo: repo, seats: seats, cache: cache}
}

func (s *FlightService) List(ctx context.Context, sortBy string) ([]domain.Flight, error) {
	if err := validateSort(sortBy); err != nil {
		return nil, err
	}

	var flights []domain.Flight
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			flights = cached
		}
	}
	if flights == nil {
		loaded, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		flights = loaded
		if s.cache != nil {
			_ = s.cache.SetFlights(ctx, flights)
		}
	}

	applySort(flights, sortBy)
	return flights, nil
}

func (s *FlightService) Search(ctx context.Context, origin, destination, date, sortBy string) ([]domain.Flight, error) {
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", domain.ErrValidation)
	}
	if err := validateSort(sortBy); err != nil {
		return nil, err
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
	}

	flights, err := s.repo.Search(ctx, origin, destination, day)
	if err != nil {
		return nil, err
	}
	applySort(flights, sortBy)
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

// ListSeats returns the flight's seat map ordered by cabin then seat number.
func (s *FlightService) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	if _, err := s.repo.GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	return s.seats.ListSeats(ctx, flightID)
}

func validateSort(sortBy string) error {
	switch sortBy {
	case "", SortByPrice, SortByDuration:
		return nil
	default:
		return fmt.Errorf("%w: sort_by must be price or duration", domain.ErrValidation)
	}
}

func applySort(flights []domain.Flight, sortBy string) {
	switch sortBy {
	case SortByPrice:
		sort.SliceStable(flights, func(i, j int) bool { return flights[i].BasePriceCents < flights[j].BasePriceCents })
	case SortByDuration:
		sort.SliceStable(flights, func(i, j int) bool { return flights[i].Duration() < flights[j].Duration() })
	}
}

var _ FlightUseCase = (*FlightService)(nil)
