package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/petcare-labs/clinibook/libs/auth"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/rules"
)

// BookingsByPet lists a pet's bookings. Clients see only their own pets;
// staff may look up any pet.
func (s *Service) BookingsByPet(ctx context.Context, actor Actor, petID string) ([]model.Booking, error) {
	pet, err := s.dir.PetByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleClient && pet.OwnerClientID != actor.ID {
		return nil, fmt.Errorf("%w: pet belongs to another client", ErrUnauthorized)
	}
	return s.catalog.ListByPet(ctx, petID)
}

// UpcomingForClient returns the actor's confirmed future bookings,
// ascending by slot.
func (s *Service) UpcomingForClient(ctx context.Context, actor Actor) ([]model.Booking, error) {
	if actor.Role != auth.RoleClient {
		return nil, fmt.Errorf("%w: client scope", ErrUnauthorized)
	}
	return s.catalog.ListUpcomingByClient(ctx, actor.ID, s.now())
}

// HistoryForClient returns terminal or past bookings for the actor.
func (s *Service) HistoryForClient(ctx context.Context, actor Actor) ([]model.Booking, error) {
	if actor.Role != auth.RoleClient {
		return nil, fmt.Errorf("%w: client scope", ErrUnauthorized)
	}
	return s.catalog.ListHistoryByClient(ctx, actor.ID, s.now())
}

// AgendaForStaff returns a staff member's bookings, optionally limited to
// upcoming confirmed ones.
func (s *Service) AgendaForStaff(ctx context.Context, actor Actor, upcomingOnly bool) ([]model.Booking, error) {
	if actor.Role != auth.RoleStaff {
		return nil, fmt.Errorf("%w: staff scope", ErrUnauthorized)
	}
	if upcomingOnly {
		return s.catalog.ListUpcomingByStaff(ctx, actor.ID, s.now())
	}
	return s.catalog.ListByStaff(ctx, actor.ID)
}

// StaffSlots reports a staff member's occupied and still-free slot starts
// for one calendar day; slot pickers render from this.
func (s *Service) StaffSlots(ctx context.Context, staffID string, day time.Time) (occupied, free []time.Time, err error) {
	if _, err := s.dir.StaffByID(ctx, staffID); err != nil {
		return nil, nil, err
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	occupied, err = s.catalog.OccupiedSlots(ctx, staffID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, nil, err
	}
	free = rules.FreeSlots(dayStart, occupied, s.now())
	return occupied, free, nil
}
