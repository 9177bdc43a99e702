package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/petcare-labs/clinibook/libs/db"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
)

// DirectoryRepository resolves the clinic's pet, client and staff records.
type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) PetByID(ctx context.Context, id string) (model.Pet, error) {
	var p model.Pet
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_client_id, name, species FROM pets WHERE id = $1
	`, id).Scan(&p.ID, &p.OwnerClientID, &p.Name, &p.Species)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Pet{}, fmt.Errorf("%w: pet %s", booking.ErrNotFound, id)
	}
	return p, err
}

func (r *DirectoryRepository) ClientByID(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), active FROM clients WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Client{}, fmt.Errorf("%w: client %s", booking.ErrNotFound, id)
	}
	return c, err
}

func (r *DirectoryRepository) StaffByID(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, profile FROM staff WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Email, &s.Profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, fmt.Errorf("%w: staff %s", booking.ErrNotFound, id)
	}
	return s, err
}
