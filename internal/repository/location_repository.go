package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/traininjapan/booking-api/internal/models"
)

const locationColumns = `id, school_id, name, address, city, prefecture, capacity, description, created_at, updated_at`

// LocationRepository persists training venues.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository constructs the repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns locations, optionally narrowed to one school.
func (r *LocationRepository) List(ctx context.Context, schoolID string) ([]models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	var args []interface{}
	if schoolID != "" {
		query += ` WHERE school_id = $1`
		args = append(args, schoolID)
	}
	query += ` ORDER BY name ASC`
	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, query, args...); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// FindByID returns a location by id.
func (r *LocationRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Location, error) {
	const query = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	var location models.Location
	if err := sqlx.GetContext(ctx, r.exec(exec), &location, query, id); err != nil {
		return nil, err
	}
	return &location, nil
}

// Create inserts a location.
func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	location.CreatedAt = now
	location.UpdatedAt = now
	const query = `INSERT INTO locations (id, school_id, name, address, city, prefecture, capacity, description, created_at, updated_at)
VALUES (:id, :school_id, :name, :address, :city, :prefecture, :capacity, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, location); err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a location.
func (r *LocationRepository) Update(ctx context.Context, location *models.Location) error {
	location.UpdatedAt = time.Now().UTC()
	const query = `UPDATE locations SET name = :name, address = :address, city = :city, prefecture = :prefecture,
capacity = :capacity, description = :description, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, location)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("location rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a location.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("location rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
