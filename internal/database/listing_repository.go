package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/skymarket/skymarket-backend/internal/models"
)

// ListingRepository handles listing database operations
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new ListingRepository
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing
func (r *ListingRepository) Create(listing *models.Listing) error {
	listing.ID = uuid.New()
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = time.Now()

	query := `
		INSERT INTO listings (id, provider_id, category, title, description, price_base, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		listing.ID, listing.ProviderID, listing.Category, listing.Title,
		listing.Description, listing.PriceBase, listing.Active,
		listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by ID, returning nil when absent
func (r *ListingRepository) GetByID(id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	query := `
		SELECT id, provider_id, category, title, description, price_base, active, created_at, updated_at
		FROM listings WHERE id = $1`

	err := r.db.Get(&listing, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// ListActive returns active listings, optionally filtered by category
func (r *ListingRepository) ListActive(category models.ListingCategory, limit, offset int) ([]models.Listing, error) {
	listings := []models.Listing{}

	if category != "" {
		query := `
			SELECT id, provider_id, category, title, description, price_base, active, created_at, updated_at
			FROM listings
			WHERE active = true AND category = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		if err := r.db.Select(&listings, query, category, limit, offset); err != nil {
			return nil, fmt.Errorf("failed to list listings: %w", err)
		}
		return listings, nil
	}

	query := `
		SELECT id, provider_id, category, title, description, price_base, active, created_at, updated_at
		FROM listings
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	if err := r.db.Select(&listings, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// ListByProvider returns all listings owned by a provider
func (r *ListingRepository) ListByProvider(providerID uuid.UUID) ([]models.Listing, error) {
	listings := []models.Listing{}
	query := `
		SELECT id, provider_id, category, title, description, price_base, active, created_at, updated_at
		FROM listings
		WHERE provider_id = $1
		ORDER BY created_at DESC`

	if err := r.db.Select(&listings, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list provider listings: %w", err)
	}
	return listings, nil
}

// Update persists the mutable fields of a listing
func (r *ListingRepository) Update(listing *models.Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, price_base = $4, active = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(query,
		listing.ID, listing.Title, listing.Description, listing.PriceBase, listing.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a listing
func (r *ListingRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
