package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// Create inserts a family and sets its generated ID
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	query := `
		INSERT INTO families (name, pin, coins_start_month, coins_pending, coins_paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		family.Name,
		family.PIN,
		family.CoinsStartMonth,
		family.CoinsPending,
		family.CoinsPaid,
		family.CreatedAt,
		family.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	family.ID = id
	return nil
}

// GetByID retrieves a family by ID. Returns nil, nil when it does not exist.
func (r *FamilyRepository) GetByID(ctx context.Context, familyID int64) (*models.Family, error) {
	query := `
		SELECT id, name, pin, coins_start_month, coins_pending, coins_paid, created_at, updated_at
		FROM families
		WHERE id = ?
	`
	family := &models.Family{}
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.PIN,
		&family.CoinsStartMonth,
		&family.CoinsPending,
		&family.CoinsPaid,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	return family, nil
}

// Search finds families whose name contains query, case-insensitively
func (r *FamilyRepository) Search(ctx context.Context, query string, limit int) ([]models.FamilySummary, error) {
	sqlQuery := `
		SELECT id, name
		FROM families
		WHERE LOWER(name) LIKE ?
		ORDER BY name, id
		LIMIT ?
	`
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := r.db.QueryContext(ctx, sqlQuery, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search families: %w", err)
	}
	defer rows.Close()

	families := []models.FamilySummary{}
	for rows.Next() {
		var f models.FamilySummary
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}

	return families, rows.Err()
}
