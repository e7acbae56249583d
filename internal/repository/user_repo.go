package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts the profile or replaces every field of an existing one
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Dialect.UpsertUserProfileQuery(), userArgs(user)...)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// LinkFamily sets the family of an existing profile, or creates the profile
// with the given defaults when it does not exist yet
func (r *UserRepository) LinkFamily(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Dialect.LinkUserFamilyQuery(), userArgs(user)...)
	if err != nil {
		return fmt.Errorf("failed to link user family: %w", err)
	}
	return nil
}

// GetByID retrieves a profile. Returns nil, nil when it does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, role, family_id, coin_balance, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	user := &models.User{}
	var familyID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&familyID,
		&user.CoinBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if familyID.Valid {
		user.FamilyID = &familyID.Int64
	}
	return user, nil
}

func userArgs(user *models.User) []interface{} {
	var familyID interface{}
	if user.FamilyID != nil {
		familyID = *user.FamilyID
	}
	return []interface{}{
		user.ID,
		user.Email,
		user.FullName,
		user.Role,
		familyID,
		user.CoinBalance,
		user.CreatedAt,
		user.UpdatedAt,
	}
}
