package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// ActorRepository handles database operations for a family's dependents
type ActorRepository struct {
	db *database.DB
}

// NewActorRepository creates a new actor repository
func NewActorRepository(db *database.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// CreateBatch inserts all actors in one transaction and sets their IDs.
// Either every actor is stored or none is.
func (r *ActorRepository) CreateBatch(ctx context.Context, actors []*models.Actor) error {
	if len(actors) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "INSERT INTO actors (family_id, name, type, coins_start_month, created_at) VALUES (?, ?, ?, ?, ?)"
	ids := make([]int64, len(actors))
	for i, actor := range actors {
		id, err := tx.ExecReturningID(ctx, query, actor.FamilyID, actor.Name, string(actor.Type), actor.CoinsStartMonth, actor.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create actor %q: %w", actor.Name, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i, actor := range actors {
		actor.ID = ids[i]
	}
	return nil
}

// ListByFamily returns every actor of a family in creation order
func (r *ActorRepository) ListByFamily(ctx context.Context, familyID int64) ([]models.Actor, error) {
	query := `
		SELECT id, family_id, name, type, coins_start_month, created_at
		FROM actors
		WHERE family_id = ?
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actors: %w", err)
	}
	defer rows.Close()

	actors := []models.Actor{}
	for rows.Next() {
		var a models.Actor
		var actorType string
		if err := rows.Scan(&a.ID, &a.FamilyID, &a.Name, &actorType, &a.CoinsStartMonth, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}
		a.Type = models.ActorType(actorType)
		actors = append(actors, a)
	}

	return actors, rows.Err()
}

// GetByID retrieves an actor. Returns nil, nil when it does not exist.
func (r *ActorRepository) GetByID(ctx context.Context, actorID int64) (*models.Actor, error) {
	query := "SELECT id, family_id, name, type, coins_start_month, created_at FROM actors WHERE id = ?"

	var a models.Actor
	var actorType string
	err := r.db.QueryRowContext(ctx, query, actorID).Scan(&a.ID, &a.FamilyID, &a.Name, &actorType, &a.CoinsStartMonth, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	a.Type = models.ActorType(actorType)
	return &a, nil
}
