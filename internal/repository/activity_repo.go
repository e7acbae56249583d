package repository

import (
	"context"
	"database/sql"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// ActivityRepository handles database operations for activities
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts an activity and sets its generated ID
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	query := `
		INSERT INTO activities (title, type, actor_id, scheduled_at, ends_at, user_id, family_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var actorID interface{}
	if activity.ActorID != nil {
		actorID = *activity.ActorID
	}

	id, err := r.db.ExecReturningID(ctx, query,
		activity.Title,
		activity.Type,
		actorID,
		activity.ScheduledAt,
		activity.EndsAt,
		activity.UserID,
		activity.FamilyID,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	activity.ID = id
	return nil
}

// ListByFamily returns a family's activities, latest scheduled first
func (r *ActivityRepository) ListByFamily(ctx context.Context, familyID int64, limit int) ([]models.Activity, error) {
	query := `
		SELECT id, title, type, actor_id, scheduled_at, ends_at, user_id, family_id, created_at
		FROM activities
		WHERE family_id = ?
		ORDER BY scheduled_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var actorID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Title, &a.Type, &actorID, &a.ScheduledAt, &a.EndsAt, &a.UserID, &a.FamilyID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if actorID.Valid {
			id := actorID.Int64
			a.ActorID = &id
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}
