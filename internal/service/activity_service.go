package service

import (
	"context"
	"strings"
	"time"

	"carecoins/internal/events"
	"carecoins/internal/identity"
	"carecoins/internal/models"
	"carecoins/internal/validation"

	"github.com/sirupsen/logrus"
)

// MaxActivityLimit caps the page size of ListActivities
const MaxActivityLimit = 50

// ActivityStore persists activities
type ActivityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	ListByFamily(ctx context.Context, familyID int64, limit int) ([]models.Activity, error)
}

// CreateActivityRequest is the input of Create. Timestamps are RFC 3339.
type CreateActivityRequest struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	ScheduledAt string `json:"scheduled_at"`
	EndsAt      string `json:"ends_at"`
	ActorID     *int64 `json:"actor_id"`
}

// ActivityService handles activity logging for a family
type ActivityService struct {
	activities ActivityStore
	actors     ActorStore
	users      UserStore
	publisher  events.Publisher
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewActivityService creates a new activity service
func NewActivityService(activities ActivityStore, actors ActorStore, users UserStore, publisher events.Publisher, log logrus.FieldLogger) *ActivityService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ActivityService{
		activities: activities,
		actors:     actors,
		users:      users,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}
}

// Create logs an activity for the caller's family
func (s *ActivityService) Create(ctx context.Context, principal *identity.Principal, req CreateActivityRequest) (*models.Activity, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}

	if strings.TrimSpace(req.Title) == "" {
		return nil, validation.ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(req.Type) == "" {
		return nil, validation.ValidationError{Field: "type", Message: "type is required"}
	}
	start, err := validation.ParseTimestamp("scheduled_at", req.ScheduledAt)
	if err != nil {
		return nil, err
	}
	end, err := validation.ParseTimestamp("ends_at", req.EndsAt)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateTimeRange(start, end); err != nil {
		return nil, err
	}

	familyID, err := s.familyOf(ctx, principal)
	if err != nil {
		return nil, err
	}

	activity := &models.Activity{
		Title:       strings.TrimSpace(req.Title),
		Type:        req.Type,
		ScheduledAt: start.UTC(),
		EndsAt:      end.UTC(),
		UserID:      principal.ID,
		FamilyID:    familyID,
		CreatedAt:   s.now().UTC(),
	}

	// only "Caring of" activities carry an actor
	if models.ReferencesActor(req.Type) && req.ActorID != nil {
		actor, err := s.actors.GetByID(ctx, *req.ActorID)
		if err != nil {
			return nil, persistenceError("get actor", err)
		}
		if actor == nil || actor.FamilyID != familyID {
			return nil, validation.ValidationError{Field: "actor_id", Message: ErrActorNotFound.Error()}
		}
		activity.ActorID = &actor.ID
	}

	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, persistenceError("create activity", err)
	}

	event := events.New(events.ActivityCreated, familyID, principal.ID, map[string]interface{}{
		"activity_id": activity.ID,
		"type":        activity.Type,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event", event.Type).Warn("failed to publish event")
	}

	return activity, nil
}

// List returns the newest activities of the caller's family
func (s *ActivityService) List(ctx context.Context, principal *identity.Principal, limit int) ([]models.Activity, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}
	if limit <= 0 || limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	familyID, err := s.familyOf(ctx, principal)
	if err != nil {
		return nil, err
	}

	activities, err := s.activities.ListByFamily(ctx, familyID, limit)
	if err != nil {
		return nil, persistenceError("list activities", err)
	}
	return activities, nil
}

func (s *ActivityService) familyOf(ctx context.Context, principal *identity.Principal) (int64, error) {
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return 0, persistenceError("get user", err)
	}
	if user == nil || !user.HasFamily() {
		return 0, ErrNoFamily
	}
	return *user.FamilyID, nil
}
