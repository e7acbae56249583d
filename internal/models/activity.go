package models

import "time"

// ActivityTypeCaringOf is the only activity type that references an actor
const ActivityTypeCaringOf = "Caring of"

// Activity is a scheduled event logged by a family member
type Activity struct {
	ID          int64
	Title       string
	Type        string
	ActorID     *int64
	ScheduledAt time.Time
	EndsAt      time.Time
	UserID      string
	FamilyID    int64
	CreatedAt   time.Time
}

// Duration returns the scheduled length of the activity
func (a *Activity) Duration() time.Duration {
	return a.EndsAt.Sub(a.ScheduledAt)
}

// ReferencesActor reports whether the activity type carries an actor link
func ReferencesActor(activityType string) bool {
	return activityType == ActivityTypeCaringOf
}
