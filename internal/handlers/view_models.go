package handlers

import (
	"time"

	"carecoins/internal/models"
	"carecoins/internal/service"
)

type SuccessResponse struct {
	Success  bool  `json:"success"`
	FamilyID int64 `json:"family_id"`
}

type ActivityCreatedResponse struct {
	Success    bool  `json:"success"`
	ActivityID int64 `json:"activity_id"`
}

type JoinPINRequest struct {
	FamilyID int64  `json:"family_id"`
	PIN      string `json:"pin"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type FamilySummaryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SearchResponse struct {
	Families []FamilySummaryView `json:"families"`
}

type ActorView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	CoinsStartMonth int    `json:"coins_start_month"`
}

type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	FamilyID    *int64 `json:"family_id"`
	CoinBalance int    `json:"coin_balance"`
}

type ProfileResponse struct {
	User   UserView           `json:"user"`
	Family *FamilySummaryView `json:"family"`
	Actors []ActorView        `json:"actors"`
}

type ActivityView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	ActorID     *int64    `json:"actor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	EndsAt      time.Time `json:"ends_at"`
	UserID      string    `json:"user_id"`
}

type ActivitiesResponse struct {
	Activities []ActivityView `json:"activities"`
}

func newSearchResponse(families []models.FamilySummary) SearchResponse {
	views := make([]FamilySummaryView, len(families))
	for i, f := range families {
		views[i] = FamilySummaryView{ID: f.ID, Name: f.Name}
	}
	return SearchResponse{Families: views}
}

func newProfileResponse(p *service.Profile) ProfileResponse {
	resp := ProfileResponse{
		User: UserView{
			ID:          p.User.ID,
			Email:       p.User.Email,
			FullName:    p.User.FullName,
			Role:        p.User.Role,
			FamilyID:    p.User.FamilyID,
			CoinBalance: p.User.CoinBalance,
		},
		Actors: make([]ActorView, len(p.Actors)),
	}
	if p.Family != nil {
		resp.Family = &FamilySummaryView{ID: p.Family.ID, Name: p.Family.Name}
	}
	for i, a := range p.Actors {
		resp.Actors[i] = ActorView{ID: a.ID, Name: a.Name, Type: string(a.Type), CoinsStartMonth: a.CoinsStartMonth}
	}
	return resp
}

func newActivitiesResponse(activities []models.Activity) ActivitiesResponse {
	views := make([]ActivityView, len(activities))
	for i, a := range activities {
		views[i] = ActivityView{
			ID:          a.ID,
			Title:       a.Title,
			Type:        a.Type,
			ActorID:     a.ActorID,
			ScheduledAt: a.ScheduledAt,
			EndsAt:      a.EndsAt,
			UserID:      a.UserID,
		}
	}
	return ActivitiesResponse{Activities: views}
}
