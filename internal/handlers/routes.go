package handlers

import (
	"net/http"

	"carecoins/internal/metrics"
)

// Routes registers every endpoint on a new ServeMux
func Routes(m *Middleware, families *FamilyHandler, activities *ActivityHandler, health *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /functions/v1/create-family", m.RequireAuth(families.CreateFamily))
	mux.HandleFunc("POST /functions/v1/join-pin", m.RequireAuth(families.JoinByPIN))
	mux.HandleFunc("POST /functions/v1/join-family-search", m.RequireAuth(families.Search))
	mux.HandleFunc("GET /functions/v1/me", m.RequireAuth(families.Me))

	mux.HandleFunc("POST /functions/v1/create-activity", m.RequireAuth(activities.CreateActivity))
	mux.HandleFunc("GET /functions/v1/activities", m.RequireAuth(activities.ListActivities))

	return mux
}
