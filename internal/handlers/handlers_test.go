package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carecoins/internal/accrual"
	"carecoins/internal/database"
	"carecoins/internal/identity"
	"carecoins/internal/logging"
	"carecoins/internal/repository"
	"carecoins/internal/service"
)

type testServer struct {
	handler http.Handler
	db      *database.DB
	status  *StartupStatus
}

var principals = map[string]*identity.Principal{
	"token-ann": {ID: "user-ann", Email: "ann@example.com", FullName: "Ann Rossi"},
	"token-bob": {ID: "user-bob", Email: "bob@example.com"},
}

func testProvider() identity.Provider {
	return identity.ProviderFunc(func(ctx context.Context, token string) (*identity.Principal, error) {
		if p, ok := principals[token]; ok {
			return p, nil
		}
		return nil, identity.ErrInvalidToken
	})
}

func quietLogger() *logging.Logger {
	log := logging.New("carecoins-test", "error", "json")
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	log := quietLogger()
	families := repository.NewFamilyRepository(db)
	actors := repository.NewActorRepository(db)
	users := repository.NewUserRepository(db)
	activities := repository.NewActivityRepository(db)

	calc := accrual.NewCalculator(accrual.DefaultRateTable(), time.UTC)
	familyService := service.NewFamilyService(families, actors, users, calc, service.WithLogger(log))
	activityService := service.NewActivityService(activities, actors, users, nil, log)

	status := NewStartupStatus(StepDatabase, StepServer)
	mw := NewMiddleware(testProvider(), log, []string{"*"})
	mux := Routes(mw,
		NewFamilyHandler(familyService, log),
		NewActivityHandler(activityService, log),
		NewHealthHandler(status, db),
	)

	return &testServer{
		handler: Chain(mux, mw.Trace, mw.CORS, mw.Logging, Timeout(5*time.Second)),
		db:      db,
		status:  status,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func (s *testServer) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

const createRossi = `{"family_name":"Rossi","role":"parent","pin":"1234","actors":[{"name":"Max","type":"pet"},{"name":"","type":"child"}]}`

func TestCORSPreflight(t *testing.T) {
	mw := NewMiddleware(testProvider(), quietLogger(), []string{"https://app.example.com"})
	handler := mw.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/create-family", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != corsAllowedHeaders {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	mw := NewMiddleware(testProvider(), quietLogger(), nil)
	var seen *identity.Principal
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipalFromContext(r.Context())
		if logging.GetUserID(r.Context()) != seen.ID {
			t.Error("user id missing from logging context")
		}
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic token-ann", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer token-ann", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusOK && (seen == nil || seen.ID != "user-ann") {
				t.Errorf("principal not in context: %+v", seen)
			}
			if tt.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
				t.Errorf("unexpected body %q", rec.Body.String())
			}
		})
	}
}

func TestRequireAuthProviderFailure(t *testing.T) {
	failing := identity.ProviderFunc(func(ctx context.Context, token string) (*identity.Principal, error) {
		return nil, context.DeadlineExceeded
	})
	mw := NewMiddleware(failing, quietLogger(), nil)
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestTraceHeader(t *testing.T) {
	mw := NewMiddleware(testProvider(), quietLogger(), nil)
	var traceID string
	handler := mw.Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = logging.GetTraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if traceID == "" || rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("trace id %q not echoed (%q)", traceID, rec.Header().Get("X-Trace-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if traceID != "abc" {
		t.Errorf("incoming trace id not reused, got %q", traceID)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") }),
		mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner,handler" {
		t.Errorf("order = %v", order)
	}
}

func TestCreateFamilyEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := newTestServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-family", "", createRossi)
		if rec.Code != http.StatusUnauthorized || body["error"] != ErrUnauthorized {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-family", "token-ann", `{"family_name":`)
		if rec.Code != http.StatusBadRequest || body["error"] != ErrInvalidJSONBody {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("actors not an array", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/functions/v1/create-family", "token-ann",
			`{"family_name":"Rossi","role":"parent","pin":"1234","actors":"Max"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing family name writes nothing", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-family", "token-ann",
			`{"role":"parent","pin":"1234","actors":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d %v", rec.Code, body)
		}
		if s.count(t, "families")+s.count(t, "actors")+s.count(t, "users") != 0 {
			t.Fatal("validation failure must not write")
		}
	})

	t.Run("creates family and drops blank actors", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-family", "token-ann", createRossi)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %v", rec.Code, body)
		}
		if body["success"] != true || body["family_id"] == nil {
			t.Fatalf("unexpected body %v", body)
		}

		if n := s.count(t, "actors"); n != 1 {
			t.Errorf("expected 1 actor, got %d", n)
		}

		var start, pending, paid, actorSum int
		s.db.QueryRow("SELECT coins_start_month, coins_pending, coins_paid FROM families").Scan(&start, &pending, &paid)
		s.db.QueryRow("SELECT COALESCE(SUM(coins_start_month), 0) FROM actors").Scan(&actorSum)
		if start != pending || start != actorSum || paid != 0 {
			t.Errorf("aggregate mismatch: start=%d pending=%d paid=%d actors=%d", start, pending, paid, actorSum)
		}
	})
}

func TestJoinSearchAndActivities(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := newTestServer(t)

	_, created := s.do(t, http.MethodPost, "/functions/v1/create-family", "token-ann", createRossi)
	familyID := int64(created["family_id"].(float64))

	t.Run("activity before joining", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-activity", "token-bob",
			`{"title":"Walk","type":"Caring of","scheduled_at":"2025-06-01T09:00:00Z","ends_at":"2025-06-01T10:00:00Z"}`)
		if rec.Code != http.StatusBadRequest || body["error"] != ErrNoFamily {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("search hides pin", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/join-family-search", "token-bob", `{"query":"ross"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		families := body["families"].([]interface{})
		if len(families) != 1 {
			t.Fatalf("expected 1 family, got %v", families)
		}
		if strings.Contains(rec.Body.String(), "1234") {
			t.Error("search response leaked the PIN")
		}
	})

	t.Run("unknown family", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/join-pin", "token-bob", `{"family_id":999,"pin":"1234"}`)
		if rec.Code != http.StatusNotFound || body["error"] != ErrFamilyNotFound {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("incorrect pin", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/join-pin", "token-bob",
			`{"family_id":`+itoa(familyID)+`,"pin":"9999"}`)
		if rec.Code != http.StatusForbidden || body["error"] != ErrIncorrectPIN {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("missing pin", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/functions/v1/join-pin", "token-bob", `{"family_id":`+itoa(familyID)+`}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("join", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/join-pin", "token-bob",
			`{"family_id":`+itoa(familyID)+`,"pin":"1234"}`)
		if rec.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("got %d %v", rec.Code, body)
		}
	})

	t.Run("profile", func(t *testing.T) {
		rec, body := s.do(t, http.MethodGet, "/functions/v1/me", "token-bob", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		user := body["user"].(map[string]interface{})
		if user["role"] != "member" || user["full_name"] != "Unknown" {
			t.Errorf("unexpected user %v", user)
		}
		family := body["family"].(map[string]interface{})
		if int64(family["id"].(float64)) != familyID {
			t.Errorf("unexpected family %v", family)
		}
		if len(body["actors"].([]interface{})) != 1 {
			t.Errorf("expected 1 actor, got %v", body["actors"])
		}
	})

	t.Run("create and list activities", func(t *testing.T) {
		rec, body := s.do(t, http.MethodPost, "/functions/v1/create-activity", "token-bob",
			`{"title":"Walk","type":"Caring of","actor_id":1,"scheduled_at":"2025-06-01T09:00:00Z","ends_at":"2025-06-01T10:00:00Z"}`)
		if rec.Code != http.StatusOK || body["activity_id"] == nil {
			t.Fatalf("got %d %v", rec.Code, body)
		}

		rec, body = s.do(t, http.MethodPost, "/functions/v1/create-activity", "token-bob",
			`{"title":"Walk","type":"Caring of","scheduled_at":"2025-06-01T09:00:00Z","ends_at":"2025-06-01T08:00:00Z"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for reversed range, got %d %v", rec.Code, body)
		}

		rec, body = s.do(t, http.MethodGet, "/functions/v1/activities?limit=10", "token-ann", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(body["activities"].([]interface{})) != 1 {
			t.Errorf("expected 1 activity, got %v", body["activities"])
		}

		rec, _ = s.do(t, http.MethodGet, "/functions/v1/activities?limit=abc", "token-ann", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for bad limit, got %d", rec.Code)
		}
	})
}

func TestProfileNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/functions/v1/me", "token-bob", "")
	if rec.Code != http.StatusNotFound || body["error"] != ErrProfileNotFound {
		t.Fatalf("got %d %v", rec.Code, body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}

	rec, body := s.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "starting" {
		t.Errorf("readyz before ready: got %d %v", rec.Code, body)
	}

	s.status.CompleteStep(StepDatabase)
	s.status.MarkReady()

	rec, body = s.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK || body["database"] != "ok" {
		t.Errorf("readyz after ready: got %d %v", rec.Code, body)
	}
}

func TestStartupStatusProgress(t *testing.T) {
	status := NewStartupStatus("a", "b", "c", "d")
	status.CompleteStep("a")
	status.CompleteStep("unknown")
	if got := status.snapshot().Progress; got != 25 {
		t.Errorf("progress = %d, want 25", got)
	}
	status.MarkReady()
	if !status.IsReady() || status.snapshot().Progress != 100 {
		t.Error("MarkReady should complete progress")
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
