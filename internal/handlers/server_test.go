package handlers

import (
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/jobs"
	"github.com/fixithostel/fixit/internal/middleware"
	"github.com/fixithostel/fixit/internal/notify"
	"github.com/fixithostel/fixit/internal/services"
	"github.com/fixithostel/fixit/internal/testhelpers"
)

// testServer is the full router wired the way cmd/fixit wires it, backed by
// an in-memory database and a recording dispatcher
type testServer struct {
	t        *testing.T
	db       *gorm.DB
	jwtAuth  *middleware.JWTAuthMiddleware
	events   *EventsHub
	recorder *notify.Recorder
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		JWTSecret:      "handler-test-secret",
		JWTExpiryHours: 1,
		SkipPaths:      []string{"/health", "/auth/login", "/auth/register"},
	})

	recorder := &notify.Recorder{}
	events := NewEventsHub([]string{"*"})
	merges := services.NewMergeService(db)
	users := services.NewUserService(db)
	issues := services.NewIssueService(db, merges, notify.NewMulti(recorder, events))

	mux := http.NewServeMux()
	NewHTTPHandler(db).SetupRoutes(mux)
	NewAuthHandler(jwtAuth, users).SetupRoutes(mux)
	NewAPIHandler(issues, merges, users, services.NewAnalyticsService(db), services.NewBoardService(db), jobs.NewMergeAuditor(db)).SetupRoutes(mux)
	events.SetupRoutes(mux)

	return &testServer{
		t:        t,
		db:       db,
		jwtAuth:  jwtAuth,
		events:   events,
		recorder: recorder,
		handler:  jwtAuth.Wrap(mux),
	}
}

// user creates an account with role and returns it with a signed token
func (s *testServer) user(id string, role database.UserRole) (*database.User, string) {
	s.t.Helper()
	u := testhelpers.NewUserBuilder().
		WithID(id).
		WithEmail(id + "@hostel.test").
		WithRole(role).
		Create(s.t, s.db)
	token, err := s.jwtAuth.GenerateToken(u)
	if err != nil {
		s.t.Fatalf("failed to sign token: %v", err)
	}
	return u, token
}

// do executes a request as the holder of token; body may be nil
func (s *testServer) do(method, path, token string, body interface{}) *testhelpers.HTTPTestContext {
	s.t.Helper()
	ctx := testhelpers.NewHTTPTestContext(s.t, method, path, nil)
	if token != "" {
		ctx.WithBearerToken(token)
	}
	if body != nil {
		ctx.WithJSONBody(body)
	}
	return ctx.Execute(s.handler)
}
