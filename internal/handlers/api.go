package handlers

import (
	"net/http"
	"strconv"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/jobs"
	"github.com/fixithostel/fixit/internal/middleware"
	"github.com/fixithostel/fixit/internal/services"
)

// APIHandler handles the JSON API used by the web UI
type APIHandler struct {
	issues    *services.IssueService
	merges    *services.MergeService
	users     *services.UserService
	analytics *services.AnalyticsService
	boards    *services.BoardService
	auditor   *jobs.MergeAuditor
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(issues *services.IssueService, merges *services.MergeService, users *services.UserService, analytics *services.AnalyticsService, boards *services.BoardService, auditor *jobs.MergeAuditor) *APIHandler {
	return &APIHandler{
		issues:    issues,
		merges:    merges,
		users:     users,
		analytics: analytics,
		boards:    boards,
		auditor:   auditor,
	}
}

var (
	staffRoles      = []database.UserRole{database.UserRoleCaretaker, database.UserRoleManagement}
	managementRoles = []database.UserRole{database.UserRoleManagement}
)

// SetupRoutes sets up all API routes. Every route sits behind the JWT
// middleware; role checks are applied per route.
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Issues
	mux.HandleFunc("GET /api/issues", h.handleListIssues)
	mux.HandleFunc("POST /api/issues", h.handleReportIssue)
	mux.HandleFunc("GET /api/issues/{id}", h.handleGetIssue)
	mux.HandleFunc("PUT /api/issues/{id}/status", middleware.RequireRole(h.handleUpdateStatus, staffRoles...))
	mux.HandleFunc("PUT /api/issues/{id}/assign", middleware.RequireRole(h.handleAssignIssue, managementRoles...))
	mux.HandleFunc("POST /api/issues/{id}/remarks", h.handleAddRemark)
	mux.HandleFunc("GET /api/issues/{id}/timeline", h.handleIssueTimeline)

	// Merges
	mux.HandleFunc("POST /api/issues/{id}/merge", middleware.RequireRole(h.handleMergeIssues, staffRoles...))
	mux.HandleFunc("GET /api/merges", middleware.RequireRole(h.handleListMerges, staffRoles...))
	mux.HandleFunc("GET /api/merges/audit", middleware.RequireRole(h.handleMergeAudit, managementRoles...))
	mux.HandleFunc("GET /api/merges/{mergeId}", h.handleGetMerge)
	mux.HandleFunc("DELETE /api/merges/{mergeId}", middleware.RequireRole(h.handleUnmerge, staffRoles...))

	// Analytics and staff directory
	mux.HandleFunc("GET /api/analytics/summary", middleware.RequireRole(h.handleAnalyticsSummary, managementRoles...))
	mux.HandleFunc("GET /api/users", middleware.RequireRole(h.handleListUsers, managementRoles...))

	// Boards
	mux.HandleFunc("GET /api/announcements", h.handleListAnnouncements)
	mux.HandleFunc("POST /api/announcements", middleware.RequireRole(h.handleCreateAnnouncement, managementRoles...))
	mux.HandleFunc("GET /api/lost-found", h.handleListLostFound)
	mux.HandleFunc("POST /api/lost-found", h.handleReportLostFound)
	mux.HandleFunc("PUT /api/lost-found/{id}/claim", h.handleClaimLostFound)
}

// actorFrom returns the authenticated user of r
func actorFrom(r *http.Request) services.Actor {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return services.Actor{}
	}
	return services.Actor{UserID: claims.UserID, Role: claims.Role}
}

// requireActor writes a 401 and returns false when r carries no claims
func requireActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor := actorFrom(r)
	if actor.UserID == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return actor, false
	}
	return actor, true
}

// handleAnalyticsSummary handles GET /api/analytics/summary
func (h *APIHandler) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, summary)
}

// handleListUsers handles GET /api/users?role=caretaker
func (h *APIHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := database.UserRole(r.URL.Query().Get("role"))
	if role == "" {
		role = database.UserRoleCaretaker
	}
	if !validRole(role) {
		api.RespondError(w, http.StatusBadRequest, "Unknown role")
		return
	}
	users, err := h.users.ListByRole(role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, users)
}

// queryBool parses a boolean query parameter, treating garbage as false
func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func validRole(role database.UserRole) bool {
	for _, r := range database.ValidUserRoles() {
		if r == role {
			return true
		}
	}
	return false
}
