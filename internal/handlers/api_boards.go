package handlers

import (
	"net/http"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/database"
)

// handleListAnnouncements handles GET /api/announcements?block=A
func (h *APIHandler) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	items, total, err := h.boards.ListAnnouncements(r.URL.Query().Get("block"), params.PerPage, params.Offset())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(items, params, total))
}

// handleCreateAnnouncement handles POST /api/announcements
func (h *APIHandler) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAnnouncementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	a := &database.Announcement{
		Title:       req.Title,
		Body:        req.Body,
		HostelBlock: req.HostelBlock,
		Pinned:      req.Pinned,
	}
	if err := h.boards.PostAnnouncement(actorFrom(r), a); err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, a)
}

// handleListLostFound handles GET /api/lost-found?kind=found&status=open
func (h *APIHandler) handleListLostFound(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	q := r.URL.Query()
	items, total, err := h.boards.ListLostFound(
		database.LostFoundKind(q.Get("kind")),
		database.LostFoundStatus(q.Get("status")),
		params.PerPage, params.Offset(),
	)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(items, params, total))
}

// handleReportLostFound handles POST /api/lost-found
func (h *APIHandler) handleReportLostFound(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req api.CreateLostFoundRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item := &database.LostFoundItem{
		Kind:        database.LostFoundKind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Images:      database.StringList(req.Images),
	}
	if err := h.boards.ReportLostFound(actor, item); err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, item)
}

// handleClaimLostFound handles PUT /api/lost-found/{id}/claim. An empty body
// marks the item claimed by the caller.
func (h *APIHandler) handleClaimLostFound(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req api.ClaimLostFoundRequest
	if err := api.DecodeOptionalJSON(r, &req); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	item, err := h.boards.ClaimLostFound(actor, r.PathValue("id"), req.ClaimedBy)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, item)
}
