package handlers

import (
	"net/http"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/services"
)

// handleListIssues handles GET /api/issues. Supported filters: status,
// category, assigned_to, visibility and mine=true. Students only ever see
// their own issues plus public ones.
func (h *APIHandler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	status := database.IssueStatus(q.Get("status"))
	if status != "" && !status.IsValid() {
		api.RespondError(w, http.StatusBadRequest, "Unknown status filter")
		return
	}

	params := api.ParsePagination(r)
	filter := services.IssueFilter{
		Status:     status,
		Category:   q.Get("category"),
		AssignedTo: q.Get("assigned_to"),
		Visibility: database.IssueVisibility(q.Get("visibility")),
		Limit:      params.PerPage,
		Offset:     params.Offset(),
	}
	if queryBool(r, "mine") {
		filter.ReportedBy = actor.UserID
	}

	issues, total, err := h.issues.List(actor, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(api.IssuesToListItems(issues), params, total))
}

// handleReportIssue handles POST /api/issues
func (h *APIHandler) handleReportIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req api.CreateIssueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	issue, err := h.issues.Report(actor, services.ReportInput{
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Priority:    database.IssuePriority(req.Priority),
		Visibility:  database.IssueVisibility(req.Visibility),
		Images:      req.Images,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, api.IssueResponse{Issue: *issue})
}

// handleGetIssue handles GET /api/issues/{id}. The merge record the issue
// takes part in, as primary or as a linked duplicate, is attached.
func (h *APIHandler) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	issue, err := h.issues.Get(actor, r.PathValue("id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	record, err := h.merges.GetMergeForIssue(issue)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.IssueResponse{
		Issue: *issue,
		Merge: api.MergeRecordToResponse(record),
	})
}

// handleUpdateStatus handles PUT /api/issues/{id}/status
func (h *APIHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	issue, err := h.issues.UpdateStatus(r.Context(), actorFrom(r), r.PathValue("id"), services.StatusUpdate{
		Status:           database.IssueStatus(req.Status),
		Remarks:          req.Remarks,
		ResolutionImages: req.ResolutionImages,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.IssueResponse{Issue: *issue})
}

// handleAssignIssue handles PUT /api/issues/{id}/assign
func (h *APIHandler) handleAssignIssue(w http.ResponseWriter, r *http.Request) {
	var req api.AssignIssueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	issue, err := h.issues.Assign(r.Context(), actorFrom(r), r.PathValue("id"), req.AssigneeID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.IssueResponse{Issue: *issue})
}

// handleAddRemark handles POST /api/issues/{id}/remarks
func (h *APIHandler) handleAddRemark(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req api.AddRemarkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	issue, err := h.issues.AddRemark(actor, r.PathValue("id"), req.Text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, issue.Remarks)
}

// handleIssueTimeline handles GET /api/issues/{id}/timeline
func (h *APIHandler) handleIssueTimeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	tl, err := h.issues.Timeline(actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.TimelineResponse{IssueID: id, Timeline: tl})
}
