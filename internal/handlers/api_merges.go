package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/jobs"
	"github.com/fixithostel/fixit/internal/notify"
	"github.com/fixithostel/fixit/internal/services"
)

// handleMergeIssues handles POST /api/issues/{id}/merge. The path issue is
// the primary; the body names the duplicates to fold into it.
func (h *APIHandler) handleMergeIssues(w http.ResponseWriter, r *http.Request) {
	var req api.MergeIssuesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actor := actorFrom(r)
	primaryID := r.PathValue("id")
	record, err := h.merges.Merge(primaryID, req.DuplicateIssueIDs, actor.UserID)
	if err != nil {
		log.Printf("API: merge into %s by %s rejected: %v", primaryID, actor.UserID, err)
		respondServiceError(w, r, err)
		return
	}

	h.issues.AnnounceMerge(r.Context(), record, notify.EventIssueMerged, actor)
	api.RespondJSON(w, http.StatusCreated, api.MergeRecordToResponse(record))
}

// handleListMerges handles GET /api/merges
func (h *APIHandler) handleListMerges(w http.ResponseWriter, r *http.Request) {
	records, err := h.merges.ListMerges()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]*api.MergeRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, api.MergeRecordToResponse(&records[i]))
	}
	api.RespondJSON(w, http.StatusOK, out)
}

// mergeAuditResponse is the response body for GET /api/merges/audit
type mergeAuditResponse struct {
	LastRun  time.Time      `json:"last_run"`
	Findings []jobs.Finding `json:"findings"`
}

// handleMergeAudit handles GET /api/merges/audit. It reports the findings of
// the last scheduled audit and audits on demand with ?refresh=true or when no
// audit has run yet.
func (h *APIHandler) handleMergeAudit(w http.ResponseWriter, r *http.Request) {
	lastRun, findings := h.auditor.LastRun()
	if lastRun.IsZero() || r.URL.Query().Get("refresh") == "true" {
		if _, err := h.auditor.Audit(); err != nil {
			respondServiceError(w, r, services.StoreFailure(err, "merge audit failed"))
			return
		}
		lastRun, findings = h.auditor.LastRun()
	}

	resp := mergeAuditResponse{LastRun: lastRun, Findings: findings}
	if resp.Findings == nil {
		resp.Findings = []jobs.Finding{}
	}
	api.RespondJSON(w, http.StatusOK, resp)
}

// handleGetMerge handles GET /api/merges/{mergeId}
func (h *APIHandler) handleGetMerge(w http.ResponseWriter, r *http.Request) {
	record, err := h.merges.GetLinkedIssues(r.PathValue("mergeId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.MergeRecordToResponse(record))
}

// handleUnmerge handles DELETE /api/merges/{mergeId}. The response carries
// the record as it was before deletion so clients can refetch the issues.
func (h *APIHandler) handleUnmerge(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	record, err := h.merges.Unmerge(r.PathValue("mergeId"), actor.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.issues.AnnounceMerge(r.Context(), record, notify.EventIssueUnmerged, actor)
	api.RespondJSON(w, http.StatusOK, api.MergeRecordToResponse(record))
}
