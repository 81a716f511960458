package api

import (
	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/utils"
)

// issueTitleLength is the number of description characters shown as a title
const issueTitleLength = 80

// MergeRecordToResponse flattens a merge record and its links into the API
// shape: linked ids in link order plus a per-id detail map.
func MergeRecordToResponse(m *database.MergeRecord) *MergeRecordResponse {
	if m == nil {
		return nil
	}
	resp := &MergeRecordResponse{
		MergeID:            m.ID,
		PrimaryIssueID:     m.PrimaryIssueID,
		LinkedIssueIDs:     m.LinkedIssueIDs(),
		LinkedIssueDetails: make(map[string]LinkedIssueDetail, len(m.Links)),
		AllReporters:       append([]string{}, m.AllReporters...),
		MergedBy:           m.MergedBy,
		MergedAt:           m.MergedAt,
	}
	for _, l := range m.Links {
		resp.LinkedIssueDetails[l.IssueID] = LinkedIssueDetail{
			Title:       l.Title,
			ReportedBy:  l.ReportedBy,
			CreatedAt:   l.IssueCreatedAt,
			PriorStatus: l.PriorStatus,
		}
	}
	return resp
}

// IssueToListItem converts a database Issue to a compact list representation.
func IssueToListItem(i database.Issue) IssueListItem {
	return IssueListItem{
		ID:          i.ID,
		Title:       utils.TruncateText(i.Description, issueTitleLength),
		Category:    i.Category,
		Location:    i.Location,
		ReportedBy:  i.ReportedBy,
		Status:      i.Status,
		Priority:    i.Priority,
		Visibility:  i.Visibility,
		AssignedTo:  i.AssignedTo,
		MergeID:     i.MergeID,
		UpdateCount: len(i.StatusHistory),
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// IssuesToListItems converts a slice of database Issues to list items.
func IssuesToListItems(issues []database.Issue) []IssueListItem {
	items := make([]IssueListItem, len(issues))
	for i, issue := range issues {
		items[i] = IssueToListItem(issue)
	}
	return items
}
