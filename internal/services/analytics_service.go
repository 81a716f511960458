package services

import (
	"math"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/timeline"
)

// AnalyticsSummary is the management overview of the issue backlog
type AnalyticsSummary struct {
	TotalIssues         int64                          `json:"total_issues"`
	OpenIssues          int64                          `json:"open_issues"`
	ResolvedIssues      int64                          `json:"resolved_issues"`
	MergedIssues        int64                          `json:"merged_issues"`
	ActiveMerges        int64                          `json:"active_merges"`
	ByStatus            map[database.IssueStatus]int64 `json:"by_status"`
	ByCategory          map[string]int64               `json:"by_category"`
	MeanResolutionHours *float64                       `json:"mean_resolution_hours,omitempty"`
}

// AnalyticsService computes backlog statistics for management
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// Summary returns counts by status and category plus the mean time from
// report to first resolution
func (s *AnalyticsService) Summary() (*AnalyticsSummary, error) {
	byStatus, err := database.CountIssuesByStatus(s.db)
	if err != nil {
		return nil, StoreFailure(err, "failed to count issues by status")
	}
	byCategory, err := database.CountIssuesByCategory(s.db)
	if err != nil {
		return nil, StoreFailure(err, "failed to count issues by category")
	}

	summary := &AnalyticsSummary{ByStatus: byStatus, ByCategory: byCategory}
	for status, n := range byStatus {
		summary.TotalIssues += n
		switch {
		case status.IsOpen():
			summary.OpenIssues += n
		case status == database.IssueStatusResolved || status == database.IssueStatusClosed:
			summary.ResolvedIssues += n
		case status == database.IssueStatusMerged:
			summary.MergedIssues += n
		}
	}

	if err := s.db.Model(&database.MergeRecord{}).Count(&summary.ActiveMerges).Error; err != nil {
		return nil, StoreFailure(err, "failed to count merge records")
	}

	mean, err := s.meanResolutionHours()
	if err != nil {
		return nil, err
	}
	summary.MeanResolutionHours = mean
	return summary, nil
}

func (s *AnalyticsService) meanResolutionHours() (*float64, error) {
	var issues []database.Issue
	err := s.db.Select("id", "status_history").
		Where("status IN ?", []database.IssueStatus{database.IssueStatusResolved, database.IssueStatusClosed}).
		Find(&issues).Error
	if err != nil {
		return nil, StoreFailure(err, "failed to load resolved issues")
	}

	var total float64
	var count int
	for _, issue := range issues {
		reported, ok := timeline.FirstReached(issue.StatusHistory, database.IssueStatusReported)
		if !ok {
			continue
		}
		resolved, ok := timeline.FirstReached(issue.StatusHistory, database.IssueStatusResolved)
		if !ok || resolved.Before(reported) {
			continue
		}
		total += resolved.Sub(reported).Hours()
		count++
	}
	if count == 0 {
		return nil, nil
	}

	mean := math.Round(total/float64(count)*10) / 10
	return &mean, nil
}
