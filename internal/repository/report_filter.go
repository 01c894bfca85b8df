package repository

import (
	"strings"

	"citylink/internal/models"
)

type ReportFilter struct {
	Category  string
	Status    string
	IssueType string
	// Q is a case-insensitive literal substring matched against title,
	// description and location.address.
	Q string
}

type ReportQuery struct {
	Filter ReportFilter
	Sort   string // one of SortFields
	Desc   bool
	Limit  int
	Offset int
}

type UserFilter struct {
	Role   string
	Active *bool
}

// SortFields lists the report fields a listing may be ordered by, in their
// JSON spelling. Nested fields use dotted paths.
var SortFields = []string{
	"createdAt", "updatedAt", "resolvedAt",
	"title", "description", "category", "issueType", "status", "priority", "adminNotes",
	"location.address", "location.coordinates.latitude", "location.coordinates.longitude",
	"reportedBy.name", "reportedBy.email",
	"votes.upvotes", "votes.downvotes",
}

// ValidSort reports whether s names a sortable field.
func ValidSort(s string) bool {
	s = strings.TrimSpace(s)
	for _, f := range SortFields {
		if f == s {
			return true
		}
	}
	return false
}

// SanitizeSort returns s when it is a sortable field, def otherwise.
func SanitizeSort(s, def string) string {
	if ValidSort(s) {
		return strings.TrimSpace(s)
	}
	return def
}

// SanitizeOrder reports whether the order is descending; anything but "asc" is.
func SanitizeOrder(o string) bool {
	return strings.ToLower(strings.TrimSpace(o)) != "asc"
}

// Matches applies the filter in memory. Backends that cannot push a filter
// down share this definition.
func (f ReportFilter) Matches(r *models.Report) bool {
	if f.Category != "" && string(r.Category) != f.Category {
		return false
	}
	if f.Status != "" && string(r.Status) != f.Status {
		return false
	}
	if f.IssueType != "" && string(r.IssueType) != f.IssueType {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Q)); q != "" {
		return strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(strings.ToLower(r.Location.Address), q)
	}
	return true
}
