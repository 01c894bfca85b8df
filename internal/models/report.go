package models

import "time"

type Category string

const (
	CategoryPothole         Category = "pothole"
	CategoryStreetlight     Category = "streetlight"
	CategoryWasteManagement Category = "waste_management"
	CategoryWaterLeak       Category = "water_leak"
	CategoryTrafficSignal   Category = "traffic_signal"
	CategoryRoadDamage      Category = "road_damage"
	CategoryPublicSafety    Category = "public_safety"
	CategoryNoiseComplaint  Category = "noise_complaint"
	CategoryOther           Category = "other"
)

// Categories lists every accepted report category.
var Categories = []Category{
	CategoryPothole, CategoryStreetlight, CategoryWasteManagement, CategoryWaterLeak, CategoryTrafficSignal,
	CategoryRoadDamage, CategoryPublicSafety, CategoryNoiseComplaint, CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type IssueType string

const (
	IssueEmergency IssueType = "emergency"
	IssueHigh      IssueType = "high"
	IssueMedium    IssueType = "medium"
	IssueLow       IssueType = "low"
)

var IssueTypes = []IssueType{IssueEmergency, IssueHigh, IssueMedium, IssueLow}

func (t IssueType) Valid() bool {
	for _, v := range IssueTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Statuses is ordered by workflow stage.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

const (
	DefaultPriority = 3
	UrgentPriority  = 5
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}

type Image struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

type Reporter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Votes struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	IssueType   IssueType `json:"issueType"`
	Status      Status    `json:"status"`
	Location    Location  `json:"location"`
	Images      []Image   `json:"images"`
	ReportedBy  Reporter  `json:"reportedBy"`

	// AssignedToID is the stored reference; AssignedTo is the resolved projection.
	AssignedToID string   `json:"-"`
	AssignedTo   *UserRef `json:"assignedTo,omitempty"`

	AdminNotes string     `json:"adminNotes,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Priority   int        `json:"priority"`
	Tags       []string   `json:"tags"`
	Votes      Votes      `json:"votes"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReportPatch carries a partial update. Nil fields are left untouched.
type ReportPatch struct {
	Status       *Status
	AdminNotes   *string
	AssignedToID *string
	ResolvedAt   *time.Time
	UpdatedAt    time.Time
}

type StatusCounts struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Rejected   int64 `json:"rejected"`
}

// Add increments the bucket for s and the total.
func (c *StatusCounts) Add(s Status, n int64) {
	c.Total += n
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusInProgress:
		c.InProgress += n
	case StatusResolved:
		c.Resolved += n
	case StatusRejected:
		c.Rejected += n
	}
}

func (c StatusCounts) Of(s Status) int64 {
	switch s {
	case StatusPending:
		return c.Pending
	case StatusInProgress:
		return c.InProgress
	case StatusResolved:
		return c.Resolved
	case StatusRejected:
		return c.Rejected
	}
	return 0
}

type CategoryStat struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
	Pending  int64    `json:"pending"`
	Resolved int64    `json:"resolved"`
}

type TrendPoint struct {
	Date     string `json:"date"`
	Total    int64  `json:"total"`
	Resolved int64  `json:"resolved"`
}
