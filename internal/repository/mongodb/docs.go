package mongodb

import (
	"time"

	"citylink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	reportsCollection = "reports"
	usersCollection   = "users"
)

type coordinatesDoc struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
}

type locationDoc struct {
	Address     string         `bson:"address"`
	Coordinates coordinatesDoc `bson:"coordinates"`
}

type imageDoc struct {
	Filename     string    `bson:"filename"`
	OriginalName string    `bson:"originalName"`
	Path         string    `bson:"path"`
	Size         int64     `bson:"size"`
	UploadedAt   time.Time `bson:"uploadedAt"`
}

type reporterDoc struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}

type votesDoc struct {
	Upvotes   int `bson:"upvotes"`
	Downvotes int `bson:"downvotes"`
}

type reportDoc struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Category    string              `bson:"category"`
	IssueType   string              `bson:"issueType"`
	Status      string              `bson:"status"`
	Location    locationDoc         `bson:"location"`
	Images      []imageDoc          `bson:"images"`
	ReportedBy  reporterDoc         `bson:"reportedBy"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty"`
	AdminNotes  string              `bson:"adminNotes,omitempty"`
	ResolvedAt  *time.Time          `bson:"resolvedAt,omitempty"`
	Priority    int                 `bson:"priority"`
	Tags        []string            `bson:"tags"`
	Votes       votesDoc            `bson:"votes"`
	Version     int64               `bson:"version"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

func toReportDoc(r *models.Report) reportDoc {
	d := reportDoc{
		Title:       r.Title,
		Description: r.Description,
		Category:    string(r.Category),
		IssueType:   string(r.IssueType),
		Status:      string(r.Status),
		Location: locationDoc{
			Address: r.Location.Address,
			Coordinates: coordinatesDoc{
				Latitude:  r.Location.Coordinates.Latitude,
				Longitude: r.Location.Coordinates.Longitude,
			},
		},
		Images:     make([]imageDoc, 0, len(r.Images)),
		ReportedBy: reporterDoc{Name: r.ReportedBy.Name, Email: r.ReportedBy.Email, Phone: r.ReportedBy.Phone},
		AdminNotes: r.AdminNotes,
		ResolvedAt: r.ResolvedAt,
		Priority:   r.Priority,
		Tags:       r.Tags,
		Votes:      votesDoc{Upvotes: r.Votes.Upvotes, Downvotes: r.Votes.Downvotes},
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	for _, img := range r.Images {
		d.Images = append(d.Images, imageDoc(img))
	}
	if oid, err := primitive.ObjectIDFromHex(r.AssignedToID); err == nil {
		d.AssignedTo = &oid
	}
	return d
}

func (d *reportDoc) model() models.Report {
	r := models.Report{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Category:    models.Category(d.Category),
		IssueType:   models.IssueType(d.IssueType),
		Status:      models.Status(d.Status),
		Location: models.Location{
			Address: d.Location.Address,
			Coordinates: models.Coordinates{
				Latitude:  d.Location.Coordinates.Latitude,
				Longitude: d.Location.Coordinates.Longitude,
			},
		},
		Images:     make([]models.Image, 0, len(d.Images)),
		ReportedBy: models.Reporter{Name: d.ReportedBy.Name, Email: d.ReportedBy.Email, Phone: d.ReportedBy.Phone},
		AdminNotes: d.AdminNotes,
		ResolvedAt: d.ResolvedAt,
		Priority:   d.Priority,
		Tags:       d.Tags,
		Votes:      models.Votes{Upvotes: d.Votes.Upvotes, Downvotes: d.Votes.Downvotes},
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, img := range d.Images {
		r.Images = append(r.Images, models.Image(img))
	}
	if d.AssignedTo != nil {
		r.AssignedToID = d.AssignedTo.Hex()
	}
	return r
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	Phone        string             `bson:"phone,omitempty"`
	Role         string             `bson:"role"`
	Active       bool               `bson:"isActive"`
	PasswordHash string             `bson:"password"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *userDoc) model() models.User {
	return models.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		Phone:     d.Phone,
		Role:      d.Role,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
