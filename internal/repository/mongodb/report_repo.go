package mongodb

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportRepo struct{ col *mongo.Collection }

func NewReportRepo(db *mongo.Database) *ReportRepo {
	return &ReportRepo{col: db.Collection(reportsCollection)}
}

var _ repository.ReportRepository = (*ReportRepo)(nil)

func (r *ReportRepo) Insert(ctx context.Context, rep *models.Report) error {
	doc := toReportDoc(rep)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rep.ID = oid.Hex()
	}
	return nil
}

func (r *ReportRepo) FindByID(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	var doc reportDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	m := doc.model()
	return &m, nil
}

func (r *ReportRepo) Find(ctx context.Context, q repository.ReportQuery) ([]models.Report, error) {
	dir := 1
	if q.Desc {
		dir = -1
	}
	// document keys share the JSON spelling of the sort fields
	key := repository.SanitizeSort(q.Sort, "createdAt")
	opts := options.Find().
		SetSort(bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := r.col.Find(ctx, buildFilter(q.Filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Report, 0, q.Limit)
	for cur.Next(ctx) {
		var doc reportDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.model())
	}
	return out, cur.Err()
}

func (r *ReportRepo) Count(ctx context.Context, f repository.ReportFilter) (int64, error) {
	return r.col.CountDocuments(ctx, buildFilter(f))
}

func (r *ReportRepo) Update(ctx context.Context, id string, version int64, p models.ReportPatch) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	set := bson.M{"updatedAt": p.UpdatedAt}
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	if p.AdminNotes != nil {
		set["adminNotes"] = *p.AdminNotes
	}
	if p.AssignedToID != nil {
		aid, err := primitive.ObjectIDFromHex(*p.AssignedToID)
		if err != nil {
			return nil, repository.ErrNotFound
		}
		set["assignedTo"] = aid
	}
	if p.ResolvedAt != nil {
		set["resolvedAt"] = *p.ResolvedAt
	}

	var doc reportDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "version": version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		m := doc.model()
		return &m, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	// no match: either the report is gone or another writer bumped the version
	n, cerr := r.col.CountDocuments(ctx, bson.M{"_id": oid})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrVersionConflict
}

func (r *ReportRepo) StatusCounts(ctx context.Context, since *time.Time) (models.StatusCounts, error) {
	pipeline := mongo.Pipeline{}
	if since != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": *since}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":        nil,
		"total":      bson.M{"$sum": 1},
		"pending":    countIf("$status", string(models.StatusPending)),
		"inProgress": countIf("$status", string(models.StatusInProgress)),
		"resolved":   countIf("$status", string(models.StatusResolved)),
		"rejected":   countIf("$status", string(models.StatusRejected)),
	}}})

	var rows []struct {
		Total      int64 `bson:"total"`
		Pending    int64 `bson:"pending"`
		InProgress int64 `bson:"inProgress"`
		Resolved   int64 `bson:"resolved"`
		Rejected   int64 `bson:"rejected"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return models.StatusCounts{}, err
	}
	if len(rows) == 0 {
		return models.StatusCounts{}, nil
	}
	return models.StatusCounts{
		Total:      rows[0].Total,
		Pending:    rows[0].Pending,
		InProgress: rows[0].InProgress,
		Resolved:   rows[0].Resolved,
		Rejected:   rows[0].Rejected,
	}, nil
}

func (r *ReportRepo) CategoryBreakdown(ctx context.Context) ([]models.CategoryStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$category",
			"count":    bson.M{"$sum": 1},
			"pending":  countIf("$status", string(models.StatusPending)),
			"resolved": countIf("$status", string(models.StatusResolved)),
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	var rows []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
		Pending  int64  `bson:"pending"`
		Resolved int64  `bson:"resolved"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}
	out := make([]models.CategoryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.CategoryStat{
			Category: models.Category(row.Category),
			Count:    row.Count,
			Pending:  row.Pending,
			Resolved: row.Resolved,
		})
	}
	return out, nil
}

func (r *ReportRepo) CountResolvedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{
		"status":     string(models.StatusResolved),
		"resolvedAt": bson.M{"$gte": since},
	})
}

func (r *ReportRepo) AvgResolutionDays(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"resolvedAt": bson.M{"$ne": nil}}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"avgTime": bson.M{"$avg": bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{"$resolvedAt", "$createdAt"}},
				float64(24 * time.Hour / time.Millisecond),
			}}},
		}}},
	}
	var rows []struct {
		AvgTime float64 `bson:"avgTime"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].AvgTime, nil
}

func (r *ReportRepo) DailyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
			"total":    bson.M{"$sum": 1},
			"resolved": countIf("$status", string(models.StatusResolved)),
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	var rows []struct {
		Date     string `bson:"_id"`
		Total    int64  `bson:"total"`
		Resolved int64  `bson:"resolved"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}
	out := make([]models.TrendPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.TrendPoint{Date: row.Date, Total: row.Total, Resolved: row.Resolved})
	}
	return out, nil
}

func (r *ReportRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// buildFilter translates a ReportFilter into a bson query.
func buildFilter(f repository.ReportFilter) bson.M {
	filter := bson.M{}
	if s := strings.TrimSpace(f.Category); s != "" {
		filter["category"] = s
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		filter["status"] = s
	}
	if s := strings.TrimSpace(f.IssueType); s != "" {
		filter["issueType"] = s
	}
	if q := strings.TrimSpace(f.Q); q != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"location.address": rx},
		}
	}
	return filter
}

func countIf(field, value string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{field, value}}, 1, 0}}}
}
