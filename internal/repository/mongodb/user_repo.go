package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{col: db.Collection(usersCollection), now: time.Now}
}

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *models.User, passwordHash string) error {
	now := r.now().UTC()
	doc := userDoc{
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		Name:         u.Name,
		Phone:        u.Phone,
		Role:         u.Role,
		Active:       u.Active,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid.Hex()
	}
	u.Email = doc.Email
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	doc, err := r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return nil, "", err
	}
	u := doc.model()
	return &u, doc.PasswordHash, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	doc, err := r.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}
	u := doc.model()
	return &u, nil
}

func (r *UserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", repository.ErrNotFound
	}
	doc, err := r.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return "", err
	}
	return doc.PasswordHash, nil
}

func (r *UserRepo) GetMany(ctx context.Context, ids []string) (map[string]models.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]models.User, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		u := docs[i].model()
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepo) List(ctx context.Context, f repository.UserFilter, limit, offset int) ([]models.User, int64, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Active != nil {
		filter["isActive"] = *f.Active
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetProjection(bson.M{"password": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, total, nil
}

func (r *UserRepo) CountActive(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"isActive": true})
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	return r.set(ctx, id, bson.M{"isActive": active})
}

func (r *UserRepo) SetRole(ctx context.Context, id, role string) (*models.User, error) {
	return r.set(ctx, id, bson.M{"role": role})
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, phone string) (*models.User, error) {
	return r.set(ctx, id, bson.M{"name": name, "phone": phone})
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.set(ctx, id, bson.M{"password": passwordHash})
	return err
}

func (r *UserRepo) set(ctx context.Context, id string, fields bson.M) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	fields["updatedAt"] = r.now().UTC()
	var doc userDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u := doc.model()
	return &u, nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*userDoc, error) {
	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}
