package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mwalefaith2021/jjschool/core/signup"
)

type signupRepository struct {
	coll *mongo.Collection
}

var _ signup.Repository = (*signupRepository)(nil) // interface compliance check

func NewSignupRepository(db *DB) signup.Repository {
	return &signupRepository{coll: db.coll(signupsColl)}
}

func (repo *signupRepository) CreateSignup(ctx context.Context, ps signup.PendingSignup) (signup.PendingSignup, error) {
	ps.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, ps); err != nil {
		if _, dup := duplicateIndex(err, signupAppIDIndex); dup {
			return signup.PendingSignup{}, signup.ErrSignupExists
		}
		return signup.PendingSignup{}, err
	}
	return ps, nil
}

func (repo *signupRepository) GetSignup(ctx context.Context, filter signup.GetFilter) (signup.PendingSignup, error) {
	var q bson.M
	switch {
	case filter.ID != "":
		q = bson.M{"_id": filter.ID}
	case filter.ApplicationID != "":
		q = bson.M{"application_id": filter.ApplicationID}
	default:
		return signup.PendingSignup{}, signup.ErrNotFound
	}

	var ps signup.PendingSignup
	if err := repo.coll.FindOne(ctx, q).Decode(&ps); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return signup.PendingSignup{}, signup.ErrNotFound
		}
		return signup.PendingSignup{}, err
	}
	return ps, nil
}

func (repo *signupRepository) QuerySignups(ctx context.Context, filter signup.QueryFilter) ([]signup.PendingSignup, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cur, err := repo.coll.Find(ctx, q, sortBy("created_at"))
	if err != nil {
		return nil, err
	}
	signups := make([]signup.PendingSignup, 0)
	if err = cur.All(ctx, &signups); err != nil {
		return nil, err
	}
	return signups, nil
}

func (repo *signupRepository) UpdateSignupIf(ctx context.Context, ps signup.PendingSignup, expectedStatus string) (signup.PendingSignup, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": ps.ID, "status": expectedStatus}, ps)
	if err != nil {
		return signup.PendingSignup{}, err
	}
	if res.MatchedCount == 0 {
		return signup.PendingSignup{}, signup.ErrNotFound
	}
	return ps, nil
}
