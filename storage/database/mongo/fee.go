package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mwalefaith2021/jjschool/core/fee"
)

type feeRepository struct {
	coll *mongo.Collection
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{coll: db.coll(feesColl)}
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	f.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, f); err != nil {
		return fee.Fee{}, err
	}
	return f, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string) (fee.Fee, error) {
	var f fee.Fee
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fee.Fee{}, fee.ErrNotFound
		}
		return fee.Fee{}, err
	}
	return f, nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	q := bson.M{}
	if filter.StudentID != "" {
		q["student_id"] = filter.StudentID
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cur, err := repo.coll.Find(ctx, q, sortBy("due_date"))
	if err != nil {
		return nil, err
	}
	fees := make([]fee.Fee, 0)
	if err = cur.All(ctx, &fees); err != nil {
		return nil, err
	}
	return fees, nil
}

func (repo *feeRepository) UpdateFeeIf(ctx context.Context, f fee.Fee, expectedVersion int) (fee.Fee, error) {
	f.Version = expectedVersion + 1
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": f.ID, "version": expectedVersion}, f)
	if err != nil {
		return fee.Fee{}, err
	}
	if res.MatchedCount == 0 {
		return fee.Fee{}, fee.ErrNotFound
	}
	return f, nil
}

func (repo *feeRepository) TotalsByStatus(ctx context.Context) ([]fee.StatusTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "paid_amount", Value: bson.D{{Key: "$sum", Value: "$paid_amount"}}},
		}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	totals := make([]fee.StatusTotal, 0)
	if err = cur.All(ctx, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}
