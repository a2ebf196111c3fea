package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mwalefaith2021/jjschool/core/payment"
)

type paymentRepository struct {
	coll *mongo.Collection
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{coll: db.coll(paymentsColl)}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, p); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	var p payment.Payment
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	q := bson.M{}
	if filter.StudentID != "" {
		q["student_id"] = filter.StudentID
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cur, err := repo.coll.Find(ctx, q, sortBy("created_at"))
	if err != nil {
		return nil, err
	}
	payments := make([]payment.Payment, 0)
	if err = cur.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (repo *paymentRepository) UpdatePaymentIf(ctx context.Context, p payment.Payment, expectedStatus string) (payment.Payment, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "status": expectedStatus}, p)
	if err != nil {
		return payment.Payment{}, err
	}
	if res.MatchedCount == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (repo *paymentRepository) TotalsByStatus(ctx context.Context, studentID string) ([]payment.StatusTotal, error) {
	pipeline := mongo.Pipeline{}
	if studentID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{{Key: "student_id", Value: studentID}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$status"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
	}}})

	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	totals := make([]payment.StatusTotal, 0)
	if err = cur.All(ctx, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}
