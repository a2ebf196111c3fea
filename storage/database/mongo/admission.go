package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mwalefaith2021/jjschool/core/admission"
)

type admissionRepository struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

var _ admission.Repository = (*admissionRepository)(nil) // interface compliance check

func NewAdmissionRepository(db *DB) admission.Repository {
	return &admissionRepository{coll: db.coll(admissionsColl), counters: db.coll(countersColl)}
}

type counter struct {
	Key string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func (repo *admissionRepository) NextSequence(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c counter
	err := repo.counters.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&c)
	if err != nil {
		return 0, err
	}
	return c.Seq, nil
}

func (repo *admissionRepository) CreateAdmission(ctx context.Context, adm admission.Admission) (admission.Admission, error) {
	adm.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, adm); err != nil {
		if _, dup := duplicateIndex(err, appNumberIndex); dup {
			return admission.Admission{}, admission.ErrDuplicateNumber
		}
		return admission.Admission{}, err
	}
	return adm, nil
}

func (repo *admissionRepository) GetAdmission(ctx context.Context, id string) (admission.Admission, error) {
	var adm admission.Admission
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&adm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return admission.Admission{}, admission.ErrNotFound
		}
		return admission.Admission{}, err
	}
	return adm, nil
}

func (repo *admissionRepository) QueryAdmissions(ctx context.Context, filter admission.QueryFilter) ([]admission.Admission, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Email != "" {
		q["contact_info.email"] = filter.Email
	}
	if filter.Search != "" {
		re := containsRegex(filter.Search)
		q["$or"] = bson.A{
			bson.M{"personal_info.first_name": re},
			bson.M{"personal_info.last_name": re},
			bson.M{"application_number": re},
			bson.M{"contact_info.email": re},
		}
	}

	cur, err := repo.coll.Find(ctx, q, sortBy("date_submitted"))
	if err != nil {
		return nil, err
	}
	adms := make([]admission.Admission, 0)
	if err = cur.All(ctx, &adms); err != nil {
		return nil, err
	}
	return adms, nil
}

func (repo *admissionRepository) UpdateAdmissionIf(ctx context.Context, adm admission.Admission, expectedStatus string) (admission.Admission, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": adm.ID, "status": expectedStatus}, adm)
	if err != nil {
		return admission.Admission{}, err
	}
	if res.MatchedCount == 0 {
		if _, err = repo.GetAdmission(ctx, adm.ID); err != nil {
			return admission.Admission{}, err
		}
		return admission.Admission{}, admission.ErrStatusConflict
	}
	return adm, nil
}

func (repo *admissionRepository) CountByStatus(ctx context.Context) ([]admission.StatusCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	counts := make([]admission.StatusCount, 0)
	if err = cur.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
