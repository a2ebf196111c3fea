package mongodb

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mwalefaith2021/jjschool/core"
)

// Collections
const (
	countersColl   = "counters"
	usersColl      = "users"
	admissionsColl = "admissions"
	signupsColl    = "pending_signups"
	paymentsColl   = "payments"
	feesColl       = "fees"
)

// Unique index names, matched against duplicate key errors.
const (
	usernameIndex      = "users_username_key"
	userEmailIndex     = "users_email_key"
	appNumberIndex     = "admissions_application_number_key"
	signupAppIDIndex   = "pending_signups_application_id_key"
	defaultConnTimeout = 10 * time.Second
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to conf.Database.URI and waits for the server to answer.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	timeout := conf.Database.ConnTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	db := &DB{client: client, db: client.Database(conf.Database.Name)}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = db.Ping(pingCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) coll(name string) *mongo.Collection {
	return db.db.Collection(name)
}

func uniqueIndex(name string, keys ...string) mongo.IndexModel {
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: 1})
	}
	return mongo.IndexModel{Keys: doc, Options: options.Index().SetName(name).SetUnique(true)}
}

func index(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

// EnsureIndexes creates the unique and lookup indexes of every collection. It is idempotent.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersColl: {
			uniqueIndex(usernameIndex, "username"),
			uniqueIndex(userEmailIndex, "email"),
			index("users_role_created_idx", bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		admissionsColl: {
			uniqueIndex(appNumberIndex, "application_number"),
			index("admissions_email_idx", bson.D{{Key: "contact_info.email", Value: 1}}),
			index("admissions_status_idx", bson.D{{Key: "status", Value: 1}, {Key: "date_submitted", Value: -1}}),
		},
		signupsColl: {
			uniqueIndex(signupAppIDIndex, "application_id"),
			index("pending_signups_status_idx", bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		paymentsColl: {
			index("payments_student_id_idx", bson.D{{Key: "student_id", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		feesColl: {
			index("fees_student_id_idx", bson.D{{Key: "student_id", Value: 1}, {Key: "due_date", Value: -1}}),
		},
	}
	for coll, models := range indexes {
		if _, err := db.coll(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// duplicateIndex returns the name of the unique index a write violated, if any.
func duplicateIndex(err error, names ...string) (string, bool) {
	if !mongo.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	for _, name := range names {
		if strings.Contains(msg, name) {
			return name, true
		}
	}
	return "", true
}

func newID() string {
	return uuid.NewString()
}

func containsRegex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

func sortBy(field string) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: -1}})
}
