package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
)

// Open connects to the configured MongoDB deployment and waits for it to answer.
// The returned client is shared by the whole process; callers Disconnect it on shutdown.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(conf.Mongo.URI).
		SetAppName(conf.AppName).
		SetConnectTimeout(conf.Mongo.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = ping(ctx, client); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, client.Database(conf.Mongo.Database), nil
}

// ping waits for the deployment to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = client.Ping(ctx, readpref.Primary()); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "mongo ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "mongo ping timeout")
}

// EnsureIndexes creates the slug indexes of every document collection.
// Document slugs are unique per collection. The lecture slug index only serves lookups:
// empty sections index as null, so lecture slug uniqueness is checked by the content service.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, kind := range content.Kinds {
		_, err := db.Collection(kind.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetName("slug_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "sections.lectures.slug", Value: 1}},
				Options: options.Index().SetName("lecture_slug"),
			},
		})
		if err != nil {
			return errors.Wrapf(err, "creating %s indexes", kind.Collection())
		}
	}
	return nil
}
