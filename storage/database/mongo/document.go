package mongorepos

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
)

const lectureSlugPath = "sections.lectures.slug"

type documentRepository struct {
	db *mongo.Database
}

var _ content.Repository = (*documentRepository)(nil)

// NewDocumentRepository stores every document kind in its own collection (curricula, courses, articles).
func NewDocumentRepository(db *mongo.Database) content.Repository {
	return &documentRepository{db: db}
}

func newID() string { return primitive.NewObjectID().Hex() }

// wrapErr wraps driver errors. A disconnected client cannot recover: it becomes a shutdown error.
func wrapErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return core.NewShutdownError("mongo client disconnected")
	}
	return errors.Wrapf(err, format, args...)
}

func (repo *documentRepository) coll(kind content.Kind) *mongo.Collection {
	return repo.db.Collection(kind.Collection())
}

func (repo *documentRepository) findOne(ctx context.Context, kind content.Kind, filter bson.M) (content.Document, error) {
	var doc content.Document
	if err := repo.coll(kind).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return content.Document{}, content.ErrNotFound
		}
		return content.Document{}, wrapErr(err, "finding %s", kind)
	}
	doc.Normalize()
	return doc, nil
}

func (repo *documentRepository) exists(ctx context.Context, kind content.Kind, filter bson.M) (bool, error) {
	n, err := repo.coll(kind).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapErr(err, "counting %s", kind.Collection())
	}
	return n > 0, nil
}

func (repo *documentRepository) CreateDocument(ctx context.Context, doc content.Document) (content.Document, error) {
	doc = doc.Clone()
	doc.ID = ""
	content.AssignIDs(&doc, newID, time.Now().UTC())
	doc.Version = 1

	if _, err := repo.coll(doc.Kind).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return content.Document{}, content.ErrSlugTaken
		}
		return content.Document{}, wrapErr(err, "inserting %s", doc.Kind)
	}
	return doc, nil
}

func (repo *documentRepository) GetDocument(ctx context.Context, kind content.Kind, id string) (content.Document, error) {
	return repo.findOne(ctx, kind, bson.M{"_id": id})
}

func (repo *documentRepository) GetDocumentBySlug(ctx context.Context, kind content.Kind, slug string) (content.Document, error) {
	return repo.findOne(ctx, kind, bson.M{"slug": slug})
}

func (repo *documentRepository) GetDocumentByLectureSlug(ctx context.Context, slug string) (content.Document, error) {
	for _, kind := range content.Kinds {
		doc, err := repo.findOne(ctx, kind, bson.M{lectureSlugPath: slug})
		if err == nil {
			return doc, nil
		}
		if errors.Cause(err) != content.ErrNotFound {
			return content.Document{}, err
		}
	}
	return content.Document{}, content.ErrNotFound
}

func (repo *documentRepository) QueryDocuments(
	ctx context.Context,
	kind content.Kind,
	filter *content.QueryFilter,
	ordering []core.DBOrdering,
) ([]content.Document, error) {
	query := bson.M{}
	if !filter.IsEmpty() {
		rgx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{bson.M{"title": rgx}, bson.M{"slug": rgx}}
	}

	cur, err := repo.coll(kind).Find(ctx, query, options.Find().SetSort(sortSpec(ordering)))
	if err != nil {
		return nil, wrapErr(err, "querying %s", kind.Collection())
	}
	docs := make([]content.Document, 0)
	if err = cur.All(ctx, &docs); err != nil {
		return nil, wrapErr(err, "decoding %s", kind.Collection())
	}
	for i := range docs {
		docs[i].Normalize()
	}
	return docs, nil
}

func (repo *documentRepository) SaveDocument(ctx context.Context, doc content.Document) (content.Document, error) {
	prevVersion := doc.Version
	now := time.Now().UTC()

	doc = doc.Clone()
	content.AssignIDs(&doc, newID, now)
	doc.UpdatedAt = now
	doc.Version++

	res, err := repo.coll(doc.Kind).ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": prevVersion}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return content.Document{}, content.ErrSlugTaken
		}
		return content.Document{}, wrapErr(err, "replacing %s", doc.Kind)
	}
	if res.MatchedCount == 0 {
		found, err := repo.exists(ctx, doc.Kind, bson.M{"_id": doc.ID})
		if err != nil {
			return content.Document{}, err
		}
		if !found {
			return content.Document{}, content.ErrNotFound
		}
		return content.Document{}, content.ErrConflict
	}
	return doc, nil
}

func (repo *documentRepository) DeleteDocument(ctx context.Context, kind content.Kind, id string) error {
	res, err := repo.coll(kind).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(err, "deleting %s", kind)
	}
	if res.DeletedCount == 0 {
		return content.ErrNotFound
	}
	return nil
}

func (repo *documentRepository) SlugExists(ctx context.Context, kind content.Kind, slug string) (bool, error) {
	return repo.exists(ctx, kind, bson.M{"slug": slug})
}

func (repo *documentRepository) LectureSlugExists(ctx context.Context, slug string) (bool, error) {
	for _, kind := range content.Kinds {
		found, err := repo.exists(ctx, kind, bson.M{lectureSlugPath: slug})
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// sortSpec translates orderings to a mongo sort document, newest first by default.
func sortSpec(ordering []core.DBOrdering) bson.D {
	if len(ordering) == 0 {
		return bson.D{{Key: "created_at", Value: -1}}
	}
	spec := make(bson.D, 0, len(ordering))
	for _, ord := range ordering {
		direction := -1
		if ord.Ascending {
			direction = 1
		}
		spec = append(spec, bson.E{Key: ord.Field, Value: direction})
	}
	return spec
}
