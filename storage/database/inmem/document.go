package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
)

type documentRepository struct {
	db *documentTable
}

var _ content.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *DB) content.Repository {
	return &documentRepository{db: db.documents}
}

func newID() string { return uuid.New().String() }

func (repo *documentRepository) slugTaken(kind content.Kind, slug, excludedID string) bool {
	for id, doc := range repo.db.table[kind] {
		if id != excludedID && doc.Slug == slug {
			return true
		}
	}
	return false
}

func (repo *documentRepository) lectureSlugTaken(doc *content.Document) bool {
	for _, docs := range repo.db.table {
		for id, stored := range docs {
			if id == doc.ID {
				continue
			}
			for _, s := range doc.Sections {
				for _, l := range s.Lectures {
					if _, _, ok := stored.FindLectureBySlug(l.Slug); ok {
						return true
					}
				}
			}
		}
	}
	return false
}

func (repo *documentRepository) CreateDocument(_ context.Context, doc content.Document) (content.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	docs, ok := repo.db.table[doc.Kind]
	if !ok {
		return content.Document{}, content.ErrNotFound
	}
	if repo.slugTaken(doc.Kind, doc.Slug, "") {
		return content.Document{}, content.ErrSlugTaken
	}

	doc = doc.Clone()
	doc.ID = ""
	content.AssignIDs(&doc, newID, time.Now().UTC())
	if repo.lectureSlugTaken(&doc) {
		return content.Document{}, content.ErrSlugTaken
	}
	doc.Version = 1

	stored := doc.Clone()
	docs[doc.ID] = &stored
	return doc, nil
}

func (repo *documentRepository) GetDocument(_ context.Context, kind content.Kind, id string) (content.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if doc, ok := repo.db.table[kind][id]; ok {
		return doc.Clone(), nil
	}
	return content.Document{}, content.ErrNotFound
}

func (repo *documentRepository) GetDocumentBySlug(_ context.Context, kind content.Kind, slug string) (content.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, doc := range repo.db.table[kind] {
		if doc.Slug == slug {
			return doc.Clone(), nil
		}
	}
	return content.Document{}, content.ErrNotFound
}

func (repo *documentRepository) GetDocumentByLectureSlug(_ context.Context, slug string) (content.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, kind := range content.Kinds {
		for _, doc := range repo.db.table[kind] {
			if _, _, ok := doc.FindLectureBySlug(slug); ok {
				return doc.Clone(), nil
			}
		}
	}
	return content.Document{}, content.ErrNotFound
}

func (repo *documentRepository) QueryDocuments(
	_ context.Context,
	kind content.Kind,
	filter *content.QueryFilter,
	ordering []core.DBOrdering,
) ([]content.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	docs := make([]content.Document, 0, len(repo.db.table[kind]))
	for _, doc := range repo.db.table[kind] {
		if filter.Match(*doc) {
			docs = append(docs, doc.Clone())
		}
	}
	sortDocuments(docs, ordering)
	return docs, nil
}

func (repo *documentRepository) SaveDocument(_ context.Context, doc content.Document) (content.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[doc.Kind][doc.ID]
	if !ok {
		return content.Document{}, content.ErrNotFound
	}
	if stored.Version != doc.Version {
		return content.Document{}, content.ErrConflict
	}

	now := time.Now().UTC()
	doc = doc.Clone()
	content.AssignIDs(&doc, newID, now)
	if repo.lectureSlugTaken(&doc) {
		return content.Document{}, content.ErrSlugTaken
	}
	doc.CreatedAt = stored.CreatedAt
	doc.UpdatedAt = now
	doc.Version++

	cp := doc.Clone()
	repo.db.table[doc.Kind][doc.ID] = &cp
	return doc, nil
}

func (repo *documentRepository) DeleteDocument(_ context.Context, kind content.Kind, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[kind][id]; !ok {
		return content.ErrNotFound
	}
	delete(repo.db.table[kind], id)
	return nil
}

func (repo *documentRepository) SlugExists(_ context.Context, kind content.Kind, slug string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.slugTaken(kind, slug, ""), nil
}

func (repo *documentRepository) LectureSlugExists(_ context.Context, slug string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, docs := range repo.db.table {
		for _, doc := range docs {
			if _, _, ok := doc.FindLectureBySlug(slug); ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// sortDocuments orders by created_at DESC unless told otherwise.
// Supported fields: title, slug, created_at, updated_at.
func sortDocuments(docs []content.Document, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(docs[i], docs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b content.Document, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "slug":
		return strings.Compare(a.Slug, b.Slug)
	case "created_at":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
