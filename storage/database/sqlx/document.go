package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
)

const (
	documentColumns = `id, kind, slug, title, description, sections, version, created_at, updated_at`

	uniqueViolation = "unique_violation"
)

// documentRow is a Document as stored in the `documents` table: the section tree is kept whole in a JSONB column.
type documentRow struct {
	ID          string         `db:"id"`
	Kind        string         `db:"kind"`
	Slug        string         `db:"slug"`
	Title       string         `db:"title"`
	Description null.String    `db:"description"`
	Sections    types.JSONText `db:"sections"`
	Version     int            `db:"version"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func newRow(doc content.Document) (documentRow, error) {
	sections, err := encodeJSON(doc.Sections)
	if err != nil {
		return documentRow{}, errors.Wrap(err, "encoding sections")
	}
	return documentRow{
		ID:          doc.ID,
		Kind:        doc.Kind.String(),
		Slug:        doc.Slug,
		Title:       doc.Title,
		Description: null.NewString(doc.Description, doc.Description != ""),
		Sections:    sections,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   null.NewTime(doc.UpdatedAt.UTC(), !doc.UpdatedAt.IsZero()),
	}, nil
}

func (row documentRow) document() (content.Document, error) {
	doc := content.Document{
		ID:          row.ID,
		Kind:        content.Kind(row.Kind),
		Slug:        row.Slug,
		Title:       row.Title,
		Description: row.Description.String,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.UpdatedAt.Valid {
		doc.UpdatedAt = row.UpdatedAt.Time.UTC()
	}
	if len(row.Sections) > 0 {
		if err := row.Sections.Unmarshal(&doc.Sections); err != nil {
			return content.Document{}, errors.Wrap(err, "decoding sections")
		}
	}
	doc.Normalize()
	return doc, nil
}

func encodeJSON(v interface{}) (types.JSONText, error) {
	if sections, ok := v.([]content.Section); ok && sections == nil {
		v = []content.Section{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

// lectureSlugContainment builds the `sections @> ?` operand matching a lecture slug.
func lectureSlugContainment(slug string) (types.JSONText, error) {
	text, err := encodeJSON([]map[string]interface{}{
		{"lectures": []map[string]string{{"slug": slug}}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding lecture slug")
	}
	return text, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// orderBy renders the ORDER BY clause, newest first by default. Unknown fields are ignored.
func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if _, ok := content.OrderingFields[ord.Field]; ok {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		clauses = append(clauses, core.DBOrdering{Field: "created_at"}.String())
	}
	return strings.Join(clauses, ", ")
}

type documentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *sqlx.DB) content.Repository {
	return &documentRepository{db: db}
}

func newID() string { return uuid.New().String() }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == uniqueViolation
}

func (repo *documentRepository) get(ctx context.Context, query string, args ...interface{}) (content.Document, error) {
	var row documentRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return content.Document{}, content.ErrNotFound
		}
		return content.Document{}, errors.Wrap(err, "selecting document")
	}
	return row.document()
}

func (repo *documentRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := repo.db.GetContext(ctx, &found, query, args...); err != nil {
		return false, errors.Wrap(err, "checking document")
	}
	return found, nil
}

func (repo *documentRepository) CreateDocument(ctx context.Context, doc content.Document) (content.Document, error) {
	doc = doc.Clone()
	doc.ID = ""
	content.AssignIDs(&doc, newID, time.Now().UTC())
	doc.CreatedAt = doc.CreatedAt.Truncate(time.Microsecond) // postgres precision
	doc.UpdatedAt = doc.UpdatedAt.Truncate(time.Microsecond)
	doc.Version = 1

	row, err := newRow(doc)
	if err != nil {
		return content.Document{}, err
	}
	q := `INSERT INTO documents (` + documentColumns + `)
		VALUES (:id, :kind, :slug, :title, :description, :sections, :version, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return content.Document{}, content.ErrSlugTaken
		}
		return content.Document{}, errors.Wrap(err, "inserting document")
	}
	return doc, nil
}

func (repo *documentRepository) GetDocument(ctx context.Context, kind content.Kind, id string) (content.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE kind = $1 AND id = $2`
	return repo.get(ctx, q, kind.String(), id)
}

func (repo *documentRepository) GetDocumentBySlug(ctx context.Context, kind content.Kind, slug string) (content.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE kind = $1 AND slug = $2`
	return repo.get(ctx, q, kind.String(), slug)
}

func (repo *documentRepository) GetDocumentByLectureSlug(ctx context.Context, slug string) (content.Document, error) {
	containment, err := lectureSlugContainment(slug)
	if err != nil {
		return content.Document{}, err
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE sections @> $1 ORDER BY created_at LIMIT 1`
	return repo.get(ctx, q, containment)
}

func (repo *documentRepository) QueryDocuments(
	ctx context.Context,
	kind content.Kind,
	filter *content.QueryFilter,
	ordering []core.DBOrdering,
) ([]content.Document, error) {
	var b strings.Builder
	args := []interface{}{kind.String()}

	b.WriteString(`SELECT ` + documentColumns + ` FROM documents WHERE kind = $1`)
	if !filter.IsEmpty() {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		b.WriteString(` AND (title ILIKE $2 OR slug ILIKE $2)`)
	}
	b.WriteString(` ORDER BY ` + orderBy(ordering))

	var rows []documentRow
	if err := repo.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, errors.Wrap(err, "selecting documents")
	}
	docs := make([]content.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (repo *documentRepository) SaveDocument(ctx context.Context, doc content.Document) (content.Document, error) {
	prevVersion := doc.Version
	now := time.Now().UTC().Truncate(time.Microsecond)

	doc = doc.Clone()
	content.AssignIDs(&doc, newID, now)
	doc.UpdatedAt = now
	doc.Version++

	row, err := newRow(doc)
	if err != nil {
		return content.Document{}, err
	}
	q := `UPDATE documents
		SET title = $1, description = $2, sections = $3, version = $4, updated_at = $5
		WHERE kind = $6 AND id = $7 AND version = $8`
	res, err := repo.db.ExecContext(ctx, q,
		row.Title, row.Description, row.Sections, row.Version, row.UpdatedAt,
		row.Kind, row.ID, prevVersion,
	)
	if err != nil {
		return content.Document{}, errors.Wrap(err, "updating document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return content.Document{}, errors.Wrap(err, "updating document")
	}
	if n == 0 {
		found, err := repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE kind = $1 AND id = $2)`, row.Kind, row.ID)
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
	res, err := repo.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, kind.String(), id)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return content.ErrNotFound
	}
	return nil
}

func (repo *documentRepository) SlugExists(ctx context.Context, kind content.Kind, slug string) (bool, error) {
	return repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE kind = $1 AND slug = $2)`, kind.String(), slug)
}

func (repo *documentRepository) LectureSlugExists(ctx context.Context, slug string) (bool, error) {
	containment, err := lectureSlugContainment(slug)
	if err != nil {
		return false, err
	}
	return repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE sections @> $1)`, containment)
}
