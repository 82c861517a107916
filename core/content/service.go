package content

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/somo/core"
)

var (
	// errors
	ErrNotFound        = errors.New("document not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrLectureNotFound = errors.New("lecture not found")
	ErrConflict        = errors.New("document was modified by another request, reload and retry")
	ErrSlugTaken       = errors.New("slug already taken")

	errTitleRequired = "this field is required"
	errInvalidKind   = core.NewValidationError(errors.New("invalid document kind"))
)

// mutation names, used for metrics & logs
const (
	opCreate          = "create"
	opUpdate          = "update"
	opDelete          = "delete"
	opAppendSection   = "append_section"
	opReplaceSection  = "replace_section"
	opDeleteSection   = "delete_section"
	opReorderSections = "reorder_sections"
	opAppendLecture   = "append_lecture"
	opReplaceLecture  = "replace_lecture"
	opDeleteLecture   = "delete_lecture"
	opReorderLectures = "reorder_lectures"
)

type (
	// Repository is the persistence gateway. Each call is atomic on its own;
	// no transaction spans several calls.
	Repository interface {
		// CreateDocument assigns ids to every node, sets Version to 1 and stores the Document.
		// Fails with ErrSlugTaken when the slug is already used within the kind.
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		GetDocument(ctx context.Context, kind Kind, id string) (Document, error)
		GetDocumentBySlug(ctx context.Context, kind Kind, slug string) (Document, error)
		// GetDocumentByLectureSlug finds, across all kinds, the Document holding a lecture with `slug`.
		GetDocumentByLectureSlug(ctx context.Context, slug string) (Document, error)
		QueryDocuments(ctx context.Context, kind Kind, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		// SaveDocument replaces the whole stored Document if its stored Version still equals doc.Version,
		// assigning ids to new nodes and incrementing the Version. Fails with ErrConflict otherwise.
		SaveDocument(ctx context.Context, doc Document) (Document, error)
		DeleteDocument(ctx context.Context, kind Kind, id string) error
		SlugExists(ctx context.Context, kind Kind, slug string) (bool, error)
		LectureSlugExists(ctx context.Context, slug string) (bool, error)
	}

	Service struct {
		repo    Repository
		logger  core.Logger
		metrics core.Metrics
		flight  singleflight.Group
	}
)

func NewService(repo Repository, logger core.Logger, metrics core.Metrics) *Service {
	return &Service{repo: repo, logger: logger, metrics: metrics}
}

func titleRequired(field string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: errTitleRequired})
}

func errSlugTakenField() error {
	return core.NewValidationError(ErrSlugTaken, core.FieldError{Field: "slug", Error: ErrSlugTaken.Error()})
}

// storageErr tags raw storage faults as persistence errors, letting domain errors through.
func storageErr(op string, err error) error {
	switch errors.Cause(err) {
	case ErrNotFound, ErrSectionNotFound, ErrLectureNotFound, ErrConflict, ErrSlugTaken:
		return err
	}
	if _, ok := errors.Cause(err).(*core.PersistenceError); ok {
		return err
	}
	return core.NewPersistenceError(op, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch origErr := errors.Cause(err).(type) {
	case *core.ValidationError:
		return "invalid"
	case *core.PersistenceError:
		return "error"
	default:
		switch origErr {
		case ErrNotFound, ErrSectionNotFound, ErrLectureNotFound:
			return "not_found"
		case ErrConflict:
			return "conflict"
		}
	}
	return "error"
}

func (svc *Service) observe(kind Kind, op string, err error) {
	if svc.metrics != nil {
		svc.metrics.ObserveMutation(kind.String(), op, outcome(err))
	}
	if errors.Cause(err) == ErrConflict && svc.logger != nil {
		svc.logger.Warn("concurrent document modification rejected", map[string]interface{}{"kind": kind, "op": op})
	}
}

func (svc *Service) load(ctx context.Context, kind Kind, id string) (Document, error) {
	if !kind.IsValid() {
		return Document{}, errInvalidKind
	}
	id = CanonicalID(id)
	if id == "" {
		return Document{}, ErrNotFound
	}
	doc, err := svc.repo.GetDocument(ctx, kind, id)
	if err != nil {
		return Document{}, storageErr("loading document", err)
	}
	return doc, nil
}

// mutate runs load -> apply -> persist. Nothing is saved when apply fails.
func (svc *Service) mutate(ctx context.Context, kind Kind, id, op string, apply func(doc *Document) error) (doc Document, err error) {
	defer func() { svc.observe(kind, op, err) }()

	doc, err = svc.load(ctx, kind, id)
	if err != nil {
		return Document{}, err
	}
	if err = apply(&doc); err != nil {
		return Document{}, err
	}
	saved, err := svc.repo.SaveDocument(ctx, doc)
	if err != nil {
		if errors.Cause(err) == ErrSlugTaken {
			// another document took a staged slug between the checks and the save
			return Document{}, errSlugTakenField()
		}
		return Document{}, storageErr("saving document", err)
	}
	return saved, nil
}

// Documents

func (svc *Service) Create(ctx context.Context, kind Kind, nd NewDocument) (doc Document, err error) {
	defer func() { svc.observe(kind, opCreate, err) }()

	if !kind.IsValid() {
		return Document{}, errInvalidKind
	}
	title := core.CleanString(nd.Title)
	if title == "" {
		return Document{}, titleRequired("title")
	}

	var slug string
	if nd.Slug != "" {
		if !IsSlug(nd.Slug) {
			return Document{}, core.NewValidationError(nil, core.FieldError{Field: "slug", Error: "invalid slug"})
		}
		exists, err := svc.repo.SlugExists(ctx, kind, nd.Slug)
		if err != nil {
			return Document{}, storageErr("checking document slug", err)
		}
		if exists {
			return Document{}, errSlugTakenField()
		}
		slug = nd.Slug
	} else {
		slug, err = uniqueSlug(deriveSlug(title, kind.String()), func(s string) (bool, error) {
			return svc.repo.SlugExists(ctx, kind, s)
		})
		if err != nil {
			return Document{}, storageErr("deriving document slug", err)
		}
	}

	now := time.Now().UTC()
	doc = Document{
		Kind:        kind,
		Title:       title,
		Slug:        slug,
		Description: nd.Description,
		Sections:    []Section{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(nd.Sections) > 0 {
		slugs := newSlugSet(ctx, svc.repo, &doc)
		sections, err := buildSections(&doc, nd.Sections, slugs)
		if err != nil {
			return Document{}, err
		}
		doc.ReplaceSections(sections)
	}

	doc, err = svc.repo.CreateDocument(ctx, doc)
	if err != nil {
		if errors.Cause(err) == ErrSlugTaken {
			return Document{}, errSlugTakenField()
		}
		return Document{}, storageErr("creating document", err)
	}
	return doc, nil
}

func (svc *Service) Query(ctx context.Context, kind Kind, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error) {
	if !kind.IsValid() {
		return nil, errInvalidKind
	}
	for _, ord := range ordering {
		if _, ok := OrderingFields[ord.Field]; !ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "unknown field " + ord.Field})
		}
	}
	if filter != nil {
		filter.Clean()
	}
	docs, err := svc.repo.QueryDocuments(ctx, kind, filter, ordering)
	if err != nil {
		return nil, storageErr("querying documents", err)
	}
	return docs, nil
}

func (svc *Service) GetByID(ctx context.Context, kind Kind, id string) (Document, error) {
	return svc.load(ctx, kind, id)
}

// ResolveBySlug resolves a public path segment: first against lecture slugs (the owning
// Document is returned), then against the Documents' own slugs.
// Segments that look like image files are rejected without touching storage.
func (svc *Service) ResolveBySlug(ctx context.Context, segment string) (Document, error) {
	segment = core.CleanString(segment, true /* lower */)
	if segment == "" || IsImageSegment(segment) {
		return Document{}, ErrNotFound
	}

	v, err, _ := svc.flight.Do(segment, func() (interface{}, error) {
		// the lookup is shared by every caller waiting on this segment, not bound to the first one
		ctx := context.WithoutCancel(ctx)

		doc, err := svc.repo.GetDocumentByLectureSlug(ctx, segment)
		if err == nil {
			return doc, nil
		}
		if errors.Cause(err) != ErrNotFound {
			return nil, storageErr("finding document by lecture slug", err)
		}

		for _, kind := range Kinds {
			doc, err = svc.repo.GetDocumentBySlug(ctx, kind, segment)
			if err == nil {
				return doc, nil
			}
			if errors.Cause(err) != ErrNotFound {
				return nil, storageErr("finding document by slug", err)
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Document{}, err
	}
	// shared between concurrent callers
	return v.(Document).Clone(), nil
}

func (svc *Service) Update(ctx context.Context, kind Kind, id string, ud UpdateDocument) (Document, error) {
	return svc.mutate(ctx, kind, id, opUpdate, func(doc *Document) error {
		if title := core.CleanString(ud.Title); title != "" {
			doc.Title = title
		}
		if ud.Description != nil {
			doc.Description = core.CleanString(*ud.Description)
		}
		return nil
	})
}

func (svc *Service) Delete(ctx context.Context, kind Kind, id string) (err error) {
	defer func() { svc.observe(kind, opDelete, err) }()

	if !kind.IsValid() {
		return errInvalidKind
	}
	if err = svc.repo.DeleteDocument(ctx, kind, CanonicalID(id)); err != nil {
		return storageErr("deleting document", err)
	}
	return nil
}

// Sections

// AppendSection pushes an empty Section at the end of the Document and returns it with its
// storage assigned id.
func (svc *Service) AppendSection(ctx context.Context, kind Kind, docID string, ns NewSection) (Section, error) {
	title := core.CleanString(ns.Title)
	if title == "" {
		return Section{}, titleRequired("title")
	}
	doc, err := svc.mutate(ctx, kind, docID, opAppendSection, func(doc *Document) error {
		doc.AppendSection(Section{Title: title, Order: ns.Order, Lectures: []Lecture{}})
		return nil
	})
	if err != nil {
		return Section{}, err
	}
	return doc.Sections[len(doc.Sections)-1], nil
}

func (svc *Service) ReplaceSection(ctx context.Context, kind Kind, docID, sectionID string, sp SectionPayload) (Document, error) {
	if core.CleanString(sp.Title) == "" {
		return Document{}, titleRequired("title")
	}
	return svc.mutate(ctx, kind, docID, opReplaceSection, func(doc *Document) error {
		curr, err := doc.FindSection(sectionID)
		if err != nil {
			return err
		}
		sp.ID = curr.ID
		section, err := buildSection(doc, sp, newSlugSet(ctx, svc.repo, doc))
		if err != nil {
			return err
		}
		if err = doc.ReplaceSection(sectionID, section); err != nil {
			return err
		}
		return checkLectureIdentity(doc.Sections)
	})
}

func (svc *Service) DeleteSection(ctx context.Context, kind Kind, docID, sectionID string) (Document, error) {
	return svc.mutate(ctx, kind, docID, opDeleteSection, func(doc *Document) error {
		return doc.RemoveSection(sectionID)
	})
}

// ReorderSections overwrites the whole section sequence with the caller's one.
func (svc *Service) ReorderSections(ctx context.Context, kind Kind, docID string, rs ReorderSections) (Document, error) {
	for i, sp := range rs.Sections {
		if core.CleanString(sp.Title) == "" {
			return Document{}, titleRequired(sectionField(i, "title"))
		}
	}
	return svc.mutate(ctx, kind, docID, opReorderSections, func(doc *Document) error {
		sections, err := buildSections(doc, rs.Sections, newSlugSet(ctx, svc.repo, doc))
		if err != nil {
			return err
		}
		doc.ReplaceSections(sections)
		return nil
	})
}

// Lectures

// AppendLecture pushes a Lecture at the end of a Section, deriving its slug from the title
// unless one is supplied. Returns the stored Lecture.
func (svc *Service) AppendLecture(ctx context.Context, kind Kind, docID, sectionID string, lp LecturePayload) (Lecture, error) {
	title := core.CleanString(lp.Title)
	if title == "" {
		return Lecture{}, titleRequired("title")
	}

	var slug string
	doc, err := svc.mutate(ctx, kind, docID, opAppendLecture, func(doc *Document) error {
		section, err := doc.FindSection(sectionID)
		if err != nil {
			return err
		}
		slug, err = newSlugSet(ctx, svc.repo, doc).allocate(lp.Slug, title)
		if err != nil {
			return err
		}
		section.AppendLecture(Lecture{
			Title:     title,
			Slug:      slug,
			Body:      lp.Body,
			MediaURL:  lp.MediaURL,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return Lecture{}, err
	}

	if _, lecture, ok := doc.FindLectureBySlug(slug); ok {
		return *lecture, nil
	}
	return Lecture{}, ErrLectureNotFound
}

// ReplaceLectureContent overwrites a Lecture's content, keeping its id & slug.
func (svc *Service) ReplaceLectureContent(ctx context.Context, kind Kind, docID, sectionID, lectureID string, lc LectureContent) (Document, error) {
	return svc.mutate(ctx, kind, docID, opReplaceLecture, func(doc *Document) error {
		section, err := doc.FindSection(sectionID)
		if err != nil {
			return err
		}
		curr, err := section.FindLecture(lectureID)
		if err != nil {
			return err
		}
		title := core.CleanString(lc.Title)
		if title == "" {
			title = curr.Title
		}
		return section.ReplaceLecture(lectureID, Lecture{
			Title:    title,
			Body:     lc.Body,
			MediaURL: lc.MediaURL,
		})
	})
}

func (svc *Service) DeleteLecture(ctx context.Context, kind Kind, docID, sectionID, lectureID string) (Document, error) {
	return svc.mutate(ctx, kind, docID, opDeleteLecture, func(doc *Document) error {
		section, err := doc.FindSection(sectionID)
		if err != nil {
			return err
		}
		return section.RemoveLecture(lectureID)
	})
}

// ReorderLectures overwrites the lecture sequence of every listed Section.
// All listed sections are located before anything changes.
func (svc *Service) ReorderLectures(ctx context.Context, kind Kind, docID string, rl ReorderLectures) (Document, error) {
	for i, sl := range rl.Sections {
		for j, lp := range sl.Lectures {
			if core.CleanString(lp.Title) == "" {
				return Document{}, titleRequired(sectionField(i, lectureField(j, "title")))
			}
		}
	}
	return svc.mutate(ctx, kind, docID, opReorderLectures, func(doc *Document) error {
		seen := make(map[int]struct{}, len(rl.Sections))
		for i, sl := range rl.Sections {
			idx := doc.SectionIndex(sl.ID)
			if idx < 0 {
				return ErrSectionNotFound
			}
			if _, dup := seen[idx]; dup {
				return duplicateErr(sectionField(i, "id"), doc.Sections[idx].ID)
			}
			seen[idx] = struct{}{}
		}

		slugs := newSlugSet(ctx, svc.repo, doc)
		staged := make(map[int][]Lecture, len(rl.Sections))
		for _, sl := range rl.Sections {
			lectures, err := buildLectures(doc, sl.Lectures, slugs)
			if err != nil {
				return err
			}
			staged[doc.SectionIndex(sl.ID)] = lectures
		}
		for i, lectures := range staged {
			doc.Sections[i].ReplaceLectures(lectures)
		}
		return checkLectureIdentity(doc.Sections)
	})
}
