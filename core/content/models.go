package content

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
)

// Kind tags the flavour of a Document. All kinds share the same tree shape.
type Kind string

// Kinds
const (
	KindCurriculum Kind = "curriculum"
	KindCourse     Kind = "course"
	KindArticle    Kind = "article"
)

var (
	Kinds = []Kind{KindCurriculum, KindCourse, KindArticle}

	collections = map[Kind]string{
		KindCurriculum: "curricula",
		KindCourse:     "courses",
		KindArticle:    "articles",
	}
)

func (k Kind) IsValid() bool {
	_, ok := collections[k]
	return ok
}

// Collection returns the plural name used for routes & storage collections.
func (k Kind) Collection() string {
	return collections[k]
}

func (k Kind) String() string { return string(k) }

// KindFromCollection maps a plural collection name (eg: "courses") back to its Kind.
func KindFromCollection(name string) (Kind, bool) {
	name = core.CleanString(name, true /* lower */)
	for kind, coll := range collections {
		if coll == name {
			return kind, true
		}
	}
	return "", false
}

// ParseKind accepts either the singular kind or its collection name.
func ParseKind(s string) (Kind, bool) {
	k := Kind(core.CleanString(s, true /* lower */))
	if k.IsValid() {
		return k, true
	}
	return KindFromCollection(s)
}

// Document is the top-level content aggregate (curriculum, course or article).
type Document struct {
	ID          string    `json:"id" bson:"_id"`
	Kind        Kind      `json:"kind" bson:"kind"`
	Title       string    `json:"title" bson:"title"`
	Slug        string    `json:"slug" bson:"slug"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Sections    []Section `json:"sections" bson:"sections"`
	Version     int       `json:"version" bson:"version"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"` // UTC
}

type Section struct {
	ID       string    `json:"id" bson:"id"`
	Title    string    `json:"title" bson:"title"`
	Order    *int      `json:"order,omitempty" bson:"order,omitempty"` // display hint only; sequence order wins
	Lectures []Lecture `json:"lectures" bson:"lectures"`
}

type Lecture struct {
	ID        string    `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	Slug      string    `json:"slug" bson:"slug"`
	Body      string    `json:"body,omitempty" bson:"body,omitempty"`
	MediaURL  string    `json:"media_url,omitempty" bson:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"` // UTC
}

// NewDocument contains information needed to create a new Document.
type NewDocument struct {
	Title       string           `json:"title" validate:"required"`
	Slug        string           `json:"slug" validate:"omitempty,slug"`
	Description string           `json:"description"`
	Sections    []SectionPayload `json:"sections" validate:"omitempty,dive"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Slug = core.CleanString(nd.Slug, true /* lower */)
	nd.Description = core.CleanString(nd.Description)
	for i := range nd.Sections {
		nd.Sections[i].clean()
	}
	return validate.Struct(nd)
}

// UpdateDocument defines what information may be provided to modify an existing Document.
// The slug is left untouched so public URLs stay stable.
type UpdateDocument struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (ud *UpdateDocument) Validate(validate *validator.Validate) error {
	ud.Title = core.CleanString(ud.Title)
	if ud.Description != nil {
		desc := core.CleanString(*ud.Description)
		ud.Description = &desc
	}
	return validate.Struct(ud)
}

// NewSection contains information needed to append a Section.
type NewSection struct {
	Title string `json:"title" validate:"required"`
	Order *int   `json:"order"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	return validate.Struct(ns)
}

// SectionPayload is a full Section as supplied by a caller (replace, reorder & import).
// A nil Lectures keeps the lectures of the Section with the same id.
type SectionPayload struct {
	ID       string           `json:"id"`
	Title    string           `json:"title" validate:"required"`
	Order    *int             `json:"order"`
	Lectures []LecturePayload `json:"lectures" validate:"omitempty,dive"`
}

func (sp *SectionPayload) clean() {
	sp.ID = CanonicalID(sp.ID)
	sp.Title = core.CleanString(sp.Title)
	for i := range sp.Lectures {
		sp.Lectures[i].clean()
	}
}

func (sp *SectionPayload) Validate(validate *validator.Validate) error {
	sp.clean()
	return validate.Struct(sp)
}

// LecturePayload is a Lecture as supplied by a caller. Slug is derived from Title when empty.
type LecturePayload struct {
	ID       string `json:"id"`
	Title    string `json:"title" validate:"required"`
	Slug     string `json:"slug" validate:"omitempty,slug"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url" validate:"omitempty,url"`
}

func (lp *LecturePayload) clean() {
	lp.ID = CanonicalID(lp.ID)
	lp.Title = core.CleanString(lp.Title)
	lp.Slug = core.CleanString(lp.Slug, true /* lower */)
	lp.MediaURL = core.CleanString(lp.MediaURL)
}

func (lp *LecturePayload) Validate(validate *validator.Validate) error {
	lp.clean()
	return validate.Struct(lp)
}

// LectureContent replaces the content of a Lecture. The id & slug are preserved;
// a blank Title keeps the current one.
type LectureContent struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url" validate:"omitempty,url"`
}

func (lc *LectureContent) Validate(validate *validator.Validate) error {
	lc.Title = core.CleanString(lc.Title)
	lc.MediaURL = core.CleanString(lc.MediaURL)
	return validate.Struct(lc)
}

// ReorderSections overwrites the whole section sequence of a Document.
type ReorderSections struct {
	Sections []SectionPayload `json:"sections" validate:"required,dive"`
}

func (rs *ReorderSections) Validate(validate *validator.Validate) error {
	for i := range rs.Sections {
		rs.Sections[i].clean()
	}
	return validate.Struct(rs)
}

// ReorderLectures overwrites the lecture sequence of each listed Section.
type ReorderLectures struct {
	Sections []SectionLectures `json:"sections" validate:"required,dive"`
}

type SectionLectures struct {
	ID       string           `json:"id" validate:"required"`
	Lectures []LecturePayload `json:"lectures" validate:"required,dive"`
}

func (rl *ReorderLectures) Validate(validate *validator.Validate) error {
	for i := range rl.Sections {
		rl.Sections[i].ID = CanonicalID(rl.Sections[i].ID)
		for j := range rl.Sections[i].Lectures {
			rl.Sections[i].Lectures[j].clean()
		}
	}
	return validate.Struct(rl)
}

// OrderingFields lists the Document fields a query may be ordered by.
var OrderingFields = map[string]struct{}{
	"title":      {},
	"slug":       {},
	"created_at": {},
	"updated_at": {},
}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf == nil || qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match does a case-insensitive match of the search keyword on the Document's title or slug.
func (qf *QueryFilter) Match(doc Document) bool {
	if qf.IsEmpty() {
		return true
	}
	kw := strings.ToLower(qf.Search)
	return strings.Contains(strings.ToLower(doc.Title), kw) || strings.Contains(doc.Slug, kw)
}
