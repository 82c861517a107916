package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
	"github.com/trezcool/somo/storage/database/inmem"
)

// Logger discards everything but keeps what was logged for assertions.
type Logger struct {
	mu      sync.Mutex
	entries []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// Metrics counts observed mutations by "kind/op/outcome".
type Metrics struct {
	mu        sync.Mutex
	Requests  int
	Mutations map[string]int
}

var _ core.Metrics = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{Mutations: make(map[string]int)}
}

func (m *Metrics) ObserveRequest(string, string, int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}

func (m *Metrics) ObserveMutation(kind, op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mutations[kind+"/"+op+"/"+outcome]++
}

func (m *Metrics) Mutation(kind, op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mutations[kind+"/"+op+"/"+outcome]
}

// NewValidator returns a validator & its translator, initialised the way the API does it.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	content.RegisterValidators(validate, translator)
	return validate, translator
}

// NewRepository returns an empty in-memory content.Repository.
func NewRepository(t *testing.T) content.Repository {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("NewRepository() failed: %v", err)
	}
	return inmemdb.NewDocumentRepository(db)
}

// Tree describes a Document to create: section titles mapped to their lecture titles, in order.
type Tree struct {
	Sections []SectionTree
}

type SectionTree struct {
	Title    string
	Lectures []string
}

// CreateDocument stores a Document of `kind` directly through the repository.
// Lecture slugs are derived from their titles.
func CreateDocument(t *testing.T, repo content.Repository, kind content.Kind, title, slug string, tree ...Tree) content.Document {
	now := time.Now().UTC()
	if slug == "" {
		slug = content.Slugify(title)
	}
	doc := content.Document{
		Kind:      kind,
		Title:     title,
		Slug:      slug,
		Sections:  []content.Section{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(tree) > 0 {
		for _, st := range tree[0].Sections {
			section := content.Section{Title: st.Title, Lectures: []content.Lecture{}}
			for _, lt := range st.Lectures {
				section.Lectures = append(section.Lectures, content.Lecture{
					Title:     lt,
					Slug:      content.DeriveSlug(lt),
					CreatedAt: now,
				})
			}
			doc.Sections = append(doc.Sections, section)
		}
	}

	doc, err := repo.CreateDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateDocument() failed: %v", err)
	}
	return doc
}
