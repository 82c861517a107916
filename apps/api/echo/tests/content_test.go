package tests

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
)

func Test_home(t *testing.T) {
	rec := serve(app, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Somo API!", rec.Body.String())
}

func Test_contentApi_query(t *testing.T) {
	db.Reset()

	now := time.Now().UTC()
	goBasics := createDocument(t, content.KindCourse, "Go Basics", now.Add(-3*time.Hour), "Welcome")
	advanced := createDocument(t, content.KindCourse, "Advanced Go", now.Add(-2*time.Hour))
	rust := createDocument(t, content.KindCourse, "Rust for Gophers", now.Add(-1*time.Hour))
	article := createDocument(t, content.KindArticle, "Go Modules", now)

	runHttpTests(t, []httpTest{
		{name: "unknown kind", path: "/v1/lols", wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound)},
		{name: "all (newest first)", path: "/v1/courses", wantData: marshallList(t, rust, advanced, goBasics)},
		{name: "other kind", path: "/v1/articles", wantData: marshallList(t, article)},
		{name: "empty kind", path: "/v1/curricula", wantData: marshallList(t)},
		{name: "search title", path: "/v1/courses?search=GO", wantData: marshallList(t, rust, advanced, goBasics)},
		{name: "search slug", path: "/v1/courses?search=go-b", wantData: marshallList(t, goBasics)},
		{name: "search (unknown)", path: "/v1/courses?search=lol", wantData: marshallList(t)},
		{name: "order by title", path: "/v1/courses?ordering=title", wantData: marshallList(t, advanced, goBasics, rust)},
		{name: "order by -slug", path: "/v1/courses?ordering=-slug", wantData: marshallList(t, rust, goBasics, advanced)},
		{name: "order by created_at", path: "/v1/courses?ordering=created_at", wantData: marshallList(t, goBasics, advanced, rust)},
		{
			name: "order by unknown field", path: "/v1/courses?ordering=lol", wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"ordering": "unknown field lol"}),
		},
	})
}

func Test_contentApi_retrieve(t *testing.T) {
	db.Reset()
	course := createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome", "Setup")

	runHttpTests(t, []httpTest{
		{name: "found", path: "/v1/courses/" + course.ID, wantData: marshallObj(t, course)},
		{name: "found (trailing slash)", path: "/v1/courses/" + course.ID + "/", wantData: marshallObj(t, course)},
		{name: "unknown id", path: "/v1/courses/lol", wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
		{name: "wrong kind", path: "/v1/articles/" + course.ID, wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
		{name: "unknown kind", path: "/v1/lols/" + course.ID, wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound)},
	})
}

func Test_contentApi_resolve(t *testing.T) {
	db.Reset()
	now := time.Now().UTC()
	course := createDocument(t, content.KindCourse, "Go Basics", now, "Welcome", "Setup")
	article := createDocument(t, content.KindArticle, "Go Modules", now, "Why Modules")

	runHttpTests(t, []httpTest{
		{name: "lecture slug", path: "/v1/content/setup", wantData: marshallObj(t, course)},
		{name: "lecture slug (other kind)", path: "/v1/content/why-modules", wantData: marshallObj(t, article)},
		{name: "document slug", path: "/v1/content/go-modules", wantData: marshallObj(t, article)},
		{name: "mixed case", path: "/v1/content/Go-Basics", wantData: marshallObj(t, course)},
		{name: "image", path: "/v1/content/welcome.png", wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
		{name: "unknown", path: "/v1/content/lol", wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
	})
}

func Test_contentApi_create(t *testing.T) {
	db.Reset()
	createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome")

	t.Run("valid", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{
			"title":       "  Go Basics ",
			"description": "Learn Go",
			"sections": []map[string]interface{}{
				{"title": "Intro", "lectures": []map[string]interface{}{
					{"title": "Welcome"},
					{"title": "Install", "slug": "install-go"},
				}},
				{"title": "Outro"},
			},
		})
		rec := serve(app, http.MethodPost, "/v1/courses", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var doc content.Document
		unmarshall(t, rec, &doc)
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, content.KindCourse, doc.Kind)
		assert.Equal(t, "Go Basics", doc.Title)
		assert.Equal(t, "go-basics-2", doc.Slug)
		assert.Equal(t, 1, doc.Version)
		require.Len(t, doc.Sections, 2)
		require.Len(t, doc.Sections[0].Lectures, 2)
		assert.Equal(t, "welcome-2", doc.Sections[0].Lectures[0].Slug)
		assert.Equal(t, "install-go", doc.Sections[0].Lectures[1].Slug)
		assert.NotNil(t, doc.Sections[1].Lectures)

		stored, err := repo.GetDocument(context.Background(), content.KindCourse, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.Slug, stored.Slug)
	})

	runHttpTests(t, []httpTest{
		{
			name: "unknown kind", method: http.MethodPost, path: "/v1/lols",
			body: []byte(`{"title": "Lol"}`), wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound),
		},
		{
			name: "missing title", method: http.MethodPost, path: "/v1/courses",
			body: []byte(`{"title": "   "}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "invalid slug", method: http.MethodPost, path: "/v1/courses",
			body: []byte(`{"title": "Lol", "slug": "lol--lol"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"slug": "only lowercase alphanumeric characters separated by single hyphens are allowed",
			}),
		},
		{
			name: "slug taken", method: http.MethodPost, path: "/v1/courses",
			body: []byte(`{"title": "Lol", "slug": "go-basics"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"slug": content.ErrSlugTaken.Error()}),
		},
		{
			name: "lecture slug taken", method: http.MethodPost, path: "/v1/articles",
			body:     []byte(`{"title": "Lol", "sections": [{"title": "Intro", "lectures": [{"title": "Hi", "slug": "welcome"}]}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"slug": content.ErrSlugTaken.Error()}),
		},
		{name: "malformed body", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"title": `), wantCode: http.StatusBadRequest},
	})
}

func Test_contentApi_updateAndDestroy(t *testing.T) {
	db.Reset()
	course := createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome")
	path := "/v1/courses/" + course.ID

	rec := serve(app, http.MethodPut, path, []byte(`{"title": "Go Basics, 2nd edition", "description": "Updated"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc content.Document
	unmarshall(t, rec, &doc)
	assert.Equal(t, "Go Basics, 2nd edition", doc.Title)
	assert.Equal(t, "Updated", doc.Description)
	assert.Equal(t, "go-basics", doc.Slug) // unchanged
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, course.Sections, doc.Sections)

	rec = serve(app, http.MethodDelete, path)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	runHttpTests(t, []httpTest{
		{name: "deleted", path: path, wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
		{name: "delete again", method: http.MethodDelete, path: path, wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument)},
		{
			name: "update deleted", method: http.MethodPut, path: path, body: []byte(`{"title": "Lol"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument),
		},
	})
}

func Test_contentApi_sections(t *testing.T) {
	db.Reset()
	course := createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome", "Setup")
	path := "/v1/courses/" + course.ID + "/sections"
	intro := course.Sections[0]

	// append
	rec := serve(app, http.MethodPost, path, []byte(`{"title": "Basics"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var basics content.Section
	unmarshall(t, rec, &basics)
	assert.NotEmpty(t, basics.ID)
	assert.Equal(t, "Basics", basics.Title)
	assert.Empty(t, basics.Lectures)

	// replace: lectures omitted are kept
	rec = serve(app, http.MethodPut, path+"/"+intro.ID, []byte(`{"title": "Introduction"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc content.Document
	unmarshall(t, rec, &doc)
	assert.Equal(t, "Introduction", doc.Sections[0].Title)
	assert.Equal(t, intro.ID, doc.Sections[0].ID)
	assert.Equal(t, intro.Lectures, doc.Sections[0].Lectures)

	// reorder
	body := marshallObj(t, map[string]interface{}{
		"sections": []map[string]interface{}{
			{"id": basics.ID, "title": "Basics"},
			{"id": intro.ID, "title": "Introduction"},
		},
	})
	rec = serve(app, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &doc)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, basics.ID, doc.Sections[0].ID)
	assert.Equal(t, intro.ID, doc.Sections[1].ID)
	assert.Len(t, doc.Sections[1].Lectures, 2)

	// delete
	rec = serve(app, http.MethodDelete, path+"/"+basics.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &doc)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, intro.ID, doc.Sections[0].ID)
	assert.Equal(t, 5, doc.Version)

	errSection := marshallObj(t, httpErr{Error: content.ErrSectionNotFound.Error()})
	runHttpTests(t, []httpTest{
		{
			name: "append without title", method: http.MethodPost, path: path, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "append to unknown document", method: http.MethodPost, path: "/v1/courses/lol/sections",
			body: []byte(`{"title": "Lol"}`), wantCode: http.StatusNotFound, wantData: marshallObj(t, errDocument),
		},
		{
			name: "replace unknown section", method: http.MethodPut, path: path + "/lol",
			body: []byte(`{"title": "Lol"}`), wantCode: http.StatusNotFound, wantData: errSection,
		},
		{name: "delete unknown section", method: http.MethodDelete, path: path + "/lol", wantCode: http.StatusNotFound, wantData: errSection},
		{
			name: "reorder with duplicate ids", method: http.MethodPut, path: path,
			body: marshallObj(t, map[string]interface{}{
				"sections": []map[string]interface{}{
					{"id": intro.ID, "title": "A"},
					{"id": intro.ID, "title": "B"},
				},
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"sections[1].id": "duplicate id " + intro.ID}),
		},
	})
}

func Test_contentApi_lectures(t *testing.T) {
	db.Reset()
	course := createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome", "Setup")
	intro := course.Sections[0]
	welcome, setup := intro.Lectures[0], intro.Lectures[1]
	path := "/v1/courses/" + course.ID + "/sections/" + intro.ID + "/lectures"

	// append: derived slug collides with an existing one
	rec := serve(app, http.MethodPost, path, []byte(`{"title": "Welcome!", "body": "Hi"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var again content.Lecture
	unmarshall(t, rec, &again)
	assert.NotEmpty(t, again.ID)
	assert.Equal(t, "welcome-2", again.Slug)
	assert.Equal(t, "Hi", again.Body)

	// replace content: id & slug are kept, blank title keeps the current one
	rec = serve(app, http.MethodPut, path+"/"+welcome.ID, []byte(`{"body": "Hello", "media_url": "https://cdn.test/welcome.mp4"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc content.Document
	unmarshall(t, rec, &doc)
	got := doc.Sections[0].Lectures[0]
	assert.Equal(t, welcome.ID, got.ID)
	assert.Equal(t, welcome.Slug, got.Slug)
	assert.Equal(t, welcome.Title, got.Title)
	assert.Equal(t, "Hello", got.Body)
	assert.Equal(t, "https://cdn.test/welcome.mp4", got.MediaURL)

	// reorder
	body := marshallObj(t, map[string]interface{}{
		"sections": []map[string]interface{}{
			{"id": intro.ID, "lectures": []map[string]interface{}{
				{"id": setup.ID, "title": "Setup"},
				{"id": again.ID, "title": "Welcome again"},
				{"id": welcome.ID, "title": "Welcome", "body": "Hello"},
			}},
		},
	})
	rec = serve(app, http.MethodPut, "/v1/courses/"+course.ID+"/lectures", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &doc)
	require.Len(t, doc.Sections[0].Lectures, 3)
	assert.Equal(t, setup.ID, doc.Sections[0].Lectures[0].ID)
	assert.Equal(t, "Welcome again", doc.Sections[0].Lectures[1].Title)
	assert.Equal(t, "welcome-2", doc.Sections[0].Lectures[1].Slug)
	assert.Equal(t, welcome.ID, doc.Sections[0].Lectures[2].ID)
	assert.Equal(t, "Hello", doc.Sections[0].Lectures[2].Body)

	// delete
	rec = serve(app, http.MethodDelete, path+"/"+setup.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &doc)
	require.Len(t, doc.Sections[0].Lectures, 2)
	assert.Equal(t, again.ID, doc.Sections[0].Lectures[0].ID)
	assert.Equal(t, welcome.ID, doc.Sections[0].Lectures[1].ID)

	runHttpTests(t, []httpTest{
		{
			name: "append with taken slug", method: http.MethodPost, path: path,
			body: []byte(`{"title": "Hi", "slug": "welcome"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"slug": content.ErrSlugTaken.Error()}),
		},
		{
			name: "append without title", method: http.MethodPost, path: path, body: []byte(`{"body": "Hi"}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "append to unknown section", method: http.MethodPost,
			path: "/v1/courses/" + course.ID + "/sections/lol/lectures", body: []byte(`{"title": "Hi"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: content.ErrSectionNotFound.Error()}),
		},
		{
			name: "replace deleted lecture", method: http.MethodPut, path: path + "/" + setup.ID, body: []byte(`{"body": "Lol"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: content.ErrLectureNotFound.Error()}),
		},
		{
			name: "replace with invalid media url", method: http.MethodPut, path: path + "/" + welcome.ID, body: []byte(`{"media_url": "lol"}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"media_url": "media_url must be a valid URL"}),
		},
		{
			name: "delete deleted lecture", method: http.MethodDelete, path: path + "/" + setup.ID,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: content.ErrLectureNotFound.Error()}),
		},
	})

	t.Run("resolve appended lecture", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/v1/content/welcome-2")
		require.Equal(t, http.StatusOK, rec.Code)
		var resolved content.Document
		unmarshall(t, rec, &resolved)
		assert.Equal(t, course.ID, resolved.ID)
	})
}

// racingRepo lets another writer save the Document right before each save.
type racingRepo struct {
	content.Repository
}

func (r racingRepo) SaveDocument(ctx context.Context, doc content.Document) (content.Document, error) {
	if _, err := r.Repository.SaveDocument(ctx, doc); err != nil {
		return content.Document{}, err
	}
	return r.Repository.SaveDocument(ctx, doc)
}

// brokenRepo fails on every read.
type brokenRepo struct {
	content.Repository
}

func (brokenRepo) GetDocument(context.Context, content.Kind, string) (content.Document, error) {
	return content.Document{}, errors.New("connection refused")
}

// shutdownRepo fails on every read with an unrecoverable error.
type shutdownRepo struct {
	content.Repository
}

func (shutdownRepo) GetDocument(context.Context, content.Kind, string) (content.Document, error) {
	return content.Document{}, core.NewShutdownError("mongo client disconnected")
}

func Test_contentApi_errors(t *testing.T) {
	db.Reset()
	course := createDocument(t, content.KindCourse, "Go Basics", time.Now().UTC(), "Welcome")
	path := "/v1/courses/" + course.ID

	t.Run("concurrent modification", func(t *testing.T) {
		srv := newServer(racingRepo{repo})
		rec := serve(srv, http.MethodPut, path, []byte(`{"title": "Lol"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: content.ErrConflict.Error()}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("storage failure", func(t *testing.T) {
		before := len(logger.Entries())
		srv := newServer(brokenRepo{repo})
		rec := serve(srv, http.MethodGet, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())

		entries := logger.Entries()
		require.Len(t, entries, before+1)
		assert.Equal(t, "error: Internal Server Error", entries[before])
	})

	t.Run("storage shutdown", func(t *testing.T) {
		srv := newServer(shutdownRepo{repo})
		rec := serve(srv, http.MethodGet, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		select {
		case <-srv.ShutdownSignal():
		default:
			t.Error("shutdown was not signaled")
		}
	})

	t.Run("requests are observed", func(t *testing.T) {
		before := metrics.Requests
		serve(app, http.MethodGet, path)
		serve(app, http.MethodGet, "/v1/lols")
		assert.Equal(t, before+2, metrics.Requests)
	})
}
