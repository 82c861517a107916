package content

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	order := 1
	return Document{
		ID:    "d1",
		Kind:  KindCourse,
		Title: "Course A",
		Slug:  "course-a",
		Sections: []Section{
			{ID: "s1", Title: "Intro", Order: &order, Lectures: []Lecture{
				{ID: "l1", Title: "Welcome", Slug: "welcome"},
				{ID: "l2", Title: "Setup", Slug: "setup"},
			}},
			{ID: "s2", Title: "Basics", Lectures: []Lecture{
				{ID: "l3", Title: "Types", Slug: "types"},
			}},
			{ID: "s3", Title: "Outro", Lectures: []Lecture{}},
		},
	}
}

func sectionIDs(d Document) []string {
	ids := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestDocument_FindSection(t *testing.T) {
	doc := sampleDocument()

	s, err := doc.FindSection("s2")
	require.NoError(t, err)
	assert.Equal(t, "Basics", s.Title)

	// request ids are plain strings: compared in canonical form
	s, err = doc.FindSection("  S2 ")
	require.NoError(t, err)
	assert.Equal(t, "s2", s.ID)

	_, err = doc.FindSection("lol")
	assert.Equal(t, ErrSectionNotFound, err)
	_, err = doc.FindSection("")
	assert.Equal(t, ErrSectionNotFound, err)

	// changes through the pointer are staged on the document
	s.Title = "Basics 101"
	assert.Equal(t, "Basics 101", doc.Sections[1].Title)
}

func TestDocument_ReplaceSection(t *testing.T) {
	doc := sampleDocument()

	err := doc.ReplaceSection("s2", Section{ID: "other", Title: "Fundamentals"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, sectionIDs(doc))
	assert.Equal(t, "Fundamentals", doc.Sections[1].Title)
	assert.NotNil(t, doc.Sections[1].Lectures)
	assert.Empty(t, doc.Sections[1].Lectures)

	assert.Equal(t, ErrSectionNotFound, doc.ReplaceSection("lol", Section{Title: "x"}))
}

func TestDocument_RemoveSection(t *testing.T) {
	doc := sampleDocument()
	stored := doc.Clone()

	require.NoError(t, doc.RemoveSection("s2"))
	assert.Equal(t, []string{"s1", "s3"}, sectionIDs(doc))

	// its lectures went with it
	_, _, ok := doc.LocateLecture("l3")
	assert.False(t, ok)
	_, _, ok = doc.FindLectureBySlug("types")
	assert.False(t, ok)

	// the clone still has everything
	assert.Equal(t, []string{"s1", "s2", "s3"}, sectionIDs(stored))

	assert.Equal(t, ErrSectionNotFound, doc.RemoveSection("s2"))
}

func TestDocument_AppendSection(t *testing.T) {
	doc := sampleDocument()
	doc.AppendSection(Section{Title: "Bonus"})

	require.Len(t, doc.Sections, 4)
	assert.Equal(t, "Bonus", doc.Sections[3].Title)
	assert.NotNil(t, doc.Sections[3].Lectures)
}

func TestDocument_LocateLecture(t *testing.T) {
	doc := sampleDocument()

	s, l, ok := doc.LocateLecture("L3")
	require.True(t, ok)
	assert.Equal(t, "s2", s.ID)
	assert.Equal(t, "types", l.Slug)

	_, _, ok = doc.LocateLecture("lol")
	assert.False(t, ok)

	s, l, ok = doc.FindLectureBySlug("setup")
	require.True(t, ok)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "l2", l.ID)

	_, _, ok = doc.FindLectureBySlug("")
	assert.False(t, ok)

	assert.Equal(t, 3, doc.LectureCount())
}

func TestSection_lectures(t *testing.T) {
	doc := sampleDocument()
	s := &doc.Sections[0]
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Lectures[0].CreatedAt = created

	l, err := s.FindLecture("l2")
	require.NoError(t, err)
	assert.Equal(t, "Setup", l.Title)
	_, err = s.FindLecture("l3") // belongs to another section
	assert.Equal(t, ErrLectureNotFound, err)

	err = s.ReplaceLecture("l1", Lecture{ID: "x", Slug: "x", Title: "Hi", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, Lecture{ID: "l1", Slug: "welcome", Title: "Hi", Body: "hello", CreatedAt: created}, s.Lectures[0])
	assert.Equal(t, ErrLectureNotFound, s.ReplaceLecture("lol", Lecture{}))

	s.AppendLecture(Lecture{ID: "l4", Title: "Extra", Slug: "extra"})
	require.NoError(t, s.RemoveLecture("l2"))
	ids := make([]string, 0, len(s.Lectures))
	for _, l := range s.Lectures {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"l1", "l4"}, ids)
	assert.Equal(t, ErrLectureNotFound, s.RemoveLecture("l2"))

	s.ReplaceLectures(nil)
	assert.NotNil(t, s.Lectures)
	assert.Empty(t, s.Lectures)
}

func TestDocument_Clone(t *testing.T) {
	doc := sampleDocument()
	cp := doc.Clone()

	cp.Sections[0].Title = "changed"
	*cp.Sections[0].Order = 42
	cp.Sections[0].Lectures[0].Title = "changed"
	cp.Sections = append(cp.Sections, Section{ID: "s4"})

	assert.Equal(t, "Intro", doc.Sections[0].Title)
	assert.Equal(t, 1, *doc.Sections[0].Order)
	assert.Equal(t, "Welcome", doc.Sections[0].Lectures[0].Title)
	assert.Len(t, doc.Sections, 3)
}

func TestAssignIDs(t *testing.T) {
	var n int
	newID := func() string {
		n++
		return "id" + strconv.Itoa(n)
	}
	now := time.Now().UTC()
	doc := Document{
		Sections: []Section{
			{ID: "s1", Lectures: []Lecture{{ID: "l1"}, {Title: "new"}}},
			{Title: "new"},
		},
	}

	AssignIDs(&doc, newID, now)
	assert.Equal(t, "id1", doc.ID)
	assert.Equal(t, "s1", doc.Sections[0].ID)
	assert.Equal(t, "l1", doc.Sections[0].Lectures[0].ID)
	assert.Equal(t, "id2", doc.Sections[0].Lectures[1].ID)
	assert.Equal(t, now, doc.Sections[0].Lectures[1].CreatedAt)
	assert.Equal(t, "id3", doc.Sections[1].ID)
	assert.NotNil(t, doc.Sections[1].Lectures)
}

func TestKinds(t *testing.T) {
	for _, kind := range Kinds {
		assert.True(t, kind.IsValid())
		got, ok := KindFromCollection(kind.Collection())
		require.True(t, ok)
		assert.Equal(t, kind, got)

		got, ok = ParseKind(" " + string(kind) + " ")
		require.True(t, ok)
		assert.Equal(t, kind, got)
	}

	kind, ok := ParseKind("Curricula")
	require.True(t, ok)
	assert.Equal(t, KindCurriculum, kind)

	_, ok = ParseKind("users")
	assert.False(t, ok)
	assert.False(t, Kind("lol").IsValid())
}
