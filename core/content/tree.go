package content

import (
	"strings"
	"time"
)

// CanonicalID normalises an identifier so that ids coming from requests (plain strings)
// compare equal to the ids held in the tree.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func sameID(a, b string) bool {
	return a != "" && CanonicalID(a) == CanonicalID(b)
}

// SectionIndex returns the position of the Section with the given id, or -1.
func (d *Document) SectionIndex(sectionID string) int {
	for i := range d.Sections {
		if sameID(d.Sections[i].ID, sectionID) {
			return i
		}
	}
	return -1
}

// FindSection returns a pointer into the tree; changes made through it are staged on the Document.
func (d *Document) FindSection(sectionID string) (*Section, error) {
	if i := d.SectionIndex(sectionID); i >= 0 {
		return &d.Sections[i], nil
	}
	return nil, ErrSectionNotFound
}

func (d *Document) AppendSection(s Section) {
	if s.Lectures == nil {
		s.Lectures = []Lecture{}
	}
	d.Sections = append(d.Sections, s)
}

// ReplaceSection overwrites the Section with the given id in place. Its id is kept.
func (d *Document) ReplaceSection(sectionID string, s Section) error {
	i := d.SectionIndex(sectionID)
	if i < 0 {
		return ErrSectionNotFound
	}
	s.ID = d.Sections[i].ID
	if s.Lectures == nil {
		s.Lectures = []Lecture{}
	}
	d.Sections[i] = s
	return nil
}

// RemoveSection drops the Section (and all of its lectures), keeping the siblings' order.
func (d *Document) RemoveSection(sectionID string) error {
	i := d.SectionIndex(sectionID)
	if i < 0 {
		return ErrSectionNotFound
	}
	sections := make([]Section, 0, len(d.Sections)-1)
	sections = append(sections, d.Sections[:i]...)
	d.Sections = append(sections, d.Sections[i+1:]...)
	return nil
}

func (d *Document) ReplaceSections(sections []Section) {
	if sections == nil {
		sections = []Section{}
	}
	d.Sections = sections
}

// LocateLecture finds a lecture anywhere in the tree by id.
func (d *Document) LocateLecture(lectureID string) (*Section, *Lecture, bool) {
	for i := range d.Sections {
		if j := d.Sections[i].LectureIndex(lectureID); j >= 0 {
			return &d.Sections[i], &d.Sections[i].Lectures[j], true
		}
	}
	return nil, nil, false
}

// FindLectureBySlug finds a lecture anywhere in the tree by slug.
func (d *Document) FindLectureBySlug(slug string) (*Section, *Lecture, bool) {
	if slug == "" {
		return nil, nil, false
	}
	for i := range d.Sections {
		for j := range d.Sections[i].Lectures {
			if d.Sections[i].Lectures[j].Slug == slug {
				return &d.Sections[i], &d.Sections[i].Lectures[j], true
			}
		}
	}
	return nil, nil, false
}

// LectureCount returns the number of lectures over all sections.
func (d *Document) LectureCount() int {
	var n int
	for _, s := range d.Sections {
		n += len(s.Lectures)
	}
	return n
}

func (s *Section) LectureIndex(lectureID string) int {
	for i := range s.Lectures {
		if sameID(s.Lectures[i].ID, lectureID) {
			return i
		}
	}
	return -1
}

func (s *Section) FindLecture(lectureID string) (*Lecture, error) {
	if i := s.LectureIndex(lectureID); i >= 0 {
		return &s.Lectures[i], nil
	}
	return nil, ErrLectureNotFound
}

func (s *Section) AppendLecture(l Lecture) {
	s.Lectures = append(s.Lectures, l)
}

// ReplaceLecture overwrites the Lecture with the given id in place. Its id & slug are kept.
func (s *Section) ReplaceLecture(lectureID string, l Lecture) error {
	i := s.LectureIndex(lectureID)
	if i < 0 {
		return ErrLectureNotFound
	}
	l.ID = s.Lectures[i].ID
	l.Slug = s.Lectures[i].Slug
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.Lectures[i].CreatedAt
	}
	s.Lectures[i] = l
	return nil
}

func (s *Section) RemoveLecture(lectureID string) error {
	i := s.LectureIndex(lectureID)
	if i < 0 {
		return ErrLectureNotFound
	}
	lectures := make([]Lecture, 0, len(s.Lectures)-1)
	lectures = append(lectures, s.Lectures[:i]...)
	s.Lectures = append(lectures, s.Lectures[i+1:]...)
	return nil
}

func (s *Section) ReplaceLectures(lectures []Lecture) {
	if lectures == nil {
		lectures = []Lecture{}
	}
	s.Lectures = lectures
}

// Clone returns a deep copy of the Document, so staged changes never leak into a stored copy.
func (d Document) Clone() Document {
	cp := d
	cp.Sections = make([]Section, len(d.Sections))
	for i, s := range d.Sections {
		cs := s
		if s.Order != nil {
			order := *s.Order
			cs.Order = &order
		}
		cs.Lectures = make([]Lecture, len(s.Lectures))
		copy(cs.Lectures, s.Lectures)
		cp.Sections[i] = cs
	}
	return cp
}

// Normalize makes sure collections are never nil (so they encode as empty lists).
func (d *Document) Normalize() {
	if d.Sections == nil {
		d.Sections = []Section{}
	}
	for i := range d.Sections {
		if d.Sections[i].Lectures == nil {
			d.Sections[i].Lectures = []Lecture{}
		}
	}
}

// AssignIDs gives a fresh identifier to every node that does not have one yet.
// Called by the storage layer on save: identifiers are system-assigned.
func AssignIDs(d *Document, newID func() string, now time.Time) {
	if d.ID == "" {
		d.ID = newID()
	}
	for i := range d.Sections {
		s := &d.Sections[i]
		if s.ID == "" {
			s.ID = newID()
		}
		for j := range s.Lectures {
			l := &s.Lectures[j]
			if l.ID == "" {
				l.ID = newID()
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = now
			}
		}
	}
	d.Normalize()
}
