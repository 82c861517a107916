package content

import (
	"fmt"
	"time"

	"github.com/trezcool/somo/core"
)

func sectionField(i int, field string) string {
	return fmt.Sprintf("sections[%d].%s", i, field)
}

func lectureField(i int, field string) string {
	return fmt.Sprintf("lectures[%d].%s", i, field)
}

func duplicateErr(field, id string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: "duplicate id " + id})
}

// buildSections turns caller supplied sections into tree nodes. Sections (and lectures)
// whose id exists in `doc` keep their identity; unknown ids are dropped so that storage
// assigns fresh ones.
func buildSections(doc *Document, payloads []SectionPayload, slugs *slugSet) ([]Section, error) {
	seen := make(map[string]struct{}, len(payloads))
	sections := make([]Section, 0, len(payloads))
	for i, sp := range payloads {
		if id := CanonicalID(sp.ID); id != "" {
			if _, dup := seen[id]; dup {
				return nil, duplicateErr(sectionField(i, "id"), id)
			}
			seen[id] = struct{}{}
		}
		s, err := buildSection(doc, sp, slugs)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	if err := checkLectureIdentity(sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func buildSection(doc *Document, sp SectionPayload, slugs *slugSet) (Section, error) {
	section := Section{
		Title: core.CleanString(sp.Title),
		Order: sp.Order,
	}
	existing, err := doc.FindSection(sp.ID)
	if err == nil {
		section.ID = existing.ID
	}

	switch {
	case sp.Lectures != nil:
		lectures, err := buildLectures(doc, sp.Lectures, slugs)
		if err != nil {
			return Section{}, err
		}
		section.Lectures = lectures
	case existing != nil:
		section.Lectures = make([]Lecture, len(existing.Lectures))
		copy(section.Lectures, existing.Lectures)
	default:
		section.Lectures = []Lecture{}
	}
	return section, nil
}

func buildLectures(doc *Document, payloads []LecturePayload, slugs *slugSet) ([]Lecture, error) {
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(payloads))
	lectures := make([]Lecture, 0, len(payloads))
	for i, lp := range payloads {
		title := core.CleanString(lp.Title)
		if title == "" {
			return nil, titleRequired(lectureField(i, "title"))
		}

		if _, existing, ok := doc.LocateLecture(lp.ID); ok {
			if _, dup := seen[existing.ID]; dup {
				return nil, duplicateErr(lectureField(i, "id"), existing.ID)
			}
			seen[existing.ID] = struct{}{}
			lectures = append(lectures, Lecture{
				ID:        existing.ID,
				Title:     title,
				Slug:      existing.Slug,
				Body:      lp.Body,
				MediaURL:  lp.MediaURL,
				CreatedAt: existing.CreatedAt,
			})
			continue
		}

		slug, err := slugs.allocate(lp.Slug, title)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, Lecture{
			Title:     title,
			Slug:      slug,
			Body:      lp.Body,
			MediaURL:  lp.MediaURL,
			CreatedAt: now,
		})
	}
	return lectures, nil
}

// checkLectureIdentity makes sure a kept lecture is not listed under two sections.
func checkLectureIdentity(sections []Section) error {
	seen := make(map[string]struct{})
	for i, s := range sections {
		for j, l := range s.Lectures {
			if l.ID == "" {
				continue
			}
			if _, dup := seen[l.ID]; dup {
				return duplicateErr(sectionField(i, lectureField(j, "id")), l.ID)
			}
			seen[l.ID] = struct{}{}
		}
	}
	return nil
}
