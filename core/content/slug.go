package content

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	maxSlugLen      = 96
	maxSlugAttempts = 50

	lectureSlugPrefix = "lecture"
)

var (
	nowFunc = time.Now // mockable

	imageExtensions = map[string]struct{}{
		".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
		".ico": {}, ".bmp": {}, ".avif": {}, ".tif": {}, ".tiff": {},
	}
)

// Slugify lowers `title` and keeps its ASCII letters & digits, every other run of characters
// becoming a single hyphen. The result may be empty.
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		default:
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			if b.Len()+1 >= maxSlugLen {
				break
			}
			b.WriteByte('-')
			pendingSep = false
		}
		if b.Len() >= maxSlugLen {
			break
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

// DeriveSlug derives a lecture slug from its title. It is never empty: titles without
// any usable character fall back to a time based slug.
func DeriveSlug(title string) string {
	return deriveSlug(title, lectureSlugPrefix)
}

func deriveSlug(title, fallbackPrefix string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}
	return fallbackPrefix + "-" + strconv.FormatInt(nowFunc().UnixNano(), 10)
}

// IsImageSegment reports whether a path segment looks like an image filename.
func IsImageSegment(segment string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(segment))]
	return ok
}

// uniqueSlug returns `base` or the first `base-N` (N >= 2) that `taken` reports as free.
func uniqueSlug(base string, taken func(slug string) (bool, error)) (string, error) {
	slug := base
	for n := 2; n <= maxSlugAttempts+1; n++ {
		exists, err := taken(slug)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		suffix := "-" + strconv.Itoa(n)
		if len(base)+len(suffix) > maxSlugLen {
			base = strings.TrimRight(base[:maxSlugLen-len(suffix)], "-")
		}
		slug = base + suffix
	}
	// too many siblings share the same title
	return base + "-" + strconv.FormatInt(nowFunc().UnixNano(), 10), nil
}

// slugSet tracks the lecture slugs allocated while a mutation is being staged.
type slugSet struct {
	ctx   context.Context
	repo  Repository
	doc   *Document
	taken map[string]struct{}
}

func newSlugSet(ctx context.Context, repo Repository, doc *Document) *slugSet {
	return &slugSet{ctx: ctx, repo: repo, doc: doc, taken: make(map[string]struct{})}
}

func (ss *slugSet) exists(slug string) (bool, error) {
	if _, ok := ss.taken[slug]; ok {
		return true, nil
	}
	if _, _, ok := ss.doc.FindLectureBySlug(slug); ok {
		return true, nil
	}
	return ss.repo.LectureSlugExists(ss.ctx, slug)
}

func (ss *slugSet) reserve(slug string) { ss.taken[slug] = struct{}{} }

// allocate returns a free slug for a new lecture. An explicitly requested slug is kept
// as is and must be free; a derived one gets a numeric suffix on collision.
func (ss *slugSet) allocate(requested, title string) (string, error) {
	if requested != "" {
		exists, err := ss.exists(requested)
		if err != nil {
			return "", storageErr("checking lecture slug", err)
		}
		if exists {
			return "", errSlugTakenField()
		}
		ss.reserve(requested)
		return requested, nil
	}
	slug, err := uniqueSlug(DeriveSlug(title), ss.exists)
	if err != nil {
		return "", storageErr("deriving lecture slug", err)
	}
	ss.reserve(slug)
	return slug, nil
}
