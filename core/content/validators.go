package content

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
)

const (
	slugTag  = "slug"
	slugText = "only lowercase alphanumeric characters separated by single hyphens are allowed"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsSlug reports whether `s` is made of lowercase alphanumeric words joined by single hyphens,
// the shape Slugify produces.
func IsSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// RegisterValidators registers the `slug` tag used by the content payloads.
// Call it after core.InitValidators.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(slugTag, func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, slugTag, slugText)
}
