package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/unicourses/core"
)

var (
	// custom validation tags & texts
	contentKindTag  = "contentkind"
	contentKindText = "invalid content kind"
)

// InitValidators registers the course package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentKindTag, contentKindValidation)
	core.RegisterCustomTranslation(validate, translator, contentKindTag, contentKindText)
}

// contentKindValidation checks that the value is a member of the closed ContentKind set.
func contentKindValidation(fl validator.FieldLevel) bool {
	return ContentKind(fl.Field().String()).Valid()
}
