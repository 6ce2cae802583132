package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

var (
	statusTag  = "attstatus"
	statusText = "status must be one of present, absent, late or excused"
)

// InitValidators registers the attendance validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	_, ok := ParseStatus(fl.Field().String())
	return ok
}
