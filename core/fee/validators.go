package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

var (
	statusTag  = "feestatus"
	statusText = "status must be one of pending, paid, overdue or cancelled"
)

// InitValidators registers the fee validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return core.StringInSlice(fl.Field().String(), Statuses)
}
