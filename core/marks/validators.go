package marks

import (
	"fmt"
	"math"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-erp/core"
)

var (
	// custom validation tags & texts
	questionNoTag   = "questionno"
	questionNoText  = fmt.Sprintf("{0} must be between %d and %d", MinQuestionNo, MaxQuestionNo)
	hundredthsTag   = "hundredths"
	hundredthsText  = "{0} must have at most 2 decimals"
	componentTag    = "component"
	componentText   = "{0} must be one of: " + strings.Join(Components, ", ")
	hundredthsDelta = 1e-6
)

// InitValidators registers the marks validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(questionNoTag, questionNoValidation)
	core.RegisterCustomTranslation(validate, translator, questionNoTag, questionNoText)

	_ = validate.RegisterValidation(hundredthsTag, hundredthsValidation)
	core.RegisterCustomTranslation(validate, translator, hundredthsTag, hundredthsText)

	_ = validate.RegisterValidation(componentTag, componentValidation)
	core.RegisterCustomTranslation(validate, translator, componentTag, componentText)
}

// questionNoValidation only allows question numbers a Blueprint part can hold.
func questionNoValidation(fl validator.FieldLevel) bool {
	return IsValidQuestionNo(int(fl.Field().Int()))
}

// hundredthsValidation only allows marks the database can store without rounding (NUMERIC(6,2)).
func hundredthsValidation(fl validator.FieldLevel) bool {
	return HasAtMostTwoDecimals(fl.Field().Float())
}

func componentValidation(fl validator.FieldLevel) bool {
	return IsValidComponent(fl.Field().String())
}

func IsValidQuestionNo(qno int) bool {
	return qno >= MinQuestionNo && qno <= MaxQuestionNo
}

func HasAtMostTwoDecimals(m float64) bool {
	return math.Abs(m*100-math.Round(m*100)) < hundredthsDelta
}

func IsValidComponent(component string) bool {
	for _, c := range Components {
		if c == component {
			return true
		}
	}
	return false
}
