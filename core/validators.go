package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	numericIDTag   = "regnum"
	numericIDText  = "only digits, dots and dashes are allowed"
	numericIDRegex = regexp.MustCompile(`^[0-9][0-9.\-]*$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator ready for use with the given translator.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(numericIDTag, numericIDValidation)
	RegisterCustomTranslation(validate, translator, numericIDTag, numericIDText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// FieldErrors flattens validation errors into {field: [messages]}.
func FieldErrors(err error, translator ut.Translator) (map[string][]string, bool) {
	switch vErr := err.(type) {
	case validator.ValidationErrors:
		flds := make(map[string][]string, len(vErr))
		for _, fe := range vErr {
			flds[fe.Field()] = append(flds[fe.Field()], fe.Translate(translator))
		}
		return flds, true
	case *ValidationError:
		if len(vErr.Fields) == 0 {
			return nil, true
		}
		flds := make(map[string][]string, len(vErr.Fields))
		for _, fe := range vErr.Fields {
			flds[fe.Field] = append(flds[fe.Field], fe.Error)
		}
		return flds, true
	}
	return nil, false
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// numericIDValidation only allows registration numbers (NIS/NIP) like "2023.10.045".
func numericIDValidation(fl validator.FieldLevel) bool {
	return numericIDRegex.MatchString(fl.Field().String())
}
