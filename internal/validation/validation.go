// Package validation wraps go-playground/validator with English translations,
// JSON field names and the custom tags used by request payloads.
package validation

import (
	"errors"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/microcosm-cc/bluemonday"
)

const (
	notBlankTag = "notblank"
	phoneTag    = "eg_phone"
	stageTag    = "stage"
)

// Academic stages a student or group can belong to.
const (
	StageGrade6 = "GRADE6"
	StagePrep   = "PREP"
)

var (
	phonePattern = regexp.MustCompile(`^01[0-2,5][0-9]{8}$`)
	stripPolicy  = bluemonday.StrictPolicy()
)

// Validator validates request payloads and translates failures per field.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(phoneTag, phone)
	_ = validate.RegisterValidation(stageTag, stage)

	v := &Validator{validate: validate, translator: translator}
	v.registerCustomTranslations(notBlankTag, phoneTag, stageTag)
	return v
}

// FieldErrors maps JSON field names to translated messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s and returns FieldErrors when any rule fails.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

// Var validates a single value against tag.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// no-op registration: messages come from translateCustom
func (v *Validator) registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = v.validate.RegisterTranslation(tag, v.translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case phoneTag:
		return "phone number must be 11 digits starting with 010, 011, 012 or 015"
	case stageTag:
		return "stage must be one of GRADE6, PREP"
	default:
		return ""
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func phone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func stage(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case StageGrade6, StagePrep:
		return true
	}
	return false
}

// CleanText strips markup from free text and trims surrounding space.
// The result is plain text; entities escaped by the policy are decoded.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
