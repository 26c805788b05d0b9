// Package validator adapts go-playground/validator to echo, reporting failures as
// per-field English messages keyed by JSON field name.
package validator

import (
	"reflect"
	"strings"
	"unicode"

	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

var ErrTranslatorNotFound = errors.New("translator not found")

// Validator implements echo.Validator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator with English translations and the username and password rules.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, errors.Wrap(err, "register default translations")
	}
	if err := registerCustomRules(validate, enTrans); err != nil {
		return nil, err
	}

	return &Validator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate returns a *domainerrors.ValidationError when i breaks any rule.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return errors.WithStack(err)
	}

	fields := make(map[string]string, len(validateErrs))
	for _, fe := range validateErrs {
		if _, exists := fields[fe.Field()]; exists {
			continue
		}
		fields[fe.Field()] = fe.Translate(v.translator)
	}

	return domainerrors.NewValidationError(fields)
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}

	return name
}

type customRule struct {
	tag     string
	fn      validator.Func
	message string
}

var customRules = []customRule{
	{
		tag:     "username",
		fn:      validUsername,
		message: "{0} may only contain letters, digits and underscores",
	},
	{
		tag:     "password",
		fn:      validPassword,
		message: "{0} must be at most 72 bytes and must not contain NUL characters",
	},
}

func registerCustomRules(validate *validator.Validate, trans ut.Translator) error {
	for _, rule := range customRules {
		if err := validate.RegisterValidation(rule.tag, rule.fn); err != nil {
			return errors.Wrapf(err, "register %s rule", rule.tag)
		}

		message := rule.message
		err := validate.RegisterTranslation(rule.tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(rule.tag, message, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}

				return t
			},
		)
		if err != nil {
			return errors.Wrapf(err, "register %s translation", rule.tag)
		}
	}

	return nil
}

// validUsername accepts Unicode letters, digits and underscores, with at least one letter or digit.
func validUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()

	hasAlnum := false
	for _, r := range username {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			hasAlnum = true
		case r == '_':
		default:
			return false
		}
	}

	return hasAlnum
}

func validPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	return len(password) <= maxPasswordBytes && !strings.ContainsRune(password, 0)
}
