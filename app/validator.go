package parley

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// validate checks the configuration. Request bodies and event payloads are
// validated by core.Validate.
var validate *validator.Validate
var uniTrans *ut.UniversalTranslator

func registerTranslation(trans ut.Translator, tag, text string) {
	validate.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
		return ut.Add(tag, text, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(tag, strings.TrimPrefix(fe.Namespace(), "Config."), fe.Param())
		return t
	})
}

func init() {
	validate = validator.New()
	en := en.New()
	uniTrans = ut.New(en, en)
	enTrans, _ := uniTrans.GetTranslator("en")

	// report fields the way viper keys them
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.ToLower(field.Name)
	})

	validate.RegisterValidation("port", func(fl validator.FieldLevel) bool {
		port, ok := fl.Field().Interface().(int)
		if !ok {
			return false
		}
		return port > 0 && port <= 65535
	})

	registerTranslation(enTrans, "required", "{0} is a required field")
	registerTranslation(enTrans, "port", "{0} must be a valid port number")
	registerTranslation(enTrans, "oneof", "{0} must be one of [{1}]")
	registerTranslation(enTrans, "gte", "{0} must be at least {1}")
	registerTranslation(enTrans, "required_with", "{0} is required when {1} is set")
}
