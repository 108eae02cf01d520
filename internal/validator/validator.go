package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/stemsi/classroom-client/internal/apperr"
)

var (
	// ginTrans translates errors raised by Gin's binding engine.
	ginTrans ut.Translator

	// core validates inputs that reach the session and feed layers directly.
	coreOnce  sync.Once
	core      *govalidator.Validate
	coreTrans ut.Translator
)

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		ginTrans = configure(v)
	}
}

// configure makes v report JSON field names and returns its English translator.
// Each engine gets its own translator since translations register once per translator.
func configure(v *govalidator.Validate) ut.Translator {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	return trans
}

func engine() *govalidator.Validate {
	coreOnce.Do(func() {
		core = govalidator.New()
		// Same tags as Gin's binder so model structs validate identically in both places.
		core.SetTagName("binding")
		coreTrans = configure(core)
	})
	return core
}

// Struct validates v against its binding tags and returns an *apperr.Error with
// code VALIDATION_ERROR and translated per-field messages on failure.
func Struct(op string, v interface{}) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.New(apperr.CodeValidation, op, err)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Translate(coreTrans)
	}
	return apperr.Validation(op, fields)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(ginTrans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
