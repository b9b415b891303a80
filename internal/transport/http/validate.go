package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"medy-coop-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// requestValidator checks request DTOs and renders field errors in English.
type requestValidator struct {
	v     *govalidator.Validate
	trans ut.Translator
}

func newRequestValidator() *requestValidator {
	v := govalidator.New()
	// Use JSON tag name for field names in error messages.
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
	return &requestValidator{v: v, trans: trans}
}

// bind decodes the JSON body into dst and validates it.
func (rv *requestValidator) bind(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidPayload(fmt.Sprintf("malformed JSON body: %v", err))
	}
	if err := rv.v.Struct(dst); err != nil {
		var ve govalidator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fe.Translate(rv.trans))
			}
			sort.Strings(msgs)
			return invalidPayload(strings.Join(msgs, "; "))
		}
		return invalidPayload(err.Error())
	}
	return nil
}

func invalidPayload(msg string) error {
	return &domain.Error{Kind: domain.KindValidation, Code: "INVALID_PAYLOAD", Message: msg}
}
