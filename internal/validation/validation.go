// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CodeLength - длина выпускаемого кода активации в символах.
const CodeLength = 16

const maxCodeLength = 64

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("redemption_code", func(fl validator.FieldLevel) bool {
		_, ok := NormalizeCode(fl.Field().String())
		return ok
	})
}

// NormalizeCode приводит код активации к каноническому виду: без пробелов, в верхнем регистре.
// Допустимы только латинские буквы и цифры.
func NormalizeCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > maxCodeLength {
		return "", false
	}
	for _, ch := range code {
		if (ch < '0' || ch > '9') && (ch < 'A' || ch > 'Z') {
			return "", false
		}
	}
	return code, true
}

// NormalizeEmail обрезает пробелы и приводит адрес к нижнему регистру.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail проверяет синтаксис email-адреса.
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// Struct проверяет структуру по тегам validate и возвращает ошибку с перечнем нарушенных полей.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
