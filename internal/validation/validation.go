// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinRating = 1
	MaxRating = 5

	MinPasswordLength = 6
	// MaxPasswordLength ограничен длиной входа bcrypt.
	MaxPasswordLength = 72

	// MaxPriceCents ограничивает цену курса: 1e9 в основных единицах валюты.
	MaxPriceCents = 100_000_000_000

	maxGatewayIDLength = 64
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("gatewayid", func(fl validator.FieldLevel) bool {
		return IsValidGatewayID(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Struct проверяет структуру по тегам validate и возвращает ошибку
// с перечислением некорректных полей.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// IsValidEmail проверяет формат адреса электронной почты.
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// NormalizeEmail приводит адрес к каноническому виду для хранения и поиска.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidRating проверяет, что оценка лежит в допустимом диапазоне.
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// IsValidDiscount проверяет, что скидка задана в процентах от 0 до 100.
func IsValidDiscount(discount int) bool {
	return discount >= 0 && discount <= 100
}

// IsValidGatewayID проверяет идентификатор объекта платёжного шлюза (заказа, платежа).
func IsValidGatewayID(id string) bool {
	if id == "" || len(id) > maxGatewayIDLength {
		return false
	}
	for _, ch := range id {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
		default:
			return false
		}
	}
	return true
}
