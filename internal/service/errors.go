package service

import (
	"errors"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
)

// Ошибки бизнес-логики. Обработчики сопоставляют их с кодами ответа HTTP.
var (
	ErrNotFound           = model.ErrNotFound
	ErrEmailTaken         = repository.ErrEmailTaken
	ErrAlreadyEnrolled    = errors.New("user already enrolled in this course")
	ErrSignatureInvalid   = errors.New("payment signature verification failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPurchaseClosed     = errors.New("purchase is already closed")
)
