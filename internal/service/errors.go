package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shenikar/transit_pulse/internal/models"
)

var (
	// ErrValidation - некорректный ввод, повтор бессмысленен
	ErrValidation = errors.New("validation error")
	// ErrStoreUnavailable - временный сбой хранилища или таймаут, можно повторить с задержкой
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConcurrentConflict - коллизия условной записи, повторяется внутри движка
	ErrConcurrentConflict = errors.New("concurrent conflict")
	// ErrInvalidTransition - переход статуса запрещён
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound - инцидент не найден
	ErrNotFound = models.ErrNotFound
)

// IsRetriable сообщает, может ли вызывающий повторить запрос
func IsRetriable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
