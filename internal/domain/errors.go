package domain

import (
	"errors"
	"fmt"
)

// StorageFailureMessage это единственное сообщение, которое уходит клиенту при сбое хранилища.
const StorageFailureMessage = "An error occurred while accessing the database"

const unsupportedItemQueryMessage = "The current implementation does not support arbitrary queries for items. " +
	`Make sure that your items request contains the "order" query parameter.`

var (
	// ErrValidation: отсутствует или пусто обязательное поле (ошибка клиента).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidOrder: item ссылается на несуществующий заказ.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnsupportedQuery: форма запроса не поддерживается.
	ErrUnsupportedQuery = errors.New("unsupported query")
	// ErrStorage: хранилище недоступно или операция завершилась ошибкой.
	ErrStorage = errors.New("storage failure")
)

// ValidationError описывает первое незаполненное обязательное поле.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is позволяет сравнивать через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedQueryError возвращается на запросы items без фильтра по заказу.
type UnsupportedQueryError struct {
	Message string
}

// NewUnsupportedItemQueryError возвращает ошибку с текстом для запросов items.
func NewUnsupportedItemQueryError() *UnsupportedQueryError {
	return &UnsupportedQueryError{Message: unsupportedItemQueryMessage}
}

func (e *UnsupportedQueryError) Error() string {
	return e.Message
}

func (e *UnsupportedQueryError) Is(target error) bool {
	return target == ErrUnsupportedQuery
}

// StorageError скрывает причину сбоя хранилища за общим сообщением.
// Причина доступна только через errors.Unwrap и нужна для логов.
type StorageError struct {
	Op    string
	Cause error
}

// NewStorageError оборачивает ошибку хранилища.
func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}

func (e *StorageError) Error() string {
	return StorageFailureMessage
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Detail возвращает описание для серверного лога.
func (e *StorageError) Detail() string {
	if e.Cause == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// IsClientFault сообщает, вызвана ли ошибка некорректным запросом клиента.
func IsClientFault(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrUnsupportedQuery)
}
