package domain

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var entityValidator = validator.New(validator.WithRequiredStructEnabled())

// Тексты ошибок по пространству имён поля (StructNamespace валидатора).
var requiredFieldMessages = map[string]struct {
	field   string
	message string
}{
	"Order.From.Name": {"from.name", "Restaurant name not specified. Please specify a non-empty restaurant name."},
	"Order.Author":    {"author", "Author's name not specified. Please specify a non-empty name for the person opening this order."},
	"Order.Email":     {"email", "E-mail not specified. Please specify a non-empty e-mail for this order."},
	"Item.Name":       {"name", "Item name not specified. Please specify a non-empty item name."},
	"Item.Author":     {"author", "Author's name not specified. Please specify a non-empty name for the person who wants this item."},
	"Item.Price":      {"price", "Price not specified. Please specify a non-empty price for this item."},
}

// validateEntity возвращает ValidationError для первого невалидного поля
// в порядке объявления полей структуры.
func validateEntity(entity any) error {
	err := entityValidator.Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := fieldErrs[0]
	if known, ok := requiredFieldMessages[first.StructNamespace()]; ok {
		return &ValidationError{Field: known.field, Message: known.message}
	}
	return &ValidationError{
		Field:   first.Field(),
		Message: first.Field() + " is invalid",
	}
}
