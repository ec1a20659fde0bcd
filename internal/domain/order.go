package domain

import (
	"encoding/json"
	"fmt"
)

// Ключи документа заказа в хранилище и в JSON.
const (
	FieldID     = "_id"
	FieldFrom   = "from"
	FieldName   = "name"
	FieldAuthor = "author"
	FieldEmail  = "email"
)

// Restaurant это заведение, из которого заказывают. Обязательно только имя,
// остальные атрибуты сохраняются как есть.
type Restaurant struct {
	Name       string `validate:"required"`
	Attributes map[string]any
}

// Order это групповой заказ в одно заведение, открытый одним автором.
//
// Заказ не изменяется после создания: его можно только прочитать или удалить.
// Attributes хранит произвольные дополнительные поля клиента без изменений.
type Order struct {
	ID         string
	From       Restaurant
	Author     string `validate:"required"`
	Email      string `validate:"required"`
	Attributes map[string]any
}

// Validate проверяет обязательные поля и возвращает первое незаполненное.
func (o *Order) Validate() error {
	return validateEntity(o)
}

// Document представляет заказ в виде документа хранилища.
func (o Order) Document() map[string]any {
	doc := make(map[string]any, len(o.Attributes)+4)
	for k, v := range o.Attributes {
		doc[k] = v
	}

	from := make(map[string]any, len(o.From.Attributes)+1)
	for k, v := range o.From.Attributes {
		from[k] = v
	}
	from[FieldName] = o.From.Name

	doc[FieldFrom] = from
	doc[FieldAuthor] = o.Author
	doc[FieldEmail] = o.Email
	if o.ID != "" {
		doc[FieldID] = o.ID
	} else {
		delete(doc, FieldID)
	}
	return doc
}

// OrderFromDocument восстанавливает заказ из документа хранилища.
func OrderFromDocument(doc map[string]any) Order {
	var order Order
	for k, v := range doc {
		switch k {
		case FieldID:
			order.ID = stringValue(v)
		case FieldAuthor:
			order.Author = stringValue(v)
		case FieldEmail:
			order.Email = stringValue(v)
		case FieldFrom:
			order.From = restaurantFromValue(v)
		default:
			if order.Attributes == nil {
				order.Attributes = make(map[string]any)
			}
			order.Attributes[k] = v
		}
	}
	return order
}

func restaurantFromValue(v any) Restaurant {
	fields, ok := v.(map[string]any)
	if !ok {
		return Restaurant{}
	}
	var r Restaurant
	for k, val := range fields {
		if k == FieldName {
			r.Name = stringValue(val)
			continue
		}
		if r.Attributes == nil {
			r.Attributes = make(map[string]any)
		}
		r.Attributes[k] = val
	}
	return r
}

// MarshalJSON отдаёт заказ в форме документа: {"_id", "from": {"name"}, "author", "email", ...}.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Document())
}

// UnmarshalJSON принимает произвольный JSON-объект заказа.
func (o *Order) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*o = OrderFromDocument(doc)
	return nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
