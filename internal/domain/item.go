package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Ключи документа позиции.
const (
	FieldPrice = "price"
	FieldPaid  = "paid"
	FieldOrder = "_order"
)

// Price это стоимость позиции. Клиенты присылают её строкой или числом,
// храним текстом.
type Price string

// UnmarshalJSON принимает как строку, так и число.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Price(n.String())
	return nil
}

// Flag это булево значение, допускающее строки "true"/"false" и числа 0/1.
type Flag bool

// UnmarshalJSON разбирает boolean-like значение.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Flag(flagValue(raw))
	return nil
}

func flagValue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	case float64:
		return val != 0
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	default:
		return false
	}
}

// Item это позиция одного участника в заказе.
type Item struct {
	ID      string `json:"_id,omitempty"`
	Name    string `json:"name" validate:"required"`
	Author  string `json:"author" validate:"required"`
	Price   Price  `json:"price" validate:"required"`
	Paid    Flag   `json:"paid"`
	OrderID string `json:"_order"`
}

// Validate проверяет name, author и price именно в этом порядке.
func (i *Item) Validate() error {
	return validateEntity(i)
}

// Document представляет позицию целиком; upsert заменяет документ полностью.
func (i Item) Document() map[string]any {
	doc := map[string]any{
		FieldName:   i.Name,
		FieldAuthor: i.Author,
		FieldPrice:  string(i.Price),
		FieldPaid:   bool(i.Paid),
		FieldOrder:  i.OrderID,
	}
	if i.ID != "" {
		doc[FieldID] = i.ID
	}
	return doc
}

// ItemFromDocument восстанавливает позицию из документа хранилища.
func ItemFromDocument(doc map[string]any) Item {
	return Item{
		ID:      stringValue(doc[FieldID]),
		Name:    stringValue(doc[FieldName]),
		Author:  stringValue(doc[FieldAuthor]),
		Price:   Price(stringValue(doc[FieldPrice])),
		Paid:    Flag(flagValue(doc[FieldPaid])),
		OrderID: stringValue(doc[FieldOrder]),
	}
}

// ItemQuery это фильтр выборки позиций. Поддерживается только Order;
// любые другие ключи попадают в Extra.
type ItemQuery struct {
	Order string
	Extra map[string]string
}

// ByOrder проверяет, что запрос имеет единственно поддерживаемую форму {order: <id>}.
func (q ItemQuery) ByOrder() bool {
	return q.Order != "" && len(q.Extra) == 0
}
