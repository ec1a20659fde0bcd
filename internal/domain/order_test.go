package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

// helper для создания валидного заказа.
func makeOrder() domain.Order {
	return domain.Order{
		From:   domain.Restaurant{Name: "Pizza Place"},
		Author: "Alice",
		Email:  "a@x.com",
	}
}

func TestOrderValidate_Ok(t *testing.T) {
	order := makeOrder()
	require.NoError(t, order.Validate())
}

func TestOrderValidate_FirstMissingField(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
		field string
	}{
		{
			name:  "missing restaurant name",
			order: domain.Order{Author: "Alice", Email: "a@x.com"},
			field: "from.name",
		},
		{
			name:  "missing author",
			order: domain.Order{From: domain.Restaurant{Name: "Pizza Place"}, Email: "a@x.com"},
			field: "author",
		},
		{
			name:  "missing email",
			order: domain.Order{From: domain.Restaurant{Name: "Pizza Place"}, Author: "Alice"},
			field: "email",
		},
		{
			name:  "everything missing reports restaurant first",
			order: domain.Order{},
			field: "from.name",
		},
		{
			name:  "author and email missing reports author",
			order: domain.Order{From: domain.Restaurant{Name: "Pizza Place"}},
			field: "author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, domain.ErrValidation))

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Equal(t, tt.field, vErr.Field)
			require.NotEmpty(t, vErr.Message)
		})
	}
}

func TestOrderValidate_Messages(t *testing.T) {
	err := (&domain.Order{Author: "Alice", Email: "a@x.com"}).Validate()
	require.EqualError(t, err, "Restaurant name not specified. Please specify a non-empty restaurant name.")

	err = (&domain.Order{From: domain.Restaurant{Name: "P"}, Author: "Alice"}).Validate()
	require.EqualError(t, err, "E-mail not specified. Please specify a non-empty e-mail for this order.")
}

func TestOrderJSON_PreservesAttributes(t *testing.T) {
	raw := `{"from":{"name":"Pizza Place","phone":"21212121"},"author":"Alice","email":"a@x.com","deadline":"12:30","people":3}`

	var order domain.Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))
	require.Equal(t, "Pizza Place", order.From.Name)
	require.Equal(t, "21212121", order.From.Attributes["phone"])
	require.Equal(t, "Alice", order.Author)
	require.Equal(t, "a@x.com", order.Email)
	require.Equal(t, "12:30", order.Attributes["deadline"])
	require.Equal(t, float64(3), order.Attributes["people"])
	require.Empty(t, order.ID)

	order.ID = "order-1"
	out, err := json.Marshal(order)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	require.Equal(t, "order-1", back["_id"])
	require.Equal(t, "12:30", back["deadline"])
	from, ok := back["from"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Pizza Place", from["name"])
	require.Equal(t, "21212121", from["phone"])
}

func TestOrderFromDocument_RoundTrip(t *testing.T) {
	order := makeOrder()
	order.ID = "order-42"
	order.Attributes = map[string]any{"note": "extra cheese"}

	restored := domain.OrderFromDocument(order.Document())
	require.Equal(t, order, restored)
}

func TestOrderDocument_ClientIDIgnoredWhenEmpty(t *testing.T) {
	order := makeOrder()
	order.Attributes = map[string]any{"_id": "client-chosen"}

	doc := order.Document()
	_, hasID := doc["_id"]
	require.False(t, hasID)
}

func TestOrderFromDocument_NonObjectFrom(t *testing.T) {
	order := domain.OrderFromDocument(map[string]any{
		"from":   "Pizza Place",
		"author": "Alice",
		"email":  "a@x.com",
	})
	require.Empty(t, order.From.Name)
	require.ErrorIs(t, order.Validate(), domain.ErrValidation)
}
