// Package summary собирает сводку по заказу: позиции, суммы по участникам
// и общий итог с разбивкой на оплаченное и неоплаченное.
package summary

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

// AuthorTotal это итог одного участника заказа.
type AuthorTotal struct {
	Author string          `json:"author"`
	Items  int             `json:"items"`
	Total  decimal.Decimal `json:"total"`
	Paid   decimal.Decimal `json:"paid"`
	Unpaid decimal.Decimal `json:"unpaid"`
}

// Summary это сводка по заказу. Позиции с нечисловой ценой перечислены
// в Unpriced и в итоги не входят.
type Summary struct {
	Order    domain.Order    `json:"order"`
	Items    []domain.Item   `json:"items"`
	Authors  []AuthorTotal   `json:"authors"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Unpaid   decimal.Decimal `json:"unpaid"`
	Unpriced []domain.Item   `json:"unpriced"`
}

// Build считает сводку; участники идут в порядке первой позиции.
func Build(order domain.Order, items []domain.Item) Summary {
	s := Summary{
		Order:    order,
		Items:    items,
		Authors:  []AuthorTotal{},
		Total:    decimal.Zero,
		Paid:     decimal.Zero,
		Unpaid:   decimal.Zero,
		Unpriced: []domain.Item{},
	}
	if s.Items == nil {
		s.Items = []domain.Item{}
	}

	index := make(map[string]int)
	for _, item := range items {
		pos, ok := index[item.Author]
		if !ok {
			pos = len(s.Authors)
			index[item.Author] = pos
			s.Authors = append(s.Authors, AuthorTotal{
				Author: item.Author,
				Total:  decimal.Zero,
				Paid:   decimal.Zero,
				Unpaid: decimal.Zero,
			})
		}
		author := &s.Authors[pos]
		author.Items++

		price, ok := ParsePrice(item.Price)
		if !ok {
			s.Unpriced = append(s.Unpriced, item)
			continue
		}

		author.Total = author.Total.Add(price)
		s.Total = s.Total.Add(price)
		if item.Paid {
			author.Paid = author.Paid.Add(price)
			s.Paid = s.Paid.Add(price)
		} else {
			author.Unpaid = author.Unpaid.Add(price)
			s.Unpaid = s.Unpaid.Add(price)
		}
	}
	return s
}

// ParsePrice разбирает цену вида "8", "8.50", "8,50" или "€8.50".
func ParsePrice(p domain.Price) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(string(p))
	raw = strings.TrimSpace(strings.TrimLeft(raw, "€$£"))
	if raw == "" {
		return decimal.Zero, false
	}
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// OrderLookup находит заказ по ID.
type OrderLookup interface {
	Lookup(ctx context.Context, id string) (*domain.Order, error)
}

// ItemQuerier выбирает позиции заказа.
type ItemQuerier interface {
	Query(ctx context.Context, query domain.ItemQuery) ([]domain.Item, error)
}

// Service строит сводку по данным репозиториев.
type Service struct {
	orders OrderLookup
	items  ItemQuerier
}

func NewService(orders OrderLookup, items ItemQuerier) *Service {
	return &Service{orders: orders, items: items}
}

// ForOrder возвращает сводку или nil, если заказа нет.
func (s *Service) ForOrder(ctx context.Context, orderID string) (*Summary, error) {
	order, err := s.orders.Lookup(ctx, orderID)
	if err != nil || order == nil {
		return nil, err
	}

	items, err := s.items.Query(ctx, domain.ItemQuery{Order: orderID})
	if err != nil {
		return nil, err
	}

	summary := Build(*order, items)
	return &summary, nil
}
