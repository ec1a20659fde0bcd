package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

type idResponse struct {
	ID string `json:"_id"`
}

func (h *handler) createOrder(c *gin.Context) {
	var order domain.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		h.writeBadBody(c, err)
		return
	}

	created, err := h.deps.Orders.Create(c.Request.Context(), order)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.deps.Notifier.OrderOpened(c.Request.Context(), created)
	c.JSON(http.StatusOK, created)
}

func (h *handler) removeOrder(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Orders.Remove(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	h.deps.Notifier.OrderClosed(c.Request.Context(), id)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
}

func (h *handler) listOrders(c *gin.Context) {
	orders, err := h.deps.Orders.GetAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handler) getOrder(c *gin.Context) {
	order, err := h.deps.Orders.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) orderSummary(c *gin.Context) {
	s, err := h.deps.Summaries.ForOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) createItem(c *gin.Context) {
	var item domain.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		h.writeBadBody(c, err)
		return
	}

	id, err := h.deps.Items.Create(c.Request.Context(), item)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idResponse{ID: id})
}

func (h *handler) updateItem(c *gin.Context) {
	var item domain.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		h.writeBadBody(c, err)
		return
	}

	id, err := h.deps.Items.Update(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idResponse{ID: id})
}

func (h *handler) removeItem(c *gin.Context) {
	if err := h.deps.Items.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
}

func (h *handler) queryItems(c *gin.Context) {
	items, err := h.deps.Items.Query(c.Request.Context(), itemQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *handler) getItem(c *gin.Context) {
	item, err := h.deps.Items.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// itemQuery разбирает query string; всё, кроме order, попадает в Extra.
func itemQuery(c *gin.Context) domain.ItemQuery {
	var query domain.ItemQuery
	for key, values := range c.Request.URL.Query() {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		if key == "order" && len(values) == 1 {
			query.Order = value
			continue
		}
		if query.Extra == nil {
			query.Extra = make(map[string]string)
		}
		query.Extra[key] = value
	}
	return query
}
