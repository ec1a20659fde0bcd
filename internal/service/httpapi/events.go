package httpapi

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/ejjahanieklu/ehn/internal/domain"
	"github.com/ejjahanieklu/ehn/internal/notify"
)

// events отдаёт поток SSE: event order-opened с документом заказа
// и order-closed с его ID.
func (h *handler) events(c *gin.Context) {
	sub := h.subscribe()
	defer h.unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event.Payload())
			c.Writer.Flush()
		}
	}
}

// uiEvents обновляет в браузере список открытых заказов и строку
// последнего уведомления через datastar.
func (h *handler) uiEvents(c *gin.Context) {
	sub := h.subscribe()
	defer h.unsubscribe(sub)

	sse := datastar.NewSSE(c.Writer, c.Request)
	ctx := c.Request.Context()

	orders, err := h.deps.Orders.GetAll(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("failed to load orders for ui feed")
	}
	sse.PatchElements(renderOrderList(orders))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}

			sse.PatchElements(renderNotification(event))
			if orders, err := h.deps.Orders.GetAll(ctx); err == nil {
				sse.PatchElements(renderOrderList(orders))
			} else {
				h.logger.WithError(err).Warn("failed to refresh orders for ui feed")
			}
		}
	}
}

func (h *handler) subscribe() *notify.Subscription {
	sub := h.deps.Hub.Subscribe(h.deps.EventBuffer)
	if h.deps.Observer != nil {
		h.deps.Observer.ObserverConnected()
	}
	return sub
}

func (h *handler) unsubscribe(sub *notify.Subscription) {
	sub.Close()
	if h.deps.Observer != nil {
		h.deps.Observer.ObserverDisconnected()
	}
	if dropped := sub.Dropped(); dropped > 0 {
		h.logger.WithField("dropped", dropped).Info("observer missed events")
	}
}

func renderNotification(event notify.Event) string {
	var text string
	switch {
	case event.Type == notify.EventOrderOpened && event.Order != nil:
		text = fmt.Sprintf("%s has opened a new food order for %s", event.Order.Author, event.Order.From.Name)
	case event.Type == notify.EventOrderClosed:
		text = fmt.Sprintf("Order %s has been closed", event.OrderID)
	default:
		text = string(event.Type)
	}
	return `<p id="notification">` + html.EscapeString(text) + `</p>`
}

func renderOrderList(orders []domain.Order) string {
	var b strings.Builder
	b.WriteString(`<ul id="orders">`)
	for _, order := range orders {
		fmt.Fprintf(&b, `<li id="order-%s">%s &middot; %s</li>`,
			html.EscapeString(order.ID),
			html.EscapeString(order.From.Name),
			html.EscapeString(order.Author),
		)
	}
	b.WriteString(`</ul>`)
	return b.String()
}
