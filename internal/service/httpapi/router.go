// Package httpapi отдаёт операции репозиториев заказов и позиций по HTTP
// и транслирует ошибки домена в коды ответа.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/domain"
	"github.com/ejjahanieklu/ehn/internal/notify"
	"github.com/ejjahanieklu/ehn/internal/service/summary"
)

// Observer собирает метрики HTTP-запросов и потоков наблюдателей.
type Observer interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
	ObserverConnected()
	ObserverDisconnected()
}

// SummaryService строит сводку по заказу.
type SummaryService interface {
	ForOrder(ctx context.Context, orderID string) (*summary.Summary, error)
}

// Dependencies это всё, что нужно роутеру. Notifier, Summaries, Hub и
// Observer необязательны.
type Dependencies struct {
	Orders    domain.OrderRepository
	Items     domain.ItemRepository
	Notifier  domain.OrderNotifier
	Summaries SummaryService
	Hub       *notify.Hub
	Observer  Observer
	Logger    *log.Entry
	// EventBuffer это размер буфера подписки одного наблюдателя.
	EventBuffer int
}

type handler struct {
	deps   Dependencies
	logger *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами сервиса.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Notifier == nil {
		deps.Notifier = domain.NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "http-api")
	}
	h := &handler{deps: deps, logger: deps.Logger}

	router := gin.New()
	router.Use(recovery(h.logger), requestLogger(h.logger))
	if deps.Observer != nil {
		router.Use(requestMetrics(deps.Observer))
	}

	router.POST("/order", h.createOrder)
	router.GET("/order", h.listOrders)
	router.GET("/order/:id", h.getOrder)
	router.DELETE("/order/:id", h.removeOrder)
	if deps.Summaries != nil {
		router.GET("/order/:id/summary", h.orderSummary)
	}

	router.POST("/item", h.createItem)
	router.POST("/item/:id", h.updateItem)
	router.GET("/item", h.queryItems)
	router.GET("/item/:id", h.getItem)
	router.DELETE("/item/:id", h.removeItem)

	if deps.Hub != nil {
		router.GET("/events", h.events)
		router.GET("/ui/events", h.uiEvents)
	}

	return router
}
