package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

const invalidBodyMessage = "invalid request body"

// writeError отвечает текстом ошибки и кодом по её типу. Причина сбоя
// хранилища пишется только в лог.
func (h *handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := domain.StorageFailureMessage

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidOrder):
		status, message = http.StatusUnprocessableEntity, domain.ErrInvalidOrder.Error()
	case errors.Is(err, domain.ErrUnsupportedQuery):
		status, message = http.StatusNotImplemented, err.Error()
	case errors.Is(err, domain.ErrStorage):
	default:
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("unexpected handler error")
	}

	_ = c.Error(err)
	c.String(status, message)
}

func (h *handler) writeBadBody(c *gin.Context, err error) {
	_ = c.Error(err)
	c.String(http.StatusBadRequest, invalidBodyMessage)
}
