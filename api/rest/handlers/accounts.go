package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/idlesync/interfaces"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/tracing"
)

// InterruptAccount wakes the account's IDLE wait so its handlers run now.
func InterruptAccount(watcher interfaces.WatcherService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, _ := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.InterruptAccount")
		defer span.Finish()
		name := c.Param("name")
		tracing.TagAccount(span, name)

		signalled, err := watcher.Interrupt(name)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, idlesync_errors.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if !signalled {
			c.JSON(http.StatusConflict, gin.H{"status": "not waiting", "account": name})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "interrupted", "account": name})
	}
}
