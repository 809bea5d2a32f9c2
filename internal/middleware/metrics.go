package middleware

import (
	"strconv"
	"time"

	"github.com/SeakMengs/AutoSign/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware labels requests with the route pattern, not the raw path,
// so signer tokens never end up as label values.
func (m Middleware) MetricsMiddleware(ctx *gin.Context) {
	if ctx.Request.URL.Path == "/metrics" {
		ctx.Next()
		return
	}

	start := time.Now()
	ctx.Next()

	path := ctx.FullPath()
	if path == "" {
		path = "unmatched"
	}
	method := ctx.Request.Method

	metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
	metrics.HTTPRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}
