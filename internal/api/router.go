package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP surface. /healthz is always open; the rest sits
// behind the handler's authenticator.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if h.Service != nil {
		r.Use(requestLogger(h.Service.logger()))
	}

	r.GET("/healthz", h.Health)

	guarded := r.Group("/", h.RequireAuth)
	guarded.GET("/", h.DashboardPage)

	v1 := guarded.Group("/v1")
	v1.POST("/text", h.SubmitText)
	v1.POST("/image", h.ModerateImage)
	v1.POST("/moderate/text", h.ModerateText)
	v1.GET("/sessions", h.Sessions)
	v1.GET("/dashboard", h.DashboardJSON)
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}
