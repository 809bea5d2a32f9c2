package route

import (
	"github.com/SeakMengs/AutoSign/internal/controller"
	"github.com/SeakMengs/AutoSign/internal/middleware"
	"github.com/gin-gonic/gin"
)

func V1_Storage(r *gin.RouterGroup, sc *controller.StorageController, middleware *middleware.Middleware) {
	v1 := r.Group("/v1/storage")
	// the provider redirects here without our JWT, the state carries the user
	v1.GET("/:provider/callback", sc.Callback)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware)
	{
		authed.GET("", sc.ListConnections)
		authed.GET("/:provider/connect", sc.Connect)
		authed.POST("/s3", sc.ConnectS3)
		authed.DELETE("/:provider", sc.Disconnect)
	}
}
