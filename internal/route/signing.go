package route

import (
	"github.com/SeakMengs/AutoSign/internal/controller"
	"github.com/gin-gonic/gin"
)

// Signer routes are authorized by the token in the path, not by a JWT.
func V1_Signing(r *gin.RouterGroup, sc *controller.SigningController) {
	v1 := r.Group("/v1/sign/:token")
	{
		v1.GET("", sc.ViewDocument)
		v1.POST("", sc.Sign)
		v1.POST("/assets/:spotKey", sc.SaveAsset)
		v1.POST("/decline", sc.Decline)
		v1.POST("/sessions", sc.CreateSession)
	}

	sessions := r.Group("/v1/sessions")
	{
		sessions.POST("/:sessionToken/claim", sc.ClaimSession)
	}
}
