package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	sharedconfig "github.com/stake-plus/raidparty/src/config"
)

// NewRouter builds the admin HTTP API over the party registry.
func NewRouter(cfg sharedconfig.AdminConfig, reg Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
	}))

	h := &Parties{Registry: reg}

	v1 := r.Group("/v1")
	v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.GET("/parties", h.List)
		v1.GET("/parties/:channel", h.Show)
		v1.DELETE("/parties/:channel", h.Delete)
		v1.POST("/parties/:channel/refresh", h.Refresh)
		v1.GET("/archive/:key", h.Archive)
	}
	return r
}
