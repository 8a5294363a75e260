package http

import (
	"context"

	"github.com/flathead/streamhub/internal/adapters/signal"
	"github.com/flathead/streamhub/internal/app/orch"
	"github.com/flathead/streamhub/internal/config"
	api "github.com/flathead/streamhub/internal/transport/http"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StreamhubSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	apiGroup := r.Group("/api")

	ctrl := signal.NewStreamWSController(o)
	ctrl.ReadLimit = cfg.ReadLimit
	if cfg.PingPeriod > 0 {
		ctrl.PingPeriod = cfg.PingPeriod
	}
	apiGroup.GET("/ws/stream", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("conn", c.GetString("client_token")).Msg("ws stream endpoint hit")
		ctrl.HandleStream(ctx, c)
	})

	api.RegisterAPI(apiGroup, o)

	return r
}
