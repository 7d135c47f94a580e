package http

import (
	"roomdesk/internal/adapters/ws"
	"roomdesk/internal/app"
	"roomdesk/internal/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClientTokenMiddleware tags every caller with a stable cookie token;
// it doubles as the room owner identity for anonymous callers.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, svc *app.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RoomdeskSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &Handlers{Svc: svc}

	api := r.Group("/api")
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:code", h.GetRoom)
	api.DELETE("/rooms/:code", h.DeleteRoom)
	api.POST("/rooms/:code/extend", h.ExtendRoom)
	api.PATCH("/rooms/:code", h.EditRoom)

	api.POST("/flow/start", h.StartFlow)
	api.POST("/flow/input", h.FlowInput)
	api.POST("/flow/cancel", h.CancelFlow)

	flowWS := ws.NewFlowController(svc)
	r.GET("/ws/flow", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("caller", c.GetString("client_token")).Msg("ws flow endpoint hit")
		flowWS.HandleFlow(c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
