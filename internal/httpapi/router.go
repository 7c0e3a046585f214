package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/common"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/middleware"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/web"
	"go.uber.org/zap"
)

func NewRouter(cfg config.Config, h *handlers.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.SetHTMLTemplate(web.Templates())
	r.StaticFS("/static", web.Static())
	r.GET("/ping", h.Ping)

	// everything below is scoped to the browser session cookie
	sess := r.Group("/")
	sess.Use(middleware.ClientSession(cfg.SessionSecret, cfg.SessionTTL, log))
	sess.GET("/", h.Index)
	sess.GET("/select_mode", h.GetSelectMode)
	sess.POST("/select_mode", h.PostSelectMode)
	sess.GET("/select_model", h.GetSelectModel)
	sess.POST("/select_model", h.PostSelectModel)
	sess.POST("/send_message", h.SendMessage)
	sess.GET("/get_history", h.GetHistory)
	return r
}
