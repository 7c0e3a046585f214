package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/ai"
	"github.com/suPer8Hu/chatrelay/internal/chat"
	"github.com/suPer8Hu/chatrelay/internal/common"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/middleware"
	"github.com/suPer8Hu/chatrelay/internal/session"
	"go.uber.org/zap"
)

const (
	codeInvalidJSON   = 10001
	codeBadSelection  = 10002
	codeStorage       = 50001
	codeUpstreamError = 50201
)

type Handler struct {
	Cfg        config.Config
	ChatSvc    *chat.Service
	Dispatcher *chat.Dispatcher
	Registry   *ai.Registry
	Pointers   session.PointerStore
	Log        *zap.Logger
}

func NewHandler(cfg config.Config, svc *chat.Service, d *chat.Dispatcher, reg *ai.Registry, pointers session.PointerStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Cfg:        cfg,
		ChatSvc:    svc,
		Dispatcher: d,
		Registry:   reg,
		Pointers:   pointers,
		Log:        log,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) logger(c *gin.Context) *zap.Logger {
	return h.Log.With(
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("client_id", middleware.ClientID(c)),
	)
}

// loadPointer reads the caller's pointer, writing a 500 on failure.
func (h *Handler) loadPointer(c *gin.Context) (session.Pointer, bool) {
	p, err := h.Pointers.Get(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		h.logger(c).Error("load session pointer failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, codeStorage, "session store unavailable")
		return p, false
	}
	return p, true
}

func (h *Handler) savePointer(c *gin.Context, p session.Pointer) bool {
	if err := h.Pointers.Put(c.Request.Context(), middleware.ClientID(c), p); err != nil {
		h.logger(c).Error("save session pointer failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, codeStorage, "session store unavailable")
		return false
	}
	return true
}

// currentChat returns the caller's chat. A pointer left at a chat that was
// deleted or renamed by another client is moved back to the default chat so
// later writes do not recreate it.
func (h *Handler) currentChat(c *gin.Context, p *session.Pointer) (string, bool) {
	name := p.CurrentChat()
	if name == chat.DefaultChat {
		return name, true
	}
	ok, err := h.ChatSvc.Store().Exists(c.Request.Context(), name)
	if err != nil {
		h.failRelay(c, err)
		return "", false
	}
	if ok {
		return name, true
	}
	h.logger(c).Info("chat gone, falling back to default", zap.String("chat", name))
	p.Chat = chat.DefaultChat
	if !h.savePointer(c, *p) {
		return "", false
	}
	return chat.DefaultChat, true
}

// resolve fills an unset provider or model from config.
func (h *Handler) resolve(p session.Pointer) (provider, model string) {
	provider = p.Provider
	if provider == "" {
		provider = h.Cfg.AIProvider
	}
	model = p.Model
	if model == "" {
		model = h.Cfg.DefaultModel(provider)
	}
	return provider, model
}

// failRelay maps a relay or store error to the error envelope.
func (h *Handler) failRelay(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		common.Fail(c, http.StatusBadRequest, codeInvalidJSON, err.Error())
	case chat.IsUpstream(err):
		h.logger(c).Warn("relay failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, codeUpstreamError, "failed to connect to model server")
	default:
		h.logger(c).Error("storage failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, codeStorage, "an error occurred on the server")
	}
}
