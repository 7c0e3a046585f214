package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/ai"
	"github.com/suPer8Hu/chatrelay/internal/common"
	"go.uber.org/zap"
)

type selectReq struct {
	Mode  string `form:"mode" json:"mode"`
	Model string `form:"model" json:"model"`
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func isFormPost(c *gin.Context) bool {
	switch c.ContentType() {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return true
	}
	return false
}

// Index serves the chat page once a provider and model are chosen.
func (h *Handler) Index(c *gin.Context) {
	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	switch {
	case p.Provider == "":
		c.Redirect(http.StatusFound, "/select_mode")
	case p.Model == "":
		c.Redirect(http.StatusFound, "/select_model")
	default:
		current, okk := h.currentChat(c, &p)
		if !okk {
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Chat":     current,
			"Provider": p.Provider,
			"Model":    p.Model,
		})
	}
}

func (h *Handler) GetSelectMode(c *gin.Context) {
	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	providers := h.Registry.Names()
	if wantsHTML(c) {
		c.HTML(http.StatusOK, "select.html", gin.H{
			"Title":   "Choose a provider",
			"Action":  "/select_mode",
			"Field":   "mode",
			"Options": providers,
			"Current": p.Provider,
		})
		return
	}
	common.OK(c, gin.H{"providers": providers, "current": p.Provider})
}

func (h *Handler) PostSelectMode(c *gin.Context) {
	var req selectReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, codeInvalidJSON, "invalid request")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" || !h.Registry.Has(mode) {
		common.Fail(c, http.StatusBadRequest, codeBadSelection, "unknown mode")
		return
	}

	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	if p.Provider != mode {
		p.Provider = mode
		p.Model = ""
	}
	if !h.savePointer(c, p) {
		return
	}
	h.logger(c).Info("provider selected", zap.String("provider", mode))

	if isFormPost(c) {
		c.Redirect(http.StatusSeeOther, "/select_model")
		return
	}
	common.OK(c, gin.H{"provider": p.Provider, "model": p.Model})
}

// listModels asks the provider for its models. Providers that cannot
// enumerate report only the configured default.
func (h *Handler) listModels(c *gin.Context, provider string) ([]string, error) {
	ctx := c.Request.Context()
	prov, err := h.Registry.Get(ctx, provider, h.Cfg.DefaultModel(provider))
	if err != nil {
		return nil, err
	}
	lister, ok := prov.(ai.ModelLister)
	if !ok {
		if m := h.Cfg.DefaultModel(provider); m != "" {
			return []string{m}, nil
		}
		return []string{}, nil
	}
	return lister.ListModels(ctx)
}

func (h *Handler) GetSelectModel(c *gin.Context) {
	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	provider, _ := h.resolve(p)

	models, err := h.listModels(c, provider)
	if err != nil {
		h.logger(c).Warn("list models failed", zap.String("provider", provider), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, codeUpstreamError, "failed to list models")
		return
	}

	if wantsHTML(c) {
		c.HTML(http.StatusOK, "select.html", gin.H{
			"Title":   "Choose a " + provider + " model",
			"Action":  "/select_model",
			"Field":   "model",
			"Options": models,
			"Current": p.Model,
		})
		return
	}
	common.OK(c, gin.H{"provider": provider, "models": models, "current": p.Model})
}

func (h *Handler) PostSelectModel(c *gin.Context) {
	var req selectReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, codeInvalidJSON, "invalid request")
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		common.Fail(c, http.StatusBadRequest, codeBadSelection, "model is required")
		return
	}

	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	if p.Provider == "" {
		p.Provider = h.Cfg.AIProvider
	}
	p.Model = model
	if !h.savePointer(c, p) {
		return
	}
	h.logger(c).Info("model selected", zap.String("provider", p.Provider), zap.String("model", model))

	if isFormPost(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	common.OK(c, gin.H{"provider": p.Provider, "model": p.Model})
}
