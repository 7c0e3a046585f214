package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/chat"
	"github.com/suPer8Hu/chatrelay/internal/common"
	"go.uber.org/zap"
)

type sendMessageReq struct {
	Message *string `json:"message"`
	Stream  *bool   `json:"stream"`
}

func (h *Handler) wantsStream(c *gin.Context, req sendMessageReq) bool {
	if req.Stream != nil {
		return *req.Stream
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return h.Cfg.ChatStreamDefault
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	if req.Message == nil {
		common.Fail(c, http.StatusBadRequest, codeInvalidJSON, "message is required")
		return
	}

	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	current, okk := h.currentChat(c, &p)
	if !okk {
		return
	}

	if cmd := chat.ParseCommand(*req.Message); cmd.IsCommand() {
		res, err := h.Dispatcher.Dispatch(c.Request.Context(), current, cmd)
		if err != nil {
			h.failRelay(c, err)
			return
		}
		if res.Chat != current {
			p.Chat = res.Chat
			if !h.savePointer(c, p) {
				return
			}
		}
		h.logger(c).Info("command handled", zap.Stringer("kind", cmd.Kind), zap.String("chat", res.Chat))
		common.OK(c, gin.H{"reply": res.Reply, "command": true, "chat": res.Chat})
		return
	}

	provider, model := h.resolve(p)
	if h.wantsStream(c, req) {
		h.streamReply(c, current, provider, model, *req.Message)
		return
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), current, provider, model, *req.Message)
	if err != nil {
		h.failRelay(c, err)
		return
	}
	common.OK(c, gin.H{"reply": reply, "chat": current})
}

// streamReply relays fragments as SSE. Headers are committed with the first
// fragment, so a failure before any output still gets a JSON error status.
func (h *Handler) streamReply(c *gin.Context, chatName, provider, model, content string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, codeStorage, "streaming unsupported")
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	writeJSON := func(event string, payload any) {
		start()
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	ctx := c.Request.Context()
	chunks, errs := h.ChatSvc.SendMessageStream(ctx, chatName, provider, model, content)

	for chunks != nil || errs != nil {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{"content": ch})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if !started {
				h.failRelay(c, err)
				return
			}
			msg := "an error occurred on the server"
			if chat.IsUpstream(err) {
				msg = "failed to connect to model server"
				h.logger(c).Warn("stream relay failed", zap.Error(err))
			} else {
				h.logger(c).Error("stream relay failed", zap.Error(err))
			}
			writeJSON("error", gin.H{"message": msg})
			return

		case <-ctx.Done():
			return
		}
	}
	writeJSON("done", gin.H{"chat": chatName})
}

func (h *Handler) GetHistory(c *gin.Context) {
	p, okk := h.loadPointer(c)
	if !okk {
		return
	}
	current, okk := h.currentChat(c, &p)
	if !okk {
		return
	}
	msgs, err := h.ChatSvc.History(c.Request.Context(), current)
	if err != nil {
		h.failRelay(c, err)
		return
	}
	// bare array, the browser renders it directly
	c.JSON(http.StatusOK, msgs)
}
