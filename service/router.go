package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ibreez3/lm-helper/config"
	"github.com/ibreez3/lm-helper/extract"
	"github.com/ibreez3/lm-helper/openai"
)

// Completer is what the HTTP surface needs from the client handle.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
	Reload() error
	Config() config.Config
}

var _ Completer = (*openai.Handle)(nil)

type CompleteReq struct {
	Prompt   string           `json:"prompt"`
	System   string           `json:"system"`
	Messages []openai.Message `json:"messages"`
	Tag      string           `json:"tag"`
}

type ExtractReq struct {
	Response string `json:"response"`
	Tag      string `json:"tag"`
}

func (r CompleteReq) messages() []openai.Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	if r.Prompt == "" {
		return nil
	}
	var msgs []openai.Message
	if r.System != "" {
		msgs = append(msgs, openai.Message{Role: openai.RoleSystem, Content: r.System})
	}
	return append(msgs, openai.Prompt(r.Prompt)...)
}

func NewRouter(lm Completer, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(logger))

	r.POST("/api/complete", func(c *gin.Context) {
		var req CompleteReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msgs := req.messages()
		if err := openai.ValidateMessages(msgs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := lm.Complete(c.Request.Context(), msgs)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, openai.ErrNoResponse) {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if req.Tag == "" {
			c.JSON(http.StatusOK, gin.H{"response": out})
			return
		}
		data, err := extract.Data(out, req.Tag)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"response": out, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": out, "data": data})
	})

	r.POST("/api/extract", func(c *gin.Context) {
		var req ExtractReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := extract.Data(req.Response, req.Tag)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	})

	r.POST("/api/reload", func(c *gin.Context) {
		if err := lm.Reload(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reloaded", "model": lm.Config().LM.Model})
	})

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model": lm.Config().LM.Model})
	})

	return r
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
