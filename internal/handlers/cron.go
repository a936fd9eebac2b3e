// Package handlers exposes the HTTP trigger routes for external cron.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prashanttc/tweetAut/internal/agents"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/middleware"
)

// AgentRunner runs one named agent to completion.
type AgentRunner interface {
	Run(ctx context.Context, name string) (pipeline.Result, error)
}

type CronHandler struct {
	runner AgentRunner
	logger logging.Logger
}

func NewCronHandler(runner AgentRunner, logger logging.Logger) *CronHandler {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &CronHandler{runner: runner, logger: logger}
}

// Register mounts GET /cron/:agent behind the ?key= shared secret.
func (h *CronHandler) Register(r gin.IRouter, secret string) {
	cron := r.Group("/cron", middleware.SharedKeyMiddleware("key", secret))
	cron.GET("/:agent", h.Handle)
}

// Handle runs the agent synchronously and maps its outcome to a status:
// 204 published, 200 benign no-op, 500 failure, 404 unknown agent. The run
// outlives a caller that hangs up; Run applies its own timeout.
func (h *CronHandler) Handle(c *gin.Context) {
	name := c.Param("agent")
	log := middleware.GetContextLogger(c, h.logger).WithField("agent", name)

	res, err := h.runner.Run(context.WithoutCancel(c.Request.Context()), name)
	if errors.Is(err, agents.ErrUnknownAgent) {
		c.String(http.StatusNotFound, "Unknown agent")
		return
	}
	if err != nil {
		log.WithError(err).Error("Cron trigger: run could not start")
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	switch res.Status {
	case pipeline.StatusPublished:
		c.Status(http.StatusNoContent)
	case pipeline.StatusNoop:
		c.String(http.StatusOK, res.Reason)
	default:
		log.WithField("stage", pipeline.Stage(res.Err)).Warn("Cron trigger: run failed")
		c.String(http.StatusInternalServerError, fmt.Sprintf("%s agent failed: %s", name, res.Reason))
	}
}
