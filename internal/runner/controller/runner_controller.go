package controller

import (
	"context"

	"boxrunner/internal/runner/service"
	"boxrunner/pkg/errors"
	"boxrunner/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the message transport is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunnerController exposes operational state of the job runner.
type RunnerController struct {
	svc    *service.Service
	pinger Pinger
}

// NewRunnerController creates a new controller.
func NewRunnerController(svc *service.Service, pinger Pinger) *RunnerController {
	return &RunnerController{svc: svc, pinger: pinger}
}

// Health verifies the transport connection is alive.
func (h *RunnerController) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			response.ErrorWithCode(c, errors.TransportUnavailable, err.Error())
			return
		}
	}
	response.Success(c, gin.H{"status": "ok"})
}

// GetStats returns in-flight, completed, and dropped job counters.
func (h *RunnerController) GetStats(c *gin.Context) {
	done, dropped := h.svc.Stats()
	response.Success(c, gin.H{
		"in_flight": h.svc.InFlight(),
		"done":      done,
		"dropped":   dropped,
	})
}
