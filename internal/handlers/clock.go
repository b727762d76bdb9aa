package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"surf_clock/internal/service"
)

const (
	statusOK        = "ok"
	statusPaused    = "paused"
	statusResumed   = "resumed"
	statusRefreshed = "refresh_queued"

	errPauseClock   = "failed to pause clock"
	errResumeClock  = "failed to resume clock"
	errRefreshClock = "failed to queue refresh"
	errGetState     = "failed to load state"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string) {
	resp := gin.H{"status": status}
	if st, err := h.services.Monitoring.GetState(c.Request.Context()); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get clock state
// @Description  Last rendered rating, colour, LED count and display text, plus loop health.
// @Tags         clock
// @Produce      json
// @Success      200  {object}  models.ClockState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/clock/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "clock_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Refresh now
// @Description  Ends the current delay so the next cycle starts immediately. A running cycle is never interrupted.
// @Tags         clock
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/clock/refresh [post]
// @Security     BearerAuth
func (h *Handler) refreshClock(c *gin.Context) {
	if err := h.services.Clock.Refresh(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrPaused) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errRefreshClock, "clock_refresh_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusRefreshed})
}

// @Summary      Pause clock
// @Description  Stops fetching; the strip and display keep their last frame.
// @Tags         clock
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/clock/pause [post]
// @Security     BearerAuth
func (h *Handler) pauseClock(c *gin.Context) {
	if err := h.services.Clock.Pause(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errPauseClock, "clock_pause_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusPaused)
}

// @Summary      Resume clock
// @Tags         clock
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/clock/resume [post]
// @Security     BearerAuth
func (h *Handler) resumeClock(c *gin.Context) {
	if err := h.services.Clock.Resume(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errResumeClock, "clock_resume_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusResumed)
}
