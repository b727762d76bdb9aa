package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"surf_clock/internal/models"
	"surf_clock/internal/service"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRangeInvalid = "'from' must be <= 'to'"
	errLimitInvalid = "invalid 'limit'; use an integer 0-1000"
	errListEvents   = "failed to load cycle events"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether s carries no time-of-day part.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// logFilterFromQuery reads from/to/type/limit. On failure it returns the
// message to send back with a 400.
func logFilterFromQuery(c *gin.Context) (service.LogFilter, string) {
	f := service.LogFilter{Type: strings.ToUpper(strings.TrimSpace(c.Query("type")))}

	if qs := c.Query("from"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errFromInvalid
		}
		f.From = t
	}
	if qs := c.Query("to"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errToInvalid
		}
		// a bare date covers the whole day
		if isDateOnly(qs) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRangeInvalid
	}
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 0 || n > service.MaxLogLimit {
			return f, errLimitInvalid
		}
		f.Limit = n
	}
	return f, ""
}

// @Summary      List cycle events
// @Description  Filter cycle events by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive (23:59:59.999999999Z).
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to    query   string  false  "End of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). Date-only treated as end of day."  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(RENDERED,FETCH_FAILED,FRAMING_ERROR,SYNTAX_ERROR,SCHEMA_ERROR,HARDWARE_ERROR,PAUSE,RESUME,REFRESH)
// @Param        limit query   int     false  "Return only the newest N events (0-1000, 0 = all)"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, msg := logFilterFromQuery(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errListEvents, "events_list_failed", err,
			"from", filter.From, "to", filter.To, "type", filter.Type, "limit", filter.Limit)
	default:
		c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
	}
}

// @Summary      List event types
// @Tags         logs
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/logs/types [get]
// @Security     BearerAuth
func (h *Handler) getLogTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": models.EventTypes()})
}

// parseQueryTime accepts RFC3339, "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD", all read as UTC.
func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
