package query

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/academy-lab/eventcal/internal/core/errors"
)

// RegisterRoutes registers the public read API on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter, feedEnabled bool) {
	r.GET("/v1/events", s.HandleMonthEvents)
	r.GET("/v1/events/upcoming", s.HandleUpcoming)
	r.GET("/v1/events/range", s.HandleRange)
	r.GET("/v1/events/:id", s.HandleEventByID)
	if feedEnabled {
		r.GET("/v1/events/feed.ics", s.HandleFeed)
	}
}

// HandleMonthEvents handles GET /v1/events?year=2026&month=2.
// Missing parameters default to the current month.
func (s *Service) HandleMonthEvents(c *gin.Context) {
	now := s.nowFn()
	var query struct {
		Year  int `form:"year"`
		Month int `form:"month"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}
	if query.Year == 0 {
		query.Year = now.Year()
	}
	if query.Month == 0 {
		query.Month = int(now.Month())
	}
	if query.Month < 1 || query.Month > 12 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "month must be 1-12",
		})
		return
	}

	events, err := s.MonthEvents(c.Request.Context(), query.Year, time.Month(query.Month))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// HandleUpcoming handles GET /v1/events/upcoming?limit=20.
func (s *Service) HandleUpcoming(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Limit < 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
		})
		return
	}

	events, err := s.Upcoming(c.Request.Context(), query.Limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// HandleRange handles GET /v1/events/range?start=...&end=... with RFC 3339
// bounds.
func (s *Service) HandleRange(c *gin.Context) {
	var query struct {
		Start time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		End   time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	events, err := s.Range(c.Request.Context(), query.Start, query.End)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// HandleEventByID handles GET /v1/events/:id for both series ids and
// composite occurrence ids.
func (s *Service) HandleEventByID(c *gin.Context) {
	event, err := s.EventByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// HandleFeed handles GET /v1/events/feed.ics: the subscribable calendar.
func (s *Service) HandleFeed(c *gin.Context) {
	body, err := s.FeedDocument(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func (s *Service) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   err.Error(),
		})
		return
	}
	status, body := httperr.FromDomain(err)
	c.JSON(status, body)
}
