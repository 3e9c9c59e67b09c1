package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/academy-lab/eventcal/internal/api/v1"
	httperr "github.com/academy-lab/eventcal/internal/core/errors"
)

const (
	msgInvalidJSON = "Invalid JSON body"
)

// HandleCreateEvent handles POST /v1/admin/events.
func (s *Service) HandleCreateEvent(c *gin.Context) {
	var req v1.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   msgInvalidJSON,
			Details:   err.Error(),
		})
		return
	}

	series, err := s.coordinator.CreateSeries(c.Request.Context(), req.Input())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v1.NewSeriesResponse(series))
}

// HandleCreateFromTemplate handles POST /v1/admin/events/from-template.
func (s *Service) HandleCreateFromTemplate(c *gin.Context) {
	var req v1.FromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   msgInvalidJSON,
			Details:   err.Error(),
		})
		return
	}

	series, err := s.coordinator.CreateFromTemplate(c.Request.Context(), req.Template, req.Input())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v1.NewSeriesResponse(series))
}

// HandleListSeries handles GET /v1/admin/events: every active series
// definition, not their expanded occurrences.
func (s *Service) HandleListSeries(c *gin.Context) {
	series, err := s.reads.ListSeries(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": series, "count": len(series)})
}

// HandleListTemplates handles GET /v1/admin/templates.
func (s *Service) HandleListTemplates(c *gin.Context) {
	templates := v1.NewTemplateResponses(s.coordinator.Catalog().All())
	c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
}

// HandleUpdateEvent handles PUT /v1/admin/events/:id. The updateSeries query
// flag picks the mutation scope: true edits the base template of the whole
// series, false (default) edits the single occurrence named by
// occurrence_date in the body.
func (s *Service) HandleUpdateEvent(c *gin.Context) {
	seriesID := c.Param("id")

	var req v1.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   msgInvalidJSON,
			Details:   err.Error(),
		})
		return
	}

	if c.Query("updateSeries") == "true" {
		if req.ExpectedVersion == nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidRequestError,
				Message:   "expected_version is required for series updates",
			})
			return
		}
		series, err := s.coordinator.UpdateSeries(c.Request.Context(), seriesID, req.SeriesUpdate(), *req.ExpectedVersion)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, v1.NewSeriesResponse(series))
		return
	}

	if req.OccurrenceDate == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "occurrence_date is required for occurrence updates",
		})
		return
	}
	if _, err := s.coordinator.UpdateOccurrence(c.Request.Context(), seriesID, req.OccurrenceDate, req.OccurrenceUpdate()); err != nil {
		writeDomainError(c, err)
		return
	}

	// Echo the fully resolved occurrence (base template + override).
	occ, err := s.reads.EventByID(c.Request.Context(), seriesID+"_"+req.OccurrenceDate)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, occ)
}

// HandleRestoreOccurrence handles POST /v1/admin/events/:id/restore: it
// drops the exception for occurrenceDate, reverting the slot to the base
// template.
func (s *Service) HandleRestoreOccurrence(c *gin.Context) {
	seriesID := c.Param("id")
	date := c.Query("occurrenceDate")
	if date == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "occurrenceDate is required",
		})
		return
	}

	if err := s.coordinator.RestoreOccurrence(c.Request.Context(), seriesID, date); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}

// HandleDeleteEvent handles DELETE /v1/admin/events/:id. With
// deleteSeries=true the whole series soft-deletes (guarded by
// expectedVersion); otherwise occurrenceDate names the single occurrence to
// cancel.
func (s *Service) HandleDeleteEvent(c *gin.Context) {
	seriesID := c.Param("id")

	if c.Query("deleteSeries") == "true" {
		version, err := strconv.ParseInt(c.Query("expectedVersion"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidRequestError,
				Message:   "expectedVersion is required for series deletes",
			})
			return
		}
		if err := s.coordinator.DeleteSeries(c.Request.Context(), seriesID, version); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		return
	}

	date := c.Query("occurrenceDate")
	if date == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "occurrenceDate is required for occurrence deletes",
		})
		return
	}
	if err := s.coordinator.DeleteOccurrence(c.Request.Context(), seriesID, date); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "occurrence_cancelled"})
}

func writeDomainError(c *gin.Context, err error) {
	status, body := httperr.FromDomain(err)
	c.JSON(status, body)
}
