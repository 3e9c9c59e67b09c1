// Package admin is the write surface: series and occurrence mutations plus
// the template catalog, routed through the coordinator.
package admin

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/academy-lab/eventcal/internal/calendar"
	"github.com/academy-lab/eventcal/internal/query"
)

type Service struct {
	coordinator *calendar.Coordinator
	reads       *query.Service
}

func NewService(coordinator *calendar.Coordinator, reads *query.Service) *Service {
	if coordinator == nil {
		panic("admin: coordinator must not be nil")
	}
	if reads == nil {
		panic("admin: query service must not be nil")
	}
	return &Service{coordinator: coordinator, reads: reads}
}

// RegisterRoutes registers the admin API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/admin/events", s.HandleCreateEvent)
	r.POST("/v1/admin/events/from-template", s.HandleCreateFromTemplate)
	r.GET("/v1/admin/events", s.HandleListSeries)
	r.GET("/v1/admin/templates", s.HandleListTemplates)
	r.PUT("/v1/admin/events/:id", s.HandleUpdateEvent)
	r.POST("/v1/admin/events/:id/restore", s.HandleRestoreOccurrence)
	r.DELETE("/v1/admin/events/:id", s.HandleDeleteEvent)

	slog.Info("Admin routes registered")
}
