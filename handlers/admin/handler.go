package admin

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/services"
	authutil "github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
	"gorm.io/gorm"
)

// JobRunner triggers a scheduled job out of band
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// AdminHandler serves the admin-only maintenance endpoints
type AdminHandler struct {
	db         *gorm.DB
	reconciler *services.ReconciliationService
	audit      *services.AuditService
	tokens     *authutil.TokenStore
	jobs       JobRunner
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewAdminHandler creates the admin handler. jobs may be nil when the scheduler is disabled.
func NewAdminHandler(db *gorm.DB, reconciler *services.ReconciliationService, audit *services.AuditService,
	jobs JobRunner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		db:         db,
		reconciler: reconciler,
		audit:      audit,
		tokens:     authutil.NewTokenStore(db),
		jobs:       jobs,
		validator:  validation.NewValidator(),
		logger:     logger,
	}
}

// entry fills the request-derived audit fields
func entry(c *fiber.Ctx, actorID uint, action, resource string, resourceID uint) services.AuditEntry {
	return services.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	}
}
