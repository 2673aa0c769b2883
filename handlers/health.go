package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/utils/cache"
	"gorm.io/gorm"
)

// HealthHandler reports database and Redis reachability
type HealthHandler struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

func NewHealthHandler(db *gorm.DB, c *cache.RedisCache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unreachable"
		healthy = false
	}

	if h.cache == nil {
		checks["redis"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := fiber.StatusOK
	checks["status"] = "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		checks["status"] = "degraded"
	}
	return c.Status(status).JSON(checks)
}
