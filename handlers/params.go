package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
)

// Viewer builds the service-layer caller from the authenticated request
func Viewer(c *fiber.Ctx) (services.Viewer, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return services.Viewer{}, false
	}
	role, _ := middleware.GetUserRole(c)
	return services.Viewer{UserID: id, Role: role}, true
}

// Page reads ?page= and ?limit=
func Page(c *fiber.Ctx) services.Page {
	return services.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 10)}
}

// ParamID parses a positive numeric route parameter
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidErr("Invalid "+name, map[string]string{name: "must be a positive integer"})
	}
	return uint(id), nil
}
