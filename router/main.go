package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	admin_handlers "github.com/sahilchouksey/course-commerce-api/handlers/admin"
	auth_handlers "github.com/sahilchouksey/course-commerce-api/handlers/auth"
	cart_handlers "github.com/sahilchouksey/course-commerce-api/handlers/cart"
	course_handlers "github.com/sahilchouksey/course-commerce-api/handlers/course"
	enrollment_handlers "github.com/sahilchouksey/course-commerce-api/handlers/enrollment"
	notification_handlers "github.com/sahilchouksey/course-commerce-api/handlers/notification"
	order_handlers "github.com/sahilchouksey/course-commerce-api/handlers/order"
	payment_handlers "github.com/sahilchouksey/course-commerce-api/handlers/payment"
	promotion_handlers "github.com/sahilchouksey/course-commerce-api/handlers/promotion"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
)

// Handlers is everything the route table dispatches to
type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *auth_handlers.AuthHandler
	Course       *course_handlers.CourseHandler
	Cart         *cart_handlers.CartHandler
	Promotion    *promotion_handlers.PromotionHandler
	Order        *order_handlers.OrderHandler
	Payment      *payment_handlers.PaymentHandler
	Enrollment   *enrollment_handlers.EnrollmentHandler
	Notification *notification_handlers.NotificationHandler
	Admin        *admin_handlers.AdminHandler
}

// Webhook paths are called by payment providers and must not be rate limited
var WebhookPaths = []string{
	"/api/v1/payments/momo-notify",
	"/api/v1/payments/vnpay-return",
	"/api/v1/payments/vnpay-ipn",
}

// SetupRoutes registers the API. throttle may be nil when Redis is unavailable.
func SetupRoutes(app *fiber.App, h *Handlers, authMiddleware *middleware.AuthMiddleware, throttle *middleware.LoginThrottle) {
	app.Get("/health", h.Health.Check)

	api := app.Group("/api/v1")

	requireAuth := authMiddleware.Required()
	requireAdmin := authMiddleware.RequireRole(model.RoleAdmin)
	requireStaff := authMiddleware.RequireRole(model.RoleAdmin, model.RoleStaff)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.Auth.Register)
	if throttle != nil {
		authGroup.Post("/login", throttle.Check(), h.Auth.Login)
	} else {
		authGroup.Post("/login", h.Auth.Login)
	}
	authGroup.Post("/refresh", h.Auth.Refresh)
	authGroup.Post("/logout", requireAuth, h.Auth.Logout)
	authGroup.Post("/logout-all", requireAuth, h.Auth.LogoutAll)
	authGroup.Get("/me", requireAuth, h.Auth.Me)

	// Catalogue
	courses := api.Group("/courses")
	courses.Get("/", h.Course.ListCourses)
	courses.Get("/:id", h.Course.GetCourse)
	courses.Post("/", requireAuth, requireAdmin, h.Course.CreateCourse)
	courses.Put("/:id", requireAuth, requireAdmin, h.Course.UpdateCourse)

	// Cart
	cart := api.Group("/cart", requireAuth)
	cart.Get("/", h.Cart.GetCart)
	cart.Get("/count", h.Cart.Count)
	cart.Post("/add", h.Cart.AddItem)
	cart.Delete("/remove/:itemId", h.Cart.RemoveItem)
	cart.Delete("/clear", h.Cart.Clear)

	// Promotions: static paths before :id
	promotions := api.Group("/promotions", requireAuth)
	promotions.Get("/active", h.Promotion.Active)
	promotions.Post("/validate", h.Promotion.Validate)
	promotions.Get("/", requireAdmin, h.Promotion.List)
	promotions.Post("/", requireAdmin, h.Promotion.Create)
	promotions.Get("/:id/stats", requireAdmin, h.Promotion.Stats)
	promotions.Get("/:id", requireAdmin, h.Promotion.Get)
	promotions.Put("/:id", requireAdmin, h.Promotion.Update)
	promotions.Delete("/:id", requireAdmin, h.Promotion.Delete)

	// Orders
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", h.Order.Create)
	orders.Get("/", h.Order.List)
	orders.Get("/:id", h.Order.Get)
	orders.Put("/:id/cancel", h.Order.Cancel)

	// Payments. Provider callbacks are public and authenticated by signature.
	payments := api.Group("/payments")
	payments.Post("/momo-notify", h.Payment.MomoNotify)
	payments.Get("/vnpay-return", h.Payment.VnpayReturn)
	payments.Get("/vnpay-ipn", h.Payment.VnpayIPN)
	payments.Post("/create-url", requireAuth, h.Payment.CreatePaymentURL)
	payments.Post("/manual-transfer", requireAuth, h.Payment.SubmitManualTransfer)
	payments.Post("/verify-transfer", requireAuth, requireStaff, h.Payment.VerifyTransfer)
	payments.Get("/history", requireAuth, h.Payment.History)
	payments.Get("/pending-transfers", requireAuth, requireStaff, h.Payment.PendingTransfers)
	payments.Get("/orders/:orderId", requireAuth, h.Payment.OrderPayment)
	payments.Get("/", requireAuth, requireStaff, h.Payment.List)

	// Enrollments
	enrollments := api.Group("/enrollments", requireAuth)
	enrollments.Get("/my-enrollments", h.Enrollment.MyEnrollments)
	enrollments.Post("/courses/:courseId/enroll", h.Enrollment.EnrollFree)
	enrollments.Get("/courses/:courseId/progress", h.Enrollment.CourseProgress)
	enrollments.Put("/:enrollmentId/lessons/:lessonId/progress", h.Enrollment.UpdateProgress)
	enrollments.Get("/", requireStaff, h.Enrollment.List)
	enrollments.Get("/:id", h.Enrollment.Get)

	// Notifications
	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", h.Notification.GetNotifications)
	notifications.Put("/read-all", h.Notification.MarkAllAsRead)
	notifications.Put("/:id/read", h.Notification.MarkAsRead)

	// Admin
	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Post("/reconciliation/repair", h.Admin.RepairAll)
	admin.Post("/reconciliation/orders/:id/repair", h.Admin.RepairOrder)
	admin.Post("/reconciliation/wallet-sync", h.Admin.SyncWallet)
	admin.Get("/audit-logs", h.Admin.ListAuditLogs)
	admin.Get("/jobs/logs", h.Admin.ListJobLogs)
	admin.Post("/jobs/:name/run", h.Admin.RunJob)
	admin.Get("/users", h.Admin.ListUsers)
	admin.Put("/users/:id", h.Admin.UpdateUser)
}
