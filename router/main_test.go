package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/services/storage"
	"github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/cache"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	jwt *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Cleanup(auth.SetHashCostForTesting(4))

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	log := logger.Nop()
	jwt := auth.NewJWTManager(auth.JWTConfig{
		Secret: "router-test-secret", Expiry: time.Hour, RefreshExpiry: 24 * time.Hour, Issuer: "test",
	})
	registry := payment.NewRegistry(payment.NewManualTransferProvider(payment.ManualTransferConfig{Phone: "0900000000", Name: "Shop"}))
	notes := services.NewNotificationService(db, log)
	audit := services.NewAuditService(db, log)
	cart := services.NewCartService(db, log)
	promos := services.NewPromotionService(db, log)
	orders := services.NewOrderService(db, cart, promos, log)
	enrollments := services.NewEnrollmentService(db, notes, log)
	recon := services.NewReconciliationService(db, services.NewKeyedMutex(), enrollments, notes,
		services.NewEmailService(services.EmailConfig{}, log), registry, log)
	payments := services.NewPaymentService(db, registry, recon, notes,
		storage.NewLocalStorage(t.TempDir(), "http://localhost"), log)

	var noCache *cache.RedisCache
	h := &Handlers{
		Health:       handlers.NewHealthHandler(db, noCache),
		Auth:         auth_handlers.NewAuthHandler(db, jwt, time.Hour, nil, log),
		Course:       course_handlers.NewCourseHandler(db, log),
		Cart:         cart_handlers.NewCartHandler(cart, log),
		Promotion:    promotion_handlers.NewPromotionHandler(promos, audit, log),
		Order:        order_handlers.NewOrderHandler(orders, log),
		Payment:      payment_handlers.NewPaymentHandler(payments, recon, audit, registry, "https://shop.example.test", log),
		Enrollment:   enrollment_handlers.NewEnrollmentHandler(enrollments, log),
		Notification: notification_handlers.NewNotificationHandler(notes, log),
		Admin:        admin_handlers.NewAdminHandler(db, recon, audit, nil, log),
	}

	app := fiber.New()
	SetupRoutes(app, h, middleware.NewAuthMiddleware(jwt, db), nil)
	return &testServer{app: app, db: db, jwt: jwt}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) tokenFor(t *testing.T, role string) string {
	t.Helper()
	u := &model.User{Email: role + "@example.test", PasswordHash: "x", Name: role, Role: role, IsActive: true}
	require.NoError(t, s.db.Create(u).Error)
	tok, err := s.jwt.GenerateAccessToken(u.ID, u.Email, u.Role, u.TokenVersion)
	require.NoError(t, err)
	return tok.Token
}

func TestHealthWithoutRedis(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestCheckoutThroughRoutes(t *testing.T) {
	s := newTestServer(t)
	course := &model.Course{Title: "Go", Slug: "go", Price: decimal.NewFromInt(250000), Status: model.CourseStatusActive}
	require.NoError(t, s.db.Create(course).Error)

	status, body := s.do(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"Learner@Example.test","password":"correct-horse","name":"Learner"}`)
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]interface{})
	token := data["access_token"].(string)
	assert.Equal(t, model.RoleUser, data["user"].(map[string]interface{})["role"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/cart/add", token, fmt.Sprintf(`{"course_id":%d}`, course.ID))
	require.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/cart/count", token, "")
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/orders", token, `{}`)
	require.Equal(t, http.StatusCreated, status, body)
	order := body["data"].(map[string]interface{})
	assert.Equal(t, "250000", order["final_amount"])

	status, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%v", order["order_id"]), token, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/payments/create-url", token,
		fmt.Sprintf(`{"order_id":%v,"payment_method":"manual_transfer"}`, order["order_id"]))
	assert.Equal(t, http.StatusOK, status, body)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	user := s.tokenFor(t, model.RoleUser)
	staff := s.tokenFor(t, model.RoleStaff)
	admin := s.tokenFor(t, model.RoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"user cannot list payments", http.MethodGet, "/api/v1/payments", user, http.StatusForbidden},
		{"staff lists payments", http.MethodGet, "/api/v1/payments", staff, http.StatusOK},
		{"staff lists pending transfers", http.MethodGet, "/api/v1/payments/pending-transfers", staff, http.StatusOK},
		{"staff cannot reach admin", http.MethodGet, "/api/v1/admin/users", staff, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/api/v1/admin/users", admin, http.StatusOK},
		{"admin lists audit logs", http.MethodGet, "/api/v1/admin/audit-logs", admin, http.StatusOK},
		{"user cannot manage promotions", http.MethodGet, "/api/v1/promotions", user, http.StatusForbidden},
		{"user sees active promotions", http.MethodGet, "/api/v1/promotions/active", user, http.StatusOK},
		{"job runner disabled", http.MethodPost, "/api/v1/admin/jobs/reconciliation_repair/run", admin, http.StatusServiceUnavailable},
		{"catalogue is public", http.MethodGet, "/api/v1/courses", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := s.do(t, tc.method, tc.path, tc.token, "")
			assert.Equal(t, tc.want, status, body)
		})
	}
}

func TestWebhooksArePublic(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/v1/payments/vnpay-ipn?vnp_TxnRef=X", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, "00", body["RspCode"])

	status, _ = s.do(t, http.MethodPost, "/api/v1/payments/momo-notify", "", `{"orderId":"X"}`)
	assert.Equal(t, http.StatusOK, status)
}
