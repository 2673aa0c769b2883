package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/services/storage"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

type fakeMailer struct {
	mu       sync.Mutex
	receipts []PaymentReceipt
}

func (m *fakeMailer) SendPaymentReceipt(_ context.Context, r PaymentReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, r)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

type fixture struct {
	db          *gorm.DB
	mailer      *fakeMailer
	notes       *NotificationService
	cart        *CartService
	promos      *PromotionService
	orders      *OrderService
	enrollments *EnrollmentService
	recon       *ReconciliationService
	payments    *PaymentService
	registry    *payment.Registry
}

func newFixture(t *testing.T, providers ...payment.Provider) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.Nop()

	if len(providers) == 0 {
		providers = []payment.Provider{
			payment.NewManualTransferProvider(payment.ManualTransferConfig{Phone: "0900000000", Name: "ACME"}),
			payment.NewGatewayProvider(payment.GatewayConfig{
				TmnCode:    "TMN",
				HashSecret: "secret",
				PayURL:     "https://pay.example.test/vpcpay.html",
				ReturnURL:  "https://api.example.test/return",
			}),
		}
	}

	f := &fixture{db: db, mailer: &fakeMailer{}}
	f.registry = payment.NewRegistry(providers...)
	f.notes = NewNotificationService(db, log)
	f.cart = NewCartService(db, log)
	f.promos = NewPromotionService(db, log)
	f.orders = NewOrderService(db, f.cart, f.promos, log)
	f.enrollments = NewEnrollmentService(db, f.notes, log)
	f.recon = NewReconciliationService(db, NewKeyedMutex(), f.enrollments, f.notes, f.mailer, f.registry, log)
	f.payments = NewPaymentService(db, f.registry, f.recon, f.notes, storage.NewLocalStorage(t.TempDir(), "http://localhost"), log)
	return f
}

func (f *fixture) user(t *testing.T, email, role string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Name: strings.Split(email, "@")[0], Role: role, IsActive: true}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) course(t *testing.T, title string, price string, lessons int) *model.Course {
	t.Helper()
	c := &model.Course{
		Title:  title,
		Slug:   strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Price:  decimal.RequireFromString(price),
		Status: model.CourseStatusActive,
	}
	require.NoError(t, f.db.Create(c).Error)
	for i := 1; i <= lessons; i++ {
		require.NoError(t, f.db.Create(&model.Lesson{
			CourseID: c.ID, Title: fmt.Sprintf("%s %d", title, i), Position: i, IsActive: true,
		}).Error)
	}
	return c
}

func (f *fixture) promotion(t *testing.T, code, kind, value string, mutate func(*model.Promotion)) *model.Promotion {
	t.Helper()
	p := &model.Promotion{
		Code:           code,
		Name:           code,
		DiscountType:   kind,
		DiscountValue:  decimal.RequireFromString(value),
		MinOrderValue:  decimal.Zero,
		UserUsageLimit: 1,
		StartDate:      time.Now().Add(-time.Hour),
		EndDate:        time.Now().Add(time.Hour),
		Status:         model.PromotionActive,
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

// checkout puts courses in the user's cart and places an order
func (f *fixture) checkout(t *testing.T, userID uint, promo string, courses ...*model.Course) *CheckoutResult {
	t.Helper()
	ctx := context.Background()
	for _, c := range courses {
		_, err := f.cart.AddItem(ctx, userID, c.ID)
		require.NoError(t, err)
	}
	res, err := f.orders.Checkout(ctx, userID, promo)
	require.NoError(t, err)
	return res
}

func (f *fixture) order(t *testing.T, id uint) *model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, f.db.Preload("Items").First(&o, id).Error)
	return &o
}

func (f *fixture) enrollmentCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func (f *fixture) notificationCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.UserNotification{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
