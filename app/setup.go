package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/course-commerce-api/api"
	"github.com/sahilchouksey/course-commerce-api/config"
	"github.com/sahilchouksey/course-commerce-api/database"
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
	"github.com/sahilchouksey/course-commerce-api/router"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/services/cron"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/services/storage"
	"github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/billvalidation"
	"github.com/sahilchouksey/course-commerce-api/utils/cache"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"gorm.io/gorm"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour

	// order locks outlive the slowest reconcile transaction
	orderLockTTL  = 30 * time.Second
	orderLockWait = 10 * time.Second
)

func SetupAndRunServer() error {
	if err := config.LoadENV(); err != nil {
		// .env is optional when the environment is already populated
		fmt.Fprintln(os.Stderr, "no .env loaded:", err)
	}

	env, err := config.Get()
	if err != nil {
		return err
	}
	if env.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	log, flush := logger.New(env.GO_ENV)
	defer flush()
	response.Debug = !env.IsProduction()

	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Error("check that PostgreSQL is running (make docker-up or make db-up)")
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Error("failed to run migrations", "error", err)
		return err
	}
	db := store.DB()

	// Redis is optional: without it locks are process-local and login throttling is off
	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Warn("redis unavailable, using in-process locks and no login throttle", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT), billvalidation.DefaultLimits.MaxFileSizeMB+2, log)
	app := server.GetEngine()

	middleware.SetupSecurity(app, log, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		SkipRateLimit:     router.WebhookPaths,
	})

	bills, err := billStorage(env, log)
	if err != nil {
		return err
	}
	if local, ok := bills.(*storage.LocalStorage); ok {
		app.Static("/uploads", local.Dir())
	}

	c := buildComponents(db, env, redisCache, bills, log)

	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		cronManager = cron.NewCronManager(db, c.reconciler, c.tokens, log)
		if err := cronManager.Start(); err != nil {
			// jobs are a safety net; the API still serves without them
			log.Warn("failed to start cron jobs", "error", err)
			cronManager = nil
		}
	}
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
	}()

	var jobs admin_handlers.JobRunner
	if cronManager != nil {
		jobs = cronManager
	}

	var throttle *middleware.LoginThrottle
	if redisCache != nil {
		throttle = middleware.NewLoginThrottle(redisCache, log)
	}

	h := &router.Handlers{
		Health:       handlers.NewHealthHandler(db, redisCache),
		Auth:         auth_handlers.NewAuthHandler(db, c.jwt, accessTokenTTL, throttle, log),
		Course:       course_handlers.NewCourseHandler(db, log),
		Cart:         cart_handlers.NewCartHandler(c.cart, log),
		Promotion:    promotion_handlers.NewPromotionHandler(c.promotions, c.audit, log),
		Order:        order_handlers.NewOrderHandler(c.orders, log),
		Payment:      payment_handlers.NewPaymentHandler(c.payments, c.reconciler, c.audit, c.registry, env.FRONTEND_URL, log),
		Enrollment:   enrollment_handlers.NewEnrollmentHandler(c.enrollments, log),
		Notification: notification_handlers.NewNotificationHandler(c.notifications, log),
		Admin:        admin_handlers.NewAdminHandler(db, c.reconciler, c.audit, jobs, log),
	}
	router.SetupRoutes(app, h, middleware.NewAuthMiddleware(c.jwt, db), throttle)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

type components struct {
	jwt           *auth.JWTManager
	tokens        *auth.TokenStore
	registry      *payment.Registry
	notifications *services.NotificationService
	audit         *services.AuditService
	cart          *services.CartService
	promotions    *services.PromotionService
	orders        *services.OrderService
	enrollments   *services.EnrollmentService
	reconciler    *services.ReconciliationService
	payments      *services.PaymentService
}

func buildComponents(db *gorm.DB, env *config.EnvironmentVariable, redisCache *cache.RedisCache,
	bills storage.BillStorage, log *slog.Logger) *components {
	var locker services.Locker = services.NewKeyedMutex()
	if redisCache != nil {
		locker = services.NewRedisLocker(redisCache, orderLockTTL, orderLockWait)
	}

	registry := paymentRegistry(env, log)
	notifications := services.NewNotificationService(db, log)
	mailer := services.NewEmailService(services.EmailConfig{
		Host:        env.SMTP_HOST,
		Port:        env.SMTP_PORT,
		Username:    env.SMTP_USERNAME,
		Password:    env.SMTP_PASSWORD,
		From:        env.SMTP_FROM,
		FrontendURL: env.FRONTEND_URL,
	}, log)

	cart := services.NewCartService(db, log)
	promotions := services.NewPromotionService(db, log)
	enrollments := services.NewEnrollmentService(db, notifications, log)
	reconciler := services.NewReconciliationService(db, locker, enrollments, notifications, mailer, registry, log)

	return &components{
		jwt: auth.NewJWTManager(auth.JWTConfig{
			Secret:        env.JWT_SECRET,
			Expiry:        accessTokenTTL,
			RefreshExpiry: refreshTokenTTL,
			Issuer:        env.JWT_ISSUER,
		}),
		tokens:        auth.NewTokenStore(db),
		registry:      registry,
		notifications: notifications,
		audit:         services.NewAuditService(db, log),
		cart:          cart,
		promotions:    promotions,
		orders:        services.NewOrderService(db, cart, promotions, log),
		enrollments:   enrollments,
		reconciler:    reconciler,
		payments:      services.NewPaymentService(db, registry, reconciler, notifications, bills, log),
	}
}

// paymentRegistry registers only the providers that have credentials
func paymentRegistry(env *config.EnvironmentVariable, log *slog.Logger) *payment.Registry {
	var providers []payment.Provider

	if env.MOMO_PARTNER_CODE != "" && env.MOMO_SECRET_KEY != "" {
		providers = append(providers, payment.NewWalletProvider(payment.WalletConfig{
			PartnerCode: env.MOMO_PARTNER_CODE,
			AccessKey:   env.MOMO_ACCESS_KEY,
			SecretKey:   env.MOMO_SECRET_KEY,
			Endpoint:    env.MOMO_ENDPOINT,
			RedirectURL: env.MOMO_REDIRECT_URL,
			IPNURL:      env.MOMO_IPN_URL,
			Timeout:     env.PAYMENT_PROVIDER_TIMEOUT,
		}))
	} else {
		log.Warn("momo wallet not configured")
	}

	if env.VNPAY_TMN_CODE != "" && env.VNPAY_HASH_SECRET != "" {
		providers = append(providers, payment.NewGatewayProvider(payment.GatewayConfig{
			TmnCode:     env.VNPAY_TMN_CODE,
			HashSecret:  env.VNPAY_HASH_SECRET,
			PayURL:      env.VNPAY_URL,
			ReturnURL:   env.VNPAY_RETURN_URL,
			ExpireAfter: time.Duration(env.PAYMENT_EXPIRE_MINUTES) * time.Minute,
		}))
	} else {
		log.Warn("vnpay gateway not configured")
	}

	providers = append(providers, payment.NewManualTransferProvider(payment.ManualTransferConfig{
		Phone:  env.MOMO_PHONE,
		Name:   env.MOMO_NAME,
		QRCode: env.MOMO_QR_CODE,
	}))

	return payment.NewRegistry(providers...)
}

func billStorage(env *config.EnvironmentVariable, log *slog.Logger) (storage.BillStorage, error) {
	spaces := storage.SpacesConfig{
		AccessKey: env.DO_SPACES_KEY,
		SecretKey: env.DO_SPACES_SECRET,
		Bucket:    env.DO_SPACES_BUCKET,
		Region:    env.DO_SPACES_REGION,
		Endpoint:  env.DO_SPACES_ENDPOINT,
	}
	if spaces.Enabled() {
		log.Info("storing bills in Spaces", "bucket", spaces.Bucket)
		return storage.NewSpacesStorage(spaces)
	}
	log.Info("storing bills on local disk", "dir", env.UPLOAD_DIR)
	return storage.NewLocalStorage(env.UPLOAD_DIR, env.PUBLIC_BASE_URL), nil
}
