package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnvironmentVariable struct {
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// DigitalOcean Spaces (bill images)
	DO_SPACES_KEY      string
	DO_SPACES_SECRET   string
	DO_SPACES_BUCKET   string
	DO_SPACES_REGION   string
	DO_SPACES_ENDPOINT string
	UPLOAD_DIR         string
	PUBLIC_BASE_URL    string
	// SMTP
	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
	// MoMo wallet
	MOMO_PARTNER_CODE string
	MOMO_ACCESS_KEY   string
	MOMO_SECRET_KEY   string
	MOMO_ENDPOINT     string
	MOMO_REDIRECT_URL string
	MOMO_IPN_URL      string
	// VNPay gateway
	VNPAY_TMN_CODE    string
	VNPAY_HASH_SECRET string
	VNPAY_URL         string
	VNPAY_RETURN_URL  string
	// Manual transfer beneficiary
	MOMO_PHONE   string
	MOMO_NAME    string
	MOMO_QR_CODE string
	// Misc
	FRONTEND_URL             string
	ALLOWED_ORIGINS          string
	CRON_ENABLED             bool
	PAYMENT_PROVIDER_TIMEOUT time.Duration
	PAYMENT_EXPIRE_MINUTES   int
}

func Get() (*EnvironmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	providerTimeout, err := time.ParseDuration(os.Getenv("PAYMENT_PROVIDER_TIMEOUT"))
	if err != nil || providerTimeout <= 0 {
		providerTimeout = 30 * time.Second
	}

	expireMinutes, err := strconv.Atoi(os.Getenv("PAYMENT_EXPIRE_MINUTES"))
	if err != nil || expireMinutes <= 0 {
		expireMinutes = 15
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getEnvDefault("DB_HOST", "localhost"),
		DB_PORT:      getEnvDefault("DB_PORT", "5432"),
		DB_SSL_MODE:  getEnvDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvDefault("JWT_ISSUER", "course-commerce-api"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Spaces
		DO_SPACES_KEY:      os.Getenv("DO_SPACES_KEY"),
		DO_SPACES_SECRET:   os.Getenv("DO_SPACES_SECRET"),
		DO_SPACES_BUCKET:   os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:   getEnvDefault("DO_SPACES_REGION", "sgp1"),
		DO_SPACES_ENDPOINT: os.Getenv("DO_SPACES_ENDPOINT"),
		UPLOAD_DIR:         getEnvDefault("UPLOAD_DIR", "uploads"),
		PUBLIC_BASE_URL:    getEnvDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		// SMTP
		SMTP_HOST:     os.Getenv("SMTP_HOST"),
		SMTP_PORT:     getEnvDefault("SMTP_PORT", "587"),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     os.Getenv("SMTP_FROM"),
		// MoMo
		MOMO_PARTNER_CODE: os.Getenv("MOMO_PARTNER_CODE"),
		MOMO_ACCESS_KEY:   os.Getenv("MOMO_ACCESS_KEY"),
		MOMO_SECRET_KEY:   os.Getenv("MOMO_SECRET_KEY"),
		MOMO_ENDPOINT:     getEnvDefault("MOMO_ENDPOINT", "https://test-payment.momo.vn"),
		MOMO_REDIRECT_URL: os.Getenv("MOMO_REDIRECT_URL"),
		MOMO_IPN_URL:      os.Getenv("MOMO_IPN_URL"),
		// VNPay
		VNPAY_TMN_CODE:    os.Getenv("VNPAY_TMN_CODE"),
		VNPAY_HASH_SECRET: os.Getenv("VNPAY_HASH_SECRET"),
		VNPAY_URL:         getEnvDefault("VNPAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VNPAY_RETURN_URL:  os.Getenv("VNPAY_RETURN_URL"),
		// Manual transfer
		MOMO_PHONE:   os.Getenv("MOMO_PHONE"),
		MOMO_NAME:    os.Getenv("MOMO_NAME"),
		MOMO_QR_CODE: os.Getenv("MOMO_QR_CODE"),
		// Misc
		FRONTEND_URL:             strings.TrimRight(getEnvDefault("FRONTEND_URL", "http://localhost:3000"), "/"),
		ALLOWED_ORIGINS:          getEnvDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		CRON_ENABLED:             os.Getenv("CRON_ENABLED") != "false",
		PAYMENT_PROVIDER_TIMEOUT: providerTimeout,
		PAYMENT_EXPIRE_MINUTES:   expireMinutes,
	}

	return envVariables, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// PostgresDSN builds the key/value connection string shared by GORM and lib/pq.
func (e *EnvironmentVariable) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		e.DB_HOST, e.DB_USER_NAME, e.DB_PASSWORD, e.DB_NAME, e.DB_PORT, e.DB_SSL_MODE,
	)
}

func (e *EnvironmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}
