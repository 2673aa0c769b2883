package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/shopspring/decimal"
)

// EmailConfig configures outgoing SMTP mail
type EmailConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// PaymentReceipt is the content of a payment success email
type PaymentReceipt struct {
	To        string
	Name      string
	OrderCode string
	Amount    decimal.Decimal
	Method    string
	Courses   []string
}

// Mailer sends transactional email
type Mailer interface {
	SendPaymentReceipt(ctx context.Context, receipt PaymentReceipt) error
}

// EmailService handles sending emails via SMTP
type EmailService struct {
	cfg    EmailConfig
	logger *slog.Logger
}

func NewEmailService(cfg EmailConfig, logger *slog.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.cfg.Host != "" && e.cfg.Username != "" && e.cfg.Password != ""
}

// SendPaymentReceipt emails the buyer a receipt. Without SMTP it only logs.
func (e *EmailService) SendPaymentReceipt(ctx context.Context, r PaymentReceipt) error {
	if !e.IsConfigured() {
		e.logger.InfoContext(ctx, "smtp not configured, skipping receipt",
			slog.String("order_code", r.OrderCode))
		return nil
	}
	subject := fmt.Sprintf("Payment received for order %s", r.OrderCode)
	return e.send(r.To, subject, e.receiptBody(r))
}

func (e *EmailService) receiptBody(r PaymentReceipt) string {
	name := r.Name
	if name == "" {
		name = "there"
	}

	var items strings.Builder
	for _, c := range r.Courses {
		items.WriteString("<li>")
		items.WriteString(html.EscapeString(c))
		items.WriteString("</li>")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Payment receipt</title></head>
<body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h2>Thank you, %s!</h2>
    <p>We received your payment of <strong>%s</strong> via %s for order <strong>%s</strong>.</p>
    <p>You now have access to:</p>
    <ul>%s</ul>
    <p><a href="%s/my-courses">Start learning</a></p>
</body>
</html>`,
		html.EscapeString(name),
		r.Amount.StringFixed(0),
		html.EscapeString(r.Method),
		html.EscapeString(r.OrderCode),
		items.String(),
		html.EscapeString(e.cfg.FrontendURL),
	)
}

// send delivers an HTML message over SMTP with STARTTLS
func (e *EmailService) send(to, subject, htmlBody string) error {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", e.cfg.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	message.WriteString(htmlBody)

	conn, err := smtp.Dial(e.cfg.Host + ":" + e.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if err := conn.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := conn.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return conn.Quit()
}
