package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/sahilchouksey/course-commerce-api/config"
	"github.com/shopspring/decimal"
)

// ReportStore runs read-only reconciliation reports over a plain database/sql
// connection, outside of the API's GORM pool.
type ReportStore struct {
	db  *sql.DB
	log *slog.Logger
}

func StartReportStore(env *config.EnvironmentVariable, log *slog.Logger) (*ReportStore, error) {
	db, err := sql.Open("postgres", env.PostgresDSN())
	if err != nil {
		log.Error("unable to open PostgreSQL", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("connected to PostgreSQL for reporting", "database", env.DB_NAME)
	return &ReportStore{db: db, log: log}, nil
}

func (s *ReportStore) Close() error {
	return s.db.Close()
}

// Drift is a paid order whose courses are not all enrolled.
type Drift struct {
	OrderID        uint
	OrderCode      string
	UserID         uint
	Status         string
	FinalAmount    decimal.Decimal
	PaidAt         *time.Time
	MissingCourses int
}

const driftQuery = `
SELECT o.id, o.order_code, o.user_id, o.status, o.final_amount, MAX(p.payment_date),
       COUNT(DISTINCT oi.course_id) FILTER (WHERE e.id IS NULL)
FROM orders o
JOIN order_items oi ON oi.order_id = o.id
LEFT JOIN enrollments e ON e.user_id = o.user_id AND e.course_id = oi.course_id
LEFT JOIN payments p ON p.order_id = o.id AND p.status = 'success'
WHERE o.payment_status = 'paid'
GROUP BY o.id, o.order_code, o.user_id, o.status, o.final_amount
HAVING COUNT(DISTINCT oi.course_id) FILTER (WHERE e.id IS NULL) > 0
ORDER BY o.id
LIMIT $1`

// MissingEnrollments lists paid orders that still lack at least one enrollment.
func (s *ReportStore) MissingEnrollments(ctx context.Context, limit int) ([]Drift, error) {
	rows, err := s.db.QueryContext(ctx, driftQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var (
			d      Drift
			amount string
			paidAt sql.NullTime
		)
		if err := rows.Scan(&d.OrderID, &d.OrderCode, &d.UserID, &d.Status, &amount, &paidAt, &d.MissingCourses); err != nil {
			return nil, err
		}
		if d.FinalAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			t := paidAt.Time
			d.PaidAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PaymentTally is the count and volume of payments per (method, status).
type PaymentTally struct {
	Method string
	Status string
	Count  int64
	Amount decimal.Decimal
}

const tallyQuery = `
SELECT payment_method, status, COUNT(*), COALESCE(SUM(amount), 0)::text
FROM payments
WHERE created_at >= $1
GROUP BY payment_method, status
ORDER BY payment_method, status`

func (s *ReportStore) PaymentTallies(ctx context.Context, since time.Time) ([]PaymentTally, error) {
	rows, err := s.db.QueryContext(ctx, tallyQuery, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentTally
	for rows.Next() {
		var (
			t      PaymentTally
			amount string
		)
		if err := rows.Scan(&t.Method, &t.Status, &t.Count, &amount); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const stalePendingQuery = `
SELECT COUNT(*) FROM payments
WHERE status = 'pending' AND payment_method <> 'manual_transfer' AND created_at < $1`

// StalePending counts provider payments still pending after the cutoff.
func (s *ReportStore) StalePending(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, stalePendingQuery, before).Scan(&n)
	return n, err
}
