// Command reconaudit reports paid orders that are missing enrollments and,
// with -repair, re-runs enrollment for them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sahilchouksey/course-commerce-api/config"
	"github.com/sahilchouksey/course-commerce-api/database"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/utils/cache"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
)

func main() {
	limit := flag.Int("limit", 200, "maximum orders to report")
	since := flag.Duration("since", 7*24*time.Hour, "window for the payment tally")
	stale := flag.Duration("stale", 30*time.Minute, "age after which a provider payment counts as stuck")
	repair := flag.Bool("repair", false, "enroll the missing courses")
	flag.Parse()

	if err := config.LoadENV(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env file not found, using system environment variables")
	}
	env, err := config.Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, flush := logger.New(env.GO_ENV)
	defer flush()

	reports, err := database.StartReportStore(env, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer reports.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tallies, err := reports.PaymentTallies(ctx, time.Now().Add(-*since))
	if err != nil {
		log.Error("payment tally failed", "error", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "METHOD\tSTATUS\tCOUNT\tAMOUNT\n")
	for _, t := range tallies {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.Method, t.Status, t.Count, t.Amount.StringFixed(2))
	}
	w.Flush()

	stuck, err := reports.StalePending(ctx, time.Now().Add(-*stale))
	if err != nil {
		log.Error("stale pending count failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nprovider payments pending longer than %s: %d\n\n", *stale, stuck)

	drift, err := reports.MissingEnrollments(ctx, *limit)
	if err != nil {
		log.Error("drift query failed", "error", err)
		os.Exit(1)
	}
	if len(drift) == 0 {
		fmt.Println("no paid orders are missing enrollments")
		return
	}

	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ORDER\tCODE\tUSER\tSTATUS\tAMOUNT\tMISSING\tPAID AT\n")
	for _, d := range drift {
		paidAt := "-"
		if d.PaidAt != nil {
			paidAt = d.PaidAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%s\n",
			d.OrderID, d.OrderCode, d.UserID, d.Status, d.FinalAmount.StringFixed(2), d.MissingCourses, paidAt)
	}
	w.Flush()

	if !*repair {
		return
	}

	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// share the API's order locks when Redis is reachable
	var locker services.Locker = services.NewKeyedMutex()
	if redisCache, err := cache.NewRedisCache(env.REDIS_URL); err == nil {
		defer redisCache.Close()
		locker = services.NewRedisLocker(redisCache, 30*time.Second, 10*time.Second)
	}

	db := store.DB()
	notifications := services.NewNotificationService(db, log)
	enrollments := services.NewEnrollmentService(db, notifications, log)
	reconciler := services.NewReconciliationService(db, locker, enrollments, notifications,
		services.NewEmailService(services.EmailConfig{}, log), payment.NewRegistry(), log)

	var failed int
	for _, d := range drift {
		if d.Status != model.OrderStatusConfirmed {
			log.Warn("paid order is not confirmed, needs manual review", "order_code", d.OrderCode, "status", d.Status)
			continue
		}
		res, err := reconciler.RepairOrder(ctx, d.OrderID)
		if err != nil {
			failed++
			log.Error("repair failed", "order_id", d.OrderID, "error", err)
			continue
		}
		log.Info("repaired order", "order_code", res.OrderCode, "enrolled", res.Enrolled, "failed", res.Failed)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
