package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reconciler is the part of the reconciliation engine the scheduler drives
type Reconciler interface {
	RepairPaidOrders(ctx context.Context, limit int) (*services.RepairSummary, error)
	SyncPendingWalletPayments(ctx context.Context, olderThan time.Duration) (*services.SyncSummary, error)
}

// TokenSweeper removes refresh tokens that can no longer be used
type TokenSweeper interface {
	CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobFunc does one run of a job and reports a summary for the job log
type JobFunc func(ctx context.Context) (message string, metadata map[string]interface{}, err error)

type job struct {
	name     string
	schedule string
	timeout  time.Duration
	run      JobFunc
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron       *cron.Cron
	db         *gorm.DB
	reconciler Reconciler
	tokens     TokenSweeper
	logger     *slog.Logger
	jobs       []job
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, reconciler Reconciler, tokens TokenSweeper, logger *slog.Logger) *CronManager {
	cl := cronLogger{logger: logger.With(slog.String("component", "cron"))}
	m := &CronManager{
		// seconds precision; a run still in progress makes the next tick a no-op
		cron:       cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		db:         db,
		reconciler: reconciler,
		tokens:     tokens,
		logger:     logger,
	}
	m.jobs = m.defaultJobs()
	return m
}

// Start registers all jobs and starts the scheduler
func (m *CronManager) Start() error {
	for _, j := range m.jobs {
		j := j
		if _, err := m.cron.AddFunc(j.schedule, func() { m.runJob(context.Background(), j) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	m.cron.Start()
	m.logger.Info("cron jobs started", slog.Int("jobs", len(m.jobs)))
	return nil
}

// Stop waits for running jobs to finish
func (m *CronManager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("cron jobs stopped")
}

// RunNow runs a registered job once, outside its schedule
func (m *CronManager) RunNow(ctx context.Context, name string) error {
	for _, j := range m.jobs {
		if j.name == name {
			return m.runJob(ctx, j)
		}
	}
	return apperr.NotFoundErr(fmt.Sprintf("Unknown job %q", name))
}

func (m *CronManager) runJob(parent context.Context, j job) error {
	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()

	started := time.Now()
	entry := model.CronJobLog{JobName: j.name, Status: "running", StartedAt: started, Metadata: datatypes.JSON("{}")}
	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		m.logger.WarnContext(ctx, "cron log insert failed", slog.String("job", j.name), slog.Any("error", err))
	}

	msg, meta, err := j.run(ctx)

	finished := time.Now()
	updates := map[string]interface{}{
		"completed_at": finished,
		"duration":     int(finished.Sub(started).Milliseconds()),
	}
	if meta != nil {
		if b, mErr := json.Marshal(meta); mErr == nil {
			updates["metadata"] = datatypes.JSON(b)
		}
	}
	if err != nil {
		updates["status"] = "failed"
		updates["error_msg"] = err.Error()
		m.logger.ErrorContext(ctx, "cron job failed", slog.String("job", j.name), slog.Any("error", err))
	} else {
		updates["status"] = "completed"
		updates["message"] = msg
		m.logger.InfoContext(ctx, "cron job completed", slog.String("job", j.name), slog.String("result", msg),
			slog.Duration("took", finished.Sub(started)))
	}
	if entry.ID != 0 {
		// the job's own context may have expired
		if uErr := m.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates).Error; uErr != nil {
			m.logger.WarnContext(ctx, "cron log update failed", slog.String("job", j.name), slog.Any("error", uErr))
		}
	}
	return err
}

// cronLogger adapts slog to the scheduler's logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
