package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/sahilchouksey/course-commerce-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubReconciler struct {
	repairErr error
	limit     int
	olderThan time.Duration
}

func (s *stubReconciler) RepairPaidOrders(_ context.Context, limit int) (*services.RepairSummary, error) {
	s.limit = limit
	if s.repairErr != nil {
		return nil, s.repairErr
	}
	return &services.RepairSummary{Orders: 2, Enrolled: 3}, nil
}

func (s *stubReconciler) SyncPendingWalletPayments(_ context.Context, olderThan time.Duration) (*services.SyncSummary, error) {
	s.olderThan = olderThan
	return &services.SyncSummary{Checked: 4, Reconciled: 1, Pending: 3}, nil
}

type stubSweeper struct{ cutoff time.Time }

func (s *stubSweeper) CleanupExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 5, nil
}

func newTestManager(t *testing.T, r Reconciler, tokens TokenSweeper) (*CronManager, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CronJobLog{}))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return NewCronManager(db, r, tokens, logger.Nop()), db
}

func TestRunNow_RecordsCompletedRun(t *testing.T) {
	r := &stubReconciler{}
	m, db := newTestManager(t, r, &stubSweeper{})

	require.NoError(t, m.RunNow(context.Background(), JobReconciliationRepair))
	assert.Equal(t, 100, r.limit)

	var entry model.CronJobLog
	require.NoError(t, db.Where("job_name = ?", JobReconciliationRepair).First(&entry).Error)
	assert.Equal(t, "completed", entry.Status)
	assert.Contains(t, entry.Message, "repaired 2 orders")
	assert.NotNil(t, entry.CompletedAt)
	assert.JSONEq(t, `{"orders":2,"enrolled":3,"failed":0}`, string(entry.Metadata))
}

func TestRunNow_RecordsFailure(t *testing.T) {
	r := &stubReconciler{repairErr: errors.New("db down")}
	m, db := newTestManager(t, r, &stubSweeper{})

	err := m.RunNow(context.Background(), JobReconciliationRepair)
	require.Error(t, err)

	var entry model.CronJobLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "failed", entry.Status)
	assert.Equal(t, "db down", entry.ErrorMsg)
}

func TestRunNow_OtherJobs(t *testing.T) {
	r := &stubReconciler{}
	sweeper := &stubSweeper{}
	m, _ := newTestManager(t, r, sweeper)

	require.NoError(t, m.RunNow(context.Background(), JobWalletPendingSync))
	assert.Equal(t, 15*time.Minute, r.olderThan)

	require.NoError(t, m.RunNow(context.Background(), JobRefreshTokenCleanup))
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), sweeper.cutoff, time.Minute)

	assert.Error(t, m.RunNow(context.Background(), "nope"))
}

func TestSchedulesParse(t *testing.T) {
	m, _ := newTestManager(t, &stubReconciler{}, &stubSweeper{})
	require.NoError(t, m.Start())
	assert.Len(t, m.cron.Entries(), 3)
	m.Stop()
}

func TestRunNow_UnknownJob(t *testing.T) {
	m, _ := newTestManager(t, &stubReconciler{}, &stubSweeper{})

	err := m.RunNow(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
