package cron

import (
	"context"
	"fmt"
	"time"
)

const (
	JobReconciliationRepair = "reconciliation_repair"
	JobWalletPendingSync    = "wallet_pending_sync"
	JobRefreshTokenCleanup  = "refresh_token_cleanup"
)

func (m *CronManager) defaultJobs() []job {
	return []job{
		{name: JobReconciliationRepair, schedule: "0 */10 * * * *", timeout: 5 * time.Minute, run: m.RepairPaidOrders},
		{name: JobWalletPendingSync, schedule: "30 */5 * * * *", timeout: 4 * time.Minute, run: m.SyncPendingWalletPayments},
		{name: JobRefreshTokenCleanup, schedule: "0 15 * * * *", timeout: time.Minute, run: m.CleanupRefreshTokens},
	}
}

// RepairPaidOrders enrolls buyers of paid orders whose enrollments went missing
func (m *CronManager) RepairPaidOrders(ctx context.Context) (string, map[string]interface{}, error) {
	summary, err := m.reconciler.RepairPaidOrders(ctx, 100)
	if err != nil {
		return "", nil, err
	}
	meta := map[string]interface{}{
		"orders":   summary.Orders,
		"enrolled": summary.Enrolled,
		"failed":   summary.Failed,
	}
	return fmt.Sprintf("repaired %d orders, %d enrollments created", summary.Orders, summary.Enrolled), meta, nil
}

// SyncPendingWalletPayments settles wallet payments whose callback never arrived
func (m *CronManager) SyncPendingWalletPayments(ctx context.Context) (string, map[string]interface{}, error) {
	summary, err := m.reconciler.SyncPendingWalletPayments(ctx, 15*time.Minute)
	if err != nil {
		return "", nil, err
	}
	meta := map[string]interface{}{
		"checked":    summary.Checked,
		"reconciled": summary.Reconciled,
		"pending":    summary.Pending,
		"errors":     summary.Errors,
	}
	return fmt.Sprintf("checked %d pending wallet payments, reconciled %d", summary.Checked, summary.Reconciled), meta, nil
}

// CleanupRefreshTokens deletes refresh tokens that expired or were revoked over a day ago
func (m *CronManager) CleanupRefreshTokens(ctx context.Context) (string, map[string]interface{}, error) {
	n, err := m.tokens.CleanupExpired(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("deleted %d refresh tokens", n), map[string]interface{}{"deleted": n}, nil
}
