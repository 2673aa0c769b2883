package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReconcileStatus is the outcome of applying a payment result to an order
type ReconcileStatus string

const (
	Reconciled        ReconcileStatus = "reconciled"
	AlreadyReconciled ReconcileStatus = "already_reconciled"
	ReconcileFailed   ReconcileStatus = "failed"
)

// ReconcileResult reports what a reconciliation did
type ReconcileResult struct {
	Status    ReconcileStatus `json:"status"`
	OrderID   uint            `json:"order_id"`
	OrderCode string          `json:"order_code"`
	Enrolled  int             `json:"enrolled"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	// NeedsReview marks money received for an order that was cancelled meanwhile
	NeedsReview bool `json:"needs_review,omitempty"`
}

// ReconciliationService is the single writer of order payment status
type ReconciliationService struct {
	db          *gorm.DB
	locker      Locker
	enrollments *EnrollmentService
	notifier    Notifier
	mailer      Mailer
	registry    *payment.Registry
	logger      *slog.Logger
	now         func() time.Time
}

func NewReconciliationService(db *gorm.DB, locker Locker, enrollments *EnrollmentService, notifier Notifier,
	mailer Mailer, registry *payment.Registry, logger *slog.Logger) *ReconciliationService {
	return &ReconciliationService{
		db:          db,
		locker:      locker,
		enrollments: enrollments,
		notifier:    notifier,
		mailer:      mailer,
		registry:    registry,
		logger:      logger,
		now:         time.Now,
	}
}

func orderLockKey(code string) string {
	return "reconcile:order:" + code
}

// Reconcile applies a verified outcome to its order. Payment status changes commit
// before any enrollment is attempted, and enrollment failures never undo them.
func (s *ReconciliationService) Reconcile(ctx context.Context, o *payment.Outcome) (*ReconcileResult, error) {
	if o == nil || o.OrderCode == "" {
		return nil, apperr.InvalidErr("Missing order reference", nil)
	}

	unlock, err := s.locker.Lock(ctx, orderLockKey(o.OrderCode))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %s: %w", o.OrderCode, err)
	}
	defer unlock()

	db := s.db.WithContext(ctx)
	var order model.Order
	if err := db.Preload("Items").Where("order_code = ?", o.OrderCode).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	result := &ReconcileResult{OrderID: order.ID, OrderCode: order.OrderCode}
	log := s.logger.With(slog.String("order_code", order.OrderCode), slog.String("method", o.Kind.String()))

	if order.PaymentStatus == model.PaymentStatusPaid {
		result.Status = AlreadyReconciled
		log.InfoContext(ctx, "payment already reconciled")
		return result, nil
	}
	if o.Success && !payment.AmountMatches(o, order.FinalAmount) {
		log.WarnContext(ctx, "payment amount mismatch",
			slog.String("expected", payment.ExpectedAmount(o.Kind, order.FinalAmount).String()),
			slog.String("received", o.Amount.String()))
		return nil, apperr.ErrAmountMismatch
	}

	if o.Success {
		applied, cancelled, err := s.applySuccess(ctx, &order, o)
		if err != nil {
			return nil, err
		}
		if !applied {
			result.Status = AlreadyReconciled
			return result, nil
		}
		result.Status = Reconciled
		if cancelled {
			result.NeedsReview = true
			log.WarnContext(ctx, "payment received for cancelled order")
			s.alertPaidAfterCancel(ctx, &order)
			return result, nil
		}

		s.enrollItems(ctx, &order, result)
		if err := ClearCartTx(s.db.WithContext(ctx), order.UserID); err != nil {
			log.WarnContext(ctx, "cart clear failed", slog.Any("error", err))
		}
		s.notifySuccess(ctx, &order, o)
		log.InfoContext(ctx, "payment reconciled",
			slog.Int("enrolled", result.Enrolled), slog.Int("skipped", result.Skipped), slog.Int("failed", result.Failed))
		return result, nil
	}

	applied, err := s.applyFailure(ctx, &order, o)
	if err != nil {
		return nil, err
	}
	if !applied {
		result.Status = AlreadyReconciled
		return result, nil
	}
	result.Status = ReconcileFailed
	s.notifyFailure(ctx, &order, o)
	log.InfoContext(ctx, "payment failed", slog.String("response_code", o.ResponseCode))
	return result, nil
}

// resolveAttempt finds the payment row an outcome belongs to
func resolveAttempt(tx *gorm.DB, orderID uint, o *payment.Outcome) (*model.Payment, error) {
	var p model.Payment
	q := tx.Where("order_id = ?", orderID)
	if o.PaymentID != 0 {
		q = q.Where("id = ?", o.PaymentID)
	} else {
		q = q.Where("payment_method = ?", string(o.Kind)).Order("created_at DESC, id DESC")
	}
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment attempt: %w", err)
	}
	return &p, nil
}

func (s *ReconciliationService) outcomeColumns(o *payment.Outcome, status string) map[string]interface{} {
	now := s.now()
	cols := map[string]interface{}{
		"status":                  status,
		"provider_transaction_id": o.TransactionID,
		"response_code":           o.ResponseCode,
		"response_message":        o.Message,
		"payment_date":            &now,
	}
	if len(o.Raw) > 0 {
		cols["callback_payload"] = datatypes.JSON(o.Raw)
	}
	if o.VerifiedBy != nil {
		cols["verified_by"] = *o.VerifiedBy
		cols["verified_at"] = &now
	}
	return cols
}

// recordOutcome moves the pending attempt to status, or appends a row when the
// attempt is missing or already terminal
func (s *ReconciliationService) recordOutcome(tx *gorm.DB, order *model.Order, o *payment.Outcome, status string) error {
	attempt, err := resolveAttempt(tx, order.ID, o)
	if err != nil {
		return err
	}
	cols := s.outcomeColumns(o, status)

	if attempt != nil && attempt.Status == model.PaymentPending {
		res := tx.Model(&model.Payment{}).
			Where("id = ? AND status = ?", attempt.ID, model.PaymentPending).
			Updates(cols)
		if res.Error != nil {
			return fmt.Errorf("failed to update payment attempt: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}

	row := &model.Payment{
		OrderID:         order.ID,
		TransactionCode: order.OrderCode,
		PaymentMethod:   string(o.Kind),
		Amount:          order.FinalAmount,
		Status:          model.PaymentPending,
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("failed to record payment outcome: %w", err)
	}
	return tx.Model(row).Updates(cols).Error
}

func (s *ReconciliationService) applySuccess(ctx context.Context, order *model.Order, o *payment.Outcome) (applied, cancelled bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// failed -> paid is an accepted transition: a late success after a failed attempt settles the order
		res := tx.Model(&model.Order{}).
			Where("id = ? AND payment_status IN ?", order.ID, []string{model.PaymentStatusPending, model.PaymentStatusFailed}).
			Updates(map[string]interface{}{
				"payment_status": model.PaymentStatusPaid,
				"payment_method": string(o.Kind),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if err := s.recordOutcome(tx, order, o, model.PaymentSuccess); err != nil {
			return err
		}

		res = tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusConfirmed)
		if res.Error != nil {
			return fmt.Errorf("failed to confirm order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var current model.Order
			if err := tx.Select("id", "status").First(&current, order.ID).Error; err != nil {
				return fmt.Errorf("failed to reload order: %w", err)
			}
			cancelled = current.Status == model.OrderStatusCancelled
			order.Status = current.Status
		} else {
			order.Status = model.OrderStatusConfirmed
		}
		order.PaymentStatus = model.PaymentStatusPaid
		return nil
	})
	return applied, cancelled, err
}

func (s *ReconciliationService) applyFailure(ctx context.Context, order *model.Order, o *payment.Outcome) (applied bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := resolveAttempt(tx, order.ID, o)
		if err != nil {
			return err
		}
		if attempt != nil && attempt.IsTerminal() {
			return nil
		}

		res := tx.Model(&model.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, model.PaymentStatusPending).
			Update("payment_status", model.PaymentStatusFailed)
		if res.Error != nil {
			return fmt.Errorf("failed to mark order payment failed: %w", res.Error)
		}
		if res.RowsAffected == 0 && attempt == nil {
			return nil
		}
		applied = true
		order.PaymentStatus = model.PaymentStatusFailed
		return s.recordOutcome(tx, order, o, model.PaymentFailed)
	})
	return applied, err
}

// enrollItems enrolls the buyer in every ordered course; each item stands alone
func (s *ReconciliationService) enrollItems(ctx context.Context, order *model.Order, result *ReconcileResult) {
	orderID := order.ID
	for _, item := range order.Items {
		enrolled, err := s.enrollments.IsEnrolled(ctx, order.UserID, item.CourseID)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "enrollment check failed",
				slog.String("order_code", order.OrderCode), slog.Uint64("course_id", uint64(item.CourseID)), slog.Any("error", err))
			continue
		}
		if enrolled {
			result.Skipped++
			continue
		}

		_, err = s.enrollments.Create(ctx, order.UserID, item.CourseID, &orderID)
		switch {
		case errors.Is(err, apperr.ErrAlreadyEnrolled):
			result.Skipped++
			continue
		case err != nil:
			result.Failed++
			s.logger.ErrorContext(ctx, "enrollment failed",
				slog.String("order_code", order.OrderCode), slog.Uint64("course_id", uint64(item.CourseID)), slog.Any("error", err))
			continue
		}
		result.Enrolled++

		if err := s.enrollments.RefreshStudentCount(ctx, item.CourseID); err != nil {
			s.logger.WarnContext(ctx, "student count refresh failed",
				slog.Uint64("course_id", uint64(item.CourseID)), slog.Any("error", err))
		}
	}
}

func (s *ReconciliationService) notifySuccess(ctx context.Context, order *model.Order, o *payment.Outcome) {
	err := s.notifier.Notify(ctx, CreateNotificationRequest{
		UserID:   order.UserID,
		Type:     model.NotificationTypePayment,
		Title:    "Payment successful",
		Message:  fmt.Sprintf("Payment for order %s was successful. Your courses are ready.", order.OrderCode),
		Link:     "/my-courses",
		Metadata: &model.NotificationMetadata{OrderID: order.ID, OrderCode: order.OrderCode},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment notification failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
	}

	var user model.User
	if err := s.db.WithContext(ctx).Select("id", "email", "name").First(&user, order.UserID).Error; err != nil {
		s.logger.WarnContext(ctx, "receipt skipped: user lookup failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
		return
	}
	courses := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		courses = append(courses, it.Title)
	}
	if err := s.mailer.SendPaymentReceipt(ctx, PaymentReceipt{
		To:        user.Email,
		Name:      user.Name,
		OrderCode: order.OrderCode,
		Amount:    order.FinalAmount,
		Method:    o.Kind.String(),
		Courses:   courses,
	}); err != nil {
		s.logger.WarnContext(ctx, "receipt email failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
	}
}

func (s *ReconciliationService) notifyFailure(ctx context.Context, order *model.Order, o *payment.Outcome) {
	req := CreateNotificationRequest{
		UserID:   order.UserID,
		Type:     model.NotificationTypePayment,
		Title:    "Payment failed",
		Message:  fmt.Sprintf("Payment for order %s failed: %s", order.OrderCode, o.Message),
		Link:     fmt.Sprintf("/orders/%d", order.ID),
		Metadata: &model.NotificationMetadata{OrderID: order.ID, OrderCode: order.OrderCode},
	}
	if o.Kind == payment.KindManualTransfer {
		req.Title = "Transfer rejected"
		req.Message = fmt.Sprintf("Your transfer for order %s could not be verified. Please contact support or try another method.", order.OrderCode)
	}
	if err := s.notifier.Notify(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "payment notification failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
	}
}

func (s *ReconciliationService) alertPaidAfterCancel(ctx context.Context, order *model.Order) {
	err := s.notifier.NotifyRoles(ctx, []string{model.RoleAdmin}, CreateNotificationRequest{
		Type:     model.NotificationTypeSystem,
		Title:    "Payment received for cancelled order",
		Message:  fmt.Sprintf("Order %s was paid after it was cancelled. Review and refund or enroll manually.", order.OrderCode),
		Link:     fmt.Sprintf("/admin/orders/%d", order.ID),
		Metadata: &model.NotificationMetadata{OrderID: order.ID, OrderCode: order.OrderCode},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "admin alert failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
	}
}

// VerifyTransfer applies a staff decision on a submitted manual transfer
func (s *ReconciliationService) VerifyTransfer(ctx context.Context, staffID, paymentID uint, approved bool) (*ReconcileResult, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).Preload("Order").First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Payment not found")
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p.PaymentMethod != string(payment.KindManualTransfer) {
		return nil, apperr.InvalidErr("Only manual transfers can be verified", nil)
	}
	if p.IsTerminal() {
		return nil, apperr.ConflictErr(fmt.Sprintf("Payment has already been %s", p.Status))
	}

	o := &payment.Outcome{
		Kind:         payment.KindManualTransfer,
		OrderCode:    p.Order.OrderCode,
		Success:      approved,
		Amount:       p.Order.FinalAmount,
		ResponseCode: "APPROVED",
		Message:      "Transfer verified by staff",
		PaymentID:    p.ID,
		VerifiedBy:   &staffID,
	}
	if !approved {
		o.ResponseCode = "REJECTED"
		o.Message = "Transfer rejected by staff"
	}
	return s.Reconcile(ctx, o)
}

// RepairOrder enrolls the buyer of a paid, confirmed order in any course still missing
func (s *ReconciliationService) RepairOrder(ctx context.Context, orderID uint) (*ReconcileResult, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Select("id", "order_code").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, orderLockKey(order.OrderCode))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %s: %w", order.OrderCode, err)
	}
	defer unlock()

	if err := s.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.PaymentStatus != model.PaymentStatusPaid || order.Status != model.OrderStatusConfirmed {
		return nil, apperr.ConflictErr("Only paid, confirmed orders can be repaired")
	}

	result := &ReconcileResult{Status: Reconciled, OrderID: order.ID, OrderCode: order.OrderCode}
	s.enrollItems(ctx, &order, result)
	if result.Enrolled > 0 || result.Failed > 0 {
		s.logger.InfoContext(ctx, "order repaired", slog.String("order_code", order.OrderCode),
			slog.Int("enrolled", result.Enrolled), slog.Int("failed", result.Failed))
	}
	return result, nil
}

// RepairSummary aggregates a repair sweep
type RepairSummary struct {
	Orders   int `json:"orders"`
	Enrolled int `json:"enrolled"`
	Failed   int `json:"failed"`
}

// OrdersMissingEnrollments finds paid, confirmed orders with an item that has no enrollment row
func OrdersMissingEnrollments(db *gorm.DB, limit int) ([]uint, error) {
	var ids []uint
	err := db.Model(&model.Order{}).
		Distinct("orders.id").
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Joins("LEFT JOIN enrollments ON enrollments.user_id = orders.user_id AND enrollments.course_id = order_items.course_id").
		Where("orders.payment_status = ? AND orders.status = ?", model.PaymentStatusPaid, model.OrderStatusConfirmed).
		Where("enrollments.id IS NULL").
		Order("orders.id").
		Limit(limit).
		Pluck("orders.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orders missing enrollments: %w", err)
	}
	return ids, nil
}

// RepairPaidOrders runs RepairOrder over up to limit orders missing enrollments
func (s *ReconciliationService) RepairPaidOrders(ctx context.Context, limit int) (*RepairSummary, error) {
	ids, err := OrdersMissingEnrollments(s.db.WithContext(ctx), limit)
	if err != nil {
		return nil, err
	}
	summary := &RepairSummary{}
	for _, id := range ids {
		res, err := s.RepairOrder(ctx, id)
		if err != nil {
			summary.Failed++
			s.logger.ErrorContext(ctx, "order repair failed", slog.Uint64("order_id", uint64(id)), slog.Any("error", err))
			continue
		}
		summary.Orders++
		summary.Enrolled += res.Enrolled
		summary.Failed += res.Failed
	}
	return summary, nil
}

// SyncSummary aggregates a pending wallet payment sweep
type SyncSummary struct {
	Checked    int `json:"checked"`
	Reconciled int `json:"reconciled"`
	Pending    int `json:"pending"`
	Errors     int `json:"errors"`
}

// SyncPendingWalletPayments asks the wallet about attempts still pending after olderThan
// and reconciles the ones with a final answer
func (s *ReconciliationService) SyncPendingWalletPayments(ctx context.Context, olderThan time.Duration) (*SyncSummary, error) {
	summary := &SyncSummary{}
	wallet, ok := s.registry.Wallet()
	if !ok {
		return summary, nil
	}

	attempts, err := stalePending(s.db.WithContext(ctx), payment.KindWallet, s.now().Add(-olderThan), 50)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++
		q, err := wallet.QueryTransaction(ctx, a.Order.OrderCode)
		if err != nil {
			summary.Errors++
			s.logger.WarnContext(ctx, "wallet status query failed", slog.String("order_code", a.Order.OrderCode), slog.Any("error", err))
			continue
		}
		if q.Pending {
			summary.Pending++
			continue
		}
		outcome := q.Outcome
		outcome.PaymentID = a.ID
		if _, err := s.Reconcile(ctx, &outcome); err != nil {
			summary.Errors++
			s.logger.WarnContext(ctx, "wallet sync reconcile failed", slog.String("order_code", a.Order.OrderCode), slog.Any("error", err))
			continue
		}
		summary.Reconciled++
	}
	return summary, nil
}
