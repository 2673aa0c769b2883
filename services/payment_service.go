package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/services/storage"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/sahilchouksey/course-commerce-api/utils/billvalidation"
	"gorm.io/gorm"
)

// PaymentInstruction is what the buyer needs to complete a payment
type PaymentInstruction struct {
	PaymentID     uint                  `json:"payment_id"`
	OrderCode     string                `json:"order_code"`
	PaymentMethod payment.Kind          `json:"payment_method"`
	PaymentURL    string                `json:"payment_url,omitempty"`
	TransferInfo  *payment.TransferInfo `json:"transfer_info,omitempty"`
	// Paid is set when nothing was owed and the order was settled immediately
	Paid bool `json:"paid,omitempty"`
}

// PaymentService records payment attempts and starts payments with providers
type PaymentService struct {
	db         *gorm.DB
	registry   *payment.Registry
	reconciler *ReconciliationService
	notifier   Notifier
	bills      storage.BillStorage
	logger     *slog.Logger
}

func NewPaymentService(db *gorm.DB, registry *payment.Registry, reconciler *ReconciliationService,
	notifier Notifier, bills storage.BillStorage, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		db:         db,
		registry:   registry,
		reconciler: reconciler,
		notifier:   notifier,
		bills:      bills,
		logger:     logger,
	}
}

func (s *PaymentService) payableOrder(db *gorm.DB, userID, orderID uint) (*model.Order, error) {
	var order model.Order
	if err := db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != userID {
		return nil, apperr.ForbiddenErr("You do not own this order")
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, apperr.ErrOrderAlreadyPaid
	}
	if order.Status != model.OrderStatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("Order is %s and cannot be paid", order.Status))
	}
	return &order, nil
}

// CreatePayment records an attempt for the order and asks the provider how to pay.
// The provider is called outside any transaction.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, orderID uint, kind payment.Kind, clientIP string) (*PaymentInstruction, error) {
	provider, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	order, err := s.payableOrder(db, userID, orderID)
	if err != nil {
		return nil, err
	}

	var attempt *model.Payment
	err = db.Transaction(func(tx *gorm.DB) error {
		p, err := CreateAttempt(tx, order, kind)
		if err != nil {
			return err
		}
		attempt = p
		return tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("payment_method", string(kind)).Error
	})
	if err != nil {
		return nil, err
	}

	out := &PaymentInstruction{PaymentID: attempt.ID, OrderCode: order.OrderCode, PaymentMethod: kind}

	if order.FinalAmount.IsZero() {
		res, err := s.reconciler.Reconcile(ctx, &payment.Outcome{
			Kind:         kind,
			OrderCode:    order.OrderCode,
			Success:      true,
			Amount:       order.FinalAmount,
			ResponseCode: "0",
			Message:      "Nothing to pay after discount",
			PaymentID:    attempt.ID,
		})
		if err != nil {
			return nil, err
		}
		out.Paid = res.Status != ReconcileFailed
		return out, nil
	}

	instr, err := provider.BuildPaymentRequest(ctx, payment.PaymentRequest{
		OrderCode: order.OrderCode,
		Amount:    order.FinalAmount,
		OrderInfo: fmt.Sprintf("Payment for order %s", order.OrderCode),
		ClientIP:  clientIP,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment request failed",
			slog.String("order_code", order.OrderCode), slog.String("method", kind.String()), slog.Any("error", err))
		return nil, err
	}
	out.PaymentURL = instr.PaymentURL
	out.TransferInfo = instr.Transfer
	return out, nil
}

// CreateAttempt reuses the newest pending attempt for the same provider or inserts a new one.
// A new attempt after a failure puts the order back to pending; failed rows stay untouched.
func CreateAttempt(tx *gorm.DB, order *model.Order, kind payment.Kind) (*model.Payment, error) {
	var existing model.Payment
	err := tx.Where("order_id = ? AND payment_method = ? AND status = ?", order.ID, string(kind), model.PaymentPending).
		Order("created_at DESC, id DESC").
		First(&existing).Error
	switch {
	case err == nil:
		if !existing.Amount.Equal(order.FinalAmount) {
			if err := tx.Model(&existing).Update("amount", order.FinalAmount).Error; err != nil {
				return nil, fmt.Errorf("failed to refresh payment amount: %w", err)
			}
		}
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load payment attempt: %w", err)
	}

	attempt := &model.Payment{
		OrderID:         order.ID,
		TransactionCode: order.OrderCode,
		PaymentMethod:   string(kind),
		Amount:          order.FinalAmount,
		Status:          model.PaymentPending,
	}
	if err := tx.Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment attempt: %w", err)
	}

	if err := tx.Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", order.ID, model.PaymentStatusFailed).
		Update("payment_status", model.PaymentStatusPending).Error; err != nil {
		return nil, fmt.Errorf("failed to reopen order payment: %w", err)
	}
	return attempt, nil
}

// ManualTransferInput is a buyer's claim of a completed transfer
type ManualTransferInput struct {
	OrderID       uint
	TransferPhone string
	TransferName  string
	Bill          []byte
}

// SubmitManualTransfer validates and stores the bill, records it on the manual
// attempt and alerts staff to verify it
func (s *PaymentService) SubmitManualTransfer(ctx context.Context, userID uint, in ManualTransferInput) (*model.Payment, error) {
	db := s.db.WithContext(ctx)
	order, err := s.payableOrder(db, userID, in.OrderID)
	if err != nil {
		return nil, err
	}

	bill, err := billvalidation.Validate(in.Bill, billvalidation.DefaultLimits)
	if err != nil {
		var ve *billvalidation.ValidationError
		if errors.As(err, &ve) {
			return nil, apperr.InvalidErr(ve.Reason, map[string]string{"bill_image": ve.Reason})
		}
		return nil, err
	}

	key := fmt.Sprintf("bills/%s/%s%s", order.OrderCode, uuid.NewString(), bill.Extension)
	url, err := s.bills.Upload(ctx, key, bytes.NewReader(in.Bill), bill.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store bill: %w", err)
	}

	attempt, err := s.SaveManualTransfer(ctx, order, in.TransferPhone, in.TransferName, url)
	if err != nil {
		return nil, err
	}

	err = s.notifier.NotifyRoles(ctx, []string{model.RoleAdmin, model.RoleStaff}, CreateNotificationRequest{
		Type:    model.NotificationTypePayment,
		Title:   "Transfer awaiting verification",
		Message: fmt.Sprintf("Order %s: %s (%s) reported a transfer of %s.", order.OrderCode, in.TransferName, in.TransferPhone, order.FinalAmount.StringFixed(0)),
		Link:    "/admin/payments/pending-transfers",
		Metadata: &model.NotificationMetadata{
			OrderID:   order.ID,
			OrderCode: order.OrderCode,
			PaymentID: attempt.ID,
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "staff notification failed", slog.String("order_code", order.OrderCode), slog.Any("error", err))
	}
	return attempt, nil
}

// SaveManualTransfer records transfer details on the order's manual attempt
func (s *PaymentService) SaveManualTransfer(ctx context.Context, order *model.Order, phone, name, billURL string) (*model.Payment, error) {
	var attempt *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := CreateAttempt(tx, order, payment.KindManualTransfer)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Updates(map[string]interface{}{
			"transfer_phone": phone,
			"transfer_name":  name,
			"bill_image_url": billURL,
		}).Error; err != nil {
			return fmt.Errorf("failed to save transfer details: %w", err)
		}
		p.TransferPhone, p.TransferName, p.BillImageURL = phone, name, billURL

		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("payment_method", string(payment.KindManualTransfer)).Error; err != nil {
			return fmt.Errorf("failed to update order payment method: %w", err)
		}
		attempt = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "manual transfer submitted",
		slog.String("order_code", order.OrderCode), slog.Uint64("payment_id", uint64(attempt.ID)))
	return attempt, nil
}

// LatestForOrder returns the most recent attempt for an order the viewer can see
func (s *PaymentService) LatestForOrder(ctx context.Context, viewer Viewer, orderID uint) (*model.Payment, error) {
	var order model.Order
	db := s.db.WithContext(ctx)
	if err := db.Select("id", "user_id").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != viewer.UserID && !viewer.Privileged() {
		return nil, apperr.ForbiddenErr("You do not have access to this order")
	}

	var p model.Payment
	if err := db.Where("order_id = ?", orderID).Order("created_at DESC, id DESC").First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("No payment found for this order")
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

func (s *PaymentService) FindByID(ctx context.Context, id uint) (*model.Payment, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).Preload("Order").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Payment not found")
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

// History lists the user's payment attempts, newest first
func (s *PaymentService) History(ctx context.Context, userID uint, page Page) ([]model.Payment, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Payment{}).
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("orders.user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}
	var payments []model.Payment
	if err := q.Preload("Order").Order("payments.created_at DESC, payments.id DESC").
		Limit(page.limit()).Offset(page.offset()).Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

// PaymentFilter narrows the staff payment listing
type PaymentFilter struct {
	Status string
	Method string
	Page
}

func (s *PaymentService) List(ctx context.Context, f PaymentFilter) ([]model.Payment, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Payment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Method != "" {
		q = q.Where("payment_method = ?", f.Method)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}
	var payments []model.Payment
	if err := q.Preload("Order").Order("created_at DESC, id DESC").
		Limit(f.limit()).Offset(f.offset()).Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

// PendingManualTransfers lists submitted transfers waiting for staff, oldest first
func (s *PaymentService) PendingManualTransfers(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).Preload("Order").
		Where("payment_method = ? AND status = ? AND bill_image_url <> ''", string(payment.KindManualTransfer), model.PaymentPending).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	return payments, nil
}

// stalePending returns pending attempts of kind created before the cutoff, with their order
func stalePending(db *gorm.DB, kind payment.Kind, before time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := db.Preload("Order").
		Where("payment_method = ? AND status = ? AND created_at < ?", string(kind), model.PaymentPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}
