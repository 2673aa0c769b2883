package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CheckoutResult is returned to the buyer after an order is placed
type CheckoutResult struct {
	OrderID        uint            `json:"order_id"`
	OrderCode      string          `json:"order_code"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// OrderService owns order creation and the order lifecycle setters
type OrderService struct {
	db     *gorm.DB
	cart   *CartService
	promos *PromotionService
	logger *slog.Logger
	now    func() time.Time
}

func NewOrderService(db *gorm.DB, cart *CartService, promos *PromotionService, logger *slog.Logger) *OrderService {
	return &OrderService{db: db, cart: cart, promos: promos, logger: logger, now: time.Now}
}

// GenerateOrderCode returns ORD + yymmdd + 10 upper-case hex characters
func GenerateOrderCode(now time.Time) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "ORD" + now.Format("060102") + strings.ToUpper(hex[:10])
}

// Checkout turns the user's current cart into an order
func (s *OrderService) Checkout(ctx context.Context, userID uint, promoCode string) (*CheckoutResult, error) {
	lines, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CreateOrder(ctx, userID, lines, promoCode)
}

// CreateOrder persists header, items and promotion usage atomically.
// The cart is left untouched; it is cleared once the order is paid.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, lines []CartLine, promoCode string) (*CheckoutResult, error) {
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	total := decimal.Zero
	for _, l := range lines {
		if !l.EffectivePrice.IsPositive() {
			return nil, apperr.InvalidErr(
				fmt.Sprintf("Course %q has no valid price", l.Title),
				map[string]string{"course_id": fmt.Sprintf("%d", l.CourseID)})
		}
		total = total.Add(l.EffectivePrice)
	}

	var result *CheckoutResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range lines {
			enrolled, err := isEnrolled(tx, userID, l.CourseID)
			if err != nil {
				return err
			}
			if enrolled {
				return apperr.ConflictErr(fmt.Sprintf("You are already enrolled in %q", l.Title))
			}
		}

		discount := decimal.Zero
		var promo *model.Promotion
		if strings.TrimSpace(promoCode) != "" {
			p, err := s.promos.validate(tx, promoCode, userID, total)
			if err != nil {
				return err
			}
			promo = p
			discount = CalculateDiscount(promo, total)
		}
		final := total.Sub(discount)
		if final.IsNegative() {
			final = decimal.Zero
		}

		order := model.Order{
			OrderCode:      GenerateOrderCode(s.now()),
			UserID:         userID,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    final,
			Status:         model.OrderStatusPending,
			PaymentStatus:  model.PaymentStatusPending,
		}
		if promo != nil {
			order.PromotionID = &promo.ID
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, model.OrderItem{
				OrderID:  order.ID,
				CourseID: l.CourseID,
				Title:    l.Title,
				Price:    l.EffectivePrice,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		if promo != nil {
			if err := RecordUsage(tx, promo.ID, userID, order.ID, discount); err != nil {
				return err
			}
		}

		result = &CheckoutResult{
			OrderID:        order.ID,
			OrderCode:      order.OrderCode,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    final,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_code", result.OrderCode),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("final_amount", result.FinalAmount.String()))
	return result, nil
}

// UpdateStatus sets the order lifecycle status
func UpdateStatus(tx *gorm.DB, orderID uint, status string) error {
	if err := tx.Model(&model.Order{}).Where("id = ?", orderID).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

// UpdatePaymentStatus sets the order payment status
func UpdatePaymentStatus(tx *gorm.DB, orderID uint, status string) error {
	if err := tx.Model(&model.Order{}).Where("id = ?", orderID).Update("payment_status", status).Error; err != nil {
		return fmt.Errorf("failed to update order payment status: %w", err)
	}
	return nil
}

// CancelOrder cancels the owner's unpaid pending order
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	db := s.db.WithContext(ctx)
	order, err := s.load(db, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.ForbiddenErr("You do not own this order")
	}

	res := db.Model(&model.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?", order.ID, model.OrderStatusPending, model.PaymentStatusPending).
		Update("status", model.OrderStatusCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost a race or was never cancellable; report the current state
		current, err := s.load(db, orderID)
		if err != nil {
			return nil, err
		}
		return nil, cancelConflict(current)
	}

	order.Status = model.OrderStatusCancelled
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_code", order.OrderCode))
	return order, nil
}

func cancelConflict(o *model.Order) error {
	switch {
	case o.PaymentStatus == model.PaymentStatusPaid:
		return apperr.ErrOrderAlreadyPaid
	case o.Status == model.OrderStatusCancelled:
		return apperr.ConflictErr("Order is already cancelled")
	case o.Status != model.OrderStatusPending:
		return apperr.ConflictErr(fmt.Sprintf("Order cannot be cancelled in status %s", o.Status))
	default:
		return apperr.ConflictErr(fmt.Sprintf("Order cannot be cancelled with payment status %s", o.PaymentStatus))
	}
}

func (s *OrderService) load(db *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	if err := db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// FindByCode loads an order and its items by order code
func (s *OrderService) FindByCode(ctx context.Context, code string) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Preload("Items").Where("order_code = ?", code).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// Get returns an order with items to its owner or to staff
func (s *OrderService) Get(ctx context.Context, viewer Viewer, id uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("Promotion").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != viewer.UserID && !viewer.Privileged() {
		return nil, apperr.ForbiddenErr("You do not have access to this order")
	}
	return &order, nil
}

// OrderSummary is an order row in a listing
type OrderSummary struct {
	model.Order
	ItemCount int64 `json:"item_count"`
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status        string
	PaymentStatus string
	Page
}

// List returns the viewer's orders, or every order for staff
func (s *OrderService) List(ctx context.Context, viewer Viewer, f OrderFilter) ([]OrderSummary, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if !viewer.Privileged() {
		q = q.Where("user_id = ?", viewer.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []model.Order
	if err := q.Order("created_at DESC, id DESC").Limit(f.limit()).Offset(f.offset()).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return []OrderSummary{}, total, nil
	}

	ids := make([]uint, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var counts []struct {
		OrderID uint
		N       int64
	}
	if err := s.db.WithContext(ctx).Model(&model.OrderItem{}).
		Select("order_id, COUNT(*) AS n").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&counts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count order items: %w", err)
	}
	byOrder := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byOrder[c.OrderID] = c.N
	}

	out := make([]OrderSummary, len(orders))
	for i, o := range orders {
		out[i] = OrderSummary{Order: o, ItemCount: byOrder[o.ID]}
	}
	return out, total, nil
}
