package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromotionService validates discount codes and records their use
type PromotionService struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewPromotionService(db *gorm.DB, logger *slog.Logger) *PromotionService {
	return &PromotionService{db: db, logger: logger, now: time.Now}
}

// NormalizeCode trims and upper-cases a promotion code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that code can be applied by userID to an order of orderAmount
func (s *PromotionService) Validate(ctx context.Context, code string, userID uint, orderAmount decimal.Decimal) (*model.Promotion, error) {
	return s.validate(s.db.WithContext(ctx), code, userID, orderAmount)
}

func (s *PromotionService) validate(tx *gorm.DB, code string, userID uint, orderAmount decimal.Decimal) (*model.Promotion, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperr.InvalidErr("Promotion code is required", map[string]string{"code": "is required"})
	}

	var promo model.Promotion
	if err := tx.Where("code = ?", code).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidErr("Promotion code does not exist", nil)
		}
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}

	if promo.Status != model.PromotionActive {
		return nil, apperr.InvalidErr("Promotion code is not active", nil)
	}
	now := s.now()
	if now.Before(promo.StartDate) {
		return nil, apperr.InvalidErr("Promotion has not started yet", nil)
	}
	if now.After(promo.EndDate) {
		return nil, apperr.InvalidErr("Promotion has expired", nil)
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, apperr.InvalidErr("Promotion usage limit has been reached", nil)
	}
	if orderAmount.LessThan(promo.MinOrderValue) {
		return nil, apperr.InvalidErr(
			fmt.Sprintf("Order must be at least %s to use this promotion", promo.MinOrderValue.StringFixed(0)), nil)
	}

	var used int64
	if err := tx.Model(&model.PromotionUsage{}).
		Where("promotion_id = ? AND user_id = ?", promo.ID, userID).
		Count(&used).Error; err != nil {
		return nil, fmt.Errorf("failed to count promotion usage: %w", err)
	}
	limit := promo.UserUsageLimit
	if limit <= 0 {
		limit = 1
	}
	if used >= int64(limit) {
		return nil, apperr.InvalidErr("You have already used this promotion", nil)
	}
	return &promo, nil
}

// CalculateDiscount is the discount promo gives on amount, rounded to 2 decimals
// and never exceeding amount
func CalculateDiscount(promo *model.Promotion, amount decimal.Decimal) decimal.Decimal {
	if promo == nil || !amount.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case model.DiscountPercentage:
		discount = amount.Mul(promo.DiscountValue).Div(hundred)
		if promo.MaxDiscount.Valid && discount.GreaterThan(promo.MaxDiscount.Decimal) {
			discount = promo.MaxDiscount.Decimal
		}
	case model.DiscountFixed:
		discount = promo.DiscountValue
	default:
		return decimal.Zero
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(amount) {
		return amount
	}
	return discount
}

// RecordUsage appends a usage row and bumps the global counter inside tx.
// The counter only moves while it is below the limit, so concurrent checkouts
// cannot overshoot it.
func RecordUsage(tx *gorm.DB, promotionID, userID, orderID uint, discount decimal.Decimal) error {
	res := tx.Model(&model.Promotion{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", promotionID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment promotion usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidErr("Promotion usage limit has been reached", nil)
	}

	usage := model.PromotionUsage{
		PromotionID:    promotionID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: discount,
	}
	if err := tx.Create(&usage).Error; err != nil {
		return fmt.Errorf("failed to record promotion usage: %w", err)
	}
	return nil
}

// PromotionInput carries the admin-editable promotion fields
type PromotionInput struct {
	Code           string              `json:"code" validate:"required,min=3,max=50"`
	Name           string              `json:"name" validate:"required,max=255"`
	Description    string              `json:"description"`
	DiscountType   string              `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal     `json:"discount_value"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	MinOrderValue  decimal.Decimal     `json:"min_order_value"`
	UsageLimit     *int                `json:"usage_limit" validate:"omitempty,gte=1"`
	UserUsageLimit int                 `json:"user_usage_limit" validate:"omitempty,gte=1"`
	StartDate      time.Time           `json:"start_date" validate:"required"`
	EndDate        time.Time           `json:"end_date" validate:"required,gtfield=StartDate"`
	Status         string              `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (in PromotionInput) check() error {
	fields := map[string]string{}
	if !in.DiscountValue.IsPositive() {
		fields["discount_value"] = "must be greater than 0"
	}
	if in.DiscountType == model.DiscountPercentage && in.DiscountValue.GreaterThan(hundred) {
		fields["discount_value"] = "must be at most 100 for percentage discounts"
	}
	if in.MinOrderValue.IsNegative() {
		fields["min_order_value"] = "must not be negative"
	}
	if in.MaxDiscount.Valid && !in.MaxDiscount.Decimal.IsPositive() {
		fields["max_discount"] = "must be greater than 0"
	}
	if len(fields) > 0 {
		return apperr.InvalidErr("Invalid promotion", fields)
	}
	return nil
}

func (in PromotionInput) apply(p *model.Promotion) {
	p.Code = NormalizeCode(in.Code)
	p.Name = in.Name
	p.Description = in.Description
	p.DiscountType = in.DiscountType
	p.DiscountValue = in.DiscountValue
	p.MaxDiscount = in.MaxDiscount
	p.MinOrderValue = in.MinOrderValue
	p.UsageLimit = in.UsageLimit
	p.UserUsageLimit = in.UserUsageLimit
	if p.UserUsageLimit <= 0 {
		p.UserUsageLimit = 1
	}
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Status = in.Status
	if p.Status == "" {
		p.Status = model.PromotionActive
	}
}

// Create adds a promotion; codes are unique case-insensitively
func (s *PromotionService) Create(ctx context.Context, createdBy uint, in PromotionInput) (*model.Promotion, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	promo := &model.Promotion{CreatedBy: &createdBy}
	in.apply(promo)

	db := s.db.WithContext(ctx)
	if err := s.ensureCodeFree(db, promo.Code, 0); err != nil {
		return nil, err
	}
	if err := db.Create(promo).Error; err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}
	s.logger.InfoContext(ctx, "promotion created", slog.String("code", promo.Code), slog.Uint64("promotion_id", uint64(promo.ID)))
	return promo, nil
}

func (s *PromotionService) ensureCodeFree(db *gorm.DB, code string, exceptID uint) error {
	var count int64
	q := db.Model(&model.Promotion{}).Where("code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check promotion code: %w", err)
	}
	if count > 0 {
		return apperr.ConflictErr("Promotion code already exists")
	}
	return nil
}

// Update replaces the editable fields; usage counters are left alone
func (s *PromotionService) Update(ctx context.Context, id uint, in PromotionInput) (*model.Promotion, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(promo)

	db := s.db.WithContext(ctx)
	if err := s.ensureCodeFree(db, promo.Code, promo.ID); err != nil {
		return nil, err
	}
	if err := db.Save(promo).Error; err != nil {
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}
	return promo, nil
}

// Delete removes a promotion that has never been used; used ones are deactivated instead
func (s *PromotionService) Delete(ctx context.Context, id uint) error {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	if promo.UsageCount > 0 {
		return db.Model(promo).Update("status", model.PromotionInactive).Error
	}
	if err := db.Delete(promo).Error; err != nil {
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	return nil
}

func (s *PromotionService) Get(ctx context.Context, id uint) (*model.Promotion, error) {
	var promo model.Promotion
	if err := s.db.WithContext(ctx).First(&promo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Promotion not found")
		}
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}
	return &promo, nil
}

// List pages through promotions, optionally by status
func (s *PromotionService) List(ctx context.Context, status string, page Page) ([]model.Promotion, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Promotion{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count promotions: %w", err)
	}
	var promos []model.Promotion
	if err := q.Order("created_at DESC").Limit(page.limit()).Offset(page.offset()).Find(&promos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promos, total, nil
}

// ListActive returns promotions usable right now
func (s *PromotionService) ListActive(ctx context.Context) ([]model.Promotion, error) {
	now := s.now()
	var promos []model.Promotion
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", model.PromotionActive, now, now).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		Order("end_date ASC").
		Find(&promos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active promotions: %w", err)
	}
	return promos, nil
}

// PromotionStats summarises a promotion's use
type PromotionStats struct {
	TotalUses     int64           `json:"total_uses"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	UniqueUsers   int64           `json:"unique_users"`
}

func (s *PromotionService) Stats(ctx context.Context, id uint) (*PromotionStats, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	stats := &PromotionStats{TotalDiscount: decimal.Zero}
	var usages []model.PromotionUsage
	if err := db.Where("promotion_id = ?", id).Find(&usages).Error; err != nil {
		return nil, fmt.Errorf("failed to load promotion usage: %w", err)
	}
	users := make(map[uint]struct{}, len(usages))
	for _, u := range usages {
		stats.TotalDiscount = stats.TotalDiscount.Add(u.DiscountAmount)
		users[u.UserID] = struct{}{}
	}
	stats.TotalUses = int64(len(usages))
	stats.UniqueUsers = int64(len(users))
	return stats, nil
}
