package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one cart row priced at the course's current price
type CartLine struct {
	ItemID         uint                `json:"id"`
	CourseID       uint                `json:"course_id"`
	Title          string              `json:"title"`
	Slug           string              `json:"slug"`
	ThumbnailURL   string              `json:"thumbnail_url,omitempty"`
	Price          decimal.Decimal     `json:"price"`
	DiscountPrice  decimal.NullDecimal `json:"discount_price"`
	EffectivePrice decimal.Decimal     `json:"effective_price"`
}

// CartView is the cart as shown to its owner
type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CartService manages per-user pending course selections
type CartService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCartService(db *gorm.DB, logger *slog.Logger) *CartService {
	return &CartService{db: db, logger: logger}
}

// Snapshot returns the user's cart lines at current prices
func (s *CartService) Snapshot(ctx context.Context, userID uint) ([]CartLine, error) {
	var items []model.CartItem
	if err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		// course was deleted after it was carted
		if item.Course.ID == 0 {
			continue
		}
		lines = append(lines, CartLine{
			ItemID:         item.ID,
			CourseID:       item.CourseID,
			Title:          item.Course.Title,
			Slug:           item.Course.Slug,
			ThumbnailURL:   item.Course.ThumbnailURL,
			Price:          item.Course.Price,
			DiscountPrice:  item.Course.DiscountPrice,
			EffectivePrice: item.Course.EffectivePrice(),
		})
	}
	return lines, nil
}

// CartTotal sums effective prices
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.EffectivePrice)
	}
	return total
}

// GetCart returns the cart with its total
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	lines, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CartView{Items: lines, Total: CartTotal(lines), Count: len(lines)}, nil
}

// AddItem puts an active, paid course the user does not own into the cart
func (s *CartService) AddItem(ctx context.Context, userID, courseID uint) (*model.CartItem, error) {
	db := s.db.WithContext(ctx)

	var course model.Course
	if err := db.Where("id = ? AND status = ?", courseID, model.CourseStatusActive).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Course not found")
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if course.IsFree() {
		return nil, apperr.InvalidErr("Free courses can be enrolled directly", nil)
	}

	enrolled, err := isEnrolled(db, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, apperr.ErrAlreadyEnrolled
	}

	item := &model.CartItem{UserID: userID, CourseID: courseID}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ConflictErr("Course is already in your cart")
	}
	item.Course = course
	return item, nil
}

// RemoveItem deletes one of the user's cart rows
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&model.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundErr("Cart item not found")
	}
	return nil
}

// Clear empties the user's cart
func (s *CartService) Clear(ctx context.Context, userID uint) error {
	return ClearCartTx(s.db.WithContext(ctx), userID)
}

// ClearCartTx empties a cart using the caller's transaction
func ClearCartTx(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Count returns the number of cart rows
func (s *CartService) Count(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.CartItem{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cart: %w", err)
	}
	return n, nil
}
