package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGenerateOrderCode(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD250307[0-9A-F]{10}$`)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := GenerateOrderCode(now)
		require.Regexp(t, pattern, code)
		require.False(t, seen[code], "duplicate order code %s", code)
		seen[code] = true
	}
}

func TestCheckout_WithPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	b := f.course(t, "B", "200000", 0)
	f.promotion(t, "TEN", model.DiscountPercentage, "10", nil)

	res := f.checkout(t, u.ID, "ten", a, b)
	assert.True(t, res.TotalAmount.Equal(dec("500000")))
	assert.True(t, res.DiscountAmount.Equal(dec("50000")))
	assert.True(t, res.FinalAmount.Equal(dec("450000")))

	order := f.order(t, res.OrderID)
	assert.Equal(t, res.OrderCode, order.OrderCode)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	require.NotNil(t, order.PromotionID)
	require.Len(t, order.Items, 2)

	var usage model.PromotionUsage
	require.NoError(t, f.db.Where("order_id = ?", order.ID).First(&usage).Error)
	assert.True(t, usage.DiscountAmount.Equal(dec("50000")))

	// the cart stays until the order is paid
	n, err := f.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", model.RoleUser)
	_, err := f.orders.Checkout(context.Background(), u.ID, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCreateOrder_InvalidPromotionWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	_, err := f.cart.AddItem(ctx, u.ID, a.ID)
	require.NoError(t, err)

	_, err = f.orders.Checkout(ctx, u.ID, "NOPE")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	var orders, items int64
	f.db.Model(&model.Order{}).Count(&orders)
	f.db.Model(&model.OrderItem{}).Count(&items)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestCheckout_FailureAfterHeaderRollsBack(t *testing.T) {
	for _, table := range []string{"order_items", "promotion_usage"} {
		t.Run(table, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			u := f.user(t, "buyer@example.com", model.RoleUser)
			a := f.course(t, "A", "300000", 0)
			promo := f.promotion(t, "TEN", model.DiscountPercentage, "10", nil)
			_, err := f.cart.AddItem(ctx, u.ID, a.ID)
			require.NoError(t, err)

			failing := table
			require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_insert", func(tx *gorm.DB) {
				if tx.Statement.Table == failing {
					_ = tx.AddError(errors.New("insert rejected"))
				}
			}))

			_, err = f.orders.Checkout(ctx, u.ID, "TEN")
			require.Error(t, err)

			var orders, items, usages, cartItems int64
			f.db.Model(&model.Order{}).Count(&orders)
			f.db.Model(&model.OrderItem{}).Count(&items)
			f.db.Model(&model.PromotionUsage{}).Count(&usages)
			f.db.Model(&model.CartItem{}).Where("user_id = ?", u.ID).Count(&cartItems)
			assert.Zero(t, orders)
			assert.Zero(t, items)
			assert.Zero(t, usages)
			assert.EqualValues(t, 1, cartItems)

			var reloaded model.Promotion
			require.NoError(t, f.db.First(&reloaded, promo.ID).Error)
			assert.Zero(t, reloaded.UsageCount)
		})
	}
}

func TestCheckout_PerUserPromotionLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	b := f.course(t, "B", "200000", 0)
	c := f.course(t, "C", "100000", 0)
	f.promotion(t, "TWICE", model.DiscountFixed, "10000", func(p *model.Promotion) { p.UserUsageLimit = 2 })

	f.checkout(t, u.ID, "TWICE", a)
	f.checkout(t, u.ID, "TWICE", b)

	_, err := f.cart.AddItem(ctx, u.ID, c.ID)
	require.NoError(t, err)
	_, err = f.orders.Checkout(ctx, u.ID, "TWICE")
	require.Error(t, err)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "already used")

	var orders, usages int64
	f.db.Model(&model.Order{}).Where("user_id = ?", u.ID).Count(&orders)
	f.db.Model(&model.PromotionUsage{}).Where("user_id = ?", u.ID).Count(&usages)
	assert.EqualValues(t, 2, orders)
	assert.EqualValues(t, 2, usages)

	// the same cart still checks out without the code
	res, err := f.orders.Checkout(ctx, u.ID, "")
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.IsZero())
}

func TestCreateOrder_RejectsUnpricedItem(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", model.RoleUser)
	lines := []CartLine{
		{CourseID: 1, Title: "Priced", EffectivePrice: dec("1000")},
		{CourseID: 2, Title: "Broken", EffectivePrice: dec("0")},
	}
	_, err := f.orders.CreateOrder(context.Background(), u.ID, lines, "")
	require.Error(t, err)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Broken")
}

func TestCreateOrder_RejectsOwnedCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	_, err := f.enrollments.Create(ctx, u.ID, a.ID, nil)
	require.NoError(t, err)

	lines := []CartLine{{CourseID: a.ID, Title: a.Title, EffectivePrice: a.Price}}
	_, err = f.orders.CreateOrder(ctx, u.ID, lines, "")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	other := f.user(t, "other@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	res := f.checkout(t, u.ID, "", a)

	_, err := f.orders.CancelOrder(ctx, other.ID, res.OrderID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	order, err := f.orders.CancelOrder(ctx, u.ID, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	_, err = f.orders.CancelOrder(ctx, u.ID, res.OrderID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = f.orders.CancelOrder(ctx, u.ID, 9999)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCancelOrder_PaidIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	a := f.course(t, "A", "300000", 0)
	res := f.checkout(t, u.ID, "", a)
	require.NoError(t, UpdatePaymentStatus(f.db, res.OrderID, model.PaymentStatusPaid))

	_, err := f.orders.CancelOrder(ctx, u.ID, res.OrderID)
	assert.ErrorIs(t, err, apperr.ErrOrderAlreadyPaid)
}

func TestOrderListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	other := f.user(t, "other@example.com", model.RoleUser)
	staff := f.user(t, "staff@example.com", model.RoleStaff)
	a := f.course(t, "A", "300000", 0)
	b := f.course(t, "B", "100000", 0)

	mine := f.checkout(t, u.ID, "", a, b)
	f.checkout(t, other.ID, "", a)

	list, total, err := f.orders.List(ctx, Viewer{UserID: u.ID, Role: model.RoleUser}, OrderFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.EqualValues(t, 2, list[0].ItemCount)

	_, total, err = f.orders.List(ctx, Viewer{UserID: staff.ID, Role: model.RoleStaff}, OrderFilter{Status: model.OrderStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, err = f.orders.Get(ctx, Viewer{UserID: other.ID, Role: model.RoleUser}, mine.OrderID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	got, err := f.orders.Get(ctx, Viewer{UserID: staff.ID, Role: model.RoleStaff}, mine.OrderID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	byCode, err := f.orders.FindByCode(ctx, mine.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, mine.OrderID, byCode.ID)
}
