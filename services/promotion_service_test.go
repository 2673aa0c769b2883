package services

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDiscount(t *testing.T) {
	pct := &model.Promotion{DiscountType: model.DiscountPercentage, DiscountValue: dec("10")}
	capped := &model.Promotion{
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("50"),
		MaxDiscount:   decimal.NewNullDecimal(dec("100000")),
	}
	fixed := &model.Promotion{DiscountType: model.DiscountFixed, DiscountValue: dec("150000")}

	cases := []struct {
		name   string
		promo  *model.Promotion
		amount string
		want   string
	}{
		{"percentage", pct, "500000", "50000"},
		{"percentage rounds to cents", pct, "333.33", "33.33"},
		{"percentage capped", capped, "1000000", "100000"},
		{"fixed", fixed, "500000", "150000"},
		{"fixed never exceeds amount", fixed, "100000", "100000"},
		{"no promotion", nil, "100000", "0"},
		{"zero amount", pct, "0", "0"},
	}
	for _, tc := range cases {
		got := CalculateDiscount(tc.promo, dec(tc.amount))
		assert.True(t, got.Equal(dec(tc.want)), "%s: got %s want %s", tc.name, got, tc.want)
	}
}

func TestPromotionValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	limit := 1

	f.promotion(t, "WELCOME", model.DiscountPercentage, "10", nil)
	f.promotion(t, "OFF", model.DiscountFixed, "1000", func(p *model.Promotion) { p.Status = model.PromotionInactive })
	f.promotion(t, "SOON", model.DiscountFixed, "1000", func(p *model.Promotion) {
		p.StartDate = time.Now().Add(time.Hour)
		p.EndDate = time.Now().Add(2 * time.Hour)
	})
	f.promotion(t, "OLD", model.DiscountFixed, "1000", func(p *model.Promotion) {
		p.StartDate = time.Now().Add(-2 * time.Hour)
		p.EndDate = time.Now().Add(-time.Hour)
	})
	f.promotion(t, "USEDUP", model.DiscountFixed, "1000", func(p *model.Promotion) {
		p.UsageLimit = &limit
		p.UsageCount = 1
	})
	f.promotion(t, "BIG", model.DiscountFixed, "1000", func(p *model.Promotion) { p.MinOrderValue = dec("1000000") })

	promo, err := f.promos.Validate(ctx, " welcome ", u.ID, dec("500000"))
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", promo.Code)

	for _, code := range []string{"MISSING", "OFF", "SOON", "OLD", "USEDUP", "BIG", ""} {
		_, err := f.promos.Validate(ctx, code, u.ID, dec("500000"))
		assert.Equal(t, apperr.Invalid, apperr.KindOf(err), "code %q", code)
	}
}

func TestPromotionValidate_PerUserLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@example.com", model.RoleUser)
	promo := f.promotion(t, "ONCE", model.DiscountFixed, "1000", nil)

	require.NoError(t, RecordUsage(f.db, promo.ID, u.ID, 1, dec("1000")))

	_, err := f.promos.Validate(ctx, "ONCE", u.ID, dec("500000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")

	var reloaded model.Promotion
	require.NoError(t, f.db.First(&reloaded, promo.ID).Error)
	assert.Equal(t, 1, reloaded.UsageCount)
}

func TestRecordUsage_StopsAtLimit(t *testing.T) {
	f := newFixture(t)
	limit := 1
	promo := f.promotion(t, "ONE", model.DiscountFixed, "1000", func(p *model.Promotion) { p.UsageLimit = &limit })

	require.NoError(t, RecordUsage(f.db, promo.ID, 1, 1, dec("1000")))
	err := RecordUsage(f.db, promo.ID, 2, 2, dec("1000"))
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	var usages int64
	require.NoError(t, f.db.Model(&model.PromotionUsage{}).Where("promotion_id = ?", promo.ID).Count(&usages).Error)
	assert.EqualValues(t, 1, usages)
}

func TestPromotionAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin)

	in := PromotionInput{
		Code:          "spring",
		Name:          "Spring sale",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("20"),
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(24 * time.Hour),
	}
	promo, err := f.promos.Create(ctx, admin.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "SPRING", promo.Code)
	assert.Equal(t, 1, promo.UserUsageLimit)

	_, err = f.promos.Create(ctx, admin.ID, in)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	bad := in
	bad.Code = "TOOMUCH"
	bad.DiscountValue = dec("120")
	_, err = f.promos.Create(ctx, admin.ID, bad)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	in.Name = "Spring sale extended"
	updated, err := f.promos.Update(ctx, promo.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Spring sale extended", updated.Name)

	active, err := f.promos.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	all, total, err := f.promos.List(ctx, "", Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, all, 1)

	require.NoError(t, RecordUsage(f.db, promo.ID, admin.ID, 1, dec("5000")))
	require.NoError(t, RecordUsage(f.db, promo.ID, admin.ID, 2, dec("2500")))
	stats, err := f.promos.Stats(ctx, promo.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalUses)
	assert.EqualValues(t, 1, stats.UniqueUsers)
	assert.True(t, stats.TotalDiscount.Equal(dec("7500")))

	// used promotions are deactivated rather than deleted
	require.NoError(t, f.promos.Delete(ctx, promo.ID))
	kept, err := f.promos.Get(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionInactive, kept.Status)

	_, err = f.promos.Get(ctx, 4242)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
