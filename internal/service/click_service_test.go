package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/ledger/memory"
	"github.com/fairyhunter13/coupon-ledger/internal/metrics"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// mockClickIncrementer is a mock implementation of ClickIncrementer.
type mockClickIncrementer struct {
	incrementFn func(ctx context.Context, couponID string) error
}

func (m *mockClickIncrementer) IncrementClicks(ctx context.Context, couponID string) error {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, couponID)
	}
	return nil
}

func TestClickService_RecordClick_Success(t *testing.T) {
	mem := memory.NewStore()
	mem.PutCoupon(model.Coupon{ID: "c1", ShopID: "shop", RemainingUses: 3})
	svc := NewClickService(mem)
	before := testutil.ToFloat64(metrics.ClicksTotal)

	assert.True(t, svc.RecordClick(context.Background(), "c1"))
	assert.True(t, svc.RecordClick(context.Background(), "c1"))

	coupon, ok := mem.Coupon("c1")
	require.True(t, ok)
	assert.Equal(t, int64(2), coupon.Clicks)
	assert.Equal(t, 3, coupon.RemainingUses, "clicks never consume uses")
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ClicksTotal))
}

func TestClickService_RecordClick_UnknownCoupon(t *testing.T) {
	svc := NewClickService(memory.NewStore())
	before := testutil.ToFloat64(metrics.ClickFailuresTotal)

	assert.False(t, svc.RecordClick(context.Background(), "missing"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ClickFailuresTotal))
}

func TestClickService_RecordClick_EmptyID(t *testing.T) {
	called := false
	svc := NewClickService(&mockClickIncrementer{
		incrementFn: func(ctx context.Context, couponID string) error {
			called = true
			return nil
		},
	})

	assert.False(t, svc.RecordClick(context.Background(), " "))
	assert.False(t, called)
}

func TestClickService_RecordClick_StoreErrorSwallowed(t *testing.T) {
	svc := NewClickService(&mockClickIncrementer{
		incrementFn: func(ctx context.Context, couponID string) error {
			return errors.New("connection reset")
		},
	})

	assert.False(t, svc.RecordClick(context.Background(), "c1"))
}

func TestClickService_RecordClick_DoesNotConflictWithRedemption(t *testing.T) {
	mem := memory.NewStore()
	mem.PutCoupon(model.Coupon{ID: "c1", ShopID: "shop", RemainingUses: 1})
	ctx := context.Background()

	sess, err := mem.Begin(ctx)
	require.NoError(t, err)
	_, err = sess.GetCoupon(ctx, "c1")
	require.NoError(t, err)

	assert.True(t, NewClickService(mem).RecordClick(ctx, "c1"))

	require.NoError(t, sess.Apply(ctx, ledger.DecrementUses{CouponID: "c1"}))
	require.NoError(t, sess.Commit(ctx))
}
