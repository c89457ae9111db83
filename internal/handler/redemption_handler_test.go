package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coupon-ledger/internal/auth"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/internal/service"
	"github.com/fairyhunter13/coupon-ledger/internal/validator"
)

const testSecret = "test-secret"

// mockRedemptionService is a mock implementation of RedemptionServiceInterface.
type mockRedemptionService struct {
	redeemFn  func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error)
	historyFn func(ctx context.Context, accountID, couponID string) ([]model.Redemption, error)
}

func (m *mockRedemptionService) Redeem(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, in)
	}
	return &service.RedeemResult{Message: service.RedeemedMessage}, nil
}

func (m *mockRedemptionService) History(ctx context.Context, accountID, couponID string) ([]model.Redemption, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, accountID, couponID)
	}
	return []model.Redemption{}, nil
}

func setupRedemptionTestApp(mockSvc *mockRedemptionService) *fiber.App {
	app := fiber.New()
	h := NewRedemptionHandler(mockSvc, validator.New())
	api := app.Group("/api", auth.RequireAuth(auth.NewJWTManager(testSecret, "", time.Hour)))
	api.Post("/redemptions", h.Redeem)
	api.Get("/redemptions", h.History)
	return app
}

func bearer(t *testing.T, accountID string) string {
	t.Helper()
	token, err := auth.NewJWTManager(testSecret, "", time.Hour).Generate(accountID)
	require.NoError(t, err)
	return "Bearer " + token
}

func redeemRequest(t *testing.T, body string, accountID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/redemptions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("Authorization", bearer(t, accountID))
	}
	return req
}

func TestRedeem_Success(t *testing.T) {
	var captured service.RedeemInput
	mockSvc := &mockRedemptionService{
		redeemFn: func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
			captured = in
			return &service.RedeemResult{
				Message:             service.RedeemedMessage,
				RedemptionID:        "r1",
				CustomerReward:      3,
				AffiliateCommission: 7,
				ReferrerBonusPaid:   true,
			}, nil
		},
	}
	app := setupRedemptionTestApp(mockSvc)

	resp, err := app.Test(redeemRequest(t, `{"coupon_id": "c1", "affiliate_id": "bob"}`, "alice"))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", captured.AccountID, "caller comes from the token")
	assert.Equal(t, "c1", captured.CouponID)
	require.NotNil(t, captured.AffiliateID)
	assert.Equal(t, "bob", *captured.AffiliateID)

	var result model.RedeemResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "Coupon redeemed successfully", result.Message)
	assert.Equal(t, "r1", result.RedemptionID)
	assert.Equal(t, int64(3), result.CustomerReward)
	assert.Equal(t, int64(7), result.AffiliateCommission)
	assert.True(t, result.ReferrerBonusPaid)
}

func TestRedeem_BodyCannotOverrideCaller(t *testing.T) {
	var captured service.RedeemInput
	mockSvc := &mockRedemptionService{
		redeemFn: func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
			captured = in
			return &service.RedeemResult{}, nil
		},
	}
	app := setupRedemptionTestApp(mockSvc)

	resp, err := app.Test(redeemRequest(t, `{"coupon_id": "c1", "account_id": "mallory"}`, "alice"))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", captured.AccountID)
}

func TestRedeem_Unauthenticated(t *testing.T) {
	called := false
	mockSvc := &mockRedemptionService{
		redeemFn: func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
			called = true
			return nil, nil
		},
	}
	app := setupRedemptionTestApp(mockSvc)

	resp, err := app.Test(redeemRequest(t, `{"coupon_id": "c1"}`, ""))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, called, "service must not be reached without identity")
}

func TestRedeem_ValidationErrors(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		expectedMessage string
	}{
		{name: "malformed json", body: `{"coupon_id":`, expectedMessage: "invalid request body"},
		{name: "missing coupon id", body: `{}`, expectedMessage: "invalid request: coupon_id is required"},
		{name: "blank coupon id", body: `{"coupon_id": "   "}`, expectedMessage: "invalid request: coupon_id must not be blank"},
		{name: "blank affiliate", body: `{"coupon_id": "c1", "affiliate_id": " "}`, expectedMessage: "invalid request: affiliate_id must not be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupRedemptionTestApp(&mockRedemptionService{})

			resp, err := app.Test(redeemRequest(t, tt.body, "alice"))
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			var result map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.expectedMessage, result["error"])
			assert.Equal(t, "invalid-argument", result["code"])
		})
	}
}

func TestRedeem_ServiceErrors(t *testing.T) {
	tests := []struct {
		name              string
		err               error
		expectedStatus    int
		expectedCode      string
		expectedMessage   string
		expectedRetriable bool
	}{
		{
			name:            "unauthenticated",
			err:             service.ErrUnauthenticated,
			expectedStatus:  fiber.StatusUnauthorized,
			expectedCode:    "unauthenticated",
			expectedMessage: "You must be logged in",
		},
		{
			name:            "missing coupon id",
			err:             service.ErrMissingCouponID,
			expectedStatus:  fiber.StatusBadRequest,
			expectedCode:    "invalid-argument",
			expectedMessage: "Please choose a coupon to redeem",
		},
		{
			name:            "account not found",
			err:             service.ErrAccountNotFound,
			expectedStatus:  fiber.StatusForbidden,
			expectedCode:    "permission-denied",
			expectedMessage: "Your account could not be found",
		},
		{
			name:            "coupon not found",
			err:             service.ErrCouponNotFound,
			expectedStatus:  fiber.StatusNotFound,
			expectedCode:    "not-found",
			expectedMessage: "This coupon does not exist",
		},
		{
			name:            "no uses left",
			err:             service.ErrNoUsesLeft,
			expectedStatus:  fiber.StatusConflict,
			expectedCode:    "failed-precondition",
			expectedMessage: "This coupon has no uses left",
		},
		{
			name:            "expired",
			err:             service.ErrCouponExpired,
			expectedStatus:  fiber.StatusConflict,
			expectedCode:    "failed-precondition",
			expectedMessage: "This coupon has expired",
		},
		{
			name:              "internal",
			err:               &service.Error{Kind: service.KindInternal, Message: "redeem coupon", Err: errors.New("disk full")},
			expectedStatus:    fiber.StatusInternalServerError,
			expectedCode:      "internal",
			expectedMessage:   "Something went wrong. Please try again",
			expectedRetriable: true,
		},
		{
			name: "outcome unknown",
			err: &service.Error{
				Kind:    service.KindInternal,
				Message: "redeem coupon",
				Err:     fmt.Errorf("%w: %w", service.ErrOutcomeUnknown, context.DeadlineExceeded),
			},
			expectedStatus:  fiber.StatusInternalServerError,
			expectedCode:    "internal",
			expectedMessage: "We could not confirm your redemption. Please check your redemption history before trying again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockRedemptionService{
				redeemFn: func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
					return nil, tt.err
				},
			}
			app := setupRedemptionTestApp(mockSvc)

			resp, err := app.Test(redeemRequest(t, `{"coupon_id": "c1"}`, "alice"))
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			var result map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.expectedMessage, result["error"])
			assert.Equal(t, tt.expectedCode, result["code"])
			assert.Equal(t, tt.expectedRetriable, result["retriable"])
			assert.NotContains(t, result["error"], "disk full", "internal details must not leak")
		})
	}
}

func TestHistory_Success(t *testing.T) {
	var capturedAccount, capturedCoupon string
	mockSvc := &mockRedemptionService{
		historyFn: func(ctx context.Context, accountID, couponID string) ([]model.Redemption, error) {
			capturedAccount, capturedCoupon = accountID, couponID
			return []model.Redemption{{ID: "r2", CouponID: "c1"}, {ID: "r1", CouponID: "c1"}}, nil
		},
	}
	app := setupRedemptionTestApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions?coupon_id=c1", nil)
	req.Header.Set("Authorization", bearer(t, "alice"))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", capturedAccount)
	assert.Equal(t, "c1", capturedCoupon)

	var result struct {
		Redemptions []model.Redemption `json:"redemptions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Redemptions, 2)
	assert.Equal(t, "r2", result.Redemptions[0].ID)
}

func TestHistory_MissingCouponID(t *testing.T) {
	mockSvc := &mockRedemptionService{
		historyFn: func(ctx context.Context, accountID, couponID string) ([]model.Redemption, error) {
			return nil, service.ErrMissingCouponID
		},
	}
	app := setupRedemptionTestApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions", nil)
	req.Header.Set("Authorization", bearer(t, "alice"))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
