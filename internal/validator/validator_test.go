package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

func strPtr(s string) *string { return &s }

func TestNew(t *testing.T) {
	v := New()
	require.NotNil(t, v, "New() should return a non-nil validator")
}

// TestNotblankValidator tests the custom notblank validation
func TestNotblankValidator(t *testing.T) {
	v := New()

	type TestStruct struct {
		Name string `validate:"notblank"`
	}

	testCases := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"valid_string", "valid", false},
		{"valid_with_spaces", "  valid  ", false},
		{"whitespace_only_spaces", "   ", true},
		{"whitespace_only_tabs", "\t\t", true},
		{"whitespace_mixed", " \t\n ", true},
		{"empty_string", "", true},
		{"unicode_content", "日本語", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(TestStruct{Name: tc.input})

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestNotblankOnNonStringField tests that notblank handles non-string fields gracefully
func TestNotblankOnNonStringField(t *testing.T) {
	type TestStructInt struct {
		Value int `validate:"notblank"`
	}

	assert.NoError(t, New().Struct(TestStructInt{Value: 0}), "notblank should pass for non-string types")
}

func TestRedeemRequestValidation(t *testing.T) {
	v := New()

	testCases := []struct {
		name        string
		req         model.RedeemRequest
		expectedMsg string
	}{
		{
			name: "valid without affiliate",
			req:  model.RedeemRequest{CouponID: "c1"},
		},
		{
			name: "valid with affiliate",
			req:  model.RedeemRequest{CouponID: "c1", AffiliateID: strPtr("bob")},
		},
		{
			name:        "missing coupon id",
			req:         model.RedeemRequest{},
			expectedMsg: "invalid request: coupon_id is required",
		},
		{
			name:        "blank coupon id",
			req:         model.RedeemRequest{CouponID: "   "},
			expectedMsg: "invalid request: coupon_id must not be blank",
		},
		{
			name:        "coupon id too long",
			req:         model.RedeemRequest{CouponID: strings.Repeat("x", 256)},
			expectedMsg: "invalid request: coupon_id exceeds maximum length of 255",
		},
		{
			name:        "blank affiliate id",
			req:         model.RedeemRequest{CouponID: "c1", AffiliateID: strPtr(" ")},
			expectedMsg: "invalid request: affiliate_id must not be blank",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.req)

			if tc.expectedMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.expectedMsg, Message(err))
		})
	}
}

func TestMessage_NonValidationError(t *testing.T) {
	assert.Equal(t, "invalid request", Message(errors.New("boom")))
}
