package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	v, err := NewValidator(map[string]string{
		"otp_verify":      OtpVerifySchema,
		"checkout_result": CheckoutResultSchema,
		"payment_order":   PaymentOrderSchema,
		"payment_verify":  PaymentVerifySchema,
	})
	require.NoError(t, err)
	return v
}

func TestValidate_OtpVerify(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate("otp_verify", []byte(`{"code":"123456"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	for _, bad := range []string{
		`{}`,
		`{"code":"12345"}`,
		`{"code":"abcdef"}`,
		`{"code":"123456","extra":true}`,
	} {
		res, err := v.Validate("otp_verify", []byte(bad))
		require.NoError(t, err)
		assert.False(t, res.Valid, "payload %s should be rejected", bad)
		assert.NotEmpty(t, res.Errors)
	}
}

func TestValidate_CheckoutResultStatusEnum(t *testing.T) {
	v := newTestValidator(t)

	for _, status := range []string{"completed", "dismissed", "failed"} {
		res, err := v.Validate("checkout_result", []byte(`{"status":"`+status+`"}`))
		require.NoError(t, err)
		assert.True(t, res.Valid)
	}

	res, err := v.Validate("checkout_result", []byte(`{"status":"paid"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_PaymentOrderAmount(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate("payment_order", []byte(`{"amount":10000,"currency":"INR"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate("payment_order", []byte(`{"amount":0,"currency":"INR"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_MalformedJSON(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate("otp_verify", []byte(`{not json`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate("nope", []byte(`{}`))
	assert.Error(t, err)
}
