package payment

import (
	"context"
	"testing"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" VNPay ")
	require.NoError(t, err)
	assert.Equal(t, KindGateway, k)

	_, err = ParseKind("cash")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestRegistryDispatch(t *testing.T) {
	manual := NewManualTransferProvider(ManualTransferConfig{Phone: "0900000000", Name: "SHOP"})
	r := NewRegistry(manual, testGateway())

	p, err := r.Get(KindManualTransfer)
	require.NoError(t, err)
	assert.Same(t, manual, p)

	_, err = r.Get(KindWallet)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, ok := r.Wallet()
	assert.False(t, ok)
}

func TestManualTransferInstruction(t *testing.T) {
	m := NewManualTransferProvider(ManualTransferConfig{Phone: "0900000000", Name: "SHOP", QRCode: "https://cdn.test/qr.png"})
	ins, err := m.BuildPaymentRequest(context.Background(), PaymentRequest{OrderCode: "ORD1", Amount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	require.NotNil(t, ins.Transfer)
	assert.Empty(t, ins.PaymentURL)
	assert.Equal(t, "Transfer for order ORD1", ins.Transfer.Note)
	assert.Equal(t, "0900000000", ins.Transfer.Phone)

	_, err = m.VerifyCallback(CallbackParams{})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestAmountMatches(t *testing.T) {
	final := decimal.RequireFromString("150000.60")
	assert.True(t, AmountMatches(&Outcome{Kind: KindGateway, Amount: decimal.NewFromInt(150000)}, final))
	assert.True(t, AmountMatches(&Outcome{Kind: KindWallet, Amount: decimal.NewFromInt(150001)}, final))
	assert.False(t, AmountMatches(&Outcome{Kind: KindGateway, Amount: decimal.NewFromInt(1)}, final))
}
