package payment

import (
	"context"
	"fmt"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
)

// ManualTransferConfig is the beneficiary shown to buyers paying by transfer
type ManualTransferConfig struct {
	Phone  string
	Name   string
	QRCode string
}

// ManualTransferProvider has no remote side: staff approve transfers by hand
type ManualTransferProvider struct {
	cfg ManualTransferConfig
}

func NewManualTransferProvider(cfg ManualTransferConfig) *ManualTransferProvider {
	return &ManualTransferProvider{cfg: cfg}
}

func (m *ManualTransferProvider) Kind() Kind { return KindManualTransfer }

func (m *ManualTransferProvider) BuildPaymentRequest(_ context.Context, req PaymentRequest) (*Instruction, error) {
	return &Instruction{
		Kind: KindManualTransfer,
		Transfer: &TransferInfo{
			Phone:     m.cfg.Phone,
			Name:      m.cfg.Name,
			QRCode:    m.cfg.QRCode,
			Amount:    req.Amount,
			OrderCode: req.OrderCode,
			Note:      fmt.Sprintf("Transfer for order %s", req.OrderCode),
		},
	}, nil
}

func (m *ManualTransferProvider) VerifyCallback(CallbackParams) (*Outcome, error) {
	return nil, apperr.InvalidErr("Manual transfers are verified by staff, not by callback", nil)
}
