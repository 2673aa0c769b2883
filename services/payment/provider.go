// Package payment holds the provider adapters that turn an order into a payment
// instruction and turn a provider callback into a verified outcome.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
)

// Kind tags a payment provider. It is also the value stored in payment_method.
type Kind string

const (
	KindWallet         Kind = "momo"
	KindGateway        Kind = "vnpay"
	KindManualTransfer Kind = "manual_transfer"
)

func (k Kind) String() string { return string(k) }

// ParseKind accepts the three supported method names
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWallet, KindGateway, KindManualTransfer:
		return k, nil
	}
	return "", apperr.InvalidErr(fmt.Sprintf("Unsupported payment method %q", s),
		map[string]string{"payment_method": "must be one of: momo, vnpay, manual_transfer"})
}

// PaymentRequest is what every provider needs to start a payment
type PaymentRequest struct {
	OrderCode string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
}

// TransferInfo is shown to the buyer for manual bank/wallet transfers
type TransferInfo struct {
	Phone     string          `json:"phone"`
	Name      string          `json:"name"`
	QRCode    string          `json:"qr_code,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	OrderCode string          `json:"order_code"`
	Note      string          `json:"note"`
}

// Instruction tells the client how to pay: follow PaymentURL or transfer manually
type Instruction struct {
	Kind       Kind
	PaymentURL string
	Transfer   *TransferInfo
}

// CallbackParams is a provider callback flattened to string values
type CallbackParams map[string]string

// Outcome is a verified payment result ready for reconciliation
type Outcome struct {
	Kind          Kind
	OrderCode     string
	Success       bool
	Amount        decimal.Decimal
	TransactionID string
	ResponseCode  string
	Message       string
	Raw           json.RawMessage

	// PaymentID pins the outcome to one attempt; zero means the latest attempt
	PaymentID uint
	// set by staff approval of a manual transfer
	VerifiedBy *uint
}

// Provider is implemented by each payment adapter
type Provider interface {
	Kind() Kind
	BuildPaymentRequest(ctx context.Context, req PaymentRequest) (*Instruction, error)
	VerifyCallback(params CallbackParams) (*Outcome, error)
}

// Registry dispatches a kind to its provider
type Registry struct {
	providers map[Kind]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// Get returns the provider for kind, or a validation error when none is registered
func (r *Registry) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, apperr.InvalidErr(fmt.Sprintf("Payment method %q is not available", kind), nil)
	}
	return p, nil
}

// Wallet returns the wallet provider when it is registered
func (r *Registry) Wallet() (*WalletProvider, bool) {
	w, ok := r.providers[KindWallet].(*WalletProvider)
	return w, ok
}

// ParamsFromJSON flattens a JSON object body into callback params. Numbers keep
// their literal text so signatures computed by the provider still match.
func ParamsFromJSON(body []byte) (CallbackParams, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, apperr.InvalidErr("Malformed callback body", nil)
	}

	params := make(CallbackParams, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			params[k] = ""
		case string:
			params[k] = val
		case json.Number:
			params[k] = val.String()
		case bool:
			params[k] = fmt.Sprintf("%t", val)
		default:
			b, _ := json.Marshal(val)
			params[k] = string(b)
		}
	}
	return params, nil
}

// rawJSON encodes callback params for the payment record
func (p CallbackParams) rawJSON() json.RawMessage {
	b, err := json.Marshal(map[string]string(p))
	if err != nil {
		return nil
	}
	return b
}
