package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
)

// GatewayConfig configures the redirect gateway (VNPay) adapter
type GatewayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	// Location is the provider's time zone for vnp_CreateDate/vnp_ExpireDate. Defaults to GMT+7.
	Location *time.Location
	// ExpireAfter bounds how long the payment page stays valid. Defaults to 15 minutes.
	ExpireAfter time.Duration
}

// GatewayProvider builds signed redirect URLs and verifies return/IPN query strings
type GatewayProvider struct {
	cfg GatewayConfig
	now func() time.Time
}

const gatewayTimeLayout = "20060102150405"

func NewGatewayProvider(cfg GatewayConfig) *GatewayProvider {
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("GMT+7", 7*60*60)
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 15 * time.Minute
	}
	return &GatewayProvider{cfg: cfg, now: time.Now}
}

func (g *GatewayProvider) Kind() Kind { return KindGateway }

// minorUnits drops the fraction and multiplies by 100, as the gateway expects
func minorUnits(d decimal.Decimal) string {
	return d.Floor().Mul(decimal.NewFromInt(100)).StringFixed(0)
}

// canonicalQuery url-encodes keys and values (space as '+'), sorts by encoded
// key and joins them as k=v&k=v. The same string is signed and sent.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		ek := url.QueryEscape(k)
		keys = append(keys, ek)
		encoded[ek] = url.QueryEscape(v)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(encoded[k])
	}
	return sb.String()
}

func (g *GatewayProvider) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *GatewayProvider) BuildPaymentRequest(_ context.Context, req PaymentRequest) (*Instruction, error) {
	now := g.now().In(g.cfg.Location)
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Locale":     "vn",
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.OrderCode,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Amount":     minorUnits(req.Amount),
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": now.Format(gatewayTimeLayout),
		"vnp_ExpireDate": now.Add(g.cfg.ExpireAfter).Format(gatewayTimeLayout),
	}

	query := canonicalQuery(params)
	paymentURL := g.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + g.sign(query)
	return &Instruction{Kind: KindGateway, PaymentURL: paymentURL}, nil
}

// VerifyCallback validates vnp_SecureHash over every other vnp_ parameter.
// Success needs both the response code and the transaction status to be "00".
func (g *GatewayProvider) VerifyCallback(params CallbackParams) (*Outcome, error) {
	provided := params["vnp_SecureHash"]
	if provided == "" {
		return nil, apperr.ErrInvalidSignature
	}

	signed := make(map[string]string, len(params))
	for k, v := range params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" || !strings.HasPrefix(k, "vnp_") {
			continue
		}
		signed[k] = v
	}
	expected := g.sign(canonicalQuery(signed))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return nil, apperr.ErrInvalidSignature
	}

	minor, err := decimal.NewFromString(params["vnp_Amount"])
	if err != nil {
		return nil, apperr.InvalidErr("Invalid vnp_Amount in callback", nil)
	}

	code := params["vnp_ResponseCode"]
	return &Outcome{
		Kind:          KindGateway,
		OrderCode:     params["vnp_TxnRef"],
		Success:       code == "00" && params["vnp_TransactionStatus"] == "00",
		Amount:        minor.Div(decimal.NewFromInt(100)),
		TransactionID: params["vnp_TransactionNo"],
		ResponseCode:  code,
		Message:       GatewayResponseMessage(code),
		Raw:           params.rawJSON(),
	}, nil
}
