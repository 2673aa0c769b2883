package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
)

// WalletConfig configures the e-wallet (MoMo) adapter
type WalletConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	Timeout     time.Duration
}

// WalletProvider creates signed wallet payments and verifies wallet IPN callbacks
type WalletProvider struct {
	cfg    WalletConfig
	client *http.Client
}

func NewWalletProvider(cfg WalletConfig) *WalletProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &WalletProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (w *WalletProvider) Kind() Kind { return KindWallet }

const walletRequestType = "captureWallet"

type walletCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

type walletCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

// sign joins the pairs as k=v&k=v with raw values and returns the hex HMAC-SHA256
func (w *WalletProvider) sign(pairs [][2]string) string {
	var sb strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(kv[1])
	}
	mac := hmac.New(sha256.New, []byte(w.cfg.SecretKey))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// wholeUnits renders an amount rounded to an integer string
func wholeUnits(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}

func (w *WalletProvider) BuildPaymentRequest(ctx context.Context, req PaymentRequest) (*Instruction, error) {
	amount := wholeUnits(req.Amount)
	body := walletCreateRequest{
		PartnerCode: w.cfg.PartnerCode,
		RequestID:   req.OrderCode,
		Amount:      amount,
		OrderID:     req.OrderCode,
		OrderInfo:   req.OrderInfo,
		RedirectURL: w.cfg.RedirectURL,
		IPNURL:      w.cfg.IPNURL,
		Lang:        "vi",
		RequestType: walletRequestType,
		ExtraData:   "",
	}
	body.Signature = w.sign([][2]string{
		{"accessKey", w.cfg.AccessKey},
		{"amount", amount},
		{"extraData", body.ExtraData},
		{"ipnUrl", body.IPNURL},
		{"orderId", body.OrderID},
		{"orderInfo", body.OrderInfo},
		{"partnerCode", body.PartnerCode},
		{"redirectUrl", body.RedirectURL},
		{"requestId", body.RequestID},
		{"requestType", body.RequestType},
	})

	var resp walletCreateResponse
	if err := w.post(ctx, "/v2/gateway/api/create", body, &resp); err != nil {
		return nil, err
	}
	if resp.ResultCode != 0 || resp.PayURL == "" {
		return nil, apperr.ProviderUnavailableErr("Wallet provider rejected the payment request",
			fmt.Errorf("wallet create: result %d: %s", resp.ResultCode, resp.Message))
	}
	return &Instruction{Kind: KindWallet, PaymentURL: resp.PayURL}, nil
}

func (w *WalletProvider) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode wallet request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build wallet request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(httpReq)
	if err != nil {
		return apperr.ProviderUnavailableErr("Wallet provider is unavailable", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return apperr.ProviderUnavailableErr("Wallet provider is unavailable", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return apperr.ProviderUnavailableErr("Wallet provider is unavailable",
			fmt.Errorf("wallet %s: status %d: %s", path, res.StatusCode, strings.TrimSpace(string(data))))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.ProviderUnavailableErr("Wallet provider returned an invalid response", err)
	}
	return nil
}

var walletCallbackFields = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

// VerifyCallback checks the IPN signature and decodes the outcome
func (w *WalletProvider) VerifyCallback(params CallbackParams) (*Outcome, error) {
	pairs := make([][2]string, 0, len(walletCallbackFields)+1)
	pairs = append(pairs, [2]string{"accessKey", w.cfg.AccessKey})
	for _, f := range walletCallbackFields {
		pairs = append(pairs, [2]string{f, params[f]})
	}
	expected := w.sign(pairs)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(params["signature"]))) {
		return nil, apperr.ErrInvalidSignature
	}

	resultCode, err := strconv.Atoi(params["resultCode"])
	if err != nil {
		return nil, apperr.InvalidErr("Invalid resultCode in callback", nil)
	}
	amount, err := decimal.NewFromString(params["amount"])
	if err != nil {
		return nil, apperr.InvalidErr("Invalid amount in callback", nil)
	}

	msg := params["message"]
	if msg == "" {
		msg = WalletResultMessage(resultCode)
	}
	return &Outcome{
		Kind:          KindWallet,
		OrderCode:     params["orderId"],
		Success:       resultCode == 0,
		Amount:        amount,
		TransactionID: params["transId"],
		ResponseCode:  strconv.Itoa(resultCode),
		Message:       msg,
		Raw:           params.rawJSON(),
	}, nil
}

type walletQueryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type walletQueryResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	ExtraData    string `json:"extraData"`
	Amount       int64  `json:"amount"`
	TransID      int64  `json:"transId"`
	PayType      string `json:"payType"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
}

// QueryResult is the provider's current view of a transaction.
// Pending is true while the provider has no final answer.
type QueryResult struct {
	Outcome
	Pending bool
}

// QueryTransaction asks the wallet for the status of a payment it created for orderCode.
// The answer comes over an authenticated server call, so it is trusted without a callback signature.
func (w *WalletProvider) QueryTransaction(ctx context.Context, orderCode string) (*QueryResult, error) {
	body := walletQueryRequest{
		PartnerCode: w.cfg.PartnerCode,
		RequestID:   orderCode,
		OrderID:     orderCode,
		Lang:        "vi",
	}
	body.Signature = w.sign([][2]string{
		{"accessKey", w.cfg.AccessKey},
		{"orderId", orderCode},
		{"partnerCode", w.cfg.PartnerCode},
		{"requestId", orderCode},
	})

	var resp walletQueryResponse
	if err := w.post(ctx, "/v2/gateway/api/query", body, &resp); err != nil {
		return nil, err
	}

	msg := resp.Message
	if msg == "" {
		msg = WalletResultMessage(resp.ResultCode)
	}
	code := resp.ResultCode
	if code != 0 && !walletResultPending(code) && !walletResultDeclined(code) {
		return nil, apperr.ProviderUnavailableErr("Wallet status is unavailable",
			fmt.Errorf("wallet query for %s returned result code %d: %s", orderCode, code, msg))
	}

	raw, _ := json.Marshal(resp)
	var transID string
	if resp.TransID != 0 {
		transID = strconv.FormatInt(resp.TransID, 10)
	}
	return &QueryResult{
		Outcome: Outcome{
			Kind:          KindWallet,
			OrderCode:     orderCode,
			Success:       resp.ResultCode == 0,
			Amount:        decimal.NewFromInt(resp.Amount),
			TransactionID: transID,
			ResponseCode:  strconv.Itoa(resp.ResultCode),
			Message:       msg,
			Raw:           raw,
		},
		Pending: walletResultPending(resp.ResultCode),
	}, nil
}
