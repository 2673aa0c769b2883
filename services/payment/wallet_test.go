package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWalletConfig(endpoint string) WalletConfig {
	return WalletConfig{
		PartnerCode: "MOMOTEST",
		AccessKey:   "access",
		SecretKey:   "secret",
		Endpoint:    endpoint,
		RedirectURL: "https://shop.test/return",
		IPNURL:      "https://api.shop.test/api/v1/payments/momo-notify",
		Timeout:     2 * time.Second,
	}
}

func hmacSHA256(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWalletBuildPaymentRequestSignsFixedFieldOrder(t *testing.T) {
	var got walletCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/gateway/api/create", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"resultCode": 0,
			"message":    "Successful.",
			"payUrl":     "https://wallet.test/pay/abc",
		})
	}))
	defer srv.Close()

	p := NewWalletProvider(testWalletConfig(srv.URL))
	ins, err := p.BuildPaymentRequest(context.Background(), PaymentRequest{
		OrderCode: "ORD2401011A2B3C4D5E",
		Amount:    decimal.RequireFromString("199000.60"),
		OrderInfo: "Payment for order ORD2401011A2B3C4D5E",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.test/pay/abc", ins.PaymentURL)
	assert.Equal(t, KindWallet, ins.Kind)

	assert.Equal(t, "199001", got.Amount)
	assert.Equal(t, got.OrderID, got.RequestID)
	assert.Equal(t, "captureWallet", got.RequestType)
	assert.Equal(t, "vi", got.Lang)
	assert.Equal(t, "", got.ExtraData)

	raw := "accessKey=access&amount=199001&extraData=&ipnUrl=https://api.shop.test/api/v1/payments/momo-notify" +
		"&orderId=ORD2401011A2B3C4D5E&orderInfo=Payment for order ORD2401011A2B3C4D5E&partnerCode=MOMOTEST" +
		"&redirectUrl=https://shop.test/return&requestId=ORD2401011A2B3C4D5E&requestType=captureWallet"
	assert.Equal(t, hmacSHA256("secret", raw), got.Signature)
}

func TestWalletBuildPaymentRequestProviderFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-zero result": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": 22, "message": "Invalid amount"})
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			p := NewWalletProvider(testWalletConfig(srv.URL))
			_, err := p.BuildPaymentRequest(context.Background(), PaymentRequest{OrderCode: "ORD1", Amount: decimal.NewFromInt(1000)})
			require.Error(t, err)
			assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
		})
	}
}

func TestWalletBuildPaymentRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testWalletConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	p := NewWalletProvider(cfg)

	_, err := p.BuildPaymentRequest(context.Background(), PaymentRequest{OrderCode: "ORD1", Amount: decimal.NewFromInt(1000)})
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}

func signedWalletCallback(resultCode string) CallbackParams {
	params := CallbackParams{
		"partnerCode":  "MOMOTEST",
		"orderId":      "ORD2401011A2B3C4D5E",
		"requestId":    "ORD2401011A2B3C4D5E",
		"amount":       "199001",
		"orderInfo":    "Payment for order ORD2401011A2B3C4D5E",
		"orderType":    "momo_wallet",
		"transId":      "4088878653",
		"resultCode":   resultCode,
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1721720663942",
		"extraData":    "",
	}
	raw := "accessKey=access&amount=" + params["amount"] + "&extraData=&message=" + params["message"] +
		"&orderId=" + params["orderId"] + "&orderInfo=" + params["orderInfo"] + "&orderType=" + params["orderType"] +
		"&partnerCode=" + params["partnerCode"] + "&payType=" + params["payType"] + "&requestId=" + params["requestId"] +
		"&responseTime=" + params["responseTime"] + "&resultCode=" + params["resultCode"] + "&transId=" + params["transId"]
	params["signature"] = hmacSHA256("secret", raw)
	return params
}

func TestWalletVerifyCallback(t *testing.T) {
	p := NewWalletProvider(testWalletConfig("http://unused"))

	out, err := p.VerifyCallback(signedWalletCallback("0"))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "ORD2401011A2B3C4D5E", out.OrderCode)
	assert.Equal(t, "4088878653", out.TransactionID)
	assert.True(t, decimal.NewFromInt(199001).Equal(out.Amount))
	assert.NotEmpty(t, out.Raw)

	failed, err := p.VerifyCallback(signedWalletCallback("1006"))
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, "1006", failed.ResponseCode)
}

func TestWalletVerifyCallbackRejectsTampering(t *testing.T) {
	p := NewWalletProvider(testWalletConfig("http://unused"))

	params := signedWalletCallback("0")
	params["amount"] = "1000"
	_, err := p.VerifyCallback(params)
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)

	params = signedWalletCallback("0")
	delete(params, "signature")
	_, err = p.VerifyCallback(params)
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
}

func TestParamsFromJSONKeepsNumberLiterals(t *testing.T) {
	params, err := ParamsFromJSON([]byte(`{"amount":199001,"resultCode":0,"transId":4088878653,"extraData":"","message":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "199001", params["amount"])
	assert.Equal(t, "0", params["resultCode"])
	assert.Equal(t, "4088878653", params["transId"])
	assert.Equal(t, "", params["extraData"])

	_, err = ParamsFromJSON([]byte(`not json`))
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestWalletQueryTransaction(t *testing.T) {
	var got walletQueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/gateway/api/query", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"orderId":    got.OrderID,
			"amount":     50000,
			"transId":    123456,
			"resultCode": 1000,
			"message":    "",
		})
	}))
	defer srv.Close()

	p := NewWalletProvider(testWalletConfig(srv.URL))
	res, err := p.QueryTransaction(context.Background(), "ORD1")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.False(t, res.Success)
	assert.Equal(t, "123456", res.TransactionID)
	assert.Equal(t, WalletResultMessage(1000), res.Message)
	assert.Equal(t, hmacSHA256("secret", "accessKey=access&orderId=ORD1&partnerCode=MOMOTEST&requestId=ORD1"), got.Signature)
}

func TestWalletQueryTransaction_ResultClasses(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		wantErr bool
		pending bool
	}{
		{"success", 0, false, false},
		{"awaiting user", 1000, false, true},
		{"user declined", 1006, false, false},
		{"expired", 1005, false, false},
		{"system error", 99, true, false},
		{"bad request", 20, true, false},
		{"unknown code", 8123, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"orderId":    "ORD1",
					"amount":     50000,
					"resultCode": tc.code,
				})
			}))
			defer srv.Close()

			res, err := NewWalletProvider(testWalletConfig(srv.URL)).QueryTransaction(context.Background(), "ORD1")
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, res)
				assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.pending, res.Pending)
			assert.Equal(t, tc.code == 0, res.Success)
		})
	}
}
