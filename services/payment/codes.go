package payment

import "strconv"

var walletResultMessages = map[int]string{
	0:    "Transaction successful",
	9000: "Transaction authorized, awaiting capture",
	1000: "Transaction initiated, awaiting user confirmation",
	1001: "Insufficient balance",
	1002: "Transaction rejected by the issuer",
	1003: "Transaction cancelled",
	1004: "Amount exceeds the payment limit",
	1005: "Payment URL or QR code expired",
	1006: "User declined the payment",
	1007: "Account is inactive or does not exist",
	1017: "Transaction cancelled by the merchant",
	1026: "Transaction restricted by promotion rules",
	2001: "Invalid linked account",
	3001: "Account link failed",
	3002: "Account link rejected",
	3003: "Account unlinked",
	4001: "Account restricted",
	4002: "Account not verified",
	4100: "User failed to log in",
	7000: "Transaction is being processed",
	7002: "Transaction is being processed by the provider",
}

// WalletResultMessage describes a wallet result code
func WalletResultMessage(code int) string {
	if msg, ok := walletResultMessages[code]; ok {
		return msg
	}
	return "Unknown wallet result code " + strconv.Itoa(code)
}

// walletResultPending reports codes for which the final outcome is not yet known
func walletResultPending(code int) bool {
	switch code {
	case 1000, 7000, 7002, 9000:
		return true
	}
	return false
}

// walletResultDeclined reports codes that are a final answer from the user or issuer.
// Anything else that is neither success nor pending is a provider-side error.
func walletResultDeclined(code int) bool {
	switch code {
	case 1001, 1002, 1003, 1004, 1005, 1006, 1007, 1017, 1026,
		2001, 3001, 3002, 3003, 4001, 4002, 4100:
		return true
	}
	return false
}

var gatewayResponseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Amount debited, transaction flagged as suspicious",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account verification failed more than 3 times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Paying bank is under maintenance",
	"79": "Wrong payment password entered too many times",
	"99": "Other error",
}

// GatewayResponseMessage describes a gateway response code
func GatewayResponseMessage(code string) string {
	if msg, ok := gatewayResponseMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}
