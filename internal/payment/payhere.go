package payment

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	checkoutLive    = "https://www.payhere.lk/pay/checkout"
	checkoutSandbox = "https://sandbox.payhere.lk/pay/checkout"
)

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// FormatAmount renders an amount the way PayHere hashes it: two decimals,
// no grouping.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CheckoutHash signs a checkout request.
func CheckoutHash(merchantID, secret, orderID string, amount float64, currency string) string {
	return upperMD5(merchantID + orderID + FormatAmount(amount) + currency + upperMD5(secret))
}

// NotifySignature is the md5sig PayHere sends with a notification. Amount
// and currency are taken verbatim from the notification.
func NotifySignature(merchantID, secret, orderID, amount, currency, statusCode string) string {
	return upperMD5(merchantID + orderID + amount + currency + statusCode + upperMD5(secret))
}

func signatureMatches(expected, got string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(got))) == 1
}

// StatusFromCode maps a PayHere status_code.
func StatusFromCode(code string) (Status, bool) {
	switch strings.TrimSpace(code) {
	case "2":
		return StatusPaid, true
	case "0":
		return StatusPending, true
	case "-1", "-2":
		return StatusFailed, true
	case "-3":
		return StatusReversed, true
	}
	return "", false
}

// nextStatus applies the idempotency rules. ok is false when the
// notification must not change the stored status.
func nextStatus(cur, target Status) (Status, bool) {
	if cur == target {
		return cur, false
	}
	switch cur {
	case StatusPaid:
		return target, target == StatusReversed
	case StatusReversed:
		return cur, false
	case StatusFailed:
		return target, target == StatusPaid
	}
	return target, true
}
