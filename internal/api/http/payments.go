package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/payment"
)

// POST /api/payments/initiate
func InitiatePaymentHandler(payments *payment.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in payment.InitiateInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		co, err := payments.Initiate(r.Context(), tokenCaller(r).id, in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, co)
	}
}

// POST /api/payments/notify
// Called by PayHere, form encoded and unauthenticated. Anything but 200
// makes the gateway redeliver.
func PaymentNotifyHandler(payments *payment.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			rs.Error(w, r, common.NewError(common.ErrBadRequest, "invalid form body"))
			return
		}
		f := r.PostForm
		n := payment.Notification{
			MerchantID:    strings.TrimSpace(f.Get("merchant_id")),
			OrderID:       strings.TrimSpace(f.Get("order_id")),
			PaymentID:     f.Get("payment_id"),
			Amount:        strings.TrimSpace(f.Get("payhere_amount")),
			Currency:      strings.TrimSpace(f.Get("payhere_currency")),
			StatusCode:    strings.TrimSpace(f.Get("status_code")),
			Signature:     strings.TrimSpace(f.Get("md5sig")),
			Method:        f.Get("method"),
			StatusMessage: f.Get("status_message"),
		}
		out, err := payments.Notify(r.Context(), n)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, map[string]string{"outcome": string(out)})
	}
}

// GET /api/payments/status?orderId=
func PaymentStatusHandler(payments *payment.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := tokenCaller(r)
		p, err := payments.Status(r.Context(), c.id, c.role, strings.TrimSpace(r.URL.Query().Get("orderId")))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, p)
	}
}

type verifySandboxReq struct {
	OrderID string `json:"orderId"`
}

// POST /api/payments/verify-sandbox
func VerifySandboxHandler(payments *payment.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifySandboxReq
		if err := decodeJSON(w, r, &req); err != nil {
			rs.Error(w, r, err)
			return
		}
		p, err := payments.VerifySandbox(r.Context(), tokenCaller(r).id, strings.TrimSpace(req.OrderID))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, p)
	}
}

// GET /api/payments/mine
func MyPaymentsHandler(payments *payment.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := payments.Mine(r.Context(), tokenCaller(r).id)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, list)
	}
}
