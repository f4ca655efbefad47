package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/config"
	"github.com/mind-engage/mindengage-classroom/internal/mail"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/validation"
)

// ItemCatalog prices the things that can be bought.
type ItemCatalog interface {
	ItemPrice(ctx context.Context, model ItemModel, id string) (price float64, title string, err error)
}

// Contact is where a receipt goes.
type Contact struct {
	Name  string
	Email string
}

type Contacts interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

type Service struct {
	store    Store
	catalog  ItemCatalog
	locker   Locker
	mailer   mail.Sender
	contacts Contacts
	cfg      config.PayHere
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

func NewService(store Store, catalog ItemCatalog, locker Locker, mailer mail.Sender, contacts Contacts,
	cfg config.PayHere, log logrus.FieldLogger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "LKR"
	}
	return &Service{
		store: store, catalog: catalog, locker: locker, mailer: mailer, contacts: contacts,
		cfg: cfg, log: log.WithField("component", "payment"),
		now: time.Now, newID: uuid.NewString,
	}
}

type InitiateInput struct {
	ItemID    string    `json:"itemId" validate:"required"`
	ItemModel ItemModel `json:"itemModel" validate:"required,oneof=Course Tute Video Paper"`
}

// Checkout carries the fields the client posts to the PayHere form.
type Checkout struct {
	Sandbox     bool   `json:"sandbox"`
	CheckoutURL string `json:"checkoutUrl"`
	MerchantID  string `json:"merchant_id"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifyURL   string `json:"notify_url"`
	OrderID     string `json:"order_id"`
	Items       string `json:"items"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	Hash        string `json:"hash"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

func (s *Service) Initiate(ctx context.Context, userID string, in InitiateInput) (Checkout, error) {
	if !s.configured() {
		return Checkout{}, ErrNotConfigured
	}
	if err := validation.Struct(in); err != nil {
		return Checkout{}, err
	}
	price, title, err := s.catalog.ItemPrice(ctx, in.ItemModel, in.ItemID)
	if err != nil {
		return Checkout{}, err
	}
	if price <= 0 {
		return Checkout{}, common.NewError(common.ErrBadRequest, "this item is not for sale")
	}
	paid, err := s.store.HasPaid(ctx, userID, in.ItemID)
	if err != nil {
		return Checkout{}, err
	}
	if paid {
		return Checkout{}, common.NewError(common.ErrConflict, "you have already paid for this item")
	}

	now := s.now().UTC()
	p := Payment{
		ID:        s.newID(),
		UserID:    userID,
		ItemID:    in.ItemID,
		ItemModel: in.ItemModel,
		Amount:    price,
		Currency:  s.cfg.Currency,
		OrderID:   s.newID(),
		Status:    StatusPending,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return Checkout{}, err
	}
	s.log.WithFields(logrus.Fields{"order_id": p.OrderID, "item_id": p.ItemID, "user_id": userID}).Info("payment initiated")

	co := Checkout{
		Sandbox:     s.cfg.Sandbox,
		CheckoutURL: checkoutLive,
		MerchantID:  s.cfg.MerchantID,
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
		NotifyURL:   s.cfg.NotifyURL,
		OrderID:     p.OrderID,
		Items:       title,
		Currency:    p.Currency,
		Amount:      FormatAmount(p.Amount),
		Hash:        CheckoutHash(s.cfg.MerchantID, s.cfg.MerchantSecret, p.OrderID, p.Amount, p.Currency),
	}
	if s.cfg.Sandbox {
		co.CheckoutURL = checkoutSandbox
	}
	if c, err := s.contacts.Contact(ctx, userID); err == nil {
		co.FirstName, co.LastName, _ = strings.Cut(c.Name, " ")
		co.Email = c.Email
	}
	return co, nil
}

// Notification is the form PayHere posts to the notify URL.
type Notification struct {
	MerchantID    string
	OrderID       string
	PaymentID     string
	Amount        string
	Currency      string
	StatusCode    string
	Signature     string
	Method        string
	StatusMessage string
}

// Outcome describes what a notification did to the payment.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnknown   Outcome = "unknown-order"
	OutcomeMismatch  Outcome = "amount-mismatch"
	OutcomeBadStatus Outcome = "unknown-status"
)

func (n Notification) check() error {
	v := &common.ValidationError{}
	for _, f := range []struct{ name, val string }{
		{"merchant_id", n.MerchantID}, {"order_id", n.OrderID}, {"payhere_amount", n.Amount},
		{"payhere_currency", n.Currency}, {"status_code", n.StatusCode}, {"md5sig", n.Signature},
	} {
		if strings.TrimSpace(f.val) == "" {
			v.Add("%s is required", f.name)
		}
	}
	return v.OrNil()
}

// ErrNotConfigured is returned while the merchant id or secret is unset; a
// blank secret would make every signature forgeable.
var ErrNotConfigured = common.NewError(common.ErrForbidden, "payments are not configured")

func (s *Service) configured() bool {
	return s.cfg.MerchantID != "" && s.cfg.MerchantSecret != ""
}

func unavailable(err error) error {
	return &common.Error{Kind: common.ErrServiceUnavailable, Msg: "payment processing unavailable, retry later", Cause: err}
}

// Notify reconciles a PayHere notification. Errors returned before the
// signature is accepted are client errors. After that only lock and
// storage failures are returned, so the gateway redelivers; every domain
// outcome is reported as an Outcome.
func (s *Service) Notify(ctx context.Context, n Notification) (Outcome, error) {
	if !s.configured() {
		return "", ErrNotConfigured
	}
	if err := n.check(); err != nil {
		return "", err
	}
	if n.MerchantID != s.cfg.MerchantID {
		return "", common.NewError(common.ErrBadRequest, "merchant mismatch")
	}
	expected := NotifySignature(s.cfg.MerchantID, s.cfg.MerchantSecret, n.OrderID, n.Amount, n.Currency, n.StatusCode)
	if !signatureMatches(expected, n.Signature) {
		return "", common.NewError(common.ErrBadRequest, "invalid signature")
	}

	log := s.log.WithFields(logrus.Fields{"order_id": n.OrderID, "status_code": n.StatusCode})
	unlock, err := s.locker.Lock(ctx, n.OrderID)
	if err != nil {
		log.WithError(err).Warn("order lock unavailable")
		if errors.Is(err, ErrLockBusy) {
			return "", err
		}
		return "", unavailable(err)
	}
	defer unlock()

	p, err := s.store.GetByOrderID(ctx, n.OrderID)
	if errors.Is(err, common.ErrNotFound) {
		log.Warn("notification for unknown order")
		return OutcomeUnknown, nil
	}
	if err != nil {
		return "", unavailable(err)
	}

	meta := map[string]string{
		"payment_id":     n.PaymentID,
		"method":         n.Method,
		"status_message": n.StatusMessage,
		"status_code":    n.StatusCode,
	}

	if !amountMatches(p, n.Amount, n.Currency) {
		log.WithFields(logrus.Fields{"expected": FormatAmount(p.Amount), "got": n.Amount}).Error("notification amount mismatch")
		if p.Status == StatusPaid || p.Status == StatusFailed || p.Status == StatusReversed {
			return OutcomeMismatch, nil
		}
		meta["failure"] = fmt.Sprintf("amount mismatch: expected %s %s, got %s %s",
			FormatAmount(p.Amount), p.Currency, n.Amount, n.Currency)
		if err := s.store.Transition(ctx, p.OrderID, p.Status, StatusFailed, meta, s.now().UTC()); err != nil {
			return "", unavailable(err)
		}
		return OutcomeMismatch, nil
	}

	target, ok := StatusFromCode(n.StatusCode)
	if !ok {
		log.Warn("unknown status code")
		return OutcomeBadStatus, nil
	}
	next, change := nextStatus(p.Status, target)
	if !change {
		log.WithField("status", p.Status).Info("notification ignored")
		return OutcomeIgnored, nil
	}
	if err := s.store.Transition(ctx, p.OrderID, p.Status, next, meta, s.now().UTC()); err != nil {
		return "", unavailable(err)
	}
	log.WithFields(logrus.Fields{"from": p.Status, "to": next}).Info("payment status changed")
	if next == StatusPaid {
		p.Status = next
		s.sendReceipt(ctx, p)
	}
	return OutcomeApplied, nil
}

func amountMatches(p Payment, amount, currency string) bool {
	got, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return false
	}
	return FormatAmount(got) == FormatAmount(p.Amount) && strings.EqualFold(strings.TrimSpace(currency), p.Currency)
}

func (s *Service) sendReceipt(ctx context.Context, p Payment) {
	log := s.log.WithField("order_id", p.OrderID)
	c, err := s.contacts.Contact(ctx, p.UserID)
	if err != nil || c.Email == "" {
		log.WithError(err).Warn("no receipt address")
		return
	}
	msg := mail.Message{
		ToName:  c.Name,
		ToEmail: c.Email,
		Subject: "Payment received",
		Text: fmt.Sprintf("Hi %s,\n\nWe received your payment of %s %s for %s %s.\nOrder: %s\n",
			c.Name, p.Currency, FormatAmount(p.Amount), strings.ToLower(string(p.ItemModel)), p.ItemID, p.OrderID),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Error("sending receipt")
	}
}

func canSee(userID string, role rbac.Role, p Payment) bool {
	return p.UserID == userID || rbac.Can(role, "payment:read-any")
}

// Status returns one payment to its owner or an admin.
func (s *Service) Status(ctx context.Context, userID string, role rbac.Role, orderID string) (Payment, error) {
	if orderID == "" {
		return Payment{}, common.NewValidationError("orderId is required")
	}
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if !canSee(userID, role, p) {
		return Payment{}, common.NewError(common.ErrForbidden, "not your payment")
	}
	return p, nil
}

// VerifySandbox lets the owner complete a PENDING payment without the
// gateway. It only works against the PayHere sandbox.
func (s *Service) VerifySandbox(ctx context.Context, userID, orderID string) (Payment, error) {
	if !s.cfg.Sandbox {
		return Payment{}, common.NewError(common.ErrForbidden, "sandbox verification is disabled")
	}
	if orderID == "" {
		return Payment{}, common.NewValidationError("orderId is required")
	}
	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	defer unlock()

	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if p.UserID != userID {
		return Payment{}, common.NewError(common.ErrForbidden, "not your payment")
	}
	switch p.Status {
	case StatusPaid:
		return p, nil
	case StatusPending:
	default:
		return Payment{}, common.NewError(common.ErrConflict, "payment is %s", p.Status)
	}
	now := s.now().UTC()
	if err := s.store.Transition(ctx, orderID, StatusPending, StatusPaid, map[string]string{"method": "SANDBOX"}, now); err != nil {
		return Payment{}, err
	}
	p.Status, p.UpdatedAt = StatusPaid, now
	s.log.WithField("order_id", orderID).Info("sandbox payment verified")
	s.sendReceipt(ctx, p)
	return p, nil
}

func (s *Service) Mine(ctx context.Context, userID string) ([]Payment, error) {
	ps, err := s.store.ListByUser(ctx, userID)
	if ps == nil {
		ps = []Payment{}
	}
	return ps, err
}

func (s *Service) HasPaid(ctx context.Context, userID, itemID string) (bool, error) {
	return s.store.HasPaid(ctx, userID, itemID)
}
