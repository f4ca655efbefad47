package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/config"
	"github.com/mind-engage/mindengage-classroom/internal/db/dbtest"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/mail"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

const (
	merchant = "1211149"
	secret   = "secret"
)

type catalog map[string]float64

func (c catalog) ItemPrice(_ context.Context, _ ItemModel, id string) (float64, string, error) {
	p, ok := c[id]
	if !ok {
		return 0, "", common.ErrNotFound
	}
	return p, "Item " + id, nil
}

type contacts struct{}

func (contacts) Contact(_ context.Context, userID string) (Contact, error) {
	return Contact{Name: "Nimal Perera", Email: userID + "@example.com"}, nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func newTestService(t *testing.T, sandbox bool) (*Service, *outbox) {
	t.Helper()
	mails := &outbox{}
	s := NewService(NewSQLStore(dbtest.OpenSQLite(t)), catalog{"tute-1": 1000, "free": 0}, NewLocalLocker(),
		mails, contacts{}, config.PayHere{MerchantID: merchant, MerchantSecret: secret, Sandbox: sandbox, Currency: "LKR"},
		logging.Discard())
	return s, mails
}

func signed(orderID, amount, currency, code string) Notification {
	return Notification{
		MerchantID: merchant, OrderID: orderID, PaymentID: "320025071278",
		Amount: amount, Currency: currency, StatusCode: code,
		Signature: NotifySignature(merchant, secret, orderID, amount, currency, code),
		Method:    "VISA",
	}
}

func TestHashes(t *testing.T) {
	assert.Equal(t, "E08EFF9E513632DBB8EC6BB1FF4E0A8B", CheckoutHash(merchant, secret, "ORD-1", 1000, "LKR"))
	assert.Equal(t, "E5D8A3CA7557EF9596938731622076E5", NotifySignature(merchant, secret, "ORD-1", "1000.00", "LKR", "2"))
	assert.True(t, signatureMatches("E5D8A3CA7557EF9596938731622076E5", "e5d8a3ca7557ef9596938731622076e5"))
	assert.False(t, signatureMatches("E5D8A3CA7557EF9596938731622076E5", "E5D8A3CA"))
	assert.Equal(t, "12.50", FormatAmount(12.5))
}

func TestStatusFromCode(t *testing.T) {
	for code, want := range map[string]Status{"2": StatusPaid, "0": StatusPending, "-1": StatusFailed, "-2": StatusFailed, "-3": StatusReversed} {
		got, ok := StatusFromCode(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
	_, ok := StatusFromCode("7")
	assert.False(t, ok)
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		cur, target Status
		change      bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusFailed, true},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusFailed, false},
		{StatusPaid, StatusReversed, true},
		{StatusPaid, StatusPaid, false},
		{StatusReversed, StatusPaid, false},
		{StatusFailed, StatusPaid, true},
		{StatusFailed, StatusPending, false},
	}
	for _, c := range cases {
		_, change := nextStatus(c.cur, c.target)
		assert.Equal(t, c.change, change, "%s -> %s", c.cur, c.target)
	}
}

func TestInitiate(t *testing.T) {
	s, _ := newTestService(t, true)
	ctx := context.Background()

	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", co.Amount)
	assert.Equal(t, checkoutSandbox, co.CheckoutURL)
	assert.Equal(t, CheckoutHash(merchant, secret, co.OrderID, 1000, "LKR"), co.Hash)
	assert.Equal(t, "Nimal", co.FirstName)

	_, err = s.Initiate(ctx, "u-1", InitiateInput{ItemID: "free", ItemModel: ItemTute})
	assert.True(t, errors.Is(err, common.ErrBadRequest))
	_, err = s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: "Car"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = s.Notify(ctx, signed(co.OrderID, "1000.00", "LKR", "2"))
	require.NoError(t, err)
	_, err = s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	assert.True(t, errors.Is(err, common.ErrConflict))
}

func TestNotifyPaysAndIsIdempotent(t *testing.T) {
	s, mails := newTestService(t, false)
	ctx := context.Background()
	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)

	out, err := s.Notify(ctx, signed(co.OrderID, "1000.00", "LKR", "2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	require.Len(t, mails.sent, 1)
	assert.Equal(t, "u-1@example.com", mails.sent[0].ToEmail)

	out, err = s.Notify(ctx, signed(co.OrderID, "1000.00", "LKR", "0"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)

	p, err := s.Status(ctx, "u-1", rbac.RoleStudent, co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Equal(t, "320025071278", p.Metadata["payment_id"])

	out, err = s.Notify(ctx, signed(co.OrderID, "1000.00", "LKR", "-3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	paid, err := s.HasPaid(ctx, "u-1", "tute-1")
	require.NoError(t, err)
	assert.False(t, paid)
	assert.Len(t, mails.sent, 1)
}

func TestNotifyTamperedAmountFails(t *testing.T) {
	s, mails := newTestService(t, false)
	ctx := context.Background()
	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)

	// correctly signed by someone holding the secret, but for the wrong amount
	out, err := s.Notify(ctx, signed(co.OrderID, "1.00", "LKR", "2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, out)

	p, err := s.Status(ctx, "u-1", rbac.RoleStudent, co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Contains(t, p.Metadata["failure"], "amount mismatch")
	assert.Empty(t, mails.sent)

	out, err = s.Notify(ctx, signed(co.OrderID, "1000.00", "USD", "2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, out)
	p, err = s.Status(ctx, "u-1", rbac.RoleStudent, co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
}

func TestNotifyRejectsBeforeSignature(t *testing.T) {
	s, _ := newTestService(t, false)
	ctx := context.Background()

	_, err := s.Notify(ctx, Notification{OrderID: "x"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	n := signed("ORD-1", "1000.00", "LKR", "2")
	n.MerchantID = "other"
	_, err = s.Notify(ctx, n)
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	n = signed("ORD-1", "1000.00", "LKR", "2")
	n.Amount = "1.00"
	_, err = s.Notify(ctx, n)
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	out, err := s.Notify(ctx, signed("ORD-404", "1000.00", "LKR", "2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, out)
}

func TestStatusOwnerOrAdmin(t *testing.T) {
	s, _ := newTestService(t, false)
	ctx := context.Background()
	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)

	_, err = s.Status(ctx, "u-2", rbac.RoleStudent, co.OrderID)
	assert.True(t, errors.Is(err, common.ErrForbidden))
	_, err = s.Status(ctx, "a-1", rbac.RoleAdmin, co.OrderID)
	assert.NoError(t, err)
	_, err = s.Status(ctx, "u-1", rbac.RoleStudent, "nope")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	mine, err := s.Mine(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	none, err := s.Mine(ctx, "u-2")
	require.NoError(t, err)
	assert.NotNil(t, none)
}

func TestVerifySandbox(t *testing.T) {
	ctx := context.Background()

	live, _ := newTestService(t, false)
	_, err := live.VerifySandbox(ctx, "u-1", "ORD-1")
	assert.True(t, errors.Is(err, common.ErrForbidden))

	s, mails := newTestService(t, true)
	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)
	_, err = s.VerifySandbox(ctx, "u-2", co.OrderID)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	p, err := s.VerifySandbox(ctx, "u-1", co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Len(t, mails.sent, 1)

	p, err = s.VerifySandbox(ctx, "u-1", co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Len(t, mails.sent, 1)
}

func TestConcurrentNotificationsApplyOnce(t *testing.T) {
	s, mails := newTestService(t, false)
	ctx := context.Background()
	co, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	require.NoError(t, err)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Notify(ctx, signed(co.OrderID, "1000.00", "LKR", "2"))
			if assert.NoError(t, err) && out == OutcomeApplied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), applied.Load())
	assert.Len(t, mails.sent, 1)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a")
	require.NoError(t, err)

	other, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	other()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock, err = l.Lock(ctx, "a")
	require.NoError(t, err)
	unlock()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLocker(rdb)
	l.wait = 100 * time.Millisecond
	l.retry = 10 * time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "ORD-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:payment:ORD-1"))

	_, err = l.Lock(ctx, "ORD-1")
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.Equal(t, 503, common.HTTPStatusFromError(err))

	unlock()
	assert.False(t, mr.Exists("lock:payment:ORD-1"))

	// an expired holder must not release the next holder's lock
	unlock, err = l.Lock(ctx, "ORD-2")
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)
	next, err := l.Lock(ctx, "ORD-2")
	require.NoError(t, err)
	unlock()
	assert.True(t, mr.Exists("lock:payment:ORD-2"))
	next()
	assert.False(t, mr.Exists("lock:payment:ORD-2"))
}

func TestMissingMerchantSecretRefusesPayments(t *testing.T) {
	ctx := context.Background()
	st := NewSQLStore(dbtest.OpenSQLite(t))
	s := NewService(st, catalog{"tute-1": 1000}, NewLocalLocker(), &outbox{}, contacts{},
		config.PayHere{MerchantID: merchant, Sandbox: true, Currency: "LKR"}, logging.Discard())

	_, err := s.Initiate(ctx, "u-1", InitiateInput{ItemID: "tute-1", ItemModel: ItemTute})
	assert.ErrorIs(t, err, ErrNotConfigured)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.Create(ctx, Payment{
		ID: "p-1", UserID: "u-1", ItemID: "tute-1", ItemModel: ItemTute, Amount: 1000, Currency: "LKR",
		OrderID: "ORD-1", Status: StatusPending, Metadata: map[string]string{}, CreatedAt: now, UpdatedAt: now,
	}))
	forged := Notification{
		MerchantID: merchant, OrderID: "ORD-1", PaymentID: "1", Amount: "1000.00", Currency: "LKR", StatusCode: "2",
		Signature: NotifySignature(merchant, "", "ORD-1", "1000.00", "LKR", "2"),
	}
	out, err := s.Notify(ctx, forged)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, errors.Is(err, common.ErrForbidden))
	assert.Empty(t, out)

	paid, err := st.HasPaid(ctx, "u-1", "tute-1")
	require.NoError(t, err)
	assert.False(t, paid)
}
