package payment

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusReversed Status = "REVERSED"
)

// ItemModel names the kind of thing being bought.
type ItemModel string

const (
	ItemCourse ItemModel = "Course"
	ItemTute   ItemModel = "Tute"
	ItemVideo  ItemModel = "Video"
	ItemPaper  ItemModel = "Paper"
)

func (m ItemModel) Valid() bool {
	switch m {
	case ItemCourse, ItemTute, ItemVideo, ItemPaper:
		return true
	}
	return false
}

type Payment struct {
	ID        string            `json:"id" bson:"_id"`
	UserID    string            `json:"userId" bson:"userId"`
	ItemID    string            `json:"itemId" bson:"itemId"`
	ItemModel ItemModel         `json:"itemModel" bson:"itemModel"`
	Amount    float64           `json:"amount" bson:"amount"`
	Currency  string            `json:"currency" bson:"currency"`
	OrderID   string            `json:"orderId" bson:"orderId"`
	Status    Status            `json:"status" bson:"status"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// ErrStale means the payment changed status since it was read.
var ErrStale = common.NewError(common.ErrConflict, "payment status changed concurrently")

// Store persists payments. Order ids are unique.
type Store interface {
	Create(ctx context.Context, p Payment) error
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)
	HasPaid(ctx context.Context, userID, itemID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
	// Transition moves orderID from one status to another, merging meta.
	// It returns ErrStale when the stored status is no longer from.
	Transition(ctx context.Context, orderID string, from, to Status, meta map[string]string, at time.Time) error
}
