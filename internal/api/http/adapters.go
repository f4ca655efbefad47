package http

import (
	"context"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/course"
	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/payment"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// StudentDirectory serves paper results from the user service.
type StudentDirectory struct{ Users *user.Service }

func (d StudentDirectory) Students(ctx context.Context, ids []string) (map[string]paper.StudentInfo, error) {
	us, err := d.Users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]paper.StudentInfo, len(us))
	for id, u := range us {
		out[id] = paper.StudentInfo{ID: u.ID, Name: u.Name, Username: u.Username}
	}
	return out, nil
}

// Contacts gives the payment service receipt addresses.
type Contacts struct{ Users *user.Service }

func (c Contacts) Contact(ctx context.Context, userID string) (payment.Contact, error) {
	u, err := c.Users.Get(ctx, userID)
	if err != nil {
		return payment.Contact{}, err
	}
	return payment.Contact{Name: u.Name, Email: u.Email}, nil
}

// Catalog prices every purchasable item for payment initiation.
type Catalog struct {
	Courses   *course.Service
	Materials *material.Service
	Papers    *paper.Service
}

func (c Catalog) ItemPrice(ctx context.Context, model payment.ItemModel, id string) (float64, string, error) {
	switch model {
	case payment.ItemCourse:
		co, err := c.Courses.Get(ctx, id)
		return co.Price, co.Title, err
	case payment.ItemTute:
		return c.Materials.Price(ctx, material.KindTute, id)
	case payment.ItemVideo:
		return c.Materials.Price(ctx, material.KindVideo, id)
	case payment.ItemPaper:
		return c.Papers.Price(ctx, id)
	}
	return 0, "", common.NewValidationError("unknown itemModel " + string(model))
}
