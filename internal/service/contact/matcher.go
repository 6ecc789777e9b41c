// Package contact matches inbound counterparty details to unified customer
// records.
package contact

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"syncbridge-service/internal/domain/customer"
	xerrors "syncbridge-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Params carries whatever identity fragments a webhook exposed.
type Params struct {
	LiveChatCustomerID   string
	RingCentralContactID string
	Email                string
	Phone                string
	Name                 string
}

func (p Params) empty() bool {
	return p.LiveChatCustomerID == "" && p.RingCentralContactID == "" &&
		p.Email == "" && p.Phone == "" && p.Name == ""
}

// Repository is the customer persistence the matcher needs.
type Repository interface {
	FindByExternalID(ctx context.Context, livechatID, ringcentralID string) (*customer.Customer, error)
	FindByEmail(ctx context.Context, email string) (*customer.Customer, error)
	FindByPhoneSuffix(ctx context.Context, suffix string) (*customer.Customer, error)
	Create(ctx context.Context, c *customer.Customer) error
	Backfill(ctx context.Context, id int64, c *customer.Customer) error
}

type Matcher struct {
	repo   Repository
	logger *zap.Logger
}

func NewMatcher(repo Repository, logger *zap.Logger) *Matcher {
	return &Matcher{repo: repo, logger: logger}
}

// FindOrCreate resolves a customer by external id, then email, then phone
// suffix, creating a new record when nothing matches. Matches are backfilled
// with any newly learned fields; existing values are never overwritten.
// Returns nil (no customer) when the params carry nothing to match on.
func (m *Matcher) FindOrCreate(ctx context.Context, p Params) (*customer.Customer, error) {
	if p.empty() {
		return nil, nil
	}

	c, err := m.match(ctx, p)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := m.repo.Backfill(ctx, c.ID, buildCustomer(p)); err != nil {
			return nil, err
		}
		m.logger.Info("customer matched", zap.Int64("customer_id", c.ID))
		return c, nil
	}

	c = buildCustomer(p)
	if err := m.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	m.logger.Info("customer created", zap.Int64("customer_id", c.ID))
	return c, nil
}

func (m *Matcher) match(ctx context.Context, p Params) (*customer.Customer, error) {
	if p.LiveChatCustomerID != "" || p.RingCentralContactID != "" {
		c, err := m.repo.FindByExternalID(ctx, p.LiveChatCustomerID, p.RingCentralContactID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	if p.Email != "" {
		c, err := m.repo.FindByEmail(ctx, p.Email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	if suffix := PhoneSuffix(p.Phone); suffix != "" {
		c, err := m.repo.FindByPhoneSuffix(ctx, suffix)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// PhoneSuffix normalizes a phone number to its last ten digits, the key used
// for fuzzy phone matching across differently formatted numbers.
func PhoneSuffix(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

func buildCustomer(p Params) *customer.Customer {
	return &customer.Customer{
		LiveChatCustomerID:   nullString(p.LiveChatCustomerID),
		RingCentralContactID: nullString(p.RingCentralContactID),
		Email:                nullString(p.Email),
		Phone:                nullString(p.Phone),
		Name:                 nullString(p.Name),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
