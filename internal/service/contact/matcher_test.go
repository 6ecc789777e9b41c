package contact

import (
	"context"
	"testing"

	"syncbridge-service/internal/domain/customer"
	xerrors "syncbridge-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type fakeCustomerRepo struct {
	byExternal map[string]*customer.Customer
	byEmail    map[string]*customer.Customer
	bySuffix   map[string]*customer.Customer

	created    []*customer.Customer
	backfilled []int64
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{
		byExternal: make(map[string]*customer.Customer),
		byEmail:    make(map[string]*customer.Customer),
		bySuffix:   make(map[string]*customer.Customer),
	}
}

func (f *fakeCustomerRepo) FindByExternalID(_ context.Context, livechatID, ringcentralID string) (*customer.Customer, error) {
	if livechatID != "" {
		if c, ok := f.byExternal[livechatID]; ok {
			return c, nil
		}
	}
	if ringcentralID != "" {
		if c, ok := f.byExternal[ringcentralID]; ok {
			return c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeCustomerRepo) FindByEmail(_ context.Context, email string) (*customer.Customer, error) {
	if c, ok := f.byEmail[email]; ok {
		return c, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeCustomerRepo) FindByPhoneSuffix(_ context.Context, suffix string) (*customer.Customer, error) {
	if c, ok := f.bySuffix[suffix]; ok {
		return c, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeCustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	c.ID = int64(len(f.created) + 1)
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCustomerRepo) Backfill(_ context.Context, id int64, _ *customer.Customer) error {
	f.backfilled = append(f.backfilled, id)
	return nil
}

func TestPhoneSuffix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "5551234567"},
		{"15551234567", "5551234567"},
		{"555-1234", "5551234"},
		{"", ""},
		{"ext", ""},
	}

	for _, tc := range cases {
		if got := PhoneSuffix(tc.in); got != tc.want {
			t.Errorf("PhoneSuffix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFindOrCreateEmptyParams(t *testing.T) {
	m := NewMatcher(newFakeCustomerRepo(), zap.NewNop())

	c, err := m.FindOrCreate(context.Background(), Params{})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil customer for empty params")
	}
}

func TestFindOrCreatePrefersExternalID(t *testing.T) {
	repo := newFakeCustomerRepo()
	byID := &customer.Customer{ID: 1}
	byMail := &customer.Customer{ID: 2}
	repo.byExternal["lc-1"] = byID
	repo.byEmail["jane@example.com"] = byMail

	m := NewMatcher(repo, zap.NewNop())
	c, err := m.FindOrCreate(context.Background(), Params{
		LiveChatCustomerID: "lc-1",
		Email:              "jane@example.com",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if c.ID != 1 {
		t.Errorf("matched customer %d, want external-id match 1", c.ID)
	}
	if len(repo.backfilled) != 1 || repo.backfilled[0] != 1 {
		t.Errorf("expected backfill of customer 1, got %v", repo.backfilled)
	}
}

func TestFindOrCreateFallsBackToEmail(t *testing.T) {
	repo := newFakeCustomerRepo()
	repo.byEmail["jane@example.com"] = &customer.Customer{ID: 5}

	m := NewMatcher(repo, zap.NewNop())
	c, err := m.FindOrCreate(context.Background(), Params{
		LiveChatCustomerID: "lc-unknown",
		Email:              "jane@example.com",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if c.ID != 5 {
		t.Errorf("matched customer %d, want email match 5", c.ID)
	}
}

func TestFindOrCreateMatchesPhoneSuffix(t *testing.T) {
	repo := newFakeCustomerRepo()
	repo.bySuffix["5551234567"] = &customer.Customer{ID: 9}

	m := NewMatcher(repo, zap.NewNop())
	c, err := m.FindOrCreate(context.Background(), Params{Phone: "+1 (555) 123-4567"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if c.ID != 9 {
		t.Errorf("matched customer %d, want phone match 9", c.ID)
	}
}

func TestFindOrCreateCreatesWhenNoMatch(t *testing.T) {
	repo := newFakeCustomerRepo()
	m := NewMatcher(repo, zap.NewNop())

	c, err := m.FindOrCreate(context.Background(), Params{
		LiveChatCustomerID: "lc-new",
		Email:              "new@example.com",
		Name:               "New Person",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if c == nil || c.ID == 0 {
		t.Fatal("expected created customer with assigned id")
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d customers, want 1", len(repo.created))
	}
	if !c.LiveChatCustomerID.Valid || c.LiveChatCustomerID.String != "lc-new" {
		t.Errorf("LiveChatCustomerID = %+v", c.LiveChatCustomerID)
	}
	if c.Phone.Valid {
		t.Error("Phone should be null when not provided")
	}
}
