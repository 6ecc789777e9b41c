// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"syncbridge-service/internal/domain/customer"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `
	id, livechat_customer_id, ringcentral_contact_id, email, phone, name, tags,
	created_at, updated_at
`

func (r *CustomerRepository) scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID, &c.LiveChatCustomerID, &c.RingCentralContactID, &c.Email, &c.Phone, &c.Name, &c.Tags,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	return &c, nil
}

// Create inserts a new customer.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (
			livechat_customer_id, ringcentral_contact_id, email, phone, name, tags
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.LiveChatCustomerID, c.RingCentralContactID, c.Email, c.Phone, c.Name, c.Tags,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

// FindByID retrieves a customer by ID.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return r.scanCustomer(r.db.QueryRow(ctx, query, id))
}

// FindByExternalID matches a customer by either platform id.
func (r *CustomerRepository) FindByExternalID(ctx context.Context, livechatID, ringcentralID string) (*customer.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE (livechat_customer_id = $1 AND $1 <> '')
		   OR (ringcentral_contact_id = $2 AND $2 <> '')
		LIMIT 1
	`
	return r.scanCustomer(r.db.QueryRow(ctx, query, livechatID, ringcentralID))
}

// FindByEmail matches a customer by email address.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE email = $1 LIMIT 1`
	return r.scanCustomer(r.db.QueryRow(ctx, query, email))
}

// FindByPhoneSuffix matches a customer whose stored phone contains the given
// normalized digit suffix.
func (r *CustomerRepository) FindByPhoneSuffix(ctx context.Context, suffix string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone LIKE '%' || $1 LIMIT 1`
	return r.scanCustomer(r.db.QueryRow(ctx, query, suffix))
}

// Backfill fills missing fields on an existing customer. COALESCE with the
// NULLIF'd stored value keeps every already-populated column untouched.
func (r *CustomerRepository) Backfill(ctx context.Context, id int64, c *customer.Customer) error {
	query := `
		UPDATE customers SET
			livechat_customer_id  = COALESCE(livechat_customer_id, NULLIF($1, '')),
			ringcentral_contact_id = COALESCE(ringcentral_contact_id, NULLIF($2, '')),
			email = COALESCE(email, NULLIF($3, '')),
			phone = COALESCE(phone, NULLIF($4, '')),
			name  = COALESCE(name, NULLIF($5, '')),
			updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.db.Exec(
		ctx, query,
		c.LiveChatCustomerID.String, c.RingCentralContactID.String,
		c.Email.String, c.Phone.String, c.Name.String, id,
	)
	if err != nil {
		return fmt.Errorf("failed to backfill customer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
