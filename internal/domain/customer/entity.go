// internal/domain/customer/entity.go
package customer

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Customer is a unified contact record, optionally linked to a LiveChat
// customer id and a RingCentral contact id. Fields are only ever backfilled,
// never overwritten.
type Customer struct {
	ID                   int64          `json:"id" db:"id"`
	LiveChatCustomerID   sql.NullString `json:"livechat_customer_id,omitempty" db:"livechat_customer_id"`
	RingCentralContactID sql.NullString `json:"ringcentral_contact_id,omitempty" db:"ringcentral_contact_id"`

	Email sql.NullString `json:"email,omitempty" db:"email"`
	Phone sql.NullString `json:"phone,omitempty" db:"phone"`
	Name  sql.NullString `json:"name,omitempty" db:"name"`

	Tags pq.StringArray `json:"tags,omitempty" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
