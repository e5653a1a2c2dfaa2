package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// CustomerRepo writes customers.  The booking flow identifies a customer by
// e-mail address, so creation is an upsert on the unique email column.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo returns a new CustomerRepo bound to the given database.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// UpsertCustomer inserts the customer or, when the e-mail already exists,
// refreshes its name and phone.  Either way it returns the row id.
func (r *CustomerRepo) UpsertCustomer(ctx context.Context, c model.Customer) (uint64, error) {
	// LAST_INSERT_ID(id) makes LastInsertId return the existing row on update
	const q = `INSERT INTO customers (name, email, phone) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), phone = VALUES(phone), id = LAST_INSERT_ID(id)`
	res, err := r.db.ExecContext(ctx, q, c.Name, strings.ToLower(strings.TrimSpace(c.Email)), c.Phone)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
