package repository

import "database/sql"

// Store bundles the MySQL repositories into the single persistence
// collaborator the availability engine and booking service consume.
type Store struct {
	*ItemRepo
	*ResourceRepo
	*BookingRepo
	*CustomerRepo
	*StaffBreakRepo
}

// NewStore returns a Store whose repositories share db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		ItemRepo:       NewItemRepo(db),
		ResourceRepo:   NewResourceRepo(db),
		BookingRepo:    NewBookingRepo(db),
		CustomerRepo:   NewCustomerRepo(db),
		StaffBreakRepo: NewStaffBreakRepo(db),
	}
}
