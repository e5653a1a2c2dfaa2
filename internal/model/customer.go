package model

// Customer is the person a booking is made for.  Email is the natural key
// used when the booking flow upserts customers.
type Customer struct {
	ID    uint64 `json:"id"`    // customers.id
	Name  string `json:"name"`  // customers.name
	Email string `json:"email"` // customers.email (unique, lower-case)
	Phone string `json:"phone"` // customers.phone
}
