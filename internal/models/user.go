package models

import "database/sql"

// User mirrors the profile row managed by the external identity provider.
// Only the fields this service reads are mapped.
type User struct {
	ID           int            `json:"id,omitempty" db:"id,omitempty"`
	ClerkID      string         `json:"clerk_id,omitempty" db:"clerk_id,omitempty"`
	Email        string         `json:"email,omitempty" db:"email,omitempty"`
	FirstName    string         `json:"first_name,omitempty" db:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty" db:"last_name,omitempty"`
	CardholderID sql.NullString `json:"cardholder_id,omitempty" db:"cardholder_id,omitempty"`
}
