package models

import "database/sql"

type GroupMember struct {
	ID       int            `json:"id,omitempty" db:"id,omitempty"`
	GroupID  int            `json:"group_id,omitempty" db:"group_id,omitempty"`
	UserID   int            `json:"user_id,omitempty" db:"user_id,omitempty"`
	UserRole string         `json:"user_role,omitempty" db:"user_role,omitempty"`
	JoinedAt sql.NullString `json:"joined_at,omitempty" db:"joined_at,omitempty"`
}

// MemberWithProfile is a group member joined with the owning user's profile,
// returned by the member listing endpoint.
type MemberWithProfile struct {
	GroupMember
	Email     string `json:"email,omitempty" db:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" db:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" db:"last_name,omitempty"`
}
