package models

import "database/sql"

type ConfirmShare struct {
	ID        int            `json:"id,omitempty" db:"id,omitempty"`
	GroupID   int            `json:"group_id,omitempty" db:"group_id,omitempty"`
	RoundID   string         `json:"round_id,omitempty" db:"round_id,omitempty"`
	UserID    int            `json:"user_id,omitempty" db:"user_id,omitempty"`
	Status    bool           `json:"status" db:"status"`
	CreatedAt sql.NullString `json:"created_at,omitempty" db:"created_at,omitempty"`
}
