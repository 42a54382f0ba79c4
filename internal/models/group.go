package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type Group struct {
	ID               int             `json:"id,omitempty" db:"id,omitempty"`
	Name             string          `json:"name,omitempty" db:"name,omitempty"`
	SubscriptionName string          `json:"subscription_name,omitempty" db:"subscription_name,omitempty"`
	Amount           decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
	TotalMem         int             `json:"total_mem,omitempty" db:"total_mem,omitempty"`
	AmountEach       decimal.Decimal `json:"amount_each,omitempty" db:"amount_each,omitempty"`
	VirtualCardID    sql.NullString  `json:"virtual_card_id,omitempty" db:"virtual_card_id,omitempty"`
	CreatedAt        sql.NullString  `json:"created_at,omitempty" db:"created_at,omitempty"`
}
