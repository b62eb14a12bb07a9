package model

import (
	"time"
)

// Event is one immutable audit record for a ledger state transition.
// It is a one-way output consumed by off-chain audit and tax-reporting
// collaborators; the ledgers never read events back.
type Event struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Ledger  string `json:"ledger" gorm:"index:idx_events_ledger"`
	Op      string `json:"op"`
	Actor   string `json:"actor"`
	Entity  string `json:"entity" gorm:"index:idx_events_entity"`

	// Old/New capture the mutated fields before and after the transition
	Old map[string]interface{} `json:"old" gorm:"serializer:json"`
	New map[string]interface{} `json:"new" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Event) TableName() string {
	return "ledger_events"
}
