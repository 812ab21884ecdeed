package models

import (
	"time"

	"gorm.io/gorm"
)

// CurrentCallSlot is the primary key of the single persisted call slot.
const CurrentCallSlot = 1

// CallRecord mirrors the in-flight call slot. There is only ever one row;
// each new call overwrites it.
type CallRecord struct {
	gorm.Model
	ConnectionID string    `json:"connection_id" gorm:"index"`
	Status       string    `json:"status" gorm:"not null;default:'Idle'"`
	StartMessage string    `json:"start_message"`
	EndMessage   string    `json:"end_message"`
	Response     *string   `json:"response,omitempty"`
	Version      uint64    `json:"version" gorm:"not null;default:0"`
	StartedAt    time.Time `json:"started_at"`
}

// TableName keeps the table name stable across model renames.
func (CallRecord) TableName() string {
	return "current_call"
}
