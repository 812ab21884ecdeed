package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore keeps the call slot in a single postgres row.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by db. Migrate must have run.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates or updates the call slot table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.CallRecord{})
}

func (d *DatabaseStore) SaveCall(ctx context.Context, record *models.CallRecord) error {
	row := *record
	row.ID = models.CurrentCallSlot

	// Upsert the fixed slot; an older version never replaces a newer one.
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"connection_id", "status", "start_message", "end_message",
			"response", "version", "started_at", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "current_call.version <= EXCLUDED.version"},
		}},
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save call %s: %w", record.ConnectionID, err)
	}
	return nil
}

func (d *DatabaseStore) LoadCall(ctx context.Context) (*models.CallRecord, error) {
	var record models.CallRecord
	err := d.db.WithContext(ctx).First(&record, models.CurrentCallSlot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCall
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load call: %w", err)
	}
	return &record, nil
}
