package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

// ErrNoCall is returned by LoadCall when no call slot has been saved yet.
var ErrNoCall = errors.New("no call recorded")

// Store mirrors the current call slot so it survives a restart.
type Store interface {
	// SaveCall overwrites the slot. Records with a version lower than the
	// stored one are ignored.
	SaveCall(ctx context.Context, record *models.CallRecord) error
	// LoadCall returns the slot or ErrNoCall.
	LoadCall(ctx context.Context) (*models.CallRecord, error)
}
