package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

// CallStatus is the lifecycle state of the call slot.
type CallStatus int

const (
	StatusIdle CallStatus = iota
	StatusActive
	StatusCompleted
	StatusFailed
)

func (s CallStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusActive:
		return "Active"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsTerminal reports whether no further response will be recorded.
func (s CallStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseCallStatus is the inverse of CallStatus.String.
func ParseCallStatus(s string) (CallStatus, error) {
	switch s {
	case "Idle":
		return StatusIdle, nil
	case "Active":
		return StatusActive, nil
	case "Completed":
		return StatusCompleted, nil
	case "Failed":
		return StatusFailed, nil
	}
	return StatusIdle, fmt.Errorf("unknown call status %q", s)
}

// ErrAlreadyActive is returned when a call start is attempted while another
// call is active or still being placed.
var ErrAlreadyActive = errors.New("a call is already active")

// ConnectionRequest carries the per-call parameters of a new outbound call.
type ConnectionRequest struct {
	StartMessage string
	EndMessage   string
}

// CallSnapshot is a consistent copy of the call slot.
type CallSnapshot struct {
	ConnectionID string
	Status       CallStatus
	StartMessage string
	EndMessage   string
	Response     string
	HasResponse  bool
	Version      uint64
	StartedAt    time.Time
}

// Record converts the snapshot to its persisted form.
func (s CallSnapshot) Record() *models.CallRecord {
	record := &models.CallRecord{
		ConnectionID: s.ConnectionID,
		Status:       s.Status.String(),
		StartMessage: s.StartMessage,
		EndMessage:   s.EndMessage,
		Version:      s.Version,
		StartedAt:    s.StartedAt,
	}
	if s.HasResponse {
		response := s.Response
		record.Response = &response
	}
	return record
}

// CallSession holds the single call slot. Every field is guarded by mu and
// every method reads or writes the whole slot in one critical section.
type CallSession struct {
	mu           sync.RWMutex
	id           string
	status       CallStatus
	startMessage string
	endMessage   string
	response     *string
	starting     bool
	version      uint64
	startedAt    time.Time
}

// NewCallSession returns an idle session.
func NewCallSession() *CallSession {
	return &CallSession{status: StatusIdle}
}

// StartCall reserves the slot for a new outbound call. It fails while a
// call is active or another start has not yet been confirmed or aborted.
func (s *CallSession) StartCall(startMessage, endMessage string) (ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive || s.starting {
		return ConnectionRequest{}, ErrAlreadyActive
	}

	s.starting = true
	s.id = ""
	s.response = nil
	s.status = StatusIdle
	s.startMessage = startMessage
	s.endMessage = endMessage
	s.version++

	return ConnectionRequest{StartMessage: startMessage, EndMessage: endMessage}, nil
}

// MarkActive confirms the reserved start with the provider's connection id.
func (s *CallSession) MarkActive(id string) (CallSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.starting {
		return s.snapshotLocked(), errors.New("no call start in progress")
	}
	if id == "" {
		return s.snapshotLocked(), errors.New("empty connection id")
	}

	s.starting = false
	s.id = id
	s.status = StatusActive
	s.startedAt = time.Now()
	s.version++
	return s.snapshotLocked(), nil
}

// AbortStart releases a reservation whose outbound call could not be placed.
func (s *CallSession) AbortStart() CallSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.starting {
		s.starting = false
		s.status = StatusIdle
		s.version++
	}
	return s.snapshotLocked()
}

// StoreResponse records the outcome of the active call id. It returns false
// and changes nothing once that call has left Active or the slot belongs to
// another call.
func (s *CallSession) StoreResponse(id, text string, finalStatus CallStatus) (CallSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive || s.id != id || !finalStatus.IsTerminal() {
		return s.snapshotLocked(), false
	}

	response := text
	s.response = &response
	s.status = finalStatus
	s.version++
	return s.snapshotLocked(), true
}

// Expire fails the active call id with text if it was connected before
// cutoff. It returns false when the slot has moved on.
func (s *CallSession) Expire(id string, cutoff time.Time, text string) (CallSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive || s.id != id || !s.startedAt.Before(cutoff) {
		return s.snapshotLocked(), false
	}

	response := text
	s.response = &response
	s.status = StatusFailed
	s.version++
	return s.snapshotLocked(), true
}

// Restore seeds an idle session from a persisted record.
func (s *CallSession) Restore(record *models.CallRecord) error {
	status, err := ParseCallStatus(record.Status)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle || s.starting || s.id != "" {
		return errors.New("session already in use")
	}
	if status != StatusIdle && record.ConnectionID == "" {
		return fmt.Errorf("%s call without connection id", status)
	}

	s.id = record.ConnectionID
	s.status = status
	s.startMessage = record.StartMessage
	s.endMessage = record.EndMessage
	s.response = nil
	if record.Response != nil {
		response := *record.Response
		s.response = &response
	}
	s.version = record.Version
	s.startedAt = record.StartedAt

	log.Printf("♻️  Restored call %s (%s)", s.id, s.status)
	return nil
}

// Status returns the lifecycle state of the slot.
func (s *CallSession) Status() CallStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Response returns the recognised transcript, if any.
func (s *CallSession) Response() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.response == nil {
		return "", false
	}
	return *s.response, true
}

// IsActive reports whether a call is Active or still being placed. A start
// reserved by StartCall counts as active until MarkActive or AbortStart.
func (s *CallSession) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusActive || s.starting
}

// Snapshot copies the whole slot under one lock.
func (s *CallSession) Snapshot() CallSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *CallSession) snapshotLocked() CallSnapshot {
	snap := CallSnapshot{
		ConnectionID: s.id,
		Status:       s.status,
		StartMessage: s.startMessage,
		EndMessage:   s.endMessage,
		Version:      s.version,
		StartedAt:    s.startedAt,
	}
	if s.response != nil {
		snap.Response = *s.response
		snap.HasResponse = true
	}
	return snap
}
