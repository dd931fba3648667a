package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusRetry      OutboxStatus = "RETRY"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Domain event types written to the outbox.
const (
	EventPatientCreated      = "patient.created"
	EventPatientUpdated      = "patient.updated"
	EventPatientDeleted      = "patient.deleted"
	EventPatientTokenRotated = "patient.access_token_rotated"
	EventMedicationCreated   = "medication.created"
	EventMedicationUpdated   = "medication.updated"
	EventMedicationDeleted   = "medication.deleted"
	EventMedicationTaken     = "medication.taken"
	EventMedicationUntaken   = "medication.untaken"
	EventRoutineCreated      = "routine.created"
	EventRoutineUpdated      = "routine.updated"
	EventRoutineDeleted      = "routine.deleted"
	EventRoutineToggled      = "routine.toggled"
	EventMemoryCreated       = "memory.created"
	EventMemoryUpdated       = "memory.updated"
	EventMemoryDeleted       = "memory.deleted"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(eventType string, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
