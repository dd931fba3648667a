package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
)

// All repository interfaces in one file.
//
// Get, Update and Delete return an AppError with code ErrNotFound when the row
// does not exist. Update compares the entity's Version with the stored one and
// returns ErrConflict on mismatch; on success the entity carries the new version.
type (
	CaregiverRepository interface {
		Create(ctx context.Context, caregiver *model.Caregiver) error
		Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error)
		GetByEmail(ctx context.Context, email string) (*model.Caregiver, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByAccessToken(ctx context.Context, token uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		UpdateAccessToken(ctx context.Context, id uuid.UUID, token uuid.UUID) error
		Delete(ctx context.Context, id uuid.UUID) error
		// ListByCaregiver orders by name.
		ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*model.Patient, error)
		// ListRecent orders by creation time, newest first.
		ListRecent(ctx context.Context, caregiverID uuid.UUID, limit int) ([]*model.Patient, error)
		CountByCaregiver(ctx context.Context, caregiverID uuid.UUID) (int, error)
	}

	MedicationRepository interface {
		Create(ctx context.Context, medication *model.Medication) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		Update(ctx context.Context, medication *model.Medication) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.MedicationFilter) ([]*model.Medication, error)
	}

	// MedicationLogRepository keeps at most one log per (medication, date).
	MedicationLogRepository interface {
		// Toggle removes the log for the date if there is one, else creates it.
		Toggle(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay) (*model.AdherenceResult, error)
		// Set makes the taken state equal to taken. Repeating a call changes nothing.
		Set(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay, taken bool) (*model.AdherenceResult, error)
		ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*model.MedicationLog, error)
		ListForDate(ctx context.Context, medicationIDs []uuid.UUID, day model.Date) ([]*model.MedicationLog, error)
	}

	RoutineRepository interface {
		Create(ctx context.Context, routine *model.Routine) error
		Get(ctx context.Context, id uuid.UUID) (*model.Routine, error)
		Update(ctx context.Context, routine *model.Routine) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.RoutineFilter) ([]*model.Routine, error)
		// ToggleComplete flips is_completed and nothing else.
		ToggleComplete(ctx context.Context, id uuid.UUID) (*model.Routine, error)
	}

	MemoryRecordRepository interface {
		Create(ctx context.Context, record *model.MemoryRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MemoryRecord, error)
		Update(ctx context.Context, record *model.MemoryRecord) error
		Delete(ctx context.Context, id uuid.UUID) error
		// List orders newest first.
		List(ctx context.Context, filter model.MemoryFilter) ([]*model.MemoryRecord, error)
		CountByCaregiver(ctx context.Context, caregiverID uuid.UUID) (int, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock claims up to limit due events by moving them to PROCESSING.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed schedules a retry at retryAt, or parks the event as FAILED when retryAt is nil.
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, retryAt *time.Time) error
		// ReleaseStale returns events stuck in PROCESSING since before to RETRY.
		ReleaseStale(ctx context.Context, before time.Time) (int64, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories bundles every store backed by one database.
type Repositories struct {
	Caregivers     CaregiverRepository
	Patients       PatientRepository
	Medications    MedicationRepository
	MedicationLogs MedicationLogRepository
	Routines       RoutineRepository
	Memories       MemoryRecordRepository
	Outbox         OutboxRepository
}
