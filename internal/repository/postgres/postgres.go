package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/caregiver-api/internal/repository"
)

func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Caregivers:     NewCaregiverRepository(db),
		Patients:       NewPatientRepository(base),
		Medications:    NewMedicationRepository(base),
		MedicationLogs: NewMedicationLogRepository(base),
		Routines:       NewRoutineRepository(base),
		Memories:       NewMemoryRecordRepository(base),
		Outbox:         NewOutboxRepository(base),
	}
}
