// Package access loads records on behalf of a caregiver and rejects anything
// that belongs to another caregiver's patient.
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type Guard struct {
	patients    repository.PatientRepository
	medications repository.MedicationRepository
	routines    repository.RoutineRepository
	memories    repository.MemoryRecordRepository
}

func NewGuard(
	patients repository.PatientRepository,
	medications repository.MedicationRepository,
	routines repository.RoutineRepository,
	memories repository.MemoryRecordRepository,
) *Guard {
	return &Guard{
		patients:    patients,
		medications: medications,
		routines:    routines,
		memories:    memories,
	}
}

// Patient returns the patient if caregiverID owns it.
func (g *Guard) Patient(ctx context.Context, caregiverID, patientID uuid.UUID) (*model.Patient, error) {
	patient, err := g.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.CaregiverID != caregiverID {
		return nil, apperrors.Forbidden("patient")
	}
	return patient, nil
}

// TargetPatient checks ownership of a patient named in a request body.
// A patient that does not exist is a validation error rather than a 404 on
// the record being written.
func (g *Guard) TargetPatient(ctx context.Context, caregiverID, patientID uuid.UUID) (*model.Patient, error) {
	if patientID == uuid.Nil {
		return nil, apperrors.Validation("patient_id is required")
	}
	patient, err := g.Patient(ctx, caregiverID, patientID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Validation("patient %s does not exist", patientID)
	}
	return patient, err
}

func (g *Guard) Medication(ctx context.Context, caregiverID, id uuid.UUID) (*model.Medication, *model.Patient, error) {
	medication, err := g.medications.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	patient, err := g.owner(ctx, caregiverID, medication.PatientID, "medication")
	if err != nil {
		return nil, nil, err
	}
	return medication, patient, nil
}

func (g *Guard) Routine(ctx context.Context, caregiverID, id uuid.UUID) (*model.Routine, error) {
	routine, err := g.routines.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := g.owner(ctx, caregiverID, routine.PatientID, "routine"); err != nil {
		return nil, err
	}
	return routine, nil
}

func (g *Guard) Memory(ctx context.Context, caregiverID, id uuid.UUID) (*model.MemoryRecord, error) {
	record, err := g.memories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := g.owner(ctx, caregiverID, record.PatientID, "memory record"); err != nil {
		return nil, err
	}
	return record, nil
}

// owner loads the parent patient of a child record. A dangling parent is
// reported as the child being missing.
func (g *Guard) owner(ctx context.Context, caregiverID, patientID uuid.UUID, resource string) (*model.Patient, error) {
	patient, err := g.patients.Get(ctx, patientID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound(resource, err)
	}
	if err != nil {
		return nil, err
	}
	if patient.CaregiverID != caregiverID {
		return nil, apperrors.Forbidden(resource)
	}
	return patient, nil
}
