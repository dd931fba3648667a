package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, caregiver_id, name, age, access_token, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.CaregiverID,
		patient.Name,
		patient.Age,
		patient.AccessToken,
		patient.Version,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, `SELECT * FROM patients WHERE id = $1`, id); err != nil {
		return nil, notFoundOr(err, "patient", "get")
	}
	return &patient, nil
}

func (r *patientRepository) GetByAccessToken(ctx context.Context, token uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, `SELECT * FROM patients WHERE access_token = $1`, token); err != nil {
		return nil, notFoundOr(err, "patient", "get")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, age = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query, patient.Name, patient.Age, time.Now().UTC(), patient.ID, patient.Version)
	if err := row.Scan(&patient.Version, &patient.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.versionMismatch(ctx, "patients", "patient", patient.ID)
		}
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

func (r *patientRepository) UpdateAccessToken(ctx context.Context, id uuid.UUID, token uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patients SET access_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rotate access token: %w", err)
	}
	return expectOne(res, "patient")
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectOne(res, "patient")
}

func (r *patientRepository) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*model.Patient, error) {
	query := `SELECT * FROM patients WHERE caregiver_id = $1 ORDER BY name, created_at`
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, caregiverID); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) ListRecent(ctx context.Context, caregiverID uuid.UUID, limit int) ([]*model.Patient, error) {
	query := `SELECT * FROM patients WHERE caregiver_id = $1 ORDER BY created_at DESC LIMIT $2`
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, caregiverID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) CountByCaregiver(ctx context.Context, caregiverID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM patients WHERE caregiver_id = $1`, caregiverID); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}
