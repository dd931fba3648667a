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

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{base}
}

func (r *medicationRepository) Create(ctx context.Context, m *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, patient_id, name, dosage, frequency_type, selected_days,
			scheduled_time, start_date, end_date, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.PatientID,
		m.Name,
		m.Dosage,
		m.FrequencyType,
		m.SelectedDays,
		m.ScheduledTime,
		m.StartDate,
		m.EndDate,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	var m model.Medication
	if err := r.db.GetContext(ctx, &m, `SELECT * FROM medications WHERE id = $1`, id); err != nil {
		return nil, notFoundOr(err, "medication", "get")
	}
	return &m, nil
}

func (r *medicationRepository) Update(ctx context.Context, m *model.Medication) error {
	query := `
		UPDATE medications
		SET patient_id = $1, name = $2, dosage = $3, frequency_type = $4, selected_days = $5,
			scheduled_time = $6, start_date = $7, end_date = $8,
			updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING version, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		m.PatientID,
		m.Name,
		m.Dosage,
		m.FrequencyType,
		m.SelectedDays,
		m.ScheduledTime,
		m.StartDate,
		m.EndDate,
		time.Now().UTC(),
		m.ID,
		m.Version,
	)
	if err := row.Scan(&m.Version, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.versionMismatch(ctx, "medications", "medication", m.ID)
		}
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return expectOne(res, "medication")
}

func (r *medicationRepository) List(ctx context.Context, filter model.MedicationFilter) ([]*model.Medication, error) {
	query := `
		SELECT m.*
		FROM medications m
		JOIN patients p ON p.id = m.patient_id
		WHERE p.caregiver_id = $1
		AND ($2::uuid IS NULL OR m.patient_id = $2)
		ORDER BY m.scheduled_time, m.name
	`
	meds := []*model.Medication{}
	if err := r.db.SelectContext(ctx, &meds, query, filter.CaregiverID, filter.PatientID); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}
