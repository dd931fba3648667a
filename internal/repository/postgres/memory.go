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

type memoryRecordRepository struct {
	BaseRepository
}

func NewMemoryRecordRepository(base BaseRepository) repository.MemoryRecordRepository {
	return &memoryRecordRepository{base}
}

func (r *memoryRecordRepository) Create(ctx context.Context, record *model.MemoryRecord) error {
	query := `
		INSERT INTO memory_records (id, patient_id, image_path, audio_path, caption, version, created_at, updated_at)
		VALUES (:id, :patient_id, :image_path, :audio_path, :caption, :version, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to create memory record: %w", err)
	}
	return nil
}

func (r *memoryRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MemoryRecord, error) {
	var record model.MemoryRecord
	if err := r.db.GetContext(ctx, &record, `SELECT * FROM memory_records WHERE id = $1`, id); err != nil {
		return nil, notFoundOr(err, "memory record", "get")
	}
	return &record, nil
}

func (r *memoryRecordRepository) Update(ctx context.Context, record *model.MemoryRecord) error {
	query := `
		UPDATE memory_records
		SET patient_id = $1, image_path = $2, audio_path = $3, caption = $4,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		record.PatientID,
		record.ImagePath,
		record.AudioPath,
		record.Caption,
		time.Now().UTC(),
		record.ID,
		record.Version,
	)
	if err := row.Scan(&record.Version, &record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.versionMismatch(ctx, "memory_records", "memory record", record.ID)
		}
		return fmt.Errorf("failed to update memory record: %w", err)
	}
	return nil
}

func (r *memoryRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory record: %w", err)
	}
	return expectOne(res, "memory record")
}

func (r *memoryRecordRepository) List(ctx context.Context, filter model.MemoryFilter) ([]*model.MemoryRecord, error) {
	query := `
		SELECT m.*
		FROM memory_records m
		JOIN patients p ON p.id = m.patient_id
		WHERE p.caregiver_id = $1
		AND ($2::uuid IS NULL OR m.patient_id = $2)
		ORDER BY m.created_at DESC
	`
	records := []*model.MemoryRecord{}
	if err := r.db.SelectContext(ctx, &records, query, filter.CaregiverID, filter.PatientID); err != nil {
		return nil, fmt.Errorf("failed to list memory records: %w", err)
	}
	return records, nil
}

func (r *memoryRecordRepository) CountByCaregiver(ctx context.Context, caregiverID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM memory_records m
		JOIN patients p ON p.id = m.patient_id
		WHERE p.caregiver_id = $1
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, caregiverID); err != nil {
		return 0, fmt.Errorf("failed to count memory records: %w", err)
	}
	return count, nil
}
