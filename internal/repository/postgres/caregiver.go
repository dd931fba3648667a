package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type caregiverRepository struct {
	db *sqlx.DB
}

func NewCaregiverRepository(db *sqlx.DB) repository.CaregiverRepository {
	return &caregiverRepository{db: db}
}

func (r *caregiverRepository) Create(ctx context.Context, caregiver *model.Caregiver) error {
	query := `
		INSERT INTO caregivers (id, email, name, password_hash, created_at, updated_at)
		VALUES (:id, :email, :name, :password_hash, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, caregiver); err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("email already registered", nil)
		}
		return fmt.Errorf("failed to create caregiver: %w", err)
	}
	return nil
}

func (r *caregiverRepository) Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	var caregiver model.Caregiver
	err := r.db.GetContext(ctx, &caregiver, `SELECT * FROM caregivers WHERE id = $1`, id)
	if err != nil {
		return nil, notFoundOr(err, "caregiver", "get")
	}
	return &caregiver, nil
}

func (r *caregiverRepository) GetByEmail(ctx context.Context, email string) (*model.Caregiver, error) {
	var caregiver model.Caregiver
	err := r.db.GetContext(ctx, &caregiver, `SELECT * FROM caregivers WHERE email = $1`, email)
	if err != nil {
		return nil, notFoundOr(err, "caregiver", "get")
	}
	return &caregiver, nil
}
