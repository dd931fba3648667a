package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type PatientService interface {
	CreatePatient(ctx context.Context, caregiverID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, caregiverID, id uuid.UUID) (*model.Patient, error)
	ListPatients(ctx context.Context, caregiverID uuid.UUID) ([]*model.Patient, error)
	UpdatePatient(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, caregiverID, id uuid.UUID) error
	RotateAccessToken(ctx context.Context, caregiverID, id uuid.UUID) (*model.Patient, error)
}

type Service struct {
	repo     repository.PatientRepository
	memories repository.MemoryRecordRepository
	guard    *access.Guard
	media    storage.Store
	events   event.Emitter
	now      func() time.Time
}

func NewService(
	repo repository.PatientRepository,
	memories repository.MemoryRecordRepository,
	guard *access.Guard,
	media storage.Store,
	events event.Emitter,
) *Service {
	return &Service{
		repo:     repo,
		memories: memories,
		guard:    guard,
		media:    media,
		events:   events,
		now:      time.Now,
	}
}

func (s *Service) CreatePatient(ctx context.Context, caregiverID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Base:        model.NewBase(s.now()),
		CaregiverID: caregiverID,
		Name:        strings.TrimSpace(req.Name),
		Age:         req.Age,
		AccessToken: uuid.New(),
		Version:     1,
	}
	if err := validatePatient(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.events.Emit(ctx, model.EventPatientCreated, patient)
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, caregiverID, id uuid.UUID) (*model.Patient, error) {
	return s.guard.Patient(ctx, caregiverID, id)
}

func (s *Service) ListPatients(ctx context.Context, caregiverID uuid.UUID) ([]*model.Patient, error) {
	patients, err := s.repo.ListByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) UpdatePatient(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.guard.Patient(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		patient.Age = *req.Age
	}
	if req.Version != nil {
		patient.Version = *req.Version
	}
	if err := validatePatient(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventPatientUpdated, patient)
	return patient, nil
}

// DeletePatient removes the patient with everything recorded for them,
// including stored media.
func (s *Service) DeletePatient(ctx context.Context, caregiverID, id uuid.UUID) error {
	patient, err := s.guard.Patient(ctx, caregiverID, id)
	if err != nil {
		return err
	}

	records, err := s.memories.List(ctx, model.MemoryFilter{CaregiverID: caregiverID, PatientID: &patient.ID})
	if err != nil {
		return fmt.Errorf("failed to list memory records: %w", err)
	}

	if err := s.repo.Delete(ctx, patient.ID); err != nil {
		return err
	}

	for _, record := range records {
		removeFiles(ctx, s.media, record)
	}

	s.events.Emit(ctx, model.EventPatientDeleted, map[string]interface{}{
		"id":           patient.ID,
		"caregiver_id": patient.CaregiverID,
	})
	return nil
}

// RotateAccessToken invalidates the patient's read-only link.
func (s *Service) RotateAccessToken(ctx context.Context, caregiverID, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.guard.Patient(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	token := uuid.New()
	if err := s.repo.UpdateAccessToken(ctx, patient.ID, token); err != nil {
		return nil, err
	}
	patient.AccessToken = token

	s.events.Emit(ctx, model.EventPatientTokenRotated, map[string]interface{}{"id": patient.ID})
	return patient, nil
}

func validatePatient(patient *model.Patient) error {
	if patient.Name == "" {
		return apperrors.Validation("name is required")
	}
	if len(patient.Name) > 100 {
		return apperrors.Validation("name must be at most 100 characters")
	}
	if patient.Age < 0 || patient.Age > 150 {
		return apperrors.Validation("age must be between 0 and 150")
	}
	return nil
}

func removeFiles(ctx context.Context, media storage.Store, record *model.MemoryRecord) {
	images, audio := record.Files()
	for _, name := range images {
		if err := media.Delete(ctx, storage.KindImage, name); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("file", name).Msg("failed to remove image")
		}
	}
	for _, name := range audio {
		if err := media.Delete(ctx, storage.KindAudio, name); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("file", name).Msg("failed to remove audio")
		}
	}
}
