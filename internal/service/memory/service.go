package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
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
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

type MemoryService interface {
	CreateMemory(ctx context.Context, caregiverID uuid.UUID, in *model.CreateMemoryInput) (*model.MemoryRecord, error)
	GetMemory(ctx context.Context, caregiverID, id uuid.UUID) (*model.MemoryRecord, error)
	ListMemories(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.MemoryRecord, error)
	UpdateMemory(ctx context.Context, caregiverID, id uuid.UUID, in *model.UpdateMemoryInput) (*model.MemoryRecord, error)
	DeleteMemory(ctx context.Context, caregiverID, id uuid.UUID) error
	OpenMedia(ctx context.Context, caregiverID, id uuid.UUID, kind storage.Kind) (*Media, error)
}

// Media is an open stored file. The caller closes Content.
type Media struct {
	Name        string
	ContentType string
	Content     io.ReadCloser
}

type Service struct {
	repo           repository.MemoryRecordRepository
	guard          *access.Guard
	media          storage.Store
	events         event.Emitter
	metrics        *metrics.Metrics
	maxUploadBytes int64
	now            func() time.Time
}

func NewService(
	repo repository.MemoryRecordRepository,
	guard *access.Guard,
	media storage.Store,
	events event.Emitter,
	metrics *metrics.Metrics,
	maxUploadBytes int64,
) *Service {
	return &Service{
		repo:           repo,
		guard:          guard,
		media:          media,
		events:         events,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// pending is an upload that passed validation and may have been written.
type pending struct {
	kind   storage.Kind
	ext    string
	upload *model.Upload
	name   string
}

func (s *Service) CreateMemory(ctx context.Context, caregiverID uuid.UUID, in *model.CreateMemoryInput) (*model.MemoryRecord, error) {
	caption := strings.TrimSpace(in.Caption)
	if caption == "" {
		return nil, apperrors.Validation("caption is required")
	}
	if _, err := s.guard.TargetPatient(ctx, caregiverID, in.PatientID); err != nil {
		return nil, err
	}

	uploads, err := s.prepare(in.Image, in.Audio)
	if err != nil {
		return nil, err
	}

	record := &model.MemoryRecord{
		Base:      model.NewBase(s.now()),
		PatientID: in.PatientID,
		Caption:   caption,
		Version:   1,
	}

	if err := s.store(ctx, uploads); err != nil {
		return nil, err
	}
	applyUploads(record, uploads)

	if err := s.repo.Create(ctx, record); err != nil {
		s.discard(ctx, uploads)
		return nil, fmt.Errorf("failed to create memory record: %w", err)
	}

	s.events.Emit(ctx, model.EventMemoryCreated, record)
	return record, nil
}

func (s *Service) GetMemory(ctx context.Context, caregiverID, id uuid.UUID) (*model.MemoryRecord, error) {
	return s.guard.Memory(ctx, caregiverID, id)
}

func (s *Service) ListMemories(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.MemoryRecord, error) {
	if patientID != nil {
		if _, err := s.guard.Patient(ctx, caregiverID, *patientID); err != nil {
			return nil, err
		}
	}
	records, err := s.repo.List(ctx, model.MemoryFilter{CaregiverID: caregiverID, PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list memory records: %w", err)
	}
	return records, nil
}

// UpdateMemory replaces the caption and, optionally, the stored files.
// Replaced files are removed only after the record is saved.
func (s *Service) UpdateMemory(ctx context.Context, caregiverID, id uuid.UUID, in *model.UpdateMemoryInput) (*model.MemoryRecord, error) {
	record, err := s.guard.Memory(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	if in.PatientID != nil && *in.PatientID != record.PatientID {
		if _, err := s.guard.TargetPatient(ctx, caregiverID, *in.PatientID); err != nil {
			return nil, err
		}
		record.PatientID = *in.PatientID
	}
	if in.Caption != nil {
		record.Caption = strings.TrimSpace(*in.Caption)
	}
	if record.Caption == "" {
		return nil, apperrors.Validation("caption is required")
	}
	if in.Version != nil {
		record.Version = *in.Version
	}

	uploads, err := s.prepare(in.Image, in.Audio)
	if err != nil {
		return nil, err
	}

	var replaced []pending
	if in.Image != nil || in.RemoveImage {
		if record.ImagePath != nil {
			replaced = append(replaced, pending{kind: storage.KindImage, name: *record.ImagePath})
		}
		record.ImagePath = nil
	}
	if in.Audio != nil || in.RemoveAudio {
		if record.AudioPath != nil {
			replaced = append(replaced, pending{kind: storage.KindAudio, name: *record.AudioPath})
		}
		record.AudioPath = nil
	}

	if err := s.store(ctx, uploads); err != nil {
		return nil, err
	}
	applyUploads(record, uploads)

	if err := s.repo.Update(ctx, record); err != nil {
		s.discard(ctx, uploads)
		return nil, err
	}

	s.discard(ctx, replaced)
	s.events.Emit(ctx, model.EventMemoryUpdated, record)
	return record, nil
}

func (s *Service) DeleteMemory(ctx context.Context, caregiverID, id uuid.UUID) error {
	record, err := s.guard.Memory(ctx, caregiverID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		return err
	}

	s.discard(ctx, stored(record))
	s.events.Emit(ctx, model.EventMemoryDeleted, map[string]interface{}{
		"id":         record.ID,
		"patient_id": record.PatientID,
	})
	return nil
}

func (s *Service) OpenMedia(ctx context.Context, caregiverID, id uuid.UUID, kind storage.Kind) (*Media, error) {
	record, err := s.guard.Memory(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	var name *string
	switch kind {
	case storage.KindImage:
		name = record.ImagePath
	case storage.KindAudio:
		name = record.AudioPath
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown media kind %q", kind), nil)
	}
	if name == nil || *name == "" {
		return nil, apperrors.NotFound(string(kind), nil)
	}

	content, err := s.media.Open(ctx, kind, *name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, apperrors.NotFound(string(kind), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", kind, err)
	}
	return &Media{
		Name:        *name,
		ContentType: storage.ContentType(kind, *name),
		Content:     content,
	}, nil
}

// prepare validates every upload before any of them is written.
func (s *Service) prepare(image, audio *model.Upload) ([]pending, error) {
	var out []pending
	for _, u := range []struct {
		kind   storage.Kind
		upload *model.Upload
	}{{storage.KindImage, image}, {storage.KindAudio, audio}} {
		if u.upload == nil {
			continue
		}
		ext, err := storage.ValidateExtension(u.kind, u.upload.Filename)
		if err != nil {
			return nil, err
		}
		if s.maxUploadBytes > 0 && u.upload.Size > s.maxUploadBytes {
			return nil, apperrors.Validation("%s exceeds the %d byte upload limit", u.upload.Filename, s.maxUploadBytes)
		}
		out = append(out, pending{kind: u.kind, ext: ext, upload: u.upload})
	}
	return out, nil
}

func (s *Service) store(ctx context.Context, uploads []pending) error {
	for i := range uploads {
		name, err := s.media.Save(ctx, uploads[i].kind, uploads[i].ext, uploads[i].upload.Content)
		if err != nil {
			s.discard(ctx, uploads[:i])
			return fmt.Errorf("failed to store %s: %w", uploads[i].kind, err)
		}
		uploads[i].name = name
		if s.metrics != nil {
			s.metrics.MediaStored.WithLabelValues(string(uploads[i].kind)).Inc()
		}
	}
	return nil
}

// discard removes stored files. Failures only leave orphans behind, so they are logged.
func (s *Service) discard(ctx context.Context, files []pending) {
	for _, f := range files {
		if f.name == "" {
			continue
		}
		if err := s.media.Delete(ctx, f.kind, f.name); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("kind", string(f.kind)).Str("file", f.name).Msg("failed to remove media file")
		}
	}
}

func applyUploads(record *model.MemoryRecord, uploads []pending) {
	for _, u := range uploads {
		name := u.name
		switch u.kind {
		case storage.KindImage:
			record.ImagePath = &name
		case storage.KindAudio:
			record.AudioPath = &name
		}
	}
}

func stored(record *model.MemoryRecord) []pending {
	var out []pending
	images, audio := record.Files()
	for _, name := range images {
		out = append(out, pending{kind: storage.KindImage, name: name})
	}
	for _, name := range audio {
		out = append(out, pending{kind: storage.KindAudio, name: name})
	}
	return out
}
