package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type fixture struct {
	store *memstore.Store
	media *storage.LocalStore
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	media, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	guard := access.NewGuard(store.Patients(), store.Medications(), store.Routines(), store.Memories())
	svc := NewService(store.Patients(), store.Memories(), guard, media, event.NewEventService(store.Outbox()))
	return &fixture{store: store, media: media, svc: svc}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caregiver := uuid.New()

	b, err := f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: "Basma", Age: 80})
	require.NoError(t, err)
	a, err := f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: " Adel ", Age: 75})
	require.NoError(t, err)
	_, err = f.svc.CreatePatient(ctx, uuid.New(), &model.CreatePatientRequest{Name: "Someone else", Age: 60})
	require.NoError(t, err)

	assert.Equal(t, "Adel", a.Name)
	assert.Equal(t, 1, a.Version)
	assert.NotEqual(t, uuid.Nil, a.AccessToken)
	assert.NotEqual(t, a.AccessToken, b.AccessToken)

	patients, err := f.svc.ListPatients(ctx, caregiver)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Adel", patients[0].Name)
	assert.Equal(t, "Basma", patients[1].Name)

	_, err = f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: "  ", Age: 1})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestUpdateChecksOwnershipAndVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caregiver := uuid.New()
	p, err := f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: "Huda", Age: 70})
	require.NoError(t, err)

	name := "Huda K."
	_, err = f.svc.UpdatePatient(ctx, uuid.New(), p.ID, &model.UpdatePatientRequest{Name: &name})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	updated, err := f.svc.UpdatePatient(ctx, caregiver, p.ID, &model.UpdatePatientRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Huda K.", updated.Name)
	assert.Equal(t, 70, updated.Age)
	assert.Equal(t, 2, updated.Version)

	stale := 1
	_, err = f.svc.UpdatePatient(ctx, caregiver, p.ID, &model.UpdatePatientRequest{Name: &name, Version: &stale})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = f.svc.UpdatePatient(ctx, caregiver, uuid.New(), &model.UpdatePatientRequest{Name: &name})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestDeleteRemovesChildrenAndFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caregiver := uuid.New()
	p, err := f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: "Omar", Age: 82})
	require.NoError(t, err)

	image, err := f.media.Save(ctx, storage.KindImage, ".png", strings.NewReader("png"))
	require.NoError(t, err)
	record := &model.MemoryRecord{Base: model.NewBase(time.Now()), PatientID: p.ID, Caption: "Beach", ImagePath: &image, Version: 1}
	require.NoError(t, f.store.Memories().Create(ctx, record))

	routine := &model.Routine{Base: model.NewBase(time.Now()), PatientID: p.ID, ActivityName: "Walk", ScheduledAt: time.Now(), Version: 1}
	require.NoError(t, f.store.Routines().Create(ctx, routine))

	assert.True(t, apperrors.Is(f.svc.DeletePatient(ctx, uuid.New(), p.ID), apperrors.ErrForbidden))

	require.NoError(t, f.svc.DeletePatient(ctx, caregiver, p.ID))

	_, err = f.store.Patients().Get(ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = f.store.Memories().Get(ctx, record.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = f.store.Routines().Get(ctx, routine.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoFileExists(t, f.media.Path(storage.KindImage, image))
}

func TestRotateAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caregiver := uuid.New()
	p, err := f.svc.CreatePatient(ctx, caregiver, &model.CreatePatientRequest{Name: "Salma", Age: 90})
	require.NoError(t, err)

	rotated, err := f.svc.RotateAccessToken(ctx, caregiver, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, p.AccessToken, rotated.AccessToken)

	_, err = f.store.Patients().GetByAccessToken(ctx, p.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	got, err := f.store.Patients().GetByAccessToken(ctx, rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}
