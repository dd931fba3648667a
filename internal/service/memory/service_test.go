package memory

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type fixture struct {
	store     *memstore.Store
	media     *storage.LocalStore
	svc       *Service
	caregiver uuid.UUID
	patient   *model.Patient
}

func newFixture(t *testing.T, repo func(*memstore.Store) repository.MemoryRecordRepository) *fixture {
	t.Helper()
	store := memstore.New()
	root := t.TempDir()
	media, err := storage.NewLocalStore(root)
	require.NoError(t, err)
	guard := access.NewGuard(store.Patients(), store.Medications(), store.Routines(), store.Memories())

	memories := store.Memories()
	if repo != nil {
		memories = repo(store)
	}
	svc := NewService(memories, guard, media, event.NewEventService(store.Outbox()), nil, 1<<20)

	caregiver := uuid.New()
	patient := &model.Patient{Base: model.NewBase(time.Now()), CaregiverID: caregiver, Name: "Mona", AccessToken: uuid.New(), Version: 1}
	require.NoError(t, store.Patients().Create(context.Background(), patient))
	return &fixture{store: store, media: media, svc: svc, caregiver: caregiver, patient: patient}
}

func upload(name, body string) *model.Upload {
	return &model.Upload{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestCreateRejectsDisallowedExtension(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateMemory(context.Background(), f.caregiver, &model.CreateMemoryInput{
		PatientID: f.patient.ID,
		Caption:   "Garden",
		Image:     upload("photo.bmp", "bmp"),
		Audio:     upload("voice.mp3", "mp3"),
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	// nothing was written, not even the valid audio clip
	assert.Zero(t, countFiles(t, f.media.Path(storage.KindImage, "")))
	assert.Zero(t, countFiles(t, f.media.Path(storage.KindAudio, "")))
	list, err := f.svc.ListMemories(context.Background(), f.caregiver, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateStoresAndServesMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	record, err := f.svc.CreateMemory(ctx, f.caregiver, &model.CreateMemoryInput{
		PatientID: f.patient.ID,
		Caption:   "Wedding day",
		Image:     upload("photo.PNG", "png-bytes"),
		Audio:     upload("voice.m4a", "m4a-bytes"),
	})
	require.NoError(t, err)
	require.NotNil(t, record.ImagePath)
	require.NotNil(t, record.AudioPath)
	assert.True(t, strings.HasSuffix(*record.ImagePath, ".png"))
	assert.FileExists(t, f.media.Path(storage.KindImage, *record.ImagePath))

	media, err := f.svc.OpenMedia(ctx, f.caregiver, record.ID, storage.KindImage)
	require.NoError(t, err)
	data, err := io.ReadAll(media.Content)
	require.NoError(t, err)
	require.NoError(t, media.Content.Close())
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", media.ContentType)

	_, err = f.svc.OpenMedia(ctx, uuid.New(), record.ID, storage.KindImage)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestDeleteRemovesFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	record, err := f.svc.CreateMemory(ctx, f.caregiver, &model.CreateMemoryInput{
		PatientID: f.patient.ID, Caption: "Picnic", Image: upload("p.jpg", "jpg"),
	})
	require.NoError(t, err)
	path := f.media.Path(storage.KindImage, *record.ImagePath)

	assert.True(t, apperrors.Is(f.svc.DeleteMemory(ctx, uuid.New(), record.ID), apperrors.ErrForbidden))
	assert.FileExists(t, path)

	require.NoError(t, f.svc.DeleteMemory(ctx, f.caregiver, record.ID))
	assert.NoFileExists(t, path)
	_, err = f.svc.GetMemory(ctx, f.caregiver, record.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateReplacesFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	record, err := f.svc.CreateMemory(ctx, f.caregiver, &model.CreateMemoryInput{
		PatientID: f.patient.ID, Caption: "Old", Image: upload("a.gif", "gif"), Audio: upload("a.mp3", "mp3"),
	})
	require.NoError(t, err)
	oldImage := f.media.Path(storage.KindImage, *record.ImagePath)
	oldAudio := f.media.Path(storage.KindAudio, *record.AudioPath)

	caption := "New"
	updated, err := f.svc.UpdateMemory(ctx, f.caregiver, record.ID, &model.UpdateMemoryInput{
		Caption:     &caption,
		Image:       upload("b.jpeg", "jpeg"),
		RemoveAudio: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Caption)
	assert.Nil(t, updated.AudioPath)
	require.NotNil(t, updated.ImagePath)
	assert.FileExists(t, f.media.Path(storage.KindImage, *updated.ImagePath))
	assert.NoFileExists(t, oldImage)
	assert.NoFileExists(t, oldAudio)

	_, err = f.svc.UpdateMemory(ctx, f.caregiver, record.ID, &model.UpdateMemoryInput{Image: upload("c.tiff", "tiff")})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.FileExists(t, f.media.Path(storage.KindImage, *updated.ImagePath))
}

type failingCreate struct {
	repository.MemoryRecordRepository
}

func (failingCreate) Create(context.Context, *model.MemoryRecord) error {
	return errors.New("insert failed")
}

func TestCreateRemovesFilesWhenInsertFails(t *testing.T) {
	f := newFixture(t, func(s *memstore.Store) repository.MemoryRecordRepository {
		return failingCreate{s.Memories()}
	})
	_, err := f.svc.CreateMemory(context.Background(), f.caregiver, &model.CreateMemoryInput{
		PatientID: f.patient.ID, Caption: "Lost", Image: upload("x.png", "png"),
	})
	require.Error(t, err)
	assert.Zero(t, countFiles(t, f.media.Path(storage.KindImage, "")))
}

func TestCreateRequiresCaptionAndSize(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateMemory(context.Background(), f.caregiver, &model.CreateMemoryInput{PatientID: f.patient.ID})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	big := &model.Upload{Filename: "big.png", Size: 2 << 20, Content: strings.NewReader("")}
	_, err = f.svc.CreateMemory(context.Background(), f.caregiver, &model.CreateMemoryInput{PatientID: f.patient.ID, Caption: "Big", Image: big})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
