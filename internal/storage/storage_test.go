package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

func TestValidateExtension(t *testing.T) {
	ext, err := ValidateExtension(KindImage, "photo.PNG")
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)

	_, err = ValidateExtension(KindImage, "photo.bmp")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = ValidateExtension(KindImage, "noext")
	assert.Error(t, err)

	ext, err = ValidateExtension(KindAudio, "voice.m4a")
	require.NoError(t, err)
	assert.Equal(t, ".m4a", ext)

	_, err = ValidateExtension(KindAudio, "voice.png")
	assert.Error(t, err)
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(ctx, KindImage, ".png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.FileExists(t, store.Path(KindImage, name))

	rc, err := store.Open(ctx, KindImage, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, KindImage, name))
	assert.NoFileExists(t, store.Path(KindImage, name))

	_, err = store.Open(ctx, KindImage, name)
	assert.ErrorIs(t, err, ErrNotExist)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, KindImage, name))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), KindImage, "../secret.png")
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), KindAudio, "a/b.mp3"))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3Store(fake, "media", "caregiver")

	name, err := store.Save(ctx, KindAudio, ".mp3", strings.NewReader("mp3"))
	require.NoError(t, err)
	assert.Contains(t, fake.objects, "media/caregiver/audio/"+name)

	rc, err := store.Open(ctx, KindAudio, name)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "mp3", string(data))

	require.NoError(t, store.Delete(ctx, KindAudio, name))
	_, err = store.Open(ctx, KindAudio, name)
	assert.ErrorIs(t, err, ErrNotExist)
}
