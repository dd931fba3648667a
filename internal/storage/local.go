package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps files in <root>/<kind>/<name>.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	for _, kind := range []Kind{KindImage, KindAudio} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media directory: %w", err)
		}
	}
	return &LocalStore{root: root}, nil
}

// Path returns the on-disk location of a stored file.
func (s *LocalStore) Path(kind Kind, name string) string {
	return filepath.Join(s.root, string(kind), name)
}

func (s *LocalStore) Save(ctx context.Context, kind Kind, ext string, r io.Reader) (string, error) {
	name := NewName(ext)
	if err := checkName(kind, name); err != nil {
		return "", err
	}

	f, err := os.OpenFile(s.Path(kind, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return name, nil
}

func (s *LocalStore) Open(ctx context.Context, kind Kind, name string) (io.ReadCloser, error) {
	if err := checkName(kind, name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(kind, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, kind Kind, name string) error {
	if err := checkName(kind, name); err != nil {
		return err
	}
	err := os.Remove(s.Path(kind, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
