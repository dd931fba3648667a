// Package storage keeps uploaded media (memory photos and voice clips).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

// Kind groups stored files by media type.
type Kind string

const (
	KindImage Kind = "images"
	KindAudio Kind = "audio"
)

var ErrNotExist = errors.New("stored file does not exist")

var allowedExtensions = map[Kind]map[string]string{
	KindImage: {
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
	},
	KindAudio: {
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".m4a":  "audio/mp4",
		".ogg":  "audio/ogg",
		".aac":  "audio/aac",
		".webm": "audio/webm",
	},
}

// Store persists media files under generated names.
type Store interface {
	// Save writes r as a new file and returns its generated name.
	Save(ctx context.Context, kind Kind, ext string, r io.Reader) (string, error)
	Open(ctx context.Context, kind Kind, name string) (io.ReadCloser, error)
	// Delete removes a file. A missing file is not an error.
	Delete(ctx context.Context, kind Kind, name string) error
}

// ValidateExtension returns the lower-cased extension of filename if it is allowed for kind.
func ValidateExtension(kind Kind, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[kind][ext]; !ok {
		return "", apperrors.Validation("file type %q is not allowed for %s", ext, kind)
	}
	return ext, nil
}

// ContentType maps a stored file name to its MIME type.
func ContentType(kind Kind, name string) string {
	if ct, ok := allowedExtensions[kind][strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NewName generates a collision-free file name.
func NewName(ext string) string {
	return uuid.NewString() + ext
}

func checkName(kind Kind, name string) error {
	if _, ok := allowedExtensions[kind]; !ok {
		return fmt.Errorf("unknown media kind %q", kind)
	}
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
