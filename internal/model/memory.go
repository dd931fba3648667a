package model

import (
	"io"

	"github.com/google/uuid"
)

type MemoryRecord struct {
	Base
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	ImagePath *string   `db:"image_path" json:"image_path,omitempty"`
	AudioPath *string   `db:"audio_path" json:"audio_path,omitempty"`
	Caption   string    `db:"caption" json:"caption"`
	Version   int       `db:"version" json:"version"`
}

// Files lists the stored media names referenced by the record.
func (m *MemoryRecord) Files() (images, audio []string) {
	if m.ImagePath != nil && *m.ImagePath != "" {
		images = append(images, *m.ImagePath)
	}
	if m.AudioPath != nil && *m.AudioPath != "" {
		audio = append(audio, *m.AudioPath)
	}
	return images, audio
}

// Upload is an incoming media file.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type CreateMemoryInput struct {
	PatientID uuid.UUID
	Caption   string
	Image     *Upload
	Audio     *Upload
}

type UpdateMemoryInput struct {
	PatientID   *uuid.UUID
	Caption     *string
	Image       *Upload
	Audio       *Upload
	RemoveImage bool
	RemoveAudio bool
	Version     *int
}

type MemoryFilter struct {
	CaregiverID uuid.UUID
	PatientID   *uuid.UUID
}
