package postgres

// SchemaV1 creates the caregiver tables.
const SchemaV1 = `
CREATE TABLE IF NOT EXISTS caregivers (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS patients (
	id           UUID PRIMARY KEY,
	caregiver_id UUID NOT NULL REFERENCES caregivers(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	age          INTEGER NOT NULL DEFAULT 0 CHECK (age BETWEEN 0 AND 150),
	access_token UUID NOT NULL UNIQUE,
	version      INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_patients_caregiver ON patients(caregiver_id);

CREATE TABLE IF NOT EXISTS medications (
	id             UUID PRIMARY KEY,
	patient_id     UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	name           VARCHAR(100) NOT NULL,
	dosage         VARCHAR(100) NOT NULL,
	frequency_type TEXT NOT NULL DEFAULT 'Daily',
	selected_days  TEXT,
	scheduled_time TIME NOT NULL,
	start_date     DATE NOT NULL,
	end_date       DATE NOT NULL,
	version        INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (start_date <= end_date)
);
CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications(patient_id);

CREATE TABLE IF NOT EXISTS medication_logs (
	id            UUID PRIMARY KEY,
	medication_id UUID NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
	taken_date    DATE NOT NULL,
	taken_time    TIME NOT NULL,
	status        TEXT NOT NULL DEFAULT 'Taken',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (medication_id, taken_date)
);

CREATE TABLE IF NOT EXISTS routines (
	id            UUID PRIMARY KEY,
	patient_id    UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	activity_name TEXT NOT NULL,
	scheduled_at  TIMESTAMPTZ NOT NULL,
	is_completed  BOOLEAN NOT NULL DEFAULT FALSE,
	version       INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_routines_patient ON routines(patient_id, scheduled_at);

CREATE TABLE IF NOT EXISTS memory_records (
	id         UUID PRIMARY KEY,
	patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	image_path TEXT,
	audio_path TEXT,
	caption    TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_memory_records_patient ON memory_records(patient_id, created_at DESC);
`

// SchemaV2 adds the transactional outbox.
const SchemaV2 = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id            UUID PRIMARY KEY,
	event_type    TEXT NOT NULL,
	payload       JSONB NOT NULL,
	status        TEXT NOT NULL DEFAULT 'PENDING',
	error_message TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	retry_at      TIMESTAMPTZ,
	processed_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_status ON outbox_events(status, created_at);
`

var migrations = []string{SchemaV1, SchemaV2}
