package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaRepository owns the idempotent DDL executed by the bootstrap flow.
type SchemaRepository struct {
	db *sqlx.DB
}

// NewSchemaRepository constructs a SchemaRepository.
func NewSchemaRepository(db *sqlx.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS classes (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL,
		login TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		class_id UUID REFERENCES classes(id),
		enrolled_at DATE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS installments (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		due_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		paid_at DATE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_installments_user_due ON installments (user_id, status, due_date)`,
	`CREATE TABLE IF NOT EXISTS mock_exams (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		class_id UUID NOT NULL REFERENCES classes(id),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id UUID PRIMARY KEY,
		exam_id UUID NOT NULL REFERENCES mock_exams(id) ON DELETE CASCADE,
		prompt TEXT NOT NULL,
		choice_a TEXT NOT NULL,
		choice_b TEXT NOT NULL,
		choice_c TEXT NOT NULL,
		choice_d TEXT NOT NULL,
		choice_e TEXT NOT NULL,
		correct TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exam_results (
		id UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		exam_id UUID NOT NULL REFERENCES mock_exams(id) ON DELETE CASCADE,
		correct_count INTEGER NOT NULL,
		total_count INTEGER NOT NULL,
		percentage DOUBLE PRECISION NOT NULL,
		taken_at DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS materials (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		stored_file TEXT NOT NULL,
		class_id UUID NOT NULL REFERENCES classes(id),
		uploaded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id UUID,
		new_values JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates all tables if absent. Safe to call repeatedly.
func (r *SchemaRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
