package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup; every statement is idempotent.
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	email       text NOT NULL UNIQUE,
	name        text NOT NULL,
	phone       text NOT NULL DEFAULT '',
	role        text NOT NULL DEFAULT 'citizen',
	active      boolean NOT NULL DEFAULT true,
	password_h  text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	title        text NOT NULL,
	description  text NOT NULL,
	category     text NOT NULL,
	issue_type   text NOT NULL,
	status       text NOT NULL DEFAULT 'pending',
	address      text NOT NULL,
	latitude     double precision NOT NULL,
	longitude    double precision NOT NULL,
	images       jsonb NOT NULL DEFAULT '[]',
	reported_by  jsonb NOT NULL,
	assigned_to  uuid REFERENCES users(id) ON DELETE SET NULL,
	admin_notes  text NOT NULL DEFAULT '',
	resolved_at  timestamptz,
	priority     integer NOT NULL DEFAULT 3,
	tags         text[] NOT NULL DEFAULT '{}',
	upvotes      integer NOT NULL DEFAULT 0,
	downvotes    integer NOT NULL DEFAULT 0,
	version      bigint NOT NULL DEFAULT 0,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS reports_category_idx   ON reports (category);
CREATE INDEX IF NOT EXISTS reports_status_idx     ON reports (status);
CREATE INDEX IF NOT EXISTS reports_priority_idx   ON reports (priority DESC);
CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);
CREATE INDEX IF NOT EXISTS reports_coords_idx     ON reports (latitude, longitude);
`

// Migrate creates the tables and indexes if they are missing.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
