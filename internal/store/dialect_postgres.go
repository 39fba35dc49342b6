package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string    { return "NOW()" }
func (d *PostgresDialect) UUIDDefault() string { return "DEFAULT gen_random_uuid()" }

func (d *PostgresDialect) MapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
		}
	}
	return err
}

func (d *PostgresDialect) SchemaSQL() string {
	return pgSchemaSQL
}

const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS trees (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name             TEXT NOT NULL,
    organization_id  TEXT,
    created_at       TIMESTAMPTZ DEFAULT NOW(),
    updated_at       TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS nodes (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tree_id     UUID NOT NULL REFERENCES trees(id) ON DELETE CASCADE,
    parent_id   UUID REFERENCES nodes(id) ON DELETE CASCADE,
    label       TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT 'leaf',
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_nodes_tree ON nodes(tree_id);

CREATE TABLE IF NOT EXISTS node_variables (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    node_id           UUID NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    source_ref        TEXT,
    source_type       TEXT,
    fixed_value       TEXT,
    exposed_key       TEXT,
    display_name      TEXT,
    selected_node_id  UUID,
    unit              TEXT,
    created_at        TIMESTAMPTZ DEFAULT NOW(),
    updated_at        TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_node_variables_node ON node_variables(node_id);

CREATE TABLE IF NOT EXISTS node_formulas (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    node_id     UUID NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name        TEXT NOT NULL DEFAULT '',
    tokens      TEXT NOT NULL DEFAULT '[]',
    ord         INT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_node_formulas_node ON node_formulas(node_id);

CREATE TABLE IF NOT EXISTS node_conditions (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    node_id        UUID NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name           TEXT NOT NULL DEFAULT '',
    condition_set  TEXT NOT NULL DEFAULT '{}',
    ord            INT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ DEFAULT NOW(),
    updated_at     TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_node_conditions_node ON node_conditions(node_id);

CREATE TABLE IF NOT EXISTS node_tables (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    node_id     UUID NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name        TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT 'lookup',
    meta        TEXT NOT NULL DEFAULT '{}',
    ord         INT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_node_tables_node ON node_tables(node_id);

CREATE TABLE IF NOT EXISTS fields (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    label            TEXT NOT NULL DEFAULT '',
    organization_id  TEXT,
    created_at       TIMESTAMPTZ DEFAULT NOW(),
    updated_at       TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS field_dependencies (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    field_id       UUID NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    sequence       TEXT NOT NULL DEFAULT '[]',
    ord            INT NOT NULL DEFAULT 0,
    depends_on_id  TEXT NOT NULL,
    condition      TEXT NOT NULL DEFAULT '',
    value          TEXT,
    params         TEXT,
    created_at     TIMESTAMPTZ DEFAULT NOW(),
    updated_at     TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_field_dependencies_field ON field_dependencies(field_id);

CREATE TABLE IF NOT EXISTS field_formulas (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    field_id         UUID NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
    name             TEXT NOT NULL DEFAULT '',
    sequence         TEXT NOT NULL DEFAULT '[]',
    ord              INT NOT NULL DEFAULT 0,
    target_property  TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ DEFAULT NOW(),
    updated_at       TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_field_formulas_field ON field_formulas(field_id);

CREATE TABLE IF NOT EXISTS users (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email          TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL,
    roles          TEXT NOT NULL DEFAULT '[]',
    created_at     TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    token       TEXT PRIMARY KEY,
    user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at  TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW()
);
`
