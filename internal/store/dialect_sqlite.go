package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string    { return "datetime('now')" }
func (d *SQLiteDialect) UUIDDefault() string { return "" }

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	}
	return err
}

func (d *SQLiteDialect) SchemaSQL() string {
	return sqliteSchemaSQL
}

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS trees (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    organization_id  TEXT,
    created_at       TEXT DEFAULT (datetime('now')),
    updated_at       TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS nodes (
    id          TEXT PRIMARY KEY,
    tree_id     TEXT NOT NULL REFERENCES trees(id) ON DELETE CASCADE,
    parent_id   TEXT REFERENCES nodes(id) ON DELETE CASCADE,
    label       TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT 'leaf',
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_nodes_tree ON nodes(tree_id);

CREATE TABLE IF NOT EXISTS node_variables (
    id                TEXT PRIMARY KEY,
    node_id           TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    source_ref        TEXT,
    source_type       TEXT,
    fixed_value       TEXT,
    exposed_key       TEXT,
    display_name      TEXT,
    selected_node_id  TEXT,
    unit              TEXT,
    created_at        TEXT DEFAULT (datetime('now')),
    updated_at        TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_node_variables_node ON node_variables(node_id);

CREATE TABLE IF NOT EXISTS node_formulas (
    id          TEXT PRIMARY KEY,
    node_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name        TEXT NOT NULL DEFAULT '',
    tokens      TEXT NOT NULL DEFAULT '[]',
    ord         INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_node_formulas_node ON node_formulas(node_id);

CREATE TABLE IF NOT EXISTS node_conditions (
    id             TEXT PRIMARY KEY,
    node_id        TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name           TEXT NOT NULL DEFAULT '',
    condition_set  TEXT NOT NULL DEFAULT '{}',
    ord            INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT DEFAULT (datetime('now')),
    updated_at     TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_node_conditions_node ON node_conditions(node_id);

CREATE TABLE IF NOT EXISTS node_tables (
    id          TEXT PRIMARY KEY,
    node_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    name        TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT 'lookup',
    meta        TEXT NOT NULL DEFAULT '{}',
    ord         INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_node_tables_node ON node_tables(node_id);

CREATE TABLE IF NOT EXISTS fields (
    id               TEXT PRIMARY KEY,
    label            TEXT NOT NULL DEFAULT '',
    organization_id  TEXT,
    created_at       TEXT DEFAULT (datetime('now')),
    updated_at       TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS field_dependencies (
    id             TEXT PRIMARY KEY,
    field_id       TEXT NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    sequence       TEXT NOT NULL DEFAULT '[]',
    ord            INTEGER NOT NULL DEFAULT 0,
    depends_on_id  TEXT NOT NULL,
    condition      TEXT NOT NULL DEFAULT '',
    value          TEXT,
    params         TEXT,
    created_at     TEXT DEFAULT (datetime('now')),
    updated_at     TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_field_dependencies_field ON field_dependencies(field_id);

CREATE TABLE IF NOT EXISTS field_formulas (
    id               TEXT PRIMARY KEY,
    field_id         TEXT NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
    name             TEXT NOT NULL DEFAULT '',
    sequence         TEXT NOT NULL DEFAULT '[]',
    ord              INTEGER NOT NULL DEFAULT 0,
    target_property  TEXT NOT NULL DEFAULT '',
    created_at       TEXT DEFAULT (datetime('now')),
    updated_at       TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_field_formulas_field ON field_formulas(field_id);

CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL,
    roles          TEXT NOT NULL DEFAULT '[]',
    created_at     TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    token       TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at  TEXT NOT NULL,
    created_at  TEXT DEFAULT (datetime('now'))
);
`
