package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	run_date    TEXT NOT NULL,
	attachment  TEXT NOT NULL DEFAULT '',
	call_count  INTEGER NOT NULL DEFAULT 0,
	sent_count  INTEGER NOT NULL DEFAULT 0,
	outcome     TEXT NOT NULL DEFAULT 'running',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS dispatches (
	id        TEXT PRIMARY KEY,
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT '',
	subject   TEXT NOT NULL DEFAULT '',
	recipient TEXT NOT NULL DEFAULT '',
	sent_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_run ON dispatches(run_id, seq);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
