// history/schema.go
package history

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	store_key TEXT NOT NULL,
	seq INTEGER NOT NULL,
	run_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	regime TEXT NOT NULL DEFAULT '',
	trade_count INTEGER NOT NULL DEFAULT 0,
	compliance_score REAL NOT NULL,
	violations TEXT NOT NULL,
	violation_summary TEXT NOT NULL,
	PRIMARY KEY (store_key, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);

-- Rows that could not be decoded are moved here by Load, never dropped.
CREATE TABLE IF NOT EXISTS runs_corrupt (
	store_key TEXT NOT NULL,
	seq INTEGER NOT NULL,
	run_id TEXT,
	created_at TEXT,
	regime TEXT,
	trade_count,
	compliance_score,
	violations TEXT,
	violation_summary TEXT,
	reason TEXT NOT NULL,
	quarantined_at TEXT NOT NULL
);
`
