package store

// Schema contains the full database schema. Statements are idempotent so
// Open can run them on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	person_id TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	deleted_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_observations_person ON observations(person_id);
CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at);

CREATE TABLE IF NOT EXISTS outbox_tasks (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	run_after DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_outbox_status_run ON outbox_tasks(status, run_after);
CREATE INDEX IF NOT EXISTS idx_outbox_created ON outbox_tasks(created_at);

CREATE TABLE IF NOT EXISTS mindscapes (
	person_id TEXT PRIMARY KEY,
	traits TEXT NOT NULL DEFAULT '{}',
	version INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mindscape_applied (
	task_id TEXT PRIMARY KEY,
	person_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_mindscape_applied_person ON mindscape_applied(person_id);

CREATE TABLE IF NOT EXISTS mapper_configs (
	id TEXT PRIMARY KEY,
	mapper_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	configuration TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	audit TEXT NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL DEFAULT '',
	usage_count INTEGER NOT NULL DEFAULT 0,
	last_used_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(mapper_id, version)
);
CREATE INDEX IF NOT EXISTS idx_mapper_configs_status ON mapper_configs(mapper_id, status);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	rule_id TEXT NOT NULL DEFAULT '',
	mapper_id TEXT NOT NULL DEFAULT '',
	mapper_version INTEGER NOT NULL DEFAULT 0,
	helpful INTEGER,
	rating INTEGER,
	context TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_feedback_rule ON feedback(mapper_id, rule_id, created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_persona ON feedback(persona_id);

CREATE TABLE IF NOT EXISTS rule_adjustments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mapper_id TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	previous_weight REAL NOT NULL,
	new_weight REAL NOT NULL,
	reason TEXT NOT NULL,
	adjusted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rule_adjustments_rule ON rule_adjustments(mapper_id, rule_id, adjusted_at);
`
