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

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	is_read    INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	action_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_position ON notifications(position);

CREATE TABLE IF NOT EXISTS page_info (
	id          INTEGER PRIMARY KEY CHECK(id = 1),
	page        INTEGER NOT NULL DEFAULT 1,
	page_size   INTEGER NOT NULL DEFAULT 0,
	total_pages INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL DEFAULT 0,
	unread_only INTEGER NOT NULL DEFAULT 0 CHECK(unread_only IN (0, 1)),
	saved_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS stats (
	id          INTEGER PRIMARY KEY CHECK(id = 1),
	total       INTEGER NOT NULL DEFAULT 0 CHECK(total >= 0),
	unread      INTEGER NOT NULL DEFAULT 0 CHECK(unread >= 0),
	read        INTEGER NOT NULL DEFAULT 0 CHECK(read >= 0),
	by_type     TEXT NOT NULL DEFAULT '{}',
	saved_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
