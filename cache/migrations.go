package cache

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

CREATE TABLE IF NOT EXISTS envelopes (
	author    TEXT NOT NULL,
	broadcast INTEGER NOT NULL,
	id        TEXT NOT NULL,
	header    TEXT NOT NULL,
	stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (author, broadcast, id)
);

CREATE TABLE IF NOT EXISTS bodies (
	author    TEXT NOT NULL,
	broadcast INTEGER NOT NULL,
	id        TEXT NOT NULL,
	body      BLOB NOT NULL,
	PRIMARY KEY (author, broadcast, id)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	id       TEXT PRIMARY KEY,
	received DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
